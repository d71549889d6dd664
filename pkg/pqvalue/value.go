// Copyright 2026 The Power Query Authors
// This file is part of Power Query.
//
// Power Query is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Power Query is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Power Query. If not, see <http://www.gnu.org/licenses/>.

// Package pqvalue implements the tagged scalar cell model (spec §3.1/§4.A):
// null, boolean, number, decimal, string, binary, the five date/time
// variants, nested table/list/record, and a first-class Error datum. It also
// defines valueKey, the single basis for grouping, distinct, join probing
// and replace-value matching everywhere else in the engine.
package pqvalue

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/exp/constraints"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindDecimal
	KindString
	KindBinary
	KindDate
	KindDateTime
	KindDateTimeZone
	KindTime
	KindDuration
	KindTable
	KindList
	KindRecord
	KindError
)

// Value is a single cell. Exactly one of the typed fields is meaningful,
// selected by Kind; this mirrors the closed tagged-variant set of spec §3.1
// rather than an interface{}-per-cell representation, so equality and
// ordering stay centralized instead of scattered across dynamic type
// switches.
type Value struct {
	Kind Kind

	Bool   bool
	Number float64
	Str    string // also backs Decimal (normalized digit string) and Error message
	Binary []byte
	Time   time.Time // Date/DateTime/DateTimeZone instant; Date is midnight-UTC
	OffsetMin int    // DateTimeZone: minutes east of UTC
	Millis    int64  // Time-of-day (ms-in-day) or Duration (signed ms)

	Table  Tableish
	List   []Value
	Record []RecordField
}

// Tableish is satisfied by pqtable.Table; kept as an interface here to avoid
// an import cycle between pqvalue and pqtable (a nested-table cell needs to
// reference a table, and tables are built from columns of values).
type Tableish interface {
	RowCount() int
}

// RecordField is one field of a nested record value.
type RecordField struct {
	Name  string
	Value Value
}

// Null is the canonical null value. null and "absent" are unified on
// ingress: adapters must never produce a distinct "absent" tag.
var Null = Value{Kind: KindNull}

func Bool(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func Number(n float64) Value     { return Value{Kind: KindNumber, Number: n} }
func String(s string) Value      { return Value{Kind: KindString, Str: s} }
func Binary(b []byte) Value      { return Value{Kind: KindBinary, Binary: b} }
func Decimal(digits string) Value { return Value{Kind: KindDecimal, Str: normalizeDecimal(digits)} }
func Error(msg string) Value     { return Value{Kind: KindError, Str: msg} }

// Date constructs a midnight-UTC date cell from a calendar date.
func Date(year int, month time.Month, day int) Value {
	return Value{Kind: KindDate, Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateTime constructs an instant cell (no embedded offset).
func DateTime(t time.Time) Value { return Value{Kind: KindDateTime, Time: t.UTC()} }

// DateTimeZone constructs an instant + explicit minutes-east-of-UTC offset.
func DateTimeZone(t time.Time, offsetMin int) Value {
	return Value{Kind: KindDateTimeZone, Time: t, OffsetMin: offsetMin}
}

// TimeOfDay constructs a time-of-day cell from milliseconds since midnight.
func TimeOfDay(ms int64) Value { return Value{Kind: KindTime, Millis: ms} }

// Duration constructs a signed-millisecond duration cell.
func Duration(ms int64) Value { return Value{Kind: KindDuration, Millis: ms} }

func IsNull(v Value) bool    { return v.Kind == KindNull }
func IsNotNull(v Value) bool { return v.Kind != KindNull }
func IsError(v Value) bool   { return v.Kind == KindError }

// normalizeDecimal strips a leading "+", collapses redundant leading zeros
// and leaves the sign/point structure otherwise untouched; it never
// validates numeric-ness beyond that (invalid digit strings are caught at
// the changeType boundary, §4.D.1).
func normalizeDecimal(s string) string {
	s = strings.TrimPrefix(s, "+")
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, hasFrac := s, "", false
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart, hasFrac = s[:i], s[i+1:], true
	}
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	out := intPart
	if hasFrac {
		fracPart = strings.TrimRight(fracPart, "0")
		if fracPart != "" {
			out += "." + fracPart
		}
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

// ValueKey returns the string used for value-equality everywhere grouping,
// distinct, join probing or replace-value matching needs to diverge from Go
// identity: NaN equals NaN, -0 equals 0 (kernels are the one place that
// preserves the IEEE sign, per spec §9's open question), and two dates with
// identical instants compare equal regardless of how they were constructed.
func ValueKey(v Value) string {
	switch v.Kind {
	case KindNull:
		return "n:"
	case KindBool:
		if v.Bool {
			return "b:1"
		}
		return "b:0"
	case KindNumber:
		n := v.Number
		if math.IsNaN(n) {
			return "f:NaN"
		}
		if n == 0 {
			return "f:0" // -0 and +0 unify under value-equality
		}
		return "f:" + strconv.FormatFloat(n, 'g', -1, 64)
	case KindDecimal:
		return "d:" + v.Str
	case KindString:
		return "s:" + v.Str
	case KindBinary:
		return "x:" + string(v.Binary)
	case KindDate:
		return "D:" + v.Time.UTC().Format("2006-01-02")
	case KindDateTime:
		return "T:" + v.Time.UTC().Format(time.RFC3339Nano)
	case KindDateTimeZone:
		// Value-equality is by instant, not by the recorded offset.
		return "T:" + v.Time.UTC().Format(time.RFC3339Nano)
	case KindTime:
		return "t:" + strconv.FormatInt(v.Millis, 10)
	case KindDuration:
		return "u:" + strconv.FormatInt(v.Millis, 10)
	case KindError:
		return "e:" + v.Str
	case KindTable, KindList, KindRecord:
		return "c:" + compositeKey(v)
	default:
		return "?:"
	}
}

func compositeKey(v Value) string {
	switch v.Kind {
	case KindList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = ValueKey(e)
		}
		return strings.Join(parts, "\x1f")
	case KindRecord:
		fields := append([]RecordField(nil), v.Record...)
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = f.Name + "=" + ValueKey(f.Value)
		}
		return strings.Join(parts, "\x1f")
	default:
		return fmt.Sprintf("table(rows=%d)", v.Table.RowCount())
	}
}

// Equals implements the equals/notEquals predicate pair: value-equality,
// dates compared by instant, null==null.
func Equals(a, b Value) bool { return ValueKey(a) == ValueKey(b) }
func NotEquals(a, b Value) bool { return !Equals(a, b) }

// Compare provides total ordering within each type bucket; cross-bucket
// comparisons fall back to stringified comparison per spec §4.A. It never
// panics; callers needing null-safety for </>/<=/>= should check IsNull
// first, since those operators return false if either operand is null.
func Compare(a, b Value) int {
	if a.Kind == b.Kind {
		switch a.Kind {
		case KindNumber:
			return cmpOrdered(a.Number, b.Number)
		case KindDecimal, KindString:
			return strings.Compare(a.Str, b.Str)
		case KindBool:
			return cmpBool(a.Bool, b.Bool)
		case KindDate, KindDateTime, KindDateTimeZone:
			return a.Time.UTC().Compare(b.Time.UTC())
		case KindTime:
			return cmpOrdered(a.Millis, b.Millis)
		case KindDuration:
			return cmpOrdered(a.Millis, b.Millis)
		case KindBinary:
			return strings.Compare(string(a.Binary), string(b.Binary))
		}
	}
	return strings.Compare(ValueToString(a), ValueToString(b))
}

// Less is the comparator sortRows uses for a single key.
func Less(a, b Value, nullsFirst bool) bool {
	an, bn := IsNull(a), IsNull(b)
	if an || bn {
		if an == bn {
			return false
		}
		if nullsFirst {
			return an
		}
		return bn
	}
	return Compare(a, b) < 0
}

// cmpOrdered is the shared three-way comparison behind Compare's
// KindNumber/KindTime/KindDuration branches; bool isn't constraints.Ordered
// (no native <), so cmpBool stays a separate two-line special case below.
func cmpOrdered[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

// ValueToString renders v for display/combine/stringify purposes: dates use
// ISO-8601 UTC, null is the empty string, errors render their message.
func ValueToString(v Value) string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		if math.IsNaN(v.Number) {
			return "NaN"
		}
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case KindDecimal:
		return v.Str
	case KindString:
		return v.Str
	case KindBinary:
		return binaryToBase64(v.Binary)
	case KindDate:
		return v.Time.UTC().Format("2006-01-02")
	case KindDateTime:
		return v.Time.UTC().Format(time.RFC3339Nano)
	case KindDateTimeZone:
		return v.Time.Format(time.RFC3339Nano)
	case KindTime:
		return formatTimeOfDay(v.Millis)
	case KindDuration:
		return strconv.FormatInt(v.Millis, 10) + "ms"
	case KindError:
		return v.Str
	default:
		return ""
	}
}

func formatTimeOfDay(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Contains/StartsWith/EndsWith stringify both sides; an empty needle always
// matches; case-insensitive comparison uses Unicode simple case folding.
func Contains(v, needle Value, caseSensitive bool) bool {
	a, b := foldIf(ValueToString(v), caseSensitive), foldIf(ValueToString(needle), caseSensitive)
	return b == "" || strings.Contains(a, b)
}

func StartsWith(v, needle Value, caseSensitive bool) bool {
	a, b := foldIf(ValueToString(v), caseSensitive), foldIf(ValueToString(needle), caseSensitive)
	return b == "" || strings.HasPrefix(a, b)
}

func EndsWith(v, needle Value, caseSensitive bool) bool {
	a, b := foldIf(ValueToString(v), caseSensitive), foldIf(ValueToString(needle), caseSensitive)
	return b == "" || strings.HasSuffix(a, b)
}

func foldIf(s string, caseSensitive bool) string {
	if caseSensitive {
		return s
	}
	return strings.Map(unicode.ToLower, s)
}

func binaryToBase64(b []byte) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	var sb strings.Builder
	for i := 0; i < len(b); i += 3 {
		chunk := b[i:min(i+3, len(b))]
		var n uint32
		for _, c := range chunk {
			n = n<<8 | uint32(c)
		}
		n <<= uint(8 * (3 - len(chunk)))
		sb.WriteByte(alphabet[(n>>18)&0x3f])
		sb.WriteByte(alphabet[(n>>12)&0x3f])
		if len(chunk) > 1 {
			sb.WriteByte(alphabet[(n>>6)&0x3f])
		} else {
			sb.WriteByte('=')
		}
		if len(chunk) > 2 {
			sb.WriteByte(alphabet[n&0x3f])
		} else {
			sb.WriteByte('=')
		}
	}
	return sb.String()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
