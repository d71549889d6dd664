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

package pqvalue

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TypeName is the declared column/coercion type named in spec §4.D.1.
type TypeName string

const (
	TypeAny          TypeName = "any"
	TypeString       TypeName = "string"
	TypeNumber       TypeName = "number"
	TypeBoolean      TypeName = "boolean"
	TypeDate         TypeName = "date"
	TypeDateTime     TypeName = "datetime"
	TypeDateTimeZone TypeName = "datetimezone"
	TypeTime         TypeName = "time"
	TypeDuration     TypeName = "duration"
	TypeDecimal      TypeName = "decimal"
	TypeBinary       TypeName = "binary"
)

var decimalPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// CoerceTo converts v per the §4.D.1 table. Invalid inputs yield null, they
// never panic or return an Error value (changeType must not itself raise the
// error-value machinery; that is reserved for upstream formula failures).
func CoerceTo(v Value, target TypeName) Value {
	if v.Kind == KindError {
		return v // errors propagate through changeType unchanged
	}
	switch target {
	case TypeAny:
		return v
	case TypeString:
		if IsNull(v) {
			return Null
		}
		return String(ValueToString(v))
	case TypeNumber:
		return coerceNumber(v)
	case TypeBoolean:
		return coerceBoolean(v)
	case TypeDate:
		return coerceDate(v)
	case TypeDateTime:
		return coerceDateTime(v)
	case TypeDateTimeZone:
		return coerceDateTimeZone(v)
	case TypeTime:
		return coerceTime(v)
	case TypeDuration:
		return coerceDuration(v)
	case TypeDecimal:
		return coerceDecimal(v)
	case TypeBinary:
		return coerceBinary(v)
	default:
		return v
	}
}

func coerceNumber(v Value) Value {
	switch v.Kind {
	case KindNull:
		return Null
	case KindNumber:
		return v
	case KindBool:
		if v.Bool {
			return Number(1)
		}
		return Number(0)
	case KindString, KindDecimal:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return Null
		}
		return Number(n)
	default:
		return Null
	}
}

func coerceBoolean(v Value) Value {
	switch v.Kind {
	case KindNull:
		return Null
	case KindBool:
		return v
	case KindNumber:
		return Bool(v.Number != 0)
	case KindString:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "1":
			return Bool(true)
		case "false", "0":
			return Bool(false)
		default:
			return Null
		}
	default:
		return Null
	}
}

func coerceDate(v Value) Value {
	t, ok := instantOf(v)
	if !ok {
		return Null
	}
	u := t.UTC()
	return Date(u.Year(), u.Month(), u.Day())
}

func coerceDateTime(v Value) Value {
	t, ok := instantOf(v)
	if !ok {
		return Null
	}
	return DateTime(t)
}

func coerceDateTimeZone(v Value) Value {
	switch v.Kind {
	case KindDateTimeZone:
		return v
	default:
		t, ok := instantOf(v)
		if !ok {
			return Null
		}
		return DateTimeZone(t.UTC(), 0)
	}
}

func coerceTime(v Value) Value {
	switch v.Kind {
	case KindTime:
		return v
	case KindDateTime, KindDateTimeZone:
		u := v.Time.UTC()
		midnight := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
		return TimeOfDay(u.Sub(midnight).Milliseconds())
	case KindNumber:
		return TimeOfDay(int64(v.Number))
	default:
		return Null
	}
}

func coerceDuration(v Value) Value {
	switch v.Kind {
	case KindDuration:
		return v
	case KindNumber:
		return Duration(int64(v.Number))
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSuffix(v.Str, "ms"), 10, 64)
		if err != nil {
			return Null
		}
		return Duration(n)
	default:
		return Null
	}
}

func coerceDecimal(v Value) Value {
	switch v.Kind {
	case KindDecimal:
		return v
	case KindNumber:
		return Decimal(strconv.FormatFloat(v.Number, 'f', -1, 64))
	case KindString:
		s := strings.TrimSpace(v.Str)
		if !decimalPattern.MatchString(s) {
			return Null
		}
		return Decimal(s)
	default:
		return Null
	}
}

func coerceBinary(v Value) Value {
	switch v.Kind {
	case KindBinary:
		return v
	case KindString:
		b, ok := base64Decode(v.Str)
		if !ok {
			return Null
		}
		return Binary(b)
	default:
		return Null
	}
}

func instantOf(v Value) (time.Time, bool) {
	switch v.Kind {
	case KindDate, KindDateTime, KindDateTimeZone:
		return v.Time, true
	case KindString:
		if t, err := time.Parse(time.RFC3339, v.Str); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02", v.Str); err == nil {
			return t, true
		}
		return time.Time{}, false
	case KindNumber:
		return time.UnixMilli(int64(v.Number)).UTC(), true
	default:
		return time.Time{}, false
	}
}

var base64Alphabet = func() map[byte]uint32 {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	m := make(map[byte]uint32, len(alphabet))
	for i := 0; i < len(alphabet); i++ {
		m[alphabet[i]] = uint32(i)
	}
	return m
}()

func base64Decode(s string) ([]byte, bool) {
	s = strings.TrimRight(s, "=")
	var out []byte
	var buf uint32
	var bits int
	for i := 0; i < len(s); i++ {
		v, ok := base64Alphabet[s[i]]
		if !ok {
			return nil, false
		}
		buf = buf<<6 | v
		bits += 6
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buf>>uint(bits)))
		}
	}
	return out, true
}
