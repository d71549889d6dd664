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

// Package pqcachekey implements spec §4.B: a deterministic canonical
// stringification of an arbitrary value tree (StableStringify) and the
// 64-bit FNV-1a fingerprint (FNV1a64) used to name cache files.
package pqcachekey

import (
	"encoding/hex"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// StableStringify canonicalizes v into a deterministic string: object keys
// are sorted, and anything that isn't plain JSON-safe (non-finite floats,
// byte slices, time.Time dates, circular references) is rendered as a
// tagged `{"$type":...,"value"|"ref":...}` object per spec §9; maps of any
// key type are written as plain key-sorted objects. Two
// logically-equal inputs canonicalize to byte-identical strings regardless
// of map iteration order or float formatting quirks.
func StableStringify(v any) string {
	var sb strings.Builder
	writeCanonical(&sb, v, map[uintptr]string{}, "$")
	return sb.String()
}

// writeCanonical is the canonical-form recursive writer. seen maps the
// pointer identity of a map/slice container already on the current path to
// the json-pointer-like path string it was first seen at; a revisit becomes
// a `{"$type":"circular","ref":<path>}` marker instead of recursing forever.
func writeCanonical(b *strings.Builder, v any, seen map[uintptr]string, path string) {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if x {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		writeJSONString(b, x)
	case float64:
		writeFloat(b, x)
	case float32:
		writeFloat(b, float64(x))
	case int:
		b.WriteString(strconv.Itoa(x))
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case uint64:
		b.WriteString(strconv.FormatUint(x, 10))
	case []byte:
		writeTagged(b, "binary", quoted(hex.EncodeToString(x)))
	case time.Time:
		writeTagged(b, "date", quoted(x.UTC().Format(time.RFC3339Nano)))
	case []any, map[string]any:
		writeReflected(b, x, seen, path)
	case fmt.Stringer:
		writeJSONString(b, x.String())
	default:
		writeReflected(b, v, seen, path)
	}
}

// writeReflected handles the remaining composite kinds (typed slices, typed
// maps, structs via %v fallback) through reflection, so StableStringify
// doesn't need a type switch case for every concrete container type a
// caller might build a query-parameter tree out of.
func writeReflected(b *strings.Builder, v any, seen map[uintptr]string, path string) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if withCycleGuard(b, rv, seen, path) {
			return
		}
		if rv.Kind() == reflect.Slice && !rv.IsNil() {
			defer delete(seen, rv.Pointer())
		}
		n := rv.Len()
		elems := make([]any, n)
		for i := 0; i < n; i++ {
			elems[i] = rv.Index(i).Interface()
		}
		writeSlice(b, elems, seen, path)
	case reflect.Map:
		if withCycleGuard(b, rv, seen, path) {
			return
		}
		if !rv.IsNil() {
			defer delete(seen, rv.Pointer())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[fmt.Sprintf("%v", iter.Key().Interface())] = iter.Value().Interface()
		}
		writeMap(b, m, seen, path)
	default:
		writeJSONString(b, fmt.Sprintf("%v", v))
	}
}

// withCycleGuard returns true (and writes a circular marker) if rv's
// reference-type pointer is already on the current recursion path;
// otherwise it records the path and returns false so the caller proceeds.
func withCycleGuard(b *strings.Builder, rv reflect.Value, seen map[uintptr]string, path string) bool {
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Map {
		return false
	}
	if rv.IsNil() {
		return false
	}
	ptr := rv.Pointer()
	if prior, ok := seen[ptr]; ok {
		b.WriteString(`{"$type":"circular","ref":`)
		b.WriteString(quoted(prior))
		b.WriteByte('}')
		return true
	}
	seen[ptr] = path
	return false
}

func writeFloat(b *strings.Builder, f float64) {
	switch {
	case math.IsNaN(f):
		writeTagged(b, "nan", "null")
	case math.IsInf(f, 1):
		writeTagged(b, "inf", "null")
	case math.IsInf(f, -1):
		writeTagged(b, "-inf", "null")
	default:
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
}

func writeTagged(b *strings.Builder, typ string, rawValue string) {
	b.WriteString(`{"$type":`)
	writeJSONString(b, typ)
	b.WriteString(`,"value":`)
	b.WriteString(rawValue)
	b.WriteByte('}')
}

func writeSlice(b *strings.Builder, arr []any, seen map[uintptr]string, path string) {
	b.WriteByte('[')
	for i, e := range arr {
		if i > 0 {
			b.WriteByte(',')
		}
		writeCanonical(b, e, seen, fmt.Sprintf("%s[%d]", path, i))
	}
	b.WriteByte(']')
}

func writeMap(b *strings.Builder, obj map[string]any, seen map[uintptr]string, path string) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(b, k)
		b.WriteByte(':')
		writeCanonical(b, obj[k], seen, path+"."+k)
	}
	b.WriteByte('}')
}

func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

func quoted(s string) string {
	var b strings.Builder
	writeJSONString(&b, s)
	return b.String()
}
