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

package pqcachekey

const (
	fnvOffsetBasis64 = 14695981039346656037
	fnvPrime64       = 1099511628211
)

// FNV1a64 is the standard 64-bit FNV-1a hash over s's UTF-8 bytes, rendered
// as 16 lowercase hex digits — the cache-file basename alphabet (spec §4.B).
func FNV1a64(s string) string {
	var h uint64 = fnvOffsetBasis64
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return hex16(h)
}

func hex16(h uint64) string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hextable[h&0xf]
		h >>= 4
	}
	return string(buf)
}

// Key builds the full cache key for a query (source, steps, parameter
// overrides, spec §3.4) as the FNV-1a64 hex of its stable-stringified form.
func Key(queryPayload any) string {
	return FNV1a64(StableStringify(queryPayload))
}
