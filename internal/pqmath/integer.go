// Copyright 2017 The go-ethereum Authors
// (original work)
// Copyright 2026 The Power Query Authors
// (modifications)
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

// Package pqmath holds small integer-arithmetic helpers shared by the kernel
// and streaming layers: overflow-checked add/mul, ceiling division for batch
// sizing, and the signed/unsigned-biased 64-bit key packing used by two-key
// group-by and hash-join ordering (spec §9 — must be done in integer
// arithmetic, never float).
package pqmath

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

// SafeMul returns x*y and whether the multiplication overflowed 64 bits.
func SafeMul(x, y uint64) (uint64, bool) {
	hi, lo := bits.Mul64(x, y)
	return lo, hi != 0
}

// SafeAdd returns x+y and whether the addition overflowed 64 bits.
func SafeAdd(x, y uint64) (uint64, bool) {
	sum, carryOut := bits.Add64(x, y, 0)
	return sum, carryOut != 0
}

// CeilDiv returns ceil(x/y), or 0 if y is 0.
func CeilDiv(x, y int) int {
	if y == 0 {
		return 0
	}
	return (x + y - 1) / y
}

// Clamp bounds v to [lo, hi], used wherever a computed index or size must be
// pinned back into a valid range (e.g. a histogram bucket index) rather than
// left to go out of bounds.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// signedBias flips the sign bit so that two's-complement int32 values sort
// correctly when compared as uint32 (spec §9 / §4.K): the native ordering of
// signed integers does not match the bit-pattern ordering of their unsigned
// reinterpretation, so every packed key gets XORed with 0x80000000 before
// packing and again after unpacking.
const signedBias = uint32(0x80000000)

// PackSignedKey biases a signed 32-bit key so uint32 comparison matches
// signed comparison.
func PackSignedKey(k int32) uint32 {
	return uint32(k) ^ signedBias
}

// UnpackSignedKey reverses PackSignedKey.
func UnpackSignedKey(biased uint32) int32 {
	return int32(biased ^ signedBias)
}

// PackComposite64 packs two already-ordering-biased 32-bit halves into one
// 64-bit key, high half first, for lexicographic (a, b) sorting via a single
// uint64 comparison. Used by two-key group-by and hash-join output ordering;
// must stay integer-only, never floating point.
func PackComposite64(a, b uint32) uint64 {
	return uint64(a)<<32 | uint64(b)
}

// UnpackComposite64 reverses PackComposite64.
func UnpackComposite64(packed uint64) (a, b uint32) {
	return uint32(packed >> 32), uint32(packed)
}
