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

package cpukernel

import (
	"fmt"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/erigontech/powerquery/internal/pqmath"
)

// GroupByResult is the common shape of every groupBy{Count,Sum,Min,Max}
// kernel: parallel arrays, one entry per distinct key, keys sorted ascending
// under their native signed/unsigned ordering.
type GroupByResult struct {
	Keys   []uint32
	Counts []uint32
	Sums   []float64 // populated by GroupBySum/GroupByAverage-style callers
	Mins   []float64
	Maxs   []float64
}

func checkLen(keys []uint32, values []float64, kernel string) error {
	if values != nil && len(keys) != len(values) {
		return fmt.Errorf("pqkernel/cpukernel: %s: keys/values length mismatch: %d vs %d", kernel, len(keys), len(values))
	}
	return nil
}

// sortedKeys returns the set of keys seen during a groupBy pass in output
// order. A roaring.Bitmap gives back its members in ascending uint32 order for free
// (ToArray), which is exactly the ordering the unsigned groupBy kernels need
// and a cheaper starting point than re-sorting a map's keys by hand; the
// signed variants still need one int32 re-sort since roaring only orders by
// raw uint32 value.
func sortedKeys(present *roaring.Bitmap, signed bool) []uint32 {
	out := present.ToArray()
	if signed {
		sort.Slice(out, func(i, j int) bool { return int32(out[i]) < int32(out[j]) })
	}
	return out
}

// GroupByCount counts rows per key.
func GroupByCount(keys []uint32, signed bool) GroupByResult {
	counts := map[uint32]uint32{}
	present := roaring.New()
	for _, k := range keys {
		counts[k]++
		present.Add(k)
	}
	order := sortedKeys(present, signed)
	res := GroupByResult{Keys: order, Counts: make([]uint32, len(order))}
	for i, k := range order {
		res.Counts[i] = counts[k]
	}
	return res
}

// GroupBySum sums values per key.
func GroupBySum(keys []uint32, signed bool, values []float64) (GroupByResult, error) {
	if err := checkLen(keys, values, "groupBySum"); err != nil {
		return GroupByResult{}, err
	}
	sums := map[uint32]float64{}
	counts := map[uint32]uint32{}
	present := roaring.New()
	for i, k := range keys {
		sums[k] += values[i]
		counts[k]++
		present.Add(k)
	}
	order := sortedKeys(present, signed)
	res := GroupByResult{Keys: order, Sums: make([]float64, len(order)), Counts: make([]uint32, len(order))}
	for i, k := range order {
		res.Sums[i] = sums[k]
		res.Counts[i] = counts[k]
	}
	return res, nil
}

// GroupByMin/GroupByMax propagate NaN and preserve signed zero identity:
// a NaN seen for any row of a group poisons that group's result, matching
// the CPU min/max reduction's own NaN-propagation rule.
func GroupByMin(keys []uint32, signed bool, values []float64) (GroupByResult, error) {
	return groupByExtreme(keys, signed, values, true)
}

func GroupByMax(keys []uint32, signed bool, values []float64) (GroupByResult, error) {
	return groupByExtreme(keys, signed, values, false)
}

func groupByExtreme(keys []uint32, signed bool, values []float64, isMin bool) (GroupByResult, error) {
	if err := checkLen(keys, values, "groupByMinMax"); err != nil {
		return GroupByResult{}, err
	}
	acc := map[uint32]float64{}
	has := map[uint32]bool{}
	present := roaring.New()
	for i, k := range keys {
		v := values[i]
		present.Add(k)
		cur, ok := acc[k]
		if !ok {
			acc[k] = v
			has[k] = true
			continue
		}
		if math.IsNaN(cur) {
			continue
		}
		if math.IsNaN(v) {
			acc[k] = v
			continue
		}
		if (isMin && v < cur) || (!isMin && v > cur) {
			acc[k] = v
		}
	}
	order := sortedKeys(present, signed)
	res := GroupByResult{Keys: order}
	out := make([]float64, len(order))
	for i, k := range order {
		out[i] = acc[k]
	}
	if isMin {
		res.Mins = out
	} else {
		res.Maxs = out
	}
	return res, nil
}

// GroupByResult2 is the two-key variant: output keys are the unpacked
// (keyA, keyB) pairs, sorted lexicographically via the packed 64-bit
// composite (spec §9 / §4.K), never via floating point.
type GroupByResult2 struct {
	KeysA, KeysB []uint32
	Counts       []uint32
	Sums         []float64
	Mins, Maxs   []float64
}

func packKey(a, b uint32, signed bool) uint64 {
	if signed {
		a = pqmath.PackSignedKey(int32(a))
		b = pqmath.PackSignedKey(int32(b))
	}
	return pqmath.PackComposite64(a, b)
}

func unpackKey(packed uint64, signed bool) (a, b uint32) {
	a, b = pqmath.UnpackComposite64(packed)
	if signed {
		a = uint32(pqmath.UnpackSignedKey(a))
		b = uint32(pqmath.UnpackSignedKey(b))
	}
	return a, b
}

func sortedPacked(present map[uint64]bool) []uint64 {
	out := make([]uint64, 0, len(present))
	for k := range present {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GroupByCount2 groups by a composite (keyA, keyB) pair.
func GroupByCount2(keysA, keysB []uint32, signed bool) (GroupByResult2, error) {
	if len(keysA) != len(keysB) {
		return GroupByResult2{}, fmt.Errorf("pqkernel/cpukernel: groupByCount2: keyA/keyB length mismatch: %d vs %d", len(keysA), len(keysB))
	}
	counts := map[uint64]uint32{}
	present := map[uint64]bool{}
	for i := range keysA {
		k := packKey(keysA[i], keysB[i], signed)
		counts[k]++
		present[k] = true
	}
	order := sortedPacked(present)
	res := GroupByResult2{KeysA: make([]uint32, len(order)), KeysB: make([]uint32, len(order)), Counts: make([]uint32, len(order))}
	for i, k := range order {
		a, b := unpackKey(k, signed)
		res.KeysA[i], res.KeysB[i] = a, b
		res.Counts[i] = counts[k]
	}
	return res, nil
}

// GroupBySum2 sums values by a composite (keyA, keyB) pair.
func GroupBySum2(keysA, keysB []uint32, signed bool, values []float64) (GroupByResult2, error) {
	if len(keysA) != len(keysB) || len(keysA) != len(values) {
		return GroupByResult2{}, fmt.Errorf("pqkernel/cpukernel: groupBySum2: length mismatch")
	}
	sums := map[uint64]float64{}
	counts := map[uint64]uint32{}
	present := map[uint64]bool{}
	for i := range keysA {
		k := packKey(keysA[i], keysB[i], signed)
		sums[k] += values[i]
		counts[k]++
		present[k] = true
	}
	order := sortedPacked(present)
	res := GroupByResult2{KeysA: make([]uint32, len(order)), KeysB: make([]uint32, len(order)), Sums: make([]float64, len(order)), Counts: make([]uint32, len(order))}
	for i, k := range order {
		a, b := unpackKey(k, signed)
		res.KeysA[i], res.KeysB[i] = a, b
		res.Sums[i] = sums[k]
		res.Counts[i] = counts[k]
	}
	return res, nil
}

// GroupByMin2 and GroupByMax2 are the composite-key counterparts of
// groupByExtreme: same NaN-poisons-the-group rule, ordered by the packed
// 64-bit composite key.
func GroupByMin2(keysA, keysB []uint32, signed bool, values []float64) (GroupByResult2, error) {
	return groupByExtreme2(keysA, keysB, signed, values, true)
}

func GroupByMax2(keysA, keysB []uint32, signed bool, values []float64) (GroupByResult2, error) {
	return groupByExtreme2(keysA, keysB, signed, values, false)
}

func groupByExtreme2(keysA, keysB []uint32, signed bool, values []float64, isMin bool) (GroupByResult2, error) {
	if len(keysA) != len(keysB) || len(keysA) != len(values) {
		return GroupByResult2{}, fmt.Errorf("pqkernel/cpukernel: groupByMinMax2: length mismatch")
	}
	acc := map[uint64]float64{}
	present := map[uint64]bool{}
	for i := range keysA {
		k := packKey(keysA[i], keysB[i], signed)
		v := values[i]
		_, ok := acc[k]
		present[k] = true
		if !ok {
			acc[k] = v
			continue
		}
		cur := acc[k]
		if math.IsNaN(cur) {
			continue
		}
		if math.IsNaN(v) {
			acc[k] = v
			continue
		}
		if (isMin && v < cur) || (!isMin && v > cur) {
			acc[k] = v
		}
	}
	order := sortedPacked(present)
	res := GroupByResult2{KeysA: make([]uint32, len(order)), KeysB: make([]uint32, len(order))}
	out := make([]float64, len(order))
	for i, k := range order {
		a, b := unpackKey(k, signed)
		res.KeysA[i], res.KeysB[i] = a, b
		out[i] = acc[k]
	}
	if isMin {
		res.Mins = out
	} else {
		res.Maxs = out
	}
	return res, nil
}
