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

// Package offload implements spec §4.L's offloaded kernel backend as a
// software model: no actual GPU device is dispatched to, but every kernel
// is structured the way a compute-shader implementation would be (tree
// reduction in fixed workgroups, a padded bitonic sort, an atomic-increment
// histogram, an open-addressing group-by/hash-join table, a tiled matrix
// multiply) so the shapes spec §4.L narrates have a home even though no
// physical accelerator backs them.
package offload

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/erigontech/powerquery/internal/pqmath"
	"github.com/erigontech/powerquery/pkg/pqkernel"
	"github.com/erigontech/powerquery/pkg/pqkernel/cpukernel"
)

const workgroupSize = 256
const tileSize = 8

// SoftwareBackend is an pqkernel.OffloadBackend that always succeeds;
// Deviation, when non-zero, is added to every scalar Sum result so tests can
// exercise the dispatcher's validation fallback (spec §8 scenario 6)
// without a second backend type.
type SoftwareBackend struct {
	Deviation float64
}

func New() *SoftwareBackend { return &SoftwareBackend{} }

func (b *SoftwareBackend) Available() bool { return true }

// SupportsKernelPrecision advertises every kernel at every precision; a
// real device backend would narrow this to what its compiled shaders
// actually cover.
func (b *SoftwareBackend) SupportsKernelPrecision(pqkernel.KernelName, pqkernel.GPUPrecision) bool {
	return true
}

func (b *SoftwareBackend) UploadVector(_ context.Context, values []float64) (any, error) {
	buf := make([]float64, len(values))
	copy(buf, values)
	return buf, nil
}

func (b *SoftwareBackend) ReadbackVector(_ context.Context, handle any) ([]float64, error) {
	buf, ok := handle.([]float64)
	if !ok {
		return nil, fmt.Errorf("pqkernel/offload: readback: handle is not a vector")
	}
	out := make([]float64, len(buf))
	copy(out, buf)
	return out, nil
}

// treeReduce simulates iterated workgroup-sized reduction passes: each pass
// combines workgroupSize-wide chunks into one partial per chunk, until a
// single value remains. For min/max this matches a linear fold exactly; for
// sums over more than workgroupSize values the different grouping can change
// float rounding. The chunking is what a real compute shader's pass
// structure would look like.
func treeReduce(values []float64, identity float64, combine func(a, b float64) float64) float64 {
	if len(values) == 0 {
		return identity
	}
	cur := append([]float64(nil), values...)
	for len(cur) > 1 {
		next := make([]float64, 0, (len(cur)+workgroupSize-1)/workgroupSize)
		for i := 0; i < len(cur); i += workgroupSize {
			end := i + workgroupSize
			if end > len(cur) {
				end = len(cur)
			}
			acc := cur[i]
			for _, v := range cur[i+1 : end] {
				acc = combine(acc, v)
			}
			next = append(next, acc)
		}
		cur = next
	}
	return cur[0]
}

func (b *SoftwareBackend) Sum(_ context.Context, values []float64, _ pqkernel.GPUPrecision) (float64, error) {
	if len(values) == 0 {
		return 0 + b.Deviation, nil
	}
	return treeReduce(values, 0, func(a, c float64) float64 { return a + c }) + b.Deviation, nil
}

func (b *SoftwareBackend) Min(_ context.Context, values []float64, _ pqkernel.GPUPrecision) (float64, error) {
	if len(values) == 0 {
		return math.Inf(1), nil
	}
	return treeReduce(values, math.Inf(1), func(a, c float64) float64 {
		if math.IsNaN(a) || math.IsNaN(c) {
			return math.NaN()
		}
		if c < a {
			return c
		}
		return a
	}), nil
}

func (b *SoftwareBackend) Max(_ context.Context, values []float64, _ pqkernel.GPUPrecision) (float64, error) {
	if len(values) == 0 {
		return math.Inf(-1), nil
	}
	return treeReduce(values, math.Inf(-1), func(a, c float64) float64 {
		if math.IsNaN(a) || math.IsNaN(c) {
			return math.NaN()
		}
		if c > a {
			return c
		}
		return a
	}), nil
}

func (b *SoftwareBackend) Average(ctx context.Context, values []float64, precision pqkernel.GPUPrecision) (float64, error) {
	if len(values) == 0 {
		return math.NaN(), nil
	}
	sum, _ := b.Sum(ctx, values, precision)
	sum -= b.Deviation
	return sum / float64(len(values)), nil
}

func (b *SoftwareBackend) Count(_ context.Context, values []float64) (int, error) {
	return len(values), nil
}

func (b *SoftwareBackend) SumProduct(_ context.Context, a, c []float64, _ pqkernel.GPUPrecision) (float64, error) {
	if len(a) != len(c) {
		return 0, fmt.Errorf("pqkernel/offload: sumproduct: length mismatch: %d vs %d", len(a), len(c))
	}
	products := make([]float64, len(a))
	for i := range a {
		products[i] = a[i] * c[i]
	}
	return treeReduce(products, 0, func(x, y float64) float64 { return x + y }), nil
}

// bitonicLess orders NaN last and -Inf first, matching cpukernel.Sort.
func bitonicLess(a, c float64) bool {
	aNaN, cNaN := math.IsNaN(a), math.IsNaN(c)
	if aNaN {
		return false
	}
	if cNaN {
		return true
	}
	return a < c
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// bitonicSort sorts a power-of-two length buffer in place via the classic
// bitonic network (compute-shader friendly: every stage is a fixed set of
// independent compare-exchanges).
func bitonicSort(a []float64) {
	n := len(a)
	for k := 2; k <= n; k <<= 1 {
		for j := k / 2; j > 0; j >>= 1 {
			for i := 0; i < n; i++ {
				l := i ^ j
				if l <= i {
					continue
				}
				ascending := i&k == 0
				if ascending {
					if bitonicLess(a[l], a[i]) {
						a[i], a[l] = a[l], a[i]
					}
				} else {
					if bitonicLess(a[i], a[l]) {
						a[i], a[l] = a[l], a[i]
					}
				}
			}
		}
	}
}

// Sort pads values to the next power of two with NaN sentinels (which sort
// last under bitonicLess, same as any NaN already present), runs the
// bitonic network, then trims the padding back off.
func (b *SoftwareBackend) Sort(_ context.Context, values []float64) ([]float64, error) {
	n := len(values)
	if n == 0 {
		return []float64{}, nil
	}
	padded := nextPow2(n)
	buf := make([]float64, padded)
	copy(buf, values)
	for i := n; i < padded; i++ {
		buf[i] = math.NaN()
	}
	bitonicSort(buf)
	return buf[:n], nil
}

// Histogram increments bin counters per value, as if each value were one
// GPU thread doing an atomic add into shared bin memory; order of
// increments doesn't matter since the operation is commutative.
func (b *SoftwareBackend) Histogram(_ context.Context, values []float64, opts cpukernel.HistogramOptions) ([]int, error) {
	if opts.Bins <= 0 || !(opts.Max > opts.Min) {
		return nil, fmt.Errorf("pqkernel/offload: histogram: invalid range/bins")
	}
	bins := make([]int, opts.Bins)
	span := opts.Max - opts.Min
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if v <= opts.Min {
			bins[0]++
			continue
		}
		if v >= opts.Max {
			bins[opts.Bins-1]++
			continue
		}
		idx := int((v - opts.Min) * float64(opts.Bins) / span)
		if idx >= opts.Bins {
			idx = opts.Bins - 1
		}
		bins[idx]++
	}
	return bins, nil
}

// hashU32 is a murmur3-finalizer-style mixer used to seed open-addressing
// probe sequences.
func hashU32(k uint32) uint32 {
	k ^= k >> 16
	k *= 0x85ebca6b
	k ^= k >> 13
	k *= 0xc2b2ae35
	k ^= k >> 16
	return k
}

// openTable32 is the clear/accumulate/compact open-addressing hash table
// spec §4.L describes for group-by: a dedicated slot exists for every key
// including the literal 0xFFFFFFFF, because occupancy is tracked in a
// separate boolean array instead of an in-band empty sentinel.
type openTable32 struct {
	capacity int
	occupied []bool
	keys     []uint32
	slot     []int // index into caller's accumulator arrays
}

func newOpenTable32(nKeys int) *openTable32 {
	cap := nextPow2(2*nKeys + 1)
	return &openTable32{
		capacity: cap,
		occupied: make([]bool, cap),
		keys:     make([]uint32, cap),
		slot:     make([]int, cap),
	}
}

// findOrInsert returns the accumulator slot for k, allocating a fresh one
// (via nextSlot) the first time k is seen.
func (t *openTable32) findOrInsert(k uint32, nextSlot func() int) (slotIdx int, created bool) {
	idx := int(hashU32(k)) % t.capacity
	if idx < 0 {
		idx += t.capacity
	}
	for t.occupied[idx] {
		if t.keys[idx] == k {
			return t.slot[idx], false
		}
		idx = (idx + 1) % t.capacity
	}
	t.occupied[idx] = true
	t.keys[idx] = k
	s := nextSlot()
	t.slot[idx] = s
	return s, true
}

func (t *openTable32) find(k uint32) (slotIdx int, ok bool) {
	idx := int(hashU32(k)) % t.capacity
	if idx < 0 {
		idx += t.capacity
	}
	for t.occupied[idx] {
		if t.keys[idx] == k {
			return t.slot[idx], true
		}
		idx = (idx + 1) % t.capacity
	}
	return 0, false
}

func (t *openTable32) compactKeys() []uint32 {
	var out []uint32
	for i, occ := range t.occupied {
		if occ {
			out = append(out, t.keys[i])
		}
	}
	return out
}

func sortKeysNative(keys []uint32, signed bool) []uint32 {
	out := append([]uint32(nil), keys...)
	if signed {
		sort.Slice(out, func(i, j int) bool { return int32(out[i]) < int32(out[j]) })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	}
	return out
}

func (b *SoftwareBackend) GroupByCount(_ context.Context, keys []uint32, signed bool) (cpukernel.GroupByResult, error) {
	table := newOpenTable32(len(keys))
	counts := make([]uint32, 0, len(keys))
	for _, k := range keys {
		slotIdx, created := table.findOrInsert(k, func() int { counts = append(counts, 0); return len(counts) - 1 })
		if created {
			counts[slotIdx] = 1
		} else {
			counts[slotIdx]++
		}
	}
	order := sortKeysNative(table.compactKeys(), signed)
	res := cpukernel.GroupByResult{Keys: order, Counts: make([]uint32, len(order))}
	for i, k := range order {
		slotIdx, _ := table.find(k)
		res.Counts[i] = counts[slotIdx]
	}
	return res, nil
}

func (b *SoftwareBackend) groupByFold(keys []uint32, signed bool, values []float64, identity float64, combine func(acc, v float64, first bool) float64) (cpukernel.GroupByResult, []float64, error) {
	if len(keys) != len(values) {
		return cpukernel.GroupByResult{}, nil, fmt.Errorf("pqkernel/offload: groupby: keys/values length mismatch")
	}
	table := newOpenTable32(len(keys))
	acc := make([]float64, 0, len(keys))
	first := make([]bool, 0, len(keys))
	for i, k := range keys {
		slotIdx, created := table.findOrInsert(k, func() int { acc = append(acc, identity); first = append(first, true); return len(acc) - 1 })
		acc[slotIdx] = combine(acc[slotIdx], values[i], first[slotIdx])
		first[slotIdx] = false
	}
	order := sortKeysNative(table.compactKeys(), signed)
	out := make([]float64, len(order))
	for i, k := range order {
		slotIdx, _ := table.find(k)
		out[i] = acc[slotIdx]
	}
	return cpukernel.GroupByResult{Keys: order}, out, nil
}

func (b *SoftwareBackend) GroupBySum(_ context.Context, keys []uint32, signed bool, values []float64, _ pqkernel.GPUPrecision) (cpukernel.GroupByResult, error) {
	res, sums, err := b.groupByFold(keys, signed, values, 0, func(acc, v float64, _ bool) float64 { return acc + v })
	if err != nil {
		return cpukernel.GroupByResult{}, err
	}
	res.Sums = sums
	return res, nil
}

func (b *SoftwareBackend) GroupByMin(_ context.Context, keys []uint32, signed bool, values []float64, _ pqkernel.GPUPrecision) (cpukernel.GroupByResult, error) {
	res, mins, err := b.groupByFold(keys, signed, values, math.Inf(1), func(acc, v float64, first bool) float64 {
		if first {
			return v
		}
		if math.IsNaN(acc) || math.IsNaN(v) {
			if math.IsNaN(acc) {
				return acc
			}
			return v
		}
		if v < acc {
			return v
		}
		return acc
	})
	if err != nil {
		return cpukernel.GroupByResult{}, err
	}
	res.Mins = mins
	return res, nil
}

func (b *SoftwareBackend) GroupByMax(_ context.Context, keys []uint32, signed bool, values []float64, _ pqkernel.GPUPrecision) (cpukernel.GroupByResult, error) {
	res, maxs, err := b.groupByFold(keys, signed, values, math.Inf(-1), func(acc, v float64, first bool) float64 {
		if first {
			return v
		}
		if math.IsNaN(acc) || math.IsNaN(v) {
			if math.IsNaN(acc) {
				return acc
			}
			return v
		}
		if v > acc {
			return v
		}
		return acc
	})
	if err != nil {
		return cpukernel.GroupByResult{}, err
	}
	res.Maxs = maxs
	return res, nil
}

// composite group-by reuses the same open-addressing shape keyed on the
// packed 64-bit (keyA, keyB) composite.
type openTable64 struct {
	capacity int
	occupied []bool
	keys     []uint64
	slot     []int
}

func hashU64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

func newOpenTable64(n int) *openTable64 {
	cap := nextPow2(2*n + 1)
	return &openTable64{capacity: cap, occupied: make([]bool, cap), keys: make([]uint64, cap), slot: make([]int, cap)}
}

func (t *openTable64) findOrInsert(k uint64, nextSlot func() int) (int, bool) {
	idx := int(hashU64(k) % uint64(t.capacity))
	for t.occupied[idx] {
		if t.keys[idx] == k {
			return t.slot[idx], false
		}
		idx = (idx + 1) % t.capacity
	}
	t.occupied[idx] = true
	t.keys[idx] = k
	s := nextSlot()
	t.slot[idx] = s
	return s, true
}

func (t *openTable64) find(k uint64) (int, bool) {
	idx := int(hashU64(k) % uint64(t.capacity))
	for t.occupied[idx] {
		if t.keys[idx] == k {
			return t.slot[idx], true
		}
		idx = (idx + 1) % t.capacity
	}
	return 0, false
}

func (t *openTable64) compactKeys() []uint64 {
	var out []uint64
	for i, occ := range t.occupied {
		if occ {
			out = append(out, t.keys[i])
		}
	}
	return out
}

func packKey(a, c uint32, signed bool) uint64 {
	if signed {
		a = pqmath.PackSignedKey(int32(a))
		c = pqmath.PackSignedKey(int32(c))
	}
	return pqmath.PackComposite64(a, c)
}

func unpackKey(packed uint64, signed bool) (a, c uint32) {
	a, c = pqmath.UnpackComposite64(packed)
	if signed {
		a = uint32(pqmath.UnpackSignedKey(a))
		c = uint32(pqmath.UnpackSignedKey(c))
	}
	return a, c
}

func (b *SoftwareBackend) GroupByCount2(_ context.Context, keysA, keysB []uint32, signed bool) (cpukernel.GroupByResult2, error) {
	if len(keysA) != len(keysB) {
		return cpukernel.GroupByResult2{}, fmt.Errorf("pqkernel/offload: groupByCount2: keyA/keyB length mismatch")
	}
	table := newOpenTable64(len(keysA))
	counts := make([]uint32, 0, len(keysA))
	for i := range keysA {
		k := packKey(keysA[i], keysB[i], signed)
		slotIdx, created := table.findOrInsert(k, func() int { counts = append(counts, 0); return len(counts) - 1 })
		if created {
			counts[slotIdx] = 1
		} else {
			counts[slotIdx]++
		}
	}
	packed := table.compactKeys()
	sort.Slice(packed, func(i, j int) bool { return packed[i] < packed[j] })
	res := cpukernel.GroupByResult2{KeysA: make([]uint32, len(packed)), KeysB: make([]uint32, len(packed)), Counts: make([]uint32, len(packed))}
	for i, k := range packed {
		a, c := unpackKey(k, signed)
		res.KeysA[i], res.KeysB[i] = a, c
		slotIdx, _ := table.find(k)
		res.Counts[i] = counts[slotIdx]
	}
	return res, nil
}

func (b *SoftwareBackend) groupByFold2(keysA, keysB []uint32, signed bool, values []float64, identity float64, combine func(acc, v float64, first bool) float64) (cpukernel.GroupByResult2, []float64, error) {
	if len(keysA) != len(keysB) || len(keysA) != len(values) {
		return cpukernel.GroupByResult2{}, nil, fmt.Errorf("pqkernel/offload: groupby2: length mismatch")
	}
	table := newOpenTable64(len(keysA))
	acc := make([]float64, 0, len(keysA))
	first := make([]bool, 0, len(keysA))
	for i := range keysA {
		k := packKey(keysA[i], keysB[i], signed)
		slotIdx, created := table.findOrInsert(k, func() int { acc = append(acc, identity); first = append(first, true); return len(acc) - 1 })
		acc[slotIdx] = combine(acc[slotIdx], values[i], first[slotIdx])
		first[slotIdx] = false
	}
	packed := table.compactKeys()
	sort.Slice(packed, func(i, j int) bool { return packed[i] < packed[j] })
	res := cpukernel.GroupByResult2{KeysA: make([]uint32, len(packed)), KeysB: make([]uint32, len(packed))}
	out := make([]float64, len(packed))
	for i, k := range packed {
		a, c := unpackKey(k, signed)
		res.KeysA[i], res.KeysB[i] = a, c
		slotIdx, _ := table.find(k)
		out[i] = acc[slotIdx]
	}
	return res, out, nil
}

func (b *SoftwareBackend) GroupBySum2(_ context.Context, keysA, keysB []uint32, signed bool, values []float64, _ pqkernel.GPUPrecision) (cpukernel.GroupByResult2, error) {
	res, sums, err := b.groupByFold2(keysA, keysB, signed, values, 0, func(acc, v float64, _ bool) float64 { return acc + v })
	if err != nil {
		return cpukernel.GroupByResult2{}, err
	}
	res.Sums = sums
	return res, nil
}

func (b *SoftwareBackend) GroupByMin2(_ context.Context, keysA, keysB []uint32, signed bool, values []float64, _ pqkernel.GPUPrecision) (cpukernel.GroupByResult2, error) {
	res, mins, err := b.groupByFold2(keysA, keysB, signed, values, math.Inf(1), func(acc, v float64, first bool) float64 {
		if first {
			return v
		}
		if math.IsNaN(acc) {
			return acc
		}
		if math.IsNaN(v) {
			return v
		}
		if v < acc {
			return v
		}
		return acc
	})
	if err != nil {
		return cpukernel.GroupByResult2{}, err
	}
	res.Mins = mins
	return res, nil
}

func (b *SoftwareBackend) GroupByMax2(_ context.Context, keysA, keysB []uint32, signed bool, values []float64, _ pqkernel.GPUPrecision) (cpukernel.GroupByResult2, error) {
	res, maxs, err := b.groupByFold2(keysA, keysB, signed, values, math.Inf(-1), func(acc, v float64, first bool) float64 {
		if first {
			return v
		}
		if math.IsNaN(acc) {
			return acc
		}
		if math.IsNaN(v) {
			return v
		}
		if v > acc {
			return v
		}
		return acc
	})
	if err != nil {
		return cpukernel.GroupByResult2{}, err
	}
	res.Maxs = maxs
	return res, nil
}

// HashJoin runs the four-pass shape spec §4.L describes: build inserts each
// right row into the open-addressing table (chaining same-key rows in
// slotRows), count/fill probe it once per left row. Output is sorted by
// (left, right) to match cpukernel's ordering contract.
func (b *SoftwareBackend) HashJoin(_ context.Context, left, right []uint32, joinType cpukernel.JoinType) ([]cpukernel.JoinPair, error) {
	table := newOpenTable32(len(right))
	slotRows := make([][]uint32, 0, len(right))
	for ri, k := range right {
		slotIdx, created := table.findOrInsert(k, func() int { slotRows = append(slotRows, nil); return len(slotRows) - 1 })
		if created {
			slotRows[slotIdx] = []uint32{uint32(ri)}
		} else {
			slotRows[slotIdx] = append(slotRows[slotIdx], uint32(ri))
		}
	}

	var pairs []cpukernel.JoinPair
	for li, k := range left {
		slotIdx, ok := table.find(k)
		if !ok {
			if joinType == cpukernel.JoinLeft {
				pairs = append(pairs, cpukernel.JoinPair{Left: uint32(li), Right: cpukernel.JoinSentinel})
			}
			continue
		}
		for _, ri := range slotRows[slotIdx] {
			pairs = append(pairs, cpukernel.JoinPair{Left: uint32(li), Right: ri})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Left != pairs[j].Left {
			return pairs[i].Left < pairs[j].Left
		}
		return pairs[i].Right < pairs[j].Right
	})
	return pairs, nil
}

// MMult computes a*b with classic 2D tile blocking (tileSize), matching
// spec §4.L's tiled-dispatch framing while remaining an ordinary triple
// loop underneath.
func (b *SoftwareBackend) MMult(_ context.Context, a, c []float64, aRows, aCols, bCols int, _ pqkernel.GPUPrecision) ([]float64, error) {
	if len(a) != aRows*aCols {
		return nil, fmt.Errorf("pqkernel/offload: mmult: a has %d elements, want %d", len(a), aRows*aCols)
	}
	if len(c) != aCols*bCols {
		return nil, fmt.Errorf("pqkernel/offload: mmult: b has %d elements, want %d", len(c), aCols*bCols)
	}
	out := make([]float64, aRows*bCols)
	for ii := 0; ii < aRows; ii += tileSize {
		iEnd := min(ii+tileSize, aRows)
		for jj := 0; jj < bCols; jj += tileSize {
			jEnd := min(jj+tileSize, bCols)
			for kk := 0; kk < aCols; kk += tileSize {
				kEnd := min(kk+tileSize, aCols)
				for i := ii; i < iEnd; i++ {
					for k := kk; k < kEnd; k++ {
						av := a[i*aCols+k]
						if av == 0 {
							continue
						}
						for j := jj; j < jEnd; j++ {
							out[i*bCols+j] += av * c[k*bCols+j]
						}
					}
				}
			}
		}
	}
	return out, nil
}

var _ pqkernel.OffloadBackend = (*SoftwareBackend)(nil)
