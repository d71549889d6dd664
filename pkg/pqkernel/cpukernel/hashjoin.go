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
	"sort"
)

// JoinType selects hashJoin's output contract for unmatched left rows.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
)

// JoinSentinel is the reserved right-index value hashJoin emits for an
// unmatched left row under a left join, and the dedicated overflow slot the
// reference open-addressing table reserves for the literal key 0xFFFFFFFF
// (spec §4.K).
const JoinSentinel uint32 = 0xFFFFFFFF

// JoinPair is one output row of hashJoin: (leftIndex, rightIndex).
type JoinPair struct {
	Left, Right uint32
}

// HashJoin builds a probe table over right keys (conceptually the
// open-addressing, linear-probed table with a dedicated sentinel-key
// overflow slot spec §4.K describes; a Go map gives the same externally
// observable chain-per-key behavior without hand-rolling open addressing)
// and then probes it once per left row, emitting matches sorted by
// (leftIndex, rightIndex) ascending. Left and right keys must share
// signedness — mixing bit patterns would silently corrupt comparisons.
func HashJoin(left, right []uint32, joinType JoinType) ([]JoinPair, error) {
	buckets := make(map[uint32][]uint32, len(right))
	for ri, k := range right {
		buckets[k] = append(buckets[k], uint32(ri))
	}

	var pairs []JoinPair
	for li, k := range left {
		matches, ok := buckets[k]
		if !ok || len(matches) == 0 {
			if joinType == JoinLeft {
				pairs = append(pairs, JoinPair{Left: uint32(li), Right: JoinSentinel})
			}
			continue
		}
		for _, ri := range matches {
			pairs = append(pairs, JoinPair{Left: uint32(li), Right: ri})
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

// ValidateJoinKeys reports a contract violation when left/right key arrays
// disagree about the join's cardinality expectations the caller already
// established (e.g. both sides must be non-nil); kept as a separate check
// so callers can surface a precise "unknown column"-style error instead of
// a panic on a nil slice.
func ValidateJoinKeys(left, right []uint32) error {
	if left == nil || right == nil {
		return fmt.Errorf("pqkernel/cpukernel: hashJoin: both key arrays must be non-nil")
	}
	return nil
}
