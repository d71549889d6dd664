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

// Package cpukernel is the scalar reference implementation of spec §4.K: the
// ground truth every offloaded kernel is validated against. Every kernel here
// is a pure function over plain float64/uint32 slices — no Value/Table
// dependency — so it can run identically whether called from the
// materialized operators, the streaming aggregators, or a validation
// cross-check triggered by the dispatcher.
package cpukernel

import (
	"fmt"
	"math"
)

// Sum mirrors a simple left-to-right accumulation; empty input sums to 0.
func Sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// Min returns +Inf for empty input so it composes as the identity of min.
func Min(values []float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		if v < m || math.IsNaN(v) {
			m = v
		}
	}
	return m
}

// Max returns -Inf for empty input so it composes as the identity of max.
func Max(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		if v > m || math.IsNaN(v) {
			m = v
		}
	}
	return m
}

// Average is NaN for empty input (0/0), matching the JS-source semantics.
func Average(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return Sum(values) / float64(len(values))
}

// Count is just len(values); kept as a kernel entry point so the dispatcher
// can route it like every other reduction.
func Count(values []float64) int { return len(values) }

// SumProduct requires equal-length inputs; mismatched lengths raise a clear
// contract-violation error rather than silently truncating.
func SumProduct(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("pqkernel/cpukernel: sumproduct length mismatch: %d vs %d", len(a), len(b))
	}
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s, nil
}
