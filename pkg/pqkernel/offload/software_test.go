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

package offload

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/powerquery/pkg/pqkernel"
	"github.com/erigontech/powerquery/pkg/pqkernel/cpukernel"
)

func TestSoftwareBackendReductionsMatchCPU(t *testing.T) {
	ctx := context.Background()
	b := New()
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6}

	sum, err := b.Sum(ctx, values, pqkernel.GPUPrecisionF64)
	require.NoError(t, err)
	require.Equal(t, cpukernel.Sum(values), sum)

	mn, err := b.Min(ctx, values, pqkernel.GPUPrecisionF64)
	require.NoError(t, err)
	require.Equal(t, cpukernel.Min(values), mn)

	mx, err := b.Max(ctx, values, pqkernel.GPUPrecisionF64)
	require.NoError(t, err)
	require.Equal(t, cpukernel.Max(values), mx)

	avg, err := b.Average(ctx, values, pqkernel.GPUPrecisionF64)
	require.NoError(t, err)
	require.Equal(t, cpukernel.Average(values), avg)
}

func TestSoftwareBackendSortMatchesCPU(t *testing.T) {
	ctx := context.Background()
	b := New()
	values := []float64{math.NaN(), math.Inf(1), 1, math.Inf(-1), 0, -5, 5, 3}
	got, err := b.Sort(ctx, values)
	require.NoError(t, err)
	want := cpukernel.Sort(values)
	require.Equal(t, len(want), len(got))
	for i := range want {
		if math.IsNaN(want[i]) {
			require.True(t, math.IsNaN(got[i]))
			continue
		}
		require.Equal(t, want[i], got[i])
	}
}

func TestSoftwareBackendHistogramMatchesSpecScenario(t *testing.T) {
	values := []float64{-100, 0, 0.5, 1.0, 2.0, math.NaN(), math.Inf(1), math.Inf(-1)}
	bins, err := New().Histogram(context.Background(), values, cpukernel.HistogramOptions{Min: 0, Max: 1, Bins: 2})
	require.NoError(t, err)
	require.Equal(t, []int{3, 4}, bins)
}

func TestSoftwareBackendHashJoinMatchesSpecScenario(t *testing.T) {
	left := []uint32{3, 1, 2, 1, 3}
	right := []uint32{1, 3, 3}
	pairs, err := New().HashJoin(context.Background(), left, right, cpukernel.JoinInner)
	require.NoError(t, err)
	want := []cpukernel.JoinPair{{0, 1}, {0, 2}, {1, 0}, {3, 0}, {4, 1}, {4, 2}}
	require.Equal(t, want, pairs)
}

func TestSoftwareBackendGroupBySumMatchesCPU(t *testing.T) {
	keys := []uint32{uint32(int32(-1)), 2, uint32(int32(-1)), 0}
	values := []float64{10, 20, 5, 1}
	got, err := New().GroupBySum(context.Background(), keys, true, values, pqkernel.GPUPrecisionF64)
	require.NoError(t, err)
	want, err := cpukernel.GroupBySum(keys, true, values)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSoftwareBackendGroupBySum2MatchesCPU(t *testing.T) {
	a := []uint32{1, 1, 0}
	c := []uint32{5, 1, 9}
	vals := []float64{1, 2, 3}
	got, err := New().GroupBySum2(context.Background(), a, c, false, vals, pqkernel.GPUPrecisionF64)
	require.NoError(t, err)
	want, err := cpukernel.GroupBySum2(a, c, false, vals)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSoftwareBackendMMultMatchesCPU(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5, 6} // 2x3
	c := []float64{7, 8, 9, 10, 11, 12} // 3x2
	got, err := New().MMult(context.Background(), a, c, 2, 3, 2, pqkernel.GPUPrecisionF64)
	require.NoError(t, err)
	want, err := cpukernel.MMult(a, c, 2, 3, 2)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSoftwareBackendDeviationShiftsSum(t *testing.T) {
	b := New()
	b.Deviation = 5
	got, err := b.Sum(context.Background(), []float64{1, 2, 3}, pqkernel.GPUPrecisionF64)
	require.NoError(t, err)
	require.Equal(t, float64(6)+5, got)
}
