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

package pqextsort

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/erigontech/powerquery/pkg/pqspill"
	"github.com/erigontech/powerquery/pkg/pqvalue"
	"github.com/stretchr/testify/require"
)

func numCmp(a, b pqspill.Row) int {
	x, y := a[0].Number, b[0].Number
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func batchesOfInts(values []int, batchSize int) []pqspill.Batch {
	var out []pqspill.Batch
	var cur pqspill.Batch
	for _, v := range values {
		cur = append(cur, pqspill.Row{pqvalue.Number(float64(v))})
		if len(cur) == batchSize {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func puller(batches []pqspill.Batch) PullFunc {
	i := 0
	return func(ctx context.Context) (pqspill.Batch, bool, error) {
		if i >= len(batches) {
			return nil, false, nil
		}
		b := batches[i]
		i++
		return b, true, nil
	}
}

func TestExternalSortSmallInputNoSpill(t *testing.T) {
	values := []int{5, 3, 1, 4, 2}
	batches := batchesOfInts(values, 2)
	store := pqspill.NewMemoryStore()
	var out []float64
	err := Run(context.Background(), puller(batches), numCmp, store, "t1", Options{BatchSize: 3, MaxInMemoryRows: 1000}, func(ctx context.Context, b pqspill.Batch) error {
		for _, row := range b {
			out = append(out, row[0].Number)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3, 4, 5}, out)
}

func TestExternalSortSpillsAndMerges(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	n := 5000
	values := make([]int, n)
	for i := range values {
		values[i] = rng.Intn(1000)
	}
	expected := append([]int(nil), values...)
	sort.Ints(expected)

	batches := batchesOfInts(values, 64)
	store := pqspill.NewMemoryStore()
	var out []float64
	err := Run(context.Background(), puller(batches), numCmp, store, "t2", Options{BatchSize: 128, MaxInMemoryRows: 256}, func(ctx context.Context, b pqspill.Batch) error {
		for _, row := range b {
			out = append(out, row[0].Number)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, out, n)
	for i, v := range out {
		require.Equal(t, float64(expected[i]), v)
	}
}
