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

package pqstreamops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/powerquery/pkg/pqkernel/cpukernel"
	"github.com/erigontech/powerquery/pkg/pqops"
	"github.com/erigontech/powerquery/pkg/pqspill"
	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

func batchPull(rows [][]pqvalue.Value, batchSize int) PullFunc {
	idx := 0
	return func(ctx context.Context) (pqspill.Batch, bool, error) {
		if idx >= len(rows) {
			return nil, false, nil
		}
		end := idx + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[idx:end]
		idx = end
		return batch, true, nil
	}
}

// TestGroupByStreamWithSpill reconstructs spec §8 scenario 2: 10000 rows
// round-robin over 4 regions, maxInMemoryRows=2048 forces a spill, and the
// result must come back in first-seen region order with sums matching the
// CPU kernel's sum over the same partition.
func TestGroupByStreamWithSpill(t *testing.T) {
	regions := []string{"East", "West", "North", "South"}
	n := 10000
	rows := make([][]pqvalue.Value, n)
	sums := map[string]float64{}
	for i := 0; i < n; i++ {
		region := regions[i%4]
		sales := float64(i%10000) * 0.5
		rows[i] = []pqvalue.Value{pqvalue.String(region), pqvalue.Number(sales)}
		sums[region] += sales
	}
	cols := []pqtable.Column{
		{Name: "region", Type: pqvalue.TypeString},
		{Name: "sales", Type: pqvalue.TypeNumber},
	}
	aggs := []pqops.AggSpec{{OutputName: "total", Column: "sales", Kind: pqops.AggSum}}

	store := pqspill.NewMemoryStore()
	var outRows [][]pqvalue.Value
	emit := func(ctx context.Context, batch pqspill.Batch) error {
		outRows = append(outRows, batch...)
		return nil
	}
	opts := Options{BatchSize: 256, MaxInMemoryRows: 2048}
	err := GroupByStream(context.Background(), batchPull(rows, 512), cols, []string{"region"}, aggs, store, "groupby-test", opts, emit)
	require.NoError(t, err)
	require.Equal(t, 4, len(outRows))

	gotRegions := make([]string, 4)
	for i, row := range outRows {
		gotRegions[i] = row[0].Str
		var partition []float64
		for j := 0; j < n; j++ {
			if regions[j%4] == row[0].Str {
				partition = append(partition, float64(j%10000)*0.5)
			}
		}
		require.InDelta(t, cpukernel.Sum(partition), row[1].Number, 1e-9)
	}
	require.Equal(t, []string{"East", "West", "North", "South"}, gotRegions)
}

func TestSortStreamOrdersAcrossBatches(t *testing.T) {
	cols := []pqtable.Column{{Name: "A", Type: pqvalue.TypeNumber}}
	rows := [][]pqvalue.Value{
		{pqvalue.Number(5)}, {pqvalue.Number(1)}, {pqvalue.Number(3)},
		{pqvalue.Number(4)}, {pqvalue.Number(2)},
	}
	store := pqspill.NewMemoryStore()
	var out [][]pqvalue.Value
	emit := func(ctx context.Context, batch pqspill.Batch) error {
		out = append(out, batch...)
		return nil
	}
	keys := []pqops.SortKey{{Column: "A", Ascending: true}}
	err := SortStream(context.Background(), batchPull(rows, 2), cols, keys, store, "sort-test", Options{BatchSize: 2, MaxInMemoryRows: 2}, emit)
	require.NoError(t, err)
	want := []float64{1, 2, 3, 4, 5}
	got := make([]float64, len(out))
	for i, r := range out {
		got[i] = r[0].Number
	}
	require.Equal(t, want, got)
}

func TestMergeStreamInnerFlat(t *testing.T) {
	leftCols := []pqtable.Column{{Name: "id", Type: pqvalue.TypeNumber}, {Name: "name", Type: pqvalue.TypeString}}
	rightCols := []pqtable.Column{{Name: "id", Type: pqvalue.TypeNumber}, {Name: "amount", Type: pqvalue.TypeNumber}}
	left := [][]pqvalue.Value{
		{pqvalue.Number(1), pqvalue.String("alice")},
		{pqvalue.Number(2), pqvalue.String("bob")},
		{pqvalue.Number(3), pqvalue.String("carol")},
	}
	right := [][]pqvalue.Value{
		{pqvalue.Number(1), pqvalue.Number(100)},
		{pqvalue.Number(1), pqvalue.Number(200)},
		{pqvalue.Number(2), pqvalue.Number(50)},
	}
	store := pqspill.NewMemoryStore()
	var out [][]pqvalue.Value
	emit := func(ctx context.Context, batch pqspill.Batch) error {
		out = append(out, batch...)
		return nil
	}
	opts := MergeOptions{
		JoinType:  pqops.JoinInner,
		Mode:      pqops.JoinFlat,
		LeftKeys:  []string{"id"},
		RightKeys: []string{"id"},
	}
	err := MergeStream(context.Background(), batchPull(left, 2), batchPull(right, 2), leftCols, rightCols, opts, store, "merge-test", nil, emit)
	require.NoError(t, err)
	require.Equal(t, 3, len(out))
}

func TestMergeStreamSpillsPastThreshold(t *testing.T) {
	leftCols := []pqtable.Column{{Name: "id", Type: pqvalue.TypeNumber}}
	rightCols := []pqtable.Column{{Name: "id", Type: pqvalue.TypeNumber}, {Name: "v", Type: pqvalue.TypeNumber}}
	left := [][]pqvalue.Value{{pqvalue.Number(1)}, {pqvalue.Number(2)}, {pqvalue.Number(3)}}
	right := make([][]pqvalue.Value, 10)
	for i := range right {
		right[i] = []pqvalue.Value{pqvalue.Number(float64(i % 3)), pqvalue.Number(float64(i))}
	}
	store := pqspill.NewMemoryStore()
	var spilled bool
	onProgress := func(e ProgressEvent) {
		if e.Type == "stream:spill" {
			spilled = true
		}
	}
	var out [][]pqvalue.Value
	emit := func(ctx context.Context, batch pqspill.Batch) error {
		out = append(out, batch...)
		return nil
	}
	opts := MergeOptions{
		JoinType:        pqops.JoinInner,
		Mode:            pqops.JoinFlat,
		LeftKeys:        []string{"id"},
		RightKeys:       []string{"id"},
		MaxInMemoryRows: 2,
	}
	err := MergeStream(context.Background(), batchPull(left, 1), batchPull(right, 1), leftCols, rightCols, opts, store, "merge-spill-test", onProgress, emit)
	require.NoError(t, err)
	require.True(t, spilled)
	require.Equal(t, 6, len(out))
}
