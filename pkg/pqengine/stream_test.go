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

package pqengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/powerquery/pkg/pqops"
	"github.com/erigontech/powerquery/pkg/pqquery"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

func streamableCountQuery(batchSize int) *pqquery.Query {
	return &pqquery.Query{
		ID:     "nums",
		Source: pqquery.SourceDescriptor{Kind: "csv", Params: map[string]any{"location": "nums.csv", "hasHeaders": false}},
		Steps: []pqquery.Step{
			{ID: "s1", Name: "take 3", Operation: pqops.NewTake(3)},
		},
	}
}

func TestExecuteQueryStreamingLivePushesBatches(t *testing.T) {
	e := newTestEngine(map[string]string{"nums.csv": "1\n2\n3\n4\n5\n"})
	q := streamableCountQuery(2)

	var total int
	var batchCount int
	res, err := e.ExecuteQueryStreaming(context.Background(), q, nil, StreamOptions{
		BatchSize:   2,
		Materialize: true,
		OnBatch: func(rowOffset int, values [][]pqvalue.Value) bool {
			batchCount++
			total += len(values)
			return true
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.NotNil(t, res.Table)
	require.Equal(t, 3, res.Table.RowCount())
	require.GreaterOrEqual(t, batchCount, 1)
}

func TestExecuteQueryStreamingFallsBackOnMergeStep(t *testing.T) {
	e := newTestEngine(map[string]string{"nums.csv": "1\n2\n3\n"})
	q := &pqquery.Query{
		ID:     "withMerge",
		Source: pqquery.SourceDescriptor{Kind: "csv", Params: map[string]any{"location": "nums.csv"}},
		Steps: []pqquery.Step{
			{ID: "s1", Name: "merge", Operation: pqops.NewAppend(nil)},
		},
	}

	var batches int
	res, err := e.ExecuteQueryStreaming(context.Background(), q, nil, StreamOptions{
		OnBatch: func(rowOffset int, values [][]pqvalue.Value) bool { batches++; return true },
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Table.RowCount())
	require.Equal(t, 1, batches)
}

func TestExecuteQueryStreamingStopsEarly(t *testing.T) {
	e := newTestEngine(map[string]string{"nums.csv": "1\n2\n3\n4\n5\n6\n"})
	q := &pqquery.Query{
		ID:     "nums2",
		Source: pqquery.SourceDescriptor{Kind: "csv", Params: map[string]any{"location": "nums.csv"}},
	}

	var batches int
	_, err := e.ExecuteQueryStreaming(context.Background(), q, nil, StreamOptions{
		BatchSize: 1,
		OnBatch: func(rowOffset int, values [][]pqvalue.Value) bool {
			batches++
			return batches < 2
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, batches)
}
