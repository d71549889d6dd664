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

	"github.com/erigontech/powerquery/pkg/pqcache"
	"github.com/erigontech/powerquery/pkg/pqops"
	"github.com/erigontech/powerquery/pkg/pqquery"
	"github.com/erigontech/powerquery/pkg/pqsource"
	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

func newTestEngine(files map[string]string) *Engine {
	reg := pqsource.NewRegistry()
	reg.RegisterText(pqsource.NewCSVAdapter(files))
	return NewEngine(pqcache.NewMemoryStore(0), reg)
}

func adultsOnly(row []pqvalue.Value, cols []pqtable.Column) bool {
	idx, ok := -1, false
	for i, c := range cols {
		if c.Name == "age" {
			idx, ok = i, true
		}
	}
	if !ok {
		return true
	}
	age := pqvalue.CoerceTo(row[idx], pqvalue.TypeNumber)
	return age.Number >= 18
}

func peopleQuery() *pqquery.Query {
	return pqquery.NewQuery(
		pqquery.SourceDescriptor{Kind: "csv", Params: map[string]any{"location": "people.csv", "hasHeaders": true}},
		[]pqquery.Step{
			{ID: "s1", Name: "filter adults", Operation: pqops.NewFilterRows(pqops.PredicateFunc(adultsOnly))},
		},
	)
}

func TestExecuteQueryMissThenHit(t *testing.T) {
	e := newTestEngine(map[string]string{"people.csv": "name,age\nAva,30\nBo,10\n"})
	q := peopleQuery()
	ctx := context.Background()

	var events []string
	opts := ExecuteOptions{OnProgress: func(ev ProgressEvent) { events = append(events, ev.Type) }}

	tbl, err := e.ExecuteQuery(ctx, q, nil, opts)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.RowCount())
	require.Contains(t, events, "cache:miss")
	require.Contains(t, events, "source:begin")
	require.Contains(t, events, "operator:end")

	events = nil
	tbl2, err := e.ExecuteQuery(ctx, q, nil, opts)
	require.NoError(t, err)
	require.Equal(t, 1, tbl2.RowCount())
	require.Contains(t, events, "cache:hit")
	require.NotContains(t, events, "source:begin")
}

func TestExecuteQueryDifferentParamsDifferentCacheEntry(t *testing.T) {
	e := newTestEngine(map[string]string{"people.csv": "name,age\nAva,30\n"})
	q := peopleQuery()
	ctx := context.Background()

	_, err := e.ExecuteQuery(ctx, q, nil, ExecuteOptions{Params: map[string]any{"region": "us"}})
	require.NoError(t, err)

	var events []string
	_, err = e.ExecuteQuery(ctx, q, nil, ExecuteOptions{
		Params:     map[string]any{"region": "eu"},
		OnProgress: func(ev ProgressEvent) { events = append(events, ev.Type) },
	})
	require.NoError(t, err)
	require.Contains(t, events, "cache:miss")
}

func TestExecuteQueryUnknownSourceKindErrors(t *testing.T) {
	e := newTestEngine(nil)
	q := pqquery.NewQuery(pqquery.SourceDescriptor{Kind: "parquet", Params: map[string]any{}}, nil)
	_, err := e.ExecuteQuery(context.Background(), q, nil, ExecuteOptions{})
	require.Error(t, err)
}

func TestExecuteQueryQueryRefWithoutResolverErrors(t *testing.T) {
	e := newTestEngine(nil)
	q := pqquery.NewQuery(pqquery.SourceDescriptor{Kind: "queryRef", QueryRef: "upstream"}, nil)
	_, err := e.ExecuteQuery(context.Background(), q, nil, ExecuteOptions{})
	require.Error(t, err)
}

func TestExecuteQueryTracerRecordsOperatorsAndCacheHit(t *testing.T) {
	e := newTestEngine(map[string]string{"people.csv": "name,age\nAva,30\nBo,10\n"})
	q := peopleQuery()

	tr := NewTracer(q.ID)
	ctx := WithTracer(context.Background(), tr)
	_, err := e.ExecuteQuery(ctx, q, nil, ExecuteOptions{})
	require.NoError(t, err)
	diag := tr.Finish()
	require.False(t, diag.CacheHit)
	require.Len(t, diag.Operators, 1)
	require.Equal(t, "filter adults", diag.Operators[0].Step)

	tr2 := NewTracer(q.ID)
	ctx2 := WithTracer(context.Background(), tr2)
	_, err = e.ExecuteQuery(ctx2, q, nil, ExecuteOptions{})
	require.NoError(t, err)
	require.True(t, tr2.Finish().CacheHit)
}
