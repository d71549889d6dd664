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
	"fmt"

	"github.com/erigontech/powerquery/pkg/pqerr"
	"github.com/erigontech/powerquery/pkg/pqops"
	"github.com/erigontech/powerquery/pkg/pqquery"
	"github.com/erigontech/powerquery/pkg/pqsource"
	"github.com/erigontech/powerquery/pkg/pqstream"
	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

// StreamOptions parameterizes executeQueryStreaming.
type StreamOptions struct {
	Params map[string]any
	// BatchSize overrides the adapter's own default when positive.
	BatchSize int
	// Materialize, when true, also accumulates every transformed row into
	// the returned StreamResult.Table; when false the function never
	// builds a full output table, per spec §4.I.
	Materialize bool
	// OnBatch receives each transformed batch and its starting row offset.
	// Returning false stops the stream early.
	OnBatch    func(rowOffset int, values [][]pqvalue.Value) bool
	OnProgress ProgressFunc
}

// StreamResult is what ExecuteQueryStreaming hands back: the (possibly
// static-preview) column list, and the materialized table when
// opts.Materialize was set.
type StreamResult struct {
	Columns []pqtable.Column
	Table   pqtable.ITable
}

// ExecuteQueryStreaming is executeQueryStreaming(query, ctx, opts) from spec
// §4.I: when every step is streamable and the source has a registered
// TextAdapter, batches flow from the adapter through a compiled
// pqstream.Pipeline straight to opts.OnBatch. Otherwise it falls back to a
// single materialized ExecuteQuery call and, if OnBatch is set, delivers the
// whole result as one batch at offset 0.
func (e *Engine) ExecuteQueryStreaming(ctx context.Context, q *pqquery.Query, resolve pqops.Resolver, opts StreamOptions) (*StreamResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, pqerr.ErrAborted
	}

	ops := make([]pqquery.Operation, len(q.Steps))
	streamable := q.Source.Kind != "queryRef"
	for i, s := range q.Steps {
		ops[i] = s.Operation
		if !pqops.IsStreamable(s.Operation) {
			streamable = false
		}
	}
	adapter, hasText := e.sources.Text(q.Source.Kind)
	if !hasText {
		streamable = false
	}

	if !streamable {
		return e.executeQueryStreamingFallback(ctx, q, resolve, opts)
	}
	return e.executeQueryStreamingLive(ctx, q, adapter, ops, opts)
}

func (e *Engine) executeQueryStreamingFallback(ctx context.Context, q *pqquery.Query, resolve pqops.Resolver, opts StreamOptions) (*StreamResult, error) {
	tbl, err := e.ExecuteQuery(ctx, q, resolve, ExecuteOptions{Params: opts.Params, OnProgress: opts.OnProgress})
	if err != nil {
		return nil, err
	}
	if opts.OnBatch != nil {
		n := tbl.RowCount()
		rows := make([][]pqvalue.Value, n)
		for i := 0; i < n; i++ {
			rows[i] = tbl.GetRow(i)
		}
		if len(rows) > 0 {
			opts.OnBatch(0, rows)
		}
	}
	return &StreamResult{Columns: tbl.Columns(), Table: tbl}, nil
}

func (e *Engine) executeQueryStreamingLive(ctx context.Context, q *pqquery.Query, adapter pqsource.TextAdapter, ops []pqquery.Operation, opts StreamOptions) (*StreamResult, error) {
	readOpts := readOptionsFromParams(q.Source.Params, opts.Params)
	if opts.BatchSize > 0 {
		readOpts.BatchSize = opts.BatchSize
	}
	location, _ := q.Source.Params["location"].(string)

	var (
		pipeline  *pqstream.Pipeline
		collected [][]pqvalue.Value
		rowOffset int
		stageErr  error
	)

	emit(opts.OnProgress, ProgressEvent{Type: "source:begin", QueryID: q.ID})
	readErr := adapter.ReadTextStream(ctx, location, readOpts, func(rows [][]pqvalue.Value) bool {
		if err := ctx.Err(); err != nil {
			stageErr = pqerr.ErrAborted
			return false
		}
		if pipeline == nil {
			p, err := pqstream.Compile(ops, inferColumns(rows))
			if err != nil {
				stageErr = err
				return false
			}
			pipeline = p
		}

		out, done, err := pipeline.TransformBatch(rows)
		if err != nil {
			stageErr = err
			return false
		}
		emit(opts.OnProgress, ProgressEvent{Type: "stream:operator", QueryID: q.ID, Extra: map[string]any{"spilled": false}})

		if opts.Materialize {
			collected = append(collected, out...)
		}
		cont := true
		if opts.OnBatch != nil && len(out) > 0 {
			cont = opts.OnBatch(rowOffset, out)
		}
		rowOffset += len(out)
		if done {
			return false
		}
		return cont
	})
	emit(opts.OnProgress, ProgressEvent{Type: "source:end", QueryID: q.ID})

	if stageErr != nil {
		e.metrics.queryErrors.Inc()
		emit(opts.OnProgress, ProgressEvent{Type: "error", QueryID: q.ID, Extra: map[string]any{"err": stageErr.Error()}})
		return nil, stageErr
	}
	if readErr != nil {
		e.metrics.queryErrors.Inc()
		emit(opts.OnProgress, ProgressEvent{Type: "error", QueryID: q.ID, Extra: map[string]any{"err": readErr.Error()}})
		return nil, readErr
	}

	outCols := []pqtable.Column{}
	if pipeline != nil {
		outCols = pipeline.Columns()
	}
	result := &StreamResult{Columns: outCols}
	if opts.Materialize {
		tbl, err := pqtable.NewDataTable(outCols, collected)
		if err != nil {
			return nil, err
		}
		result.Table = tbl
	}
	return result, nil
}

// inferColumns assigns generic "Column1".."ColumnN" names to the first
// streamed batch's width, the same default pqsource.CSVAdapter uses for a
// headerless read. A streamable pipeline that needs real column names
// starts with a promoteHeaders step, exactly like a materialized query over
// the same headerless source would.
func inferColumns(rows [][]pqvalue.Value) []pqtable.Column {
	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}
	cols := make([]pqtable.Column, width)
	for i := range cols {
		cols[i] = pqtable.Column{Name: fmt.Sprintf("Column%d", i+1), Type: pqvalue.TypeAny}
	}
	return cols
}
