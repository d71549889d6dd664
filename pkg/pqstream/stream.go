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

// Package pqstream implements the streaming pipeline compiler of spec §4.E:
// a sequence of streamable operators is compiled once into a closure that
// consumes one batch of rows at a time, carrying whatever cross-batch state
// an operator needs (take's remaining count, skip/removeRows's running row
// index, distinctRows's seen set, fillDown's last-non-null values,
// addIndexColumn's running counter, promoteHeaders's one-time header
// rebind) without ever materializing the whole table.
package pqstream

import (
	"fmt"

	"github.com/erigontech/powerquery/pkg/pqops"
	"github.com/erigontech/powerquery/pkg/pqquery"
	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

// stageRun is the uniform shape every compiled operator reduces to: consume
// a batch under the columns currently in effect, produce the next batch,
// the columns now in effect (only promoteHeaders ever changes these), and
// whether this stage has now permanently stopped producing rows.
type stageRun func(rows [][]pqvalue.Value, cols []pqtable.Column) (out [][]pqvalue.Value, outCols []pqtable.Column, exhausted bool, err error)

type compiledStage struct {
	run stageRun
}

// Pipeline is the result of Compile: the static column preview plus the
// per-batch transform closure.
type Pipeline struct {
	outColumns  []pqtable.Column
	liveColumns []pqtable.Column
	stages      []compiledStage
	done        bool
}

// Columns is the compile-time static column preview. When the pipeline
// contains promoteHeaders its names are placeholders (the input column
// names, unchanged) until the first batch has actually run — see
// LiveColumns.
func (p *Pipeline) Columns() []pqtable.Column { return p.outColumns }

// LiveColumns reflects the columns actually in effect after the most
// recent TransformBatch call (identical to Columns until a promoteHeaders
// stage consumes its header row).
func (p *Pipeline) LiveColumns() []pqtable.Column { return p.liveColumns }

// Done reports whether the pipeline has permanently stopped producing rows
// (e.g. a take stage has been satisfied).
func (p *Pipeline) Done() bool { return p.done }

// TransformBatch runs one batch of rows through every stage in order.
func (p *Pipeline) TransformBatch(rows [][]pqvalue.Value) ([][]pqvalue.Value, bool, error) {
	if p.done {
		return nil, true, nil
	}
	curRows, curCols := rows, p.liveColumns
	for _, st := range p.stages {
		var exhausted bool
		var err error
		curRows, curCols, exhausted, err = st.run(curRows, curCols)
		if err != nil {
			return nil, p.done, err
		}
		if exhausted {
			p.done = true
		}
	}
	p.liveColumns = curCols
	return curRows, p.done, nil
}

// Compile builds a Pipeline from a sequence of operators, erroring if any
// operator is not streamable (spec §4.E) or if more than one promoteHeaders
// appears.
func Compile(ops []pqquery.Operation, inColumns []pqtable.Column) (*Pipeline, error) {
	promoteCount := 0
	for _, op := range ops {
		if !pqops.IsStreamable(op) {
			return nil, fmt.Errorf("pqstream: operation %q is not streamable", op.Kind())
		}
		if _, ok := op.(pqops.PromoteHeaders); ok {
			promoteCount++
		}
	}
	if promoteCount > 1 {
		return nil, fmt.Errorf("pqstream: at most one promoteHeaders is allowed per streaming pipeline")
	}

	cols := inColumns
	stages := make([]compiledStage, 0, len(ops))
	for _, op := range ops {
		st, nextCols, err := compileStage(op, cols)
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
		cols = nextCols
	}
	return &Pipeline{outColumns: cols, liveColumns: inColumns, stages: stages}, nil
}

func resolveColumnIndices(cols []pqtable.Column, names []string) ([]int, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		found := false
		for ci, c := range cols {
			if c.Name == n {
				idx[i] = ci
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("pqstream: unknown column %q", n)
		}
	}
	return idx, nil
}

func rowKey(row []pqvalue.Value, idx []int) string {
	var b []byte
	for _, i := range idx {
		b = append(b, pqvalue.ValueKey(row[i])...)
		b = append(b, 0x1f)
	}
	return string(b)
}

func tableRows(t pqtable.ITable) [][]pqvalue.Value {
	n := t.RowCount()
	rows := make([][]pqvalue.Value, n)
	for i := 0; i < n; i++ {
		rows[i] = t.GetRow(i)
	}
	return rows
}

// staticColumns runs op against an empty table under cols to compute its
// output column shape without touching any row data; every streamable op's
// column shape is data-independent (splitColumn only streams with explicit
// target names, and promoteHeaders is a documented no-op on zero rows), so
// this single trick covers the whole streamable set.
func staticColumns(op pqquery.Operation, cols []pqtable.Column) ([]pqtable.Column, error) {
	t := pqtable.MustNewDataTable(cols, nil)
	out, err := pqops.ApplyOperation(t, op, nil)
	if err != nil {
		return nil, err
	}
	return out.Columns(), nil
}

func compileStage(op pqquery.Operation, cols []pqtable.Column) (compiledStage, []pqtable.Column, error) {
	outCols, err := staticColumns(op, cols)
	if err != nil {
		return compiledStage{}, nil, err
	}

	switch o := op.(type) {
	case pqops.Take:
		remaining := o.N
		if remaining < 0 {
			remaining = 0
		}
		run := func(rows [][]pqvalue.Value, cols []pqtable.Column) ([][]pqvalue.Value, []pqtable.Column, bool, error) {
			if remaining <= 0 {
				return nil, cols, true, nil
			}
			if len(rows) < remaining {
				remaining -= len(rows)
				return rows, cols, false, nil
			}
			out := rows[:remaining]
			remaining = 0
			return out, cols, true, nil
		}
		return compiledStage{run: run}, outCols, nil

	case pqops.Skip:
		remaining := o.N
		if remaining < 0 {
			remaining = 0
		}
		run := func(rows [][]pqvalue.Value, cols []pqtable.Column) ([][]pqvalue.Value, []pqtable.Column, bool, error) {
			if remaining <= 0 {
				return rows, cols, false, nil
			}
			if len(rows) <= remaining {
				remaining -= len(rows)
				return nil, cols, false, nil
			}
			out := rows[remaining:]
			remaining = 0
			return out, cols, false, nil
		}
		return compiledStage{run: run}, outCols, nil

	case pqops.RemoveRows:
		cursor := 0
		start, end := o.Offset, o.Offset+o.Count
		run := func(rows [][]pqvalue.Value, cols []pqtable.Column) ([][]pqvalue.Value, []pqtable.Column, bool, error) {
			out := make([][]pqvalue.Value, 0, len(rows))
			for i, row := range rows {
				idx := cursor + i
				if idx >= start && idx < end {
					continue
				}
				out = append(out, row)
			}
			cursor += len(rows)
			return out, cols, false, nil
		}
		return compiledStage{run: run}, outCols, nil

	case pqops.DistinctRows:
		idx, err := distinctIndices(cols, o.Columns)
		if err != nil {
			return compiledStage{}, nil, err
		}
		seen := map[string]bool{}
		run := func(rows [][]pqvalue.Value, cols []pqtable.Column) ([][]pqvalue.Value, []pqtable.Column, bool, error) {
			var out [][]pqvalue.Value
			for _, row := range rows {
				k := rowKey(row, idx)
				if seen[k] {
					continue
				}
				seen[k] = true
				out = append(out, row)
			}
			return out, cols, false, nil
		}
		return compiledStage{run: run}, outCols, nil

	case pqops.FillDown:
		idx, err := resolveColumnIndices(cols, o.Columns)
		if err != nil {
			return compiledStage{}, nil, err
		}
		last := make([]pqvalue.Value, len(idx))
		have := make([]bool, len(idx))
		run := func(rows [][]pqvalue.Value, cols []pqtable.Column) ([][]pqvalue.Value, []pqtable.Column, bool, error) {
			out := make([][]pqvalue.Value, len(rows))
			for r, row := range rows {
				nr := append([]pqvalue.Value(nil), row...)
				for i, ci := range idx {
					if pqvalue.IsNull(nr[ci]) {
						if have[i] {
							nr[ci] = last[i]
						}
					} else {
						last[i] = nr[ci]
						have[i] = true
					}
				}
				out[r] = nr
			}
			return out, cols, false, nil
		}
		return compiledStage{run: run}, outCols, nil

	case pqops.AddIndexColumn:
		next := o.InitialValue
		run := func(rows [][]pqvalue.Value, cols []pqtable.Column) ([][]pqvalue.Value, []pqtable.Column, bool, error) {
			out := make([][]pqvalue.Value, len(rows))
			for r, row := range rows {
				nr := append(append([]pqvalue.Value(nil), row...), pqvalue.Number(float64(next)))
				next += o.Increment
				out[r] = nr
			}
			return out, cols, false, nil
		}
		return compiledStage{run: run}, outCols, nil

	case pqops.PromoteHeaders:
		consumed := false
		run := func(rows [][]pqvalue.Value, cols []pqtable.Column) ([][]pqvalue.Value, []pqtable.Column, bool, error) {
			if consumed || len(rows) == 0 {
				return rows, cols, false, nil
			}
			header := rows[0]
			names := make([]string, len(header))
			for i, v := range header {
				names[i] = pqvalue.ValueToString(v)
			}
			names = pqtable.MakeUniqueColumnNames(names)
			newCols := make([]pqtable.Column, len(names))
			for i, n := range names {
				typ := pqvalue.TypeAny
				if i < len(cols) {
					typ = cols[i].Type
				}
				newCols[i] = pqtable.Column{Name: n, Type: typ}
			}
			consumed = true
			return rows[1:], newCols, false, nil
		}
		return compiledStage{run: run}, outCols, nil

	default:
		// Stateless column/row transforms: re-run applyOperation over an
		// ephemeral table built from this batch. Correct because none of
		// these depend on any other batch.
		run := func(rows [][]pqvalue.Value, cols []pqtable.Column) ([][]pqvalue.Value, []pqtable.Column, bool, error) {
			t := pqtable.MustNewDataTable(cols, rows)
			out, err := pqops.ApplyOperation(t, op, nil)
			if err != nil {
				return nil, cols, false, err
			}
			return tableRows(out), out.Columns(), false, nil
		}
		return compiledStage{run: run}, outCols, nil
	}
}

func distinctIndices(cols []pqtable.Column, names []string) ([]int, error) {
	if len(names) == 0 {
		idx := make([]int, len(cols))
		for i := range cols {
			idx[i] = i
		}
		return idx, nil
	}
	return resolveColumnIndices(cols, names)
}
