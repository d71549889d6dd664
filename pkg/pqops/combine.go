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

package pqops

import (
	"fmt"

	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

// Resolver looks up the materialized table a merge/append step depends on;
// engine code supplies this by running the dependency's query first.
type Resolver func(queryID string) (pqtable.ITable, error)

// applyMerge is a hash join: the right side is always built into a probe
// map, whichever side is smaller (the build-right-probe-left convention),
// and the left side streams through it.
// JoinFlat copies the right row's non-key columns alongside the left row;
// JoinNested nests the matching right rows as one Table-kind cell instead.
func applyMerge(t pqtable.ITable, op Merge, resolve Resolver) (pqtable.ITable, error) {
	if len(op.LeftKeys) != len(op.RightKeys) {
		return nil, fmt.Errorf("pqops: merge: %d left keys vs %d right keys", len(op.LeftKeys), len(op.RightKeys))
	}
	right, err := resolve(op.RightQuery)
	if err != nil {
		return nil, fmt.Errorf("pqops: merge: resolving %q: %w", op.RightQuery, err)
	}
	leftIdx, err := columnIndices(t, op.LeftKeys)
	if err != nil {
		return nil, err
	}
	rightIdx, err := columnIndices(right, op.RightKeys)
	if err != nil {
		return nil, err
	}

	buckets := map[string][]int{}
	for r := 0; r < right.RowCount(); r++ {
		row := right.GetRow(r)
		k := rowKey(row, rightIdx)
		buckets[k] = append(buckets[k], r)
	}

	if op.Mode == JoinNested {
		return applyMergeNested(t, right, op, leftIdx, buckets)
	}
	return applyMergeFlat(t, right, op, leftIdx, rightIdx, buckets)
}

func applyMergeFlat(left, right pqtable.ITable, op Merge, leftIdx, rightIdx []int, buckets map[string][]int) (pqtable.ITable, error) {
	rightKeySet := map[int]bool{}
	for _, i := range rightIdx {
		rightKeySet[i] = true
	}
	var rightCols []pqtable.Column
	var rightKeepIdx []int
	for i, c := range right.Columns() {
		if !rightKeySet[i] {
			rightCols = append(rightCols, c)
			rightKeepIdx = append(rightKeepIdx, i)
		}
	}
	cols := append(append([]pqtable.Column(nil), left.Columns()...), rightCols...)
	cols = renameUnique(cols)

	var rows [][]pqvalue.Value
	for r := 0; r < left.RowCount(); r++ {
		lrow := left.GetRow(r)
		k := rowKey(lrow, leftIdx)
		matches := buckets[k]
		if len(matches) == 0 {
			if op.JoinType == JoinLeft {
				row := append([]pqvalue.Value(nil), lrow...)
				for range rightKeepIdx {
					row = append(row, pqvalue.Null)
				}
				rows = append(rows, row)
			}
			continue
		}
		for _, rr := range matches {
			rrow := right.GetRow(rr)
			row := append([]pqvalue.Value(nil), lrow...)
			for _, ci := range rightKeepIdx {
				row = append(row, rrow[ci])
			}
			rows = append(rows, row)
		}
	}
	return materialize(cols, rows), nil
}

func applyMergeNested(left, right pqtable.ITable, op Merge, leftIdx []int, buckets map[string][]int) (pqtable.ITable, error) {
	cols := append(append([]pqtable.Column(nil), left.Columns()...),
		pqtable.Column{Name: op.NewColumnName, Type: pqvalue.TypeAny})
	cols = renameUnique(cols)

	var rows [][]pqvalue.Value
	for r := 0; r < left.RowCount(); r++ {
		lrow := left.GetRow(r)
		k := rowKey(lrow, leftIdx)
		matches := buckets[k]
		if len(matches) == 0 && op.JoinType != JoinLeft {
			continue
		}
		var nestedRows [][]pqvalue.Value
		for _, rr := range matches {
			nestedRows = append(nestedRows, append([]pqvalue.Value(nil), right.GetRow(rr)...))
		}
		nested := materialize(right.Columns(), nestedRows)
		row := append([]pqvalue.Value(nil), lrow...)
		row = append(row, pqvalue.Value{Kind: pqvalue.KindTable, Table: nested})
		rows = append(rows, row)
	}
	return materialize(cols, rows), nil
}

// applyAppend unions the input table with every referenced query's table,
// ordering output columns by first appearance and filling null for any
// table that lacks a given column, the way the teacher's schema-reconciling
// append helpers behave for heterogeneous sources.
func applyAppend(t pqtable.ITable, op Append, resolve Resolver) (pqtable.ITable, error) {
	tables := []pqtable.ITable{t}
	for _, q := range op.Queries {
		other, err := resolve(q)
		if err != nil {
			return nil, fmt.Errorf("pqops: append: resolving %q: %w", q, err)
		}
		tables = append(tables, other)
	}

	var cols []pqtable.Column
	seen := map[string]bool{}
	for _, tb := range tables {
		for _, c := range tb.Columns() {
			if !seen[c.Name] {
				seen[c.Name] = true
				cols = append(cols, c)
			}
		}
	}
	colPos := make(map[string]int, len(cols))
	for i, c := range cols {
		colPos[c.Name] = i
	}

	var rows [][]pqvalue.Value
	for _, tb := range tables {
		offsets := make([]int, len(tb.Columns()))
		for i, c := range tb.Columns() {
			offsets[i] = colPos[c.Name]
		}
		for r := 0; r < tb.RowCount(); r++ {
			row := make([]pqvalue.Value, len(cols))
			for i := range row {
				row[i] = pqvalue.Null
			}
			for i, v := range tb.GetRow(r) {
				row[offsets[i]] = v
			}
			rows = append(rows, row)
		}
	}
	return materialize(cols, rows), nil
}
