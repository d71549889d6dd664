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
	"sort"

	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

func applyFilterRows(t pqtable.ITable, op FilterRows) (pqtable.ITable, error) {
	var rows [][]pqvalue.Value
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		if op.Predicate.Eval(cells, t.Columns()) {
			rows = append(rows, append([]pqvalue.Value(nil), cells...))
		}
		return true
	})
	return materialize(t.Columns(), rows), nil
}

// applySortRows is a stable multi-key sort: ties on every key fall back to
// original row order, matching spec §4.D's sortRows contract.
func applySortRows(t pqtable.ITable, op SortRows) (pqtable.ITable, error) {
	idx := make([]int, len(op.Keys))
	for i, k := range op.Keys {
		ci, ok := t.GetColumnIndex(k.Column)
		if !ok {
			return nil, fmt.Errorf("pqops: sortRows: unknown column %q", k.Column)
		}
		idx[i] = ci
	}
	n := t.RowCount()
	rows := make([][]pqvalue.Value, n)
	for r := 0; r < n; r++ {
		rows[r] = t.GetRow(r)
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rows[order[a]], rows[order[b]]
		for i, k := range op.Keys {
			va, vb := ra[idx[i]], rb[idx[i]]
			if pqvalue.Equals(va, vb) {
				continue
			}
			lt := pqvalue.Less(va, vb, k.NullsFirst)
			gt := pqvalue.Less(vb, va, k.NullsFirst)
			if !lt && !gt {
				continue
			}
			if k.Ascending {
				return lt
			}
			return gt
		}
		return false
	})
	out := make([][]pqvalue.Value, n)
	for i, o := range order {
		out[i] = append([]pqvalue.Value(nil), rows[o]...)
	}
	return materialize(t.Columns(), out), nil
}

func applyDistinctRows(t pqtable.ITable, op DistinctRows) (pqtable.ITable, error) {
	idx := make([]int, 0, len(op.Columns))
	if len(op.Columns) == 0 {
		for i := range t.Columns() {
			idx = append(idx, i)
		}
	} else {
		var err error
		idx, err = columnIndices(t, op.Columns)
		if err != nil {
			return nil, err
		}
	}
	seen := map[string]bool{}
	var rows [][]pqvalue.Value
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		key := rowKey(cells, idx)
		if seen[key] {
			return true
		}
		seen[key] = true
		rows = append(rows, append([]pqvalue.Value(nil), cells...))
		return true
	})
	return materialize(t.Columns(), rows), nil
}

func rowKey(cells []pqvalue.Value, idx []int) string {
	var b []byte
	for _, i := range idx {
		b = append(b, pqvalue.ValueKey(cells[i])...)
		b = append(b, 0x1f)
	}
	return string(b)
}

func applyRemoveRowsWithErrors(t pqtable.ITable, op RemoveRowsWithErrors) (pqtable.ITable, error) {
	idx := []int(nil)
	if len(op.Columns) > 0 {
		var err error
		idx, err = columnIndices(t, op.Columns)
		if err != nil {
			return nil, err
		}
	}
	var rows [][]pqvalue.Value
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		check := cells
		if idx != nil {
			check = make([]pqvalue.Value, len(idx))
			for i, ci := range idx {
				check[i] = cells[ci]
			}
		}
		for _, v := range check {
			if pqvalue.IsError(v) {
				return true
			}
		}
		rows = append(rows, append([]pqvalue.Value(nil), cells...))
		return true
	})
	return materialize(t.Columns(), rows), nil
}

func applyReplaceValues(t pqtable.ITable, op ReplaceValues) (pqtable.ITable, error) {
	ci, ok := t.GetColumnIndex(op.Column)
	if !ok {
		return nil, fmt.Errorf("pqops: replaceValues: unknown column %q", op.Column)
	}
	rows := make([][]pqvalue.Value, t.RowCount())
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		row := append([]pqvalue.Value(nil), cells...)
		if pqvalue.Equals(row[ci], op.Find) {
			row[ci] = op.Replace
		}
		rows[r] = row
		return true
	})
	return materialize(t.Columns(), rows), nil
}

func applyReplaceErrorValues(t pqtable.ITable, op ReplaceErrorValues) (pqtable.ITable, error) {
	idx := []int(nil)
	if len(op.Columns) > 0 {
		var err error
		idx, err = columnIndices(t, op.Columns)
		if err != nil {
			return nil, err
		}
	} else {
		for i := range t.Columns() {
			idx = append(idx, i)
		}
	}
	replace := map[int]bool{}
	for _, i := range idx {
		replace[i] = true
	}
	rows := make([][]pqvalue.Value, t.RowCount())
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		row := append([]pqvalue.Value(nil), cells...)
		for i, v := range row {
			if replace[i] && pqvalue.IsError(v) {
				row[i] = op.Replacement
			}
		}
		rows[r] = row
		return true
	})
	return materialize(t.Columns(), rows), nil
}

func applyFillDown(t pqtable.ITable, op FillDown) (pqtable.ITable, error) {
	idx, err := columnIndices(t, op.Columns)
	if err != nil {
		return nil, err
	}
	last := make([]pqvalue.Value, len(idx))
	have := make([]bool, len(idx))
	n := t.RowCount()
	rows := make([][]pqvalue.Value, n)
	for r := 0; r < n; r++ {
		row := append([]pqvalue.Value(nil), t.GetRow(r)...)
		for i, ci := range idx {
			if pqvalue.IsNull(row[ci]) {
				if have[i] {
					row[ci] = last[i]
				}
			} else {
				last[i] = row[ci]
				have[i] = true
			}
		}
		rows[r] = row
	}
	return materialize(t.Columns(), rows), nil
}

func applyTake(t pqtable.ITable, op Take) (pqtable.ITable, error) {
	n := op.N
	if n < 0 {
		n = 0
	}
	return t.Head(n), nil
}

func applySkip(t pqtable.ITable, op Skip) (pqtable.ITable, error) {
	n := op.N
	if n < 0 {
		n = 0
	}
	if n >= t.RowCount() {
		return materialize(t.Columns(), nil), nil
	}
	var rows [][]pqvalue.Value
	for r := n; r < t.RowCount(); r++ {
		rows = append(rows, append([]pqvalue.Value(nil), t.GetRow(r)...))
	}
	return materialize(t.Columns(), rows), nil
}

func applyRemoveRows(t pqtable.ITable, op RemoveRows) (pqtable.ITable, error) {
	start, count := op.Offset, op.Count
	if start < 0 {
		start = 0
	}
	end := start + count
	var rows [][]pqvalue.Value
	for r := 0; r < t.RowCount(); r++ {
		if r >= start && r < end {
			continue
		}
		rows = append(rows, append([]pqvalue.Value(nil), t.GetRow(r)...))
	}
	return materialize(t.Columns(), rows), nil
}
