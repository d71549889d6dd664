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

type groupAcc struct {
	keyCells []pqvalue.Value
	count    int
	sums     map[int]float64
	mins     map[int]pqvalue.Value
	maxs     map[int]pqvalue.Value
	distinct map[int]map[string]bool
}

// applyGroupBy is the materialized counterpart of the streaming group-by in
// spec §4.H: here the whole table fits in memory so a single pass over an
// order-preserving map suffices, no external sort decoration needed.
func applyGroupBy(t pqtable.ITable, op GroupBy) (pqtable.ITable, error) {
	keyIdx, err := columnIndices(t, op.Keys)
	if err != nil {
		return nil, err
	}
	aggCols := make([]int, len(op.Aggs))
	for i, a := range op.Aggs {
		if a.Kind == AggCount {
			aggCols[i] = -1
			continue
		}
		ci, ok := t.GetColumnIndex(a.Column)
		if !ok {
			return nil, fmt.Errorf("pqops: groupBy: unknown column %q", a.Column)
		}
		aggCols[i] = ci
	}

	order := make([]string, 0)
	groups := map[string]*groupAcc{}
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		key := rowKey(cells, keyIdx)
		g, ok := groups[key]
		if !ok {
			keyCells := make([]pqvalue.Value, len(keyIdx))
			for i, ci := range keyIdx {
				keyCells[i] = cells[ci]
			}
			g = &groupAcc{
				keyCells: keyCells,
				sums:     map[int]float64{},
				mins:     map[int]pqvalue.Value{},
				maxs:     map[int]pqvalue.Value{},
				distinct: map[int]map[string]bool{},
			}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
		for i, a := range op.Aggs {
			ci := aggCols[i]
			if ci < 0 {
				continue
			}
			v := cells[ci]
			switch a.Kind {
			case AggSum, AggAverage:
				n := pqvalue.CoerceTo(v, pqvalue.TypeNumber)
				if !pqvalue.IsNull(n) {
					g.sums[i] += n.Number
				}
			case AggMin:
				if cur, ok := g.mins[i]; !ok || pqvalue.Compare(v, cur) < 0 {
					g.mins[i] = v
				}
			case AggMax:
				if cur, ok := g.maxs[i]; !ok || pqvalue.Compare(v, cur) > 0 {
					g.maxs[i] = v
				}
			case AggCountDistinct:
				if g.distinct[i] == nil {
					g.distinct[i] = map[string]bool{}
				}
				g.distinct[i][pqvalue.ValueKey(v)] = true
			}
		}
		return true
	})

	cols := make([]pqtable.Column, 0, len(op.Keys)+len(op.Aggs))
	for _, k := range op.Keys {
		ci, _ := t.GetColumnIndex(k)
		cols = append(cols, t.Columns()[ci])
	}
	for _, a := range op.Aggs {
		typ := pqvalue.TypeNumber
		if a.Kind == AggMin || a.Kind == AggMax {
			if ci, ok := t.GetColumnIndex(a.Column); ok {
				typ = t.Columns()[ci].Type
			}
		}
		cols = append(cols, pqtable.Column{Name: a.OutputName, Type: typ})
	}
	cols = renameUnique(cols)

	rows := make([][]pqvalue.Value, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := append([]pqvalue.Value(nil), g.keyCells...)
		for i, a := range op.Aggs {
			switch a.Kind {
			case AggCount:
				row = append(row, pqvalue.Number(float64(g.count)))
			case AggSum:
				row = append(row, pqvalue.Number(g.sums[i]))
			case AggAverage:
				if g.count == 0 {
					row = append(row, pqvalue.Null)
				} else {
					row = append(row, pqvalue.Number(g.sums[i]/float64(g.count)))
				}
			case AggMin:
				if v, ok := g.mins[i]; ok {
					row = append(row, v)
				} else {
					row = append(row, pqvalue.Null)
				}
			case AggMax:
				if v, ok := g.maxs[i]; ok {
					row = append(row, v)
				} else {
					row = append(row, pqvalue.Null)
				}
			case AggCountDistinct:
				row = append(row, pqvalue.Number(float64(len(g.distinct[i]))))
			}
		}
		rows = append(rows, row)
	}
	return materialize(cols, rows), nil
}

// applyPivot turns distinct values of RowColumn into output columns, each
// holding the aggregate of ValueColumn for rows matching that pivot value;
// every non-pivot, non-value column forms the grouping key.
func applyPivot(t pqtable.ITable, op Pivot) (pqtable.ITable, error) {
	rowColIdx, ok := t.GetColumnIndex(op.RowColumn)
	if !ok {
		return nil, fmt.Errorf("pqops: pivot: unknown column %q", op.RowColumn)
	}
	valColIdx, ok := t.GetColumnIndex(op.ValueColumn)
	if !ok {
		return nil, fmt.Errorf("pqops: pivot: unknown column %q", op.ValueColumn)
	}
	var keyIdx []int
	for i := range t.Columns() {
		if i != rowColIdx && i != valColIdx {
			keyIdx = append(keyIdx, i)
		}
	}

	type cell struct {
		sum   float64
		count int
		min   pqvalue.Value
		max   pqvalue.Value
		hasMM bool
	}
	groupOrder := []string{}
	groupKeys := map[string][]pqvalue.Value{}
	pivotOrder := []string{}
	pivotSeen := map[string]bool{}
	cells := map[string]map[string]*cell{}

	t.IterRows(func(r int, row []pqvalue.Value) bool {
		gk := rowKey(row, keyIdx)
		if _, ok := groupKeys[gk]; !ok {
			keyCells := make([]pqvalue.Value, len(keyIdx))
			for i, ci := range keyIdx {
				keyCells[i] = row[ci]
			}
			groupKeys[gk] = keyCells
			groupOrder = append(groupOrder, gk)
			cells[gk] = map[string]*cell{}
		}
		pv := pqvalue.ValueToString(row[rowColIdx])
		if !pivotSeen[pv] {
			pivotSeen[pv] = true
			pivotOrder = append(pivotOrder, pv)
		}
		c, ok := cells[gk][pv]
		if !ok {
			c = &cell{}
			cells[gk][pv] = c
		}
		v := row[valColIdx]
		n := pqvalue.CoerceTo(v, pqvalue.TypeNumber)
		if !pqvalue.IsNull(n) {
			c.sum += n.Number
		}
		c.count++
		if !c.hasMM || pqvalue.Compare(v, c.min) < 0 {
			c.min = v
		}
		if !c.hasMM || pqvalue.Compare(v, c.max) > 0 {
			c.max = v
		}
		c.hasMM = true
		return true
	})

	cols := make([]pqtable.Column, 0, len(keyIdx)+len(pivotOrder))
	for _, ci := range keyIdx {
		cols = append(cols, t.Columns()[ci])
	}
	for _, pv := range pivotOrder {
		cols = append(cols, pqtable.Column{Name: pv, Type: pqvalue.TypeNumber})
	}
	cols = renameUnique(cols)

	rows := make([][]pqvalue.Value, 0, len(groupOrder))
	for _, gk := range groupOrder {
		row := append([]pqvalue.Value(nil), groupKeys[gk]...)
		for _, pv := range pivotOrder {
			c, ok := cells[gk][pv]
			if !ok {
				row = append(row, pqvalue.Null)
				continue
			}
			switch op.Agg {
			case AggSum:
				row = append(row, pqvalue.Number(c.sum))
			case AggAverage:
				row = append(row, pqvalue.Number(c.sum/float64(c.count)))
			case AggCount:
				row = append(row, pqvalue.Number(float64(c.count)))
			case AggMin:
				row = append(row, c.min)
			case AggMax:
				row = append(row, c.max)
			default:
				row = append(row, pqvalue.Number(c.sum))
			}
		}
		rows = append(rows, row)
	}
	return materialize(cols, rows), nil
}

// applyUnpivot is pivot's inverse: for every row it emits len(Columns) output
// rows, each carrying one unpivoted column's name/value pair alongside the
// untouched remaining columns.
func applyUnpivot(t pqtable.ITable, op Unpivot) (pqtable.ITable, error) {
	idx, err := columnIndices(t, op.Columns)
	if err != nil {
		return nil, err
	}
	unpivot := map[int]bool{}
	for _, i := range idx {
		unpivot[i] = true
	}
	var keepCols []pqtable.Column
	var keepIdx []int
	for i, c := range t.Columns() {
		if !unpivot[i] {
			keepCols = append(keepCols, c)
			keepIdx = append(keepIdx, i)
		}
	}
	cols := append(keepCols,
		pqtable.Column{Name: op.NameCol, Type: pqvalue.TypeString},
		pqtable.Column{Name: op.ValueCol, Type: pqvalue.TypeAny})
	cols = renameUnique(cols)

	var rows [][]pqvalue.Value
	for r := 0; r < t.RowCount(); r++ {
		cells := t.GetRow(r)
		for _, ui := range idx {
			row := make([]pqvalue.Value, 0, len(cols))
			for _, ki := range keepIdx {
				row = append(row, cells[ki])
			}
			row = append(row, pqvalue.String(t.Columns()[ui].Name), cells[ui])
			rows = append(rows, row)
		}
	}
	return materialize(cols, rows), nil
}

// applyExpandTableColumn flattens a nested-table cell: every input row
// expands to one output row per nested row, except a null or empty nested
// table, which expands to exactly one output row with the nested columns
// null-filled rather than being dropped (spec §4.D's expandTableColumn
// edge case).
func applyExpandTableColumn(t pqtable.ITable, op ExpandTableColumn) (pqtable.ITable, error) {
	ci, ok := t.GetColumnIndex(op.Column)
	if !ok {
		return nil, fmt.Errorf("pqops: expandTableColumn: unknown column %q", op.Column)
	}
	var nestedCols []pqtable.Column
	found := false
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		if found {
			return false
		}
		if nt, ok := cells[ci].Table.(pqtable.ITable); ok && !pqvalue.IsNull(cells[ci]) {
			nestedCols = nt.Columns()
			found = true
		}
		return true
	})

	var outerCols []pqtable.Column
	var outerIdx []int
	for i, c := range t.Columns() {
		if i != ci {
			outerCols = append(outerCols, c)
			outerIdx = append(outerIdx, i)
		}
	}
	cols := append(append([]pqtable.Column(nil), outerCols...), nestedCols...)
	cols = renameUnique(cols)

	var rows [][]pqvalue.Value
	for r := 0; r < t.RowCount(); r++ {
		cells := t.GetRow(r)
		v := cells[ci]
		nt, ok := v.Table.(pqtable.ITable)
		nestedRows := 0
		if ok && !pqvalue.IsNull(v) {
			nestedRows = nt.RowCount()
		}
		if nestedRows == 0 {
			row := make([]pqvalue.Value, 0, len(cols))
			for _, oi := range outerIdx {
				row = append(row, cells[oi])
			}
			for range nestedCols {
				row = append(row, pqvalue.Null)
			}
			rows = append(rows, row)
			continue
		}
		for nr := 0; nr < nestedRows; nr++ {
			row := make([]pqvalue.Value, 0, len(cols))
			for _, oi := range outerIdx {
				row = append(row, cells[oi])
			}
			row = append(row, nt.GetRow(nr)...)
			rows = append(rows, row)
		}
	}
	return materialize(cols, rows), nil
}
