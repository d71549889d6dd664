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
	"strings"

	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

func materialize(cols []pqtable.Column, rows [][]pqvalue.Value) pqtable.ITable {
	return pqtable.MustNewDataTable(cols, rows)
}

func columnIndices(t pqtable.ITable, names []string) ([]int, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		c, ok := t.GetColumnIndex(n)
		if !ok {
			return nil, fmt.Errorf("pqops: unknown column %q", n)
		}
		idx[i] = c
	}
	return idx, nil
}

func applySelectColumns(t pqtable.ITable, op SelectColumns) (pqtable.ITable, error) {
	idx, err := columnIndices(t, op.Names)
	if err != nil {
		return nil, err
	}
	cols := make([]pqtable.Column, len(idx))
	for i, c := range idx {
		cols[i] = t.Columns()[c]
	}
	rows := make([][]pqvalue.Value, t.RowCount())
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		row := make([]pqvalue.Value, len(idx))
		for i, c := range idx {
			row[i] = cells[c]
		}
		rows[r] = row
		return true
	})
	return materialize(cols, rows), nil
}

func applyRemoveColumns(t pqtable.ITable, op RemoveColumns) (pqtable.ITable, error) {
	remove := make(map[string]bool, len(op.Names))
	for _, n := range op.Names {
		remove[n] = true
	}
	var keep []string
	for _, c := range t.Columns() {
		if !remove[c.Name] {
			keep = append(keep, c.Name)
		}
	}
	return applySelectColumns(t, SelectColumns{Names: keep})
}

func applyRenameColumn(t pqtable.ITable, op RenameColumn) (pqtable.ITable, error) {
	if _, ok := t.GetColumnIndex(op.From); !ok {
		return nil, fmt.Errorf("pqops: renameColumn: unknown column %q", op.From)
	}
	src := t.Columns()
	cols := make([]pqtable.Column, len(src))
	copy(cols, src)
	for i, c := range cols {
		if c.Name == op.From {
			cols[i].Name = op.To
		}
	}
	cols = renameUnique(cols)
	return copyWithColumns(t, cols), nil
}

func renameUnique(cols []pqtable.Column) []pqtable.Column {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	unique := pqtable.MakeUniqueColumnNames(names)
	out := make([]pqtable.Column, len(cols))
	for i, c := range cols {
		out[i] = pqtable.Column{Name: unique[i], Type: c.Type}
	}
	return out
}

func copyWithColumns(t pqtable.ITable, cols []pqtable.Column) pqtable.ITable {
	rows := make([][]pqvalue.Value, t.RowCount())
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		rows[r] = append([]pqvalue.Value(nil), cells...)
		return true
	})
	return materialize(cols, rows)
}

func applyReorderColumns(t pqtable.ITable, op ReorderColumns) (pqtable.ITable, error) {
	present := map[string]bool{}
	for _, c := range t.Columns() {
		present[c.Name] = true
	}
	var ordered []string
	seen := map[string]bool{}
	for _, name := range op.Prefix {
		if !present[name] {
			switch op.Missing {
			case MissingError:
				return nil, fmt.Errorf("pqops: reorderColumns: unknown column %q", name)
			case MissingIgnore:
				continue
			case MissingUseNull:
				ordered = append(ordered, name)
				seen[name] = true
				continue
			}
		}
		ordered = append(ordered, name)
		seen[name] = true
	}
	for _, c := range t.Columns() {
		if !seen[c.Name] {
			ordered = append(ordered, c.Name)
		}
	}
	if op.Missing != MissingUseNull {
		return applySelectColumns(t, SelectColumns{Names: ordered})
	}
	// MissingUseNull: synthesize null columns for names absent from the input.
	cols := make([]pqtable.Column, len(ordered))
	colPos := make([]int, len(ordered))
	for i, name := range ordered {
		if idx, ok := t.GetColumnIndex(name); ok {
			cols[i] = t.Columns()[idx]
			colPos[i] = idx
		} else {
			cols[i] = pqtable.Column{Name: name, Type: pqvalue.TypeAny}
			colPos[i] = -1
		}
	}
	rows := make([][]pqvalue.Value, t.RowCount())
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		row := make([]pqvalue.Value, len(cols))
		for i, p := range colPos {
			if p >= 0 {
				row[i] = cells[p]
			} else {
				row[i] = pqvalue.Null
			}
		}
		rows[r] = row
		return true
	})
	return materialize(cols, rows), nil
}

func applyTransformColumnNames(t pqtable.ITable, op TransformColumnNames) (pqtable.ITable, error) {
	src := t.Columns()
	cols := make([]pqtable.Column, len(src))
	for i, c := range src {
		var name string
		switch op.Case {
		case NameUpper:
			name = strings.ToUpper(c.Name)
		case NameLower:
			name = strings.ToLower(c.Name)
		case NameTrim:
			name = strings.TrimSpace(c.Name)
		default:
			name = c.Name
		}
		cols[i] = pqtable.Column{Name: name, Type: c.Type}
	}
	cols = renameUnique(cols)
	return copyWithColumns(t, cols), nil
}

func applyChangeType(t pqtable.ITable, op ChangeType) (pqtable.ITable, error) {
	src := t.Columns()
	cols := make([]pqtable.Column, len(src))
	for i, c := range src {
		if target, ok := op.Types[c.Name]; ok {
			cols[i] = pqtable.Column{Name: c.Name, Type: target}
		} else {
			cols[i] = c
		}
	}
	rows := make([][]pqvalue.Value, t.RowCount())
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		row := make([]pqvalue.Value, len(cells))
		for i, v := range cells {
			if target, ok := op.Types[src[i].Name]; ok {
				row[i] = pqvalue.CoerceTo(v, target)
			} else {
				row[i] = v
			}
		}
		rows[r] = row
		return true
	})
	return materialize(cols, rows), nil
}

func applyTransformColumns(t pqtable.ITable, op TransformColumns) (pqtable.ITable, error) {
	src := t.Columns()
	cols := make([]pqtable.Column, len(src))
	for i, c := range src {
		if target, ok := op.TargetType[c.Name]; ok {
			cols[i] = pqtable.Column{Name: c.Name, Type: target}
		} else {
			cols[i] = c
		}
	}
	rows := make([][]pqvalue.Value, t.RowCount())
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		row := make([]pqvalue.Value, len(cells))
		for i, v := range cells {
			if f, ok := op.Transforms[src[i].Name]; ok {
				row[i] = f(v)
			} else {
				row[i] = v
			}
		}
		rows[r] = row
		return true
	})
	return materialize(cols, rows), nil
}

func applyAddColumn(t pqtable.ITable, op AddColumn) (pqtable.ITable, error) {
	cols := append(append([]pqtable.Column(nil), t.Columns()...), pqtable.Column{Name: op.Name, Type: pqvalue.TypeAny})
	cols = renameUnique(cols)
	rows := make([][]pqvalue.Value, t.RowCount())
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		v := op.Formula(cells, t.Columns())
		rows[r] = append(append([]pqvalue.Value(nil), cells...), v)
		return true
	})
	return materialize(cols, rows), nil
}

func applyAddIndexColumn(t pqtable.ITable, op AddIndexColumn) (pqtable.ITable, error) {
	cols := append(append([]pqtable.Column(nil), t.Columns()...), pqtable.Column{Name: op.Name, Type: pqvalue.TypeNumber})
	cols = renameUnique(cols)
	rows := make([][]pqvalue.Value, t.RowCount())
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		idx := op.InitialValue + r*op.Increment
		rows[r] = append(append([]pqvalue.Value(nil), cells...), pqvalue.Number(float64(idx)))
		return true
	})
	return materialize(cols, rows), nil
}

func applyCombineColumns(t pqtable.ITable, op CombineColumns) (pqtable.ITable, error) {
	idx, err := columnIndices(t, op.Sources)
	if err != nil {
		return nil, err
	}
	src := t.Columns()
	remove := make(map[int]bool, len(idx))
	for _, i := range idx {
		remove[i] = true
	}
	var cols []pqtable.Column
	var keepIdx []int
	for i, c := range src {
		if !remove[i] {
			cols = append(cols, c)
			keepIdx = append(keepIdx, i)
		}
	}
	cols = append(cols, pqtable.Column{Name: op.NewName, Type: pqvalue.TypeString})
	cols = renameUnique(cols)
	rows := make([][]pqvalue.Value, t.RowCount())
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		row := make([]pqvalue.Value, 0, len(cols))
		for _, i := range keepIdx {
			row = append(row, cells[i])
		}
		parts := make([]string, len(idx))
		for i, ci := range idx {
			parts[i] = pqvalue.ValueToString(cells[ci])
		}
		row = append(row, pqvalue.String(strings.Join(parts, op.Delimiter)))
		rows[r] = row
		return true
	})
	return materialize(cols, rows), nil
}

func applySplitColumn(t pqtable.ITable, op SplitColumn) (pqtable.ITable, error) {
	srcIdx, ok := t.GetColumnIndex(op.Source)
	if !ok {
		return nil, fmt.Errorf("pqops: splitColumn: unknown column %q", op.Source)
	}
	split := make([][]string, t.RowCount())
	maxParts := 0
	t.IterRows(func(r int, cells []pqvalue.Value) bool {
		v := cells[srcIdx]
		var parts []string
		if pqvalue.IsNull(v) {
			parts = nil
		} else {
			parts = strings.Split(pqvalue.ValueToString(v), op.Delimiter)
		}
		split[r] = parts
		if len(parts) > maxParts {
			maxParts = len(parts)
		}
		return true
	})
	names := op.TargetNames
	if names == nil {
		names = make([]string, maxParts)
		for i := range names {
			names[i] = fmt.Sprintf("%s.%d", op.Source, i+1)
		}
	}
	src := t.Columns()
	var cols []pqtable.Column
	for i, c := range src {
		if i == srcIdx {
			for _, n := range names {
				cols = append(cols, pqtable.Column{Name: n, Type: pqvalue.TypeString})
			}
			continue
		}
		cols = append(cols, c)
	}
	cols = renameUnique(cols)
	rows := make([][]pqvalue.Value, t.RowCount())
	for r := 0; r < t.RowCount(); r++ {
		cells := t.GetRow(r)
		var row []pqvalue.Value
		for i, v := range cells {
			if i == srcIdx {
				parts := split[r]
				for j := range names {
					if j < len(parts) {
						row = append(row, pqvalue.String(parts[j]))
					} else {
						row = append(row, pqvalue.Null)
					}
				}
				continue
			}
			row = append(row, v)
		}
		rows[r] = row
	}
	return materialize(cols, rows), nil
}
