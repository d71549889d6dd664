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

// applyPromoteHeaders turns row 0 into the column name list (stringified)
// and drops it from the data; an empty input table is left untouched, per
// spec §4.D's edge case for promoteHeaders on zero rows.
func applyPromoteHeaders(t pqtable.ITable, _ PromoteHeaders) (pqtable.ITable, error) {
	if t.RowCount() == 0 {
		return t, nil
	}
	header := t.GetRow(0)
	names := make([]string, len(header))
	for i, v := range header {
		names[i] = pqvalue.ValueToString(v)
	}
	names = pqtable.MakeUniqueColumnNames(names)
	oldCols := t.Columns()
	cols := make([]pqtable.Column, len(names))
	for i, n := range names {
		typ := pqvalue.TypeAny
		if i < len(oldCols) {
			typ = oldCols[i].Type
		}
		cols[i] = pqtable.Column{Name: n, Type: typ}
	}
	var rows [][]pqvalue.Value
	for r := 1; r < t.RowCount(); r++ {
		rows = append(rows, append([]pqvalue.Value(nil), t.GetRow(r)...))
	}
	return materialize(cols, rows), nil
}

// applyDemoteHeaders is promoteHeaders's inverse: the column names become a
// synthetic first row of strings, and columns are renamed "Column1", "Column2", ….
func applyDemoteHeaders(t pqtable.ITable, _ DemoteHeaders) (pqtable.ITable, error) {
	oldCols := t.Columns()
	cols := make([]pqtable.Column, len(oldCols))
	headerRow := make([]pqvalue.Value, len(oldCols))
	for i, c := range oldCols {
		cols[i] = pqtable.Column{Name: fmt.Sprintf("Column%d", i+1), Type: pqvalue.TypeAny}
		headerRow[i] = pqvalue.String(c.Name)
	}
	rows := make([][]pqvalue.Value, 0, t.RowCount()+1)
	rows = append(rows, headerRow)
	for r := 0; r < t.RowCount(); r++ {
		rows = append(rows, append([]pqvalue.Value(nil), t.GetRow(r)...))
	}
	return materialize(cols, rows), nil
}
