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

package pqtable

import (
	"fmt"

	"github.com/erigontech/powerquery/pkg/pqvalue"
)

// DataTable is the row-oriented table representation of spec §3.2.
// Immutable after construction: operators return a new DataTable rather than
// mutating Rows in place.
type DataTable struct {
	cols []Column
	rows [][]pqvalue.Value
}

// NewDataTable validates every row has exactly len(cols) cells before
// returning the table; this is the single enforcement point for the "every
// row has exactly columns.len() cells" invariant.
func NewDataTable(cols []Column, rows [][]pqvalue.Value) (*DataTable, error) {
	for i, row := range rows {
		if err := checkRowWidth(cols, row); err != nil {
			return nil, fmt.Errorf("pqtable: row %d: %w", i, err)
		}
	}
	return &DataTable{cols: cols, rows: rows}, nil
}

// MustNewDataTable panics on a width mismatch; used by tests and internal
// operator code that has already validated its own output shape.
func MustNewDataTable(cols []Column, rows [][]pqvalue.Value) *DataTable {
	t, err := NewDataTable(cols, rows)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *DataTable) Columns() []Column { return t.cols }
func (t *DataTable) RowCount() int     { return len(t.rows) }

func (t *DataTable) GetColumnIndex(name string) (int, bool) { return columnIndex(t.cols, name) }

func (t *DataTable) GetCell(row, col int) pqvalue.Value { return t.rows[row][col] }

func (t *DataTable) GetRow(row int) []pqvalue.Value { return t.rows[row] }

func (t *DataTable) IterRows(yield func(row int, cells []pqvalue.Value) bool) {
	for i, row := range t.rows {
		if !yield(i, row) {
			return
		}
	}
}

// Head returns the first n rows. DataTable.Head necessarily copies the
// backing slice header for rows beyond a re-slice, but never copies cell
// bytes: row-oriented storage can re-slice in O(1) since rows is already
// []Value and Value is a small value type.
func (t *DataTable) Head(n int) ITable {
	if n > len(t.rows) {
		n = len(t.rows)
	}
	return &DataTable{cols: t.cols, rows: t.rows[:n]}
}

func (t *DataTable) ToGrid(includeHeader bool) Grid { return toGrid(t, includeHeader) }

// Rows exposes the backing slice read-only for operators that need it (e.g.
// sortRows, distinctRows) without paying the IterRows callback overhead.
func (t *DataTable) Rows() [][]pqvalue.Value { return t.rows }
