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

// ArrowTable is the columnar, read-only adapter table of spec §3.2: backed
// by one slice per column instead of one slice per row, so Head (and any
// other row-range slice) is O(1) regardless of row count. It is the shape a
// real Arrow-IPC or Parquet adapter would hand back; here the column data is
// just [][]pqvalue.Value per-column, since the wire format itself is out of
// scope (spec §1).
type ArrowTable struct {
	cols    []Column
	columns [][]pqvalue.Value // columns[c][r]
	offset  int
	count   int
}

// NewArrowTable builds a columnar table from per-column data. All columns
// must have equal length.
func NewArrowTable(cols []Column, columnData [][]pqvalue.Value) (*ArrowTable, error) {
	n := 0
	if len(columnData) > 0 {
		n = len(columnData[0])
	}
	for i, c := range columnData {
		if len(c) != n {
			return nil, errColumnLength(i, len(c), n)
		}
	}
	return &ArrowTable{cols: cols, columns: columnData, offset: 0, count: n}, nil
}

func (t *ArrowTable) Columns() []Column { return t.cols }
func (t *ArrowTable) RowCount() int     { return t.count }

func (t *ArrowTable) GetColumnIndex(name string) (int, bool) { return columnIndex(t.cols, name) }

func (t *ArrowTable) GetCell(row, col int) pqvalue.Value {
	return t.columns[col][t.offset+row]
}

func (t *ArrowTable) GetRow(row int) []pqvalue.Value {
	out := make([]pqvalue.Value, len(t.columns))
	for c := range t.columns {
		out[c] = t.columns[c][t.offset+row]
	}
	return out
}

func (t *ArrowTable) IterRows(yield func(row int, cells []pqvalue.Value) bool) {
	for r := 0; r < t.count; r++ {
		if !yield(r, t.GetRow(r)) {
			return
		}
	}
}

// Head slices in O(1): it returns a new ArrowTable view sharing the same
// backing column arrays with an adjusted offset/count.
func (t *ArrowTable) Head(n int) ITable {
	if n > t.count {
		n = t.count
	}
	return &ArrowTable{cols: t.cols, columns: t.columns, offset: t.offset, count: n}
}

func (t *ArrowTable) ToGrid(includeHeader bool) Grid { return toGrid(t, includeHeader) }

func errColumnLength(idx, got, want int) error {
	return fmt.Errorf("pqtable: arrow column %d has %d rows, want %d", idx, got, want)
}
