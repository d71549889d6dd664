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

// Package pqtable implements the columnar data model of spec §3.2: the
// Column/Table types, the ITable contract satisfied by both the row-oriented
// DataTable and the read-only columnar ArrowTable, and makeUniqueColumnNames.
package pqtable

import (
	"fmt"
	"strconv"

	"github.com/erigontech/powerquery/pkg/pqvalue"
)

// Column is a column's static metadata: name and declared type.
type Column struct {
	Name string
	Type pqvalue.TypeName
}

// Grid is the toGrid({includeHeader}) result: rows of stringified cells,
// optionally prefixed by a header row.
type Grid = [][]string

// ITable is the contract every table representation satisfies.
// GetColumnIndex is a linear scan over the columns, not a constant-time
// lookup. Head never copies cell data: DataTable re-slices its rows and
// ArrowTable returns an offset view.
type ITable interface {
	Columns() []Column
	RowCount() int
	GetColumnIndex(name string) (int, bool)
	GetCell(row, col int) pqvalue.Value
	GetRow(row int) []pqvalue.Value
	IterRows(yield func(row int, cells []pqvalue.Value) bool)
	Head(n int) ITable
	ToGrid(includeHeader bool) Grid
}

// MakeUniqueColumnNames resolves name collisions by suffixing ".1", ".2", …
// on every name after the first occurrence, matching spec §3.2.
func MakeUniqueColumnNames(names []string) []string {
	seen := map[string]int{}
	out := make([]string, len(names))
	for i, n := range names {
		count := seen[n]
		seen[n] = count + 1
		if count == 0 {
			out[i] = n
			continue
		}
		candidate := n + "." + strconv.Itoa(count)
		for {
			if _, exists := seen[candidate]; !exists {
				break
			}
			count++
			candidate = n + "." + strconv.Itoa(count)
		}
		seen[candidate] = 1
		out[i] = candidate
	}
	return out
}

func columnIndex(cols []Column, name string) (int, bool) {
	for i, c := range cols {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

func toGrid(t ITable, includeHeader bool) Grid {
	cols := t.Columns()
	n := t.RowCount()
	out := make(Grid, 0, n+1)
	if includeHeader {
		header := make([]string, len(cols))
		for i, c := range cols {
			header[i] = c.Name
		}
		out = append(out, header)
	}
	for r := 0; r < n; r++ {
		row := t.GetRow(r)
		line := make([]string, len(row))
		for i, v := range row {
			line[i] = pqvalue.ValueToString(v)
		}
		out = append(out, line)
	}
	return out
}

func checkRowWidth(cols []Column, row []pqvalue.Value) error {
	if len(row) != len(cols) {
		return fmt.Errorf("pqtable: row has %d cells, want %d (columns %v)", len(row), len(cols), cols)
	}
	return nil
}
