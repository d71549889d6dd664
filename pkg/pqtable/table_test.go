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
	"testing"

	"github.com/erigontech/powerquery/pkg/pqvalue"
	"github.com/stretchr/testify/require"
)

func TestMakeUniqueColumnNames(t *testing.T) {
	got := MakeUniqueColumnNames([]string{"A", "B", "A", "A", "A.1"})
	require.Equal(t, []string{"A", "B", "A.1", "A.2", "A.1.1"}, got)
}

func TestDataTableRowWidthInvariant(t *testing.T) {
	cols := []Column{{Name: "a"}, {Name: "b"}}
	_, err := NewDataTable(cols, [][]pqvalue.Value{{pqvalue.Number(1)}})
	require.Error(t, err)
}

func TestArrowTableHeadIsView(t *testing.T) {
	cols := []Column{{Name: "a"}}
	at, err := NewArrowTable(cols, [][]pqvalue.Value{{pqvalue.Number(1), pqvalue.Number(2), pqvalue.Number(3)}})
	require.NoError(t, err)
	head := at.Head(2)
	require.Equal(t, 2, head.RowCount())
	require.Equal(t, float64(1), head.GetCell(0, 0).Number)
}

func TestColumnIndexLookup(t *testing.T) {
	cols := []Column{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	idx, ok := columnIndex(cols, "c")
	require.True(t, ok)
	require.Equal(t, 2, idx)
	_, ok = columnIndex(cols, "missing")
	require.False(t, ok)
}
