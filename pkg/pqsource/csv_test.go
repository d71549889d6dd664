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

package pqsource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

func TestCSVAdapterReadTextWithHeaders(t *testing.T) {
	a := NewCSVAdapter(map[string]string{
		"people.csv": "name,age\nAva,30\nBo,40\n",
	})
	tbl, err := a.ReadText(context.Background(), "people.csv", ReadOptions{HasHeaders: true})
	require.NoError(t, err)
	require.Equal(t, 2, tbl.RowCount())
	require.Equal(t, []string{"name", "age"}, columnNames(tbl))
	require.Equal(t, pqvalue.String("Ava"), tbl.GetCell(0, 0))
	require.Equal(t, pqvalue.String("40"), tbl.GetCell(1, 1))
}

func TestCSVAdapterReadTextWithoutHeaders(t *testing.T) {
	a := NewCSVAdapter(map[string]string{
		"raw.csv": "1,2\n3,4\n",
	})
	tbl, err := a.ReadText(context.Background(), "raw.csv", ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"Column1", "Column2"}, columnNames(tbl))
	require.Equal(t, 2, tbl.RowCount())
}

func TestCSVAdapterReadTextUnknownLocation(t *testing.T) {
	a := NewCSVAdapter(map[string]string{})
	_, err := a.ReadText(context.Background(), "missing.csv", ReadOptions{})
	require.Error(t, err)
}

func TestCSVAdapterReadTextStreamBatches(t *testing.T) {
	a := NewCSVAdapter(map[string]string{
		"nums.csv": "a\n1\n2\n3\n4\n5\n",
	})
	var batches [][][]pqvalue.Value
	err := a.ReadTextStream(context.Background(), "nums.csv", ReadOptions{HasHeaders: true, BatchSize: 2}, func(rows [][]pqvalue.Value) bool {
		batches = append(batches, rows)
		return true
	})
	require.NoError(t, err)
	require.Len(t, batches, 3)
	require.Len(t, batches[0], 2)
	require.Len(t, batches[2], 1)
}

func TestCSVAdapterReadTextStreamStopsEarly(t *testing.T) {
	a := NewCSVAdapter(map[string]string{
		"nums.csv": "1\n2\n3\n4\n",
	})
	var batches int
	err := a.ReadTextStream(context.Background(), "nums.csv", ReadOptions{BatchSize: 1}, func(rows [][]pqvalue.Value) bool {
		batches++
		return batches < 2
	})
	require.NoError(t, err)
	require.Equal(t, 2, batches)
}

func columnNames(tbl pqtable.ITable) []string {
	cols := tbl.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
