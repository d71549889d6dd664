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

package pqengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

func TestValueJSONRoundTripScalars(t *testing.T) {
	cases := []pqvalue.Value{
		pqvalue.Null,
		pqvalue.Bool(true),
		pqvalue.Number(3.5),
		pqvalue.String("hello"),
		pqvalue.Decimal("12.340"),
		pqvalue.Binary([]byte{1, 2, 3}),
		pqvalue.Date(2026, time.March, 5),
		pqvalue.DateTime(time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)),
		pqvalue.DateTimeZone(time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC), 120),
		pqvalue.TimeOfDay(3_600_000),
		pqvalue.Duration(-500),
		pqvalue.Error("boom"),
	}
	for _, v := range cases {
		raw := valueToJSON(v)
		got, err := jsonToValue(raw)
		require.NoError(t, err)
		require.Equal(t, pqvalue.ValueKey(v), pqvalue.ValueKey(got), "kind %v", v.Kind)
	}
}

func TestValueJSONRoundTripListAndRecord(t *testing.T) {
	list := pqvalue.Value{Kind: pqvalue.KindList, List: []pqvalue.Value{pqvalue.Number(1), pqvalue.String("x")}}
	raw := valueToJSON(list)
	got, err := jsonToValue(raw)
	require.NoError(t, err)
	require.Equal(t, pqvalue.ValueKey(list), pqvalue.ValueKey(got))

	record := pqvalue.Value{Kind: pqvalue.KindRecord, Record: []pqvalue.RecordField{
		{Name: "a", Value: pqvalue.Number(1)},
		{Name: "b", Value: pqvalue.String("y")},
	}}
	raw = valueToJSON(record)
	got, err = jsonToValue(raw)
	require.NoError(t, err)
	require.Equal(t, pqvalue.ValueKey(record), pqvalue.ValueKey(got))
}

func TestValueJSONRoundTripNestedTable(t *testing.T) {
	nested := pqtable.MustNewDataTable(
		[]pqtable.Column{{Name: "x", Type: pqvalue.TypeAny}},
		[][]pqvalue.Value{{pqvalue.Number(1)}, {pqvalue.Number(2)}},
	)
	v := pqvalue.Value{Kind: pqvalue.KindTable, Table: nested}
	raw := valueToJSON(v)
	got, err := jsonToValue(raw)
	require.NoError(t, err)
	require.Equal(t, pqvalue.KindTable, got.Kind)
	require.Equal(t, 2, got.Table.RowCount())
}

func TestTableToCacheValueRoundTrip(t *testing.T) {
	tbl := pqtable.MustNewDataTable(
		[]pqtable.Column{{Name: "name", Type: pqvalue.TypeAny}, {Name: "age", Type: pqvalue.TypeAny}},
		[][]pqvalue.Value{
			{pqvalue.String("Ava"), pqvalue.Number(30)},
			{pqvalue.String("Bo"), pqvalue.Null},
		},
	)
	cv := tableToCacheValue(tbl)
	require.Equal(t, "rows", cv.Table.Kind)
	require.Equal(t, []string{"name", "age"}, cv.Table.Rows.Columns)

	got, err := cacheValueToTable(cv)
	require.NoError(t, err)
	require.Equal(t, 2, got.RowCount())
	require.Equal(t, pqvalue.String("Ava"), got.GetCell(0, 0))
	require.True(t, pqvalue.IsNull(got.GetCell(1, 1)))
}

func TestCacheValueToTableRejectsNonTableValue(t *testing.T) {
	_, err := cacheValueToTable(42)
	require.Error(t, err)
}
