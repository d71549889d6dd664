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
	"testing"

	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *pqtable.DataTable {
	t.Helper()
	cols := []pqtable.Column{
		{Name: "name", Type: pqvalue.TypeString},
		{Name: "dept", Type: pqvalue.TypeString},
		{Name: "salary", Type: pqvalue.TypeNumber},
	}
	rows := [][]pqvalue.Value{
		{pqvalue.String("alice"), pqvalue.String("eng"), pqvalue.Number(100)},
		{pqvalue.String("bob"), pqvalue.String("eng"), pqvalue.Number(200)},
		{pqvalue.String("carol"), pqvalue.String("sales"), pqvalue.Number(150)},
	}
	return pqtable.MustNewDataTable(cols, rows)
}

func TestSelectAndRemoveColumns(t *testing.T) {
	tbl := sampleTable(t)
	out, err := ApplyOperation(tbl, NewSelectColumns([]string{"name", "salary"}), nil)
	require.NoError(t, err)
	require.Equal(t, 2, len(out.Columns()))
	require.Equal(t, "name", out.Columns()[0].Name)

	out2, err := ApplyOperation(tbl, NewRemoveColumns([]string{"dept"}), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"name", "salary"}, colNames(out2))
}

func colNames(t pqtable.ITable) []string {
	cols := t.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func TestFilterRowsAndPredicateAnd(t *testing.T) {
	tbl := sampleTable(t)
	isEng := PredicateFunc(func(row []pqvalue.Value, cols []pqtable.Column) bool {
		return row[1].Str == "eng"
	})
	highPaid := PredicateFunc(func(row []pqvalue.Value, cols []pqtable.Column) bool {
		return row[2].Number >= 150
	})
	out, err := ApplyOperation(tbl, NewFilterRows(And(isEng, highPaid)), nil)
	require.NoError(t, err)
	require.Equal(t, 1, out.RowCount())
	require.Equal(t, "bob", out.GetRow(0)[0].Str)
}

func TestSortRowsStableMultiKey(t *testing.T) {
	tbl := sampleTable(t)
	out, err := ApplyOperation(tbl, NewSortRows([]SortKey{{Column: "dept", Ascending: true}, {Column: "salary", Ascending: false}}), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"bob", "alice", "carol"}, []string{
		out.GetRow(0)[0].Str, out.GetRow(1)[0].Str, out.GetRow(2)[0].Str,
	})
}

func TestGroupBySumAndCount(t *testing.T) {
	tbl := sampleTable(t)
	out, err := ApplyOperation(tbl, NewGroupBy([]string{"dept"}, []AggSpec{
		{OutputName: "n", Kind: AggCount},
		{OutputName: "total", Column: "salary", Kind: AggSum},
	}), nil)
	require.NoError(t, err)
	require.Equal(t, 2, out.RowCount())
	require.Equal(t, "eng", out.GetRow(0)[0].Str)
	require.Equal(t, float64(2), out.GetRow(0)[1].Number)
	require.Equal(t, float64(300), out.GetRow(0)[2].Number)
}

func TestTakeSkipRemoveRows(t *testing.T) {
	tbl := sampleTable(t)
	take, err := ApplyOperation(tbl, NewTake(2), nil)
	require.NoError(t, err)
	require.Equal(t, 2, take.RowCount())

	skip, err := ApplyOperation(tbl, NewSkip(2), nil)
	require.NoError(t, err)
	require.Equal(t, 1, skip.RowCount())
	require.Equal(t, "carol", skip.GetRow(0)[0].Str)

	rm, err := ApplyOperation(tbl, NewRemoveRows(0, 1), nil)
	require.NoError(t, err)
	require.Equal(t, 2, rm.RowCount())
	require.Equal(t, "bob", rm.GetRow(0)[0].Str)
}

func TestPromoteDemoteHeadersRoundTrip(t *testing.T) {
	cols := []pqtable.Column{{Name: "Column1", Type: pqvalue.TypeString}, {Name: "Column2", Type: pqvalue.TypeString}}
	rows := [][]pqvalue.Value{
		{pqvalue.String("h1"), pqvalue.String("h2")},
		{pqvalue.String("a"), pqvalue.String("b")},
	}
	tbl := pqtable.MustNewDataTable(cols, rows)

	promoted, err := ApplyOperation(tbl, NewPromoteHeaders(), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"h1", "h2"}, colNames(promoted))
	require.Equal(t, 1, promoted.RowCount())

	demoted, err := ApplyOperation(promoted, NewDemoteHeaders(), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Column1", "Column2"}, colNames(demoted))
	require.Equal(t, 2, demoted.RowCount())
	require.Equal(t, "h1", demoted.GetRow(0)[0].Str)
}

func TestMergeFlatInnerAndLeft(t *testing.T) {
	left := pqtable.MustNewDataTable(
		[]pqtable.Column{{Name: "id", Type: pqvalue.TypeNumber}, {Name: "name", Type: pqvalue.TypeString}},
		[][]pqvalue.Value{
			{pqvalue.Number(1), pqvalue.String("alice")},
			{pqvalue.Number(2), pqvalue.String("bob")},
		},
	)
	right := pqtable.MustNewDataTable(
		[]pqtable.Column{{Name: "id", Type: pqvalue.TypeNumber}, {Name: "dept", Type: pqvalue.TypeString}},
		[][]pqvalue.Value{
			{pqvalue.Number(1), pqvalue.String("eng")},
		},
	)
	resolve := func(q string) (pqtable.ITable, error) { return right, nil }

	inner, err := ApplyOperation(left, NewMerge("right", JoinInner, []string{"id"}, []string{"id"}, JoinFlat, ""), resolve)
	require.NoError(t, err)
	require.Equal(t, 1, inner.RowCount())

	outer, err := ApplyOperation(left, NewMerge("right", JoinLeft, []string{"id"}, []string{"id"}, JoinFlat, ""), resolve)
	require.NoError(t, err)
	require.Equal(t, 2, outer.RowCount())
	require.True(t, pqvalue.IsNull(outer.GetRow(1)[2]))
}

func TestAppendUnionsColumnsByName(t *testing.T) {
	a := pqtable.MustNewDataTable(
		[]pqtable.Column{{Name: "x", Type: pqvalue.TypeNumber}},
		[][]pqvalue.Value{{pqvalue.Number(1)}},
	)
	b := pqtable.MustNewDataTable(
		[]pqtable.Column{{Name: "x", Type: pqvalue.TypeNumber}, {Name: "y", Type: pqvalue.TypeString}},
		[][]pqvalue.Value{{pqvalue.Number(2), pqvalue.String("z")}},
	)
	resolve := func(q string) (pqtable.ITable, error) { return b, nil }
	out, err := ApplyOperation(a, NewAppend([]string{"b"}), resolve)
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, colNames(out))
	require.Equal(t, 2, out.RowCount())
	require.True(t, pqvalue.IsNull(out.GetRow(0)[1]))
	require.Equal(t, "z", out.GetRow(1)[1].Str)
}

func TestDistinctRowsAndFillDown(t *testing.T) {
	cols := []pqtable.Column{{Name: "v", Type: pqvalue.TypeNumber}}
	rows := [][]pqvalue.Value{{pqvalue.Number(1)}, {pqvalue.Number(1)}, {pqvalue.Number(2)}}
	tbl := pqtable.MustNewDataTable(cols, rows)
	out, err := ApplyOperation(tbl, NewDistinctRows(nil), nil)
	require.NoError(t, err)
	require.Equal(t, 2, out.RowCount())

	fcols := []pqtable.Column{{Name: "v", Type: pqvalue.TypeNumber}}
	frows := [][]pqvalue.Value{{pqvalue.Number(1)}, {pqvalue.Null}, {pqvalue.Null}, {pqvalue.Number(2)}}
	ftbl := pqtable.MustNewDataTable(fcols, frows)
	filled, err := ApplyOperation(ftbl, NewFillDown([]string{"v"}), nil)
	require.NoError(t, err)
	require.Equal(t, float64(1), filled.GetRow(1)[0].Number)
	require.Equal(t, float64(1), filled.GetRow(2)[0].Number)
}

func TestReorderColumnsMissingPolicies(t *testing.T) {
	tbl := sampleTable(t)

	_, err := ApplyOperation(tbl, NewReorderColumns([]string{"salary", "missing"}, MissingError), nil)
	require.Error(t, err)

	ignored, err := ApplyOperation(tbl, NewReorderColumns([]string{"salary", "missing"}, MissingIgnore), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"salary", "name", "dept"}, colNames(ignored))

	nulled, err := ApplyOperation(tbl, NewReorderColumns([]string{"salary", "missing"}, MissingUseNull), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"salary", "missing", "name", "dept"}, colNames(nulled))
	require.True(t, pqvalue.IsNull(nulled.GetRow(0)[1]))
}

func TestTransformColumnNames(t *testing.T) {
	cols := []pqtable.Column{{Name: "  Name ", Type: pqvalue.TypeString}, {Name: "Dept", Type: pqvalue.TypeString}}
	rows := [][]pqvalue.Value{{pqvalue.String("alice"), pqvalue.String("eng")}}
	tbl := pqtable.MustNewDataTable(cols, rows)

	upper, err := ApplyOperation(tbl, NewTransformColumnNames(NameUpper), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"  NAME ", "DEPT"}, colNames(upper))

	lower, err := ApplyOperation(tbl, NewTransformColumnNames(NameLower), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"  name ", "dept"}, colNames(lower))

	trimmed, err := ApplyOperation(tbl, NewTransformColumnNames(NameTrim), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Name", "Dept"}, colNames(trimmed))
}

func TestChangeTypeCoercesCells(t *testing.T) {
	cols := []pqtable.Column{{Name: "n", Type: pqvalue.TypeString}}
	rows := [][]pqvalue.Value{{pqvalue.String("42")}}
	tbl := pqtable.MustNewDataTable(cols, rows)

	out, err := ApplyOperation(tbl, NewChangeType(map[string]pqvalue.TypeName{"n": pqvalue.TypeNumber}), nil)
	require.NoError(t, err)
	require.Equal(t, pqvalue.TypeNumber, out.Columns()[0].Type)
	require.Equal(t, float64(42), out.GetRow(0)[0].Number)
}

func TestTransformColumnsAppliesFuncPerColumn(t *testing.T) {
	tbl := sampleTable(t)
	double := ColumnFunc(func(v pqvalue.Value) pqvalue.Value { return pqvalue.Number(v.Number * 2) })
	out, err := ApplyOperation(tbl, NewTransformColumns(map[string]ColumnFunc{"salary": double}, nil), nil)
	require.NoError(t, err)
	require.Equal(t, float64(200), out.GetRow(0)[2].Number)
	require.Equal(t, "alice", out.GetRow(0)[0].Str)
}

func TestCombineColumns(t *testing.T) {
	tbl := sampleTable(t)
	out, err := ApplyOperation(tbl, NewCombineColumns([]string{"name", "dept"}, "-", "label"), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"salary", "label"}, colNames(out))
	require.Equal(t, "alice-eng", out.GetRow(0)[1].Str)
}

func TestSplitColumn(t *testing.T) {
	cols := []pqtable.Column{{Name: "full", Type: pqvalue.TypeString}}
	rows := [][]pqvalue.Value{{pqvalue.String("a-b-c")}, {pqvalue.String("x-y")}}
	tbl := pqtable.MustNewDataTable(cols, rows)

	out, err := ApplyOperation(tbl, NewSplitColumn("full", "-", nil), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"full.1", "full.2", "full.3"}, colNames(out))
	require.Equal(t, "a", out.GetRow(0)[0].Str)
	require.Equal(t, "c", out.GetRow(0)[2].Str)
	require.True(t, pqvalue.IsNull(out.GetRow(1)[2]))
}

func TestRenameColumn(t *testing.T) {
	tbl := sampleTable(t)
	out, err := ApplyOperation(tbl, NewRenameColumn("dept", "department"), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"name", "department", "salary"}, colNames(out))

	_, err = ApplyOperation(tbl, NewRenameColumn("missing", "x"), nil)
	require.Error(t, err)
}

func TestReplaceValues(t *testing.T) {
	tbl := sampleTable(t)
	out, err := ApplyOperation(tbl, NewReplaceValues("dept", pqvalue.String("eng"), pqvalue.String("engineering")), nil)
	require.NoError(t, err)
	require.Equal(t, "engineering", out.GetRow(0)[1].Str)
	require.Equal(t, "engineering", out.GetRow(1)[1].Str)
	require.Equal(t, "sales", out.GetRow(2)[1].Str)
}

func TestReplaceErrorValues(t *testing.T) {
	cols := []pqtable.Column{{Name: "a", Type: pqvalue.TypeAny}, {Name: "b", Type: pqvalue.TypeAny}}
	rows := [][]pqvalue.Value{{pqvalue.Error("boom"), pqvalue.Number(1)}, {pqvalue.Number(2), pqvalue.Error("bad")}}
	tbl := pqtable.MustNewDataTable(cols, rows)

	out, err := ApplyOperation(tbl, NewReplaceErrorValues(nil, pqvalue.Null), nil)
	require.NoError(t, err)
	require.True(t, pqvalue.IsNull(out.GetRow(0)[0]))
	require.True(t, pqvalue.IsNull(out.GetRow(1)[1]))
	require.Equal(t, float64(1), out.GetRow(0)[1].Number)

	scoped, err := ApplyOperation(tbl, NewReplaceErrorValues([]string{"b"}, pqvalue.Null), nil)
	require.NoError(t, err)
	require.True(t, pqvalue.IsError(scoped.GetRow(0)[0]))
	require.True(t, pqvalue.IsNull(scoped.GetRow(1)[1]))
}

func TestRemoveRowsWithErrors(t *testing.T) {
	cols := []pqtable.Column{{Name: "a", Type: pqvalue.TypeAny}, {Name: "b", Type: pqvalue.TypeAny}}
	rows := [][]pqvalue.Value{
		{pqvalue.Number(1), pqvalue.Number(2)},
		{pqvalue.Error("boom"), pqvalue.Number(3)},
		{pqvalue.Number(4), pqvalue.Error("bad")},
	}
	tbl := pqtable.MustNewDataTable(cols, rows)

	out, err := ApplyOperation(tbl, NewRemoveRowsWithErrors(nil), nil)
	require.NoError(t, err)
	require.Equal(t, 1, out.RowCount())
	require.Equal(t, float64(1), out.GetRow(0)[0].Number)

	scoped, err := ApplyOperation(tbl, NewRemoveRowsWithErrors([]string{"a"}), nil)
	require.NoError(t, err)
	require.Equal(t, 2, scoped.RowCount())
}

func TestExpandTableColumnFlattensNestedRows(t *testing.T) {
	nestedCols := []pqtable.Column{{Name: "item", Type: pqvalue.TypeString}}
	nested := pqtable.MustNewDataTable(nestedCols, [][]pqvalue.Value{
		{pqvalue.String("pen")},
		{pqvalue.String("pad")},
	})
	empty := pqtable.MustNewDataTable(nestedCols, nil)

	cols := []pqtable.Column{{Name: "order", Type: pqvalue.TypeString}, {Name: "lines", Type: pqvalue.TypeAny}}
	rows := [][]pqvalue.Value{
		{pqvalue.String("o1"), {Kind: pqvalue.KindTable, Table: nested}},
		{pqvalue.String("o2"), pqvalue.Null},
		{pqvalue.String("o3"), {Kind: pqvalue.KindTable, Table: empty}},
	}
	tbl := pqtable.MustNewDataTable(cols, rows)

	out, err := ApplyOperation(tbl, NewExpandTableColumn("lines"), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"order", "item"}, colNames(out))
	require.Equal(t, 4, out.RowCount())

	require.Equal(t, "o1", out.GetRow(0)[0].Str)
	require.Equal(t, "pen", out.GetRow(0)[1].Str)
	require.Equal(t, "o1", out.GetRow(1)[0].Str)
	require.Equal(t, "pad", out.GetRow(1)[1].Str)

	// null nested cell still yields exactly one output row, nested column null-filled.
	require.Equal(t, "o2", out.GetRow(2)[0].Str)
	require.True(t, pqvalue.IsNull(out.GetRow(2)[1]))

	// empty (zero-row) nested table behaves the same as a null cell.
	require.Equal(t, "o3", out.GetRow(3)[0].Str)
	require.True(t, pqvalue.IsNull(out.GetRow(3)[1]))
}

func TestPivot(t *testing.T) {
	cols := []pqtable.Column{
		{Name: "region", Type: pqvalue.TypeString},
		{Name: "quarter", Type: pqvalue.TypeString},
		{Name: "revenue", Type: pqvalue.TypeNumber},
	}
	rows := [][]pqvalue.Value{
		{pqvalue.String("west"), pqvalue.String("q1"), pqvalue.Number(10)},
		{pqvalue.String("west"), pqvalue.String("q2"), pqvalue.Number(20)},
		{pqvalue.String("east"), pqvalue.String("q1"), pqvalue.Number(5)},
	}
	tbl := pqtable.MustNewDataTable(cols, rows)

	out, err := ApplyOperation(tbl, NewPivot("quarter", "revenue", AggSum), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"region", "q1", "q2"}, colNames(out))
	require.Equal(t, 2, out.RowCount())
	require.Equal(t, "west", out.GetRow(0)[0].Str)
	require.Equal(t, float64(10), out.GetRow(0)[1].Number)
	require.Equal(t, float64(20), out.GetRow(0)[2].Number)
	require.Equal(t, "east", out.GetRow(1)[0].Str)
	require.Equal(t, float64(5), out.GetRow(1)[1].Number)
	require.True(t, pqvalue.IsNull(out.GetRow(1)[2]))
}

func TestUnpivot(t *testing.T) {
	cols := []pqtable.Column{
		{Name: "region", Type: pqvalue.TypeString},
		{Name: "q1", Type: pqvalue.TypeNumber},
		{Name: "q2", Type: pqvalue.TypeNumber},
	}
	rows := [][]pqvalue.Value{
		{pqvalue.String("west"), pqvalue.Number(10), pqvalue.Number(20)},
	}
	tbl := pqtable.MustNewDataTable(cols, rows)

	out, err := ApplyOperation(tbl, NewUnpivot([]string{"q1", "q2"}, "quarter", "revenue"), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"region", "quarter", "revenue"}, colNames(out))
	require.Equal(t, 2, out.RowCount())
	require.Equal(t, "q1", out.GetRow(0)[1].Str)
	require.Equal(t, float64(10), out.GetRow(0)[2].Number)
	require.Equal(t, "q2", out.GetRow(1)[1].Str)
	require.Equal(t, float64(20), out.GetRow(1)[2].Number)
}

// TestUnpivotPivotRoundTrip checks spec §8's universal invariant: with no
// aggregation (AggSum over single-row groups is a no-op), unpivot∘pivot
// round-trips a table up to row order.
func TestUnpivotPivotRoundTrip(t *testing.T) {
	cols := []pqtable.Column{
		{Name: "region", Type: pqvalue.TypeString},
		{Name: "q1", Type: pqvalue.TypeNumber},
		{Name: "q2", Type: pqvalue.TypeNumber},
	}
	rows := [][]pqvalue.Value{
		{pqvalue.String("west"), pqvalue.Number(10), pqvalue.Number(20)},
		{pqvalue.String("east"), pqvalue.Number(5), pqvalue.Number(7)},
	}
	tbl := pqtable.MustNewDataTable(cols, rows)

	unpivoted, err := ApplyOperation(tbl, NewUnpivot([]string{"q1", "q2"}, "quarter", "value"), nil)
	require.NoError(t, err)
	roundTripped, err := ApplyOperation(unpivoted, NewPivot("quarter", "value", AggSum), nil)
	require.NoError(t, err)

	require.Equal(t, colNames(tbl), colNames(roundTripped))
	require.Equal(t, tbl.RowCount(), roundTripped.RowCount())

	byRegion := map[string][]pqvalue.Value{}
	for r := 0; r < roundTripped.RowCount(); r++ {
		row := roundTripped.GetRow(r)
		byRegion[row[0].Str] = row
	}
	for r := 0; r < tbl.RowCount(); r++ {
		want := tbl.GetRow(r)
		got := byRegion[want[0].Str]
		require.Equal(t, want[1].Number, got[1].Number)
		require.Equal(t, want[2].Number, got[2].Number)
	}
}
