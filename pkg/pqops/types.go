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

// Package pqops implements the materialized single-pass operators of spec
// §4.D: every applyOperation(table, op) is a pure function from one ITable
// to another. The formula mini-language is out of scope (spec §1), so every
// operation that would embed a formula instead takes a Go func value —
// callers compile formulas to row-to-value functions upstream of this
// package.
package pqops

import (
	"github.com/erigontech/powerquery/pkg/pqquery"
	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

// MissingPolicy governs how reorderColumns handles names absent from the
// input table.
type MissingPolicy int

const (
	MissingError MissingPolicy = iota
	MissingIgnore
	MissingUseNull
)

// NameCase selects the case transform for transformColumnNames.
type NameCase int

const (
	NameUpper NameCase = iota
	NameLower
	NameTrim
)

// RowFunc is a pure function computing a new cell from a row; the bound
// closure over "which columns it reads" lives on the caller side (the
// compiled formula), not in this signature.
type RowFunc func(row []pqvalue.Value, cols []pqtable.Column) pqvalue.Value

// ColumnFunc transforms one cell of a named column.
type ColumnFunc func(v pqvalue.Value) pqvalue.Value

// SortKey is one key of a sortRows multi-key sort.
type SortKey struct {
	Column    string
	Ascending bool
	NullsFirst bool
}

// AggSpec names one aggregation a groupBy/pivot step computes.
type AggKind string

const (
	AggCount         AggKind = "count"
	AggSum           AggKind = "sum"
	AggAverage       AggKind = "average"
	AggMin           AggKind = "min"
	AggMax           AggKind = "max"
	AggCountDistinct AggKind = "countDistinct"
)

type AggSpec struct {
	OutputName string
	Column     string // ignored for count
	Kind       AggKind
}

type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
)

type JoinMode int

const (
	JoinFlat JoinMode = iota
	JoinNested
)

func baseOp(kind pqquery.OpKind) baseOperation { return baseOperation{kind: kind} }

type baseOperation struct{ kind pqquery.OpKind }

func (b baseOperation) Kind() pqquery.OpKind     { return b.kind }
func (b baseOperation) Dependencies() []string { return nil }

// --- column operations ---

type SelectColumns struct {
	baseOperation
	Names []string
}

func NewSelectColumns(names []string) SelectColumns {
	return SelectColumns{baseOp(pqquery.OpSelectColumns), names}
}

type RemoveColumns struct {
	baseOperation
	Names []string
}

func NewRemoveColumns(names []string) RemoveColumns {
	return RemoveColumns{baseOp(pqquery.OpRemoveColumns), names}
}

type RenameColumn struct {
	baseOperation
	From, To string
}

func NewRenameColumn(from, to string) RenameColumn {
	return RenameColumn{baseOp(pqquery.OpRenameColumn), from, to}
}

type ReorderColumns struct {
	baseOperation
	Prefix []string
	Missing MissingPolicy
}

func NewReorderColumns(prefix []string, missing MissingPolicy) ReorderColumns {
	return ReorderColumns{baseOp(pqquery.OpReorderColumns), prefix, missing}
}

type TransformColumnNames struct {
	baseOperation
	Case NameCase
}

func NewTransformColumnNames(c NameCase) TransformColumnNames {
	return TransformColumnNames{baseOp(pqquery.OpTransformColumnNames), c}
}

type ChangeType struct {
	baseOperation
	Types map[string]pqvalue.TypeName
}

func NewChangeType(types map[string]pqvalue.TypeName) ChangeType {
	return ChangeType{baseOp(pqquery.OpChangeType), types}
}

type TransformColumns struct {
	baseOperation
	Transforms map[string]ColumnFunc
	TargetType map[string]pqvalue.TypeName // optional, may be empty per column
}

func NewTransformColumns(transforms map[string]ColumnFunc, targetType map[string]pqvalue.TypeName) TransformColumns {
	return TransformColumns{baseOp(pqquery.OpTransformColumns), transforms, targetType}
}

type AddColumn struct {
	baseOperation
	Name    string
	Formula RowFunc
}

func NewAddColumn(name string, f RowFunc) AddColumn {
	return AddColumn{baseOp(pqquery.OpAddColumn), name, f}
}

type AddIndexColumn struct {
	baseOperation
	Name         string
	InitialValue int
	Increment    int
}

func NewAddIndexColumn(name string, initial, increment int) AddIndexColumn {
	return AddIndexColumn{baseOp(pqquery.OpAddIndexColumn), name, initial, increment}
}

type CombineColumns struct {
	baseOperation
	Sources   []string
	Delimiter string
	NewName   string
}

func NewCombineColumns(sources []string, delimiter, newName string) CombineColumns {
	return CombineColumns{baseOp(pqquery.OpCombineColumns), sources, delimiter, newName}
}

type SplitColumn struct {
	baseOperation
	Source       string
	Delimiter    string
	TargetNames  []string // optional; nil means "compute from max split count"
}

func NewSplitColumn(source, delimiter string, targetNames []string) SplitColumn {
	return SplitColumn{baseOp(pqquery.OpSplitColumn), source, delimiter, targetNames}
}

// --- row operations ---

type Predicate interface {
	Eval(row []pqvalue.Value, cols []pqtable.Column) bool
}

type PredicateFunc func(row []pqvalue.Value, cols []pqtable.Column) bool

func (f PredicateFunc) Eval(row []pqvalue.Value, cols []pqtable.Column) bool { return f(row, cols) }

// And composes two predicates conjunctively; grounds the §8 property
// filter(p)∘filter(q) ≡ filter(and(p,q)).
func And(p, q Predicate) Predicate {
	return PredicateFunc(func(row []pqvalue.Value, cols []pqtable.Column) bool {
		return p.Eval(row, cols) && q.Eval(row, cols)
	})
}

type FilterRows struct {
	baseOperation
	Predicate Predicate
}

func NewFilterRows(p Predicate) FilterRows { return FilterRows{baseOp(pqquery.OpFilterRows), p} }

type SortRows struct {
	baseOperation
	Keys []SortKey
}

func NewSortRows(keys []SortKey) SortRows { return SortRows{baseOp(pqquery.OpSortRows), keys} }

type DistinctRows struct {
	baseOperation
	Columns []string // empty means "all columns"
}

func NewDistinctRows(columns []string) DistinctRows {
	return DistinctRows{baseOp(pqquery.OpDistinctRows), columns}
}

type RemoveRowsWithErrors struct {
	baseOperation
	Columns []string // empty means "all columns"
}

func NewRemoveRowsWithErrors(columns []string) RemoveRowsWithErrors {
	return RemoveRowsWithErrors{baseOp(pqquery.OpRemoveRowsWithErrors), columns}
}

type ReplaceValues struct {
	baseOperation
	Column         string
	Find, Replace  pqvalue.Value
}

func NewReplaceValues(column string, find, replace pqvalue.Value) ReplaceValues {
	return ReplaceValues{baseOp(pqquery.OpReplaceValues), column, find, replace}
}

type ReplaceErrorValues struct {
	baseOperation
	Columns     []string
	Replacement pqvalue.Value
}

func NewReplaceErrorValues(columns []string, replacement pqvalue.Value) ReplaceErrorValues {
	return ReplaceErrorValues{baseOp(pqquery.OpReplaceErrorValues), columns, replacement}
}

type FillDown struct {
	baseOperation
	Columns []string
}

func NewFillDown(columns []string) FillDown { return FillDown{baseOp(pqquery.OpFillDown), columns} }

type Take struct {
	baseOperation
	N int
}

func NewTake(n int) Take { return Take{baseOp(pqquery.OpTake), n} }

type Skip struct {
	baseOperation
	N int
}

func NewSkip(n int) Skip { return Skip{baseOp(pqquery.OpSkip), n} }

type RemoveRows struct {
	baseOperation
	Offset, Count int
}

func NewRemoveRows(offset, count int) RemoveRows {
	return RemoveRows{baseOp(pqquery.OpRemoveRows), offset, count}
}

// --- header operations ---

type PromoteHeaders struct{ baseOperation }

func NewPromoteHeaders() PromoteHeaders { return PromoteHeaders{baseOp(pqquery.OpPromoteHeaders)} }

type DemoteHeaders struct{ baseOperation }

func NewDemoteHeaders() DemoteHeaders { return DemoteHeaders{baseOp(pqquery.OpDemoteHeaders)} }

// --- shape operations ---

type GroupBy struct {
	baseOperation
	Keys []string
	Aggs []AggSpec
}

func NewGroupBy(keys []string, aggs []AggSpec) GroupBy {
	return GroupBy{baseOp(pqquery.OpGroupBy), keys, aggs}
}

type Pivot struct {
	baseOperation
	RowColumn   string
	ValueColumn string
	Agg         AggKind
}

func NewPivot(rowCol, valueCol string, agg AggKind) Pivot {
	return Pivot{baseOp(pqquery.OpPivot), rowCol, valueCol, agg}
}

type Unpivot struct {
	baseOperation
	Columns   []string
	NameCol   string
	ValueCol  string
}

func NewUnpivot(columns []string, nameCol, valueCol string) Unpivot {
	return Unpivot{baseOp(pqquery.OpUnpivot), columns, nameCol, valueCol}
}

type ExpandTableColumn struct {
	baseOperation
	Column string
}

func NewExpandTableColumn(column string) ExpandTableColumn {
	return ExpandTableColumn{baseOp(pqquery.OpExpandTableColumn), column}
}

// --- cross-query operations ---

type Merge struct {
	baseOperation
	RightQuery string
	JoinType   JoinType
	LeftKeys   []string
	RightKeys  []string
	Mode       JoinMode
	NewColumnName string // used only for JoinNested
	CaseInsensitive []bool // per key-pair; applyMerge does not read it, so keys always compare case-sensitively
}

func NewMerge(rightQuery string, joinType JoinType, leftKeys, rightKeys []string, mode JoinMode, newColumnName string) Merge {
	return Merge{baseOp(pqquery.OpMerge), rightQuery, joinType, leftKeys, rightKeys, mode, newColumnName, nil}
}

func (m Merge) Dependencies() []string { return []string{m.RightQuery} }

type Append struct {
	baseOperation
	Queries []string
}

func NewAppend(queries []string) Append {
	return Append{baseOp(pqquery.OpAppend), queries}
}

func (a Append) Dependencies() []string { return a.Queries }

var _ pqquery.Operation = SelectColumns{}
var _ pqquery.Operation = Merge{}
var _ pqquery.Operation = Append{}
