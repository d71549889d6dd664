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

	"github.com/erigontech/powerquery/pkg/pqquery"
	"github.com/erigontech/powerquery/pkg/pqtable"
)

// ApplyOperation is applyOperation(table, op) from spec §4.D: a pure,
// single-pass function from one materialized table to the next. resolve is
// only consulted by Merge/Append, which are the two operations with
// cross-query dependencies; every other operation ignores it.
func ApplyOperation(t pqtable.ITable, op pqquery.Operation, resolve Resolver) (pqtable.ITable, error) {
	switch o := op.(type) {
	case SelectColumns:
		return applySelectColumns(t, o)
	case RemoveColumns:
		return applyRemoveColumns(t, o)
	case RenameColumn:
		return applyRenameColumn(t, o)
	case ReorderColumns:
		return applyReorderColumns(t, o)
	case TransformColumnNames:
		return applyTransformColumnNames(t, o)
	case ChangeType:
		return applyChangeType(t, o)
	case TransformColumns:
		return applyTransformColumns(t, o)
	case AddColumn:
		return applyAddColumn(t, o)
	case AddIndexColumn:
		return applyAddIndexColumn(t, o)
	case CombineColumns:
		return applyCombineColumns(t, o)
	case SplitColumn:
		return applySplitColumn(t, o)
	case FilterRows:
		return applyFilterRows(t, o)
	case SortRows:
		return applySortRows(t, o)
	case DistinctRows:
		return applyDistinctRows(t, o)
	case RemoveRowsWithErrors:
		return applyRemoveRowsWithErrors(t, o)
	case ReplaceValues:
		return applyReplaceValues(t, o)
	case ReplaceErrorValues:
		return applyReplaceErrorValues(t, o)
	case FillDown:
		return applyFillDown(t, o)
	case Take:
		return applyTake(t, o)
	case Skip:
		return applySkip(t, o)
	case RemoveRows:
		return applyRemoveRows(t, o)
	case PromoteHeaders:
		return applyPromoteHeaders(t, o)
	case DemoteHeaders:
		return applyDemoteHeaders(t, o)
	case GroupBy:
		return applyGroupBy(t, o)
	case Pivot:
		return applyPivot(t, o)
	case Unpivot:
		return applyUnpivot(t, o)
	case ExpandTableColumn:
		return applyExpandTableColumn(t, o)
	case Merge:
		if resolve == nil {
			return nil, fmt.Errorf("pqops: merge requires a query resolver")
		}
		return applyMerge(t, o, resolve)
	case Append:
		if resolve == nil {
			return nil, fmt.Errorf("pqops: append requires a query resolver")
		}
		return applyAppend(t, o, resolve)
	default:
		return nil, fmt.Errorf("pqops: unsupported operation kind %q", op.Kind())
	}
}

// IsStreamable reports whether an operation participates in the streaming
// pipeline compiler of spec §4.E: it must process one batch at a time
// without needing the whole table materialized first. splitColumn only
// qualifies with explicit target names — without them the column count
// depends on the maximum split seen across the whole table.
func IsStreamable(op pqquery.Operation) bool {
	switch o := op.(type) {
	case SelectColumns, RemoveColumns, RenameColumn, ReorderColumns,
		TransformColumnNames, ChangeType, TransformColumns,
		AddColumn, AddIndexColumn, CombineColumns,
		FilterRows, Take, Skip, RemoveRows, FillDown,
		ReplaceValues, RemoveRowsWithErrors, DistinctRows,
		ReplaceErrorValues, PromoteHeaders, DemoteHeaders:
		return true
	case SplitColumn:
		return o.TargetNames != nil
	default:
		return false
	}
}
