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

// Package pqstreamops implements the three stateful streaming operators of
// spec §4.H that pqstream's pure per-batch pipeline can't express: sortRows
// (needs a global order), groupBy (needs two sorted passes), and merge
// (needs an indexed right side). Each builds on pqextsort's spill-aware
// external sort rather than re-deriving spill logic locally.
package pqstreamops

import (
	"context"

	"github.com/erigontech/powerquery/pkg/pqerr"
	"github.com/erigontech/powerquery/pkg/pqextsort"
	"github.com/erigontech/powerquery/pkg/pqops"
	"github.com/erigontech/powerquery/pkg/pqspill"
	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

// PullFunc supplies the next input batch; ok=false with a nil error signals
// clean end of input, mirroring pqextsort.PullFunc.
type PullFunc = pqextsort.PullFunc

// EmitFunc receives one output batch.
type EmitFunc = pqextsort.EmitFunc

// Options configures the external-sort budget shared by every operator in
// this package.
type Options = pqextsort.Options

func resolveIndices(cols []pqtable.Column, names []string) ([]int, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		found := false
		for ci, c := range cols {
			if c.Name == n {
				idx[i] = ci
				found = true
				break
			}
		}
		if !found {
			return nil, pqerr.Contractf("pqstreamops: unknown column %q", n)
		}
	}
	return idx, nil
}

// SortStream is sortRows over a stream (spec §4.H): decorate with a
// sequence number, external-sort by (user-keys, seq), strip decoration.
// pqextsort.Run already folds the arrival sequence number in as the final
// tiebreaker, so this is a thin comparator adapter over it.
func SortStream(ctx context.Context, pull PullFunc, cols []pqtable.Column, keys []pqops.SortKey, store pqspill.Store, keyPrefix string, opts Options, emit EmitFunc) error {
	idx, err := resolveIndices(cols, keyNames(keys))
	if err != nil {
		return err
	}
	cmp := func(a, b pqspill.Row) int {
		for i, k := range keys {
			va, vb := a[idx[i]], b[idx[i]]
			if pqvalue.Equals(va, vb) {
				continue
			}
			lt := pqvalue.Less(va, vb, k.NullsFirst)
			gt := pqvalue.Less(vb, va, k.NullsFirst)
			if !lt && !gt {
				continue
			}
			if k.Ascending {
				if lt {
					return -1
				}
				return 1
			}
			if gt {
				return -1
			}
			return 1
		}
		return 0
	}
	return pqextsort.Run(ctx, pull, cmp, store, keyPrefix, opts, emit)
}

func keyNames(keys []pqops.SortKey) []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Column
	}
	return names
}
