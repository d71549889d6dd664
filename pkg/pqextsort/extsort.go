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

// Package pqextsort implements externalSortBatches (spec §4.G): accumulate
// rows in memory up to a budget, spill a sorted run whenever the budget is
// crossed, then k-way merge the runs (or, if nothing was ever spilled, just
// emit the in-memory sort). Stability is guaranteed end to end by decorating
// every row with a monotonically increasing sequence number and folding it
// into the comparator as the final tiebreaker, the way spec §4.G prescribes.
package pqextsort

import (
	"context"
	"fmt"

	"github.com/erigontech/powerquery/pkg/pqerr"
	"github.com/erigontech/powerquery/pkg/pqspill"
	"github.com/google/btree"
)

// Comparator orders two rows; externalSortBatches never sees ties because
// the internal decoration always breaks them by arrival sequence.
type Comparator func(a, b pqspill.Row) int

// Options configures one externalSortBatches run.
type Options struct {
	BatchSize       int
	MaxInMemoryRows int
	MaxInMemoryBytes int64 // 0 means "no byte budget", only MaxInMemoryRows governs flushing
}

// PullFunc supplies the next input batch; ok=false with a nil error signals
// clean end of input.
type PullFunc func(ctx context.Context) (batch pqspill.Batch, ok bool, err error)

// EmitFunc receives one output batch of the merged, globally sorted stream.
type EmitFunc func(ctx context.Context, batch pqspill.Batch) error

type decorated struct {
	seq int64
	row pqspill.Row
}

// Run runs externalSortBatches: it drains pull via cmp into store under
// keyPrefix, then streams the fully sorted result through emit. store keys
// under keyPrefix are cleared in a deferred finally regardless of outcome
// (spec §4.G / §3.5), matching the teacher's defer-cleanup idiom.
func Run(ctx context.Context, pull PullFunc, cmp Comparator, store pqspill.Store, keyPrefix string, opts Options, emit EmitFunc) (err error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1024
	}
	less := func(a, b decorated) bool {
		if c := cmp(a.row, b.row); c != 0 {
			return c < 0
		}
		return a.seq < b.seq
	}
	acc := btree.NewG(32, less)
	var accRows int
	var accBytes int64
	var seq int64
	var runCount int

	defer func() {
		if clearErr := store.ClearPrefix(context.Background(), keyPrefix); clearErr != nil && err == nil {
			err = clearErr
		}
	}()

	flush := func() error {
		if acc.Len() == 0 {
			return nil
		}
		runKey := fmt.Sprintf("%s/run%d", keyPrefix, runCount)
		runCount++
		var batch pqspill.Batch
		var flushErr error
		acc.Ascend(func(d decorated) bool {
			batch = append(batch, d.row)
			if len(batch) >= opts.BatchSize {
				if flushErr = store.Append(ctx, runKey, batch); flushErr != nil {
					return false
				}
				batch = nil
			}
			return true
		})
		if flushErr != nil {
			return flushErr
		}
		if len(batch) > 0 {
			if err := store.Append(ctx, runKey, batch); err != nil {
				return err
			}
		}
		acc = btree.NewG(32, less)
		accRows, accBytes = 0, 0
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return pqerr.ErrAborted
		}
		batch, ok, pullErr := pull(ctx)
		if pullErr != nil {
			return pullErr
		}
		if !ok {
			break
		}
		for _, row := range batch {
			acc.ReplaceOrInsert(decorated{seq: seq, row: row})
			seq++
			accRows++
			accBytes += estimateRowBytes(row)
		}
		if accRows >= opts.MaxInMemoryRows || (opts.MaxInMemoryBytes > 0 && accBytes >= opts.MaxInMemoryBytes) {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if runCount == 0 {
		// Nothing was ever spilled: emit the in-memory sort directly.
		return emitFromTree(ctx, acc, opts.BatchSize, emit)
	}

	if err := flush(); err != nil {
		return err
	}
	return mergeRuns(ctx, store, keyPrefix, runCount, cmp, opts.BatchSize, emit)
}

func emitFromTree(ctx context.Context, acc *btree.BTreeG[decorated], batchSize int, emit EmitFunc) error {
	var batch pqspill.Batch
	var emitErr error
	acc.Ascend(func(d decorated) bool {
		if err := ctx.Err(); err != nil {
			emitErr = pqerr.ErrAborted
			return false
		}
		batch = append(batch, d.row)
		if len(batch) >= batchSize {
			if emitErr = emit(ctx, batch); emitErr != nil {
				return false
			}
			batch = nil
		}
		return true
	})
	if emitErr != nil {
		return emitErr
	}
	if len(batch) > 0 {
		return emit(ctx, batch)
	}
	return nil
}

func estimateRowBytes(row pqspill.Row) int64 {
	return int64(len(row))*24 + 16
}
