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

package pqextsort

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/erigontech/powerquery/pkg/pqerr"
	"github.com/erigontech/powerquery/pkg/pqspill"
)

// runCursor pulls decorated rows one at a time out of a single spilled run,
// fed by a goroutine that drains store.Iterate's batch-at-a-time callback
// into a channel so the k-way merge below can advance runs independently
// instead of materializing every run fully in memory.
type runCursor struct {
	id     int
	rows   <-chan decorated
	errc   <-chan error
	cancel context.CancelFunc
}

func startRunCursor(ctx context.Context, store pqspill.Store, runKey string, id int) *runCursor {
	ctx, cancel := context.WithCancel(ctx)
	rows := make(chan decorated, 64)
	errc := make(chan error, 1)
	go func() {
		defer close(rows)
		var seq int64
		err := store.Iterate(ctx, runKey, func(b pqspill.Batch) bool {
			for _, row := range b {
				select {
				case rows <- decorated{seq: seq, row: row}:
					seq++
				case <-ctx.Done():
					return false
				}
			}
			return true
		})
		errc <- err
	}()
	return &runCursor{id: id, rows: rows, errc: errc, cancel: cancel}
}

// heapItem is one run's current head row, the unit the min-heap orders by
// (comparator(head_of_run), run_id) per spec §4.G.
type heapItem struct {
	run *runCursor
	row decorated
}

type mergeHeap struct {
	items []heapItem
	less  func(a, b decorated) bool
}

func (h *mergeHeap) Len() int { return len(h.items) }
func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if h.less(a.row, b.row) {
		return true
	}
	if h.less(b.row, a.row) {
		return false
	}
	return a.run.id < b.run.id
}
func (h *mergeHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap) Push(x any)         { h.items = append(h.items, x.(heapItem)) }
func (h *mergeHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// mergeRuns performs the k-way merge: a min-heap keyed by (comparator,
// run_id), emitting batches of batchSize and advancing whichever run
// supplied the row just emitted.
func mergeRuns(ctx context.Context, store pqspill.Store, keyPrefix string, runCount int, cmp Comparator, batchSize int, emit EmitFunc) error {
	less := func(a, b decorated) bool {
		return cmp(a.row, b.row) < 0
	}

	cursors := make([]*runCursor, runCount)
	for i := 0; i < runCount; i++ {
		cursors[i] = startRunCursor(ctx, store, fmt.Sprintf("%s/run%d", keyPrefix, i), i)
	}
	defer func() {
		for _, c := range cursors {
			c.cancel()
		}
	}()

	h := &mergeHeap{less: less}
	for _, c := range cursors {
		if row, ok, err := next(c); err != nil {
			return err
		} else if ok {
			heap.Push(h, heapItem{run: c, row: row})
		}
	}

	var batch pqspill.Batch
	for h.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return pqerr.ErrAborted
		}
		top := heap.Pop(h).(heapItem)
		batch = append(batch, top.row.row)
		if row, ok, err := next(top.run); err != nil {
			return err
		} else if ok {
			heap.Push(h, heapItem{run: top.run, row: row})
		}
		if len(batch) >= batchSize {
			if err := emit(ctx, batch); err != nil {
				return err
			}
			batch = nil
		}
	}
	if len(batch) > 0 {
		return emit(ctx, batch)
	}
	return nil
}

func next(c *runCursor) (decorated, bool, error) {
	row, ok := <-c.rows
	if !ok {
		select {
		case err := <-c.errc:
			return decorated{}, false, err
		default:
			return decorated{}, false, nil
		}
	}
	return row, true, nil
}
