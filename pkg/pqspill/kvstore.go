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

package pqspill

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/erigontech/powerquery/pkg/pqerr"
)

// kvRecord mirrors the browser-KV record shape of spec §4.F: an
// auto-incrementing id, the logical key, and the batch of rows.
type kvRecord struct {
	id    uint64
	key   string
	batch Batch
}

// KVStore models the IndexedDB-style object store backing: records indexed
// by key, iterated via a monotonically increasing id acting as the cursor
// position, with cursor-delete semantics for ClearPrefix. A real browser-KV
// binding would swap this in-process map for IndexedDB transactions; the
// cursor ordering contract is what callers depend on, which is why this
// implementation keeps the same id-ordered iteration even though it could
// just delegate straight to MemoryStore.
type KVStore struct {
	mu      sync.Mutex
	nextID  uint64
	records []kvRecord
	stats   Stats
}

func NewKVStore() *KVStore {
	return &KVStore{}
}

func (s *KVStore) Append(ctx context.Context, key string, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return pqerr.ErrAborted
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.records = append(s.records, kvRecord{id: s.nextID, key: key, batch: batch})
	s.stats.BatchesWritten++
	s.stats.RowsWritten += int64(len(batch))
	s.stats.BytesWritten += int64(estimateBatchBytes(batch))
	return nil
}

func (s *KVStore) Iterate(ctx context.Context, key string, yield func(Batch) bool) error {
	s.mu.Lock()
	matches := make([]kvRecord, 0)
	for _, r := range s.records {
		if r.key == key {
			matches = append(matches, r)
		}
	}
	s.mu.Unlock()
	// Cursor order is insertion (id ascending); records are already
	// appended in id order so no re-sort is needed, but make the
	// dependency on ordering explicit for future maintainers.
	sort.Slice(matches, func(i, j int) bool { return matches[i].id < matches[j].id })
	for _, r := range matches {
		if err := ctx.Err(); err != nil {
			return pqerr.ErrAborted
		}
		if !yield(r.batch) {
			return nil
		}
	}
	return nil
}

func (s *KVStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteWhere(func(r kvRecord) bool { return r.key == key })
	return nil
}

func (s *KVStore) ClearPrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteWhere(func(r kvRecord) bool { return strings.HasPrefix(r.key, prefix) })
	return nil
}

// deleteWhere is the cursor-delete loop: walk every record and drop the ones
// matching pred, keeping the rest in place. Must hold s.mu.
func (s *KVStore) deleteWhere(pred func(kvRecord) bool) {
	kept := s.records[:0]
	for _, r := range s.records {
		if !pred(r) {
			kept = append(kept, r)
		}
	}
	s.records = kept
}

func (s *KVStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

var _ Store = (*KVStore)(nil)
