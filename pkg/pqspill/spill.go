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

// Package pqspill implements the SpillStore contract of spec §3.5/§4.F: an
// append-only, per-key batch log used for out-of-core intermediate state.
package pqspill

import (
	"context"
	"strings"
	"sync"

	"github.com/erigontech/powerquery/pkg/pqerr"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

// Row is one spilled row; Batch groups rows the way the producing operator
// chose to flush them.
type Row = []pqvalue.Value
type Batch = []Row

// Stats tracks the running totals every SpillStore implementation exposes.
type Stats struct {
	RowsWritten    int64
	BatchesWritten int64
	BytesWritten   int64
}

// Store is the contract shared by every implementation: append-only,
// order-preserving within a key, idempotent Clear/ClearPrefix.
type Store interface {
	// Append adds one batch to key's log. Must check ctx at the suspension
	// point per spec §5.
	Append(ctx context.Context, key string, batch Batch) error
	// Iterate yields batches for key in insertion order; stops early if
	// yield returns false.
	Iterate(ctx context.Context, key string, yield func(Batch) bool) error
	// Clear removes all batches for key. Idempotent.
	Clear(ctx context.Context, key string) error
	// ClearPrefix removes all keys sharing prefix. Idempotent.
	ClearPrefix(ctx context.Context, prefix string) error
	Stats() Stats
}

// MemoryStore is the in-memory Map<Key, Vec<Batch>> implementation.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string][]Batch
	stats Stats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]Batch{}}
}

func (s *MemoryStore) Append(ctx context.Context, key string, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return pqerr.ErrAborted
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append(s.data[key], batch)
	s.stats.BatchesWritten++
	s.stats.RowsWritten += int64(len(batch))
	s.stats.BytesWritten += int64(estimateBatchBytes(batch))
	return nil
}

func (s *MemoryStore) Iterate(ctx context.Context, key string, yield func(Batch) bool) error {
	s.mu.Lock()
	batches := append([]Batch(nil), s.data[key]...)
	s.mu.Unlock()
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return pqerr.ErrAborted
		}
		if !yield(b) {
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) ClearPrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
		}
	}
	return nil
}

func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// estimateBatchBytes is the "approximate, stringified size estimate" named
// in spec §4.F: a cheap stand-in for real serialized size, not a byte-exact
// accounting.
func estimateBatchBytes(b Batch) int {
	n := 0
	for _, row := range b {
		for _, v := range row {
			n += len(pqvalue.ValueToString(v)) + 8
		}
	}
	return n
}

var _ Store = (*MemoryStore)(nil)
