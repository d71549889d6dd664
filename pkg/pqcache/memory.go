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

package pqcache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultMemoryCapacity bounds the underlying LRU when the caller doesn't
// size it explicitly; pruning by maxEntries/maxBytes still narrows further.
const defaultMemoryCapacity = 100000

// MemoryStore is the in-process HashMap-with-TTL store of spec §4.C. LRU
// eviction (beyond explicit quota pruning) is delegated to golang-lru rather
// than hand-rolled, since capacity-bounded eviction is exactly what it's for.
type MemoryStore struct {
	mu  sync.Mutex
	lru *lru.Cache[string, Entry]
}

// NewMemoryStore builds a MemoryStore. capacity<=0 uses defaultMemoryCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	c, _ := lru.New[string, Entry](capacity) // only errors on capacity<=0, excluded above
	return &MemoryStore{lru: c}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lru.Get(key)
	if !ok {
		return Entry{}, false, nil
	}
	if e.expired(nowMsOrArg(ctx)) {
		s.lru.Remove(key)
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Add(key, entry)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Remove(key)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Purge()
	return nil
}

// PruneExpired drops every entry whose ExpiresAtMs has passed as of nowMs.
func (s *MemoryStore) PruneExpired(ctx context.Context, nowMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.lru.Keys() {
		e, ok := s.lru.Peek(k)
		if ok && e.expired(nowMs) {
			s.lru.Remove(k)
		}
	}
	return nil
}

// Prune additionally enforces MaxEntries/MaxBytes by dropping the least
// recently used entries first (golang-lru already orders Keys() LRU-first).
func (s *MemoryStore) Prune(ctx context.Context, opts PruneOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.lru.Keys() {
		e, ok := s.lru.Peek(k)
		if ok && e.expired(opts.NowMs) {
			s.lru.Remove(k)
		}
	}
	if opts.MaxEntries > 0 {
		for s.lru.Len() > opts.MaxEntries {
			keys := s.lru.Keys()
			if len(keys) == 0 {
				break
			}
			s.lru.Remove(keys[0])
		}
	}
	if opts.MaxBytes > 0 {
		for entrySetBytes(s.lru) > opts.MaxBytes {
			keys := s.lru.Keys()
			if len(keys) == 0 {
				break
			}
			s.lru.Remove(keys[0])
		}
	}
	return nil
}

func entrySetBytes(c *lru.Cache[string, Entry]) int64 {
	var total int64
	for _, k := range c.Keys() {
		if e, ok := c.Peek(k); ok {
			total += estimateEntryBytes(e)
		}
	}
	return total
}

// nowMsOrArg lets tests inject a clock via context; production callers pass
// a plain context.Background() and rely on the caller-supplied nowMs in
// PruneExpired/Prune instead — Get's lazy check uses the ambient clock.
func nowMsOrArg(ctx context.Context) int64 {
	if v, ok := ctx.Value(nowMsCtxKey{}).(int64); ok {
		return v
	}
	return nowMillis()
}

type nowMsCtxKey struct{}

// WithNowMs returns a context carrying a fixed clock reading, used by tests
// to make Get's lazy TTL check deterministic.
func WithNowMs(ctx context.Context, nowMs int64) context.Context {
	return context.WithValue(ctx, nowMsCtxKey{}, nowMs)
}
