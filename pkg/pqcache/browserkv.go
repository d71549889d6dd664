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
	"sort"
	"sync"

	"github.com/erigontech/powerquery/pkg/pqcachekey"
)

// BrowserKVStore models spec §4.C's Browser-KV backend: a single IndexedDB
// object store indexed by hashed key, where pruneExpired is a cursor walk
// rather than a full-table scan. This host has no real IndexedDB, so the
// object store is an in-memory map keyed by the hashed key, with the hashed
// keys kept sorted to give pruneExpired the same ascending-cursor order a
// real object store index would produce.
type BrowserKVStore struct {
	mu     sync.Mutex
	byHash map[string]Entry
	hashes []string // kept sorted ascending, mirrors IndexedDB's key-ordered cursor
}

// NewBrowserKVStore builds an empty Browser-KV-shaped store.
func NewBrowserKVStore() *BrowserKVStore {
	return &BrowserKVStore{byHash: map[string]Entry{}}
}

func (s *BrowserKVStore) insertHash(h string) {
	i := sort.SearchStrings(s.hashes, h)
	if i < len(s.hashes) && s.hashes[i] == h {
		return
	}
	s.hashes = append(s.hashes, "")
	copy(s.hashes[i+1:], s.hashes[i:])
	s.hashes[i] = h
}

func (s *BrowserKVStore) removeHash(h string) {
	i := sort.SearchStrings(s.hashes, h)
	if i < len(s.hashes) && s.hashes[i] == h {
		s.hashes = append(s.hashes[:i], s.hashes[i+1:]...)
	}
}

func (s *BrowserKVStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := pqcachekey.FNV1a64(key)
	e, ok := s.byHash[h]
	if !ok {
		return Entry{}, false, nil
	}
	if e.expired(nowMillis()) {
		delete(s.byHash, h)
		s.removeHash(h)
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *BrowserKVStore) Set(ctx context.Context, key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := pqcachekey.FNV1a64(key)
	s.byHash[h] = entry
	s.insertHash(h)
	return nil
}

func (s *BrowserKVStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := pqcachekey.FNV1a64(key)
	delete(s.byHash, h)
	s.removeHash(h)
	return nil
}

func (s *BrowserKVStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash = map[string]Entry{}
	s.hashes = nil
	return nil
}

// PruneExpired walks the object store in ascending key order, like an
// IndexedDB cursor, deleting every entry whose expiry has passed.
func (s *BrowserKVStore) PruneExpired(ctx context.Context, nowMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var drop []string
	for _, h := range s.hashes {
		if e, ok := s.byHash[h]; ok && e.expired(nowMs) {
			drop = append(drop, h)
		}
	}
	for _, h := range drop {
		delete(s.byHash, h)
		s.removeHash(h)
	}
	return nil
}
