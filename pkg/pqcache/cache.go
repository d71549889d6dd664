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

// Package pqcache implements the four cache store backends of spec §4.C:
// Memory, Filesystem, Encrypted Filesystem and Browser-KV. All four share
// the Store interface; failure semantics are uniform across them — any
// parse, decrypt or I/O failure on a single entry is a miss, never a stale
// or corrupt read, and the offending artifact is best-effort deleted.
package pqcache

import "context"

// Entry is a cache entry (spec §3.4): a value plus its creation time and
// optional absolute expiry. Value is typically a TableValue for query
// results, but the store itself is agnostic to its shape.
type Entry struct {
	Value       any    `json:"value"`
	CreatedAtMs int64  `json:"createdAtMs"`
	ExpiresAtMs *int64 `json:"expiresAtMs"`
}

// TableValue is the shape Entry.Value takes for a cached table result
// (spec §3.4): version 2, a TablePayload, and free-form metadata.
type TableValue struct {
	Version int            `json:"version"`
	Table   TablePayload   `json:"table"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// TablePayload is either an inline row grid or an Arrow-IPC byte blob. The
// wire format of the Arrow bytes themselves is out of scope (spec §1); the
// cache only needs to round-trip them byte-for-byte.
type TablePayload struct {
	Kind  string   `json:"kind"` // "rows" or "arrow"
	Rows  *RowGrid `json:"rows,omitempty"`
	Bytes []byte   `json:"-"` // arrow bytes; stores decide inline vs companion file
}

// RowGrid is the inline (non-Arrow) table payload shape: a header plus a
// row-major grid of already-stringified-or-JSON-safe cells.
type RowGrid struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// expired reports whether e is expired at nowMs. A nil ExpiresAtMs never
// expires.
func (e Entry) expired(nowMs int64) bool {
	return e.ExpiresAtMs != nil && nowMs >= *e.ExpiresAtMs
}

// Store is the shared contract of spec §4.C: get/set/delete/clear. A miss
// (key absent, expired, or corrupt) is reported as (Entry{}, false, nil),
// never as an error.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// ExpiryPruner proactively drops expired entries, complementing the lazy
// on-Get TTL check every store also performs.
type ExpiryPruner interface {
	PruneExpired(ctx context.Context, nowMs int64) error
}

// PruneOptions bounds a quota-driven prune (spec §4.C "prune({nowMs,
// maxEntries?, maxBytes?})"). Zero means unbounded for that dimension.
type PruneOptions struct {
	NowMs      int64
	MaxEntries int
	MaxBytes   int64
}

// QuotaPruner additionally evicts by LRU (oldest access first) once a
// capacity quota is crossed.
type QuotaPruner interface {
	Prune(ctx context.Context, opts PruneOptions) error
}
