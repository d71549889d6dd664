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
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/erigontech/powerquery/pkg/pqcachekey"
)

// onDiskEntry is the JSON shape written to <hash>.json: Value kept as raw
// JSON so Get can hand back exactly what was stored without re-inferring
// its Go type.
type onDiskEntry struct {
	Value       json.RawMessage `json:"value"`
	CreatedAtMs int64           `json:"createdAtMs"`
	ExpiresAtMs *int64          `json:"expiresAtMs"`
}

// FilesystemStore is the one-file-per-key store of spec §4.C: entries live
// at <dir>/<fnv1a64(key)>.json, written atomically via temp-then-rename.
// get touches mtime to approximate LRU so a later Prune can sort by it.
type FilesystemStore struct {
	dir string
}

// NewFilesystemStore opens (and creates if absent) dir as the backing
// directory for a filesystem cache store.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FilesystemStore{dir: dir}, nil
}

func (s *FilesystemStore) pathFor(key string) string {
	return filepath.Join(s.dir, pqcachekey.FNV1a64(key)+".json")
}

func (s *FilesystemStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	path := s.pathFor(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, nil
	}
	var od onDiskEntry
	if err := json.Unmarshal(raw, &od); err != nil {
		os.Remove(path)
		return Entry{}, false, nil
	}
	var v any
	if len(od.Value) > 0 {
		if err := json.Unmarshal(od.Value, &v); err != nil {
			os.Remove(path)
			return Entry{}, false, nil
		}
	}
	e := Entry{Value: v, CreatedAtMs: od.CreatedAtMs, ExpiresAtMs: od.ExpiresAtMs}
	if e.expired(nowMillis()) {
		os.Remove(path)
		return Entry{}, false, nil
	}
	now := time.Now()
	os.Chtimes(path, now, now) // best-effort mtime touch, approximates LRU
	return e, true, nil
}

func (s *FilesystemStore) Set(ctx context.Context, key string, entry Entry) error {
	raw, err := json.Marshal(entry.Value)
	if err != nil {
		return err
	}
	od := onDiskEntry{Value: raw, CreatedAtMs: entry.CreatedAtMs, ExpiresAtMs: entry.ExpiresAtMs}
	data, err := json.Marshal(od)
	if err != nil {
		return err
	}
	return atomicWriteFile(s.pathFor(key), data, 0o644)
}

func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.pathFor(key))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FilesystemStore) Clear(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			os.Remove(filepath.Join(s.dir, e.Name()))
		}
	}
	return nil
}

func (s *FilesystemStore) PruneExpired(ctx context.Context, nowMs int64) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, de := range entries {
		if filepath.Ext(de.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.dir, de.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var od onDiskEntry
		if err := json.Unmarshal(raw, &od); err != nil {
			os.Remove(path)
			continue
		}
		if od.ExpiresAtMs != nil && nowMs >= *od.ExpiresAtMs {
			os.Remove(path)
		}
	}
	return nil
}

type fileStat struct {
	path  string
	mtime int64
	size  int64
}

// Prune enforces MaxEntries/MaxBytes by dropping the least-recently-touched
// files first (mtime ascending), after first dropping anything expired.
func (s *FilesystemStore) Prune(ctx context.Context, opts PruneOptions) error {
	if opts.NowMs != 0 {
		if err := s.PruneExpired(ctx, opts.NowMs); err != nil {
			return err
		}
	}
	if opts.MaxEntries <= 0 && opts.MaxBytes <= 0 {
		return nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	var files []fileStat
	var totalBytes int64
	for _, de := range entries {
		if filepath.Ext(de.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.dir, de.Name())
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, fileStat{path: path, mtime: info.ModTime().UnixNano(), size: info.Size()})
		totalBytes += info.Size()
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mtime < files[j].mtime })
	n := len(files)
	i := 0
	for i < len(files) && ((opts.MaxEntries > 0 && n > opts.MaxEntries) || (opts.MaxBytes > 0 && totalBytes > opts.MaxBytes)) {
		os.Remove(files[i].path)
		totalBytes -= files[i].size
		n--
		i++
	}
	return nil
}
