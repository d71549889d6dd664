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
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/erigontech/powerquery/pkg/pqerr"
)

// FilesystemStore is the concrete NativeFS backing spec §4.F describes only
// as a deployment concern: every Append becomes one zstd-compressed,
// JSON-encoded batch file, so a spill too large for memory still costs
// disk rather than RAM. Files live under dir/<hex(key)>/, named by a
// zero-padded, monotonically increasing sequence number so Iterate can walk
// a key's batches back in append order by sorting file names lexically.
type FilesystemStore struct {
	dir string

	mu    sync.Mutex
	stats Stats
	seq   map[string]uint64 // per-key next sequence number, lazily populated

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewFilesystemStore creates (if absent) dir and returns a store rooted
// there.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pqerr.Spillf("pqspill: create store dir %s: %v", dir, err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, pqerr.Spillf("pqspill: init zstd encoder: %v", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, pqerr.Spillf("pqspill: init zstd decoder: %v", err)
	}
	return &FilesystemStore{dir: dir, seq: map[string]uint64{}, enc: enc, dec: dec}, nil
}

func (s *FilesystemStore) Dir() string { return s.dir }

// keyDirName hex-encodes key so it's always a valid single path component,
// and so ClearPrefix can test the encoded names directly: hex encoding maps
// each byte independently, so it preserves "is a prefix of".
func keyDirName(key string) string { return hex.EncodeToString([]byte(key)) }

func (s *FilesystemStore) keyDir(key string) string {
	return filepath.Join(s.dir, keyDirName(key))
}

// nextSeqLocked returns the next sequence number for key, scanning the
// key's directory once per process lifetime to recover from a prior run.
// Caller must hold s.mu.
func (s *FilesystemStore) nextSeqLocked(key, kd string) (uint64, error) {
	if n, ok := s.seq[key]; ok {
		s.seq[key] = n + 1
		return n, nil
	}
	entries, err := os.ReadDir(kd)
	if err != nil && !os.IsNotExist(err) {
		return 0, pqerr.Spillf("pqspill: list %s: %v", kd, err)
	}
	var max uint64
	seen := false
	for _, e := range entries {
		n, ok := parseSeqName(e.Name())
		if !ok {
			continue
		}
		if !seen || n > max {
			max, seen = n, true
		}
	}
	next := uint64(0)
	if seen {
		next = max + 1
	}
	s.seq[key] = next + 1
	return next, nil
}

func seqFileName(seq uint64) string { return fmt.Sprintf("%020d.zst", seq) }

func parseSeqName(name string) (uint64, bool) {
	stem, ok := strings.CutSuffix(name, ".zst")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(stem, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *FilesystemStore) Append(ctx context.Context, key string, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return pqerr.ErrAborted
	}
	raw, err := json.Marshal(encodeBatch(batch))
	if err != nil {
		return pqerr.Spillf("pqspill: encode batch for %s: %v", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	compressed := s.enc.EncodeAll(raw, nil)

	kd := s.keyDir(key)
	if err := os.MkdirAll(kd, 0o755); err != nil {
		return pqerr.Spillf("pqspill: create key dir %s: %v", kd, err)
	}
	seq, err := s.nextSeqLocked(key, kd)
	if err != nil {
		return err
	}
	path := filepath.Join(kd, seqFileName(seq))
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return pqerr.Spillf("pqspill: write batch file %s: %v", path, err)
	}
	s.stats.BatchesWritten++
	s.stats.RowsWritten += int64(len(batch))
	s.stats.BytesWritten += int64(len(compressed))
	return nil
}

func (s *FilesystemStore) Iterate(ctx context.Context, key string, yield func(Batch) bool) error {
	kd := s.keyDir(key)
	entries, err := os.ReadDir(kd)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return pqerr.Spillf("pqspill: list %s: %v", kd, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := parseSeqName(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // zero-padded sequence numbers sort lexically in append order

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return pqerr.ErrAborted
		}
		path := filepath.Join(kd, name)
		compressed, err := os.ReadFile(path)
		if err != nil {
			return pqerr.Spillf("pqspill: read batch file %s: %v", path, err)
		}
		s.mu.Lock()
		raw, err := s.dec.DecodeAll(compressed, nil)
		s.mu.Unlock()
		if err != nil {
			return pqerr.Spillf("pqspill: decompress batch file %s: %v", path, err)
		}
		var encoded [][]any
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return pqerr.Spillf("pqspill: decode batch file %s: %v", path, err)
		}
		batch, err := decodeBatch(encoded)
		if err != nil {
			return err
		}
		if !yield(batch) {
			return nil
		}
	}
	return nil
}

func (s *FilesystemStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seq, key)
	if err := os.RemoveAll(s.keyDir(key)); err != nil {
		return pqerr.Spillf("pqspill: clear %s: %v", key, err)
	}
	return nil
}

func (s *FilesystemStore) ClearPrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return pqerr.Spillf("pqspill: list %s: %v", s.dir, err)
	}
	encodedPrefix := keyDirName(prefix)
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), encodedPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return pqerr.Spillf("pqspill: clearPrefix %s: %v", prefix, err)
		}
		for key := range s.seq {
			if strings.HasPrefix(key, prefix) {
				delete(s.seq, key)
			}
		}
	}
	return nil
}

func (s *FilesystemStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

var (
	_ Store    = (*FilesystemStore)(nil)
	_ NativeFS = (*FilesystemStore)(nil)
)
