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
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/erigontech/powerquery/pkg/pqcachekey"
	"github.com/erigontech/powerquery/pkg/pqerr"
)

// binMarker replaces a TablePayload's arrow bytes in the JSON entry; the
// bytes themselves live in a companion <hash>.bin file (spec §4.C).
type binMarker struct {
	BinName string `json:"__pq_cache_binary"`
}

// tableValueOnDisk mirrors TableValue but with Table left as `any` so it
// can hold either the real payload or a binMarker.
type tableValueOnDisk struct {
	Version int            `json:"version"`
	Table   any            `json:"table"`
	Meta    map[string]any `json:"meta,omitempty"`
}

type tableValueProbe struct {
	Version int             `json:"version"`
	Table   json.RawMessage `json:"table"`
	Meta    map[string]any  `json:"meta,omitempty"`
}

// splitArrowValue detects a TableValue whose payload is Arrow-IPC bytes and
// separates it into a disk-safe JSON shell (a binMarker in place of the
// bytes) plus the raw bytes to be written to the companion .bin file.
func splitArrowValue(hash string, value any) (diskValue any, arrowBytes []byte, isArrow bool) {
	var tv TableValue
	switch v := value.(type) {
	case TableValue:
		tv = v
	case *TableValue:
		tv = *v
	default:
		return value, nil, false
	}
	if tv.Table.Kind != "arrow" || len(tv.Table.Bytes) == 0 {
		return value, nil, false
	}
	return tableValueOnDisk{Version: tv.Version, Table: binMarker{BinName: hash + ".bin"}, Meta: tv.Meta}, tv.Table.Bytes, true
}

// EncryptedFilesystemStore layers AES-256-GCM over FilesystemStore's
// one-file-per-key layout (spec §4.C). scope/schemaVersion feed the AAD so
// ciphertext from a different cache scope never decrypts here by accident.
type EncryptedFilesystemStore struct {
	dir           string
	keys          *KeyRing
	scope         string
	schemaVersion int
}

// NewEncryptedFilesystemStore opens (creating if absent) dir as the backing
// directory, encrypting/decrypting under keys.
func NewEncryptedFilesystemStore(dir string, keys *KeyRing, scope string, schemaVersion int) (*EncryptedFilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &EncryptedFilesystemStore{dir: dir, keys: keys, scope: scope, schemaVersion: schemaVersion}, nil
}

// aad binds ciphertext to both the store's scope/schemaVersion and the
// specific entry hash, so one entry's ciphertext (json or companion bin)
// can never be substituted for another's and still authenticate.
func (s *EncryptedFilesystemStore) aad(hash string) []byte {
	return []byte(pqcachekey.StableStringify(map[string]any{"scope": s.scope, "schemaVersion": s.schemaVersion, "hash": hash}))
}

func (s *EncryptedFilesystemStore) hashOf(key string) string { return pqcachekey.FNV1a64(key) }

// toPlaintext decrypts data if it's an FMLENC01 blob; otherwise it's
// already plaintext (mixed-mode directories are tolerated for migration).
func (s *EncryptedFilesystemStore) toPlaintext(hash string, data []byte) ([]byte, error) {
	if !isFMLENC(data) {
		return data, nil
	}
	return openFMLENC01(s.keys, data, s.aad(hash))
}

func (s *EncryptedFilesystemStore) jsonPath(hash string) string { return filepath.Join(s.dir, hash+".json") }
func (s *EncryptedFilesystemStore) binPath(hash string) string  { return filepath.Join(s.dir, hash+".bin") }

// lockBulkRewrite holds an advisory, process-wide lock for the duration of
// an enable/disableEncryption pass, so a concurrent Set doesn't write a
// file mid-rewrite under the wrong encryption mode.
func (s *EncryptedFilesystemStore) lockBulkRewrite() (func(), error) {
	fl := flock.New(filepath.Join(s.dir, ".pqcache.lock"))
	if err := fl.Lock(); err != nil {
		return nil, pqerr.Cachef("pqcache: acquire bulk-rewrite lock: %v", err)
	}
	return func() { fl.Unlock() }, nil
}

func (s *EncryptedFilesystemStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	hash := s.hashOf(key)
	path := s.jsonPath(hash)
	raw, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, false, nil
	}
	plain, err := s.toPlaintext(hash, raw)
	if err != nil {
		os.Remove(path)
		return Entry{}, false, nil
	}
	var od onDiskEntry
	if err := json.Unmarshal(plain, &od); err != nil {
		os.Remove(path)
		return Entry{}, false, nil
	}
	value, err := s.decodeValue(hash, od.Value)
	if err != nil {
		os.Remove(path)
		os.Remove(s.binPath(hash))
		return Entry{}, false, nil
	}
	e := Entry{Value: value, CreatedAtMs: od.CreatedAtMs, ExpiresAtMs: od.ExpiresAtMs}
	if e.expired(nowMillis()) {
		os.Remove(path)
		os.Remove(s.binPath(hash))
		return Entry{}, false, nil
	}
	now := time.Now()
	os.Chtimes(path, now, now)
	return e, true, nil
}

// decodeValue reassembles the stored value, pulling the companion .bin
// file back in if the JSON holds a binMarker in place of the table.
func (s *EncryptedFilesystemStore) decodeValue(hash string, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var probe tableValueProbe
	if err := json.Unmarshal(raw, &probe); err == nil && len(probe.Table) > 0 {
		var marker binMarker
		if err := json.Unmarshal(probe.Table, &marker); err == nil && marker.BinName != "" {
			if marker.BinName != hash+".bin" {
				return nil, pqerr.Cachef("pqcache: companion bin name %q does not match entry %q", marker.BinName, hash)
			}
			binRaw, err := readBinFile(s.binPath(hash))
			if err != nil {
				return nil, pqerr.Cachef("pqcache: read companion bin: %v", err)
			}
			binPlain, err := s.toPlaintext(hash, binRaw)
			if err != nil {
				return nil, err
			}
			return TableValue{Version: probe.Version, Table: TablePayload{Kind: "arrow", Bytes: binPlain}, Meta: probe.Meta}, nil
		}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, pqerr.Cachef("pqcache: decode value: %v", err)
	}
	return v, nil
}

func (s *EncryptedFilesystemStore) Set(ctx context.Context, key string, entry Entry) error {
	unlock, err := s.lockBulkRewrite()
	if err != nil {
		return err
	}
	defer unlock()
	hash := s.hashOf(key)
	diskValue, arrowBytes, isArrow := splitArrowValue(hash, entry.Value)
	valueRaw, err := json.Marshal(diskValue)
	if err != nil {
		return err
	}
	od := onDiskEntry{Value: valueRaw, CreatedAtMs: entry.CreatedAtMs, ExpiresAtMs: entry.ExpiresAtMs}
	plainJSON, err := json.Marshal(od)
	if err != nil {
		return err
	}
	aad := s.aad(hash)
	cipherJSON, err := sealFMLENC01(s.keys, plainJSON, aad)
	if err != nil {
		return err
	}
	if err := atomicWriteFile(s.jsonPath(hash), cipherJSON, 0o600); err != nil {
		return err
	}
	binPath := s.binPath(hash)
	if isArrow {
		cipherBin, err := sealFMLENC01(s.keys, arrowBytes, aad)
		if err != nil {
			return err
		}
		return atomicWriteFile(binPath, cipherBin, 0o600)
	}
	os.Remove(binPath) // stale companion from a prior value stored under this key
	return nil
}

func (s *EncryptedFilesystemStore) Delete(ctx context.Context, key string) error {
	hash := s.hashOf(key)
	os.Remove(s.binPath(hash))
	err := os.Remove(s.jsonPath(hash))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *EncryptedFilesystemStore) Clear(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".json", ".bin":
			os.Remove(filepath.Join(s.dir, e.Name()))
		}
	}
	return nil
}

func (s *EncryptedFilesystemStore) PruneExpired(ctx context.Context, nowMs int64) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, de := range entries {
		if filepath.Ext(de.Name()) != ".json" {
			continue
		}
		hash := strings.TrimSuffix(de.Name(), ".json")
		path := s.jsonPath(hash)
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		plain, err := s.toPlaintext(hash, raw)
		if err != nil {
			os.Remove(path)
			os.Remove(s.binPath(hash))
			continue
		}
		var od onDiskEntry
		if err := json.Unmarshal(plain, &od); err != nil {
			os.Remove(path)
			os.Remove(s.binPath(hash))
			continue
		}
		if od.ExpiresAtMs != nil && nowMs >= *od.ExpiresAtMs {
			os.Remove(path)
			os.Remove(s.binPath(hash))
		}
	}
	return nil
}

// DisableEncryption rewrites every entry (and companion .bin) as plaintext,
// preserving readability (spec §8's "enableEncryption() preserves all
// readable entries" property applies symmetrically here).
func (s *EncryptedFilesystemStore) DisableEncryption(ctx context.Context) error {
	unlock, err := s.lockBulkRewrite()
	if err != nil {
		return err
	}
	defer unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, de := range entries {
		if filepath.Ext(de.Name()) != ".json" {
			continue
		}
		hash := strings.TrimSuffix(de.Name(), ".json")
		path := s.jsonPath(hash)
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		plain, err := s.toPlaintext(hash, raw)
		if err != nil {
			continue
		}
		if err := atomicWriteFile(path, plain, 0o644); err != nil {
			continue
		}
		binPath := s.binPath(hash)
		if binRaw, err := os.ReadFile(binPath); err == nil {
			if binPlain, err := s.toPlaintext(hash, binRaw); err == nil {
				atomicWriteFile(binPath, binPlain, 0o644)
			}
		}
	}
	return nil
}

// EnableEncryption rewrites every plaintext entry (and companion .bin) as
// FMLENC01 ciphertext under the keyring's current version.
func (s *EncryptedFilesystemStore) EnableEncryption(ctx context.Context) error {
	unlock, err := s.lockBulkRewrite()
	if err != nil {
		return err
	}
	defer unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, de := range entries {
		if filepath.Ext(de.Name()) != ".json" {
			continue
		}
		hash := strings.TrimSuffix(de.Name(), ".json")
		path := s.jsonPath(hash)
		raw, err := os.ReadFile(path)
		if err != nil || isFMLENC(raw) {
			continue
		}
		aad := s.aad(hash)
		cipherJSON, err := sealFMLENC01(s.keys, raw, aad)
		if err != nil {
			continue
		}
		if err := atomicWriteFile(path, cipherJSON, 0o600); err != nil {
			continue
		}
		binPath := s.binPath(hash)
		if binRaw, err := os.ReadFile(binPath); err == nil && !isFMLENC(binRaw) {
			if cipherBin, err := sealFMLENC01(s.keys, binRaw, aad); err == nil {
				atomicWriteFile(binPath, cipherBin, 0o600)
			}
		}
	}
	return nil
}
