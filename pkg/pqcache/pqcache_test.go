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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/powerquery/pkg/pqcachekey"
)

func TestReadBinFileLargeFileUsesMmapPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	data := make([]byte, mmapReadThreshold+4096)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := readBinFile(path)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestMemoryStoreTTL(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	exp := int64(1000)
	require.NoError(t, s.Set(ctx, "k", Entry{Value: "v", CreatedAtMs: 0, ExpiresAtMs: &exp}))

	e, ok, err := s.Get(WithNowMs(ctx, 500), "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", e.Value)

	_, ok, err = s.Get(WithNowMs(ctx, 1000), "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStorePruneByMaxEntries(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		k := string(rune('a' + i))
		require.NoError(t, s.Set(ctx, k, Entry{Value: i}))
	}
	require.NoError(t, s.Prune(ctx, PruneOptions{MaxEntries: 3}))
	require.LessOrEqual(t, s.lru.Len(), 3)
}

func TestFilesystemStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFilesystemStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	entry := Entry{Value: map[string]any{"a": float64(1)}, CreatedAtMs: 10}
	require.NoError(t, s.Set(ctx, "q1", entry))

	got, ok, err := s.Get(ctx, "q1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.Value, got.Value)

	hash := pqcachekey.FNV1a64("q1")
	_, err = os.Stat(filepath.Join(dir, hash+".json"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "q1"))
	_, ok, err = s.Get(ctx, "q1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFilesystemStoreCorruptFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFilesystemStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	hash := pqcachekey.FNV1a64("bad")
	require.NoError(t, os.WriteFile(filepath.Join(dir, hash+".json"), []byte("{not json"), 0o644))

	_, ok, err := s.Get(ctx, "bad")
	require.NoError(t, err)
	require.False(t, ok)
	_, statErr := os.Stat(filepath.Join(dir, hash+".json"))
	require.True(t, os.IsNotExist(statErr))
}

func TestFilesystemStorePruneByMtime(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFilesystemStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		k := string(rune('a' + i))
		require.NoError(t, s.Set(ctx, k, Entry{Value: i}))
	}
	require.NoError(t, s.Prune(ctx, PruneOptions{MaxEntries: 2}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func makeKeyRing(t *testing.T) *KeyRing {
	t.Helper()
	var k [32]byte
	for i := range k {
		k[i] = byte(i)
	}
	return NewKeyRing(k)
}

// TestEncryptedFilesystemArrowSplit reconstructs spec §8 scenario 5: an
// Arrow-backed table value is split into <hash>.json + <hash>.bin, both
// FMLENC01, and round-trips byte-for-byte.
func TestEncryptedFilesystemArrowSplit(t *testing.T) {
	dir := t.TempDir()
	keys := makeKeyRing(t)
	s, err := NewEncryptedFilesystemStore(dir, keys, "default", 1)
	require.NoError(t, err)
	ctx := context.Background()

	arrowBytes := []byte("pretend-arrow-ipc-bytes-0123456789")
	value := TableValue{Version: 2, Table: TablePayload{Kind: "arrow", Bytes: arrowBytes}}
	require.NoError(t, s.Set(ctx, "k", Entry{Value: value, CreatedAtMs: 1, ExpiresAtMs: nil}))

	hash := pqcachekey.FNV1a64("k")
	jsonPath := filepath.Join(dir, hash+".json")
	binPath := filepath.Join(dir, hash+".bin")

	jsonRaw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.True(t, isFMLENC(jsonRaw))
	binRaw, err := os.ReadFile(binPath)
	require.NoError(t, err)
	require.True(t, isFMLENC(binRaw))

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	tv, ok := got.Value.(TableValue)
	require.True(t, ok)
	require.Equal(t, "arrow", tv.Table.Kind)
	require.Equal(t, arrowBytes, tv.Table.Bytes)

	require.NoError(t, s.DisableEncryption(ctx))
	jsonRaw, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.False(t, isFMLENC(jsonRaw))
	require.Contains(t, string(jsonRaw), `"__pq_cache_binary"`)
	require.Contains(t, string(jsonRaw), hash+".bin")

	binRaw, err = os.ReadFile(binPath)
	require.NoError(t, err)
	require.False(t, isFMLENC(binRaw))
	require.Equal(t, arrowBytes, binRaw)

	got2, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	tv2 := got2.Value.(TableValue)
	require.Equal(t, arrowBytes, tv2.Table.Bytes)
}

func TestEncryptedFilesystemRotateKeepsOldEntriesReadable(t *testing.T) {
	dir := t.TempDir()
	keys := makeKeyRing(t)
	s, err := NewEncryptedFilesystemStore(dir, keys, "default", 1)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k1", Entry{Value: "v1", CreatedAtMs: 1}))

	var newKey [32]byte
	for i := range newKey {
		newKey[i] = byte(255 - i)
	}
	v2 := keys.Rotate(newKey)
	require.Equal(t, uint32(2), v2)

	require.NoError(t, s.Set(ctx, "k2", Entry{Value: "v2", CreatedAtMs: 2}))

	e1, ok, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", e1.Value)

	e2, ok, err := s.Get(ctx, "k2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", e2.Value)
}

// TestEncryptedFilesystemSwappedBinIsMiss swaps one entry's companion
// .bin file for another's. The AAD binds each ciphertext to its own entry
// hash, so decrypting k2's bytes under k1's AAD fails authentication.
func TestEncryptedFilesystemSwappedBinIsMiss(t *testing.T) {
	dir := t.TempDir()
	keys := makeKeyRing(t)
	s, err := NewEncryptedFilesystemStore(dir, keys, "default", 1)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k1", Entry{Value: TableValue{Version: 2, Table: TablePayload{Kind: "arrow", Bytes: []byte("k1-bytes")}}}))
	require.NoError(t, s.Set(ctx, "k2", Entry{Value: TableValue{Version: 2, Table: TablePayload{Kind: "arrow", Bytes: []byte("k2-bytes")}}}))

	hash1 := pqcachekey.FNV1a64("k1")
	hash2 := pqcachekey.FNV1a64("k2")
	bin2Raw, err := os.ReadFile(filepath.Join(dir, hash2+".bin"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, hash1+".bin"), bin2Raw, 0o600))

	_, ok, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBrowserKVStoreCursorPrune(t *testing.T) {
	s := NewBrowserKVStore()
	ctx := context.Background()
	exp := int64(100)
	require.NoError(t, s.Set(ctx, "a", Entry{Value: 1, ExpiresAtMs: &exp}))
	require.NoError(t, s.Set(ctx, "b", Entry{Value: 2}))

	require.NoError(t, s.PruneExpired(ctx, 200))
	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = s.Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
}
