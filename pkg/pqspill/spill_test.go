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
	"testing"

	"github.com/erigontech/powerquery/pkg/pqvalue"
	"github.com/stretchr/testify/require"
)

func testStoreOrderPreserving(t *testing.T, s Store) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, "k", Batch{{pqvalue.Number(float64(i))}}))
	}
	require.NoError(t, s.Append(ctx, "other", Batch{{pqvalue.Number(99)}}))

	var got []float64
	require.NoError(t, s.Iterate(ctx, "k", func(b Batch) bool {
		got = append(got, b[0][0].Number)
		return true
	}))
	require.Equal(t, []float64{0, 1, 2, 3, 4}, got)

	require.NoError(t, s.ClearPrefix(ctx, "k"))
	var afterClear []Batch
	require.NoError(t, s.Iterate(ctx, "k", func(b Batch) bool {
		afterClear = append(afterClear, b)
		return true
	}))
	require.Empty(t, afterClear)

	var otherStill []Batch
	require.NoError(t, s.Iterate(ctx, "other", func(b Batch) bool {
		otherStill = append(otherStill, b)
		return true
	}))
	require.Len(t, otherStill, 1)
}

func TestMemoryStoreOrderPreserving(t *testing.T) { testStoreOrderPreserving(t, NewMemoryStore()) }
func TestKVStoreOrderPreserving(t *testing.T)     { testStoreOrderPreserving(t, NewKVStore()) }

func TestFilesystemStoreOrderPreserving(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	testStoreOrderPreserving(t, store)
}

func TestFilesystemStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFilesystemStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "k", Batch{{pqvalue.Number(1)}}))
	require.NoError(t, store.Append(ctx, "k", Batch{{pqvalue.Number(2)}}))

	reopened, err := NewFilesystemStore(dir)
	require.NoError(t, err)
	var got []float64
	require.NoError(t, reopened.Iterate(ctx, "k", func(b Batch) bool {
		got = append(got, b[0][0].Number)
		return true
	}))
	require.Equal(t, []float64{1, 2}, got)

	// A fresh Append after reopen must not collide with the recovered
	// sequence number.
	require.NoError(t, reopened.Append(ctx, "k", Batch{{pqvalue.Number(3)}}))
	got = nil
	require.NoError(t, reopened.Iterate(ctx, "k", func(b Batch) bool {
		got = append(got, b[0][0].Number)
		return true
	}))
	require.Equal(t, []float64{1, 2, 3}, got)
}

func TestFilesystemStoreRoundTripsValueKinds(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	row := []pqvalue.Value{
		pqvalue.Null,
		pqvalue.Bool(true),
		pqvalue.Number(3.5),
		pqvalue.String("hi"),
		pqvalue.Decimal("12.50"),
		pqvalue.Binary([]byte{1, 2, 3}),
		pqvalue.Error("boom"),
	}
	require.NoError(t, store.Append(ctx, "k", Batch{row}))

	var got Batch
	require.NoError(t, store.Iterate(ctx, "k", func(b Batch) bool {
		got = append(got, b...)
		return true
	}))
	require.Len(t, got, 1)
	for i, v := range row {
		require.Equal(t, v.Kind, got[0][i].Kind)
	}
	require.Equal(t, true, got[0][1].Bool)
	require.Equal(t, 3.5, got[0][2].Number)
	require.Equal(t, "hi", got[0][3].Str)
	require.Equal(t, []byte{1, 2, 3}, got[0][5].Binary)
	require.Equal(t, "boom", got[0][6].Str)
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Clear(ctx, "absent"))
	require.NoError(t, s.Clear(ctx, "absent"))
}
