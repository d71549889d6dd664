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

package pqengine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/powerquery/pkg/pqquery"
)

func TestSessionDedupesSharedUpstream(t *testing.T) {
	e := newTestEngine(map[string]string{"base.csv": "name,age\nAva,30\nBo,40\n"})
	a := &pqquery.Query{ID: "a", Source: pqquery.SourceDescriptor{Kind: "csv", Params: map[string]any{"location": "base.csv", "hasHeaders": true}}}
	b := &pqquery.Query{ID: "b", Source: pqquery.SourceDescriptor{Kind: "queryRef", QueryRef: "a"}}
	c := &pqquery.Query{ID: "c", Source: pqquery.SourceDescriptor{Kind: "queryRef", QueryRef: "a"}}

	sess, err := NewSession(e, []*pqquery.Query{a, b, c})
	require.NoError(t, err)

	var sourceBeginsForA int64
	opts := ExecuteOptions{OnProgress: func(ev ProgressEvent) {
		if ev.QueryID == "a" && ev.Type == "source:begin" {
			atomic.AddInt64(&sourceBeginsForA, 1)
		}
	}}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = sess.Execute(context.Background(), "b", opts) }()
	go func() { defer wg.Done(); _, _ = sess.Execute(context.Background(), "c", opts) }()
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt64(&sourceBeginsForA))

	tblB, err := sess.Execute(context.Background(), "b", opts)
	require.NoError(t, err)
	require.Equal(t, 2, tblB.RowCount())
}

func TestSessionRejectsCyclicQueries(t *testing.T) {
	e := newTestEngine(nil)
	a := &pqquery.Query{ID: "a", Source: pqquery.SourceDescriptor{Kind: "queryRef", QueryRef: "b"}}
	b := &pqquery.Query{ID: "b", Source: pqquery.SourceDescriptor{Kind: "queryRef", QueryRef: "a"}}
	_, err := NewSession(e, []*pqquery.Query{a, b})
	require.Error(t, err)
}

func TestSessionUnknownQueryErrors(t *testing.T) {
	e := newTestEngine(nil)
	a := &pqquery.Query{ID: "a", Source: pqquery.SourceDescriptor{Kind: "queryRef", QueryRef: "ghost"}}
	sess, err := NewSession(e, []*pqquery.Query{a})
	require.NoError(t, err)
	_, err = sess.Execute(context.Background(), "a", ExecuteOptions{})
	require.Error(t, err)
}
