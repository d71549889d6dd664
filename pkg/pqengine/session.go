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

	"golang.org/x/sync/singleflight"

	"github.com/erigontech/powerquery/pkg/pqerr"
	"github.com/erigontech/powerquery/pkg/pqquery"
	"github.com/erigontech/powerquery/pkg/pqtable"
)

// Session is a per-refresh execution session (spec §4.I): it runs a fixed
// set of queries sharing one engine, checks their dependency graph for
// cycles up front, and deduplicates a query shared by several dependents so
// it executes at most once per session rather than once per dependent.
type Session struct {
	engine  *Engine
	graph   *pqquery.Graph
	queries map[string]*pqquery.Query

	group singleflight.Group

	mu      sync.Mutex
	results map[string]pqtable.ITable
}

// NewSession indexes queries and rejects the set up front if their
// dependency graph (query-source, merge.rightQuery, append.queries edges)
// is cyclic.
func NewSession(engine *Engine, queries []*pqquery.Query) (*Session, error) {
	graph := pqquery.BuildGraph(queries)
	if _, err := graph.DetectCycle(); err != nil {
		return nil, err
	}
	qm := make(map[string]*pqquery.Query, len(queries))
	for _, q := range queries {
		qm[q.ID] = q
	}
	return &Session{engine: engine, graph: graph, queries: qm, results: map[string]pqtable.ITable{}}, nil
}

// Execute runs queryID within the session, reusing an already-materialized
// or in-flight result for it (and transitively, its dependencies) if
// another caller in this session already requested it. opts.Params apply
// uniformly to every query the session touches, including ones reached only
// as a dependency.
func (s *Session) Execute(ctx context.Context, queryID string, opts ExecuteOptions) (pqtable.ITable, error) {
	v, err, _ := s.group.Do(queryID, func() (any, error) {
		if tbl, ok := s.cached(queryID); ok {
			return tbl, nil
		}
		q, ok := s.queries[queryID]
		if !ok {
			return nil, pqerr.Contractf("pqengine: session has no query %q", queryID)
		}
		resolve := func(depID string) (pqtable.ITable, error) {
			return s.Execute(ctx, depID, opts)
		}
		tbl, err := s.engine.ExecuteQuery(ctx, q, resolve, opts)
		if err != nil {
			return nil, err
		}
		s.remember(queryID, tbl)
		return tbl, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(pqtable.ITable), nil
}

func (s *Session) cached(queryID string) (pqtable.ITable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tbl, ok := s.results[queryID]
	return tbl, ok
}

func (s *Session) remember(queryID string, tbl pqtable.ITable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[queryID] = tbl
}
