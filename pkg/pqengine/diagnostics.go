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
	"time"
)

// OperatorTrace is one step's contribution to a Diagnostics snapshot.
type OperatorTrace struct {
	Step     string
	Kind     string
	Duration time.Duration
}

// Diagnostics is a point-in-time execution trace for a single query run,
// handed back to a host for telemetry: which steps ran, how long each took,
// and whether the result came from cache. This is a per-run snapshot, not a
// cumulative counter — Engine.Metrics() is the scrape-pulled counterpart.
type Diagnostics struct {
	QueryID   string
	CacheHit  bool
	Operators []OperatorTrace
	Total     time.Duration
}

// Tracer accumulates one query run's Diagnostics. It is safe to share
// across the goroutines a single ExecuteQuery call touches (none, today,
// since ExecuteQuery is sequential per call) but is not meant to outlive
// one run.
type Tracer struct {
	mu   sync.Mutex
	diag Diagnostics
	start time.Time
}

// NewTracer starts a trace for queryID.
func NewTracer(queryID string) *Tracer {
	return &Tracer{diag: Diagnostics{QueryID: queryID}, start: time.Now()}
}

func (t *Tracer) markCacheHit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.diag.CacheHit = true
}

func (t *Tracer) recordOperator(step, kind string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.diag.Operators = append(t.diag.Operators, OperatorTrace{Step: step, Kind: kind, Duration: d})
}

// Finish closes out the trace and returns its Diagnostics.
func (t *Tracer) Finish() Diagnostics {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.diag.Total = time.Since(t.start)
	return t.diag
}

// tracerKey/WithTracer/tracerFromContext let ExecuteQuery attach an optional
// Tracer via context, following the same ctx-value pattern pqcache.WithNowMs
// uses for injecting run-scoped state without widening every call's
// signature.
type tracerKey struct{}

// WithTracer returns a context carrying t; ExecuteQuery records into it when
// present, leaving Diagnostics collection opt-in per call.
func WithTracer(ctx context.Context, t *Tracer) context.Context {
	return context.WithValue(ctx, tracerKey{}, t)
}

func tracerFromContext(ctx context.Context) (*Tracer, bool) {
	t, ok := ctx.Value(tracerKey{}).(*Tracer)
	return t, ok
}
