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

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the engine's counters/histograms, exposed as a
// prometheus.Collector so a host can prometheus.MustRegister(engine.Metrics())
// alongside its own registry. It is separate from Diagnostics: Diagnostics is
// a point-in-time snapshot handed back to a caller; Metrics is the
// cumulative, scrape-pulled counterpart.
type Metrics struct {
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	queryErrors      prometheus.Counter
	operatorDuration *prometheus.HistogramVec
}

// NewMetrics builds an unregistered Metrics. The caller decides whether and
// where to register it.
func NewMetrics() *Metrics {
	return &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "powerquery", Subsystem: "engine", Name: "cache_hits_total",
			Help: "Query executions served from the cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "powerquery", Subsystem: "engine", Name: "cache_misses_total",
			Help: "Query executions that missed the cache and ran the pipeline.",
		}),
		queryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "powerquery", Subsystem: "engine", Name: "query_errors_total",
			Help: "Query executions that returned an error.",
		}),
		operatorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "powerquery", Subsystem: "engine", Name: "operator_duration_seconds",
			Help:    "Per-operator wall time within a query pipeline.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operator"}),
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.cacheHits.Describe(ch)
	m.cacheMisses.Describe(ch)
	m.queryErrors.Describe(ch)
	m.operatorDuration.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.cacheHits.Collect(ch)
	m.cacheMisses.Collect(ch)
	m.queryErrors.Collect(ch)
	m.operatorDuration.Collect(ch)
}

var _ prometheus.Collector = (*Metrics)(nil)
