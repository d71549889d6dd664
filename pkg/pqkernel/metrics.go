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

package pqkernel

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the scrape-pulled, cumulative counterpart to Diagnostics: where
// Diagnostics answers "what is true right now", Metrics answers "how many
// times has this happened since startup".
type Metrics struct {
	dispatches *prometheus.CounterVec
	mismatches *prometheus.CounterVec
	gpuErrors  *prometheus.CounterVec
}

// NewMetrics builds an unregistered Metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powerquery", Subsystem: "kernel", Name: "dispatches_total",
			Help: "Kernel calls by kernel name and backend actually used.",
		}, []string{"kernel", "backend"}),
		mismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powerquery", Subsystem: "kernel", Name: "validation_mismatches_total",
			Help: "Offload results that disagreed with the CPU reference beyond tolerance.",
		}, []string{"kernel"}),
		gpuErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powerquery", Subsystem: "kernel", Name: "offload_errors_total",
			Help: "Offload calls that errored and fell back to the CPU kernel.",
		}, []string{"kernel"}),
	}
}

func (m *Metrics) observeDispatch(k KernelName, b Backend) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(string(k), string(b)).Inc()
}

func (m *Metrics) observeMismatch(k KernelName) {
	if m == nil {
		return
	}
	m.mismatches.WithLabelValues(string(k)).Inc()
}

func (m *Metrics) observeGPUError(k KernelName) {
	if m == nil {
		return
	}
	m.gpuErrors.WithLabelValues(string(k)).Inc()
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.dispatches.Describe(ch)
	m.mismatches.Describe(ch)
	m.gpuErrors.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.dispatches.Collect(ch)
	m.mismatches.Collect(ch)
	m.gpuErrors.Collect(ch)
}

var _ prometheus.Collector = (*Metrics)(nil)
