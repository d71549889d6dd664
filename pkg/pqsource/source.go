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

// Package pqsource defines the external source adapter contract of spec §6.
// Concrete adapters (CSV/JSON/Arrow/Parquet/HTTP/SQL) are deliberately out of
// scope for the engine itself; this package only fixes the interface every
// adapter must satisfy and ships one illustrative in-memory CSV adapter so
// the contract has a concrete, testable implementation.
package pqsource

import (
	"context"

	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

// ReadOptions bundles every option field named across spec §6's adapter
// signatures; a given adapter only looks at the subset it understands.
type ReadOptions struct {
	HasHeaders bool
	Delimiter  rune
	JSONPath   string
	BatchSize  int
	Method     string
	Headers    map[string]string
	Params     map[string]any
}

// BatchFunc receives one batch of rows during a streaming read. Returning
// false stops the read early, mirroring pqspill.Store.Iterate's yield.
type BatchFunc func(rows [][]pqvalue.Value) bool

// TextAdapter is the contract for text-shaped sources (CSV, JSON): an eager
// whole-table read plus a streaming variant, per spec §6's "adapters must
// expose both eager and streaming variants".
type TextAdapter interface {
	Kind() string
	ReadText(ctx context.Context, location string, opts ReadOptions) (pqtable.ITable, error)
	ReadTextStream(ctx context.Context, location string, opts ReadOptions, onBatch BatchFunc) error
}

// BinaryAdapter is the contract for binary-shaped sources (Arrow, Parquet).
type BinaryAdapter interface {
	Kind() string
	ReadBinary(ctx context.Context, data []byte, opts ReadOptions) (pqtable.ITable, error)
	ReadBinaryStream(ctx context.Context, data []byte, opts ReadOptions, onBatch BatchFunc) error
}

// Registry resolves a pqquery.SourceDescriptor.Kind to the adapter that
// serves it. The query engine owns one Registry and consults it on every
// non-queryRef source.
type Registry struct {
	text   map[string]TextAdapter
	binary map[string]BinaryAdapter
}

// NewRegistry returns an empty Registry; adapters are registered with
// RegisterText/RegisterBinary.
func NewRegistry() *Registry {
	return &Registry{text: map[string]TextAdapter{}, binary: map[string]BinaryAdapter{}}
}

func (r *Registry) RegisterText(a TextAdapter)     { r.text[a.Kind()] = a }
func (r *Registry) RegisterBinary(a BinaryAdapter) { r.binary[a.Kind()] = a }

func (r *Registry) Text(kind string) (TextAdapter, bool) {
	a, ok := r.text[kind]
	return a, ok
}

func (r *Registry) Binary(kind string) (BinaryAdapter, bool) {
	a, ok := r.binary[kind]
	return a, ok
}
