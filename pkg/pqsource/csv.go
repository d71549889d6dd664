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

package pqsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/erigontech/powerquery/pkg/pqerr"
	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

// CSVAdapter is the one concrete, testable TextAdapter this module ships
// (spec §1 excludes real source adapters as a product feature, but the
// engine needs at least one to exercise the §6 contract under test). It
// reads from an in-memory map of location -> CSV text rather than touching
// a real filesystem, since "where the bytes come from" is exactly the part
// spec.md declares out of scope.
type CSVAdapter struct {
	files map[string]string
}

// NewCSVAdapter builds an adapter over files, a location -> CSV text map.
func NewCSVAdapter(files map[string]string) *CSVAdapter {
	return &CSVAdapter{files: files}
}

func (a *CSVAdapter) Kind() string { return "csv" }

func (a *CSVAdapter) reader(location string, opts ReadOptions) (*csv.Reader, error) {
	text, ok := a.files[location]
	if !ok {
		return nil, pqerr.Sourcef("pqsource: csv: unknown location %q", location)
	}
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	if opts.Delimiter != 0 {
		r.Comma = opts.Delimiter
	}
	return r, nil
}

func (a *CSVAdapter) ReadText(ctx context.Context, location string, opts ReadOptions) (pqtable.ITable, error) {
	r, err := a.reader(location, opts)
	if err != nil {
		return nil, err
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, pqerr.Sourcef("pqsource: csv: read %q: %v", location, err)
	}
	cols, rows := recordsToTable(records, opts.HasHeaders)
	return pqtable.NewDataTable(cols, rows)
}

func (a *CSVAdapter) ReadTextStream(ctx context.Context, location string, opts ReadOptions, onBatch BatchFunc) error {
	r, err := a.reader(location, opts)
	if err != nil {
		return err
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 1024
	}

	haveHeader := false
	var batch [][]pqvalue.Value
	for {
		if err := ctx.Err(); err != nil {
			return pqerr.ErrAborted
		}
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return pqerr.Sourcef("pqsource: csv: read %q: %v", location, err)
		}
		if opts.HasHeaders && !haveHeader {
			haveHeader = true
			continue
		}
		batch = append(batch, recordToRow(record))
		if len(batch) >= batchSize {
			if !onBatch(batch) {
				return nil
			}
			batch = nil
		}
	}
	if len(batch) > 0 {
		onBatch(batch)
	}
	return nil
}

func recordsToTable(records [][]string, hasHeaders bool) ([]pqtable.Column, [][]pqvalue.Value) {
	if len(records) == 0 {
		return nil, nil
	}
	width := len(records[0])
	var names []string
	var dataRecords [][]string
	if hasHeaders {
		names = append([]string(nil), records[0]...)
		dataRecords = records[1:]
	} else {
		names = make([]string, width)
		for i := range names {
			names[i] = columnDefaultName(i)
		}
		dataRecords = records
	}
	names = pqtable.MakeUniqueColumnNames(names)
	cols := make([]pqtable.Column, len(names))
	for i, n := range names {
		cols[i] = pqtable.Column{Name: n, Type: pqvalue.TypeAny}
	}
	rows := make([][]pqvalue.Value, len(dataRecords))
	for i, rec := range dataRecords {
		rows[i] = recordToRow(rec)
	}
	return cols, rows
}

func recordToRow(record []string) []pqvalue.Value {
	row := make([]pqvalue.Value, len(record))
	for i, cell := range record {
		row[i] = pqvalue.String(cell)
	}
	return row
}

func columnDefaultName(i int) string {
	return fmt.Sprintf("Column%d", i+1)
}

var _ TextAdapter = (*CSVAdapter)(nil)
