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

package pqstreamops

import (
	"context"
	"strings"

	"github.com/tidwall/btree"

	"github.com/erigontech/powerquery/pkg/pqerr"
	"github.com/erigontech/powerquery/pkg/pqops"
	"github.com/erigontech/powerquery/pkg/pqspill"
	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

// ProgressEvent is the one event MergeStream emits on its own initiative
// (spec §4.H's stream:spill signal); the engine layer is responsible for
// folding it into the broader progress-event stream of spec §4.I.
type ProgressEvent struct {
	Type string
	Key  string
}

// ProgressFunc receives MergeStream's progress events. A nil ProgressFunc
// is valid; events are simply dropped.
type ProgressFunc func(ProgressEvent)

// MergeOptions configures a streaming merge.
type MergeOptions struct {
	JoinType        pqops.JoinType
	Mode            pqops.JoinMode
	LeftKeys        []string
	RightKeys       []string
	CaseInsensitive []bool // per key-pair; nil means all case-sensitive
	NewColumnName   string // nested mode only
	MaxInMemoryRows int
	BatchSize       int
}

func compositeKey(row []pqvalue.Value, idx []int, caseInsensitive []bool) string {
	var b strings.Builder
	for i, ci := range idx {
		v := row[ci]
		if i < len(caseInsensitive) && caseInsensitive[i] && v.Kind == pqvalue.KindString {
			v = pqvalue.String(strings.ToLower(v.Str))
		}
		b.WriteString(pqvalue.ValueKey(v))
		b.WriteByte(0x1f)
	}
	return b.String()
}

// memEntry is one rightIndex bucket: every buffered row seen so far for key.
type memEntry struct {
	key  string
	rows []pqspill.Row
}

func memEntryLess(a, b memEntry) bool { return a.key < b.key }

// rightIndex is the build phase's multimap: in memory until it crosses
// MaxInMemoryRows, then every new key goes straight to the store and
// already-buffered keys are migrated there in one shot (spec §4.H "at that
// point spill the entire index to the store"). Keeping the in-memory buckets
// in a btree.BTreeG rather than a plain map means the migration walk visits
// keys in sorted order, so the spilled-to-store key layout on disk is
// deterministic instead of depending on map iteration order.
type rightIndex struct {
	store      pqspill.Store
	keyPrefix  string
	mem        *btree.BTreeG[memEntry]
	spilled    bool
	rowCount   int
	onProgress ProgressFunc
}

func newRightIndex(store pqspill.Store, keyPrefix string, onProgress ProgressFunc) *rightIndex {
	return &rightIndex{store: store, keyPrefix: keyPrefix, mem: btree.NewBTreeG(memEntryLess), onProgress: onProgress}
}

func (idx *rightIndex) add(ctx context.Context, key string, row pqspill.Row, maxInMemoryRows int) error {
	if idx.spilled {
		return idx.store.Append(ctx, idx.keyPrefix+"/"+key, pqspill.Batch{row})
	}
	e, _ := idx.mem.Get(memEntry{key: key})
	e.key = key
	e.rows = append(e.rows, row)
	idx.mem.Set(e)
	idx.rowCount++
	if maxInMemoryRows > 0 && idx.rowCount >= maxInMemoryRows {
		var spillErr error
		idx.mem.Scan(func(e memEntry) bool {
			if err := idx.store.Append(ctx, idx.keyPrefix+"/"+e.key, e.rows); err != nil {
				spillErr = err
				return false
			}
			return true
		})
		if spillErr != nil {
			return spillErr
		}
		idx.mem = nil
		idx.spilled = true
		if idx.onProgress != nil {
			idx.onProgress(ProgressEvent{Type: "stream:spill", Key: idx.keyPrefix})
		}
	}
	return nil
}

func (idx *rightIndex) lookup(ctx context.Context, key string) ([]pqspill.Row, error) {
	if !idx.spilled {
		e, _ := idx.mem.Get(memEntry{key: key})
		return e.rows, nil
	}
	var rows []pqspill.Row
	err := idx.store.Iterate(ctx, idx.keyPrefix+"/"+key, func(b pqspill.Batch) bool {
		rows = append(rows, b...)
		return true
	})
	return rows, err
}

func (idx *rightIndex) close(ctx context.Context) error {
	if idx.spilled {
		return idx.store.ClearPrefix(ctx, idx.keyPrefix+"/")
	}
	return nil
}

// MergeStream implements spec §4.H's streaming merge: a build phase that
// indexes the right side (spilling past MaxInMemoryRows) followed by a
// probe phase that streams the left side through it, batch by batch.
func MergeStream(ctx context.Context, pullLeft, pullRight PullFunc, leftCols, rightCols []pqtable.Column, opts MergeOptions, store pqspill.Store, keyPrefix string, onProgress ProgressFunc, emit EmitFunc) error {
	if len(opts.LeftKeys) != len(opts.RightKeys) {
		return pqerr.Contractf("pqstreamops: merge: %d left keys vs %d right keys", len(opts.LeftKeys), len(opts.RightKeys))
	}
	leftIdx, err := resolveIndices(leftCols, opts.LeftKeys)
	if err != nil {
		return err
	}
	rightIdx, err := resolveIndices(rightCols, opts.RightKeys)
	if err != nil {
		return err
	}

	idx := newRightIndex(store, keyPrefix+"/build", onProgress)
	for {
		batch, ok, err := pullRight(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		for _, row := range batch {
			k := compositeKey(row, rightIdx, opts.CaseInsensitive)
			if err := idx.add(ctx, k, row, opts.MaxInMemoryRows); err != nil {
				return err
			}
		}
	}
	defer idx.close(context.Background())

	rightKeySet := map[int]bool{}
	for _, i := range rightIdx {
		rightKeySet[i] = true
	}
	var rightKeepIdx []int
	for i := range rightCols {
		if !rightKeySet[i] {
			rightKeepIdx = append(rightKeepIdx, i)
		}
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 1024
	}
	var out pqspill.Batch
	flush := func() error {
		if len(out) == 0 {
			return nil
		}
		if err := emit(ctx, out); err != nil {
			return err
		}
		out = nil
		return nil
	}
	appendRow := func(row []pqvalue.Value) error {
		out = append(out, row)
		if len(out) >= batchSize {
			return flush()
		}
		return nil
	}

	for {
		lbatch, ok, err := pullLeft(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		for _, lrow := range lbatch {
			k := compositeKey(lrow, leftIdx, opts.CaseInsensitive)
			matches, err := idx.lookup(ctx, k)
			if err != nil {
				return err
			}
			if err := emitMatches(lrow, matches, opts, rightKeepIdx, rightCols, appendRow); err != nil {
				return err
			}
		}
	}
	return flush()
}

func emitMatches(lrow pqspill.Row, matches []pqspill.Row, opts MergeOptions, rightKeepIdx []int, rightCols []pqtable.Column, appendRow func([]pqvalue.Value) error) error {
	if opts.Mode == pqops.JoinNested {
		if len(matches) == 0 && opts.JoinType != pqops.JoinLeft {
			return nil
		}
		nestedRows := make([][]pqvalue.Value, 0, len(matches))
		for _, r := range matches {
			nestedRows = append(nestedRows, append([]pqvalue.Value(nil), r...))
		}
		nested := pqtable.MustNewDataTable(rightCols, nestedRows)
		row := append(append([]pqvalue.Value(nil), lrow...), pqvalue.Value{Kind: pqvalue.KindTable, Table: nested})
		return appendRow(row)
	}

	if len(matches) == 0 {
		if opts.JoinType != pqops.JoinLeft {
			return nil
		}
		row := append([]pqvalue.Value(nil), lrow...)
		for range rightKeepIdx {
			row = append(row, pqvalue.Null)
		}
		return appendRow(row)
	}
	for _, rrow := range matches {
		row := append([]pqvalue.Value(nil), lrow...)
		for _, ci := range rightKeepIdx {
			row = append(row, rrow[ci])
		}
		if err := appendRow(row); err != nil {
			return err
		}
	}
	return nil
}

// MergeStreamColumns computes the output column schema, mirroring
// applyMergeFlat/applyMergeNested so streaming and materialized merge agree.
func MergeStreamColumns(leftCols, rightCols []pqtable.Column, opts MergeOptions) []pqtable.Column {
	if opts.Mode == pqops.JoinNested {
		cols := append(append([]pqtable.Column(nil), leftCols...), pqtable.Column{Name: opts.NewColumnName, Type: pqvalue.TypeAny})
		return uniqueCols(cols)
	}
	rightIdx, err := resolveIndices(rightCols, opts.RightKeys)
	if err != nil {
		rightIdx = nil
	}
	rightKeySet := map[int]bool{}
	for _, i := range rightIdx {
		rightKeySet[i] = true
	}
	cols := append([]pqtable.Column(nil), leftCols...)
	for i, c := range rightCols {
		if !rightKeySet[i] {
			cols = append(cols, c)
		}
	}
	return uniqueCols(cols)
}

func uniqueCols(cols []pqtable.Column) []pqtable.Column {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	names = pqtable.MakeUniqueColumnNames(names)
	for i := range cols {
		cols[i].Name = names[i]
	}
	return cols
}
