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

	"github.com/erigontech/powerquery/pkg/pqerr"
	"github.com/erigontech/powerquery/pkg/pqextsort"
	"github.com/erigontech/powerquery/pkg/pqops"
	"github.com/erigontech/powerquery/pkg/pqspill"
	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

// GroupByStreamColumns computes groupBy's output column shape, mirroring
// applyGroupBy's materialized column construction so streaming and
// materialized execution agree on schema.
func GroupByStreamColumns(inCols []pqtable.Column, keys []string, aggs []pqops.AggSpec) ([]pqtable.Column, error) {
	keyIdx, err := resolveIndices(inCols, keys)
	if err != nil {
		return nil, err
	}
	cols := make([]pqtable.Column, 0, len(keys)+len(aggs))
	for _, ci := range keyIdx {
		cols = append(cols, inCols[ci])
	}
	for _, a := range aggs {
		typ := pqvalue.TypeNumber
		if a.Kind == pqops.AggMin || a.Kind == pqops.AggMax {
			for _, c := range inCols {
				if c.Name == a.Column {
					typ = c.Type
					break
				}
			}
		}
		cols = append(cols, pqtable.Column{Name: a.OutputName, Type: typ})
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	names = pqtable.MakeUniqueColumnNames(names)
	for i := range cols {
		cols[i].Name = names[i]
	}
	return cols, nil
}

type groupAcc struct {
	keyCells []pqvalue.Value
	rowIndex float64
	count    int
	sums     map[int]float64
	mins     map[int]pqvalue.Value
	maxs     map[int]pqvalue.Value
	distinct map[int]map[string]bool
}

func newGroupAcc(keyCells []pqvalue.Value, rowIndex float64) *groupAcc {
	return &groupAcc{
		keyCells: keyCells,
		rowIndex: rowIndex,
		sums:     map[int]float64{},
		mins:     map[int]pqvalue.Value{},
		maxs:     map[int]pqvalue.Value{},
		distinct: map[int]map[string]bool{},
	}
}

func (g *groupAcc) accumulate(row []pqvalue.Value, aggs []pqops.AggSpec, aggColIdx []int) {
	g.count++
	for i, a := range aggs {
		ci := aggColIdx[i]
		if ci < 0 {
			continue
		}
		v := row[ci]
		switch a.Kind {
		case pqops.AggSum, pqops.AggAverage:
			n := pqvalue.CoerceTo(v, pqvalue.TypeNumber)
			if !pqvalue.IsNull(n) {
				g.sums[i] += n.Number
			}
		case pqops.AggMin:
			if cur, ok := g.mins[i]; !ok || pqvalue.Compare(v, cur) < 0 {
				g.mins[i] = v
			}
		case pqops.AggMax:
			if cur, ok := g.maxs[i]; !ok || pqvalue.Compare(v, cur) > 0 {
				g.maxs[i] = v
			}
		case pqops.AggCountDistinct:
			if g.distinct[i] == nil {
				g.distinct[i] = map[string]bool{}
			}
			g.distinct[i][pqvalue.ValueKey(v)] = true
		}
	}
}

// finalize returns the rowIndex-prefixed output row: the phase-2 external
// sort strips element 0 once groups are back in first-seen order.
func (g *groupAcc) finalize(aggs []pqops.AggSpec) []pqvalue.Value {
	row := make([]pqvalue.Value, 0, 1+len(g.keyCells)+len(aggs))
	row = append(row, pqvalue.Number(g.rowIndex))
	row = append(row, g.keyCells...)
	for i, a := range aggs {
		switch a.Kind {
		case pqops.AggCount:
			row = append(row, pqvalue.Number(float64(g.count)))
		case pqops.AggSum:
			row = append(row, pqvalue.Number(g.sums[i]))
		case pqops.AggAverage:
			if g.count == 0 {
				row = append(row, pqvalue.Null)
			} else {
				row = append(row, pqvalue.Number(g.sums[i]/float64(g.count)))
			}
		case pqops.AggMin:
			if v, ok := g.mins[i]; ok {
				row = append(row, v)
			} else {
				row = append(row, pqvalue.Null)
			}
		case pqops.AggMax:
			if v, ok := g.maxs[i]; ok {
				row = append(row, v)
			} else {
				row = append(row, pqvalue.Null)
			}
		case pqops.AggCountDistinct:
			row = append(row, pqvalue.Number(float64(len(g.distinct[i]))))
		}
	}
	return row
}

func rowGroupKey(row []pqvalue.Value, idx []int) string {
	var b []byte
	for _, i := range idx {
		b = append(b, pqvalue.ValueKey(row[i])...)
		b = append(b, 0x1f)
	}
	return string(b)
}

// GroupByStream implements spec §4.H's two-phase streaming groupBy:
// phase 1 decorates every row with (groupKey, firstSeenIndex) and runs it
// through pqextsort so groups become contiguous (spilling to store whenever
// opts.MaxInMemoryRows is crossed); phase 1's own emit callback doubles as
// the "single pass over the sorted stream" step, finalizing an accumulator
// on every group-key boundary. Phase 2 re-sorts the (small) finalized rows
// by firstSeenIndex and strips it, so groups come out in first-seen order
// regardless of the arbitrary order phase 1's sort put them in.
func GroupByStream(ctx context.Context, pull PullFunc, inCols []pqtable.Column, keys []string, aggs []pqops.AggSpec, store pqspill.Store, keyPrefix string, opts Options, emit EmitFunc) error {
	keyIdx, err := resolveIndices(inCols, keys)
	if err != nil {
		return err
	}
	aggColIdx := make([]int, len(aggs))
	for i, a := range aggs {
		if a.Kind == pqops.AggCount {
			aggColIdx[i] = -1
			continue
		}
		found := false
		for ci, c := range inCols {
			if c.Name == a.Column {
				aggColIdx[i] = ci
				found = true
				break
			}
		}
		if !found {
			return pqerr.Contractf("pqstreamops: groupBy: unknown column %q", a.Column)
		}
	}

	firstIndex := map[string]float64{}
	var rowCounter float64
	decoratedPull := func(ctx context.Context) (pqspill.Batch, bool, error) {
		batch, ok, err := pull(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		out := make(pqspill.Batch, len(batch))
		for i, row := range batch {
			gk := rowGroupKey(row, keyIdx)
			fi, seen := firstIndex[gk]
			if !seen {
				fi = rowCounter
				firstIndex[gk] = fi
			}
			rowCounter++
			decorated := make([]pqvalue.Value, 0, 2+len(row))
			decorated = append(decorated, pqvalue.String(gk), pqvalue.Number(fi))
			decorated = append(decorated, row...)
			out[i] = decorated
		}
		return out, true, nil
	}
	cmp := func(a, b pqspill.Row) int {
		if a[0].Str != b[0].Str {
			if a[0].Str < b[0].Str {
				return -1
			}
			return 1
		}
		return pqvalue.Compare(a[1], b[1])
	}

	var finalized []pqspill.Row
	var current string
	var started bool
	var acc *groupAcc
	phase1Emit := func(ctx context.Context, batch pqspill.Batch) error {
		for _, drow := range batch {
			gk := drow[0].Str
			rowIdx := drow[1].Number
			orig := drow[2:]
			if !started || gk != current {
				if started {
					finalized = append(finalized, acc.finalize(aggs))
				}
				started = true
				current = gk
				keyCells := make([]pqvalue.Value, len(keyIdx))
				for i, ci := range keyIdx {
					keyCells[i] = orig[ci]
				}
				acc = newGroupAcc(keyCells, rowIdx)
			}
			acc.accumulate(orig, aggs, aggColIdx)
		}
		return nil
	}
	if err := pqextsort.Run(ctx, decoratedPull, cmp, store, keyPrefix+"/phase1", opts, phase1Emit); err != nil {
		return err
	}
	if started {
		finalized = append(finalized, acc.finalize(aggs))
	}

	idx := 0
	pull2 := func(ctx context.Context) (pqspill.Batch, bool, error) {
		if idx >= len(finalized) {
			return nil, false, nil
		}
		end := idx + opts.BatchSize
		if end > len(finalized) || opts.BatchSize <= 0 {
			end = len(finalized)
		}
		batch := finalized[idx:end]
		idx = end
		return batch, true, nil
	}
	cmp2 := func(a, b pqspill.Row) int { return pqvalue.Compare(a[0], b[0]) }
	emit2 := func(ctx context.Context, batch pqspill.Batch) error {
		stripped := make(pqspill.Batch, len(batch))
		for i, r := range batch {
			stripped[i] = r[1:]
		}
		return emit(ctx, stripped)
	}
	return pqextsort.Run(ctx, pull2, cmp2, store, keyPrefix+"/phase2", opts, emit2)
}
