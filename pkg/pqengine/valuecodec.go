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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erigontech/powerquery/pkg/pqcache"
	"github.com/erigontech/powerquery/pkg/pqerr"
	"github.com/erigontech/powerquery/pkg/pqtable"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

// tableToCacheValue turns a materialized table into the TableValue shape
// pqcache.Store persists (spec §3.4): always Kind "rows" with an inline
// RowGrid, since the Arrow wire format is out of this module's scope (the
// cache only ever sees "arrow" payloads constructed directly by callers
// that already hold Arrow-IPC bytes).
func tableToCacheValue(t pqtable.ITable) pqcache.TableValue {
	cols := t.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	n := t.RowCount()
	rows := make([][]any, n)
	for r := 0; r < n; r++ {
		cells := t.GetRow(r)
		out := make([]any, len(cells))
		for i, v := range cells {
			out[i] = valueToJSON(v)
		}
		rows[r] = out
	}
	return pqcache.TableValue{
		Version: 2,
		Table:   pqcache.TablePayload{Kind: "rows", Rows: &pqcache.RowGrid{Columns: names, Rows: rows}},
	}
}

// cacheValueToTable reverses tableToCacheValue. It only understands the
// "rows" kind; an "arrow" payload means the entry was written by something
// other than this engine (or predates it) and is rejected as a miss rather
// than guessed at.
func cacheValueToTable(v any) (pqtable.ITable, error) {
	tv, ok := v.(pqcache.TableValue)
	if !ok {
		m, isMap := v.(map[string]any)
		if !isMap {
			return nil, pqerr.Cachef("pqengine: cache entry is not a table value (%T)", v)
		}
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, pqerr.Cachef("pqengine: re-encode cache entry: %v", err)
		}
		if err := json.Unmarshal(raw, &tv); err != nil {
			return nil, pqerr.Cachef("pqengine: cache entry is not a table value: %v", err)
		}
	}
	if tv.Table.Kind != "rows" || tv.Table.Rows == nil {
		return nil, pqerr.Cachef("pqengine: cache entry has no inline row grid (kind %q)", tv.Table.Kind)
	}
	grid := tv.Table.Rows
	cols := make([]pqtable.Column, len(grid.Columns))
	for i, name := range grid.Columns {
		cols[i] = pqtable.Column{Name: name, Type: pqvalue.TypeAny}
	}
	rows := make([][]pqvalue.Value, len(grid.Rows))
	for r, cells := range grid.Rows {
		row := make([]pqvalue.Value, len(cells))
		for i, raw := range cells {
			val, err := jsonToValue(raw)
			if err != nil {
				return nil, err
			}
			row[i] = val
		}
		rows[r] = row
	}
	return pqtable.NewDataTable(cols, rows)
}

// valueToJSON renders v as a JSON-safe tree: bare nil/bool/float64/string
// for the unambiguous kinds, and a {"$type": ..., "value": ...} envelope for
// everything JSON can't carry natively. This mirrors pqcachekey's
// $type-tagged canonical form but, unlike StableStringify, is meant to be
// decoded back by jsonToValue rather than only hashed.
func valueToJSON(v pqvalue.Value) any {
	switch v.Kind {
	case pqvalue.KindNull:
		return nil
	case pqvalue.KindBool:
		return v.Bool
	case pqvalue.KindNumber:
		return v.Number
	case pqvalue.KindString:
		return v.Str
	case pqvalue.KindDecimal:
		return tagged("decimal", v.Str)
	case pqvalue.KindBinary:
		return tagged("binary", base64.StdEncoding.EncodeToString(v.Binary))
	case pqvalue.KindDate:
		return tagged("date", v.Time.UTC().Format("2006-01-02"))
	case pqvalue.KindDateTime:
		return tagged("datetime", v.Time.UTC().Format(time.RFC3339Nano))
	case pqvalue.KindDateTimeZone:
		return map[string]any{"$type": "datetimezone", "value": v.Time.UTC().Format(time.RFC3339Nano), "offsetMin": float64(v.OffsetMin)}
	case pqvalue.KindTime:
		return tagged("time", float64(v.Millis))
	case pqvalue.KindDuration:
		return tagged("duration", float64(v.Millis))
	case pqvalue.KindError:
		return tagged("error", v.Str)
	case pqvalue.KindList:
		elems := make([]any, len(v.List))
		for i, e := range v.List {
			elems[i] = valueToJSON(e)
		}
		return tagged("list", elems)
	case pqvalue.KindRecord:
		fields := make([]any, len(v.Record))
		for i, f := range v.Record {
			fields[i] = map[string]any{"name": f.Name, "value": valueToJSON(f.Value)}
		}
		return tagged("record", fields)
	case pqvalue.KindTable:
		nt, ok := v.Table.(pqtable.ITable)
		if !ok {
			return tagged("table", map[string]any{"columns": []any{}, "rows": []any{}})
		}
		return map[string]any{"$type": "table", "columns": columnNamesJSON(nt), "rows": tableRowsJSON(nt)}
	default:
		return nil
	}
}

func tagged(kind string, value any) map[string]any {
	return map[string]any{"$type": kind, "value": value}
}

func columnNamesJSON(t pqtable.ITable) []any {
	cols := t.Columns()
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func tableRowsJSON(t pqtable.ITable) []any {
	n := t.RowCount()
	out := make([]any, n)
	for r := 0; r < n; r++ {
		cells := t.GetRow(r)
		row := make([]any, len(cells))
		for i, v := range cells {
			row[i] = valueToJSON(v)
		}
		out[r] = row
	}
	return out
}

// jsonToValue reverses valueToJSON. It is lenient about the numeric types
// json.Unmarshal hands back (float64 for every bare number) and about the
// $type envelope's field types, since a round trip through a filesystem
// store always passes through encoding/json.
func jsonToValue(raw any) (pqvalue.Value, error) {
	switch x := raw.(type) {
	case nil:
		return pqvalue.Null, nil
	case bool:
		return pqvalue.Bool(x), nil
	case float64:
		return pqvalue.Number(x), nil
	case string:
		return pqvalue.String(x), nil
	case map[string]any:
		return envelopeToValue(x)
	default:
		return pqvalue.Value{}, pqerr.Cachef("pqengine: cannot decode cached cell of type %T", raw)
	}
}

func envelopeToValue(m map[string]any) (pqvalue.Value, error) {
	kind, _ := m["$type"].(string)
	switch kind {
	case "decimal":
		s, _ := m["value"].(string)
		return pqvalue.Decimal(s), nil
	case "binary":
		s, _ := m["value"].(string)
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return pqvalue.Value{}, pqerr.Cachef("pqengine: decode cached binary cell: %v", err)
		}
		return pqvalue.Binary(b), nil
	case "date":
		s, _ := m["value"].(string)
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return pqvalue.Value{}, pqerr.Cachef("pqengine: decode cached date cell: %v", err)
		}
		return pqvalue.Date(t.Year(), t.Month(), t.Day()), nil
	case "datetime":
		s, _ := m["value"].(string)
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return pqvalue.Value{}, pqerr.Cachef("pqengine: decode cached datetime cell: %v", err)
		}
		return pqvalue.DateTime(t), nil
	case "datetimezone":
		s, _ := m["value"].(string)
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return pqvalue.Value{}, pqerr.Cachef("pqengine: decode cached datetimezone cell: %v", err)
		}
		offsetMin, _ := m["offsetMin"].(float64)
		return pqvalue.DateTimeZone(t, int(offsetMin)), nil
	case "time":
		ms, _ := m["value"].(float64)
		return pqvalue.TimeOfDay(int64(ms)), nil
	case "duration":
		ms, _ := m["value"].(float64)
		return pqvalue.Duration(int64(ms)), nil
	case "error":
		s, _ := m["value"].(string)
		return pqvalue.Error(s), nil
	case "list":
		elems, _ := m["value"].([]any)
		out := make([]pqvalue.Value, len(elems))
		for i, e := range elems {
			v, err := jsonToValue(e)
			if err != nil {
				return pqvalue.Value{}, err
			}
			out[i] = v
		}
		return pqvalue.Value{Kind: pqvalue.KindList, List: out}, nil
	case "record":
		fields, _ := m["value"].([]any)
		out := make([]pqvalue.RecordField, 0, len(fields))
		for _, raw := range fields {
			fm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			name, _ := fm["name"].(string)
			v, err := jsonToValue(fm["value"])
			if err != nil {
				return pqvalue.Value{}, err
			}
			out = append(out, pqvalue.RecordField{Name: name, Value: v})
		}
		return pqvalue.Value{Kind: pqvalue.KindRecord, Record: out}, nil
	case "table":
		cols, rows, err := tableEnvelopeParts(m)
		if err != nil {
			return pqvalue.Value{}, err
		}
		nt, err := pqtable.NewDataTable(cols, rows)
		if err != nil {
			return pqvalue.Value{}, err
		}
		return pqvalue.Value{Kind: pqvalue.KindTable, Table: nt}, nil
	default:
		return pqvalue.Value{}, fmt.Errorf("pqengine: unknown cached value $type %q: %w", kind, pqerr.ErrCacheCorrupt)
	}
}

func tableEnvelopeParts(m map[string]any) ([]pqtable.Column, [][]pqvalue.Value, error) {
	rawCols, _ := m["columns"].([]any)
	cols := make([]pqtable.Column, len(rawCols))
	for i, c := range rawCols {
		name, _ := c.(string)
		cols[i] = pqtable.Column{Name: name, Type: pqvalue.TypeAny}
	}
	rawRows, _ := m["rows"].([]any)
	rows := make([][]pqvalue.Value, len(rawRows))
	for r, rr := range rawRows {
		cells, _ := rr.([]any)
		row := make([]pqvalue.Value, len(cells))
		for i, raw := range cells {
			v, err := jsonToValue(raw)
			if err != nil {
				return nil, nil, err
			}
			row[i] = v
		}
		rows[r] = row
	}
	return cols, rows, nil
}
