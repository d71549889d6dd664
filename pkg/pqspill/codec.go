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

package pqspill

import (
	"encoding/base64"
	"time"

	"github.com/erigontech/powerquery/pkg/pqerr"
	"github.com/erigontech/powerquery/pkg/pqvalue"
)

// encodeBatch/decodeBatch give FilesystemStore a JSON-safe representation of
// a Batch to compress and write to disk. The $type-envelope shape matches
// the one pqengine/pqcache use for cached table values, but is kept local:
// a spill file is an implementation detail of one Store, not a value this
// package hands back to callers.

func encodeBatch(b Batch) [][]any {
	out := make([][]any, len(b))
	for i, row := range b {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = encodeValue(v)
		}
		out[i] = cells
	}
	return out
}

func decodeBatch(raw [][]any) (Batch, error) {
	out := make(Batch, len(raw))
	for i, cells := range raw {
		row := make([]pqvalue.Value, len(cells))
		for j, c := range cells {
			v, err := decodeValue(c)
			if err != nil {
				return nil, err
			}
			row[j] = v
		}
		out[i] = row
	}
	return out, nil
}

func encodeValue(v pqvalue.Value) any {
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
			elems[i] = encodeValue(e)
		}
		return tagged("list", elems)
	case pqvalue.KindRecord:
		fields := make([]any, len(v.Record))
		for i, f := range v.Record {
			fields[i] = map[string]any{"name": f.Name, "value": encodeValue(f.Value)}
		}
		return tagged("record", fields)
	default:
		// KindTable cells never survive a spill: every streaming operator
		// spills flat rows, so nesting a whole table mid-batch never happens.
		return nil
	}
}

func tagged(kind string, value any) map[string]any {
	return map[string]any{"$type": kind, "value": value}
}

func decodeValue(raw any) (pqvalue.Value, error) {
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
		return decodeEnvelope(x)
	default:
		return pqvalue.Value{}, pqerr.Spillf("pqspill: cannot decode spilled cell of type %T", raw)
	}
}

func decodeEnvelope(m map[string]any) (pqvalue.Value, error) {
	kind, _ := m["$type"].(string)
	switch kind {
	case "decimal":
		s, _ := m["value"].(string)
		return pqvalue.Decimal(s), nil
	case "binary":
		s, _ := m["value"].(string)
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return pqvalue.Value{}, pqerr.Spillf("pqspill: decode spilled binary cell: %v", err)
		}
		return pqvalue.Binary(b), nil
	case "date":
		s, _ := m["value"].(string)
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return pqvalue.Value{}, pqerr.Spillf("pqspill: decode spilled date cell: %v", err)
		}
		return pqvalue.Date(t.Year(), t.Month(), t.Day()), nil
	case "datetime":
		s, _ := m["value"].(string)
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return pqvalue.Value{}, pqerr.Spillf("pqspill: decode spilled datetime cell: %v", err)
		}
		return pqvalue.DateTime(t), nil
	case "datetimezone":
		s, _ := m["value"].(string)
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return pqvalue.Value{}, pqerr.Spillf("pqspill: decode spilled datetimezone cell: %v", err)
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
			v, err := decodeValue(e)
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
			v, err := decodeValue(fm["value"])
			if err != nil {
				return pqvalue.Value{}, err
			}
			out = append(out, pqvalue.RecordField{Name: name, Value: v})
		}
		return pqvalue.Value{Kind: pqvalue.KindRecord, Record: out}, nil
	default:
		return pqvalue.Value{}, pqerr.Spillf("pqspill: unknown spilled cell $type %q", kind)
	}
}
