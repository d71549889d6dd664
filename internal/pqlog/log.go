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

// Package pqlog is a thin structured-logging facade over go.uber.org/zap,
// mirroring erigon-lib/log/v3's shape: level methods taking a message plus
// alternating key/value pairs, and a component tag baked in at construction.
package pqlog

import "go.uber.org/zap"

// Logger is the facade every long-lived Power Query component depends on.
type Logger struct {
	z *zap.SugaredLogger
}

// New returns a Logger tagged with component, backed by a production zap
// config. Components that don't care about logging can pass Nop().
func New(component string) *Logger {
	base, err := zap.NewProduction()
	if err != nil {
		base = zap.NewNop()
	}
	return &Logger{z: base.Sugar().With("component", component)}
}

// Nop returns a Logger that discards everything, used as the zero-value
// default so constructors never need a nil check before logging.
func Nop() *Logger {
	return &Logger{z: zap.NewNop().Sugar()}
}

func (l *Logger) with() *zap.SugaredLogger {
	if l == nil || l.z == nil {
		return zap.NewNop().Sugar()
	}
	return l.z
}

func (l *Logger) Debug(msg string, kv ...any) { l.with().Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)   { l.with().Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)   { l.with().Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any)  { l.with().Errorw(msg, kv...) }

// With returns a derived Logger with additional fixed key/value pairs,
// matching the teacher's pattern of threading a tagged logger down through
// constructors (e.g. HistoryReaderV3's trace-gated logging).
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{z: l.with().With(kv...)}
}
