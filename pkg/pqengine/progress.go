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

// ProgressEvent is one fire-and-forget notification from spec §6's progress
// event list: cache:hit, cache:miss, source:begin, source:end,
// operator:begin, operator:end, stream:spill, stream:operator, error.
type ProgressEvent struct {
	Type    string
	QueryID string
	Step    string // populated for operator:begin/operator:end
	Extra   map[string]any
}

// ProgressFunc receives ProgressEvents. It is fire-and-forget: callers that
// need isolation from a slow or panicking consumer should hop to their own
// goroutine inside the callback.
type ProgressFunc func(ProgressEvent)

func emit(fn ProgressFunc, ev ProgressEvent) {
	if fn == nil {
		return
	}
	fn(ev)
}
