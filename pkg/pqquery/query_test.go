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

package pqquery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type refOnlyOp struct {
	kind OpKind
	refs []string
}

func (o refOnlyOp) Kind() OpKind          { return o.kind }
func (o refOnlyOp) Dependencies() []string { return o.refs }

func TestDetectCycleFindsTwoQueryCycle(t *testing.T) {
	a := &Query{ID: "A", Steps: []Step{{Operation: refOnlyOp{kind: OpAppend, refs: []string{"B"}}}}}
	b := &Query{ID: "B", Steps: []Step{{Operation: refOnlyOp{kind: OpAppend, refs: []string{"A"}}}}}
	g := BuildGraph([]*Query{a, b})
	path, err := g.DetectCycle()
	require.Error(t, err)
	require.NotEmpty(t, path)
}

func TestDetectCycleAcyclic(t *testing.T) {
	a := &Query{ID: "A"}
	b := &Query{ID: "B", Steps: []Step{{Operation: refOnlyOp{kind: OpMerge, refs: []string{"A"}}}}}
	g := BuildGraph([]*Query{a, b})
	path, err := g.DetectCycle()
	require.NoError(t, err)
	require.Nil(t, path)
}
