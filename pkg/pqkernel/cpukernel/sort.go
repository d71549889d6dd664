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

package cpukernel

import (
	"math"
	"sort"
)

// Sort returns a new ascending copy: -Inf < finite < +Inf < NaN, matching a
// typed-array sort comparator rather than Go's NaN-unordered default. Signed
// zeros are not distinguished in position (both compare equal to the
// comparator), only the kernel-dispatcher validation path cares about the
// sign bit (spec §9's open question).
func Sort(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
		if aNaN || bNaN {
			if aNaN == bNaN {
				return false
			}
			return bNaN // non-NaN sorts before NaN
		}
		return a < b
	})
	return out
}
