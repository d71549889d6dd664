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

import "fmt"

// MMult computes row-major a(aRows x aCols) * b(aCols x bCols) -> (aRows x
// bCols), with the inner accumulation held in a register-like local
// variable rather than written back to the output slice on every step.
func MMult(a, b []float64, aRows, aCols, bCols int) ([]float64, error) {
	if len(a) != aRows*aCols {
		return nil, fmt.Errorf("pqkernel/cpukernel: mmult: a has %d elements, want %d", len(a), aRows*aCols)
	}
	if len(b) != aCols*bCols {
		return nil, fmt.Errorf("pqkernel/cpukernel: mmult: b has %d elements, want %d", len(b), aCols*bCols)
	}
	out := make([]float64, aRows*bCols)
	for i := 0; i < aRows; i++ {
		for j := 0; j < bCols; j++ {
			var acc float64
			for k := 0; k < aCols; k++ {
				acc += a[i*aCols+k] * b[k*bCols+j]
			}
			out[i*bCols+j] = acc
		}
	}
	return out, nil
}

// WorkloadSize is the §4.J dispatcher's size metric for mmult routing.
func WorkloadSize(aRows, aCols, bCols int) int { return aRows * aCols * bCols }
