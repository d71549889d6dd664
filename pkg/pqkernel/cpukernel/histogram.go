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
	"fmt"
	"math"

	"github.com/erigontech/powerquery/internal/pqmath"
)

// HistogramOptions bounds the bucketing range and bucket count.
type HistogramOptions struct {
	Min, Max float64
	Bins     int
}

// Histogram buckets values per spec §4.K: NaN is skipped, v<=min clamps to
// bin 0, v>=max clamps to the last bin, everything else is a linear
// proportional bucket.
func Histogram(values []float64, opts HistogramOptions) ([]int, error) {
	if opts.Bins <= 0 {
		return nil, fmt.Errorf("pqkernel/cpukernel: histogram bins must be > 0, got %d", opts.Bins)
	}
	if !(opts.Max > opts.Min) {
		return nil, fmt.Errorf("pqkernel/cpukernel: histogram requires max > min (min=%v max=%v)", opts.Min, opts.Max)
	}
	bins := make([]int, opts.Bins)
	span := opts.Max - opts.Min
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		var idx int
		switch {
		case v <= opts.Min:
			idx = 0
		case v >= opts.Max:
			idx = opts.Bins - 1
		default:
			idx = int(math.Floor((v - opts.Min) * float64(opts.Bins) / span))
			idx = pqmath.Clamp(idx, 0, opts.Bins-1)
		}
		bins[idx]++
	}
	return bins, nil
}
