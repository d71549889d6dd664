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

package pqkernel

import (
	"context"

	"github.com/erigontech/powerquery/pkg/pqkernel/cpukernel"
)

// OffloadBackend is the contract an offloaded (GPU-shaped) kernel backend
// must satisfy (spec §4.L): the same kernel family as cpukernel, plus
// upload/readback and a precision-support query the dispatcher consults
// before ever routing a call to it.
type OffloadBackend interface {
	Available() bool
	SupportsKernelPrecision(kernel KernelName, precision GPUPrecision) bool

	UploadVector(ctx context.Context, values []float64) (handle any, err error)
	ReadbackVector(ctx context.Context, handle any) ([]float64, error)

	Sum(ctx context.Context, values []float64, precision GPUPrecision) (float64, error)
	Min(ctx context.Context, values []float64, precision GPUPrecision) (float64, error)
	Max(ctx context.Context, values []float64, precision GPUPrecision) (float64, error)
	Average(ctx context.Context, values []float64, precision GPUPrecision) (float64, error)
	Count(ctx context.Context, values []float64) (int, error)
	SumProduct(ctx context.Context, a, b []float64, precision GPUPrecision) (float64, error)

	GroupByCount(ctx context.Context, keys []uint32, signed bool) (cpukernel.GroupByResult, error)
	GroupBySum(ctx context.Context, keys []uint32, signed bool, values []float64, precision GPUPrecision) (cpukernel.GroupByResult, error)
	GroupByMin(ctx context.Context, keys []uint32, signed bool, values []float64, precision GPUPrecision) (cpukernel.GroupByResult, error)
	GroupByMax(ctx context.Context, keys []uint32, signed bool, values []float64, precision GPUPrecision) (cpukernel.GroupByResult, error)

	GroupByCount2(ctx context.Context, keysA, keysB []uint32, signed bool) (cpukernel.GroupByResult2, error)
	GroupBySum2(ctx context.Context, keysA, keysB []uint32, signed bool, values []float64, precision GPUPrecision) (cpukernel.GroupByResult2, error)
	GroupByMin2(ctx context.Context, keysA, keysB []uint32, signed bool, values []float64, precision GPUPrecision) (cpukernel.GroupByResult2, error)
	GroupByMax2(ctx context.Context, keysA, keysB []uint32, signed bool, values []float64, precision GPUPrecision) (cpukernel.GroupByResult2, error)

	HashJoin(ctx context.Context, left, right []uint32, joinType cpukernel.JoinType) ([]cpukernel.JoinPair, error)
	MMult(ctx context.Context, a, b []float64, aRows, aCols, bCols int, precision GPUPrecision) ([]float64, error)
	Sort(ctx context.Context, values []float64) ([]float64, error)
	Histogram(ctx context.Context, values []float64, opts cpukernel.HistogramOptions) ([]int, error)
}
