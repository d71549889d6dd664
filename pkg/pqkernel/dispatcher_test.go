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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/powerquery/pkg/pqkernel/cpukernel"
)

// stubOffload is a minimal OffloadBackend for dispatcher unit tests; sumBias
// is added to every Sum call to simulate a deviating backend (spec §8
// scenario 6).
type stubOffload struct {
	available bool
	sumBias   float64
}

func (s *stubOffload) Available() bool { return s.available }
func (s *stubOffload) SupportsKernelPrecision(KernelName, GPUPrecision) bool { return true }
func (s *stubOffload) UploadVector(context.Context, []float64) (any, error)   { return nil, nil }
func (s *stubOffload) ReadbackVector(context.Context, any) ([]float64, error) { return nil, nil }

func (s *stubOffload) Sum(_ context.Context, values []float64, _ GPUPrecision) (float64, error) {
	return cpukernel.Sum(values) + s.sumBias, nil
}
func (s *stubOffload) Min(_ context.Context, values []float64, _ GPUPrecision) (float64, error) {
	return cpukernel.Min(values), nil
}
func (s *stubOffload) Max(_ context.Context, values []float64, _ GPUPrecision) (float64, error) {
	return cpukernel.Max(values), nil
}
func (s *stubOffload) Average(_ context.Context, values []float64, _ GPUPrecision) (float64, error) {
	return cpukernel.Average(values), nil
}
func (s *stubOffload) Count(_ context.Context, values []float64) (int, error) {
	return cpukernel.Count(values), nil
}
func (s *stubOffload) SumProduct(_ context.Context, a, b []float64, _ GPUPrecision) (float64, error) {
	return cpukernel.SumProduct(a, b)
}
func (s *stubOffload) GroupByCount(_ context.Context, keys []uint32, signed bool) (cpukernel.GroupByResult, error) {
	return cpukernel.GroupByCount(keys, signed), nil
}
func (s *stubOffload) GroupBySum(_ context.Context, keys []uint32, signed bool, values []float64, _ GPUPrecision) (cpukernel.GroupByResult, error) {
	return cpukernel.GroupBySum(keys, signed, values)
}
func (s *stubOffload) GroupByMin(_ context.Context, keys []uint32, signed bool, values []float64, _ GPUPrecision) (cpukernel.GroupByResult, error) {
	return cpukernel.GroupByMin(keys, signed, values)
}
func (s *stubOffload) GroupByMax(_ context.Context, keys []uint32, signed bool, values []float64, _ GPUPrecision) (cpukernel.GroupByResult, error) {
	return cpukernel.GroupByMax(keys, signed, values)
}
func (s *stubOffload) GroupByCount2(_ context.Context, keysA, keysB []uint32, signed bool) (cpukernel.GroupByResult2, error) {
	return cpukernel.GroupByCount2(keysA, keysB, signed)
}
func (s *stubOffload) GroupBySum2(_ context.Context, keysA, keysB []uint32, signed bool, values []float64, _ GPUPrecision) (cpukernel.GroupByResult2, error) {
	return cpukernel.GroupBySum2(keysA, keysB, signed, values)
}
func (s *stubOffload) GroupByMin2(_ context.Context, keysA, keysB []uint32, signed bool, values []float64, _ GPUPrecision) (cpukernel.GroupByResult2, error) {
	return cpukernel.GroupByMin2(keysA, keysB, signed, values)
}
func (s *stubOffload) GroupByMax2(_ context.Context, keysA, keysB []uint32, signed bool, values []float64, _ GPUPrecision) (cpukernel.GroupByResult2, error) {
	return cpukernel.GroupByMax2(keysA, keysB, signed, values)
}
func (s *stubOffload) HashJoin(_ context.Context, left, right []uint32, joinType cpukernel.JoinType) ([]cpukernel.JoinPair, error) {
	return cpukernel.HashJoin(left, right, joinType)
}
func (s *stubOffload) MMult(_ context.Context, a, b []float64, aRows, aCols, bCols int, _ GPUPrecision) ([]float64, error) {
	return cpukernel.MMult(a, b, aRows, aCols, bCols)
}
func (s *stubOffload) Sort(_ context.Context, values []float64) ([]float64, error) {
	return cpukernel.Sort(values), nil
}
func (s *stubOffload) Histogram(_ context.Context, values []float64, opts cpukernel.HistogramOptions) ([]int, error) {
	return cpukernel.Histogram(values, opts)
}

var _ OffloadBackend = (*stubOffload)(nil)

func TestChooseForceCPU(t *testing.T) {
	opts := DefaultOptions()
	opts.GPU.ForceBackend = ForceCPU
	d := NewDispatcher(opts, &stubOffload{available: true})
	require.Equal(t, BackendCPU, d.choose(KernelSum, 1<<30, GPUPrecisionF32))
}

func TestChooseAutoBelowThreshold(t *testing.T) {
	opts := DefaultOptions()
	opts.GPU.Enabled = true
	d := NewDispatcher(opts, &stubOffload{available: true})
	require.Equal(t, BackendCPU, d.choose(KernelSum, 10, GPUPrecisionF32))
	require.Equal(t, BackendOffload, d.choose(KernelSum, opts.Thresholds[KernelSum], GPUPrecisionF32))
}

func TestChooseAutoDisabledNoOffload(t *testing.T) {
	opts := DefaultOptions()
	d := NewDispatcher(opts, &stubOffload{available: true})
	require.Equal(t, BackendCPU, d.choose(KernelSum, 1<<30, GPUPrecisionF32))
}

func TestSortNeverDemotedFromF64(t *testing.T) {
	opts := DefaultOptions()
	d := NewDispatcher(opts, nil)
	require.Equal(t, GPUPrecisionF64, d.precisionFor(KernelSort, GPUPrecisionF32, true))
}

func TestExcelModeForcesF64(t *testing.T) {
	opts := ApplyExcelDefaults(DefaultOptions())
	d := NewDispatcher(opts, nil)
	require.Equal(t, GPUPrecisionF64, d.precisionFor(KernelSum, GPUPrecisionF32, true))
}

// TestKernelValidationFallback is spec §8 scenario 6: an offload backend
// whose sum deviates by 2*absTolerance must be rejected, the CPU result
// returned, and the mismatch recorded.
func TestKernelValidationFallback(t *testing.T) {
	opts := ApplyExcelDefaults(DefaultOptions())
	opts.GPU.Enabled = true
	opts.GPU.ForceBackend = ForceGPU
	opts.Validation.AbsTolerance = 1e-6
	opts.Validation.RelTolerance = 0
	backend := &stubOffload{available: true, sumBias: 2 * opts.Validation.AbsTolerance}
	d := NewDispatcher(opts, backend)

	values := []float64{1, 2, 3, 4}
	got, err := d.Sum(context.Background(), values)
	require.NoError(t, err)
	require.Equal(t, cpukernel.Sum(values), got)

	diag := d.Diagnostics()
	require.Equal(t, 1, diag.Validation.Mismatches)
	require.NotNil(t, diag.Validation.LastMismatch)
	require.Equal(t, KernelSum, diag.Validation.LastMismatch.Kernel)
	require.Equal(t, BackendCPU, diag.LastKernelBackend[KernelSum])
}

func TestNilOffloadRunsOnCPU(t *testing.T) {
	opts := DefaultOptions()
	opts.GPU.Enabled = true
	opts.GPU.ForceBackend = ForceGPU
	d := NewDispatcher(opts, nil)

	values := []float64{1, 2, 3}
	got, err := d.Sum(context.Background(), values)
	require.NoError(t, err)
	require.Equal(t, cpukernel.Sum(values), got)
	require.Equal(t, BackendCPU, d.Diagnostics().LastKernelBackend[KernelSum])
}

func TestGroupBySumDispatchMatchesCPU(t *testing.T) {
	opts := DefaultOptions()
	opts.GPU.Enabled = true
	opts.GPU.ForceBackend = ForceGPU
	opts.Validation.Enabled = true
	d := NewDispatcher(opts, &stubOffload{available: true})

	keys := []uint32{1, 2, 1}
	values := []float64{10, 20, 30}
	got, err := d.GroupBySum(context.Background(), keys, false, values)
	require.NoError(t, err)
	want, err := cpukernel.GroupBySum(keys, false, values)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, BackendOffload, d.Diagnostics().LastKernelBackend[KernelGroupBySum])
}
