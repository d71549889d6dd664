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

// Package pqkernel implements the kernel dispatcher of spec §4.J: backend
// selection between the scalar reference implementation (cpukernel) and an
// offloaded, GPU-shaped backend, precision negotiation, and a validation
// cross-check that silently falls back to the CPU result on any mismatch or
// offload failure.
package pqkernel

// KernelName enumerates the dispatcher's routed kernel family, matching
// spec §4.J/§4.K's contract table.
type KernelName string

const (
	KernelSum            KernelName = "sum"
	KernelMin            KernelName = "min"
	KernelMax            KernelName = "max"
	KernelAverage        KernelName = "average"
	KernelCount          KernelName = "count"
	KernelSumProduct     KernelName = "sumproduct"
	KernelGroupByCount   KernelName = "groupByCount"
	KernelGroupBySum     KernelName = "groupBySum"
	KernelGroupByMin     KernelName = "groupByMin"
	KernelGroupByMax     KernelName = "groupByMax"
	KernelGroupByCount2  KernelName = "groupByCount2"
	KernelGroupBySum2    KernelName = "groupBySum2"
	KernelGroupByMin2    KernelName = "groupByMin2"
	KernelGroupByMax2    KernelName = "groupByMax2"
	KernelHashJoin       KernelName = "hashJoin"
	KernelMMult          KernelName = "mmult"
	KernelSort           KernelName = "sort"
	KernelHistogram      KernelName = "histogram"
)

// AllKernels is every kernel the dispatcher knows how to route, used to seed
// default thresholds and diagnostics' supportedKernels lists.
var AllKernels = []KernelName{
	KernelSum, KernelMin, KernelMax, KernelAverage, KernelCount, KernelSumProduct,
	KernelGroupByCount, KernelGroupBySum, KernelGroupByMin, KernelGroupByMax,
	KernelGroupByCount2, KernelGroupBySum2, KernelGroupByMin2, KernelGroupByMax2,
	KernelHashJoin, KernelMMult, KernelSort, KernelHistogram,
}

// Precision is the user-facing precision mode (spec §4.J): excel never
// silently drops to f32, fast allows it.
type Precision string

const (
	PrecisionExcel Precision = "excel"
	PrecisionFast  Precision = "fast"
)

// GPUPrecision is the actual per-call precision negotiated with the offload
// backend.
type GPUPrecision string

const (
	GPUPrecisionF32 GPUPrecision = "f32"
	GPUPrecisionF64 GPUPrecision = "f64"
	GPUPrecisionU32 GPUPrecision = "u32"
)

// ForceBackend overrides automatic routing.
type ForceBackend string

const (
	ForceAuto ForceBackend = "auto"
	ForceCPU  ForceBackend = "cpu"
	ForceGPU  ForceBackend = "gpu"
)

// Backend names which implementation actually served one call.
type Backend string

const (
	BackendCPU     Backend = "cpu"
	BackendOffload Backend = "offload"
)

// GPUOptions configures offload routing.
type GPUOptions struct {
	Enabled                 bool
	ForceBackend            ForceBackend
	AllowFp32FallbackForF64 bool
}

// ValidationOptions configures the CPU cross-check.
type ValidationOptions struct {
	Enabled       bool
	MaxElements   int
	AbsTolerance  float64
	RelTolerance  float64
}

// Options is KernelEngineOptions from spec §6.
type Options struct {
	Precision  Precision
	GPU        GPUOptions
	Validation ValidationOptions
	Thresholds map[KernelName]int
}

// DefaultThresholds matches spec §6: most kernels at 2^15, mmult at 2^20.
func DefaultThresholds() map[KernelName]int {
	t := make(map[KernelName]int, len(AllKernels))
	for _, k := range AllKernels {
		t[k] = 1 << 15
	}
	t[KernelMMult] = 1 << 20
	return t
}

// DefaultOptions returns the documented defaults: fast precision, GPU
// disabled, validation disabled except callers opting into excel mode
// (ApplyExcelDefaults flips validation.enabled on).
func DefaultOptions() Options {
	return Options{
		Precision:  PrecisionFast,
		GPU:        GPUOptions{Enabled: false, ForceBackend: ForceAuto, AllowFp32FallbackForF64: false},
		Validation: ValidationOptions{Enabled: false, MaxElements: 1 << 16, AbsTolerance: 1e-9, RelTolerance: 1e-6},
		Thresholds: DefaultThresholds(),
	}
}

// ApplyExcelDefaults mirrors spec §6's "validation disabled except in excel
// mode" default.
func ApplyExcelDefaults(o Options) Options {
	o.Precision = PrecisionExcel
	o.Validation.Enabled = true
	return o
}

// validatedKernels is the set of kernels the dispatcher cross-checks when
// validation is enabled; every routed kernel is eligible per spec §4.J.
var validatedKernels = func() map[KernelName]bool {
	m := make(map[KernelName]bool, len(AllKernels))
	for _, k := range AllKernels {
		m[k] = true
	}
	return m
}()

func isValidatedKernel(k KernelName) bool { return validatedKernels[k] }

// gpuPrecisionForValues implements spec §4.J's precision policy exactly.
func gpuPrecisionForValues(requested GPUPrecision, mode Precision, allowFp32Fallback, valuesAreF64 bool) GPUPrecision {
	if requested == GPUPrecisionF64 {
		return GPUPrecisionF64
	}
	if mode == PrecisionExcel {
		return GPUPrecisionF64
	}
	if !allowFp32Fallback && valuesAreF64 {
		return GPUPrecisionF64
	}
	return GPUPrecisionF32
}

// workloadSize computes the §4.J routing metric; mmult uses the triple
// product, everything else the element count.
func workloadSizeFor(kernel KernelName, n, aRows, aCols, bCols int) int {
	if kernel == KernelMMult {
		return aRows * aCols * bCols
	}
	return n
}
