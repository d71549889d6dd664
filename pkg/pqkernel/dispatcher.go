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
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/erigontech/powerquery/pkg/pqkernel/cpukernel"
)

// Dispatcher routes each kernel call to the CPU reference implementation or
// an offload backend per spec §4.J, validating offload results against the
// CPU kernel when configured and falling back silently on any mismatch or
// offload error.
type Dispatcher struct {
	opts    Options
	offload OffloadBackend
	metrics *Metrics

	mu            sync.Mutex
	lastBackend   map[KernelName]Backend
	lastPrecision map[KernelName]GPUPrecision
	mismatches    int
	lastMismatch  *Mismatch
	gpuErrors     int
	lastGPUError  string
}

// DispatcherOption configures a Dispatcher at construction.
type DispatcherOption func(*Dispatcher)

// WithDispatcherMetrics overrides the default unregistered Metrics instance,
// letting a caller share one Metrics (and one registration) across
// dispatchers.
func WithDispatcherMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher constructs a Dispatcher. offload may be nil, in which case
// every call runs on the CPU regardless of opts.
func NewDispatcher(opts Options, offload OffloadBackend, dispatcherOpts ...DispatcherOption) *Dispatcher {
	if opts.Thresholds == nil {
		opts.Thresholds = DefaultThresholds()
	}
	d := &Dispatcher{
		opts:          opts,
		offload:       offload,
		metrics:       NewMetrics(),
		lastBackend:   make(map[KernelName]Backend),
		lastPrecision: make(map[KernelName]GPUPrecision),
	}
	for _, opt := range dispatcherOpts {
		opt(d)
	}
	return d
}

// Metrics returns the dispatcher's collector for prometheus registration.
func (d *Dispatcher) Metrics() *Metrics { return d.metrics }

// choose implements spec §4.J's routing table.
func (d *Dispatcher) choose(kernel KernelName, workloadSize int, precision GPUPrecision) Backend {
	if d.opts.GPU.ForceBackend == ForceCPU {
		return BackendCPU
	}
	if d.offload == nil || !d.offload.Available() {
		return BackendCPU
	}
	if d.opts.GPU.ForceBackend == ForceGPU {
		if d.offload.SupportsKernelPrecision(kernel, precision) {
			return BackendOffload
		}
		return BackendCPU
	}
	if !d.opts.GPU.Enabled {
		return BackendCPU
	}
	if workloadSize < d.opts.Thresholds[kernel] {
		return BackendCPU
	}
	if !d.offload.SupportsKernelPrecision(kernel, precision) {
		return BackendCPU
	}
	return BackendOffload
}

// precisionFor resolves the GPU precision a call should request: sort is
// never silently demoted from f64 (spec §9/§4.K), u32-keyed kernels carry
// their own fixed precision, everything else follows gpuPrecisionForValues.
func (d *Dispatcher) precisionFor(kernel KernelName, requested GPUPrecision, valuesAreF64 bool) GPUPrecision {
	if kernel == KernelSort {
		return GPUPrecisionF64
	}
	if requested == GPUPrecisionU32 {
		return GPUPrecisionU32
	}
	return gpuPrecisionForValues(requested, d.opts.Precision, d.opts.GPU.AllowFp32FallbackForF64, valuesAreF64)
}

func (d *Dispatcher) recordBackend(k KernelName, b Backend) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastBackend[k] = b
	d.metrics.observeDispatch(k, b)
}

func (d *Dispatcher) recordPrecision(k KernelName, p GPUPrecision) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastPrecision[k] = p
}

func (d *Dispatcher) recordMismatch(k KernelName, p GPUPrecision, workloadSize int, diff float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mismatches++
	d.lastMismatch = &Mismatch{Kernel: k, Precision: p, WorkloadSize: workloadSize, AbsDiff: diff}
	d.metrics.observeMismatch(k)
}

func (d *Dispatcher) recordGPUError(k KernelName, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gpuErrors++
	d.lastGPUError = err.Error()
	d.metrics.observeGPUError(k)
}

// Diagnostics returns a point-in-time snapshot (spec §4.J).
func (d *Dispatcher) Diagnostics() Diagnostics {
	d.mu.Lock()
	defer d.mu.Unlock()

	var supported, supportedF64 []KernelName
	available := d.offload != nil && d.offload.Available()
	if available {
		for _, k := range AllKernels {
			if d.offload.SupportsKernelPrecision(k, GPUPrecisionF32) || d.offload.SupportsKernelPrecision(k, GPUPrecisionU32) {
				supported = append(supported, k)
			}
			if d.offload.SupportsKernelPrecision(k, GPUPrecisionF64) {
				supportedF64 = append(supportedF64, k)
			}
		}
	}

	lastBackend := make(map[KernelName]Backend, len(d.lastBackend))
	for k, v := range d.lastBackend {
		lastBackend[k] = v
	}
	lastPrecision := make(map[KernelName]GPUPrecision, len(d.lastPrecision))
	for k, v := range d.lastPrecision {
		lastPrecision[k] = v
	}
	thresholds := make(map[KernelName]int, len(d.opts.Thresholds))
	for k, v := range d.opts.Thresholds {
		thresholds[k] = v
	}

	return Diagnostics{
		Precision: d.opts.Precision,
		GPU: GPUDiagnostics{
			Enabled:             d.opts.GPU.Enabled,
			ForceBackend:        d.opts.GPU.ForceBackend,
			Available:           available,
			SupportedKernels:    supported,
			SupportedKernelsF64: supportedF64,
		},
		CPU:                 struct{ SupportedKernels []KernelName }{SupportedKernels: AllKernels},
		Thresholds:          thresholds,
		LastKernelBackend:   lastBackend,
		LastKernelPrecision: lastPrecision,
		Validation: ValidationDiagnostics{
			Mismatches:   d.mismatches,
			LastMismatch: d.lastMismatch,
			GPUErrors:    d.gpuErrors,
			LastGPUError: d.lastGPUError,
		},
	}
}

// dispatch unifies the choose -> execute -> validate -> fallback flow across
// every kernel's result type. compare reports (diff, equal); it is only
// consulted when validation is enabled, the kernel is in the validated set,
// and workloadSize fits within MaxElements.
func dispatch[R any](
	ctx context.Context,
	d *Dispatcher,
	kernel KernelName,
	workloadSize int,
	precision GPUPrecision,
	runCPU func() (R, error),
	runOffload func(context.Context, GPUPrecision) (R, error),
	compare func(cpu, gpu R) (float64, bool),
) (R, error) {
	d.recordPrecision(kernel, precision)
	backend := d.choose(kernel, workloadSize, precision)
	if backend == BackendCPU {
		res, err := runCPU()
		d.recordBackend(kernel, BackendCPU)
		return res, err
	}

	validating := d.opts.Validation.Enabled && isValidatedKernel(kernel) && workloadSize <= d.opts.Validation.MaxElements
	if !validating {
		gpuRes, err := runOffload(ctx, precision)
		if err != nil {
			d.recordGPUError(kernel, err)
			res, cerr := runCPU()
			d.recordBackend(kernel, BackendCPU)
			return res, cerr
		}
		d.recordBackend(kernel, BackendOffload)
		return gpuRes, nil
	}

	// Validation needs both results; run the CPU reference concurrently with
	// the offload call instead of paying their latencies back to back.
	var (
		cpuRes R
		cpuErr error
		gpuRes R
		gpuErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cpuRes, cpuErr = runCPU()
		return nil
	})
	g.Go(func() error {
		gpuRes, gpuErr = runOffload(gctx, precision)
		return nil
	})
	_ = g.Wait()

	if gpuErr != nil {
		d.recordGPUError(kernel, gpuErr)
		d.recordBackend(kernel, BackendCPU)
		return cpuRes, cpuErr
	}
	if cpuErr == nil {
		if diff, equal := compare(cpuRes, gpuRes); !equal {
			d.recordMismatch(kernel, precision, workloadSize, diff)
			d.recordBackend(kernel, BackendCPU)
			return cpuRes, nil
		}
	}

	d.recordBackend(kernel, BackendOffload)
	return gpuRes, nil
}

// --- comparison helpers (spec §4.J validation rules) ---

// scalarEqual implements the scalar rule: Object.is-style identity (so +0
// and -0 compare unequal, NaN compares equal to NaN) with an absolute- or
// relative-tolerance fallback.
func scalarEqual(cpu, gpu, absTol, relTol float64) (float64, bool) {
	if math.Float64bits(cpu) == math.Float64bits(gpu) {
		return 0, true
	}
	if cpu == 0 && gpu == 0 {
		return 0, false // +0 vs -0
	}
	diff := math.Abs(cpu - gpu)
	if diff <= absTol {
		return diff, true
	}
	m := math.Max(math.Abs(cpu), math.Abs(gpu))
	if diff <= relTol*m {
		return diff, true
	}
	return diff, false
}

func exactFloatSlice(cpu, gpu []float64) (float64, bool) {
	if len(cpu) != len(gpu) {
		return math.Inf(1), false
	}
	for i := range cpu {
		if math.Float64bits(cpu[i]) != math.Float64bits(gpu[i]) {
			return math.Abs(cpu[i] - gpu[i]), false
		}
	}
	return 0, true
}

func toleranceFloatSlice(absTol, relTol float64) func(cpu, gpu []float64) (float64, bool) {
	return func(cpu, gpu []float64) (float64, bool) {
		if len(cpu) != len(gpu) {
			return math.Inf(1), false
		}
		maxDiff := 0.0
		for i := range cpu {
			diff, ok := scalarEqual(cpu[i], gpu[i], absTol, relTol)
			if !ok {
				return diff, false
			}
			if diff > maxDiff {
				maxDiff = diff
			}
		}
		return maxDiff, true
	}
}

func equalUint32Slice(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalIntSlice(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (d *Dispatcher) scalarCompare() func(cpu, gpu float64) (float64, bool) {
	abs, rel := d.opts.Validation.AbsTolerance, d.opts.Validation.RelTolerance
	return func(cpu, gpu float64) (float64, bool) { return scalarEqual(cpu, gpu, abs, rel) }
}

func exactScalarCompare(cpu, gpu float64) (float64, bool) {
	if math.Float64bits(cpu) == math.Float64bits(gpu) {
		return 0, true
	}
	return math.Abs(cpu - gpu), false
}

// --- scalar reductions ---

func (d *Dispatcher) Sum(ctx context.Context, values []float64) (float64, error) {
	precision := d.precisionFor(KernelSum, GPUPrecisionF32, true)
	return dispatch(ctx, d, KernelSum, len(values), precision,
		func() (float64, error) { return cpukernel.Sum(values), nil },
		func(ctx context.Context, p GPUPrecision) (float64, error) { return d.offload.Sum(ctx, values, p) },
		d.scalarCompare())
}

func (d *Dispatcher) Min(ctx context.Context, values []float64) (float64, error) {
	precision := d.precisionFor(KernelMin, GPUPrecisionF32, true)
	return dispatch(ctx, d, KernelMin, len(values), precision,
		func() (float64, error) { return cpukernel.Min(values), nil },
		func(ctx context.Context, p GPUPrecision) (float64, error) { return d.offload.Min(ctx, values, p) },
		exactScalarCompare)
}

func (d *Dispatcher) Max(ctx context.Context, values []float64) (float64, error) {
	precision := d.precisionFor(KernelMax, GPUPrecisionF32, true)
	return dispatch(ctx, d, KernelMax, len(values), precision,
		func() (float64, error) { return cpukernel.Max(values), nil },
		func(ctx context.Context, p GPUPrecision) (float64, error) { return d.offload.Max(ctx, values, p) },
		exactScalarCompare)
}

func (d *Dispatcher) Average(ctx context.Context, values []float64) (float64, error) {
	precision := d.precisionFor(KernelAverage, GPUPrecisionF32, true)
	return dispatch(ctx, d, KernelAverage, len(values), precision,
		func() (float64, error) { return cpukernel.Average(values), nil },
		func(ctx context.Context, p GPUPrecision) (float64, error) { return d.offload.Average(ctx, values, p) },
		d.scalarCompare())
}

func (d *Dispatcher) Count(ctx context.Context, values []float64) (int, error) {
	precision := d.precisionFor(KernelCount, GPUPrecisionU32, false)
	return dispatch(ctx, d, KernelCount, len(values), precision,
		func() (int, error) { return cpukernel.Count(values), nil },
		func(ctx context.Context, _ GPUPrecision) (int, error) { return d.offload.Count(ctx, values) },
		func(cpu, gpu int) (float64, bool) { return math.Abs(float64(cpu - gpu)), cpu == gpu })
}

func (d *Dispatcher) SumProduct(ctx context.Context, a, b []float64) (float64, error) {
	precision := d.precisionFor(KernelSumProduct, GPUPrecisionF32, true)
	return dispatch(ctx, d, KernelSumProduct, len(a), precision,
		func() (float64, error) { return cpukernel.SumProduct(a, b) },
		func(ctx context.Context, p GPUPrecision) (float64, error) { return d.offload.SumProduct(ctx, a, b, p) },
		d.scalarCompare())
}

// --- group by ---

func compareGroupByCount(cpu, gpu cpukernel.GroupByResult) (float64, bool) {
	if !equalUint32Slice(cpu.Keys, gpu.Keys) || !equalUint32Slice(cpu.Counts, gpu.Counts) {
		return math.Inf(1), false
	}
	return 0, true
}

func (d *Dispatcher) groupBySumCompare() func(cpu, gpu cpukernel.GroupByResult) (float64, bool) {
	tol := toleranceFloatSlice(d.opts.Validation.AbsTolerance, d.opts.Validation.RelTolerance)
	return func(cpu, gpu cpukernel.GroupByResult) (float64, bool) {
		if !equalUint32Slice(cpu.Keys, gpu.Keys) {
			return math.Inf(1), false
		}
		return tol(cpu.Sums, gpu.Sums)
	}
}

func compareGroupByMin(cpu, gpu cpukernel.GroupByResult) (float64, bool) {
	if !equalUint32Slice(cpu.Keys, gpu.Keys) {
		return math.Inf(1), false
	}
	return exactFloatSlice(cpu.Mins, gpu.Mins)
}

func compareGroupByMax(cpu, gpu cpukernel.GroupByResult) (float64, bool) {
	if !equalUint32Slice(cpu.Keys, gpu.Keys) {
		return math.Inf(1), false
	}
	return exactFloatSlice(cpu.Maxs, gpu.Maxs)
}

func (d *Dispatcher) GroupByCount(ctx context.Context, keys []uint32, signed bool) (cpukernel.GroupByResult, error) {
	precision := d.precisionFor(KernelGroupByCount, GPUPrecisionU32, false)
	return dispatch(ctx, d, KernelGroupByCount, len(keys), precision,
		func() (cpukernel.GroupByResult, error) { return cpukernel.GroupByCount(keys, signed), nil },
		func(ctx context.Context, _ GPUPrecision) (cpukernel.GroupByResult, error) {
			return d.offload.GroupByCount(ctx, keys, signed)
		},
		compareGroupByCount)
}

func (d *Dispatcher) GroupBySum(ctx context.Context, keys []uint32, signed bool, values []float64) (cpukernel.GroupByResult, error) {
	precision := d.precisionFor(KernelGroupBySum, GPUPrecisionF32, true)
	return dispatch(ctx, d, KernelGroupBySum, len(keys), precision,
		func() (cpukernel.GroupByResult, error) { return cpukernel.GroupBySum(keys, signed, values) },
		func(ctx context.Context, p GPUPrecision) (cpukernel.GroupByResult, error) {
			return d.offload.GroupBySum(ctx, keys, signed, values, p)
		},
		d.groupBySumCompare())
}

func (d *Dispatcher) GroupByMin(ctx context.Context, keys []uint32, signed bool, values []float64) (cpukernel.GroupByResult, error) {
	precision := d.precisionFor(KernelGroupByMin, GPUPrecisionF32, true)
	return dispatch(ctx, d, KernelGroupByMin, len(keys), precision,
		func() (cpukernel.GroupByResult, error) { return cpukernel.GroupByMin(keys, signed, values) },
		func(ctx context.Context, p GPUPrecision) (cpukernel.GroupByResult, error) {
			return d.offload.GroupByMin(ctx, keys, signed, values, p)
		},
		compareGroupByMin)
}

func (d *Dispatcher) GroupByMax(ctx context.Context, keys []uint32, signed bool, values []float64) (cpukernel.GroupByResult, error) {
	precision := d.precisionFor(KernelGroupByMax, GPUPrecisionF32, true)
	return dispatch(ctx, d, KernelGroupByMax, len(keys), precision,
		func() (cpukernel.GroupByResult, error) { return cpukernel.GroupByMax(keys, signed, values) },
		func(ctx context.Context, p GPUPrecision) (cpukernel.GroupByResult, error) {
			return d.offload.GroupByMax(ctx, keys, signed, values, p)
		},
		compareGroupByMax)
}

func compareGroupByCount2(cpu, gpu cpukernel.GroupByResult2) (float64, bool) {
	if !equalUint32Slice(cpu.KeysA, gpu.KeysA) || !equalUint32Slice(cpu.KeysB, gpu.KeysB) || !equalUint32Slice(cpu.Counts, gpu.Counts) {
		return math.Inf(1), false
	}
	return 0, true
}

func (d *Dispatcher) groupBySum2Compare() func(cpu, gpu cpukernel.GroupByResult2) (float64, bool) {
	tol := toleranceFloatSlice(d.opts.Validation.AbsTolerance, d.opts.Validation.RelTolerance)
	return func(cpu, gpu cpukernel.GroupByResult2) (float64, bool) {
		if !equalUint32Slice(cpu.KeysA, gpu.KeysA) || !equalUint32Slice(cpu.KeysB, gpu.KeysB) {
			return math.Inf(1), false
		}
		return tol(cpu.Sums, gpu.Sums)
	}
}

func compareGroupByMin2(cpu, gpu cpukernel.GroupByResult2) (float64, bool) {
	if !equalUint32Slice(cpu.KeysA, gpu.KeysA) || !equalUint32Slice(cpu.KeysB, gpu.KeysB) {
		return math.Inf(1), false
	}
	return exactFloatSlice(cpu.Mins, gpu.Mins)
}

func compareGroupByMax2(cpu, gpu cpukernel.GroupByResult2) (float64, bool) {
	if !equalUint32Slice(cpu.KeysA, gpu.KeysA) || !equalUint32Slice(cpu.KeysB, gpu.KeysB) {
		return math.Inf(1), false
	}
	return exactFloatSlice(cpu.Maxs, gpu.Maxs)
}

func (d *Dispatcher) GroupByCount2(ctx context.Context, keysA, keysB []uint32, signed bool) (cpukernel.GroupByResult2, error) {
	precision := d.precisionFor(KernelGroupByCount2, GPUPrecisionU32, false)
	return dispatch(ctx, d, KernelGroupByCount2, len(keysA), precision,
		func() (cpukernel.GroupByResult2, error) { return cpukernel.GroupByCount2(keysA, keysB, signed) },
		func(ctx context.Context, _ GPUPrecision) (cpukernel.GroupByResult2, error) {
			return d.offload.GroupByCount2(ctx, keysA, keysB, signed)
		},
		compareGroupByCount2)
}

func (d *Dispatcher) GroupBySum2(ctx context.Context, keysA, keysB []uint32, signed bool, values []float64) (cpukernel.GroupByResult2, error) {
	precision := d.precisionFor(KernelGroupBySum2, GPUPrecisionF32, true)
	return dispatch(ctx, d, KernelGroupBySum2, len(keysA), precision,
		func() (cpukernel.GroupByResult2, error) { return cpukernel.GroupBySum2(keysA, keysB, signed, values) },
		func(ctx context.Context, p GPUPrecision) (cpukernel.GroupByResult2, error) {
			return d.offload.GroupBySum2(ctx, keysA, keysB, signed, values, p)
		},
		d.groupBySum2Compare())
}

func (d *Dispatcher) GroupByMin2(ctx context.Context, keysA, keysB []uint32, signed bool, values []float64) (cpukernel.GroupByResult2, error) {
	precision := d.precisionFor(KernelGroupByMin2, GPUPrecisionF32, true)
	return dispatch(ctx, d, KernelGroupByMin2, len(keysA), precision,
		func() (cpukernel.GroupByResult2, error) { return cpukernel.GroupByMin2(keysA, keysB, signed, values) },
		func(ctx context.Context, p GPUPrecision) (cpukernel.GroupByResult2, error) {
			return d.offload.GroupByMin2(ctx, keysA, keysB, signed, values, p)
		},
		compareGroupByMin2)
}

func (d *Dispatcher) GroupByMax2(ctx context.Context, keysA, keysB []uint32, signed bool, values []float64) (cpukernel.GroupByResult2, error) {
	precision := d.precisionFor(KernelGroupByMax2, GPUPrecisionF32, true)
	return dispatch(ctx, d, KernelGroupByMax2, len(keysA), precision,
		func() (cpukernel.GroupByResult2, error) { return cpukernel.GroupByMax2(keysA, keysB, signed, values) },
		func(ctx context.Context, p GPUPrecision) (cpukernel.GroupByResult2, error) {
			return d.offload.GroupByMax2(ctx, keysA, keysB, signed, values, p)
		},
		compareGroupByMax2)
}

// --- join / matrix / sort / histogram ---

func (d *Dispatcher) HashJoin(ctx context.Context, left, right []uint32, joinType cpukernel.JoinType) ([]cpukernel.JoinPair, error) {
	precision := d.precisionFor(KernelHashJoin, GPUPrecisionU32, false)
	workload := len(left) + len(right)
	return dispatch(ctx, d, KernelHashJoin, workload, precision,
		func() ([]cpukernel.JoinPair, error) { return cpukernel.HashJoin(left, right, joinType) },
		func(ctx context.Context, _ GPUPrecision) ([]cpukernel.JoinPair, error) {
			return d.offload.HashJoin(ctx, left, right, joinType)
		},
		func(cpu, gpu []cpukernel.JoinPair) (float64, bool) {
			if len(cpu) != len(gpu) {
				return math.Inf(1), false
			}
			for i := range cpu {
				if cpu[i] != gpu[i] {
					return math.Inf(1), false
				}
			}
			return 0, true
		})
}

func (d *Dispatcher) MMult(ctx context.Context, a, b []float64, aRows, aCols, bCols int) ([]float64, error) {
	precision := d.precisionFor(KernelMMult, GPUPrecisionF32, true)
	workload := workloadSizeFor(KernelMMult, 0, aRows, aCols, bCols)
	return dispatch(ctx, d, KernelMMult, workload, precision,
		func() ([]float64, error) { return cpukernel.MMult(a, b, aRows, aCols, bCols) },
		func(ctx context.Context, p GPUPrecision) ([]float64, error) { return d.offload.MMult(ctx, a, b, aRows, aCols, bCols, p) },
		toleranceFloatSlice(d.opts.Validation.AbsTolerance, d.opts.Validation.RelTolerance))
}

func (d *Dispatcher) Sort(ctx context.Context, values []float64) ([]float64, error) {
	precision := d.precisionFor(KernelSort, GPUPrecisionF64, true)
	return dispatch(ctx, d, KernelSort, len(values), precision,
		func() ([]float64, error) { return cpukernel.Sort(values), nil },
		func(ctx context.Context, _ GPUPrecision) ([]float64, error) { return d.offload.Sort(ctx, values) },
		exactFloatSlice)
}

func (d *Dispatcher) Histogram(ctx context.Context, values []float64, opts cpukernel.HistogramOptions) ([]int, error) {
	precision := d.precisionFor(KernelHistogram, GPUPrecisionF32, true)
	return dispatch(ctx, d, KernelHistogram, len(values), precision,
		func() ([]int, error) { return cpukernel.Histogram(values, opts) },
		func(ctx context.Context, _ GPUPrecision) ([]int, error) { return d.offload.Histogram(ctx, values, opts) },
		func(cpu, gpu []int) (float64, bool) {
			if !equalIntSlice(cpu, gpu) {
				return math.Inf(1), false
			}
			return 0, true
		})
}
