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

// Mismatch records one validation cross-check failure (spec §4.J step 2):
// the CPU result always wins, this is purely a telemetry record.
type Mismatch struct {
	Kernel       KernelName
	Precision    GPUPrecision
	WorkloadSize int
	AbsDiff      float64
}

// GPUDiagnostics mirrors the gpu sub-object of spec §4.J's diagnostics shape.
type GPUDiagnostics struct {
	Enabled             bool
	ForceBackend        ForceBackend
	Available           bool
	SupportedKernels    []KernelName
	SupportedKernelsF64 []KernelName
}

// ValidationDiagnostics mirrors the validation sub-object.
type ValidationDiagnostics struct {
	Mismatches   int
	LastMismatch *Mismatch
	GPUErrors    int
	LastGPUError string
}

// Diagnostics is the dispatcher's introspection snapshot (spec §4.J):
// `{precision, gpu, cpu, thresholds, lastKernelBackend, lastKernelPrecision,
// validation}`.
type Diagnostics struct {
	Precision           Precision
	GPU                 GPUDiagnostics
	CPU                 struct{ SupportedKernels []KernelName }
	Thresholds          map[KernelName]int
	LastKernelBackend   map[KernelName]Backend
	LastKernelPrecision map[KernelName]GPUPrecision
	Validation          ValidationDiagnostics
}
