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

package pqconfig

import "github.com/spf13/pflag"

// FlagSet is the set of CLI flags pqctl binds on top of a loaded Config;
// any flag the user actually passes overrides the file value in Apply.
type FlagSet struct {
	precision    *string
	gpuEnabled   *bool
	forceBackend *string
	validate     *bool
	cacheKind    *string
	cacheDir     *string
}

// BindFlags registers pqctl's config-overriding flags on fs and returns a
// FlagSet to pass to Apply once fs.Parse has run.
func BindFlags(fs *pflag.FlagSet) *FlagSet {
	return &FlagSet{
		precision:    fs.String("precision", "", "kernel precision mode: excel or fast"),
		gpuEnabled:   fs.Bool("gpu", false, "enable offload routing"),
		forceBackend: fs.String("force-backend", "", "force auto/cpu/gpu backend selection"),
		validate:     fs.Bool("validate", false, "enable CPU/offload validation cross-check"),
		cacheKind:    fs.String("cache", "", "cache store kind: memory, filesystem, encryptedFilesystem"),
		cacheDir:     fs.String("cache-dir", "", "cache directory for filesystem-backed stores"),
	}
}

// Apply layers any flag the caller actually set onto cfg (fs drives the
// "was it set" check so an unset bool flag never clobbers a true default).
func (f *FlagSet) Apply(fs *pflag.FlagSet, cfg Config) Config {
	if fs.Changed("precision") {
		cfg.Kernel.Precision = *f.precision
	}
	if fs.Changed("gpu") {
		cfg.Kernel.GPU.Enabled = *f.gpuEnabled
	}
	if fs.Changed("force-backend") {
		cfg.Kernel.GPU.ForceBackend = *f.forceBackend
	}
	if fs.Changed("validate") {
		cfg.Kernel.Validation.Enabled = *f.validate
	}
	if fs.Changed("cache") {
		cfg.Cache.Kind = *f.cacheKind
	}
	if fs.Changed("cache-dir") {
		cfg.Cache.Dir = *f.cacheDir
	}
	return cfg
}
