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

// Package pqconfig holds pqctl's file-based configuration: KernelEngineOptions
// (spec §6) and cache store settings, decoded from TOML with CLI flags
// layered on top.
package pqconfig

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/erigontech/powerquery/pkg/pqkernel"
)

// KernelConfig mirrors pqkernel.Options in a TOML-friendly shape: plain
// field names, no nested maps keyed by a custom string type (toml decodes
// map[string]int cleanly but the routing table reads better as an explicit
// table in a config file).
type KernelConfig struct {
	Precision  string           `toml:"precision"`
	GPU        GPUConfig        `toml:"gpu"`
	Validation ValidationConfig `toml:"validation"`
	Thresholds map[string]int   `toml:"thresholds"`
}

type GPUConfig struct {
	Enabled                 bool   `toml:"enabled"`
	ForceBackend            string `toml:"force_backend"`
	AllowFp32FallbackForF64 bool   `toml:"allow_fp32_fallback_for_f64"`
}

type ValidationConfig struct {
	Enabled      bool    `toml:"enabled"`
	MaxElements  int     `toml:"max_elements"`
	AbsTolerance float64 `toml:"abs_tolerance"`
	RelTolerance float64 `toml:"rel_tolerance"`
}

// CacheConfig selects and configures one pqcache.Store backend.
type CacheConfig struct {
	// Kind is one of "memory", "filesystem", "encryptedFilesystem".
	Kind          string `toml:"kind"`
	Capacity      int    `toml:"capacity"`
	Dir           string `toml:"dir"`
	Scope         string `toml:"scope"`
	SchemaVersion int    `toml:"schema_version"`
}

// Config is pqctl's whole configuration file.
type Config struct {
	Kernel KernelConfig `toml:"kernel"`
	Cache  CacheConfig  `toml:"cache"`
}

// Default returns the documented defaults (spec §6), expressed in the TOML
// shape.
func Default() Config {
	opts := pqkernel.DefaultOptions()
	return Config{
		Kernel: kernelConfigFromOptions(opts),
		Cache:  CacheConfig{Kind: "memory", Capacity: 1024},
	}
}

// Load reads and decodes a TOML config file, falling back to Default() for
// any field TOML leaves at its zero value by starting from the default and
// unmarshaling on top of it.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("pqconfig: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("pqconfig: decode %s: %w", path, err)
	}
	return cfg, nil
}

// KernelOptions converts the TOML-shaped KernelConfig into pqkernel.Options.
func (c Config) KernelOptions() pqkernel.Options {
	thresholds := make(map[pqkernel.KernelName]int, len(c.Kernel.Thresholds))
	for k, v := range c.Kernel.Thresholds {
		thresholds[pqkernel.KernelName(k)] = v
	}
	if len(thresholds) == 0 {
		thresholds = pqkernel.DefaultThresholds()
	}
	return pqkernel.Options{
		Precision: pqkernel.Precision(c.Kernel.Precision),
		GPU: pqkernel.GPUOptions{
			Enabled:                 c.Kernel.GPU.Enabled,
			ForceBackend:            pqkernel.ForceBackend(c.Kernel.GPU.ForceBackend),
			AllowFp32FallbackForF64: c.Kernel.GPU.AllowFp32FallbackForF64,
		},
		Validation: pqkernel.ValidationOptions{
			Enabled:      c.Kernel.Validation.Enabled,
			MaxElements:  c.Kernel.Validation.MaxElements,
			AbsTolerance: c.Kernel.Validation.AbsTolerance,
			RelTolerance: c.Kernel.Validation.RelTolerance,
		},
		Thresholds: thresholds,
	}
}

func kernelConfigFromOptions(o pqkernel.Options) KernelConfig {
	thresholds := make(map[string]int, len(o.Thresholds))
	for k, v := range o.Thresholds {
		thresholds[string(k)] = v
	}
	return KernelConfig{
		Precision: string(o.Precision),
		GPU: GPUConfig{
			Enabled:                 o.GPU.Enabled,
			ForceBackend:            string(o.GPU.ForceBackend),
			AllowFp32FallbackForF64: o.GPU.AllowFp32FallbackForF64,
		},
		Validation: ValidationConfig{
			Enabled:      o.Validation.Enabled,
			MaxElements:  o.Validation.MaxElements,
			AbsTolerance: o.Validation.AbsTolerance,
			RelTolerance: o.Validation.RelTolerance,
		},
		Thresholds: thresholds,
	}
}
