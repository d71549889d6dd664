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

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/powerquery/pkg/pqkernel"
)

func TestDefaultMatchesKernelDefaultOptions(t *testing.T) {
	cfg := Default()
	opts := cfg.KernelOptions()
	require.Equal(t, pqkernel.DefaultOptions().Precision, opts.Precision)
	require.Equal(t, pqkernel.DefaultOptions().Validation, opts.Validation)
	require.Equal(t, pqkernel.DefaultThresholds(), opts.Thresholds)
	require.Equal(t, "memory", cfg.Cache.Kind)
}

func TestLoadOverridesOnlySpecifiedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pqctl.toml")
	toml := []byte(`
[kernel]
precision = "excel"

[kernel.gpu]
enabled = true

[cache]
kind = "filesystem"
dir = "/tmp/pqcache"
`)
	require.NoError(t, os.WriteFile(path, toml, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "excel", cfg.Kernel.Precision)
	require.True(t, cfg.Kernel.GPU.Enabled)
	require.Equal(t, "filesystem", cfg.Cache.Kind)
	require.Equal(t, "/tmp/pqcache", cfg.Cache.Dir)
	// Fields absent from the file keep Default()'s values.
	require.Equal(t, pqkernel.DefaultOptions().Validation.MaxElements, cfg.Kernel.Validation.MaxElements)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestKernelOptionsUsesDefaultThresholdsWhenFileOmitsThem(t *testing.T) {
	cfg := Default()
	cfg.Kernel.Thresholds = nil
	opts := cfg.KernelOptions()
	require.Equal(t, pqkernel.DefaultThresholds(), opts.Thresholds)
}
