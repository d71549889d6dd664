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
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestApplyOnlyOverridesChangedFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flagSet := BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--precision", "excel", "--cache", "filesystem"}))

	cfg := Default()
	cfg = flagSet.Apply(fs, cfg)

	require.Equal(t, "excel", cfg.Kernel.Precision)
	require.Equal(t, "filesystem", cfg.Cache.Kind)
	// gpu wasn't passed, so Default()'s value survives untouched.
	require.Equal(t, Default().Kernel.GPU.Enabled, cfg.Kernel.GPU.Enabled)
}

func TestApplyLeavesConfigUntouchedWhenNoFlagsSet(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flagSet := BindFlags(fs)
	require.NoError(t, fs.Parse(nil))

	cfg := Default()
	got := flagSet.Apply(fs, cfg)
	require.Equal(t, cfg, got)
}
