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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestRunCmdSelectAndTake(t *testing.T) {
	path := writeTempCSV(t, "name,age\nAva,30\nBo,40\nCy,50\n")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"run", "--source", path, "--select", "name", "--take", "2"})
	require.NoError(t, root.Execute())

	require.Equal(t, "name\nAva\nBo\n", out.String())
}

func TestRunCmdMissingSourceErrors(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run"})
	require.Error(t, root.Execute())
}

func TestCacheGCRunsWithoutError(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"cache", "gc"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "cache gc complete")
}

func TestKernelBenchSumReportsDiff(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"kernel", "bench", "--kernel", "sum", "--n", "64", "--seed", "7"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "kernel=sum n=64")
	require.Contains(t, out.String(), "absDiff=")
}

func TestKernelBenchUnknownKernelErrors(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"kernel", "bench", "--kernel", "mmult"})
	require.Error(t, root.Execute())
}
