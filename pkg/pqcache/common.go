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

package pqcache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	mmap "github.com/edsrzf/mmap-go"
)

// mmapReadThreshold is the companion-file size above which readBinFile
// prefers a memory-mapped read over a full os.ReadFile copy.
const mmapReadThreshold = 1 << 20 // 1 MiB

// readBinFile reads path's full contents, memory-mapping it when it's
// large enough for that to matter (spec/DOMAIN STACK: mmap-go backs the
// filesystem store's large-companion read path) and falling back to a
// plain read otherwise or if the map fails.
func readBinFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() < mmapReadThreshold {
		return os.ReadFile(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return os.ReadFile(path)
	}
	defer m.Unmap()
	out := make([]byte, len(m))
	copy(out, m)
	return out, nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// estimateEntryBytes is a cheap size estimate for quota pruning, not exact
// byte accounting (mirrors pqspill's estimateBatchBytes in spirit).
func estimateEntryBytes(e Entry) int64 {
	b, err := json.Marshal(e.Value)
	if err != nil {
		return 0
	}
	return int64(len(b)) + 32
}

// atomicWriteFile writes data to path via a temp file followed by rename,
// the pattern spec §4.C requires for every on-disk store. On Windows a
// rename onto an existing file can fail with EEXIST/EPERM; fall back to
// remove-then-rename.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		if errors.Is(err, os.ErrExist) || errors.Is(err, os.ErrPermission) {
			if rmErr := os.Remove(path); rmErr == nil {
				if err2 := os.Rename(tmpName, path); err2 == nil {
					return nil
				}
			}
		}
		os.Remove(tmpName)
		return err
	}
	return nil
}
