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

package pqspill

// NativeFS describes the optional native-filesystem spill variant named in
// spec §4.F. FilesystemStore is the concrete implementation; the interface
// stays separate from Store so a host can type-assert for Dir() without
// committing every Store implementation (MemoryStore, KVStore) to exposing
// an on-disk path.
type NativeFS interface {
	Store
	// Dir reports the on-disk directory this store is rooted at, so a host
	// can include it in backup/cleanup policy.
	Dir() string
}
