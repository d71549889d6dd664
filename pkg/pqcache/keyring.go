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

import "sync"

// KeyRing holds every AES-256-GCM key version the encrypted filesystem
// store has ever used (spec §4.C). Encryption always uses currentVersion;
// decryption selects the key by the version embedded in the ciphertext, so
// rotating never invalidates entries written under an older key.
type KeyRing struct {
	mu             sync.RWMutex
	currentVersion uint32
	keys           map[uint32][32]byte
}

// NewKeyRing seeds a ring with version 1 holding initialKey.
func NewKeyRing(initialKey [32]byte) *KeyRing {
	return &KeyRing{
		currentVersion: 1,
		keys:           map[uint32][32]byte{1: initialKey},
	}
}

// CurrentVersion returns the key version new entries are encrypted under.
func (kr *KeyRing) CurrentVersion() uint32 {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return kr.currentVersion
}

func (kr *KeyRing) key(version uint32) ([32]byte, bool) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	k, ok := kr.keys[version]
	return k, ok
}

func (kr *KeyRing) currentKey() (uint32, [32]byte) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return kr.currentVersion, kr.keys[kr.currentVersion]
}

// Rotate appends newKey as a fresh version and makes it current. Every
// earlier version remains in the ring so prior entries stay decryptable
// until rewritten.
func (kr *KeyRing) Rotate(newKey [32]byte) uint32 {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	kr.currentVersion++
	kr.keys[kr.currentVersion] = newKey
	return kr.currentVersion
}
