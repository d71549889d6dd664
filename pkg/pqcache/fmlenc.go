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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"

	"github.com/erigontech/powerquery/pkg/pqerr"
)

// fmlencMagic tags an FMLENC01-format ciphertext (spec §4.C):
// MAGIC(8) | keyVersion(u32 BE) | iv(12) | tag(16) | ciphertext.
const fmlencMagic = "FMLENC01"

const (
	fmlencIVSize  = 12
	fmlencTagSize = 16
	fmlencHeader  = len(fmlencMagic) + 4 + fmlencIVSize + fmlencTagSize
)

func isFMLENC(data []byte) bool {
	return len(data) >= len(fmlencMagic) && string(data[:len(fmlencMagic)]) == fmlencMagic
}

// sealFMLENC01 encrypts plaintext under the keyring's current key version,
// authenticating aad, and returns the full wire-format blob.
func sealFMLENC01(kr *KeyRing, plaintext, aad []byte) ([]byte, error) {
	version, key := kr.currentKey()
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, pqerr.Cachef("pqcache: build cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, pqerr.Cachef("pqcache: build gcm: %v", err)
	}
	iv := make([]byte, fmlencIVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, pqerr.Cachef("pqcache: generate iv: %v", err)
	}
	sealed := gcm.Seal(nil, iv, plaintext, aad)
	tag := sealed[len(sealed)-fmlencTagSize:]
	ct := sealed[:len(sealed)-fmlencTagSize]

	out := make([]byte, 0, fmlencHeader+len(ct))
	out = append(out, []byte(fmlencMagic)...)
	var vbuf [4]byte
	binary.BigEndian.PutUint32(vbuf[:], version)
	out = append(out, vbuf[:]...)
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ct...)
	return out, nil
}

// openFMLENC01 decrypts an FMLENC01 blob, verifying aad, selecting the key
// by the version embedded in the blob.
func openFMLENC01(kr *KeyRing, data, aad []byte) ([]byte, error) {
	if len(data) < fmlencHeader || string(data[:len(fmlencMagic)]) != fmlencMagic {
		return nil, pqerr.Cachef("pqcache: not an FMLENC01 blob")
	}
	off := len(fmlencMagic)
	version := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	iv := data[off : off+fmlencIVSize]
	off += fmlencIVSize
	tag := data[off : off+fmlencTagSize]
	off += fmlencTagSize
	ct := data[off:]

	key, ok := kr.key(version)
	if !ok {
		return nil, pqerr.Cachef("pqcache: unknown key version %d", version)
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, pqerr.Cachef("pqcache: build cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, pqerr.Cachef("pqcache: build gcm: %v", err)
	}
	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plain, err := gcm.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, pqerr.Cachef("pqcache: decrypt: %v", err)
	}
	return plain, nil
}
