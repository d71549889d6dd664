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

// Package pqerr defines the error-kind taxonomy shared by every Power Query
// component (see spec §7). Callers distinguish kinds with errors.Is/As, never
// by matching error strings.
package pqerr

import (
	"errors"
	"fmt"
)

var (
	// ErrAborted is returned from any suspension point once the caller's
	// context has been canceled. It is kept distinguishable from every other
	// error kind so cooperative cancellation never looks like a real failure.
	ErrAborted = errors.New("pq: aborted")

	// ErrContractViolation covers invalid steps, unknown columns, key/count
	// mismatches and invalid coercion inputs. Never retried.
	ErrContractViolation = errors.New("pq: contract violation")

	// ErrSourceFailure covers source adapter I/O, parse and credential
	// errors. The engine never auto-retries these.
	ErrSourceFailure = errors.New("pq: source failure")

	// ErrCacheCorrupt marks a decrypt/parse/torn-file failure on a single
	// cache entry. Stores treat it as a miss and best-effort delete the
	// offending artifact; it must never surface as a hard error to callers
	// of Store.Get.
	ErrCacheCorrupt = errors.New("pq: cache entry corrupt")

	// ErrSpillFailure is fatal to the operator that hit it; it bubbles up
	// rather than being swallowed.
	ErrSpillFailure = errors.New("pq: spill failure")

	// ErrCycle marks a cyclic query dependency graph (spec §3.3).
	ErrCycle = errors.New("pq: cyclic query dependency")
)

// Contractf wraps msg/args as an ErrContractViolation.
func Contractf(format string, args ...any) error {
	return wrapf(ErrContractViolation, format, args...)
}

// Sourcef wraps msg/args as an ErrSourceFailure.
func Sourcef(format string, args ...any) error {
	return wrapf(ErrSourceFailure, format, args...)
}

// Spillf wraps msg/args as an ErrSpillFailure.
func Spillf(format string, args ...any) error {
	return wrapf(ErrSpillFailure, format, args...)
}

// Cachef wraps msg/args as an ErrCacheCorrupt.
func Cachef(format string, args ...any) error {
	return wrapf(ErrCacheCorrupt, format, args...)
}

func wrapf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }
