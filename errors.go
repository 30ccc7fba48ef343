// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package overlay

import (
	"errors"
	"fmt"
)

// Failure taxonomy shared by all overlay packages. Every failure is handled
// at the boundary where it occurs; callers test with errors.Is.
var (
	// ErrDeviceUnavailable is returned when the host lacks graphics capability
	// or the device was denied. It is terminal for the page that hit it.
	ErrDeviceUnavailable = errors.New("overlay: graphics device unavailable")

	// ErrCompile matches every *CompileError via errors.Is.
	ErrCompile = errors.New("overlay: effect compile error")

	// ErrStorageUnavailable is returned when the persisted state store cannot
	// be read or written. Callers degrade to the in-memory default.
	ErrStorageUnavailable = errors.New("overlay: storage unavailable")

	// ErrDeliveryFailure is returned when a message could not reach a page
	// (closed, navigated away, or not listening). It is expected and never retried.
	ErrDeliveryFailure = errors.New("overlay: message delivery failed")

	// ErrUnknownEffect is returned when an effect id is not in the registry.
	ErrUnknownEffect = errors.New("overlay: unknown effect")
)

// CompileError reports a malformed effect source.
type CompileError struct {
	// EffectID is the effect whose source failed to compile.
	EffectID string

	// Stage is "vertex" or "fragment".
	Stage string

	// Err is the underlying compiler error.
	Err error
}

func (e *CompileError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("overlay: compile effect %q: %v", e.EffectID, e.Err)
	}
	return fmt.Sprintf("overlay: compile effect %q (%s stage): %v", e.EffectID, e.Stage, e.Err)
}

// Unwrap returns the underlying compiler error.
func (e *CompileError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCompile.
func (e *CompileError) Is(target error) bool { return target == ErrCompile }
