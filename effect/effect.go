// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package effect

import (
	"github.com/gogpu/naga"

	"github.com/gogpu/overlay"
)

// Entry points every effect stage must export.
const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
)

// Shader stage names reported in compile errors.
const (
	StageVertex   = "vertex"
	StageFragment = "fragment"
)

// Effect is a named, loadable shader program.
type Effect struct {
	// ID is the stable identifier persisted in the state store.
	ID string

	// Name is a human readable label for control surfaces.
	Name string

	// Vertex is the WGSL source of the vertex stage.
	Vertex string

	// Fragment is the WGSL source of the fragment stage.
	Fragment string
}

// Validator checks that an effect's sources compile. Implementations return
// an *overlay.CompileError for malformed sources.
type Validator func(Effect) error

// Validate compiles both stages of e with naga and reports the first failure
// as an *overlay.CompileError.
func Validate(e Effect) error {
	if _, err := naga.Compile(e.Vertex); err != nil {
		return &overlay.CompileError{EffectID: e.ID, Stage: StageVertex, Err: err}
	}
	if _, err := naga.Compile(e.Fragment); err != nil {
		return &overlay.CompileError{EffectID: e.ID, Stage: StageFragment, Err: err}
	}
	return nil
}
