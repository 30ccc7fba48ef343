// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package effect holds the static registry of overlay effects.
//
// An effect is a named pair of WGSL stages: a vertex stage that maps the
// shared full-screen geometry to clip space, and a fragment stage that turns
// a normalized pixel coordinate and the elapsed time into a premultiplied
// RGBA color. The fragment stage's only required input is a uniform at
// group(0) binding(0) whose first member is the elapsed time as f32.
//
// Builtin effects are registered at init time:
//
//	e, ok := effect.Lookup("clouds")
//	if !ok {
//	    return overlay.ErrUnknownEffect
//	}
//	if err := effect.Validate(e); err != nil {
//	    // err is an *overlay.CompileError
//	}
package effect
