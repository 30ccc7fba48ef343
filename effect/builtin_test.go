// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package effect

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/overlay"
)

func TestBuiltinSourcesContainEntryPoints(t *testing.T) {
	if !strings.Contains(FullscreenVertexSource(), "@vertex") ||
		!strings.Contains(FullscreenVertexSource(), VertexEntryPoint) {
		t.Fatal("vertex source missing entry point")
	}
	for _, e := range Builtins() {
		t.Run(e.ID, func(t *testing.T) {
			required := []string{
				"@fragment",
				FragmentEntryPoint,
				"@group(0) @binding(0)",
				"var<uniform>",
				"time: f32",
			}
			for _, req := range required {
				if !strings.Contains(e.Fragment, req) {
					t.Errorf("%s fragment missing %q", e.ID, req)
				}
			}
		})
	}
}

// nagaLimitation reports whether err is a known gap in the WGSL frontend
// rather than a bug in the effect source.
func nagaLimitation(err error) bool {
	s := err.Error()
	return strings.Contains(s, "not yet implemented") || strings.Contains(s, "not supported")
}

func TestBuiltinsValidate(t *testing.T) {
	for _, e := range Builtins() {
		t.Run(e.ID, func(t *testing.T) {
			err := Validate(e)
			if err == nil {
				return
			}
			if nagaLimitation(err) {
				t.Skipf("naga feature not yet implemented: %v", err)
			}
			t.Fatalf("Validate(%s) = %v", e.ID, err)
		})
	}
}

func TestValidateMalformed(t *testing.T) {
	tests := []struct {
		name  string
		e     Effect
		stage string
	}{
		{
			name:  "fragment",
			e:     Effect{ID: "bogus-id", Vertex: FullscreenVertexSource(), Fragment: "@fragment fn fs_main( -> {"},
			stage: StageFragment,
		},
		{
			name:  "vertex",
			e:     Effect{ID: "bogus-vertex", Vertex: "struct {", Fragment: flamesSource},
			stage: StageVertex,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.e)
			if err == nil {
				t.Fatal("expected compile error")
			}
			if !errors.Is(err, overlay.ErrCompile) {
				t.Fatalf("error %v does not match ErrCompile", err)
			}
			var ce *overlay.CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("error %T is not *CompileError", err)
			}
			if ce.Stage != tt.stage || ce.EffectID != tt.e.ID {
				t.Errorf("CompileError = {%q %q}, want {%q %q}", ce.EffectID, ce.Stage, tt.e.ID, tt.stage)
			}
		})
	}
}
