// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package effect

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/overlay"
)

func TestRegistryRegisterLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(Effect{ID: "b", Vertex: "v", Fragment: "f"})
	r.Register(Effect{ID: "a", Name: "Alpha", Vertex: "v", Fragment: "f"})

	e, ok := r.Lookup("b")
	if !ok {
		t.Fatal("Lookup(b) not found")
	}
	if e.Name != "b" {
		t.Errorf("empty Name should default to id, got %q", e.Name)
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("Lookup(missing) should fail")
	}
	if !r.Has("a") || r.Has("c") {
		t.Error("Has reported wrong membership")
	}
	if diff := cmp.Diff([]string{"a", "b"}, r.IDs()); diff != "" {
		t.Errorf("IDs() mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func(r *Registry)
	}{
		{"empty id", func(r *Registry) { r.Register(Effect{}) }},
		{"duplicate", func(r *Registry) {
			r.Register(Effect{ID: "x"})
			r.Register(Effect{ID: "x"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn(NewRegistry())
		})
	}
}

func TestDefaultRegistryHasBuiltins(t *testing.T) {
	if !Has(overlay.DefaultEffectID) {
		t.Fatalf("default effect %q not registered", overlay.DefaultEffectID)
	}
	for _, e := range Builtins() {
		got, ok := Lookup(e.ID)
		if !ok {
			t.Errorf("builtin %q not registered", e.ID)
			continue
		}
		if got.Fragment != e.Fragment {
			t.Errorf("builtin %q fragment source mismatch", e.ID)
		}
	}
	if len(IDs()) < len(Builtins()) {
		t.Errorf("IDs() = %v, want at least %d entries", IDs(), len(Builtins()))
	}
}
