// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package overlay

// Persisted state keys.
const (
	KeyEnabled  = "shader_enabled"
	KeyEffectID = "shader_type"
)

// DefaultEffectID is the effect selected when nothing has been persisted yet.
const DefaultEffectID = "flames"

// State is the single, globally shared overlay state.
type State struct {
	Enabled  bool   `json:"enabled"`
	EffectID string `json:"effectId"`
}

// DefaultState returns the state used on first install and whenever the
// store cannot be read: disabled, with the default effect selected.
func DefaultState() State {
	return State{Enabled: false, EffectID: DefaultEffectID}
}
