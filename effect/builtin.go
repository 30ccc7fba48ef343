// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package effect

import (
	_ "embed"

	"github.com/gogpu/overlay"
)

//go:embed shaders/fullscreen.wgsl
var fullscreenVertexSource string

//go:embed shaders/flames.wgsl
var flamesSource string

//go:embed shaders/clouds.wgsl
var cloudsSource string

//go:embed shaders/aurora.wgsl
var auroraSource string

//go:embed shaders/plasma.wgsl
var plasmaSource string

//go:embed shaders/ripples.wgsl
var ripplesSource string

// FullscreenVertexSource returns the shared full-screen vertex stage used by
// every builtin effect.
func FullscreenVertexSource() string { return fullscreenVertexSource }

// Builtins returns the builtin effects in registration order.
func Builtins() []Effect {
	return []Effect{
		{ID: overlay.DefaultEffectID, Name: "Flames", Vertex: fullscreenVertexSource, Fragment: flamesSource},
		{ID: "clouds", Name: "Clouds", Vertex: fullscreenVertexSource, Fragment: cloudsSource},
		{ID: "aurora", Name: "Aurora", Vertex: fullscreenVertexSource, Fragment: auroraSource},
		{ID: "plasma", Name: "Plasma", Vertex: fullscreenVertexSource, Fragment: plasmaSource},
		{ID: "ripples", Name: "Ripples", Vertex: fullscreenVertexSource, Fragment: ripplesSource},
	}
}

func init() {
	for _, e := range Builtins() {
		Register(e)
	}
}
