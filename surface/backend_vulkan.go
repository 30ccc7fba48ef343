// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package surface

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// DefaultBackend returns the platform GPU backend, or nil when the host has
// no graphics capability.
func DefaultBackend() Backend {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil
	}
	return backend
}
