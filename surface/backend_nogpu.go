// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build nogpu

package surface

// DefaultBackend returns nil in nogpu builds; activation then fails with
// overlay.ErrDeviceUnavailable.
func DefaultBackend() Backend { return nil }
