// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package surface manages the render surface of a single page: its graphics
// device, canvas, frame loop and compiled effect pipelines.
//
// A Manager moves through three states:
//
//	Inactive → Activating → Active → Inactive
//
// Deactivate returns to Inactive from any state. There is no error state: a
// failure while activating releases whatever was created and reports the
// error. A missing graphics device is terminal for the Manager; later calls
// to Activate return the same error without retrying.
//
// # Pipelines
//
// Each effect compiles into a Pipeline bound to the Manager's device. Compiled
// pipelines are cached by effect id until the surface is deactivated, so
// switching back to an earlier effect does not recompile it. The active
// pipeline is held in an atomic pointer that Tick reads on every frame; an
// effect switch takes effect on the next frame without restarting the frame
// clock.
//
// # Frames
//
// A Scheduler calls Tick once per display refresh with the time elapsed since
// activation. Tick drops frames that arrive faster than the configured
// maximum rate, writes the elapsed seconds into the shared time uniform and
// records a single draw of the full-screen quad.
//
// # Devices
//
// By default the Manager opens its own device on the Vulkan backend. Tests
// pass hal/noop through WithBackend; hosts that already own a device share
// it through WithDeviceProvider, in which case Deactivate leaves the device
// alive.
package surface
