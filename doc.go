// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package overlay renders a full-viewport, time-animated WGSL effect as a
// transparent overlay and keeps a single on/off toggle and effect selection
// consistent across many independent viewing surfaces ("pages").
//
// # Architecture
//
// The module is organized leaves first:
//   - effect: static registry of named WGSL effects (vertex + fragment stage)
//   - store: persisted key-value state (memory, bbolt, SQLite)
//   - surface: per-page render surface manager (device, frame loop, pipeline cache)
//   - page: per-page runtime that applies pushed notifications to a surface
//   - coordinator: the single authority on which page holds the live surface
//   - protocol: request, response and push notification types
//   - rpc: JSON-RPC transport between the daemon, control surfaces and pages
//
// # Surface holder
//
// At most one page holds a live render surface at any time. When the visible
// page changes, the coordinator activates the new page before deactivating
// the old one: a brief double render is invisible, a gap is a flicker.
//
// # Logging
//
// overlay is silent by default. Call SetLogger to enable log/slog output for
// the root package and every sub-package.
package overlay

// Version is the current version of the module.
const Version = "0.1.0"
