// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package rpc exposes the coordinator over JSON-RPC 2.0 stream connections,
// framed with Content-Length headers.
//
// Control surfaces call the overlay/* methods. Page hosts register with
// page/register and then receive page/notify notifications for their page.
// Watchers subscribed with control/watch receive control/state after every
// state change.
package rpc

import (
	"github.com/gogpu/overlay"
	"github.com/sourcegraph/jsonrpc2"
)

// Request methods.
const (
	MethodGetState     = "overlay/getState"
	MethodSetState     = "overlay/setState"
	MethodToggleState  = "overlay/toggleState"
	MethodChangeShader = "overlay/changeShader"
	MethodEffects      = "overlay/effects"
	MethodPageRegister = "page/register"
	MethodPageVisible  = "page/visible"
	MethodPageClosed   = "page/closed"
	MethodWatch        = "control/watch"
)

// Notification methods sent by the server.
const (
	NotifyPage  = "page/notify"
	NotifyState = "control/state"
)

// SetStateParams are the params of overlay/setState.
type SetStateParams struct {
	Enabled bool `json:"enabled"`
}

// ChangeShaderParams are the params of overlay/changeShader.
type ChangeShaderParams struct {
	EffectID string `json:"effectId"`
}

// PageParams identify a page.
type PageParams struct {
	PageID string `json:"pageId"`
}

// EffectInfo describes a registered effect.
type EffectInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StateParams are the params of control/state.
type StateParams = overlay.State

var (
	errMethodNotFound = &jsonrpc2.Error{
		Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}
	errInvalidParams = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidParams, Message: "invalid params"}
)
