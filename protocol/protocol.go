// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package protocol defines the messages exchanged between control surfaces,
// the coordinator and pages. The JSON field names are part of the wire
// format.
package protocol

import (
	"errors"
	"fmt"

	"github.com/gogpu/overlay"
)

// RequestType identifies a control command.
type RequestType string

// Control commands.
const (
	GetState     RequestType = "GET_STATE"
	SetState     RequestType = "SET_STATE"
	ToggleState  RequestType = "TOGGLE_STATE"
	ChangeShader RequestType = "CHANGE_SHADER"
)

// ErrBadRequest is returned by Request.Validate.
var ErrBadRequest = errors.New("protocol: bad request")

// Request is a command sent by a control surface.
type Request struct {
	Type RequestType `json:"type"`

	// Enabled is required for SET_STATE.
	Enabled *bool `json:"enabled,omitempty"`

	// EffectID is required for CHANGE_SHADER.
	EffectID string `json:"effectId,omitempty"`
}

// NewSetState returns a SET_STATE request.
func NewSetState(enabled bool) Request {
	return Request{Type: SetState, Enabled: &enabled}
}

// NewChangeShader returns a CHANGE_SHADER request.
func NewChangeShader(effectID string) Request {
	return Request{Type: ChangeShader, EffectID: effectID}
}

// Validate checks that r carries the arguments its type needs.
func (r Request) Validate() error {
	switch r.Type {
	case GetState, ToggleState:
		return nil
	case SetState:
		if r.Enabled == nil {
			return fmt.Errorf("%w: %s without enabled", ErrBadRequest, r.Type)
		}
		return nil
	case ChangeShader:
		if r.EffectID == "" {
			return fmt.Errorf("%w: %s without effectId", ErrBadRequest, r.Type)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrBadRequest, r.Type)
	}
}

// Response is the reply to every Request.
type Response struct {
	Success bool           `json:"success"`
	Data    *overlay.State `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// OK returns a successful response carrying st.
func OK(st overlay.State) Response {
	return Response{Success: true, Data: &st}
}

// Fail returns a failed response describing err.
func Fail(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

// NotificationType identifies a push message to a page.
type NotificationType string

// Push messages.
const (
	StateChanged  NotificationType = "SHADER_STATE_CHANGED"
	ShaderChanged NotificationType = "CHANGE_SHADER"
	Cleanup       NotificationType = "CLEANUP_SHADER"
)

// Notification is pushed by the coordinator to a single page.
type Notification struct {
	Type NotificationType `json:"type"`

	// Seq increases with every notification the coordinator sends, across
	// all pages, so observers can reconstruct the global send order.
	Seq uint64 `json:"seq"`

	Enabled  bool   `json:"enabled"`
	EffectID string `json:"effectId,omitempty"`
}

// NewStateChanged returns a SHADER_STATE_CHANGED notification.
func NewStateChanged(enabled bool, effectID string) Notification {
	return Notification{Type: StateChanged, Enabled: enabled, EffectID: effectID}
}

// NewShaderChanged returns a CHANGE_SHADER notification.
func NewShaderChanged(effectID string) Notification {
	return Notification{Type: ShaderChanged, Enabled: true, EffectID: effectID}
}

// NewCleanup returns a CLEANUP_SHADER notification.
func NewCleanup() Notification {
	return Notification{Type: Cleanup}
}

// Activates reports whether n asks the receiving page to bring up its surface.
func (n Notification) Activates() bool {
	return n.Type == StateChanged && n.Enabled
}

// Deactivates reports whether n asks the receiving page to tear down its
// surface.
func (n Notification) Deactivates() bool {
	return n.Type == Cleanup || (n.Type == StateChanged && !n.Enabled)
}

func (n Notification) String() string {
	switch n.Type {
	case StateChanged:
		return fmt.Sprintf("#%d %s{enabled:%v effectId:%s}", n.Seq, n.Type, n.Enabled, n.EffectID)
	case ShaderChanged:
		return fmt.Sprintf("#%d %s{effectId:%s}", n.Seq, n.Type, n.EffectID)
	default:
		return fmt.Sprintf("#%d %s{}", n.Seq, n.Type)
	}
}
