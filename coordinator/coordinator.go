// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package coordinator decides which page, if any, holds the live render
// surface, and pushes state transitions to pages.
//
// The Coordinator keeps one record: the current holder and the last page
// reported visible. It sends every notification to a single page; nothing is
// broadcast. When the visible page changes while the overlay is enabled, the
// new page is activated before the previous holder is told to clean up, so
// pages never observe a gap without a surface.
//
// Delivery to a page is unreliable by nature and failures are ignored. The
// holder record is updated regardless of whether messages arrive.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/effect"
	"github.com/gogpu/overlay/protocol"
	"github.com/gogpu/overlay/store"
)

// Transport delivers a notification to one page. Implementations return an
// error wrapping overlay.ErrDeliveryFailure when the page cannot be reached.
type Transport interface {
	Send(ctx context.Context, pageID string, n protocol.Notification) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, pageID string, n protocol.Notification) error

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, pageID string, n protocol.Notification) error {
	return f(ctx, pageID, n)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRegistry validates effect ids against r instead of the default
// registry.
func WithRegistry(r *effect.Registry) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.effects = r
		}
	}
}

// Coordinator is the single source of truth for the surface holder. Create
// one per process with New. All methods are safe for concurrent use and are
// serialized.
type Coordinator struct {
	mu        sync.Mutex
	store     store.Store
	transport Transport
	effects   *effect.Registry

	holder  string
	visible string
	seq     uint64

	subsMu  sync.Mutex
	subs    map[int]func(overlay.State)
	nextSub int
}

// New returns a Coordinator persisting to s and reaching pages through t.
func New(s store.Store, t Transport, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     s,
		transport: t,
		effects:   effect.Default(),
		subs:      make(map[int]func(overlay.State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Holder returns the page currently holding the surface, or "".
func (c *Coordinator) Holder() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holder
}

// Visible returns the last page reported visible, or "".
func (c *Coordinator) Visible() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// GetState returns the persisted state. If the store cannot be read it
// returns the default, disabled state.
func (c *Coordinator) GetState(ctx context.Context) overlay.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

func (c *Coordinator) loadLocked(ctx context.Context) overlay.State {
	st, err := store.LoadState(ctx, c.store, c.effects.Has)
	if err != nil {
		overlay.Logger().Warn("coordinator: state unreadable, using default", "err", err)
		return overlay.DefaultState()
	}
	return st
}

// SetEnabled persists enabled. Enabling makes the visible page the holder
// and activates it; disabling deactivates the holder and clears it. When the
// write fails nothing is pushed and the response reports failure.
func (c *Coordinator) SetEnabled(ctx context.Context, enabled bool) protocol.Response {
	c.mu.Lock()
	st, resp, ok := c.setEnabledLocked(ctx, enabled)
	c.mu.Unlock()
	if ok {
		c.publish(st)
	}
	return resp
}

func (c *Coordinator) setEnabledLocked(ctx context.Context, enabled bool) (overlay.State, protocol.Response, bool) {
	st := c.loadLocked(ctx)
	if err := store.SaveEnabled(ctx, c.store, enabled); err != nil {
		overlay.Logger().Warn("coordinator: persist enabled failed", "enabled", enabled, "err", err)
		return st, protocol.Fail(err), false
	}
	st.Enabled = enabled

	if enabled {
		if c.visible != "" {
			c.switchHolderLocked(ctx, c.visible, st.EffectID)
		}
	} else if c.holder != "" {
		c.sendLocked(ctx, c.holder, protocol.NewStateChanged(false, st.EffectID))
		overlay.Logger().Info("coordinator: holder released", "page", c.holder)
		c.holder = ""
	}
	return st, protocol.OK(st), true
}

// Toggle flips the enabled flag.
func (c *Coordinator) Toggle(ctx context.Context) protocol.Response {
	c.mu.Lock()
	cur := c.loadLocked(ctx)
	st, resp, ok := c.setEnabledLocked(ctx, !cur.Enabled)
	c.mu.Unlock()
	if ok {
		c.publish(st)
	}
	return resp
}

// SetEffect persists effectID and, if a page holds the surface, tells that
// page alone to switch.
func (c *Coordinator) SetEffect(ctx context.Context, effectID string) protocol.Response {
	if !c.effects.Has(effectID) {
		return protocol.Fail(fmt.Errorf("%w: %q", overlay.ErrUnknownEffect, effectID))
	}

	c.mu.Lock()
	st := c.loadLocked(ctx)
	if err := store.SaveEffect(ctx, c.store, effectID); err != nil {
		c.mu.Unlock()
		overlay.Logger().Warn("coordinator: persist effect failed", "effect", effectID, "err", err)
		return protocol.Fail(err)
	}
	st.EffectID = effectID
	if c.holder != "" {
		c.sendLocked(ctx, c.holder, protocol.NewShaderChanged(effectID))
	}
	c.mu.Unlock()

	c.publish(st)
	return protocol.OK(st)
}

// OnVisibilityChange records pageID as the visible page. While enabled it
// also moves the surface there: pageID is activated first, then the previous
// holder is cleaned up.
func (c *Coordinator) OnVisibilityChange(ctx context.Context, pageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.visible = pageID
	st := c.loadLocked(ctx)
	if !st.Enabled || pageID == c.holder {
		return
	}
	c.switchHolderLocked(ctx, pageID, st.EffectID)
}

// switchHolderLocked activates next, then cleans up the previous holder.
func (c *Coordinator) switchHolderLocked(ctx context.Context, next, effectID string) {
	prev := c.holder
	c.sendLocked(ctx, next, protocol.NewStateChanged(true, effectID))
	if prev != "" && prev != next {
		c.sendLocked(ctx, prev, protocol.NewCleanup())
	}
	c.holder = next
	if prev != next {
		overlay.Logger().Info("coordinator: holder changed", "from", prev, "to", next)
	}
}

// PageClosed forgets pageID. A closed holder leaves no page holding the
// surface until the next visibility change.
func (c *Coordinator) PageClosed(ctx context.Context, pageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holder == pageID {
		c.holder = ""
		overlay.Logger().Info("coordinator: holder closed", "page", pageID)
	}
	if c.visible == pageID {
		c.visible = ""
	}
}

func (c *Coordinator) sendLocked(ctx context.Context, pageID string, n protocol.Notification) {
	c.seq++
	n.Seq = c.seq
	if err := c.transport.Send(ctx, pageID, n); err != nil {
		overlay.Logger().Debug("coordinator: delivery failed", "page", pageID, "msg", n.Type, "err", err)
	}
}

// Subscribe registers fn to receive the state after every successful change.
// fn runs outside the Coordinator's lock. The returned function removes it.
func (c *Coordinator) Subscribe(fn func(overlay.State)) (cancel func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Coordinator) publish(st overlay.State) {
	c.subsMu.Lock()
	fns := make([]func(overlay.State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// Handle dispatches a control request.
func (c *Coordinator) Handle(ctx context.Context, req protocol.Request) protocol.Response {
	if err := req.Validate(); err != nil {
		return protocol.Fail(err)
	}
	switch req.Type {
	case protocol.GetState:
		return protocol.OK(c.GetState(ctx))
	case protocol.SetState:
		return c.SetEnabled(ctx, *req.Enabled)
	case protocol.ToggleState:
		return c.Toggle(ctx)
	default: // protocol.ChangeShader
		return c.SetEffect(ctx, req.EffectID)
	}
}
