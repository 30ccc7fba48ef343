// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package page runs the per-page side of the overlay: a surface.Manager
// driven by notifications from the coordinator.
//
// Each Page handles its notifications on one goroutine, in arrival order,
// so activate, effect switches and deactivate never interleave.
package page

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/protocol"
	"github.com/gogpu/overlay/surface"
)

// inboxSize bounds the notifications queued for a page.
const inboxSize = 32

// ErrClosed is returned when delivering to a closed page. It wraps
// overlay.ErrDeliveryFailure.
var ErrClosed = fmt.Errorf("%w: page closed", overlay.ErrDeliveryFailure)

type message struct {
	n   protocol.Notification
	ack chan struct{}
}

// Page is one viewing surface.
type Page struct {
	id      string
	surface *surface.Manager

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan message
	done   chan struct{}

	closeOnce sync.Once

	mu      sync.Mutex
	handled []protocol.Notification
}

// New starts a page with the given id rendering through m.
func New(id string, m *surface.Manager) *Page {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Page{
		id:      id,
		surface: m,
		ctx:     ctx,
		cancel:  cancel,
		inbox:   make(chan message, inboxSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// ID returns the page identifier.
func (p *Page) ID() string { return p.id }

// Surface returns the page's render surface manager.
func (p *Page) Surface() *surface.Manager { return p.surface }

// Deliver queues n for the page. It fails with ErrClosed once the page is
// closed and with ctx's error if the inbox stays full.
func (p *Page) Deliver(ctx context.Context, n protocol.Notification) error {
	return p.enqueue(ctx, message{n: n})
}

// Flush waits until every notification queued before the call is handled.
func (p *Page) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	if err := p.enqueue(ctx, message{ack: ack}); err != nil {
		return err
	}
	select {
	case <-ack:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Page) enqueue(ctx context.Context, msg message) error {
	select {
	case <-p.ctx.Done():
		return ErrClosed
	default:
	}
	select {
	case p.inbox <- msg:
		return nil
	case <-p.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %s inbox full: %v", overlay.ErrDeliveryFailure, p.id, ctx.Err())
	}
}

// Handled returns the notifications handled so far, in order.
func (p *Page) Handled() []protocol.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]protocol.Notification(nil), p.handled...)
}

// Close tears down the surface and stops the page. Queued notifications are
// dropped. Close is idempotent.
func (p *Page) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		<-p.done
		p.surface.Deactivate()
	})
}

func (p *Page) run() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			return
		case msg := <-p.inbox:
			if msg.ack != nil {
				close(msg.ack)
				continue
			}
			p.handle(msg.n)
		}
	}
}

func (p *Page) handle(n protocol.Notification) {
	log := overlay.Logger().With("page", p.id, "msg", n.Type, "seq", n.Seq)
	switch {
	case n.Activates():
		if err := p.surface.Activate(p.ctx, n.EffectID); err != nil {
			// The overlay stays absent; the error is diagnostic only.
			log.Warn("page: activate failed", "err", err)
			break
		}
		if err := p.surface.SetEffect(n.EffectID); err != nil {
			log.Warn("page: effect switch failed", "effect", n.EffectID, "err", err)
		}
	case n.Deactivates():
		// Already torn down is fine.
		p.surface.Deactivate()
	case n.Type == protocol.ShaderChanged:
		err := p.surface.SetEffect(n.EffectID)
		switch {
		case errors.Is(err, surface.ErrNotActive):
			log.Debug("page: effect change ignored while inactive", "effect", n.EffectID)
		case err != nil:
			log.Warn("page: effect switch failed", "effect", n.EffectID, "err", err)
		}
	default:
		log.Debug("page: ignoring notification")
	}

	p.mu.Lock()
	p.handled = append(p.handled, n)
	p.mu.Unlock()
}
