package page

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/protocol"
)

// Recorder observes every Send made through a Hub, including failed ones.
type Recorder func(pageID string, n protocol.Notification, err error)

// Hub is an in-process coordinator.Transport delivering to registered pages.
type Hub struct {
	mu       sync.RWMutex
	pages    map[string]*Page
	recorder Recorder
}

// NewHub returns an empty hub. rec may be nil.
func NewHub(rec Recorder) *Hub {
	return &Hub{pages: make(map[string]*Page), recorder: rec}
}

// Add registers p, replacing any page with the same id.
func (h *Hub) Add(p *Page) {
	h.mu.Lock()
	h.pages[p.ID()] = p
	h.mu.Unlock()
}

// Remove unregisters the page with the given id.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	delete(h.pages, id)
	h.mu.Unlock()
}

// Page returns the registered page with the given id.
func (h *Hub) Page(id string) (*Page, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.pages[id]
	return p, ok
}

// Send delivers n to the page. Unknown and closed pages fail with an error
// wrapping overlay.ErrDeliveryFailure.
func (h *Hub) Send(ctx context.Context, pageID string, n protocol.Notification) error {
	p, ok := h.Page(pageID)
	var err error
	if !ok {
		err = fmt.Errorf("%w: no page %q", overlay.ErrDeliveryFailure, pageID)
	} else {
		err = p.Deliver(ctx, n)
	}
	if h.recorder != nil {
		h.recorder(pageID, n, err)
	}
	return err
}

// Flush waits for every registered page to drain its inbox.
func (h *Hub) Flush(ctx context.Context) error {
	h.mu.RLock()
	pages := make([]*Page, 0, len(h.pages))
	for _, p := range h.pages {
		pages = append(pages, p)
	}
	h.mu.RUnlock()
	for _, p := range pages {
		if err := p.Flush(ctx); err != nil && err != ErrClosed {
			return err
		}
	}
	return nil
}
