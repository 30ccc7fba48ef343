package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/page"
	"github.com/gogpu/overlay/protocol"
)

// deliverTimeout bounds how long a client waits for a full page inbox.
const deliverTimeout = time.Second

// Client is a control connection to a Server.
type Client struct {
	conn *jsonrpc2.Conn

	mu       sync.Mutex
	watchers []chan overlay.State
	page     *page.Page
}

// Dial connects to a server listening on network and addr.
func Dial(ctx context.Context, network, addr string) (*Client, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, c), nil
}

// NewClient speaks the protocol over rwc.
func NewClient(ctx context.Context, rwc io.ReadWriteCloser) *Client {
	cl := &Client{}
	cl.conn = jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(cl.handle))
	return cl
}

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

// Done is closed when the connection goes away.
func (c *Client) Done() <-chan struct{} { return c.conn.DisconnectNotify() }

func (c *Client) call(ctx context.Context, method string, params any) (overlay.State, error) {
	var resp protocol.Response
	if err := c.conn.Call(ctx, method, params, &resp); err != nil {
		return overlay.State{}, err
	}
	if err := errResponse(resp); err != nil {
		return overlay.State{}, err
	}
	if resp.Data == nil {
		return overlay.DefaultState(), nil
	}
	return *resp.Data, nil
}

// GetState returns the current state.
func (c *Client) GetState(ctx context.Context) (overlay.State, error) {
	return c.call(ctx, MethodGetState, nil)
}

// SetState enables or disables the overlay.
func (c *Client) SetState(ctx context.Context, enabled bool) (overlay.State, error) {
	return c.call(ctx, MethodSetState, SetStateParams{Enabled: enabled})
}

// Toggle flips the enabled flag.
func (c *Client) Toggle(ctx context.Context) (overlay.State, error) {
	return c.call(ctx, MethodToggleState, nil)
}

// ChangeShader selects an effect.
func (c *Client) ChangeShader(ctx context.Context, effectID string) (overlay.State, error) {
	return c.call(ctx, MethodChangeShader, ChangeShaderParams{EffectID: effectID})
}

// Effects lists the effects known to the server, sorted by id.
func (c *Client) Effects(ctx context.Context) ([]EffectInfo, error) {
	var infos []EffectInfo
	if err := c.conn.Call(ctx, MethodEffects, nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// Watch subscribes to state changes. The channel receives the current state
// first and is closed when the connection goes away. Slow readers miss
// intermediate states.
func (c *Client) Watch(ctx context.Context) (<-chan overlay.State, error) {
	ch := make(chan overlay.State, 8)
	c.mu.Lock()
	c.watchers = append(c.watchers, ch)
	c.mu.Unlock()

	st, err := c.call(ctx, MethodWatch, nil)
	if err != nil {
		c.removeWatcher(ch)
		return nil, err
	}
	select {
	case ch <- st:
	default:
	}
	go func() {
		<-c.conn.DisconnectNotify()
		c.removeWatcher(ch)
		close(ch)
	}()
	return ch, nil
}

func (c *Client) removeWatcher(ch chan overlay.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.watchers {
		if w == ch {
			c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
			return
		}
	}
}

// Register attaches p to this connection. Notifications for p's id are
// delivered to it until the connection closes.
func (c *Client) Register(ctx context.Context, p *page.Page) (overlay.State, error) {
	c.mu.Lock()
	c.page = p
	c.mu.Unlock()
	return c.call(ctx, MethodPageRegister, PageParams{PageID: p.ID()})
}

// Visible reports the registered page as the visible one.
func (c *Client) Visible(ctx context.Context) error {
	return c.conn.Call(ctx, MethodPageVisible, PageParams{PageID: c.pageID()}, nil)
}

// Closed reports the registered page as gone and detaches it.
func (c *Client) Closed(ctx context.Context) error {
	id := c.pageID()
	c.mu.Lock()
	c.page = nil
	c.mu.Unlock()
	return c.conn.Call(ctx, MethodPageClosed, PageParams{PageID: id}, nil)
}

func (c *Client) pageID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page == nil {
		return ""
	}
	return c.page.ID()
}

func (c *Client) handle(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	if req.Params == nil {
		return nil, errInvalidParams
	}
	switch req.Method {
	case NotifyPage:
		var n protocol.Notification
		if err := json.Unmarshal(*req.Params, &n); err != nil {
			return nil, errInvalidParams
		}
		c.mu.Lock()
		p := c.page
		c.mu.Unlock()
		if p == nil {
			return nil, nil
		}
		ctx, cancel := context.WithTimeout(ctx, deliverTimeout)
		defer cancel()
		if err := p.Deliver(ctx, n); err != nil {
			overlay.Logger().Debug("rpc: page dropped notification", "page", p.ID(), "err", err)
		}
		return nil, nil
	case NotifyState:
		var st overlay.State
		if err := json.Unmarshal(*req.Params, &st); err != nil {
			return nil, errInvalidParams
		}
		c.mu.Lock()
		for _, w := range c.watchers {
			select {
			case w <- st:
			default:
			}
		}
		c.mu.Unlock()
		return nil, nil
	default:
		return nil, errMethodNotFound
	}
}
