package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/coordinator"
	"github.com/gogpu/overlay/effect"
	"github.com/gogpu/overlay/protocol"
	"github.com/gogpu/overlay/store"
)

// Server serves one Coordinator to any number of connections and is the
// coordinator's transport to remote pages.
type Server struct {
	coord   *coordinator.Coordinator
	effects *effect.Registry

	mu       sync.Mutex
	pages    map[string]*jsonrpc2.Conn
	watchers map[*jsonrpc2.Conn]struct{}
	conns    map[*jsonrpc2.Conn]struct{}
}

// NewServer creates a server and its coordinator persisting to st.
func NewServer(st store.Store, reg *effect.Registry) *Server {
	if reg == nil {
		reg = effect.Default()
	}
	s := &Server{
		effects:  reg,
		pages:    make(map[string]*jsonrpc2.Conn),
		watchers: make(map[*jsonrpc2.Conn]struct{}),
		conns:    make(map[*jsonrpc2.Conn]struct{}),
	}
	s.coord = coordinator.New(st, s, coordinator.WithRegistry(reg))
	s.coord.Subscribe(s.broadcastState)
	return s
}

// Coordinator returns the served coordinator.
func (s *Server) Coordinator() *coordinator.Coordinator { return s.coord }

// Serve accepts connections on l until ctx is done or l fails.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	for {
		c, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.ServeConn(ctx, c)
	}
}

// ServeConn serves a single connection and blocks until it closes. Pages
// registered on the connection are reported closed when it goes away.
func (s *Server) ServeConn(ctx context.Context, rwc io.ReadWriteCloser) {
	conn := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}),
		s.handler())

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	select {
	case <-conn.DisconnectNotify():
	case <-ctx.Done():
		conn.Close()
	}

	s.mu.Lock()
	delete(s.conns, conn)
	delete(s.watchers, conn)
	var gone []string
	for id, c := range s.pages {
		if c == conn {
			gone = append(gone, id)
			delete(s.pages, id)
		}
	}
	s.mu.Unlock()

	for _, id := range gone {
		s.coord.PageClosed(context.Background(), id)
	}
	overlay.Logger().Debug("rpc: connection closed", "pages", len(gone))
}

// Send implements coordinator.Transport for registered remote pages.
func (s *Server) Send(ctx context.Context, pageID string, n protocol.Notification) error {
	s.mu.Lock()
	conn, ok := s.pages[pageID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: page %q not registered", overlay.ErrDeliveryFailure, pageID)
	}
	if err := conn.Notify(ctx, NotifyPage, n); err != nil {
		return fmt.Errorf("%w: %s: %v", overlay.ErrDeliveryFailure, pageID, err)
	}
	return nil
}

func (s *Server) broadcastState(st overlay.State) {
	s.mu.Lock()
	conns := make([]*jsonrpc2.Conn, 0, len(s.watchers))
	for c := range s.watchers {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		if err := c.Notify(context.Background(), NotifyState, st); err != nil {
			overlay.Logger().Debug("rpc: watcher unreachable", "err", err)
		}
	}
}

type method func(ctx context.Context, conn *jsonrpc2.Conn, params json.RawMessage) (any, error)

func (s *Server) handler() jsonrpc2.Handler {
	methods := map[string]method{
		MethodGetState:     s.getState,
		MethodSetState:     s.setState,
		MethodToggleState:  s.toggleState,
		MethodChangeShader: s.changeShader,
		MethodEffects:      s.listEffects,
		MethodPageRegister: s.pageRegister,
		MethodPageVisible:  s.pageVisible,
		MethodPageClosed:   s.pageClosed,
		MethodWatch:        s.watch,
	}
	return jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		fn, ok := methods[req.Method]
		if !ok {
			return nil, errMethodNotFound
		}
		var params json.RawMessage
		if req.Params != nil {
			params = *req.Params
		}
		return fn(ctx, conn, params)
	})
}

func decode(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" || json.Unmarshal(params, v) != nil {
		return errInvalidParams
	}
	return nil
}

func (s *Server) getState(ctx context.Context, _ *jsonrpc2.Conn, _ json.RawMessage) (any, error) {
	return s.coord.Handle(ctx, protocol.Request{Type: protocol.GetState}), nil
}

func (s *Server) setState(ctx context.Context, _ *jsonrpc2.Conn, params json.RawMessage) (any, error) {
	var p SetStateParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.coord.Handle(ctx, protocol.NewSetState(p.Enabled)), nil
}

func (s *Server) toggleState(ctx context.Context, _ *jsonrpc2.Conn, _ json.RawMessage) (any, error) {
	return s.coord.Handle(ctx, protocol.Request{Type: protocol.ToggleState}), nil
}

func (s *Server) changeShader(ctx context.Context, _ *jsonrpc2.Conn, params json.RawMessage) (any, error) {
	var p ChangeShaderParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.coord.Handle(ctx, protocol.NewChangeShader(p.EffectID)), nil
}

func (s *Server) listEffects(_ context.Context, _ *jsonrpc2.Conn, _ json.RawMessage) (any, error) {
	ids := s.effects.IDs()
	infos := make([]EffectInfo, 0, len(ids))
	for _, id := range ids {
		e, _ := s.effects.Lookup(id)
		infos = append(infos, EffectInfo{ID: e.ID, Name: e.Name})
	}
	return infos, nil
}

func (s *Server) pageParams(params json.RawMessage) (PageParams, error) {
	var p PageParams
	if err := decode(params, &p); err != nil {
		return p, err
	}
	if p.PageID == "" {
		return p, errInvalidParams
	}
	return p, nil
}

func (s *Server) pageRegister(ctx context.Context, conn *jsonrpc2.Conn, params json.RawMessage) (any, error) {
	p, err := s.pageParams(params)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	_, taken := s.pages[p.PageID]
	if !taken {
		s.pages[p.PageID] = conn
	}
	s.mu.Unlock()
	if taken {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "page already registered: " + p.PageID}
	}
	overlay.Logger().Debug("rpc: page registered", "page", p.PageID)
	return protocol.OK(s.coord.GetState(ctx)), nil
}

func (s *Server) pageVisible(ctx context.Context, conn *jsonrpc2.Conn, params json.RawMessage) (any, error) {
	p, err := s.pageParams(params)
	if err != nil {
		return nil, err
	}
	if !s.owns(conn, p.PageID) {
		return nil, errNotRegistered(p.PageID)
	}
	s.coord.OnVisibilityChange(ctx, p.PageID)
	return nil, nil
}

func (s *Server) pageClosed(ctx context.Context, conn *jsonrpc2.Conn, params json.RawMessage) (any, error) {
	p, err := s.pageParams(params)
	if err != nil {
		return nil, err
	}
	if !s.owns(conn, p.PageID) {
		return nil, errNotRegistered(p.PageID)
	}
	s.mu.Lock()
	delete(s.pages, p.PageID)
	s.mu.Unlock()
	s.coord.PageClosed(ctx, p.PageID)
	return nil, nil
}

func (s *Server) watch(ctx context.Context, conn *jsonrpc2.Conn, _ json.RawMessage) (any, error) {
	s.mu.Lock()
	s.watchers[conn] = struct{}{}
	s.mu.Unlock()
	return protocol.OK(s.coord.GetState(ctx)), nil
}

func (s *Server) owns(conn *jsonrpc2.Conn, pageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[pageID] == conn
}

func errNotRegistered(pageID string) error {
	return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "page not registered: " + pageID}
}

var _ coordinator.Transport = (*Server)(nil)

// errResponse converts a failed protocol response into an error.
func errResponse(resp protocol.Response) error {
	if resp.Success {
		return nil
	}
	if resp.Error == "" {
		return errors.New("rpc: request failed")
	}
	return errors.New(resp.Error)
}
