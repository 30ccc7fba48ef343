package rpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/wgpu/hal/noop"
	"github.com/google/go-cmp/cmp"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/effect"
	"github.com/gogpu/overlay/page"
	"github.com/gogpu/overlay/store"
	"github.com/gogpu/overlay/surface"
)

func fakeValidate(e effect.Effect) error {
	if !strings.Contains(e.Fragment, "@fragment") {
		return &overlay.CompileError{EffectID: e.ID, Stage: effect.StageFragment, Err: errors.New("no entry point")}
	}
	return nil
}

type testRig struct {
	srv *Server
	ctx context.Context
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &testRig{srv: NewServer(store.NewMemory(), effect.Default()), ctx: ctx}
}

// dial connects a fresh client to the rig's server over an in-memory pipe.
func (r *testRig) dial(t *testing.T) *Client {
	t.Helper()
	a, b := net.Pipe()
	go r.srv.ServeConn(r.ctx, a)
	c := NewClient(r.ctx, b)
	t.Cleanup(func() { c.Close() })
	return c
}

func newTestPage(t *testing.T, id string) *page.Page {
	t.Helper()
	m := surface.NewManager(
		surface.WithBackend(&noop.API{}),
		surface.WithValidator(fakeValidate),
		surface.WithScheduler(&surface.ManualScheduler{}),
		surface.WithSize(32, 32),
	)
	p := page.New(id, m)
	t.Cleanup(p.Close)
	return p
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestControlRequests(t *testing.T) {
	r := newRig(t)
	c := r.dial(t)
	ctx := r.ctx

	st, err := c.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if diff := cmp.Diff(overlay.DefaultState(), st); diff != "" {
		t.Errorf("initial state (-want +got):\n%s", diff)
	}

	st, err = c.SetState(ctx, true)
	if err != nil || !st.Enabled {
		t.Fatalf("SetState(true) = %+v, %v", st, err)
	}
	st, err = c.Toggle(ctx)
	if err != nil || st.Enabled {
		t.Fatalf("Toggle = %+v, %v", st, err)
	}
	st, err = c.ChangeShader(ctx, "clouds")
	if err != nil || st.EffectID != "clouds" {
		t.Fatalf("ChangeShader = %+v, %v", st, err)
	}

	st, err = c.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	want := overlay.State{Enabled: false, EffectID: "clouds"}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("final state (-want +got):\n%s", diff)
	}
}

func TestChangeShaderUnknown(t *testing.T) {
	r := newRig(t)
	c := r.dial(t)

	if _, err := c.ChangeShader(r.ctx, "no-such-effect"); err == nil {
		t.Fatal("ChangeShader succeeded for an unknown effect")
	}
	st, err := c.GetState(r.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.EffectID != overlay.DefaultEffectID {
		t.Errorf("effect = %q, want %q", st.EffectID, overlay.DefaultEffectID)
	}
}

func TestEffects(t *testing.T) {
	r := newRig(t)
	c := r.dial(t)

	infos, err := c.Effects(r.ctx)
	if err != nil {
		t.Fatalf("Effects: %v", err)
	}
	var ids []string
	for _, info := range infos {
		ids = append(ids, info.ID)
		if info.Name == "" {
			t.Errorf("effect %q has no name", info.ID)
		}
	}
	if diff := cmp.Diff(effect.Default().IDs(), ids); diff != "" {
		t.Errorf("effect ids (-want +got):\n%s", diff)
	}
}

func TestProtocolErrors(t *testing.T) {
	r := newRig(t)
	c := r.dial(t)

	tests := []struct {
		name   string
		method string
		params any
		code   int64
	}{
		{"unknown method", "overlay/explode", nil, jsonrpc2.CodeMethodNotFound},
		{"missing params", MethodSetState, nil, jsonrpc2.CodeInvalidParams},
		{"wrong params", MethodChangeShader, []int{1, 2}, jsonrpc2.CodeInvalidParams},
		{"empty page id", MethodPageRegister, PageParams{}, jsonrpc2.CodeInvalidParams},
		{"unregistered page", MethodPageVisible, PageParams{PageID: "ghost"}, jsonrpc2.CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.conn.Call(r.ctx, tt.method, tt.params, nil)
			var rpcErr *jsonrpc2.Error
			if !errors.As(err, &rpcErr) {
				t.Fatalf("err = %v, want *jsonrpc2.Error", err)
			}
			if rpcErr.Code != tt.code {
				t.Errorf("code = %d, want %d", rpcErr.Code, tt.code)
			}
		})
	}
}

func TestWatchReceivesChanges(t *testing.T) {
	r := newRig(t)
	watcher := r.dial(t)
	control := r.dial(t)

	ch, err := watcher.Watch(r.ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	recv := func() overlay.State {
		t.Helper()
		select {
		case st := <-ch:
			return st
		case <-time.After(2 * time.Second):
			t.Fatal("no state received")
			return overlay.State{}
		}
	}

	if got := recv(); got != overlay.DefaultState() {
		t.Errorf("initial = %+v", got)
	}
	if _, err := control.SetState(r.ctx, true); err != nil {
		t.Fatal(err)
	}
	if got := recv(); !got.Enabled {
		t.Errorf("after enable = %+v", got)
	}
	if _, err := control.ChangeShader(r.ctx, "clouds"); err != nil {
		t.Fatal(err)
	}
	if got := recv(); got.EffectID != "clouds" {
		t.Errorf("after change = %+v", got)
	}

	watcher.Close()
	waitFor(t, "watch channel close", func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	})
}

func TestRemotePageLifecycle(t *testing.T) {
	r := newRig(t)
	control := r.dial(t)
	ca := r.dial(t)
	cb := r.dial(t)
	pa := newTestPage(t, "page-a")
	pb := newTestPage(t, "page-b")

	if _, err := ca.Register(r.ctx, pa); err != nil {
		t.Fatalf("Register a: %v", err)
	}
	if _, err := cb.Register(r.ctx, pb); err != nil {
		t.Fatalf("Register b: %v", err)
	}
	if err := ca.Visible(r.ctx); err != nil {
		t.Fatal(err)
	}
	if pa.Surface().State() != surface.Inactive {
		t.Fatal("visible page activated while disabled")
	}

	if _, err := control.SetState(r.ctx, true); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "page a active", func() bool { return pa.Surface().State() == surface.Active })

	if err := cb.Visible(r.ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "page b active", func() bool { return pb.Surface().State() == surface.Active })
	waitFor(t, "page a cleaned up", func() bool { return pa.Surface().State() == surface.Inactive })
	if got := r.srv.Coordinator().Holder(); got != "page-b" {
		t.Errorf("holder = %q, want page-b", got)
	}

	if _, err := control.ChangeShader(r.ctx, "clouds"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "effect switch", func() bool { return pb.Surface().Stats().Effect == "clouds" })

	cb.Close()
	waitFor(t, "holder released", func() bool { return r.srv.Coordinator().Holder() == "" })
}

func TestRegisterDuplicate(t *testing.T) {
	r := newRig(t)
	c1 := r.dial(t)
	c2 := r.dial(t)

	if _, err := c1.Register(r.ctx, newTestPage(t, "dup")); err != nil {
		t.Fatal(err)
	}
	_, err := c2.Register(r.ctx, newTestPage(t, "dup"))
	var rpcErr *jsonrpc2.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != jsonrpc2.CodeInvalidRequest {
		t.Fatalf("duplicate Register err = %v", err)
	}
}

func TestPageClosedReleasesHolder(t *testing.T) {
	r := newRig(t)
	c := r.dial(t)
	p := newTestPage(t, "solo")

	if _, err := c.Register(r.ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SetState(r.ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := c.Visible(r.ctx); err != nil {
		t.Fatal(err)
	}
	if got := r.srv.Coordinator().Holder(); got != "solo" {
		t.Fatalf("holder = %q, want solo", got)
	}
	if err := c.Closed(r.ctx); err != nil {
		t.Fatal(err)
	}
	if got := r.srv.Coordinator().Holder(); got != "" {
		t.Errorf("holder after close = %q", got)
	}
	if err := c.Visible(r.ctx); err == nil {
		t.Error("Visible succeeded after Closed")
	}
}

func TestServeListener(t *testing.T) {
	r := newRig(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(r.ctx)
	done := make(chan error, 1)
	go func() { done <- r.srv.Serve(ctx, l) }()

	c, err := Dial(ctx, "tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	if _, err := c.GetState(ctx); err != nil {
		t.Fatalf("GetState: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}
