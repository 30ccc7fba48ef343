// Package storetest keeps test suites against store.Store.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/store"
)

// Opener opens the store under test. For persistent stores, calling it again
// after Close must reopen the same data.
type Opener func(t *testing.T) store.Store

// TestStore runs the conformance suite against the stores returned by open.
func TestStore(t *testing.T, open Opener, persistent bool) {
	t.Run("Missing", func(t *testing.T) { testMissing(t, open) })
	t.Run("SetGet", func(t *testing.T) { testSetGet(t, open) })
	t.Run("State", func(t *testing.T) { testState(t, open) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, open) })
	if persistent {
		t.Run("Reload", func(t *testing.T) { testReload(t, open) })
	}
}

func testMissing(t *testing.T, open Opener) {
	s := open(t)
	defer s.Close()

	v, ok, err := s.Get(context.Background(), "absent")
	if err != nil || ok || v != nil {
		t.Errorf("Get(absent) = (%q, %v, %v), want (nil, false, nil)", v, ok, err)
	}
}

func testSetGet(t *testing.T, open Opener) {
	s := open(t)
	defer s.Close()
	ctx := context.Background()

	for _, v := range []string{`true`, `"clouds"`, `"plasma"`} {
		if err := s.Set(ctx, "k", []byte(v)); err != nil {
			t.Fatalf("Set(k, %s): %v", v, err)
		}
		got, ok, err := s.Get(ctx, "k")
		if err != nil || !ok {
			t.Fatalf("Get(k) = (%q, %v, %v)", got, ok, err)
		}
		if string(got) != v {
			t.Errorf("Get(k) = %s, want %s (last write wins)", got, v)
		}
	}
}

func testState(t *testing.T, open Opener) {
	s := open(t)
	defer s.Close()
	ctx := context.Background()

	st, err := store.LoadState(ctx, s, nil)
	if err != nil {
		t.Fatalf("LoadState on empty store: %v", err)
	}
	if diff := cmp.Diff(overlay.DefaultState(), st); diff != "" {
		t.Errorf("empty store state (-want +got):\n%s", diff)
	}

	want := overlay.State{Enabled: true, EffectID: "clouds"}
	if err := store.SaveState(ctx, s, want); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	st, err = store.LoadState(ctx, s, nil)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}

	known := func(id string) bool { return id == overlay.DefaultEffectID }
	st, err = store.LoadState(ctx, s, known)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if st.EffectID != overlay.DefaultEffectID {
		t.Errorf("unknown persisted effect read as %q, want %q", st.EffectID, overlay.DefaultEffectID)
	}
}

func testClosed(t *testing.T, open Opener) {
	s := open(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	ctx := context.Background()
	if _, _, err := s.Get(ctx, "k"); !errors.Is(err, overlay.ErrStorageUnavailable) {
		t.Errorf("Get after Close = %v, want ErrStorageUnavailable", err)
	}
	if err := s.Set(ctx, "k", []byte("1")); !errors.Is(err, overlay.ErrStorageUnavailable) {
		t.Errorf("Set after Close = %v, want ErrStorageUnavailable", err)
	}
	st, err := store.LoadState(ctx, s, nil)
	if err == nil {
		t.Error("LoadState after Close succeeded")
	}
	if diff := cmp.Diff(overlay.DefaultState(), st); diff != "" {
		t.Errorf("failed LoadState state (-want +got):\n%s", diff)
	}
}

func testReload(t *testing.T, open Opener) {
	ctx := context.Background()
	s := open(t)
	want := overlay.State{Enabled: true, EffectID: "ripples"}
	if err := store.SaveState(ctx, s, want); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s = open(t)
	defer s.Close()
	got, err := store.LoadState(ctx, s, nil)
	if err != nil {
		t.Fatalf("LoadState after reload: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("state after reload (-want +got):\n%s", diff)
	}
}
