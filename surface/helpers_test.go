package surface

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/effect"
	"github.com/gogpu/overlay/internal/clock"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// createNoopDevice opens a device on the noop backend.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// fakeValidate accepts any source with the expected entry point and rejects
// everything else, standing in for naga in tests.
func fakeValidate(e effect.Effect) error {
	if !strings.Contains(e.Vertex, "@vertex") {
		return &overlay.CompileError{EffectID: e.ID, Stage: effect.StageVertex, Err: errBadSource}
	}
	if !strings.Contains(e.Fragment, "@fragment") {
		return &overlay.CompileError{EffectID: e.ID, Stage: effect.StageFragment, Err: errBadSource}
	}
	return nil
}

var errBadSource = errors.New("expected entry point")

// testRegistry holds the builtins plus an effect with malformed source.
func testRegistry() *effect.Registry {
	r := effect.NewRegistry()
	for _, e := range effect.Builtins() {
		r.Register(e)
	}
	r.Register(effect.Effect{
		ID:       "bogus-id",
		Vertex:   effect.FullscreenVertexSource(),
		Fragment: "fn broken( {",
	})
	return r
}

type testRig struct {
	m     *Manager
	clock *clock.Fake
	sched *ManualScheduler
}

func newTestManager(t *testing.T, opts ...Option) *testRig {
	t.Helper()
	fake := clock.NewFake(testEpoch)
	sched := &ManualScheduler{}
	base := []Option{
		WithBackend(&noop.API{}),
		WithValidator(fakeValidate),
		WithRegistry(testRegistry()),
		WithClock(fake),
		WithScheduler(sched),
		WithSize(64, 32),
	}
	m := NewManager(append(base, opts...)...)
	t.Cleanup(m.Deactivate)
	return &testRig{m: m, clock: fake, sched: sched}
}

// mockDevice implements gpucontext.Device for testing.
type mockDevice struct{}

func (m *mockDevice) Poll(wait bool) {}
func (m *mockDevice) Destroy()       {}

// mockQueue implements gpucontext.Queue for testing.
type mockQueue struct{}

// mockAdapter implements gpucontext.Adapter for testing.
type mockAdapter struct{}

// mockProvider implements gpucontext.DeviceProvider and exposes HAL types.
type mockProvider struct {
	halDevice any
	halQueue  any
	format    gputypes.TextureFormat
}

func (m *mockProvider) Device() gpucontext.Device             { return &mockDevice{} }
func (m *mockProvider) Queue() gpucontext.Queue               { return &mockQueue{} }
func (m *mockProvider) Adapter() gpucontext.Adapter           { return &mockAdapter{} }
func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat { return m.format }
func (m *mockProvider) HalDevice() any                        { return m.halDevice }
func (m *mockProvider) HalQueue() any                         { return m.halQueue }
func (m *mockProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "mock"}
}

// plainProvider does not expose HAL types.
type plainProvider struct{}

func (plainProvider) Device() gpucontext.Device             { return &mockDevice{} }
func (plainProvider) Queue() gpucontext.Queue               { return &mockQueue{} }
func (plainProvider) Adapter() gpucontext.Adapter           { return &mockAdapter{} }
func (plainProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }
func (plainProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{} }
