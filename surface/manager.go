// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/overlay"
)

// State is the lifecycle state of a Manager.
type State int32

const (
	Inactive State = iota
	Activating
	Active
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Activating:
		return "activating"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Stats is a snapshot of a Manager's frame counters.
type Stats struct {
	// Frames is the number of frames drawn since activation.
	Frames uint64

	// Dropped is the number of ticks discarded by the frame rate cap.
	Dropped uint64

	// LastTime is the time uniform, in seconds, of the last drawn frame.
	LastTime float32

	// Effect is the id of the active pipeline, empty when inactive.
	Effect string

	Width, Height uint32

	// Reconfigurations counts canvas resizes applied after activation.
	Reconfigurations int
}

// Manager owns the render surface of one page.
//
// All methods are safe for concurrent use. Frames from the scheduler
// serialize with lifecycle calls on an internal lock.
type Manager struct {
	opts managerOptions

	mu    sync.Mutex
	state atomic.Int32

	// deviceErr is set once opening a device fails and is returned by every
	// later Activate.
	deviceErr error

	dev       *device
	canvas    Canvas
	vertices  hal.Buffer
	uniforms  hal.Buffer
	scratch   [uniformSize]byte
	cache     map[string]*Pipeline
	active    atomic.Pointer[Pipeline]
	scheduler Scheduler
	resize    debouncer

	// generation increments on every activation so that frames and resize
	// callbacks scheduled for an earlier activation are ignored.
	generation uint64
	origin     time.Time

	width, height uint32
	pendingW      uint32
	pendingH      uint32

	frames           uint64
	dropped          uint64
	lastElapsed      time.Duration
	lastTime         float32
	reconfigurations int
}

// NewManager creates an inactive Manager.
func NewManager(opts ...Option) *Manager {
	o := defaultManagerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	m := &Manager{
		opts:   o,
		width:  o.width,
		height: o.height,
	}
	m.resize = debouncer{clock: o.clock, delay: o.debounce}
	m.scheduler = o.scheduler
	if m.scheduler == nil {
		m.scheduler = NewTickerScheduler(DefaultRefreshInterval)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State { return State(m.state.Load()) }

// Activate brings up the surface and starts rendering effectID. It is a
// no-op when the surface is already active; use SetEffect to switch effects.
//
// A missing graphics device is reported as overlay.ErrDeviceUnavailable and
// is terminal. Any other failure releases what was created and leaves the
// Manager inactive.
func (m *Manager) Activate(ctx context.Context, effectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deviceErr != nil {
		return m.deviceErr
	}
	if m.State() == Active {
		return nil
	}
	m.state.Store(int32(Activating))

	if err := m.activateLocked(effectID); err != nil {
		m.teardownLocked()
		if errors.Is(err, overlay.ErrDeviceUnavailable) {
			m.deviceErr = err
			overlay.Logger().Warn("surface: graphics device unavailable", "err", err)
		}
		return err
	}

	m.generation++
	gen := m.generation
	m.origin = m.opts.clock.Now()
	m.state.Store(int32(Active))
	m.scheduler.Start(func() { m.frame(gen) })

	overlay.Logger().Info("surface: activated",
		"effect", effectID, "device", m.dev.name, "width", m.width, "height", m.height)
	return nil
}

func (m *Manager) activateLocked(effectID string) error {
	e, ok := m.opts.registry.Lookup(effectID)
	if !ok {
		return fmt.Errorf("%w: %q", overlay.ErrUnknownEffect, effectID)
	}

	var err error
	if m.opts.provider != nil {
		m.dev, err = sharedDevice(m.opts.provider)
	} else {
		m.dev, err = openDevice(m.opts.backend, m.opts.format)
	}
	if err != nil {
		return err
	}

	m.canvas, err = m.opts.canvas(m.dev.device, m.dev.queue, m.dev.format)
	if err != nil {
		return fmt.Errorf("create canvas: %w", err)
	}
	if err := m.canvas.Configure(m.width, m.height); err != nil {
		return fmt.Errorf("configure canvas: %w", err)
	}

	if err := m.createBuffersLocked(); err != nil {
		return err
	}

	m.cache = make(map[string]*Pipeline)
	p, err := compilePipeline(m.dev.device, m.dev.format, m.uniforms, e, m.opts.validate)
	if err != nil {
		return err
	}
	m.cache[e.ID] = p
	m.active.Store(p)

	m.frames = 0
	m.dropped = 0
	m.lastElapsed = 0
	m.lastTime = 0
	m.reconfigurations = 0
	return nil
}

func (m *Manager) createBuffersLocked() error {
	d := m.dev.device
	verts := quadVertexBytes()

	var err error
	m.vertices, err = d.CreateBuffer(&hal.BufferDescriptor{
		Label: "overlay_quad",
		Size:  uint64(len(verts)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create quad buffer: %w", err)
	}
	if err := m.dev.queue.WriteBuffer(m.vertices, 0, verts); err != nil {
		return fmt.Errorf("write quad buffer: %w", err)
	}

	m.uniforms, err = d.CreateBuffer(&hal.BufferDescriptor{
		Label: "overlay_time_uniform",
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create time uniform: %w", err)
	}
	encodeUniforms(m.scratch[:], 0, m.width, m.height)
	if err := m.dev.queue.WriteBuffer(m.uniforms, 0, m.scratch[:]); err != nil {
		return fmt.Errorf("write time uniform: %w", err)
	}
	return nil
}

// SetEffect switches the active pipeline to effectID, compiling it on first
// use. If compilation fails the previous pipeline stays active and the
// *overlay.CompileError is returned. The frame clock is not reset.
func (m *Manager) SetEffect(effectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State() != Active {
		return ErrNotActive
	}
	if cur := m.active.Load(); cur != nil && cur.EffectID == effectID {
		return nil
	}
	if p, ok := m.cache[effectID]; ok {
		m.active.Store(p)
		overlay.Logger().Debug("surface: effect switched from cache", "effect", effectID)
		return nil
	}

	e, ok := m.opts.registry.Lookup(effectID)
	if !ok {
		return fmt.Errorf("%w: %q", overlay.ErrUnknownEffect, effectID)
	}
	p, err := compilePipeline(m.dev.device, m.dev.format, m.uniforms, e, m.opts.validate)
	if err != nil {
		overlay.Logger().Warn("surface: effect switch failed, keeping previous effect",
			"effect", effectID, "err", err)
		return err
	}
	m.cache[effectID] = p
	m.active.Store(p)
	overlay.Logger().Info("surface: effect switched", "effect", effectID)
	return nil
}

// Resize records new canvas dimensions. While active, bursts of calls
// within the debounce window collapse into one reconfiguration using the
// last dimensions, applied only if they differ from the current size.
func (m *Manager) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State() != Active {
		m.width = width
		m.height = height
		return nil
	}
	m.pendingW = width
	m.pendingH = height
	gen := m.generation
	m.resize.trigger(func(seq uint64) { m.applyResize(gen, seq) })
	return nil
}

// applyResize runs when resize trigger seq of activation gen fires. A
// callback superseded by a later Resize or a Deactivate does nothing.
func (m *Manager) applyResize(gen, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation || m.State() != Active || !m.resize.fire(seq) {
		return
	}
	w, h := m.pendingW, m.pendingH
	if w == m.width && h == m.height {
		return
	}
	if err := m.canvas.Configure(w, h); err != nil {
		overlay.Logger().Warn("surface: resize failed", "width", w, "height", h, "err", err)
		return
	}
	m.width = w
	m.height = h
	m.reconfigurations++
	overlay.Logger().Debug("surface: canvas reconfigured", "width", w, "height", h)
}

// frame is the scheduler callback for activation gen.
func (m *Manager) frame(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return
	}
	elapsed := m.opts.clock.Now().Sub(m.origin)
	if _, err := m.tickLocked(elapsed); err != nil && !errors.Is(err, ErrNotActive) {
		overlay.Logger().Warn("surface: frame failed", "err", err)
	}
}

// Tick draws one frame with the time uniform set to elapsed. It reports
// false without drawing when the frame arrives sooner than the frame rate
// cap allows.
func (m *Manager) Tick(elapsed time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickLocked(elapsed)
}

func (m *Manager) tickLocked(elapsed time.Duration) (bool, error) {
	if m.State() != Active {
		return false, ErrNotActive
	}
	if m.frames > 0 && m.opts.maxFPS > 0 {
		minInterval := time.Second/time.Duration(m.opts.maxFPS) - throttleSlack
		if elapsed-m.lastElapsed < minInterval {
			m.dropped++
			return false, nil
		}
	}

	// Read the pipeline at draw time so effect switches apply immediately.
	p := m.active.Load()
	if p == nil {
		return false, ErrNotActive
	}

	seconds := float32(elapsed.Seconds())
	if err := m.drawLocked(p, seconds); err != nil {
		return false, err
	}
	m.frames++
	m.lastElapsed = elapsed
	m.lastTime = seconds
	return true, nil
}

func (m *Manager) drawLocked(p *Pipeline, seconds float32) error {
	d := m.dev.device
	encodeUniforms(m.scratch[:], seconds, m.width, m.height)
	if err := m.dev.queue.WriteBuffer(m.uniforms, 0, m.scratch[:]); err != nil {
		return fmt.Errorf("write time uniform: %w", err)
	}

	view, err := m.canvas.CurrentView()
	if err != nil {
		return fmt.Errorf("acquire canvas view: %w", err)
	}

	encoder, err := d.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "overlay_frame_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("overlay_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "overlay_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, p.bindGroup, nil)
	rp.SetVertexBuffer(0, m.vertices, 0)
	rp.Draw(quadVertexCount, 1, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.FreeCommandBuffer(cmdBuf)

	if err := submitAndWait(d, m.dev.queue, cmdBuf); err != nil {
		return err
	}
	return m.canvas.Present()
}

// Deactivate stops the frame loop and releases every resource of the
// surface. It is idempotent and safe to call before Activate completed.
func (m *Manager) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasActive := m.State() == Active
	m.teardownLocked()
	if wasActive {
		overlay.Logger().Info("surface: deactivated", "frames", m.frames)
	}
}

func (m *Manager) teardownLocked() {
	m.scheduler.Stop()
	m.resize.cancel()
	m.generation++
	m.active.Store(nil)

	if m.dev != nil && m.dev.device != nil {
		d := m.dev.device
		for id, p := range m.cache {
			p.destroy(d)
			delete(m.cache, id)
		}
		if m.uniforms != nil {
			d.DestroyBuffer(m.uniforms)
		}
		if m.vertices != nil {
			d.DestroyBuffer(m.vertices)
		}
	}
	m.cache = nil
	m.uniforms = nil
	m.vertices = nil

	if m.canvas != nil {
		m.canvas.Release()
		m.canvas = nil
	}
	m.dev.release()
	m.dev = nil
	m.state.Store(int32(Inactive))
}

// Stats returns the current frame counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{
		Frames:           m.frames,
		Dropped:          m.dropped,
		LastTime:         m.lastTime,
		Width:            m.width,
		Height:           m.height,
		Reconfigurations: m.reconfigurations,
	}
	if p := m.active.Load(); p != nil {
		s.Effect = p.EffectID
	}
	return s
}

// Cached returns the ids of the compiled pipelines, sorted.
func (m *Manager) Cached() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.cache))
	for id := range m.cache {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Canvas returns the active canvas, or nil when inactive.
func (m *Manager) Canvas() Canvas {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canvas
}
