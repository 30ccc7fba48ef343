package surface

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

func TestOffscreenCanvasConfigure(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	c, err := NewOffscreenCanvas(device, queue, gputypes.TextureFormatBGRA8Unorm)
	if err != nil {
		t.Fatalf("NewOffscreenCanvas: %v", err)
	}
	if _, err := c.CurrentView(); err == nil {
		t.Error("CurrentView before Configure should fail")
	}
	if err := c.Configure(0, 10); err == nil {
		t.Error("Configure(0, 10) should fail")
	}
	if err := c.Configure(32, 16); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if _, err := c.CurrentView(); err != nil {
		t.Fatalf("CurrentView: %v", err)
	}
	if err := c.Configure(32, 16); err != nil {
		t.Fatalf("Configure same size: %v", err)
	}
	if w, h := c.Size(); w != 32 || h != 16 {
		t.Errorf("Size() = %dx%d, want 32x16", w, h)
	}

	c.Release()
	c.Release()
	if err := c.Present(); !errors.Is(err, ErrCanvasReleased) {
		t.Errorf("Present after Release = %v, want ErrCanvasReleased", err)
	}
	if err := c.Configure(8, 8); !errors.Is(err, ErrCanvasReleased) {
		t.Errorf("Configure after Release = %v, want ErrCanvasReleased", err)
	}
}

func TestNewOffscreenCanvasNeedsDevice(t *testing.T) {
	if _, err := NewOffscreenCanvas(nil, nil, gputypes.TextureFormatBGRA8Unorm); err == nil {
		t.Error("NewOffscreenCanvas(nil, nil) should fail")
	}
}

// flakyTextureDevice fails CreateTexture while fail is set and counts
// destroyed textures and views.
type flakyTextureDevice struct {
	hal.Device
	fail      bool
	destroyed int
}

var errNoTexture = errors.New("out of texture memory")

func (d *flakyTextureDevice) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	if d.fail {
		return nil, errNoTexture
	}
	return d.Device.CreateTexture(desc)
}

func (d *flakyTextureDevice) DestroyTexture(tex hal.Texture) {
	d.destroyed++
	d.Device.DestroyTexture(tex)
}

func (d *flakyTextureDevice) DestroyTextureView(view hal.TextureView) {
	d.destroyed++
	d.Device.DestroyTextureView(view)
}

func TestOffscreenCanvasFailedReconfigureKeepsTarget(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	flaky := &flakyTextureDevice{Device: device}
	c, err := NewOffscreenCanvas(flaky, queue, gputypes.TextureFormatBGRA8Unorm)
	if err != nil {
		t.Fatalf("NewOffscreenCanvas: %v", err)
	}
	if err := c.Configure(64, 32); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	flaky.fail = true
	if err := c.Configure(128, 64); !errors.Is(err, errNoTexture) {
		t.Fatalf("Configure(128, 64) = %v, want %v", err, errNoTexture)
	}
	if w, h := c.Size(); w != 64 || h != 32 {
		t.Errorf("Size() after failed Configure = %dx%d, want 64x32", w, h)
	}
	if _, err := c.CurrentView(); err != nil {
		t.Fatalf("CurrentView after failed Configure: %v", err)
	}
	if flaky.destroyed != 0 {
		t.Errorf("failed Configure destroyed %d resources of the current target", flaky.destroyed)
	}

	flaky.fail = false
	if err := c.Configure(128, 64); err != nil {
		t.Fatalf("Configure after recovery: %v", err)
	}
	if w, h := c.Size(); w != 128 || h != 64 {
		t.Errorf("Size() = %dx%d, want 128x64", w, h)
	}
	if flaky.destroyed != 2 {
		t.Errorf("destroyed = %d, want the old texture and view", flaky.destroyed)
	}
}

// lagQueue reports submissions as completed only after completeAfter polls.
type lagQueue struct {
	hal.Queue
	submitted     uint64
	completed     uint64
	submitErr     error
	completeAfter int
	polls         int
}

func (q *lagQueue) Submit([]hal.CommandBuffer) (uint64, error) {
	if q.submitErr != nil {
		return 0, q.submitErr
	}
	q.submitted++
	return q.submitted, nil
}

func (q *lagQueue) PollCompleted() uint64 {
	q.polls++
	if q.polls > q.completeAfter {
		q.completed = q.submitted
	}
	return q.completed
}

// idleDevice counts WaitIdle calls.
type idleDevice struct {
	hal.Device
	waits int
	err   error
}

func (d *idleDevice) WaitIdle() error {
	d.waits++
	return d.err
}

func TestSubmitAndWait(t *testing.T) {
	errSubmit := errors.New("device lost")
	errIdle := errors.New("timeout")
	tests := []struct {
		name      string
		queue     *lagQueue
		idleErr   error
		wantWaits int
		wantErr   error
	}{
		{name: "completed", queue: &lagQueue{}},
		{name: "in flight", queue: &lagQueue{completeAfter: 1}, wantWaits: 1},
		{name: "wait fails", queue: &lagQueue{completeAfter: 1}, idleErr: errIdle, wantWaits: 1, wantErr: errIdle},
		{name: "submit fails", queue: &lagQueue{submitErr: errSubmit}, wantErr: errSubmit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &idleDevice{err: tt.idleErr}
			err := submitAndWait(dev, tt.queue, nil)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("submitAndWait = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("submitAndWait = %v, want %v", err, tt.wantErr)
			}
			if dev.waits != tt.wantWaits {
				t.Errorf("WaitIdle calls = %d, want %d", dev.waits, tt.wantWaits)
			}
		})
	}
}

func TestSubmitAndWaitMessage(t *testing.T) {
	dev := &idleDevice{err: errors.New("timeout")}
	err := submitAndWait(dev, &lagQueue{completeAfter: 1}, nil)
	if err == nil || err.Error() != "wait for GPU: timeout" {
		t.Errorf("err = %v, want %q", err, "wait for GPU: timeout")
	}
}
