package surface

import (
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/overlay/effect"
	"github.com/gogpu/overlay/internal/clock"
)

// Defaults for Manager options.
const (
	DefaultMaxFPS         = 60
	DefaultResizeDebounce = 16 * time.Millisecond
	DefaultWidth          = 1280
	DefaultHeight         = 720
)

// throttleSlack lets frames arriving marginally before the minimum interval
// through, so a host ticking at exactly the maximum rate never drops frames
// to timer jitter.
const throttleSlack = time.Millisecond

// Option configures a Manager during creation.
//
// Example:
//
//	// Test surface on the noop backend
//	m := surface.NewManager(surface.WithBackend(&noop.API{}))
//
//	// Share the host's device
//	m := surface.NewManager(surface.WithDeviceProvider(provider))
type Option func(*managerOptions)

type managerOptions struct {
	backend   Backend
	provider  gpucontext.DeviceProvider
	validate  effect.Validator
	registry  *effect.Registry
	clock     clock.Clock
	scheduler Scheduler
	canvas    CanvasFactory
	format    gputypes.TextureFormat
	maxFPS    int
	debounce  time.Duration
	width     uint32
	height    uint32
}

func defaultManagerOptions() managerOptions {
	return managerOptions{
		backend:  DefaultBackend(),
		validate: effect.Validate,
		registry: effect.Default(),
		clock:    clock.Real(),
		canvas:   NewOffscreenCanvas,
		format:   gputypes.TextureFormatBGRA8Unorm,
		maxFPS:   DefaultMaxFPS,
		debounce: DefaultResizeDebounce,
		width:    DefaultWidth,
		height:   DefaultHeight,
	}
}

// WithBackend selects the HAL backend the Manager opens its device on.
func WithBackend(b Backend) Option {
	return func(o *managerOptions) {
		o.backend = b
	}
}

// WithDeviceProvider makes the Manager render on a device owned by the host.
// The device is not destroyed on Deactivate.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *managerOptions) {
		o.provider = p
	}
}

// WithValidator replaces the WGSL validator run before pipeline creation.
// A nil validator disables validation.
func WithValidator(v effect.Validator) Option {
	return func(o *managerOptions) {
		o.validate = v
	}
}

// WithRegistry resolves effect ids against r instead of the default registry.
func WithRegistry(r *effect.Registry) Option {
	return func(o *managerOptions) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithClock sets the time source for the frame origin and resize debounce.
func WithClock(c clock.Clock) Option {
	return func(o *managerOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithScheduler sets the frame scheduler. The default is a TickerScheduler at
// DefaultRefreshInterval.
func WithScheduler(s Scheduler) Option {
	return func(o *managerOptions) {
		o.scheduler = s
	}
}

// WithCanvasFactory sets how the Manager creates its canvas.
func WithCanvasFactory(f CanvasFactory) Option {
	return func(o *managerOptions) {
		if f != nil {
			o.canvas = f
		}
	}
}

// WithFormat sets the canvas texture format for devices the Manager opens
// itself. Shared devices use the provider's surface format.
func WithFormat(f gputypes.TextureFormat) Option {
	return func(o *managerOptions) {
		o.format = f
	}
}

// WithMaxFPS caps the number of frames drawn per second. Values <= 0 disable
// throttling.
func WithMaxFPS(fps int) Option {
	return func(o *managerOptions) {
		o.maxFPS = fps
	}
}

// WithResizeDebounce sets the window in which resize bursts are coalesced.
func WithResizeDebounce(d time.Duration) Option {
	return func(o *managerOptions) {
		o.debounce = d
	}
}

// WithSize sets the initial canvas size.
func WithSize(width, height uint32) Option {
	return func(o *managerOptions) {
		if width > 0 && height > 0 {
			o.width = width
			o.height = height
		}
	}
}
