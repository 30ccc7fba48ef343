package surface

import (
	"sync"
	"time"
)

// DefaultRefreshInterval is the frame interval used when the host does not
// report its display refresh rate.
const DefaultRefreshInterval = time.Second / 60

// Scheduler calls frame once per display refresh until stopped.
//
// Stop must not wait for an in-flight frame to return: the Manager stops its
// scheduler while holding the lock that frame acquires.
type Scheduler interface {
	Start(frame func())
	Stop()
}

// TickerScheduler drives frames from a time.Ticker.
type TickerScheduler struct {
	Interval time.Duration

	mu   sync.Mutex
	done chan struct{}
}

// NewTickerScheduler returns a scheduler ticking every interval. A
// non-positive interval selects DefaultRefreshInterval.
func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &TickerScheduler{Interval: interval}
}

// Start begins ticking. A running scheduler is stopped first.
func (s *TickerScheduler) Start(frame func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		close(s.done)
	}
	done := make(chan struct{})
	s.done = done

	interval := s.Interval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
				}
				frame()
			}
		}
	}()
}

// Stop ends ticking. It is safe to call when not started.
func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
}

// ManualScheduler runs frames only when Frame is called. Hosts with their
// own render loop and tests use it.
type ManualScheduler struct {
	mu    sync.Mutex
	frame func()
}

// Start records frame.
func (s *ManualScheduler) Start(frame func()) {
	s.mu.Lock()
	s.frame = frame
	s.mu.Unlock()
}

// Stop forgets the frame callback.
func (s *ManualScheduler) Stop() {
	s.mu.Lock()
	s.frame = nil
	s.mu.Unlock()
}

// Running reports whether a frame callback is installed.
func (s *ManualScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame != nil
}

// Frame runs the installed callback once. It reports false when stopped.
func (s *ManualScheduler) Frame() bool {
	s.mu.Lock()
	f := s.frame
	s.mu.Unlock()
	if f == nil {
		return false
	}
	f()
	return true
}
