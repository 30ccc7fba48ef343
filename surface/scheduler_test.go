package surface

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerSchedulerStartStop(t *testing.T) {
	s := NewTickerScheduler(time.Millisecond)
	var n atomic.Int32
	s.Start(func() { n.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for n.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d frames in 2s", n.Load())
		}
		time.Sleep(time.Millisecond)
	}
	s.Stop()
	stopped := n.Load()
	time.Sleep(20 * time.Millisecond)
	if got := n.Load(); got > stopped+1 {
		t.Errorf("frames kept running after Stop: %d -> %d", stopped, got)
	}

	// Stop is safe without a running loop.
	s.Stop()
}

func TestNewTickerSchedulerDefaultInterval(t *testing.T) {
	if got := NewTickerScheduler(0).Interval; got != DefaultRefreshInterval {
		t.Errorf("Interval = %v, want %v", got, DefaultRefreshInterval)
	}
}

func TestManualScheduler(t *testing.T) {
	var s ManualScheduler
	if s.Frame() {
		t.Error("Frame ran without Start")
	}
	calls := 0
	s.Start(func() { calls++ })
	s.Frame()
	s.Frame()
	s.Stop()
	if s.Frame() {
		t.Error("Frame ran after Stop")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestEncodeUniforms(t *testing.T) {
	var buf [uniformSize]byte
	encodeUniforms(buf[:], 1.5, 640, 480)

	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	if f(0) != 1.5 {
		t.Errorf("time = %v, want 1.5", f(0))
	}
	if f(8) != 640 || f(12) != 480 {
		t.Errorf("resolution = %vx%v, want 640x480", f(8), f(12))
	}
}

func TestQuadVertices(t *testing.T) {
	data := quadVertexBytes()
	if len(data) != int(quadVertexCount)*quadVertexStride {
		t.Fatalf("len = %d, want %d", len(data), int(quadVertexCount)*quadVertexStride)
	}
	// Every vertex is a clip-space corner.
	for i := 0; i < len(data); i += 4 {
		v := math.Float32frombits(binary.LittleEndian.Uint32(data[i:]))
		if v != -1 && v != 1 {
			t.Errorf("component %d = %v, want ±1", i/4, v)
		}
	}
}
