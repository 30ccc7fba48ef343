package surface

import (
	"time"

	"github.com/gogpu/overlay/internal/clock"
)

// debouncer runs the last triggered function once no new trigger arrived for
// delay. It is not safe for concurrent use; the Manager guards it.
//
// Every trigger is numbered. A callback that fires after a newer trigger or
// a cancel still runs, so it must confirm with fire before acting.
type debouncer struct {
	clock clock.Clock
	delay time.Duration
	timer clock.Timer
	seq   uint64
}

// trigger replaces any pending call with f, which receives its trigger
// number.
func (d *debouncer) trigger(f func(seq uint64)) {
	d.cancel()
	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.delay, func() { f(seq) })
}

// fire reports whether seq is the pending trigger and, if so, marks it done.
func (d *debouncer) fire(seq uint64) bool {
	if d.timer == nil || seq != d.seq {
		return false
	}
	d.timer = nil
	return true
}

// cancel drops the pending call, if any.
func (d *debouncer) cancel() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
