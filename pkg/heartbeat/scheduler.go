package heartbeat

import "time"

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the cancellation
	// prevented the callback from firing.
	Stop() bool
}

// Scheduler schedules one-shot callbacks. The monitor owns explicit timer
// handles obtained through this interface, so tests can substitute a
// deterministic implementation.
type Scheduler interface {
	// After schedules fn to run once after d and returns a handle to
	// cancel it.
	After(d time.Duration, fn func()) Timer
}

// systemScheduler schedules callbacks on the runtime timer heap.
type systemScheduler struct{}

// NewSystemScheduler returns the wall-clock scheduler used by default.
func NewSystemScheduler() Scheduler {
	return systemScheduler{}
}

func (systemScheduler) After(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
