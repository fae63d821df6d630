package speech

import "time"

// Clock schedules deferred work. The aggregator uses it for its silence
// timer so tests can drive time by hand.
type Clock interface {
	// AfterFunc calls f in its own goroutine after d elapses.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call from firing. It reports whether the call was
	// stopped before it fired.
	Stop() bool
}

// SystemClock is the wall-clock implementation of Clock.
type SystemClock struct{}

// AfterFunc implements Clock using time.AfterFunc.
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

var _ Clock = SystemClock{}
