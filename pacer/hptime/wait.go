// Package hptime realizes wait durations more precisely than the OS sleep
// granularity allows.
package hptime

import "time"

// spinMargin is the slice of the requested wait handed to the busy-poll
// tail. Desktop schedulers routinely overshoot time.Sleep by 1-2ms, so the
// coarse sleep is cut short by this amount and the remainder is spun.
const spinMargin = 1500 * time.Microsecond

// Wait blocks for at least d, combining one coarse time.Sleep with a
// busy-poll of the monotonic clock. Non-positive durations return
// immediately. The elapsed time is never less than d; overshoot is bounded
// by poll resolution plus whatever jitter the scheduler adds to the coarse
// portion, and under heavy contention is tolerated rather than reported.
func Wait(d time.Duration) {
	if d <= 0 {
		return
	}
	start := time.Now()
	if d > spinMargin {
		time.Sleep(d - spinMargin)
	}
	for time.Since(start) < d {
	}
}

// WaitMs is Wait for callers working in float milliseconds.
func WaitMs(ms float64) {
	Wait(time.Duration(ms * float64(time.Millisecond)))
}
