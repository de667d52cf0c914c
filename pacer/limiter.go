package pacer

import (
	"fmt"
	"time"

	"github.com/valerio/go-pacer/pacer/control"
	"github.com/valerio/go-pacer/pacer/hptime"
	"github.com/valerio/go-pacer/pacer/tuning"
)

// targetTolerance is how far the requested target may move between calls
// before controller state is considered stale and reset.
const targetTolerance = 0.1 // ms

// Limiter paces a single-threaded loop to a target frame time. It owns one
// PID controller and one frame time history, and at most one tuning
// session; a nil session means Idle. The controller is fed the smoothed
// frame time rather than the raw sample, which filters scheduler jitter
// out of the loop and keeps the stock gains stable.
//
// Not safe for concurrent use: it assumes sequential access from a single
// owning goroutine, whose LimitFrameRate call is the only blocking point.
type Limiter struct {
	pid       *control.PID
	history   *control.History
	tuningCfg tuning.Config

	session *tuning.Session

	lastCall   time.Time
	lastTarget float64
	lastWait   float64
	lastError  float64
}

var _ Pacer = (*Limiter)(nil)

// New returns an idle Limiter with the stock gains.
func New() *Limiter {
	return NewWithGains(control.DefaultGains)
}

// NewWithGains returns an idle Limiter with the given gains.
func NewWithGains(g control.Gains) *Limiter {
	return &Limiter{
		pid:       control.NewPID(g),
		history:   control.NewHistory(control.DefaultHistorySize),
		tuningCfg: tuning.DefaultConfig(),
	}
}

// LimitFrameRate measures the time since the previous call and blocks
// until the cycle has consumed roughly targetMs milliseconds. Call it
// exactly once per loop iteration; it is the sole per-cycle entry point.
//
// The first call only establishes the reference timestamp. A non-positive
// target disables limiting for that call without touching controller
// state. A target change beyond a small tolerance resets controller state,
// since the accumulated error no longer describes the new setpoint.
func (l *Limiter) LimitFrameRate(targetMs float64) {
	now := time.Now()
	if l.lastCall.IsZero() {
		l.lastCall = now
		l.lastTarget = targetMs
		return
	}

	elapsedMs := float64(now.Sub(l.lastCall)) / float64(time.Millisecond)
	l.lastCall = now
	l.history.Add(elapsedMs)

	if targetMs <= 0 {
		if l.session != nil {
			// no valid measurement this cycle; restart the candidate
			// window rather than scoring stale samples later
			l.session.Interrupt(now)
		}
		l.lastWait = 0
		l.lastError = 0
		return
	}

	if d := targetMs - l.lastTarget; d > targetTolerance || d < -targetTolerance {
		l.pid.Reset()
	}
	l.lastTarget = targetMs

	l.lastError = targetMs - elapsedMs
	l.lastWait = l.pid.Update(targetMs, l.history.Smoothed())

	if l.session != nil {
		if done := l.session.Observe(l.lastError, now); done {
			// best gains are already promoted by the session
			l.session = nil
		}
	}

	hptime.WaitMs(l.lastWait)
}

// Reset clears controller state and history; gains are unchanged. Call it
// after a pause so stale timing does not feed the controller.
func (l *Limiter) Reset() {
	l.pid.Reset()
	l.history.Clear()
	l.lastCall = time.Time{}
	l.lastWait = 0
	l.lastError = 0
}

// SetManualPIDParameters applies the given gains immediately. A manual
// change always wins: an active tuning session is cancelled and no
// best-so-far candidate is promoted over these values.
func (l *Limiter) SetManualPIDParameters(kp, ki, kd float64) {
	l.session = nil
	l.pid.SetGains(control.Gains{Kp: kp, Ki: ki, Kd: kd})
}

// Parameters returns the gains currently driving the loop.
func (l *Limiter) Parameters() (kp, ki, kd float64) {
	g := l.pid.Gains()
	return g.Kp, g.Ki, g.Kd
}

// SmoothedFrameTime returns the mean of the recent measured frame times in
// milliseconds, or 0 before the first measurement.
func (l *Limiter) SmoothedFrameTime() float64 {
	return l.history.Smoothed()
}

// DiagnosticInfo returns a one-line status summary. The "Sleep", "Error"
// and "Frame Time" labels are stable; hosts may scan for them.
func (l *Limiter) DiagnosticInfo() string {
	return fmt.Sprintf("Sleep: %.2f ms | Error: %.2f ms | Frame Time: %.2f ms",
		l.lastWait, l.lastError, l.history.Smoothed())
}

// StartAutoTuning begins a three-phase gain search, suspending nothing on
// the limiter side but expecting the host to hold its target steady and
// suspend focus/idle throttling while tuning is active, so measurements
// are not confounded. Cycles with a non-positive target do not advance
// the session; each one restarts the current candidate's measurement
// window. No-op if a session is already running.
func (l *Limiter) StartAutoTuning() {
	if l.session != nil {
		return
	}
	l.session = tuning.NewSession(l.pid, l.tuningCfg, time.Now())
}

// StopAutoTuning cancels an active session. Whichever candidate gains are
// installed at this instant stay in place; nothing is promoted. Safe to
// call when idle.
func (l *Limiter) StopAutoTuning() {
	l.session = nil
}

// SetTuningConfig replaces the per-phase measurement windows used by the
// next StartAutoTuning call. Ignored while a session is active.
func (l *Limiter) SetTuningConfig(cfg tuning.Config) {
	if l.session != nil {
		return
	}
	l.tuningCfg = cfg
}

// TuningStatus reports progress of the active session, or a zero Status
// when idle.
func (l *Limiter) TuningStatus() tuning.Status {
	if l.session == nil {
		return tuning.Status{}
	}
	return l.session.Status(time.Now())
}

// TuningStatusDetailed is TuningStatus plus the current phase name.
func (l *Limiter) TuningStatusDetailed() tuning.DetailedStatus {
	if l.session == nil {
		return tuning.DetailedStatus{}
	}
	return l.session.DetailedStatus(time.Now())
}
