package pacer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-pacer/pacer/tuning"
)

func TestLimiter_DisabledTargetReturnsQuickly(t *testing.T) {
	l := New()
	start := time.Now()
	for i := 0; i < 5; i++ {
		l.LimitFrameRate(0)
		l.LimitFrameRate(-33.33)
	}
	assert.Less(t, time.Since(start), 10*time.Millisecond,
		"non-positive targets must not block")
}

func TestLimiter_DefaultParameters(t *testing.T) {
	kp, ki, kd := New().Parameters()
	assert.Equal(t, 1.8, kp)
	assert.Equal(t, 0.048, ki)
	assert.Equal(t, 0.237, kd)
}

func TestLimiter_DiagnosticInfoLabels(t *testing.T) {
	l := New()
	l.LimitFrameRate(33.33)
	l.LimitFrameRate(33.33)

	info := l.DiagnosticInfo()
	assert.Contains(t, info, "Sleep")
	assert.Contains(t, info, "Error")
	assert.Contains(t, info, "Frame Time")
}

func TestLimiter_ResetKeepsGains(t *testing.T) {
	l := New()
	l.SetManualPIDParameters(2.5, 0.06, 0.3)
	l.LimitFrameRate(5)
	l.LimitFrameRate(5)
	require.Greater(t, l.SmoothedFrameTime(), 0.0)

	l.Reset()

	kp, ki, kd := l.Parameters()
	assert.Equal(t, 2.5, kp)
	assert.Equal(t, 0.06, ki)
	assert.Equal(t, 0.3, kd)
	assert.Equal(t, 0.0, l.SmoothedFrameTime(), "history should be cleared")
}

func TestLimiter_TargetChangeResetsController(t *testing.T) {
	l := New()
	// wind the integral up to its clamp: with no reset, a near-zero
	// error would still produce a large integral-driven wait
	for i := 0; i < 100; i++ {
		l.pid.Update(1000, 1)
	}
	require.Greater(t, l.pid.Update(1000, 999.9), 100.0, "integral should dominate before the change")

	l.LimitFrameRate(50) // establishes the reference target
	l.LimitFrameRate(25) // 25ms jump is far beyond the reset tolerance

	out := l.pid.Update(25, 25)
	assert.Less(t, out, 50.0, "the wound-up integral must have been cleared by the target change")
}

func TestLimiter_SmallTargetNudgeKeepsController(t *testing.T) {
	l := New()
	for i := 0; i < 100; i++ {
		l.pid.Update(1000, 1)
	}

	l.LimitFrameRate(50)
	l.LimitFrameRate(50.05) // within the 0.1ms tolerance: no reset

	out := l.pid.Update(50.05, 50.05)
	assert.Greater(t, out, 100.0, "a sub-tolerance nudge must preserve accumulated controller state")
}

func TestLimiter_DisabledTargetRestartsTuningWindow(t *testing.T) {
	l := New()
	l.SetTuningConfig(tuning.Config{CoarseDuration: 100 * time.Millisecond})
	l.StartAutoTuning()

	l.LimitFrameRate(5)
	time.Sleep(30 * time.Millisecond)
	l.LimitFrameRate(5)

	st1 := l.TuningStatus()
	require.True(t, st1.Active)
	require.Greater(t, st1.Progress, 0.0, "time spent in the window should show as progress")

	// a disabled cycle restarts the candidate window instead of
	// letting it age with no measurements
	l.LimitFrameRate(0)

	st2 := l.TuningStatus()
	assert.True(t, st2.Active, "a disabled cycle must not cancel the session")
	assert.Less(t, st2.Progress, st1.Progress)
}

func TestLimiter_StartStopTuning(t *testing.T) {
	l := New()
	assert.False(t, l.TuningStatus().Active)

	l.StartAutoTuning()
	st := l.TuningStatus()
	assert.True(t, st.Active)
	assert.Greater(t, st.CurrentStep, 0)
	assert.Greater(t, st.TotalSteps, 0)
	assert.GreaterOrEqual(t, st.Progress, 0.0)
	assert.LessOrEqual(t, st.Progress, 100.0)
	assert.Equal(t, "Coarse", l.TuningStatusDetailed().PhaseName)

	l.StopAutoTuning()
	assert.False(t, l.TuningStatus().Active)
}

func TestLimiter_StartTuningTwiceKeepsSession(t *testing.T) {
	l := New()
	l.StartAutoTuning()
	kp1, ki1, kd1 := l.Parameters()

	l.StartAutoTuning()
	kp2, ki2, kd2 := l.Parameters()
	assert.Equal(t, [3]float64{kp1, ki1, kd1}, [3]float64{kp2, ki2, kd2},
		"a second start must not restart the search")
}

func TestLimiter_ManualOverrideCancelsTuning(t *testing.T) {
	l := New()
	l.StartAutoTuning()
	require.True(t, l.TuningStatus().Active)

	l.SetManualPIDParameters(2.0, 0.1, 0.3)

	assert.False(t, l.TuningStatus().Active, "manual override always wins")
	kp, ki, kd := l.Parameters()
	assert.Equal(t, 2.0, kp)
	assert.Equal(t, 0.1, ki)
	assert.Equal(t, 0.3, kd)
}

func TestLimiter_TuningCompletesAndReturnsToIdle(t *testing.T) {
	l := New()
	// zero-length windows: every cycle completes one candidate
	l.SetTuningConfig(tuning.Config{})
	l.StartAutoTuning()

	for i := 0; i < tuning.TotalSteps+10 && l.TuningStatus().Active; i++ {
		l.LimitFrameRate(1.0)
	}

	assert.False(t, l.TuningStatus().Active, "search should complete and revert to idle")
	kp, _, _ := l.Parameters()
	assert.Greater(t, kp, 0.0, "promoted gains should be live")
}

func TestLimiter_ConvergesToTarget(t *testing.T) {
	if testing.Short() {
		t.Skip("timing-sensitive convergence test")
	}

	l := New()
	avgGap := func(target float64, calls int) float64 {
		var stamps []time.Time
		for i := 0; i < calls; i++ {
			time.Sleep(2 * time.Millisecond) // simulated frame workload
			l.LimitFrameRate(target)
			stamps = append(stamps, time.Now())
		}
		var sum float64
		n := 10
		for i := len(stamps) - n; i < len(stamps); i++ {
			sum += float64(stamps[i].Sub(stamps[i-1])) / float64(time.Millisecond)
		}
		return sum / float64(n)
	}

	assert.InDelta(t, 33.33, avgGap(33.33, 120), 4.0,
		"steady-state tracking of the initial target")
	assert.InDelta(t, 100.0, avgGap(100.0, 60), 12.0,
		"tracking after a target change")
}
