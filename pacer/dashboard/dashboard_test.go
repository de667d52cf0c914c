package dashboard

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-pacer/pacer"
)

func newTestDashboard(t *testing.T) *Dashboard {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	return &Dashboard{
		screen:   screen,
		limiter:  pacer.New(),
		targetMs: pacer.TargetFrameTime(30),
		workload: 0,
		running:  true,
		commands: make(chan command, 8),
	}
}

func receiveCommand(t *testing.T, d *Dashboard) command {
	t.Helper()
	select {
	case cmd := <-d.commands:
		return cmd
	case <-time.After(time.Second):
		t.Fatal("no command arrived from the input goroutine")
		return 0
	}
}

func TestDashboard_KeysProduceCommands(t *testing.T) {
	d := newTestDashboard(t)
	sim := d.screen.(tcell.SimulationScreen)
	defer d.screen.Fini()

	go d.handleInput()

	keys := []struct {
		r    rune
		want command
	}{
		{'t', cmdStartTuning},
		{'s', cmdStopTuning},
		{'r', cmdReset},
		{'+', cmdFaster},
		{'-', cmdSlower},
		{'q', cmdQuit},
	}
	for _, k := range keys {
		sim.InjectKey(tcell.KeyRune, k.r, tcell.ModNone)
		assert.Equal(t, k.want, receiveCommand(t, d), "rune %q", k.r)
	}
}

func TestDashboard_InputGoroutineExitsOnFini(t *testing.T) {
	d := newTestDashboard(t)

	done := make(chan struct{})
	go func() {
		d.handleInput()
		close(done)
	}()

	d.screen.Fini()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("input goroutine did not exit after the screen was finalized")
	}
}

func TestDashboard_ApplyAdjustsTarget(t *testing.T) {
	d := newTestDashboard(t)
	defer d.screen.Fini()

	original := d.targetMs
	d.apply(cmdFaster)
	assert.Less(t, d.targetMs, original, "a higher fps target means a shorter frame time")

	d.apply(cmdSlower)
	d.apply(cmdSlower)
	assert.Greater(t, d.targetMs, original)

	d.apply(cmdQuit)
	assert.False(t, d.running)
}

func TestProgressBar_Bounds(t *testing.T) {
	assert.Contains(t, progressBar(-5, 10), "0.0%")
	assert.Contains(t, progressBar(250, 10), "100.0%")
	assert.True(t, strings.HasPrefix(progressBar(50, 10), "[#####-----]"))
}
