// Package dashboard drives a Limiter in a visible terminal loop. It is the
// reference host: the limiter paces the redraw itself, and the screen
// shows the diagnostics and tuning progress a real host would consume.
package dashboard

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/go-pacer/pacer"
)

type command int

const (
	cmdQuit command = iota
	cmdStartTuning
	cmdStopTuning
	cmdReset
	cmdFaster
	cmdSlower
)

// Dashboard owns a tcell screen and one limiter. Input is polled on its
// own goroutine and funneled through a channel, so the limiter itself is
// only ever touched from the render loop.
type Dashboard struct {
	screen   tcell.Screen
	limiter  *pacer.Limiter
	targetMs float64
	workload time.Duration
	running  bool
	commands chan command
}

// New initializes the terminal. fps is the initial pacing target; workload
// simulates the host's per-frame work so the controller has something to
// subtract.
func New(limiter *pacer.Limiter, fps float64, workload time.Duration) (*Dashboard, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}

	return &Dashboard{
		screen:   screen,
		limiter:  limiter,
		targetMs: pacer.TargetFrameTime(fps),
		workload: workload,
		running:  true,
		commands: make(chan command, 8),
	}, nil
}

// Run blocks until the user quits or a termination signal arrives.
func (d *Dashboard) Run() error {
	defer func() {
		slog.Info("Finishing dashboard")
		d.screen.Fini()
	}()

	d.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	d.screen.Clear()

	go d.handleInput()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	for d.running {
		select {
		case cmd := <-d.commands:
			d.apply(cmd)
		case <-signals:
			slog.Info("Received signal to stop")
			return nil
		default:
		}

		if d.workload > 0 {
			time.Sleep(d.workload)
		}

		d.render()
		d.screen.Show()
		d.limiter.LimitFrameRate(d.targetMs)
	}

	return nil
}

func (d *Dashboard) apply(cmd command) {
	switch cmd {
	case cmdQuit:
		d.running = false
	case cmdStartTuning:
		d.limiter.StartAutoTuning()
	case cmdStopTuning:
		d.limiter.StopAutoTuning()
	case cmdReset:
		d.limiter.Reset()
	case cmdFaster:
		d.setTargetFPS(pacer.FPS(d.targetMs) + 5)
	case cmdSlower:
		d.setTargetFPS(pacer.FPS(d.targetMs) - 5)
	}
}

func (d *Dashboard) setTargetFPS(fps float64) {
	if fps < 5 {
		fps = 5
	}
	if fps > 240 {
		fps = 240
	}
	d.targetMs = pacer.TargetFrameTime(fps)
}

// handleInput runs on its own goroutine. It owns no dashboard state:
// PollEvent returns nil once the render loop finalizes the screen, which
// is this goroutine's signal to exit.
func (d *Dashboard) handleInput() {
	for {
		ev := d.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyEscape, tcell.KeyCtrlC:
				d.send(cmdQuit)
			case tcell.KeyRune:
				switch ev.Rune() {
				case 'q':
					d.send(cmdQuit)
				case 't':
					d.send(cmdStartTuning)
				case 's':
					d.send(cmdStopTuning)
				case 'r':
					d.send(cmdReset)
				case '+', '=':
					d.send(cmdFaster)
				case '-':
					d.send(cmdSlower)
				}
			}
		case *tcell.EventResize:
			d.screen.Sync()
		}
	}
}

// send never blocks: dropping a key press beats wedging the input
// goroutine once the render loop has stopped draining commands.
func (d *Dashboard) send(cmd command) {
	select {
	case d.commands <- cmd:
	default:
	}
}

func (d *Dashboard) render() {
	d.screen.Clear()

	bold := tcell.StyleDefault.Bold(true)
	dim := tcell.StyleDefault.Foreground(tcell.ColorGray)
	plain := tcell.StyleDefault

	kp, ki, kd := d.limiter.Parameters()
	smoothed := d.limiter.SmoothedFrameTime()

	d.drawText(0, 0, bold, "go-pacer")
	d.drawText(0, 2, plain, fmt.Sprintf("Target: %6.2f ms (%5.1f fps)", d.targetMs, pacer.FPS(d.targetMs)))
	d.drawText(0, 3, plain, fmt.Sprintf("Actual: %6.2f ms (%5.1f fps)", smoothed, pacer.FPS(smoothed)))
	d.drawText(0, 4, plain, d.limiter.DiagnosticInfo())
	d.drawText(0, 5, plain, fmt.Sprintf("Gains:  kp=%.3f ki=%.3f kd=%.3f", kp, ki, kd))

	st := d.limiter.TuningStatusDetailed()
	if st.Active {
		d.drawText(0, 7, bold, fmt.Sprintf("Tuning: %s phase, step %d/%d", st.PhaseName, st.CurrentStep, st.TotalSteps))
		d.drawText(0, 8, plain, progressBar(st.Progress, 40))
		if st.Best != nil {
			d.drawText(0, 9, plain, fmt.Sprintf("Best:   kp=%.3f ki=%.3f kd=%.3f score=%.4f avg=%.2f ms",
				st.Best.Kp, st.Best.Ki, st.Best.Kd, st.Best.Score, st.Best.AverageError))
		}
	} else {
		d.drawText(0, 7, dim, "Tuning: idle")
	}

	d.drawText(0, 11, dim, "[t] tune  [s] stop  [r] reset  [+/-] target fps  [q] quit")
}

func (d *Dashboard) drawText(x, y int, style tcell.Style, text string) {
	for i, r := range []rune(text) {
		d.screen.SetContent(x+i, y, r, nil, style)
	}
}

func progressBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(width))
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat("#", filled),
		strings.Repeat("-", width-filled),
		percent)
}
