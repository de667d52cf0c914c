package main

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli"
	"github.com/valerio/go-pacer/pacer"
	"github.com/valerio/go-pacer/pacer/dashboard"
)

func main() {
	app := cli.NewApp()
	app.Name = "pacer"
	app.Description = "An adaptive frame pacer for real-time loops"
	app.Usage = "pacer [options]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.Float64Flag{
			Name:  "fps",
			Usage: "Target frame rate",
			Value: 30,
		},
		cli.Float64Flag{
			Name:  "load",
			Usage: "Simulated per-frame workload in milliseconds",
			Value: 5,
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run without the terminal dashboard, logging diagnostics",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run in headless mode (required for headless)",
			Value: 0,
		},
		cli.BoolFlag{
			Name:  "tune",
			Usage: "Start an auto-tuning session at launch (headless mode)",
		},
		cli.BoolFlag{
			Name:  "unlimited",
			Usage: "Disable pacing entirely (headless benchmark runs)",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
	app.Action = runPacer

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running pacer", "error", err)
		os.Exit(1)
	}
}

func runPacer(c *cli.Context) error {
	if c.Bool("verbose") {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		slog.SetDefault(slog.New(handler))
	}

	fps := c.Float64("fps")
	workload := time.Duration(c.Float64("load") * float64(time.Millisecond))
	limiter := pacer.New()

	if c.Bool("headless") {
		return runHeadless(c, limiter, fps, workload)
	}

	dash, err := dashboard.New(limiter, fps, workload)
	if err != nil {
		return err
	}
	return dash.Run()
}

func runHeadless(c *cli.Context, limiter *pacer.Limiter, fps float64, workload time.Duration) error {
	frames := c.Int("frames")
	if frames <= 0 {
		return errors.New("headless mode requires --frames option with a positive value")
	}

	targetMs := pacer.TargetFrameTime(fps)
	tune := c.Bool("tune")
	unlimited := c.Bool("unlimited")

	var p pacer.Pacer = limiter
	if unlimited {
		if tune {
			return errors.New("--tune and --unlimited are mutually exclusive")
		}
		p = pacer.NewNoOpPacer()
	}

	if tune {
		limiter.StartAutoTuning()
	}

	slog.Info("Running headless mode",
		"frames", frames,
		"target_ms", targetMs,
		"workload_ms", c.Float64("load"),
		"tune", tune)

	start := time.Now()
	for i := 0; i < frames; i++ {
		if workload > 0 {
			time.Sleep(workload)
		}
		p.LimitFrameRate(targetMs)

		if (i+1)%30 != 0 {
			continue
		}
		if unlimited {
			slog.Info("Frame progress", "completed", i+1, "total", frames)
			continue
		}
		if st := limiter.TuningStatusDetailed(); st.Active {
			slog.Info("Tuning progress",
				"phase", st.PhaseName,
				"step", st.CurrentStep,
				"total_steps", st.TotalSteps,
				"percent", st.Progress)
		} else {
			slog.Info("Frame progress", "completed", i+1, "total", frames, "status", limiter.DiagnosticInfo())
		}
	}

	elapsed := time.Since(start)
	kp, ki, kd := limiter.Parameters()
	slog.Info("Headless execution completed",
		"frames", frames,
		"elapsed", elapsed,
		"avg_frame_ms", float64(elapsed)/float64(time.Millisecond)/float64(frames),
		"kp", kp, "ki", ki, "kd", kd)
	return nil
}
