// Package tuning implements an automated three-phase search over PID
// gains. A session borrows the host limiter's controller, swaps candidate
// gains into it, measures the resulting per-cycle error over a fixed
// window, and scores each candidate for accuracy and stability. The search
// narrows phase by phase: a wide coarse grid, a finer grid centered on the
// coarse winner, then a small precision sweep around the fine winner.
//
// A session never runs on its own goroutine. It advances one observation
// per host call and never samples the clock itself; the caller supplies
// time, which keeps the whole state machine deterministic under test.
package tuning

import (
	"log/slog"
	"math"
	"time"

	"github.com/valerio/go-pacer/pacer/control"
)

// Controller is the capability a session borrows from its host: swapping
// gains in and out of the live control loop. Installing gains is expected
// to reset controller state so each candidate starts clean.
type Controller interface {
	SetGains(control.Gains)
	Gains() control.Gains
}

// Candidate is one point of a phase's search grid.
type Candidate struct {
	Gains        control.Gains
	TestDuration time.Duration
}

// Result is the immutable outcome of one candidate's test window.
type Result struct {
	Kp           float64
	Ki           float64
	Kd           float64
	Score        float64
	AverageError float64
}

// Status is a snapshot of tuning progress. Progress is a percentage in
// [0, 100]; Best is nil until the first candidate completes.
type Status struct {
	Active      bool
	CurrentStep int
	TotalSteps  int
	Progress    float64
	Best        *Result
}

// DetailedStatus adds the human-readable name of the current phase.
type DetailedStatus struct {
	Status
	PhaseName string
}

// Config sets the per-candidate measurement window for each phase. Longer
// windows give the integral term time to settle, so later phases measure
// longer as the grid narrows.
type Config struct {
	CoarseDuration    time.Duration
	FineDuration      time.Duration
	PrecisionDuration time.Duration
}

// DefaultConfig matches the measurement windows the stock gains were found
// with.
func DefaultConfig() Config {
	return Config{
		CoarseDuration:    8 * time.Second,
		FineDuration:      12 * time.Second,
		PrecisionDuration: 15 * time.Second,
	}
}

var phaseNames = [...]string{"Coarse", "Fine", "Precision"}

// Candidate counts per phase are fixed up front so total progress is known
// before the later grids exist.
const (
	coarseCandidateCount    = 36
	fineCandidateCount      = 27
	precisionCandidateCount = 7

	// TotalSteps is the number of candidates a full session tests.
	TotalSteps = coarseCandidateCount + fineCandidateCount + precisionCandidateCount
)

type phase struct {
	name       string
	candidates []Candidate
}

// Session is the live tuning state. It exists only while a search is
// active; the host creates it on start and drops it on completion, stop,
// or manual override, so "tuning but no current candidate" is not a
// representable state.
type Session struct {
	cfg  Config
	ctrl Controller

	phases     []phase
	phaseIndex int
	candIndex  int
	candStart  time.Time
	errors     []float64

	phaseBest *Result
	best      *Result
	stepsDone int
}

// NewSession starts a search and installs the first coarse candidate into
// the controller. now is the host's current time; all subsequent timing is
// measured from the values passed to Observe.
func NewSession(ctrl Controller, cfg Config, now time.Time) *Session {
	s := &Session{
		cfg:    cfg,
		ctrl:   ctrl,
		phases: []phase{coarsePhase(cfg.CoarseDuration)},
	}
	s.install(now)
	slog.Info("auto-tuning started",
		"phases", len(phaseNames),
		"total_steps", TotalSteps)
	return s
}

// Observe feeds one cycle's control error (milliseconds) to the session.
// It returns true when the search has completed; by then the best gains
// found across all phases have been promoted into the controller.
func (s *Session) Observe(errorMs float64, now time.Time) bool {
	s.errors = append(s.errors, errorMs)

	cand := s.currentCandidate()
	if now.Sub(s.candStart) < cand.TestDuration {
		return false
	}

	s.finishCandidate(cand)
	return s.advance(now)
}

// Interrupt restarts the current candidate's measurement window. The
// host calls it for cycles that cannot produce a valid measurement (for
// example when limiting was disabled for the frame), so the window does
// not silently age and stale samples are not scored against the
// candidate.
func (s *Session) Interrupt(now time.Time) {
	s.candStart = now
	s.errors = s.errors[:0]
}

// Status reports progress as of now.
func (s *Session) Status(now time.Time) Status {
	cand := s.currentCandidate()
	frac := 0.0
	if cand.TestDuration > 0 {
		frac = float64(now.Sub(s.candStart)) / float64(cand.TestDuration)
		if frac < 0 {
			frac = 0
		}
		if frac > 1 {
			frac = 1
		}
	}

	progress := 100 * (float64(s.stepsDone) + frac) / float64(TotalSteps)
	if progress > 100 {
		progress = 100
	}

	step := s.stepsDone + 1
	if step > TotalSteps {
		step = TotalSteps
	}

	var best *Result
	if s.best != nil {
		b := *s.best
		best = &b
	}

	return Status{
		Active:      true,
		CurrentStep: step,
		TotalSteps:  TotalSteps,
		Progress:    progress,
		Best:        best,
	}
}

// DetailedStatus is Status plus the current phase name.
func (s *Session) DetailedStatus(now time.Time) DetailedStatus {
	return DetailedStatus{
		Status:    s.Status(now),
		PhaseName: s.phases[s.phaseIndex].name,
	}
}

func (s *Session) currentCandidate() Candidate {
	return s.phases[s.phaseIndex].candidates[s.candIndex]
}

// install swaps the current candidate's gains into the controller and
// starts its measurement window.
func (s *Session) install(now time.Time) {
	s.ctrl.SetGains(s.currentCandidate().Gains)
	s.candStart = now
	s.errors = s.errors[:0]
}

// finishCandidate scores the completed measurement window and folds the
// result into the phase and overall bests.
func (s *Session) finishCandidate(cand Candidate) {
	var sumAbs, peak float64
	for _, e := range s.errors {
		a := math.Abs(e)
		sumAbs += a
		if a > peak {
			peak = a
		}
	}
	avg := sumAbs / float64(len(s.errors))
	stability := CalculateStability(s.errors)

	res := Result{
		Kp:           cand.Gains.Kp,
		Ki:           cand.Gains.Ki,
		Kd:           cand.Gains.Kd,
		Score:        CalculateScore(avg, peak, stability),
		AverageError: avg,
	}
	s.stepsDone++

	if s.phaseBest == nil || res.betterThan(*s.phaseBest) {
		r := res
		s.phaseBest = &r
	}
	if s.best == nil || res.betterThan(*s.best) {
		r := res
		s.best = &r
	}

	slog.Debug("tuning candidate complete",
		"phase", s.phases[s.phaseIndex].name,
		"step", s.stepsDone,
		"kp", res.Kp, "ki", res.Ki, "kd", res.Kd,
		"score", res.Score,
		"avg_error_ms", res.AverageError)
}

// advance moves to the next candidate or phase. On natural completion it
// promotes the best result found anywhere in the search and reports done.
func (s *Session) advance(now time.Time) bool {
	s.candIndex++
	if s.candIndex < len(s.phases[s.phaseIndex].candidates) {
		s.install(now)
		return false
	}

	finished := s.phases[s.phaseIndex]
	center := control.Gains{Kp: s.phaseBest.Kp, Ki: s.phaseBest.Ki, Kd: s.phaseBest.Kd}
	slog.Info("tuning phase complete",
		"phase", finished.name,
		"best_kp", center.Kp, "best_ki", center.Ki, "best_kd", center.Kd,
		"best_score", s.phaseBest.Score)

	s.phaseIndex++
	if s.phaseIndex < len(phaseNames) {
		var next phase
		if s.phaseIndex == 1 {
			next = finePhase(center, s.cfg.FineDuration)
		} else {
			next = precisionPhase(center, s.cfg.PrecisionDuration)
		}
		s.phases = append(s.phases, next)
		s.candIndex = 0
		s.phaseBest = nil
		s.install(now)
		return false
	}

	promoted := control.Gains{Kp: s.best.Kp, Ki: s.best.Ki, Kd: s.best.Kd}
	s.ctrl.SetGains(promoted)
	slog.Info("auto-tuning complete",
		"kp", promoted.Kp, "ki", promoted.Ki, "kd", promoted.Kd,
		"score", s.best.Score,
		"avg_error_ms", s.best.AverageError)
	return true
}

// betterThan ranks results by score, breaking ties on lower average error.
func (r Result) betterThan(other Result) bool {
	if r.Score != other.Score {
		return r.Score > other.Score
	}
	return r.AverageError < other.AverageError
}

// coarsePhase covers the plausible gain space with a wide fixed grid.
func coarsePhase(d time.Duration) phase {
	kps := []float64{0.5, 1.5, 2.5, 3.5}
	kis := []float64{0.01, 0.05, 0.1}
	kds := []float64{0.1, 0.3, 0.5}

	candidates := make([]Candidate, 0, coarseCandidateCount)
	for _, kp := range kps {
		for _, ki := range kis {
			for _, kd := range kds {
				candidates = append(candidates, Candidate{
					Gains:        control.Gains{Kp: kp, Ki: ki, Kd: kd},
					TestDuration: d,
				})
			}
		}
	}
	return phase{name: phaseNames[0], candidates: candidates}
}

// finePhase builds a 3x3x3 grid around the coarse winner.
func finePhase(center control.Gains, d time.Duration) phase {
	offsets := []float64{-1, 0, 1}
	const (
		kpSpread = 0.4
		kiSpread = 0.02
		kdSpread = 0.1
	)

	candidates := make([]Candidate, 0, fineCandidateCount)
	for _, dp := range offsets {
		for _, di := range offsets {
			for _, dd := range offsets {
				candidates = append(candidates, Candidate{
					Gains: control.Gains{
						Kp: nonNegative(center.Kp + dp*kpSpread),
						Ki: nonNegative(center.Ki + di*kiSpread),
						Kd: nonNegative(center.Kd + dd*kdSpread),
					},
					TestDuration: d,
				})
			}
		}
	}
	return phase{name: phaseNames[1], candidates: candidates}
}

// precisionPhase tries the fine winner plus a small step along each axis.
func precisionPhase(center control.Gains, d time.Duration) phase {
	const (
		kpStep = 0.1
		kiStep = 0.005
		kdStep = 0.025
	)

	gains := []control.Gains{
		center,
		{Kp: nonNegative(center.Kp - kpStep), Ki: center.Ki, Kd: center.Kd},
		{Kp: center.Kp + kpStep, Ki: center.Ki, Kd: center.Kd},
		{Kp: center.Kp, Ki: nonNegative(center.Ki - kiStep), Kd: center.Kd},
		{Kp: center.Kp, Ki: center.Ki + kiStep, Kd: center.Kd},
		{Kp: center.Kp, Ki: center.Ki, Kd: nonNegative(center.Kd - kdStep)},
		{Kp: center.Kp, Ki: center.Ki, Kd: center.Kd + kdStep},
	}

	candidates := make([]Candidate, 0, precisionCandidateCount)
	for _, g := range gains {
		candidates = append(candidates, Candidate{Gains: g, TestDuration: d})
	}
	return phase{name: phaseNames[2], candidates: candidates}
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
