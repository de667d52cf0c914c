// Package control holds the feedback-control building blocks of the pacer:
// a discrete PID controller and a rolling frame time history. Both are
// pure computational state machines with no clock access, which keeps them
// deterministic under test.
package control

// Gains holds the PID coefficients. Values are expected to be finite and
// non-negative; they are applied without validation.
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// DefaultGains are the stock coefficients, found by running the auto-tuner
// against a 30fps target on a desktop scheduler.
var DefaultGains = Gains{Kp: 1.8, Ki: 0.048, Kd: 0.237}

// integralLimit bounds the accumulator so sustained one-directional error
// cannot wind it up. At the stock Ki this caps the integral contribution
// at 240ms of wait, enough for targets down to 4fps.
const integralLimit = 5000.0

// PID converts a target frame time and a measured frame time into a
// corrective wait duration, all in milliseconds. It runs at the loop
// cadence: the timestep is one frame, folded into the gains, so the
// integral accumulates error per call and the derivative is the per-call
// error delta.
type PID struct {
	gains     Gains
	integral  float64
	lastError float64
	hasPrior  bool
}

func NewPID(g Gains) *PID {
	return &PID{gains: g}
}

// Update computes the wait in milliseconds for one cycle. A non-positive
// target means limiting is disabled: Update returns 0 without touching
// controller state.
func (p *PID) Update(targetMs, actualMs float64) float64 {
	if targetMs <= 0 {
		return 0
	}

	err := targetMs - actualMs

	p.integral = clamp(p.integral+err, -integralLimit, integralLimit)

	var derivative float64
	if p.hasPrior {
		derivative = err - p.lastError
	}

	out := p.gains.Kp*err + p.gains.Ki*p.integral + p.gains.Kd*derivative
	if out < 0 {
		// a controller must never request a negative wait
		out = 0
	}

	p.lastError = err
	p.hasPrior = true
	return out
}

// Reset zeroes the integral accumulator and forgets the previous error, so
// the next update contributes no derivative term.
func (p *PID) Reset() {
	p.integral = 0
	p.lastError = 0
	p.hasPrior = false
}

// SetGains replaces the coefficients and resets controller state; state
// accumulated under the old gains is meaningless under the new ones.
func (p *PID) SetGains(g Gains) {
	p.gains = g
	p.Reset()
}

func (p *PID) Gains() Gains {
	return p.gains
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
