// Package pacer implements adaptive frame pacing for real-time loops: a
// PID-driven frame limiter with sub-millisecond waiting and an automated
// gain search.
package pacer

// Pacer is the minimal pacing contract a host loop depends on.
type Pacer interface {
	// LimitFrameRate blocks until the current cycle has consumed the
	// target frame time in milliseconds. Returns quickly when behind
	// schedule or when the target is non-positive.
	LimitFrameRate(targetMs float64)

	// Reset clears timing state, useful after pauses.
	Reset()
}

// NewNoOpPacer returns a pacer that never waits (for unlimited or
// benchmark runs).
func NewNoOpPacer() Pacer {
	return &noOpPacer{}
}

type noOpPacer struct{}

func (n *noOpPacer) LimitFrameRate(float64) {}
func (n *noOpPacer) Reset()                 {}

// TargetFrameTime returns the frame time in milliseconds for a refresh
// rate, or 0 (limiting disabled) for a non-positive rate.
func TargetFrameTime(fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return 1000.0 / fps
}

// FPS converts a frame time in milliseconds to a rate per second.
func FPS(frameTimeMs float64) float64 {
	if frameTimeMs <= 0 {
		return 0
	}
	return 1000.0 / frameTimeMs
}
