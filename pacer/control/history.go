package control

// DefaultHistorySize is the number of recent frame samples kept for smoothing.
const DefaultHistorySize = 10

// History is a fixed-capacity rolling window of measured frame durations
// in milliseconds, used for smoothing and diagnostics.
type History struct {
	samples  []float64
	capacity int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{capacity: capacity}
}

// Add appends a sample, evicting the oldest once capacity is exceeded.
func (h *History) Add(ms float64) {
	h.samples = append(h.samples, ms)
	if len(h.samples) > h.capacity {
		h.samples = h.samples[1:]
	}
}

// Smoothed returns the arithmetic mean of the current samples, or 0 when
// the window is empty.
func (h *History) Smoothed() float64 {
	if len(h.samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range h.samples {
		sum += s
	}
	return sum / float64(len(h.samples))
}

// Len returns the number of samples currently held.
func (h *History) Len() int {
	return len(h.samples)
}

// Clear drops all samples.
func (h *History) Clear() {
	h.samples = h.samples[:0]
}
