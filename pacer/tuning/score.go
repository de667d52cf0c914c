package tuning

import "math"

// CalculateStability measures the dispersion of an error sequence as the
// RMS of its consecutive differences. Both slow drift and fast oscillation
// produce nonzero differences, so both are penalized, while a constant
// sequence scores 0 regardless of its level. Fewer than two samples also
// score 0.
func CalculateStability(errors []float64) float64 {
	if len(errors) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(errors); i++ {
		d := errors[i] - errors[i-1]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(errors)-1))
}

// CalculateScore folds a candidate's metrics into a single figure of merit
// in (0, 1]. It is strictly positive for finite non-negative inputs,
// non-increasing in each of them, and peaks at 1 when all three are zero.
// The weights are empirical: stability counts double so a noisy candidate
// loses to a slightly-off but steady one, and the peak error counts half
// so a single outlier does not dominate.
func CalculateScore(avgError, peakError, stability float64) float64 {
	return 1.0 / (1.0 + avgError + 0.5*peakError + 2.0*stability)
}
