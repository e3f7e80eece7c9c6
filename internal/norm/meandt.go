package norm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrZeroDeviation reports a plane whose samples are all equal, for which
// no deviation-matching affine map exists.
var ErrZeroDeviation = errors.New("norm: zero standard deviation")

// moments returns the population mean and standard deviation of data
// (divisor N, single pass over Σx and Σx²).
func moments(data []float64) (mean, dev float64) {
	n := float64(len(data))
	mean = floats.Sum(data) / n
	if floats.Min(data) == floats.Max(data) {
		// A constant plane has zero deviation exactly; the Σx² route can
		// leave rounding residue of either sign.
		return mean, 0
	}
	variance := floats.Dot(data, data)/n - mean*mean
	if variance <= 0 {
		// Rounding can push the variance of a constant plane slightly
		// negative.
		return mean, 0
	}
	return mean, math.Sqrt(variance)
}

// MatchMeanDev applies to data, in place, the affine map that gives it the
// same population mean and standard deviation as ref. data is not modified
// when an error is returned.
func MatchMeanDev(data, ref []float64) error {
	if len(data) != len(ref) || len(data) == 0 {
		return fmt.Errorf("norm: plane sizes data=%d ref=%d", len(data), len(ref))
	}

	meanData, devData := moments(data)
	if devData == 0 {
		return fmt.Errorf("norm: data plane is constant: %w", ErrZeroDeviation)
	}
	meanRef, devRef := moments(ref)
	if devRef == 0 {
		return fmt.Errorf("norm: reference plane is constant: %w", ErrZeroDeviation)
	}

	a := devRef / devData
	b := meanRef - a*meanData
	floats.Scale(a, data)
	floats.AddConst(b, data)
	return nil
}
