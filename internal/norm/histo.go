// Package norm rescales solved image planes back to a displayable range,
// either by percentile histogram flattening or by matching the mean and
// deviation of a reference plane.
package norm

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// roundIdx converts a sample to its histogram value: floor(v + 0.5), so
// every bin spans exactly one unit on the negative side too. Monotonic, so
// bin indexes relative to the rounded minimum are never negative.
func roundIdx(v float64) int {
	return int(math.Floor(v + 0.5))
}

// minmaxHisto finds the interval [min, max] such that at most nbMin samples
// lie strictly below min and at most nbMax strictly above max, using a
// histogram over rounded sample values.
func minmaxHisto(data []float64, nbMin, nbMax int) (min, max float64) {
	offset := roundIdx(floats.Min(data))
	bins := roundIdx(floats.Max(data)) - offset + 1

	histo := make([]int, bins)
	for _, v := range data {
		histo[roundIdx(v)-offset]++
	}
	// Cumulative counts: histo[i] becomes the number of samples rounding
	// to a value <= i+offset.
	for i := 1; i < bins; i++ {
		histo[i] += histo[i-1]
	}

	size := len(data)

	// Smallest value keeping more than nbMin samples at or below it.
	lo := 0
	for lo < bins-1 && histo[lo] <= nbMin {
		lo++
	}
	// Largest value keeping more than nbMax samples at or above it,
	// mirroring the forward walk.
	hi := bins - 1
	for hi > 0 && size-histo[hi-1] <= nbMax {
		hi--
	}

	return float64(lo + offset), float64(hi + offset)
}

// Flatten rescales data in place to [targetMin, targetMax], ignoring up to
// nbMin low and nbMax high samples when computing the source interval.
// Samples outside the interval saturate to the target bounds. The returned
// flag reports that nbMin+nbMax covered the whole plane and both counts
// were clamped to (len(data)−1)/2; the caller decides how loudly to
// surface that.
func Flatten(data []float64, targetMin, targetMax float64, nbMin, nbMax int) (clamped bool) {
	size := len(data)
	if nbMin+nbMax >= size {
		nbMin = (size - 1) / 2
		nbMax = (size - 1) / 2
		clamped = true
	}

	if targetMin == targetMax {
		for i := range data {
			data[i] = targetMin
		}
		return clamped
	}

	var min, max float64
	if nbMin != 0 || nbMax != 0 {
		min, max = minmaxHisto(data, nbMin, nbMax)
	} else {
		min, max = floats.Min(data), floats.Max(data)
	}

	if max <= min {
		mid := (targetMax + targetMin) / 2
		for i := range data {
			data[i] = mid
		}
		return clamped
	}

	scale := (targetMax - targetMin) / (max - min)
	for i, v := range data {
		switch {
		case v < min:
			data[i] = targetMin
		case v < max:
			data[i] = (v-min)*scale + targetMin
		default:
			data[i] = targetMax
		}
	}
	return clamped
}
