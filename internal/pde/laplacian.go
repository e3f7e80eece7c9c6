// Package pde computes the thresholded discrete Laplacian of an image
// plane and solves the associated Poisson equation in the cosine transform
// domain.
package pde

import "math"

// Laplacian writes the thresholded discrete Laplacian of the w×h plane src
// into dst. Each output sample is the sum of (center − neighbor) over the
// existing 4-connected neighbors, keeping only differences whose magnitude
// strictly exceeds t. Missing neighbors on the border contribute nothing
// (zero-flux boundary, not periodic). dst must not alias src.
func Laplacian(dst, src []float64, w, h int, t float64) {
	for j := 0; j < h; j++ {
		row := j * w
		for i := 0; i < w; i++ {
			idx := row + i
			c := src[idx]
			var sum float64
			if i > 0 {
				if d := c - src[idx-1]; math.Abs(d) > t {
					sum += d
				}
			}
			if i < w-1 {
				if d := c - src[idx+1]; math.Abs(d) > t {
					sum += d
				}
			}
			if j > 0 {
				if d := c - src[idx-w]; math.Abs(d) > t {
					sum += d
				}
			}
			if j < h-1 {
				if d := c - src[idx+w]; math.Abs(d) > t {
					sum += d
				}
			}
			dst[idx] = sum
		}
	}
}
