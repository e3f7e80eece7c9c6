// Package spectral provides the two-dimensional cosine transform pair used
// by the Poisson solver: a type-II DCT forward transform and its type-III
// inverse over row-major real planes. The pair matches the symmetry of
// zero-flux (Neumann) boundary conditions.
package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/nilx/retinex-pde/internal/pool"
)

// Transform is a forward/inverse 2D cosine transform pair over row-major
// w×h planes. Forward has type-II DCT semantics and Inverse type-III.
// Implementations must be round-trip exact: Inverse(Forward(x)) reproduces
// x up to floating-point error. dst and src must not alias.
type Transform interface {
	Forward(dst, src []float64, w, h int) error
	Inverse(dst, src []float64, w, h int) error
}

// DCT implements Transform on top of gonum's quarter-wave even transforms
// (the REDFT10/REDFT01 pair in FFTW terms). A DCT is planned for one plane
// shape at construction and is not safe for concurrent use; give each
// worker its own instance.
type DCT struct {
	w, h int
	row  *fourier.QuarterWaveFFT
	col  *fourier.QuarterWaveFFT

	// invScale undoes the transform library's round-trip gain. It is
	// measured from the library itself at plan time rather than assumed
	// from its documentation, so Inverse∘Forward is the identity under
	// any quarter-wave scaling convention.
	invScale float64
}

// NewDCT plans a transform pair for w×h planes.
func NewDCT(w, h int) (*DCT, error) {
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("spectral: invalid plane shape %dx%d", w, h)
	}
	if w > math.MaxInt/h {
		return nil, fmt.Errorf("spectral: plane shape %dx%d overflows", w, h)
	}
	d := &DCT{
		w:   w,
		h:   h,
		row: fourier.NewQuarterWaveFFT(w),
		col: fourier.NewQuarterWaveFFT(h),
	}
	d.invScale = 1 / (roundTripGain(d.row, w) * roundTripGain(d.col, h))
	return d, nil
}

// roundTripGain measures the scalar the library multiplies a length-n
// sequence by across one analysis/synthesis round trip. The composition is
// a pure scaling of the identity, so probing a unit impulse reads the gain
// directly. Note the FFTPACK naming gonum inherits: CosSequence (cosqb) is
// the type-II analysis direction, CosCoefficients (cosqf) the type-III
// synthesis.
func roundTripGain(plan *fourier.QuarterWaveFFT, n int) float64 {
	impulse := make([]float64, n)
	impulse[0] = 1
	coeffs := plan.CosSequence(nil, impulse)
	seq := plan.CosCoefficients(nil, coeffs)
	return seq[0]
}

func (d *DCT) check(dst, src []float64, w, h int) error {
	if w != d.w || h != d.h {
		return fmt.Errorf("spectral: plane shape %dx%d, transform planned for %dx%d", w, h, d.w, d.h)
	}
	if len(src) != w*h || len(dst) != w*h {
		return fmt.Errorf("spectral: buffer length src=%d dst=%d, want %d", len(src), len(dst), w*h)
	}
	return nil
}

// Forward writes the type-II DCT coefficients of src into dst, applying
// the row transform then the column transform.
func (d *DCT) Forward(dst, src []float64, w, h int) error {
	if err := d.check(dst, src, w, h); err != nil {
		return err
	}
	for j := 0; j < h; j++ {
		d.row.CosSequence(dst[j*w:(j+1)*w], src[j*w:(j+1)*w])
	}
	d.transformColumns(dst, (*fourier.QuarterWaveFFT).CosSequence)
	return nil
}

// Inverse writes the type-III inverse transform of the coefficients in src
// into dst, normalized so that a Forward/Inverse round trip is the
// identity.
func (d *DCT) Inverse(dst, src []float64, w, h int) error {
	if err := d.check(dst, src, w, h); err != nil {
		return err
	}
	for j := 0; j < h; j++ {
		d.row.CosCoefficients(dst[j*w:(j+1)*w], src[j*w:(j+1)*w])
	}
	d.transformColumns(dst, (*fourier.QuarterWaveFFT).CosCoefficients)
	floats.Scale(d.invScale, dst)
	return nil
}

// transformColumns applies a 1D transform down each column of the plane,
// in place, through a gather/scatter scratch pair.
func (d *DCT) transformColumns(plane []float64, apply func(*fourier.QuarterWaveFFT, []float64, []float64) []float64) {
	colIn := pool.Get(d.h)
	colOut := pool.Get(d.h)
	defer pool.Put(colIn)
	defer pool.Put(colOut)

	for i := 0; i < d.w; i++ {
		for j := 0; j < d.h; j++ {
			colIn[j] = plane[j*d.w+i]
		}
		apply(d.col, colOut[:d.h], colIn[:d.h])
		for j := 0; j < d.h; j++ {
			plane[j*d.w+i] = colOut[j]
		}
	}
}
