package pde

import (
	"fmt"

	"github.com/nilx/retinex-pde/internal/pool"
	"github.com/nilx/retinex-pde/spectral"
)

// Solver solves the discrete Poisson equation L(u) = f on a w×h grid under
// zero-flux boundary conditions, where L is the (center − neighbor) stencil
// computed by Laplacian. The solve runs in the cosine transform domain:
// each frequency is divided by the stencil's eigenvalue
//
//	D(i,j) = 4 − 2·cos(iπ/w) − 2·cos(jπ/h)
//
// and the singular zero frequency is pinned to zero, which selects the
// zero-mean solution among the family differing by an additive constant.
//
// A Solver is not safe for concurrent use; give each worker its own.
type Solver struct {
	w, h   int
	tf     spectral.Transform
	tables tableCache
}

// NewSolver returns a solver for w×h planes running on the given transform
// pair.
func NewSolver(w, h int, tf spectral.Transform) *Solver {
	return &Solver{w: w, h: h, tf: tf}
}

// Solve writes the solution for the Laplacian field f into dst. dst and f
// may be the same slice; dst is only written after every fallible step has
// succeeded, so a failed call leaves it untouched.
func (s *Solver) Solve(dst, f []float64) error {
	n := s.w * s.h
	if len(f) != n || len(dst) != n {
		return fmt.Errorf("pde: buffer length f=%d dst=%d, want %d", len(f), len(dst), n)
	}

	spec := pool.Get(n)
	defer pool.Put(spec)
	if err := s.tf.Forward(spec, f, s.w, s.h); err != nil {
		return fmt.Errorf("pde: forward transform: %w", err)
	}

	s.divideByKernel(spec)

	out := pool.Get(n)
	defer pool.Put(out)
	if err := s.tf.Inverse(out, spec, s.w, s.h); err != nil {
		return fmt.Errorf("pde: inverse transform: %w", err)
	}

	copy(dst, out)
	return nil
}

// divideByKernel divides every coefficient by the Poisson kernel and zeroes
// the singular DC term. The transform pair is round-trip normalized, so no
// further scale compensation is needed: with cos(0)=1 on both axes, every
// frequency past (0,0) has a strictly positive kernel value.
func (s *Solver) divideByKernel(spec []float64) {
	cosx, cosy := s.tables.get(s.w, s.h)
	spec[0] = 0
	for j := 0; j < s.h; j++ {
		row := j * s.w
		dy := 4 - 2*cosy[j]
		i := 0
		if j == 0 {
			i = 1
		}
		for ; i < s.w; i++ {
			spec[row+i] /= dy - 2*cosx[i]
		}
	}
}
