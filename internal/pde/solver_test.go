package pde

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/nilx/retinex-pde/spectral"
)

// naiveDCT is an independent orthonormal DCT-II/III pair built from the
// textbook definition. It is orders of magnitude slower than the planned
// transform but uses a different scaling convention, so solver results
// agreeing across both implementations show the solve does not depend on
// any particular transform normalization.
type naiveDCT struct{}

func naive1D(dst, src []float64, inverse bool) {
	n := len(src)
	scale0 := math.Sqrt(1 / float64(n))
	scaleK := math.Sqrt(2 / float64(n))
	for i := 0; i < n; i++ {
		var sum float64
		if inverse {
			sum = scale0 * src[0]
			for k := 1; k < n; k++ {
				sum += scaleK * src[k] * math.Cos(math.Pi*float64(k)*float64(2*i+1)/float64(2*n))
			}
		} else {
			scale := scaleK
			if i == 0 {
				scale = scale0
			}
			for k := 0; k < n; k++ {
				sum += src[k] * math.Cos(math.Pi*float64(i)*float64(2*k+1)/float64(2*n))
			}
			sum *= scale
		}
		dst[i] = sum
	}
}

func naive2D(dst, src []float64, w, h int, inverse bool) {
	rowIn := make([]float64, w)
	rowOut := make([]float64, w)
	for j := 0; j < h; j++ {
		copy(rowIn, src[j*w:(j+1)*w])
		naive1D(rowOut, rowIn, inverse)
		copy(dst[j*w:(j+1)*w], rowOut)
	}
	colIn := make([]float64, h)
	colOut := make([]float64, h)
	for i := 0; i < w; i++ {
		for j := 0; j < h; j++ {
			colIn[j] = dst[j*w+i]
		}
		naive1D(colOut, colIn, inverse)
		for j := 0; j < h; j++ {
			dst[j*w+i] = colOut[j]
		}
	}
}

func (naiveDCT) Forward(dst, src []float64, w, h int) error {
	naive2D(dst, src, w, h, false)
	return nil
}

func (naiveDCT) Inverse(dst, src []float64, w, h int) error {
	naive2D(dst, src, w, h, true)
	return nil
}

// failingTransform reports an error on the chosen call.
type failingTransform struct {
	failForward bool
}

func (f failingTransform) Forward(dst, src []float64, w, h int) error {
	if f.failForward {
		return errors.New("forward boom")
	}
	copy(dst, src)
	return nil
}

func (f failingTransform) Inverse(dst, src []float64, w, h int) error {
	if !f.failForward {
		return errors.New("inverse boom")
	}
	copy(dst, src)
	return nil
}

func newTestSolver(t *testing.T, w, h int) *Solver {
	t.Helper()
	tf, err := spectral.NewDCT(w, h)
	if err != nil {
		t.Fatalf("NewDCT(%d, %d): %v", w, h, err)
	}
	return NewSolver(w, h, tf)
}

func TestSolve_ZeroFieldGivesZero(t *testing.T) {
	const w, h = 2, 2
	s := newTestSolver(t, w, h)
	f := make([]float64, w*h)
	u := make([]float64, w*h)
	if err := s.Solve(u, f); err != nil {
		t.Fatal(err)
	}
	for i, v := range u {
		if v != 0 {
			t.Errorf("u[%d] = %v, want 0", i, v)
		}
	}
}

func TestSolve_RecoversOriginalField(t *testing.T) {
	// Build u, take its exact stencil field L(u), and solve. The DC pin
	// selects the zero-mean member of the solution family, so the result
	// must equal u − mean(u).
	shapes := []struct {
		name string
		w, h int
	}{
		{"8x5", 8, 5},
		{"5x8", 5, 8},
		{"16x16", 16, 16},
		{"31x17", 31, 17},
	}
	for _, tt := range shapes {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(tt.w)))
			u := make([]float64, tt.w*tt.h)
			var mean float64
			for i := range u {
				u[i] = rng.Float64()*255 - 127
				mean += u[i]
			}
			mean /= float64(len(u))

			f := make([]float64, tt.w*tt.h)
			Laplacian(f, u, tt.w, tt.h, 0)

			got := make([]float64, tt.w*tt.h)
			s := newTestSolver(t, tt.w, tt.h)
			if err := s.Solve(got, f); err != nil {
				t.Fatal(err)
			}
			for i := range u {
				want := u[i] - mean
				// Low frequencies divide by near-zero kernel values, so
				// spectral rounding is amplified well above machine eps.
				if math.Abs(got[i]-want) > 1e-7 {
					t.Fatalf("u[%d] = %v, want %v", i, got[i], want)
				}
			}
		})
	}
}

func TestSolve_TransformAgnostic(t *testing.T) {
	// The same field solved with the planned transform and with an
	// independent orthonormal pair must agree.
	const w, h = 12, 9
	rng := rand.New(rand.NewSource(11))
	u := make([]float64, w*h)
	for i := range u {
		u[i] = rng.Float64() * 100
	}
	f := make([]float64, w*h)
	Laplacian(f, u, w, h, 2.5)

	fast := make([]float64, w*h)
	if err := newTestSolver(t, w, h).Solve(fast, f); err != nil {
		t.Fatal(err)
	}
	slow := make([]float64, w*h)
	if err := NewSolver(w, h, naiveDCT{}).Solve(slow, f); err != nil {
		t.Fatal(err)
	}
	for i := range fast {
		if math.Abs(fast[i]-slow[i]) > 1e-6 {
			t.Fatalf("u[%d]: planned %v, naive %v", i, fast[i], slow[i])
		}
	}
}

func TestSolve_InPlace(t *testing.T) {
	const w, h = 6, 6
	u := make([]float64, w*h)
	for i := range u {
		u[i] = float64(i % 7)
	}
	f := make([]float64, w*h)
	Laplacian(f, u, w, h, 0)

	want := make([]float64, w*h)
	s := newTestSolver(t, w, h)
	if err := s.Solve(want, f); err != nil {
		t.Fatal(err)
	}

	// Solving into the input buffer must give the same answer.
	if err := newTestSolver(t, w, h).Solve(f, f); err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if f[i] != want[i] {
			t.Errorf("in-place u[%d] = %v, want %v", i, f[i], want[i])
		}
	}
}

func TestSolve_FailureLeavesDstUntouched(t *testing.T) {
	const w, h = 4, 3
	tests := []struct {
		name string
		tf   spectral.Transform
	}{
		{"forward fails", failingTransform{failForward: true}},
		{"inverse fails", failingTransform{failForward: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := make([]float64, w*h)
			dst := make([]float64, w*h)
			for i := range dst {
				f[i] = float64(i)
				dst[i] = -1
			}
			s := NewSolver(w, h, tt.tf)
			if err := s.Solve(dst, f); err == nil {
				t.Fatal("Solve() = nil, want error")
			}
			for i, v := range dst {
				if v != -1 {
					t.Errorf("dst[%d] = %v, want untouched -1", i, v)
				}
			}
		})
	}
}

func TestSolve_BadLengths(t *testing.T) {
	s := newTestSolver(t, 4, 4)
	if err := s.Solve(make([]float64, 16), make([]float64, 15)); err == nil {
		t.Error("short field: Solve() = nil, want error")
	}
	if err := s.Solve(make([]float64, 15), make([]float64, 16)); err == nil {
		t.Error("short dst: Solve() = nil, want error")
	}
}

func BenchmarkSolve(b *testing.B) {
	const w, h = 512, 512
	tf, err := spectral.NewDCT(w, h)
	if err != nil {
		b.Fatal(err)
	}
	s := NewSolver(w, h, tf)
	rng := rand.New(rand.NewSource(1))
	u := make([]float64, w*h)
	for i := range u {
		u[i] = rng.Float64() * 255
	}
	f := make([]float64, w*h)
	Laplacian(f, u, w, h, 4)
	dst := make([]float64, w*h)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Solve(dst, f); err != nil {
			b.Fatal(err)
		}
	}
}
