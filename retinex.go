package retinex

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nilx/retinex-pde/internal/norm"
	"github.com/nilx/retinex-pde/internal/pde"
	"github.com/nilx/retinex-pde/internal/pool"
	"github.com/nilx/retinex-pde/spectral"
)

// Error kinds returned by the pipeline. Wrapped causes carry the detail;
// match with errors.Is.
var (
	ErrInvalidArgument = errors.New("retinex: invalid argument")
	ErrAllocation      = errors.New("retinex: allocation failure")
	ErrDegenerateInput = errors.New("retinex: degenerate input")
	ErrTransform       = errors.New("retinex: transform failure")
)

// Mode selects how a solved plane is rescaled to output range.
type Mode int

const (
	// ModePercentile rescales each channel to [TargetMin, TargetMax]
	// after discarding a fraction of extreme samples on each side.
	ModePercentile Mode = iota

	// ModeMeanDev matches each channel's mean and standard deviation to
	// those of the original input channel.
	ModeMeanDev
)

// Observer receives pipeline progress events. The zero observer is a
// no-op; implementations must be safe for concurrent use when
// Options.Parallel is set.
type Observer interface {
	// Phase reports the duration of one pipeline phase of one channel.
	Phase(channel int, name string, d time.Duration)
	// Warn reports a recoverable anomaly, such as saturation counts
	// covering a whole plane.
	Warn(channel int, msg string)
}

type noopObserver struct{}

func (noopObserver) Phase(int, string, time.Duration) {}
func (noopObserver) Warn(int, string)                 {}

// Options controls the retinex pipeline.
type Options struct {
	// Threshold is the gradient magnitude at or below which neighbor
	// differences are discarded from the Laplacian. Must be >= 0; for
	// [0,255] input, useful values stay in that range.
	Threshold float64

	// Mode selects the post-solve normalization. Default ModePercentile.
	Mode Mode

	// TargetMin and TargetMax bound the output range in ModePercentile.
	TargetMin, TargetMax float64

	// SaturationLo and SaturationHi are the fractions of samples allowed
	// to saturate below and above the rescale interval in
	// ModePercentile. Must lie in [0,1).
	SaturationLo, SaturationHi float64

	// Parallel processes the color channels concurrently.
	Parallel bool

	// NewTransform supplies the cosine transform pair for a plane shape.
	// Nil uses spectral.NewDCT. Each channel gets its own instance, so
	// implementations need not be safe for concurrent use.
	NewTransform func(w, h int) (spectral.Transform, error)

	// Observer receives phase timings and warnings. Nil discards them.
	Observer Observer
}

// DefaultOptions mirrors the reference parameters: threshold 4,
// percentile normalization to [0,255] with 1.5% saturation per side.
func DefaultOptions() *Options {
	return &Options{
		Threshold:    4,
		Mode:         ModePercentile,
		TargetMin:    0,
		TargetMax:    255,
		SaturationLo: 0.015,
		SaturationHi: 0.015,
	}
}

// Process runs the retinex chain (thresholded Laplacian, Poisson solve,
// then normalization) on every non-alpha channel of img, writing results back
// into the caller's planes. Alpha is passed through untouched. On error no
// plane is modified.
func Process(img *Image, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := validate(img, opts); err != nil {
		return err
	}
	obs := opts.Observer
	if obs == nil {
		obs = noopObserver{}
	}

	nca := img.NonAlphaChannels()
	out := make([][]float64, nca)
	run := func(c int) error {
		buf, err := processChannel(img.Planes[c], img.Width, img.Height, c, opts, obs)
		if err != nil {
			return err
		}
		out[c] = buf
		return nil
	}

	var err error
	if opts.Parallel && nca > 1 {
		var g errgroup.Group
		for c := 0; c < nca; c++ {
			c := c
			g.Go(func() error { return run(c) })
		}
		err = g.Wait()
	} else {
		for c := 0; c < nca && err == nil; c++ {
			err = run(c)
		}
	}
	if err != nil {
		return err
	}

	// Commit only once every channel has succeeded.
	for c := 0; c < nca; c++ {
		copy(img.Planes[c], out[c])
		pool.Put(out[c])
	}
	return nil
}

// Normalize applies the percentile normalization alone to every non-alpha
// channel of img, in place, using opts.TargetMin/Max and the saturation
// fractions. It is the plain contrast stretch the reference tool writes
// alongside the retinex output for comparison.
func Normalize(img *Image, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := validate(img, opts); err != nil {
		return err
	}
	obs := opts.Observer
	if obs == nil {
		obs = noopObserver{}
	}

	n := img.Width * img.Height
	for c := 0; c < img.NonAlphaChannels(); c++ {
		clamped := norm.Flatten(img.Planes[c], opts.TargetMin, opts.TargetMax,
			satCount(opts.SaturationLo, n), satCount(opts.SaturationHi, n))
		if clamped {
			obs.Warn(c, "saturation counts cover the whole plane, clamped to (n-1)/2")
		}
	}
	return nil
}

// ProcessImage is a convenience wrapper running Process over a decoded
// image. The result is 8-bit: *image.Gray for grayscale input,
// *image.NRGBA otherwise.
func ProcessImage(src image.Image, opts *Options) (image.Image, error) {
	m := FromImage(src)
	if err := Process(m, opts); err != nil {
		return nil, err
	}
	return m.ToImage(), nil
}

// processChannel runs one channel through the chain and returns a pooled
// result plane. src is read-only throughout, so a failure at any phase
// leaves the caller's data intact.
func processChannel(src []float64, w, h, ch int, opts *Options, obs Observer) ([]float64, error) {
	n := w * h

	newTransform := opts.NewTransform
	if newTransform == nil {
		newTransform = func(w, h int) (spectral.Transform, error) {
			return spectral.NewDCT(w, h)
		}
	}
	tf, err := newTransform(w, h)
	if err != nil {
		return nil, fmt.Errorf("%w: channel %d: %v", ErrTransform, ch, err)
	}

	lap := pool.Get(n)
	defer pool.Put(lap)
	start := time.Now()
	pde.Laplacian(lap, src, w, h, opts.Threshold)
	obs.Phase(ch, "laplacian", time.Since(start))

	out := pool.Get(n)
	start = time.Now()
	if err := pde.NewSolver(w, h, tf).Solve(out, lap); err != nil {
		pool.Put(out)
		return nil, fmt.Errorf("%w: channel %d: %v", ErrTransform, ch, err)
	}
	obs.Phase(ch, "poisson", time.Since(start))

	start = time.Now()
	switch opts.Mode {
	case ModePercentile:
		clamped := norm.Flatten(out, opts.TargetMin, opts.TargetMax,
			satCount(opts.SaturationLo, n), satCount(opts.SaturationHi, n))
		if clamped {
			obs.Warn(ch, "saturation counts cover the whole plane, clamped to (n-1)/2")
		}
	case ModeMeanDev:
		if err := norm.MatchMeanDev(out, src); err != nil {
			pool.Put(out)
			if errors.Is(err, norm.ErrZeroDeviation) {
				return nil, fmt.Errorf("%w: channel %d: %v", ErrDegenerateInput, ch, err)
			}
			return nil, fmt.Errorf("%w: channel %d: %v", ErrInvalidArgument, ch, err)
		}
	}
	obs.Phase(ch, "normalize", time.Since(start))

	return out, nil
}

// satCount converts a per-side saturation fraction to a sample count.
func satCount(fraction float64, n int) int {
	return int(fraction * float64(n))
}

func validate(img *Image, opts *Options) error {
	if img == nil || len(img.Planes) == 0 {
		return fmt.Errorf("%w: no planes", ErrInvalidArgument)
	}
	if len(img.Planes) > 4 {
		return fmt.Errorf("%w: %d channels, want 1-4", ErrInvalidArgument, len(img.Planes))
	}
	if img.Width < 1 || img.Height < 1 {
		return fmt.Errorf("%w: plane shape %dx%d", ErrInvalidArgument, img.Width, img.Height)
	}
	if img.Width > math.MaxInt/img.Height {
		return fmt.Errorf("%w: plane shape %dx%d overflows", ErrAllocation, img.Width, img.Height)
	}
	n := img.Width * img.Height
	for c, p := range img.Planes {
		if len(p) != n {
			return fmt.Errorf("%w: plane %d has %d samples, want %d", ErrInvalidArgument, c, len(p), n)
		}
	}
	if !(opts.Threshold >= 0) || math.IsInf(opts.Threshold, 0) {
		return fmt.Errorf("%w: threshold %v", ErrInvalidArgument, opts.Threshold)
	}
	if math.IsNaN(opts.TargetMin) || math.IsNaN(opts.TargetMax) ||
		math.IsInf(opts.TargetMin, 0) || math.IsInf(opts.TargetMax, 0) ||
		opts.TargetMin > opts.TargetMax {
		return fmt.Errorf("%w: target range [%v, %v]", ErrInvalidArgument, opts.TargetMin, opts.TargetMax)
	}
	for _, s := range [2]float64{opts.SaturationLo, opts.SaturationHi} {
		if !(s >= 0 && s < 1) {
			return fmt.Errorf("%w: saturation fraction %v", ErrInvalidArgument, s)
		}
	}
	if opts.Mode != ModePercentile && opts.Mode != ModeMeanDev {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidArgument, opts.Mode)
	}
	return nil
}
