// Command retinex applies the Retinex PDE color-perception transform to an
// image.
//
// Usage:
//
//	retinex [options] <input> <norm-output> <retinex-output>
//
// The input is decoded as PNG or TIFF. Two images are written: the input
// normalized without the retinex transform (for comparison) and the
// retinex result, both rescaled to [0,255]. Use "-" as input to read from
// stdin. Output format follows the file extension.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/tiff"

	retinex "github.com/nilx/retinex-pde"
)

const version = "1.0.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "retinex: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("retinex", flag.ContinueOnError)
	threshold := fs.Float64("t", 4, "gradient threshold, in [0,255]")
	saturation := fs.Float64("s", 1.5, "percentage of pixels saturated per side, in [0,100)")
	mode := fs.String("m", "percentile", "normalization mode: percentile or meandev")
	parallel := fs.Bool("p", false, "process color channels in parallel")
	debug := fs.Bool("d", false, "debug logging with per-phase timings")
	showVersion := fs.Bool("v", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage:
  retinex [options] <input> <norm-output> <retinex-output>

Reads a PNG or TIFF image, writes the plain-normalized image and the
retinex result. Use "-" as input to read from stdin.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Println("retinex version " + version)
		return nil
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return fmt.Errorf("expected 3 arguments, got %d", fs.NArg())
	}
	if *threshold < 0 || *threshold > 255 {
		return fmt.Errorf("threshold %v out of [0,255]", *threshold)
	}
	if *saturation < 0 || *saturation >= 100 {
		return fmt.Errorf("saturation percentage %v out of [0,100)", *saturation)
	}
	m, err := parseMode(*mode)
	if err != nil {
		return err
	}

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()

	opts := retinex.DefaultOptions()
	opts.Threshold = *threshold
	opts.SaturationLo = *saturation / 100
	opts.SaturationHi = *saturation / 100
	opts.Mode = m
	opts.Parallel = *parallel
	opts.Observer = logObserver{log: log}

	inPath, normPath, rtnxPath := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	src, err := readImage(inPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inPath, err)
	}
	img := retinex.FromImage(src)
	log.Debug().
		Int("width", img.Width).
		Int("height", img.Height).
		Int("channels", len(img.Planes)).
		Msg("decoded input")

	// Plain normalization of the input, for comparison.
	normed := img.Clone()
	if err := retinex.Normalize(normed, opts); err != nil {
		return err
	}
	if err := writeImage(normPath, normed.ToImage()); err != nil {
		return fmt.Errorf("writing %s: %w", normPath, err)
	}

	start := time.Now()
	if err := retinex.Process(img, opts); err != nil {
		return err
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("retinex transform done")

	if err := writeImage(rtnxPath, img.ToImage()); err != nil {
		return fmt.Errorf("writing %s: %w", rtnxPath, err)
	}
	return nil
}

// logObserver forwards pipeline events to zerolog.
type logObserver struct {
	log zerolog.Logger
}

func (o logObserver) Phase(channel int, name string, d time.Duration) {
	o.log.Debug().Int("channel", channel).Str("phase", name).Dur("elapsed", d).Msg("phase done")
}

func (o logObserver) Warn(channel int, msg string) {
	o.log.Warn().Int("channel", channel).Msg(msg)
}

func parseMode(s string) (retinex.Mode, error) {
	switch s {
	case "percentile":
		return retinex.ModePercentile, nil
	case "meandev":
		return retinex.ModeMeanDev, nil
	default:
		return 0, fmt.Errorf("unknown normalization mode %q (want percentile or meandev)", s)
	}
}

// openInput returns a reader for the given path, or stdin for "-".
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func readImage(path string) (image.Image, error) {
	r, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	img, _, err := image.Decode(r)
	return img, err
}

// formatForPath picks the output codec from the file extension, defaulting
// to PNG.
func formatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return "tiff"
	default:
		return "png"
	}
}

func writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	switch formatForPath(path) {
	case "tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
