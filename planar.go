package retinex

import (
	"image"
	"image/color"
	"math"
)

// Image is a planar float image: one contiguous row-major Width×Height
// plane per channel, channels concatenated gray[+alpha] or R,G,B[+alpha].
// Sample values follow the caller's convention; FromImage produces values
// in [0,255]. The planes are caller-owned; the pipeline writes results
// back into them only on success.
type Image struct {
	Width, Height int
	Planes        [][]float64
}

// NewImage allocates a planar image with the given shape and channel
// count.
func NewImage(w, h, channels int) *Image {
	planes := make([][]float64, channels)
	for c := range planes {
		planes[c] = make([]float64, w*h)
	}
	return &Image{Width: w, Height: h, Planes: planes}
}

// NonAlphaChannels returns the number of leading color channels the
// pipeline operates on: 3 when the image carries at least three channels,
// 1 otherwise. Any remaining plane is alpha and is never touched.
func (m *Image) NonAlphaChannels() int {
	if len(m.Planes) >= 3 {
		return 3
	}
	return 1
}

// FromImage deinterlaces src into planes of [0,255] samples. Grayscale
// images produce a single plane; everything else produces R,G,B planes
// plus an alpha plane unless the source reports itself fully opaque.
// High-bit-depth sources are read at 8-bit precision.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	if g, ok := src.(*image.Gray); ok {
		m := NewImage(w, h, 1)
		for y := 0; y < h; y++ {
			row := g.Pix[y*g.Stride : y*g.Stride+w]
			for x, v := range row {
				m.Planes[0][y*w+x] = float64(v)
			}
		}
		return m
	}

	channels := 4
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		channels = 3
	}
	m := NewImage(w, h, channels)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			idx := y*w + x
			m.Planes[0][idx] = float64(c.R)
			m.Planes[1][idx] = float64(c.G)
			m.Planes[2][idx] = float64(c.B)
			if channels == 4 {
				m.Planes[3][idx] = float64(c.A)
			}
		}
	}
	return m
}

// clampRound maps a sample to an 8-bit value, saturating outside [0,255].
// NaN maps to 0; float-to-uint8 conversion of NaN is not defined.
func clampRound(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// ToImage reinterlaces the planes into an 8-bit image: *image.Gray for a
// single channel, *image.NRGBA otherwise. A 2-channel image is treated as
// gray plus alpha.
func (m *Image) ToImage() image.Image {
	w, h := m.Width, m.Height

	if len(m.Planes) == 1 {
		g := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g.Pix[y*g.Stride+x] = clampRound(m.Planes[0][y*w+x])
			}
		}
		return g
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			o := y*dst.Stride + x*4
			var r, g, b, a uint8
			switch len(m.Planes) {
			case 2:
				r = clampRound(m.Planes[0][idx])
				g, b = r, r
				a = clampRound(m.Planes[1][idx])
			case 3:
				r = clampRound(m.Planes[0][idx])
				g = clampRound(m.Planes[1][idx])
				b = clampRound(m.Planes[2][idx])
				a = 255
			default:
				r = clampRound(m.Planes[0][idx])
				g = clampRound(m.Planes[1][idx])
				b = clampRound(m.Planes[2][idx])
				a = clampRound(m.Planes[3][idx])
			}
			dst.Pix[o+0] = r
			dst.Pix[o+1] = g
			dst.Pix[o+2] = b
			dst.Pix[o+3] = a
		}
	}
	return dst
}

// Clone returns a deep copy sharing no storage with m.
func (m *Image) Clone() *Image {
	out := &Image{Width: m.Width, Height: m.Height, Planes: make([][]float64, len(m.Planes))}
	for c, p := range m.Planes {
		out.Planes[c] = append([]float64(nil), p...)
	}
	return out
}
