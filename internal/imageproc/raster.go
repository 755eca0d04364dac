package imageproc

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Raster is a fully materialized Image: Bands interleaved bytes per pixel.
// When Alpha is set the last band is the alpha band. CMYK marks a
// four-band ink image that SRGB converts to RGB.
type Raster struct {
	W, H  int
	N     int
	Alpha bool
	CMYK  bool
	Pix   []byte
}

// NewRaster wraps pix as a width x height image with the given band count.
func NewRaster(width, height, bands int, pix []byte) (*Raster, error) {
	if width <= 0 || height <= 0 || bands <= 0 {
		return nil, fmt.Errorf("invalid raster geometry %dx%dx%d", width, height, bands)
	}
	if len(pix) != width*height*bands {
		return nil, fmt.Errorf("raster buffer is %d bytes, want %d", len(pix), width*height*bands)
	}
	return &Raster{W: width, H: height, N: bands, Pix: pix}, nil
}

func (r *Raster) Width() int     { return r.W }
func (r *Raster) Height() int    { return r.H }
func (r *Raster) Bands() int     { return r.N }
func (r *Raster) HasAlpha() bool { return r.Alpha }

func (r *Raster) Pixels() ([]byte, error) { return r.Pix, nil }

// SRGB converts CMYK rasters; every other layout is already device RGB or
// gray and is returned unchanged.
func (r *Raster) SRGB() (Image, error) {
	if !r.CMYK || r.N < 4 {
		return r, nil
	}
	n := r.W * r.H
	out := &Raster{W: r.W, H: r.H, N: 3, Pix: make([]byte, n*3)}
	for i := 0; i < n; i++ {
		s := r.Pix[i*r.N:]
		cr, cg, cb := color.CMYKToRGB(s[0], s[1], s[2], s[3])
		out.Pix[i*3], out.Pix[i*3+1], out.Pix[i*3+2] = cr, cg, cb
	}
	return out, nil
}

// Resize resamples with nearest neighbour, keeping every band.
func (r *Raster) Resize(hscale, vscale float64) (Image, error) {
	if hscale <= 0 || vscale <= 0 {
		return nil, fmt.Errorf("invalid resize scale %gx%g", hscale, vscale)
	}
	w, h := scaled(r.W, hscale), scaled(r.H, vscale)
	out := &Raster{W: w, H: h, N: r.N, Alpha: r.Alpha, CMYK: r.CMYK, Pix: make([]byte, w*h*r.N)}
	for y := 0; y < h; y++ {
		sy := min(y*r.H/h, r.H-1)
		for x := 0; x < w; x++ {
			sx := min(x*r.W/w, r.W-1)
			copy(out.Pix[(y*w+x)*r.N:(y*w+x+1)*r.N], r.Pix[(sy*r.W+sx)*r.N:])
		}
	}
	return out, nil
}

// Flatten premultiplies the colour bands by alpha over black and drops the
// alpha band.
func (r *Raster) Flatten() (Image, error) {
	if !r.Alpha || r.N < 2 {
		return r, nil
	}
	n := r.W * r.H
	bands := r.N - 1
	out := &Raster{W: r.W, H: r.H, N: bands, CMYK: r.CMYK, Pix: make([]byte, n*bands)}
	for i := 0; i < n; i++ {
		s := r.Pix[i*r.N : (i+1)*r.N]
		a := uint32(s[bands])
		for b := 0; b < bands; b++ {
			out.Pix[i*bands+b] = uint8((uint32(s[b])*a + 127) / 255)
		}
	}
	return out, nil
}

// rebanded reconciles a decoded raster with the band layout the source
// reported. Go decoders expand gray+alpha to RGBA, so four bands collapse
// back to two by keeping the first colour band and alpha.
func (r *Raster) rebanded(bands int) *Raster {
	if bands <= 0 || bands == r.N {
		return r
	}
	pick := make([]int, bands)
	switch {
	case bands == 2 && r.N == 4:
		pick[0], pick[1] = 0, 3
	case bands < r.N:
		for i := range pick {
			pick[i] = i
		}
	default:
		// more bands requested than decoded: repeat the first band
		for i := range pick {
			if i < r.N {
				pick[i] = i
			}
		}
	}

	n := r.W * r.H
	out := &Raster{W: r.W, H: r.H, N: bands, Alpha: r.Alpha && bands == 2 && r.N == 4, Pix: make([]byte, n*bands)}
	for i := 0; i < n; i++ {
		for b, src := range pick {
			out.Pix[i*bands+b] = r.Pix[i*r.N+src]
		}
	}
	return out
}

// FromImage materializes a Go image. Gray images keep one band, CMYK keeps
// four ink bands, everything else becomes RGB, or RGBA when the image is not
// opaque.
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		out := &Raster{W: w, H: h, N: 1, Pix: make([]byte, w*h)}
		for y := 0; y < h; y++ {
			off := (b.Min.Y-src.Rect.Min.Y+y)*src.Stride + (b.Min.X - src.Rect.Min.X)
			copy(out.Pix[y*w:(y+1)*w], src.Pix[off:off+w])
		}
		return out
	case *image.Gray16:
		out := &Raster{W: w, H: h, N: 1, Pix: make([]byte, w*h)}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Pix[y*w+x] = uint8(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y >> 8)
			}
		}
		return out
	case *image.CMYK:
		out := &Raster{W: w, H: h, N: 4, CMYK: true, Pix: make([]byte, w*h*4)}
		for y := 0; y < h; y++ {
			off := (b.Min.Y-src.Rect.Min.Y+y)*src.Stride + (b.Min.X-src.Rect.Min.X)*4
			copy(out.Pix[y*w*4:(y+1)*w*4], src.Pix[off:off+w*4])
		}
		return out
	}

	nrgba := imaging.Clone(img)
	if isOpaque(img) {
		out := &Raster{W: w, H: h, N: 3, Pix: make([]byte, w*h*3)}
		for i := 0; i < w*h; i++ {
			copy(out.Pix[i*3:i*3+3], nrgba.Pix[i*4:i*4+3])
		}
		return out
	}
	return &Raster{W: w, H: h, N: 4, Alpha: true, Pix: nrgba.Pix}
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
