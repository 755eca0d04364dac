package blurhash

import (
	"errors"
	"fmt"

	"github.com/hackclub/blurhash/internal/imageproc"
)

// ErrUnsupportedLayout is returned for images reporting no bands at all.
// Every positive band count is coerced to three.
var ErrUnsupportedLayout = errors.New("unsupported band layout")

// PixelBuffer holds interleaved RGB bytes, row-major.
// len(Pix) == Width*Height*3.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []byte
}

// Normalize converts img to sRGB, optionally resizes it, flattens alpha and
// coerces the result to exactly three bands. resizeTo <= 0 keeps the
// original size.
//
// Each axis is scaled by resizeTo divided by its own length, so the output
// is resizeTo x resizeTo whatever the source aspect ratio.
func Normalize(img imageproc.Image, resizeTo int) (*PixelBuffer, error) {
	img, err := img.SRGB()
	if err != nil {
		return nil, fmt.Errorf("convert to srgb: %w", err)
	}

	if resizeTo > 0 {
		hscale := float64(resizeTo) / float64(img.Width())
		vscale := float64(resizeTo) / float64(img.Height())
		img, err = img.Resize(hscale, vscale)
		if err != nil {
			return nil, fmt.Errorf("resize: %w", err)
		}
	}

	if img.HasAlpha() {
		img, err = img.Flatten()
		if err != nil {
			return nil, fmt.Errorf("flatten: %w", err)
		}
	}

	pix, err := img.Pixels()
	if err != nil {
		return nil, err
	}

	w, h := img.Width(), img.Height()
	rgb, err := coerceBands(pix, w*h, img.Bands())
	if err != nil {
		return nil, err
	}
	return &PixelBuffer{Width: w, Height: h, Pix: rgb}, nil
}

// coerceBands maps n-band pixels to RGB:
//
//	1 band   -> {0, 0, 0}
//	2 bands  -> {0, 1, 0}
//	3 bands  -> unchanged
//	>3 bands -> {0, 1, 2}
func coerceBands(pix []byte, pixels, bands int) ([]byte, error) {
	if bands <= 0 {
		return nil, fmt.Errorf("%w: %d bands", ErrUnsupportedLayout, bands)
	}
	if len(pix) != pixels*bands {
		return nil, fmt.Errorf("pixel buffer is %d bytes, want %d", len(pix), pixels*bands)
	}
	if bands == 3 {
		return pix, nil
	}

	out := make([]byte, pixels*3)
	for i := 0; i < pixels; i++ {
		s := pix[i*bands:]
		d := out[i*3 : i*3+3]
		switch bands {
		case 1:
			d[0], d[1], d[2] = s[0], s[0], s[0]
		case 2:
			d[0], d[1], d[2] = s[0], s[1], s[0]
		default:
			d[0], d[1], d[2] = s[0], s[1], s[2]
		}
	}
	return out, nil
}
