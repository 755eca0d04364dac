package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImagingExtractor decodes with the Go image decoders and resamples with
// imaging. It needs no native libraries, so it also serves environments
// without libvips.
type ImagingExtractor struct{}

func (e *ImagingExtractor) Open(data []byte) (Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &goImage{img: img}, nil
}

type goImage struct {
	img image.Image
}

func (g *goImage) Width() int  { return g.img.Bounds().Dx() }
func (g *goImage) Height() int { return g.img.Bounds().Dy() }

func (g *goImage) Bands() int {
	switch g.img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.CMYK:
		return 4
	}
	if isOpaque(g.img) {
		return 3
	}
	return 4
}

func (g *goImage) HasAlpha() bool {
	switch g.img.(type) {
	case *image.Gray, *image.Gray16, *image.CMYK:
		return false
	}
	return !isOpaque(g.img)
}

func (g *goImage) SRGB() (Image, error) {
	if _, ok := g.img.(*image.NRGBA); ok {
		return g, nil
	}
	return &goImage{img: imaging.Clone(g.img)}, nil
}

func (g *goImage) Resize(hscale, vscale float64) (Image, error) {
	if hscale <= 0 || vscale <= 0 {
		return nil, fmt.Errorf("invalid resize scale %gx%g", hscale, vscale)
	}
	w, h := scaled(g.Width(), hscale), scaled(g.Height(), vscale)
	return &goImage{img: imaging.Resize(g.img, w, h, imaging.Lanczos)}, nil
}

func (g *goImage) Flatten() (Image, error) {
	if !g.HasAlpha() {
		return g, nil
	}
	bg := imaging.New(g.Width(), g.Height(), color.Black)
	return &goImage{img: imaging.Overlay(bg, g.img, image.Pt(0, 0), 1.0)}, nil
}

func (g *goImage) Pixels() ([]byte, error) {
	return FromImage(g.img).Pix, nil
}
