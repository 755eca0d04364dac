package imageproc

import (
	"bytes"
	"fmt"
	"image"

	"github.com/h2non/bimg"
)

// VipsExtractor opens images through libvips. Colour conversion and resizing
// are deferred and applied in a single libvips pass when pixels are read.
type VipsExtractor struct{}

func (e *VipsExtractor) Open(data []byte) (Image, error) {
	metadata, err := bimg.NewImage(data).Metadata()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bands := metadata.Channels
	if bands <= 0 {
		bands = 3
		if metadata.Alpha {
			bands = 4
		}
	}

	return &vipsImage{
		buf:    data,
		width:  metadata.Size.Width,
		height: metadata.Size.Height,
		bands:  bands,
		alpha:  metadata.Alpha,
		opts: bimg.Options{
			Type:         bimg.PNG,
			NoAutoRotate: true,
			Compression:  1,
		},
	}, nil
}

// vipsImage is copied on every transform so earlier handles stay valid.
type vipsImage struct {
	buf     []byte
	width   int
	height  int
	bands   int
	alpha   bool
	flatten bool
	opts    bimg.Options
}

func (v *vipsImage) Width() int     { return v.width }
func (v *vipsImage) Height() int    { return v.height }
func (v *vipsImage) Bands() int     { return v.bands }
func (v *vipsImage) HasAlpha() bool { return v.alpha }

func (v *vipsImage) SRGB() (Image, error) {
	c := *v
	c.opts.Interpretation = bimg.InterpretationSRGB
	c.bands = 3
	if c.alpha {
		c.bands = 4
	}
	return &c, nil
}

func (v *vipsImage) Resize(hscale, vscale float64) (Image, error) {
	if hscale <= 0 || vscale <= 0 {
		return nil, fmt.Errorf("invalid resize scale %gx%g", hscale, vscale)
	}
	c := *v
	c.width = scaled(v.width, hscale)
	c.height = scaled(v.height, vscale)
	c.opts.Width = c.width
	c.opts.Height = c.height
	c.opts.Force = true
	c.opts.Enlarge = true
	return &c, nil
}

func (v *vipsImage) Flatten() (Image, error) {
	if !v.alpha {
		return v, nil
	}
	c := *v
	c.flatten = true
	c.alpha = false
	c.bands--
	return &c, nil
}

func (v *vipsImage) Pixels() ([]byte, error) {
	out, err := bimg.NewImage(v.buf).Process(v.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to process image with libvips: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to read libvips output: %w", err)
	}

	raster := FromImage(img)
	if v.flatten {
		flat, err := raster.Flatten()
		if err != nil {
			return nil, err
		}
		raster = flat.(*Raster)
	}
	raster = raster.rebanded(v.bands)

	if raster.W != v.width || raster.H != v.height {
		return nil, fmt.Errorf("libvips produced %dx%d, expected %dx%d", raster.W, raster.H, v.width, v.height)
	}
	return raster.Pix, nil
}
