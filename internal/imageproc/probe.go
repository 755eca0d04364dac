package imageproc

import (
	"bytes"
	"fmt"
	"image"

	"github.com/h2non/bimg"
)

// Info describes an image without decoding its pixels.
type Info struct {
	Width  int
	Height int
	Format string
}

// Probe reads image dimensions. Formats the Go decoders know are read from
// the header; anything else (HEIF, AVIF, ...) goes through libvips.
func Probe(data []byte) (*Info, error) {
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return &Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
	}

	metadata, err := bimg.NewImage(data).Metadata()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &Info{
		Width:  metadata.Size.Width,
		Height: metadata.Size.Height,
		Format: metadata.Type,
	}, nil
}
