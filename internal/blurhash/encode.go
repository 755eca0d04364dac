package blurhash

import (
	"fmt"
	"image"

	"github.com/bbrks/go-blurhash"
)

// EncodeFunc turns an RGB pixel buffer into a blurhash string.
type EncodeFunc func(width, height int, pix []byte, xComponents, yComponents int) (string, error)

// Encode wraps the RGB buffer as an opaque image and hands it to go-blurhash.
func Encode(width, height int, pix []byte, xComponents, yComponents int) (string, error) {
	if len(pix) != width*height*3 {
		return "", fmt.Errorf("pixel buffer is %d bytes, want %d", len(pix), width*height*3)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		copy(img.Pix[i*4:i*4+3], pix[i*3:i*3+3])
		img.Pix[i*4+3] = 0xff
	}

	hash, err := blurhash.Encode(xComponents, yComponents, img)
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

const maxRenderDimension = 512

// Render decodes hash into a width x height placeholder. Dimensions are
// clamped to [1, 512]; punch <= 0 means 1.
func Render(hash string, width, height, punch int) (image.Image, error) {
	width = clamp(width, 1, maxRenderDimension)
	height = clamp(height, 1, maxRenderDimension)
	if punch <= 0 {
		punch = 1
	}

	img, err := blurhash.Decode(hash, width, height, punch)
	if err != nil {
		return nil, fmt.Errorf("decode blurhash: %w", err)
	}
	return img, nil
}

// HashComponents reports the component pair encoded in hash.
func HashComponents(hash string) (Fixed, error) {
	x, y, err := blurhash.Components(hash)
	if err != nil {
		return Fixed{}, fmt.Errorf("invalid blurhash %q: %w", hash, err)
	}
	return Fixed{X: x, Y: y}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
