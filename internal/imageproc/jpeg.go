package imageproc

import (
	"bytes"
	"fmt"
	"image"

	"github.com/gen2brain/jpegli"
)

// EncodeJPEG encodes img with jpegli. Placeholders are tiny and smooth, so
// chroma is kept at full resolution.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = 90
	}

	var buf bytes.Buffer
	options := &jpegli.EncodingOptions{
		Quality:           quality,
		OptimizeCoding:    true,
		ChromaSubsampling: image.YCbCrSubsampleRatio444,
	}
	if err := jpegli.Encode(&buf, img, options); err != nil {
		return nil, fmt.Errorf("jpegli encode: %w", err)
	}
	return buf.Bytes(), nil
}
