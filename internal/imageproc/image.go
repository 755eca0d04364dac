package imageproc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDecode is returned when the source bytes cannot be opened as an image.
	ErrDecode = errors.New("failed to decode image")
	// ErrUnknownBackend is a configuration error: the requested backend name
	// is not one of the supported extractors.
	ErrUnknownBackend = errors.New("unknown pixel extractor")
)

// Image is a decoded raster owned by the caller for the duration of one
// computation. Transforms may be lazy; Pixels materializes the result as
// interleaved band bytes, row-major, Width*Height*Bands long.
type Image interface {
	Width() int
	Height() int
	Bands() int
	HasAlpha() bool

	// SRGB converts the image to the sRGB colour space.
	SRGB() (Image, error)
	// Resize scales each axis by its own factor.
	Resize(hscale, vscale float64) (Image, error)
	// Flatten composites the alpha band onto a black background and drops it.
	Flatten() (Image, error)

	Pixels() ([]byte, error)
}

// Extractor opens raw image bytes into an Image.
type Extractor interface {
	Open(data []byte) (Image, error)
}

// Backend names one of the built-in extractors.
type Backend int

const (
	// BackendVips decodes through libvips.
	BackendVips Backend = iota
	// BackendImaging decodes with Go image decoders and resizes with imaging.
	BackendImaging
)

var backendNames = map[Backend]string{
	BackendVips:    "vips",
	BackendImaging: "imaging",
}

// Backends lists the supported backends in priority order.
func Backends() []Backend {
	return []Backend{BackendVips, BackendImaging}
}

func (b Backend) String() string {
	if name, ok := backendNames[b]; ok {
		return name
	}
	return fmt.Sprintf("backend(%d)", int(b))
}

// ParseBackend resolves a backend by name. "ruby_vips" and "libvips" are
// accepted as aliases of "vips".
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "vips", "libvips", "ruby_vips":
		return BackendVips, nil
	case "imaging", "go":
		return BackendImaging, nil
	}

	supported := make([]string, 0, len(backendNames))
	for _, b := range Backends() {
		supported = append(supported, b.String())
	}
	return 0, fmt.Errorf("%w %q, supported extractors are: %s", ErrUnknownBackend, name, strings.Join(supported, ","))
}

// NewExtractor returns the extractor implementing b.
func NewExtractor(b Backend) (Extractor, error) {
	switch b {
	case BackendVips:
		return &VipsExtractor{}, nil
	case BackendImaging:
		return &ImagingExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w %s", ErrUnknownBackend, b)
	}
}

// scaled applies an axis scale factor the way libvips rounds output sizes.
func scaled(size int, scale float64) int {
	n := int(float64(size)*scale + 0.5)
	if n < 1 {
		return 1
	}
	return n
}
