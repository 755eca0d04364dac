// Package blurhash computes blurhash placeholders for uploaded images:
// normalize the decoded pixels to RGB, pick the component counts and hand
// the buffer to the encoder, applying a fixed error policy at the boundary.
package blurhash

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackclub/blurhash/internal/imageproc"
)

// DefaultResizeTo is the edge length images are scaled to before encoding.
const DefaultResizeTo = 100

// Options configures a Hasher. It is resolved once; every computation reads
// it without locking.
type Options struct {
	Backend imageproc.Backend
	// Extractor replaces the built-in backend when set.
	Extractor imageproc.Extractor
	// ResizeTo <= 0 disables resizing.
	ResizeTo   int
	Components Components
	OnError    Policy
	// Encode defaults to go-blurhash.
	Encode EncodeFunc
	Logger zerolog.Logger
}

// DefaultOptions: libvips, 100px, 4x3 components, warn on error.
func DefaultOptions() Options {
	return Options{
		Backend:    imageproc.BackendVips,
		ResizeTo:   DefaultResizeTo,
		Components: DefaultComponents,
		OnError:    PolicyWarn,
		Logger:     zerolog.Nop(),
	}
}

type Hasher struct {
	extractor  imageproc.Extractor
	backend    string
	resizeTo   int
	components Components
	policy     Policy
	encode     EncodeFunc
	logger     zerolog.Logger
}

// New resolves opts. An unknown backend fails here and never reaches the
// error policy.
func New(opts Options) (*Hasher, error) {
	extractor := opts.Extractor
	backend := "custom"
	if extractor == nil {
		var err error
		extractor, err = imageproc.NewExtractor(opts.Backend)
		if err != nil {
			return nil, err
		}
		backend = opts.Backend.String()
	}

	switch opts.OnError {
	case PolicyWarn, PolicyFail, PolicyIgnore:
	default:
		return nil, fmt.Errorf("%w %s", ErrUnknownPolicy, opts.OnError)
	}

	components := opts.Components
	if components == nil {
		components = DefaultComponents
	}
	encode := opts.Encode
	if encode == nil {
		encode = Encode
	}

	return &Hasher{
		extractor:  extractor,
		backend:    backend,
		resizeTo:   opts.ResizeTo,
		components: components,
		policy:     opts.OnError,
		encode:     encode,
		logger:     opts.Logger.With().Str("component", "blurhash").Logger(),
	}, nil
}

// ComputeHash normalizes img, selects components and encodes.
func ComputeHash(img imageproc.Image, resizeTo int, comps Components, encode EncodeFunc) (string, error) {
	buf, err := Normalize(img, resizeTo)
	if err != nil {
		return "", err
	}
	x, y := SelectComponents(buf.Width, buf.Height, comps)
	return encode(buf.Width, buf.Height, buf.Pix, x, y)
}

// Compute returns the blurhash of an encoded image. On failure the policy
// decides: PolicyFail returns the error untouched, the others return "".
func (h *Hasher) Compute(data []byte) (string, error) {
	start := time.Now()

	hash, err := h.compute(data)

	h.logger.Info().
		Dur("duration", time.Since(start)).
		Int("bytes", len(data)).
		Str("backend", h.backend).
		Bool("ok", err == nil).
		Msg("blurhash")

	if err != nil {
		return h.handle(err)
	}
	return hash, nil
}

// ComputeReader reads r fully and computes its blurhash.
func (h *Hasher) ComputeReader(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return h.handle(fmt.Errorf("read image: %w", err))
	}
	return h.Compute(data)
}

// ComputeFile computes the blurhash of the image at path.
func (h *Hasher) ComputeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return h.handle(fmt.Errorf("read %s: %w", path, err))
	}
	return h.Compute(data)
}

func (h *Hasher) compute(data []byte) (string, error) {
	img, err := h.extractor.Open(data)
	if err != nil {
		return "", err
	}
	return ComputeHash(img, h.resizeTo, h.components, h.encode)
}

func (h *Hasher) handle(err error) (string, error) {
	switch h.policy {
	case PolicyFail:
		return "", err
	case PolicyWarn:
		h.logger.Warn().Err(err).Msg("error occurred when attempting to extract blurhash")
	}
	return "", nil
}

// Settings describes the resolved configuration.
type Settings struct {
	Backend    string `json:"backend"`
	ResizeTo   int    `json:"resizeTo"`
	Components string `json:"components"`
	OnError    string `json:"onError"`
}

func (h *Hasher) Settings() Settings {
	components := "dynamic"
	if s, ok := h.components.(fmt.Stringer); ok {
		components = s.String()
	}
	return Settings{
		Backend:    h.backend,
		ResizeTo:   h.resizeTo,
		Components: components,
		OnError:    h.policy.String(),
	}
}
