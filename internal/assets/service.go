package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hackclub/blurhash/internal/blurhash"
	"github.com/hackclub/blurhash/internal/imageproc"
	"github.com/hackclub/blurhash/internal/storage"
	"github.com/hackclub/blurhash/internal/util"
)

var (
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrInvalidImage    = errors.New("invalid image")
	ErrInvalidInput    = errors.New("invalid input")
)

// Stored object metadata keys.
const (
	metaBlurhash = "blurhash"
	metaWidth    = "width"
	metaHeight   = "height"
	metaSHA256   = "sha256"
)

type Service struct {
	store       storage.Store
	hasher      *blurhash.Hasher
	fetcher     *util.HTTPFetcher
	autoExtract bool
	workers     int
	logger      zerolog.Logger
}

type Options struct {
	// AutoExtract computes a blurhash for every stored upload.
	AutoExtract bool
	// Workers bounds batch parallelism; <= 0 means GOMAXPROCS.
	Workers int
	// Fetcher defaults to util.NewHTTPFetcher().
	Fetcher *util.HTTPFetcher
}

type Asset struct {
	URL    string `json:"url"`
	MIME   string `json:"mime"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int64  `json:"bytes"`
	Hash   string `json:"hash,omitempty"`
	// Blurhash is nil when none was extracted.
	Blurhash *string `json:"blurhash"`
	Deduped  bool    `json:"deduped"`
	Key      string  `json:"key,omitempty"`
}

type ProcessInput struct {
	Data        []byte
	ContentType string
	SourceURL   string
}

type BatchInput struct {
	URL         string `json:"url,omitempty"`
	DataURI     string `json:"dataUri,omitempty"`
	Data        []byte `json:"-"`
	ContentType string `json:"-"`
}

// BatchResult holds either the asset or the error for one batch item.
type BatchResult struct {
	Index int    `json:"index"`
	Asset *Asset `json:"asset,omitempty"`
	Error string `json:"error,omitempty"`
}

// BlurhashResult is what ComputeBlurhash reports for an image.
type BlurhashResult struct {
	Blurhash   *string `json:"blurhash"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Components string  `json:"components,omitempty"`
}

func NewService(store storage.Store, hasher *blurhash.Hasher, opts Options, logger zerolog.Logger) *Service {
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = util.NewHTTPFetcher()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Service{
		store:       store,
		hasher:      hasher,
		fetcher:     fetcher,
		autoExtract: opts.AutoExtract,
		workers:     workers,
		logger:      logger.With().Str("component", "assets").Logger(),
	}
}

// ProcessFromURL fetches an image and stores it.
func (s *Service) ProcessFromURL(ctx context.Context, imageURL string) (*Asset, error) {
	s.logger.Info().Str("url", imageURL).Msg("processing image from URL")

	data, contentType, err := s.fetcher.FetchURL(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}

	return s.ProcessFromData(ctx, &ProcessInput{
		Data:        data,
		ContentType: contentType,
		SourceURL:   imageURL,
	})
}

// ProcessFromDataURI decodes a data: URI and stores the image.
func (s *Service) ProcessFromDataURI(ctx context.Context, dataURI string) (*Asset, error) {
	s.logger.Info().Str("dataURI", dataURI[:min(64, len(dataURI))]).Msg("processing image from data URI")

	data, contentType, err := ParseDataURI(dataURI)
	if err != nil {
		return nil, err
	}

	return s.ProcessFromData(ctx, &ProcessInput{
		Data:        data,
		ContentType: contentType,
		SourceURL:   "data:",
	})
}

// ProcessFromData stores an image once per content key. New uploads get a
// blurhash when auto extraction is on; the hasher's error policy decides
// whether a failed extraction fails the upload.
func (s *Service) ProcessFromData(ctx context.Context, input *ProcessInput) (*Asset, error) {
	if len(input.Data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidInput)
	}

	contentType := util.NormalizeMIME(input.ContentType)
	if !util.IsImageMIME(contentType) {
		contentType = util.NormalizeMIME(util.DetectContentType(input.Data))
	}
	if !util.IsImageMIME(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	info, err := imageproc.Probe(input.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	key := util.ObjectKey(input.Data, util.GetImageExtension(contentType))

	exists, err := s.store.ObjectExists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check if object exists: %w", err)
	}
	if exists {
		asset, err := s.GetAsset(ctx, key)
		if err != nil {
			return nil, err
		}
		asset.Deduped = true
		s.logger.Info().Str("key", key).Msg("object already exists, using existing")
		return asset, nil
	}

	var hash *string
	if s.autoExtract {
		hash, err = s.blurhash(input.Data)
		if err != nil {
			return nil, err
		}
	}

	sum := "sha256:" + util.HashBytes(input.Data)
	metadata := map[string]string{
		metaWidth:  strconv.Itoa(info.Width),
		metaHeight: strconv.Itoa(info.Height),
		metaSHA256: sum,
	}
	if hash != nil {
		metadata[metaBlurhash] = *hash
	}

	result, err := s.store.Upload(ctx, key, input.Data, contentType, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to upload to storage: %w", err)
	}

	s.logger.Info().
		Str("key", key).
		Str("source", input.SourceURL).
		Int("width", info.Width).
		Int("height", info.Height).
		Bool("blurhash", hash != nil).
		Msg("uploaded new object")

	return &Asset{
		URL:      result.URL,
		MIME:     contentType,
		Width:    info.Width,
		Height:   info.Height,
		Bytes:    result.Size,
		Hash:     sum,
		Blurhash: hash,
		Key:      key,
	}, nil
}

// ProcessBatch processes inputs with at most s.workers in flight. Results
// keep input order; one failing item does not stop the others.
func (s *Service) ProcessBatch(ctx context.Context, inputs []BatchInput) []BatchResult {
	results := make([]BatchResult, len(inputs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)

	for i, input := range inputs {
		wg.Add(1)
		go func(idx int, in BatchInput) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx].Index = idx
			asset, err := s.processBatchItem(ctx, in)
			if err != nil {
				s.logger.Error().Err(err).Int("index", idx).Msg("failed to process batch item")
				results[idx].Error = err.Error()
				return
			}
			results[idx].Asset = asset
		}(i, input)
	}
	wg.Wait()

	return results
}

func (s *Service) processBatchItem(ctx context.Context, input BatchInput) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case input.URL != "":
		return s.ProcessFromURL(ctx, input.URL)
	case input.DataURI != "":
		return s.ProcessFromDataURI(ctx, input.DataURI)
	case len(input.Data) > 0:
		return s.ProcessFromData(ctx, &ProcessInput{
			Data:        input.Data,
			ContentType: input.ContentType,
			SourceURL:   "upload",
		})
	}
	return nil, fmt.Errorf("%w: item has no url, dataUri or data", ErrInvalidInput)
}

// GetAsset reads a stored object's metadata. Blurhash is nil when the
// object carries none.
func (s *Service) GetAsset(ctx context.Context, key string) (*Asset, error) {
	info, err := s.store.Head(ctx, key)
	if err != nil {
		return nil, err
	}

	asset := &Asset{
		URL:   s.store.GetPublicURL(key),
		MIME:  info.ContentType,
		Bytes: info.Size,
		Hash:  info.Metadata[metaSHA256],
		Key:   key,
	}
	asset.Width, _ = strconv.Atoi(info.Metadata[metaWidth])
	asset.Height, _ = strconv.Atoi(info.Metadata[metaHeight])
	if h := info.Metadata[metaBlurhash]; h != "" {
		asset.Blurhash = &h
	}
	return asset, nil
}

// ComputeBlurhash hashes an image without storing it.
func (s *Service) ComputeBlurhash(ctx context.Context, data []byte) (*BlurhashResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidInput)
	}

	info, err := imageproc.Probe(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	hash, err := s.blurhash(data)
	if err != nil {
		return nil, err
	}

	result := &BlurhashResult{
		Blurhash: hash,
		Width:    info.Width,
		Height:   info.Height,
	}
	if hash != nil {
		if c, err := blurhash.HashComponents(*hash); err == nil {
			result.Components = c.String()
		}
	}
	return result, nil
}

// Settings exposes the hasher configuration.
func (s *Service) Settings() blurhash.Settings {
	return s.hasher.Settings()
}

func (s *Service) blurhash(data []byte) (*string, error) {
	hash, err := s.hasher.Compute(data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract blurhash: %w", err)
	}
	if hash == "" {
		return nil, nil
	}
	return &hash, nil
}

// ParseDataURI decodes data:[<mediatype>][;base64],<data>.
func ParseDataURI(dataURI string) ([]byte, string, error) {
	content, ok := strings.CutPrefix(dataURI, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: not a data URI", ErrInvalidInput)
	}

	header, encoded, ok := strings.Cut(content, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: data URI is missing the comma separator", ErrInvalidInput)
	}

	parts := strings.Split(header, ";")
	contentType := "text/plain"
	if parts[0] != "" {
		contentType = parts[0]
	}
	isBase64 := false
	for _, part := range parts[1:] {
		if part == "base64" {
			isBase64 = true
		}
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("%w: bad base64 payload: %v", ErrInvalidInput, err)
		}
		return data, contentType, nil
	}

	decoded, err := url.PathUnescape(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("%w: bad percent-encoding: %v", ErrInvalidInput, err)
	}
	return []byte(decoded), contentType, nil
}
