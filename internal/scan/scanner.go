// Package scan computes blurhashes for a directory tree and records them in
// a manifest.
package scan

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hackclub/blurhash/internal/blurhash"
	"github.com/hackclub/blurhash/internal/imageproc"
	"github.com/hackclub/blurhash/internal/manifest"
	"github.com/hackclub/blurhash/internal/util"
)

const contentHashLen = 16

type Config struct {
	Dir     string
	Workers int
	// Previous entries are reused when content and settings are unchanged.
	Previous *manifest.Manifest
	Logger   zerolog.Logger
}

type Scanner struct {
	cfg    Config
	hasher *blurhash.Hasher
	logger zerolog.Logger
}

func New(hasher *blurhash.Hasher, cfg Config) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Scanner{
		cfg:    cfg,
		hasher: hasher,
		logger: cfg.Logger.With().Str("component", "scan").Logger(),
	}
}

type result struct {
	key    string
	asset  manifest.Asset
	reused bool
	err    error
}

// Run scans the directory and hashes every image with a bounded worker
// pool. Per-image failures are recorded in the manifest; Run fails only
// when the walk fails or every image failed.
func (s *Scanner) Run(ctx context.Context) (*manifest.Manifest, error) {
	sources, err := ScanImages(s.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no images found in %s", s.cfg.Dir)
	}

	s.logger.Info().Int("images", len(sources)).Int("workers", s.cfg.Workers).Msg("scanning")

	m := manifest.New(s.hasher.Settings())
	results := make([]result, len(sources))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.Workers)

	for i, src := range sources {
		wg.Add(1)
		go func(idx int, src Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results[idx] = result{key: src.RelPath, err: err}
				return
			}
			results[idx] = s.process(m, src)
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var failed, reused int
	for _, r := range results {
		m.Assets[r.key] = r.asset
		if r.reused {
			reused++
		}
		if r.err != nil {
			failed++
			s.logger.Error().Err(r.err).Str("path", r.key).Msg("failed to process image")
		}
	}

	if failed == len(sources) {
		return nil, fmt.Errorf("all %d images failed to process", failed)
	}
	if failed > 0 {
		s.logger.Warn().Int("failed", failed).Int("total", len(sources)).Msg("some images had errors")
	}
	s.logger.Info().Int("total", len(sources)).Int("reused", reused).Msg("scan complete")

	m.ComputeStats()
	return m, nil
}

// Update recomputes the entry for one file in m, or drops it when the file
// is gone.
func (s *Scanner) Update(m *manifest.Manifest, path string) error {
	src, ok, err := NewSource(s.cfg.Dir, path)
	if os.IsNotExist(err) {
		key, relErr := relKey(s.cfg.Dir, path)
		if relErr != nil {
			return relErr
		}
		delete(m.Assets, key)
		return nil
	}
	if err != nil || !ok {
		return err
	}

	r := s.process(m, src)
	m.Assets[r.key] = r.asset
	m.ComputeStats()
	return r.err
}

func (s *Scanner) process(m *manifest.Manifest, src Source) result {
	r := result{key: src.RelPath}
	r.asset = manifest.Asset{Format: src.Format, Size: src.Size}

	data, err := os.ReadFile(src.AbsPath)
	if err != nil {
		r.err = err
		r.asset.Error = err.Error()
		return r
	}
	r.asset.Size = int64(len(data))
	r.asset.ContentHash = util.ContentHash(data, contentHashLen)

	prev := s.cfg.Previous
	if prev == nil {
		prev = m
	}
	if cached, ok := m.Reusable(prev, src.RelPath, r.asset.ContentHash); ok {
		r.asset = cached
		r.reused = true
		return r
	}

	info, err := imageproc.Probe(data)
	if err != nil {
		r.err = err
		r.asset.Error = err.Error()
		return r
	}
	r.asset.Width = info.Width
	r.asset.Height = info.Height
	if info.Height > 0 {
		r.asset.AspectRatio = float64(info.Width) / float64(info.Height)
	}

	hash, err := s.hasher.Compute(data)
	if err != nil {
		r.err = err
		r.asset.Error = err.Error()
		return r
	}
	if hash != "" {
		r.asset.Blurhash = &hash
	}
	return r
}
