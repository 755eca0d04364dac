package manifest

import "github.com/hackclub/blurhash/internal/blurhash"

// FileName is the manifest written at the root of a scanned directory.
const FileName = "blurhash.manifest.json"

// SupportedVersion is the current schema version.
const SupportedVersion = 1

// Manifest maps image paths, relative to the scanned directory, to their
// placeholders.
type Manifest struct {
	Version     int               `json:"version"`
	GeneratedAt string            `json:"generated_at"`
	Settings    blurhash.Settings `json:"settings"`
	Assets      map[string]Asset  `json:"assets"`
	Stats       Stats             `json:"stats"`
}

// Asset describes one source image.
type Asset struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Format      string  `json:"format"`
	Size        int64   `json:"size"`
	ContentHash string  `json:"content_hash"` // first 16 hex chars of xxhash64
	AspectRatio float64 `json:"aspect_ratio"`
	// Blurhash is null when extraction failed or was skipped.
	Blurhash *string `json:"blurhash"`
	Error    string  `json:"error,omitempty"`
}

type Stats struct {
	TotalAssets     int   `json:"total_assets"`
	WithBlurhash    int   `json:"with_blurhash"`
	Failed          int   `json:"failed"`
	TotalInputBytes int64 `json:"total_input_bytes"`
}
