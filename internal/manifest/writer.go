package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hackclub/blurhash/internal/blurhash"
)

// New creates an empty manifest stamped with the hasher settings.
func New(settings blurhash.Settings) *Manifest {
	return &Manifest{
		Version:     SupportedVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Settings:    settings,
		Assets:      make(map[string]Asset),
	}
}

// ComputeStats recalculates aggregate statistics from assets.
func (m *Manifest) ComputeStats() {
	var s Stats
	s.TotalAssets = len(m.Assets)
	for _, a := range m.Assets {
		s.TotalInputBytes += a.Size
		if a.Blurhash != nil {
			s.WithBlurhash++
		}
		if a.Error != "" {
			s.Failed++
		}
	}
	m.Stats = s
}

// Reusable reports whether prev can stand in for an asset with the given
// content hash under the current settings.
func (m *Manifest) Reusable(prev *Manifest, key, contentHash string) (Asset, bool) {
	if prev == nil || prev.Settings != m.Settings {
		return Asset{}, false
	}
	a, ok := prev.Assets[key]
	if !ok || a.ContentHash != contentHash || a.Error != "" {
		return Asset{}, false
	}
	return a, true
}

// WriteJSON serializes the manifest with stable ordering. The file is
// replaced atomically.
func WriteJSON(m *Manifest, path string) error {
	m.ComputeStats()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads a manifest written by WriteJSON.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Version != SupportedVersion {
		return nil, fmt.Errorf("manifest %s has version %d, want %d", path, m.Version, SupportedVersion)
	}
	if m.Assets == nil {
		m.Assets = make(map[string]Asset)
	}
	return &m, nil
}
