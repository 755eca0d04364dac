package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackclub/blurhash/internal/blurhash"
)

func strPtr(s string) *string { return &s }

var testSettings = blurhash.Settings{Backend: "imaging", ResizeTo: 100, Components: "4x3", OnError: "warn"}

func TestWriteAndLoad(t *testing.T) {
	m := New(testSettings)
	m.Assets["a/b.png"] = Asset{
		Width: 10, Height: 5, Format: "png", Size: 100,
		ContentHash: "0123456789abcdef", AspectRatio: 2,
		Blurhash: strPtr("LEHV6nWB2yk8pyo0adR*.7kCMdnj"),
	}
	m.Assets["c.jpg"] = Asset{Format: "jpeg", Size: 50, Error: "decode failed"}

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, WriteJSON(m, path))

	assert.Equal(t, Stats{TotalAssets: 2, WithBlurhash: 1, Failed: 1, TotalInputBytes: 150}, m.Stats)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, testSettings, loaded.Settings)
	require.Contains(t, loaded.Assets, "a/b.png")
	require.NotNil(t, loaded.Assets["a/b.png"].Blurhash)
	assert.Equal(t, "LEHV6nWB2yk8pyo0adR*.7kCMdnj", *loaded.Assets["a/b.png"].Blurhash)
	assert.Nil(t, loaded.Assets["c.jpg"].Blurhash)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"blurhash": null`)
}

func TestLoadRejectsOtherVersions(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 7, "assets": {}}`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestReusable(t *testing.T) {
	prev := New(testSettings)
	prev.Assets["x.png"] = Asset{ContentHash: "aaaa", Blurhash: strPtr("hash")}
	prev.Assets["bad.png"] = Asset{ContentHash: "bbbb", Error: "boom"}

	m := New(testSettings)

	a, ok := m.Reusable(prev, "x.png", "aaaa")
	assert.True(t, ok)
	assert.Equal(t, "hash", *a.Blurhash)

	_, ok = m.Reusable(prev, "x.png", "cccc")
	assert.False(t, ok)
	_, ok = m.Reusable(prev, "bad.png", "bbbb")
	assert.False(t, ok)
	_, ok = m.Reusable(nil, "x.png", "aaaa")
	assert.False(t, ok)

	other := New(blurhash.Settings{Backend: "vips", ResizeTo: 100, Components: "4x3", OnError: "warn"})
	_, ok = other.Reusable(prev, "x.png", "aaaa")
	assert.False(t, ok)
}
