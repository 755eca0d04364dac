package scan

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackclub/blurhash/internal/blurhash"
	"github.com/hackclub/blurhash/internal/imageproc"
)

func writePNG(t *testing.T, path string, w, h int, shade uint8) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: shade, G: uint8(x * 255 / w), B: uint8(y * 255 / h), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func countingHasher(t *testing.T, policy blurhash.Policy) (*blurhash.Hasher, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	opts := blurhash.DefaultOptions()
	opts.Backend = imageproc.BackendImaging
	opts.OnError = policy
	opts.Encode = func(w, h int, pix []byte, x, y int) (string, error) {
		calls.Add(1)
		return blurhash.Encode(w, h, pix, x, y)
	}
	h, err := blurhash.New(opts)
	require.NoError(t, err)
	return h, &calls
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 20, 10, 10)
	writePNG(t, filepath.Join(dir, "nested", "b.png"), 8, 16, 200)
	writePNG(t, filepath.Join(dir, ".cache", "hidden.png"), 4, 4, 0)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("not a jpeg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	return dir
}

func TestScanImages(t *testing.T) {
	dir := fixtureDir(t)

	sources, err := ScanImages(dir)
	require.NoError(t, err)

	var paths []string
	for _, s := range sources {
		paths = append(paths, s.RelPath)
	}
	assert.ElementsMatch(t, []string{"a.png", "nested/b.png", "broken.jpg"}, paths)
	for _, s := range sources {
		if s.RelPath == "broken.jpg" {
			assert.Equal(t, "jpeg", s.Format)
		}
	}
}

func TestRun(t *testing.T) {
	dir := fixtureDir(t)
	hasher, calls := countingHasher(t, blurhash.PolicyFail)

	m, err := New(hasher, Config{Dir: dir, Workers: 2, Logger: zerolog.Nop()}).Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())

	require.Len(t, m.Assets, 3)
	a := m.Assets["a.png"]
	require.NotNil(t, a.Blurhash)
	assert.Len(t, *a.Blurhash, 28)
	assert.Equal(t, 20, a.Width)
	assert.Equal(t, 10, a.Height)
	assert.InDelta(t, 2.0, a.AspectRatio, 1e-9)
	assert.Len(t, a.ContentHash, 16)

	broken := m.Assets["broken.jpg"]
	assert.Nil(t, broken.Blurhash)
	assert.NotEmpty(t, broken.Error)

	assert.Equal(t, 3, m.Stats.TotalAssets)
	assert.Equal(t, 2, m.Stats.WithBlurhash)
	assert.Equal(t, 1, m.Stats.Failed)
	assert.Equal(t, hasher.Settings(), m.Settings)
}

func TestRunReusesPreviousManifest(t *testing.T) {
	dir := fixtureDir(t)
	hasher, calls := countingHasher(t, blurhash.PolicyFail)

	first, err := New(hasher, Config{Dir: dir, Logger: zerolog.Nop()}).Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())

	writePNG(t, filepath.Join(dir, "a.png"), 20, 10, 99)

	second, err := New(hasher, Config{Dir: dir, Previous: first, Logger: zerolog.Nop()}).Run(context.Background())
	require.NoError(t, err)
	// only the rewritten file is hashed again
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, *first.Assets["nested/b.png"].Blurhash, *second.Assets["nested/b.png"].Blurhash)
	assert.NotEqual(t, first.Assets["a.png"].ContentHash, second.Assets["a.png"].ContentHash)
}

func TestRunFailures(t *testing.T) {
	hasher, _ := countingHasher(t, blurhash.PolicyFail)

	_, err := New(hasher, Config{Dir: t.TempDir()}).Run(context.Background())
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.png"), []byte("junk"), 0o644))
	_, err = New(hasher, Config{Dir: dir}).Run(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(hasher, Config{Dir: fixtureDir(t)}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUpdate(t *testing.T) {
	dir := fixtureDir(t)
	hasher, _ := countingHasher(t, blurhash.PolicyFail)
	s := New(hasher, Config{Dir: dir, Logger: zerolog.Nop()})

	m, err := s.Run(context.Background())
	require.NoError(t, err)

	added := filepath.Join(dir, "c.png")
	writePNG(t, added, 6, 6, 50)
	require.NoError(t, s.Update(m, added))
	require.Contains(t, m.Assets, "c.png")
	assert.NotNil(t, m.Assets["c.png"].Blurhash)
	assert.Equal(t, 4, m.Stats.TotalAssets)

	require.NoError(t, os.Remove(added))
	require.NoError(t, s.Update(m, added))
	assert.NotContains(t, m.Assets, "c.png")

	require.NoError(t, s.Update(m, filepath.Join(dir, "notes.txt")))
	assert.NotContains(t, m.Assets, "notes.txt")
}
