package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackclub/blurhash/internal/manifest"
)

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 15), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestCommands(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	dir := t.TempDir()
	img := filepath.Join(dir, "photo.png")
	writeTestPNG(t, img)

	out := execute(t, "compute", "--backend", "imaging", "--on-error", "fail", "--components", "3x3", img)
	hash, path, ok := strings.Cut(strings.TrimSpace(out), "\t")
	require.True(t, ok, out)
	assert.Equal(t, img, path)
	assert.Len(t, hash, 4+2*3*3)

	placeholder := filepath.Join(dir, "placeholder.jpg")
	execute(t, "render", hash, "-o", placeholder, "--width", "40", "--height", "20")
	data, err := os.ReadFile(placeholder)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])

	execute(t, "scan", "--backend", "imaging", "--components", "3x3", dir)
	m, err := manifest.Load(filepath.Join(dir, manifest.FileName))
	require.NoError(t, err)
	require.Contains(t, m.Assets, "photo.png")
	require.NotNil(t, m.Assets["photo.png"].Blurhash)
	assert.Equal(t, hash, *m.Assets["photo.png"].Blurhash)
	assert.Equal(t, "3x3", m.Settings.Components)
}

func TestLoadPrevious(t *testing.T) {
	dir := t.TempDir()
	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	assert.Nil(t, loadPrevious(filepath.Join(dir, "missing.json"), logger))
	assert.Empty(t, logs.String())

	broken := filepath.Join(dir, manifest.FileName)
	require.NoError(t, os.WriteFile(broken, []byte("{not json"), 0o644))
	assert.Nil(t, loadPrevious(broken, logger))
	assert.Contains(t, logs.String(), "ignoring unreadable manifest")
}
