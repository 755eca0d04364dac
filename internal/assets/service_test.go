package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackclub/blurhash/internal/blurhash"
	"github.com/hackclub/blurhash/internal/imageproc"
	"github.com/hackclub/blurhash/internal/storage"
)

func testPNG(t *testing.T, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: shade, B: uint8(y * 255 / h), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type failingExtractor struct{}

func (failingExtractor) Open([]byte) (imageproc.Image, error) {
	return nil, errors.New("extractor exploded")
}

type serviceOpts struct {
	autoExtract bool
	policy      blurhash.Policy
	extractor   imageproc.Extractor
}

func newTestService(t *testing.T, o serviceOpts) (*Service, *storage.FileStore) {
	t.Helper()

	store, err := storage.NewFileStore(t.TempDir(), "http://cdn.test")
	require.NoError(t, err)

	opts := blurhash.DefaultOptions()
	opts.Backend = imageproc.BackendImaging
	opts.Extractor = o.extractor
	opts.OnError = o.policy
	hasher, err := blurhash.New(opts)
	require.NoError(t, err)

	svc := NewService(store, hasher, Options{AutoExtract: o.autoExtract, Workers: 2}, zerolog.Nop())
	return svc, store
}

func TestProcessFromDataStoresBlurhash(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, serviceOpts{autoExtract: true, policy: blurhash.PolicyFail})
	data := testPNG(t, 64, 32, 90)

	asset, err := svc.ProcessFromData(ctx, &ProcessInput{Data: data, ContentType: "image/png"})
	require.NoError(t, err)
	require.NotNil(t, asset.Blurhash)
	assert.Len(t, *asset.Blurhash, 28)
	assert.Equal(t, 64, asset.Width)
	assert.Equal(t, 32, asset.Height)
	assert.Equal(t, "image/png", asset.MIME)
	assert.False(t, asset.Deduped)
	assert.Contains(t, asset.Hash, "sha256:")
	assert.Contains(t, asset.URL, "http://cdn.test/")

	info, err := store.Head(ctx, asset.Key)
	require.NoError(t, err)
	assert.Equal(t, *asset.Blurhash, info.Metadata["blurhash"])
	assert.Equal(t, "64", info.Metadata["width"])

	again, err := svc.ProcessFromData(ctx, &ProcessInput{Data: data})
	require.NoError(t, err)
	assert.True(t, again.Deduped)
	assert.Equal(t, asset.Key, again.Key)
	require.NotNil(t, again.Blurhash)
	assert.Equal(t, *asset.Blurhash, *again.Blurhash)
}

func TestProcessFromDataWithoutAutoExtract(t *testing.T) {
	svc, _ := newTestService(t, serviceOpts{autoExtract: false})

	asset, err := svc.ProcessFromData(context.Background(), &ProcessInput{Data: testPNG(t, 8, 8, 0)})
	require.NoError(t, err)
	assert.Nil(t, asset.Blurhash)

	raw, err := json.Marshal(asset)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"blurhash":null`)
}

func TestProcessFromDataRejectsNonImages(t *testing.T) {
	svc, _ := newTestService(t, serviceOpts{autoExtract: true})

	_, err := svc.ProcessFromData(context.Background(), &ProcessInput{Data: []byte("just some text")})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = svc.ProcessFromData(context.Background(), &ProcessInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProcessFromDataErrorPolicy(t *testing.T) {
	ctx := context.Background()
	data := testPNG(t, 16, 16, 10)

	warn, _ := newTestService(t, serviceOpts{autoExtract: true, policy: blurhash.PolicyWarn, extractor: failingExtractor{}})
	asset, err := warn.ProcessFromData(ctx, &ProcessInput{Data: data})
	require.NoError(t, err)
	assert.Nil(t, asset.Blurhash)

	fail, _ := newTestService(t, serviceOpts{autoExtract: true, policy: blurhash.PolicyFail, extractor: failingExtractor{}})
	_, err = fail.ProcessFromData(ctx, &ProcessInput{Data: data})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extractor exploded")
}

func TestGetAsset(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, serviceOpts{autoExtract: true, policy: blurhash.PolicyFail})

	_, err := svc.GetAsset(ctx, "missing.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.Upload(ctx, "plain.png", testPNG(t, 4, 4, 0), "image/png", nil)
	require.NoError(t, err)
	asset, err := svc.GetAsset(ctx, "plain.png")
	require.NoError(t, err)
	assert.Nil(t, asset.Blurhash)

	_, err = store.Upload(ctx, "empty.png", testPNG(t, 4, 4, 0), "image/png", map[string]string{"blurhash": ""})
	require.NoError(t, err)
	asset, err = svc.GetAsset(ctx, "empty.png")
	require.NoError(t, err)
	assert.Nil(t, asset.Blurhash)
}

func TestProcessBatchKeepsOrder(t *testing.T) {
	svc, _ := newTestService(t, serviceOpts{autoExtract: true, policy: blurhash.PolicyFail})

	first := testPNG(t, 10, 10, 1)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t, 12, 6, 2))

	results := svc.ProcessBatch(context.Background(), []BatchInput{
		{Data: first, ContentType: "image/png"},
		{},
		{DataURI: uri},
		{DataURI: "data:text/plain,hello"},
	})
	require.Len(t, results, 4)

	for i, res := range results {
		assert.Equal(t, i, res.Index)
	}
	require.NotNil(t, results[0].Asset)
	assert.Equal(t, 10, results[0].Asset.Width)
	assert.NotEmpty(t, results[1].Error)
	require.NotNil(t, results[2].Asset)
	assert.Equal(t, 12, results[2].Asset.Width)
	assert.Equal(t, 6, results[2].Asset.Height)
	assert.NotEmpty(t, results[3].Error)
}

func TestComputeBlurhash(t *testing.T) {
	svc, _ := newTestService(t, serviceOpts{policy: blurhash.PolicyFail})

	res, err := svc.ComputeBlurhash(context.Background(), testPNG(t, 40, 20, 50))
	require.NoError(t, err)
	require.NotNil(t, res.Blurhash)
	assert.Equal(t, "4x3", res.Components)
	assert.Equal(t, 40, res.Width)
	assert.Equal(t, 20, res.Height)

	_, err = svc.ComputeBlurhash(context.Background(), []byte("nope"))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestParseDataURI(t *testing.T) {
	data, contentType, err := ParseDataURI("data:image/gif;base64,R0lGODlh")
	require.NoError(t, err)
	assert.Equal(t, "image/gif", contentType)
	assert.Equal(t, []byte("GIF89a"), data)

	data, contentType, err = ParseDataURI("data:,a%20b")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", contentType)
	assert.Equal(t, "a b", string(data))

	_, _, err = ParseDataURI("image/png;base64,AAAA")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = ParseDataURI("data:image/png;base64")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = ParseDataURI("data:image/png;base64,!!!")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
