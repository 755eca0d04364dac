package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackclub/blurhash/internal/assets"
	"github.com/hackclub/blurhash/internal/blurhash"
	"github.com/hackclub/blurhash/internal/config"
	"github.com/hackclub/blurhash/internal/html"
	"github.com/hackclub/blurhash/internal/imageproc"
	"github.com/hackclub/blurhash/internal/storage"
)

func newTestServer(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		AppBaseURL:    "http://localhost:5173",
		StorageDir:    t.TempDir(),
		PublicBaseURL: "http://localhost:8080/files",
	}

	store, err := storage.NewFileStore(cfg.StorageDir, cfg.PublicBaseURL)
	require.NoError(t, err)

	opts := blurhash.DefaultOptions()
	opts.Backend = imageproc.BackendImaging
	hasher, err := blurhash.New(opts)
	require.NoError(t, err)

	svc := assets.NewService(store, hasher, assets.Options{AutoExtract: true}, zerolog.Nop())
	srv := NewServer(cfg, zerolog.Nop(), assets.NewHandler(svc, zerolog.Nop()), html.NewTransformer(svc, cfg.PublicBaseURL))
	return srv.Routes(), cfg
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestConfigEndpoint(t *testing.T) {
	router, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"backend":"imaging","resizeTo":100,"components":"4x3","onError":"warn"}`, rec.Body.String())
}

func TestUploadIsServedFromLocalStore(t *testing.T) {
	router, _ := newTestServer(t)

	img := image.NewNRGBA(image.Rect(0, 0, 12, 12))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetNRGBA(3, 3, color.NRGBA{R: 10, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	uri := `{"dataUri":"data:image/png;base64,` + base64.StdEncoding.EncodeToString(buf.Bytes()) + `"}`

	req := httptest.NewRequest(http.MethodPost, "/api/assets", bytes.NewBufferString(uri))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var asset assets.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &asset))
	require.NotNil(t, asset.Blurhash)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/"+asset.Key, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, buf.Bytes(), rec.Body.Bytes())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/"+asset.Key+".meta.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	router, cfg := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/blurhash", nil)
	req.Header.Set("Origin", cfg.AppBaseURL)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, cfg.AppBaseURL, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHTMLTransform(t *testing.T) {
	router, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/html/transform", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/html/transform",
		bytes.NewBufferString(`{"html":"<img src=\"/local.png\">"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var res html.TransformResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Stats.ImagesFound)
	assert.Equal(t, `<img src="/local.png">`, res.HTML)
}
