package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackclub/blurhash/internal/blurhash"
	"github.com/hackclub/blurhash/internal/imageproc"
	"github.com/hackclub/blurhash/internal/storage"
	"github.com/hackclub/blurhash/internal/util"
)

const (
	maxBatchSize     = 20
	maxMultipartMem  = 32 << 20
	placeholderCache = "public, max-age=31536000, immutable"
)

type Handler struct {
	service *Service
	logger  zerolog.Logger
}

func NewHandler(service *Service, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// HandleUpload stores a multipart "file" or a JSON {url|dataUri} body.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if isMultipart(r) {
		data, err := h.readFormFile(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		asset, err := h.service.ProcessFromData(ctx, &ProcessInput{
			Data:        data,
			ContentType: util.DetectContentType(data),
			SourceURL:   "upload",
		})
		if err != nil {
			h.writeError(w, err, "failed to process uploaded file")
			return
		}

		h.writeJSONResponse(w, asset)
		return
	}

	var req struct {
		URL     string `json:"url,omitempty"`
		DataURI string `json:"dataUri,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	var asset *Asset
	var err error

	switch {
	case req.URL != "":
		asset, err = h.service.ProcessFromURL(ctx, req.URL)
	case req.DataURI != "":
		asset, err = h.service.ProcessFromDataURI(ctx, req.DataURI)
	default:
		http.Error(w, "Either 'url' or 'dataUri' must be provided", http.StatusBadRequest)
		return
	}

	if err != nil {
		h.writeError(w, err, "failed to process image")
		return
	}

	h.writeJSONResponse(w, asset)
}

// HandleBatch processes up to maxBatchSize items. Per-item failures are
// reported inline.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []BatchInput `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if len(req.Items) == 0 {
		http.Error(w, "No items provided", http.StatusBadRequest)
		return
	}
	if len(req.Items) > maxBatchSize {
		http.Error(w, fmt.Sprintf("Batch size too large (max %d)", maxBatchSize), http.StatusBadRequest)
		return
	}

	results := h.service.ProcessBatch(r.Context(), req.Items)

	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
	}

	h.writeJSONResponse(w, map[string]interface{}{
		"results": results,
		"count":   len(results),
		"failed":  failed,
	})
}

// HandleGetAsset returns stored metadata, blurhash included, for the key
// after /api/assets/.
func (h *Handler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" {
		http.Error(w, "Asset key required", http.StatusBadRequest)
		return
	}

	asset, err := h.service.GetAsset(r.Context(), key)
	if err != nil {
		h.writeError(w, err, "failed to look up asset")
		return
	}

	h.writeJSONResponse(w, asset)
}

// HandleBlurhash computes the blurhash of a multipart "file" without
// storing it.
func (h *Handler) HandleBlurhash(w http.ResponseWriter, r *http.Request) {
	var data []byte
	var err error
	if isMultipart(r) {
		data, err = h.readFormFile(r)
	} else {
		data, err = io.ReadAll(io.LimitReader(r.Body, util.MaxFileSize+1))
		if err == nil && len(data) > util.MaxFileSize {
			err = util.ErrTooLarge
		}
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.ComputeBlurhash(r.Context(), data)
	if err != nil {
		h.writeError(w, err, "failed to compute blurhash")
		return
	}

	h.writeJSONResponse(w, result)
}

// HandleRender draws the placeholder for {hash}.jpg; the hash may be
// percent-encoded. width and height default to 32 and are clamped to [1, 512].
func (h *Handler) HandleRender(w http.ResponseWriter, r *http.Request) {
	hash := strings.TrimSuffix(chi.URLParam(r, "hash"), ".jpg")
	if unescaped, err := url.PathUnescape(hash); err == nil {
		hash = unescaped
	}
	if hash == "" {
		http.Error(w, "Blurhash required", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	width := queryInt(query.Get("width"), 32)
	height := queryInt(query.Get("height"), 32)
	punch := queryInt(query.Get("punch"), 1)

	img, err := blurhash.Render(hash, width, height, punch)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := imageproc.EncodeJPEG(img, 0)
	if err != nil {
		h.logger.Error().Err(err).Str("hash", hash).Msg("failed to encode placeholder")
		http.Error(w, "Failed to encode placeholder", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", placeholderCache)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// HandleConfig reports the resolved blurhash settings.
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, h.service.Settings())
}

func (h *Handler) readFormFile(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxMultipartMem); err != nil {
		h.logger.Error().Err(err).Msg("failed to parse multipart form")
		return nil, errors.New("failed to parse form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("no file provided")
	}
	defer file.Close()

	if header.Size > util.MaxFileSize {
		return nil, util.ErrTooLarge
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("failed to read file")
	}
	return data, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg(msg)
	} else {
		h.logger.Warn().Err(err).Int("status", status).Msg(msg)
	}
	http.Error(w, err.Error(), status)
}

func (h *Handler) writeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, util.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidImage), errors.Is(err, util.ErrPrivateAddress), errors.Is(err, util.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, imageproc.ErrDecode), errors.Is(err, blurhash.ErrUnsupportedLayout):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func isMultipart(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data")
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
