package http

import (
	"encoding/json"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/hackclub/blurhash/internal/assets"
	"github.com/hackclub/blurhash/internal/config"
	"github.com/hackclub/blurhash/internal/html"
)

// Version is reported by /healthz.
var Version = "dev"

type Server struct {
	config          *config.Config
	logger          zerolog.Logger
	assetHandler    *assets.Handler
	htmlTransformer *html.Transformer
}

func NewServer(cfg *config.Config, logger zerolog.Logger, assetHandler *assets.Handler, htmlTransformer *html.Transformer) *Server {
	return &Server{
		config:          cfg,
		logger:          logger,
		assetHandler:    assetHandler,
		htmlTransformer: htmlTransformer,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{s.config.AppBaseURL, "http://localhost:3000"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", s.assetHandler.HandleConfig)

		r.Post("/assets", s.assetHandler.HandleUpload)
		r.Post("/assets/batch", s.assetHandler.HandleBatch)
		r.Get("/assets/*", s.assetHandler.HandleGetAsset)

		r.Post("/blurhash", s.assetHandler.HandleBlurhash)
		r.Get("/blurhash/{hash}", s.assetHandler.HandleRender)

		r.Post("/html/transform", s.HandleHTMLTransform)
	})

	if s.config.StorageDir != "" {
		r.Handle("/files/*", http.StripPrefix("/files/", s.fileServer()))
	}

	return r
}

// fileServer serves the local store. Metadata sidecars stay private.
func (s *Server) fileServer() http.Handler {
	files := http.FileServer(http.Dir(s.config.StorageDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if path.Ext(r.URL.Path) == ".json" {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("ip", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("request")
	})
}

func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   Version,
	})
}

func (s *Server) HandleHTMLTransform(w http.ResponseWriter, r *http.Request) {
	var req html.TransformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.HTML == "" {
		http.Error(w, "HTML content required", http.StatusBadRequest)
		return
	}

	result, err := s.htmlTransformer.Transform(r.Context(), &req)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to transform HTML")
		http.Error(w, "Failed to transform HTML", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
