package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hackclub/blurhash/internal/assets"
	"github.com/hackclub/blurhash/internal/blurhash"
	"github.com/hackclub/blurhash/internal/config"
	"github.com/hackclub/blurhash/internal/html"
	httphandler "github.com/hackclub/blurhash/internal/http"
	"github.com/hackclub/blurhash/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("invalid LOG_LEVEL")
	}
	logger = logger.Level(level)
	logger.Info().Msg("starting blurhash.hackclub.com server")

	hasherOpts, err := cfg.HasherOptions(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid blurhash configuration")
	}
	hasher, err := blurhash.New(hasherOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize blurhash extractor")
	}

	settings := hasher.Settings()
	logger.Info().
		Str("backend", settings.Backend).
		Int("resize_to", settings.ResizeTo).
		Str("components", settings.Components).
		Str("on_error", settings.OnError).
		Bool("auto_extract", cfg.Blurhash.AutoExtract).
		Msg("blurhash configured")

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	assetService := assets.NewService(store, hasher, assets.Options{
		AutoExtract: cfg.Blurhash.AutoExtract,
		Workers:     cfg.BatchWorkers,
	}, logger)
	assetHandler := assets.NewHandler(assetService, logger)

	htmlTransformer := html.NewTransformer(assetService, store.GetPublicURL(""))

	server := httphandler.NewServer(cfg, logger, assetHandler, htmlTransformer)

	httpServer := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        server.Routes(),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}

// newStore picks R2 when credentials are present, the local filesystem
// otherwise.
func newStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.Store, error) {
	if cfg.UseR2() {
		logger.Info().Str("bucket", cfg.R2Bucket).Msg("using R2 storage")
		return storage.NewR2Client(
			ctx,
			cfg.R2AccessKeyID,
			cfg.R2SecretAccessKey,
			cfg.R2Bucket,
			cfg.R2S3Endpoint,
			cfg.R2PublicBaseURL,
		)
	}

	dir := cfg.StorageDir
	if dir == "" {
		dir = "./data"
		cfg.StorageDir = dir
	}
	logger.Warn().Str("dir", dir).Msg("R2 not configured, using local filesystem storage")
	return storage.NewFileStore(dir, cfg.PublicBaseURL)
}
