package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackclub/blurhash/internal/blurhash"
	"github.com/hackclub/blurhash/internal/config"
)

var (
	version = "0.1.0"

	verbose    bool
	configFile string
	backend    string
	onError    string
	resizeTo   int
	components string
)

var rootCmd = &cobra.Command{
	Use:   "blurhash",
	Short: "Compute blurhash placeholders for images",
	Long: `blurhash computes compact blurhash placeholders for images.

Images are converted to sRGB, scaled to --resize-to pixels on each axis,
flattened onto black when they carry alpha and encoded with --components
horizontal and vertical components.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&configFile, "config", "", "YAML config file (overrides BLURHASH_* env)")
	flags.StringVar(&backend, "backend", "", "pixel extractor: vips or imaging")
	flags.StringVar(&onError, "on-error", "", "error policy: warn, fail or ignore")
	flags.IntVar(&resizeTo, "resize-to", -1, "edge length before encoding (0 disables resizing)")
	flags.StringVar(&components, "components", "", "component counts, e.g. 4x3, or auto")

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"blurhash %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// resolveSettings layers env, the config file and flags, in that order.
func resolveSettings(cmd *cobra.Command) (config.Blurhash, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Blurhash{}, err
	}
	if configFile != "" {
		if err := cfg.ApplyFile(configFile); err != nil {
			return config.Blurhash{}, err
		}
	}

	b := cfg.Blurhash
	flags := cmd.Flags()
	if flags.Changed("backend") {
		b.Backend = backend
	}
	if flags.Changed("on-error") {
		b.OnError = onError
	}
	if flags.Changed("resize-to") {
		b.ResizeTo = resizeTo
	}
	if flags.Changed("components") {
		b.Components = components
	}
	return b, nil
}

func newHasher(cmd *cobra.Command, logger zerolog.Logger) (*blurhash.Hasher, error) {
	settings, err := resolveSettings(cmd)
	if err != nil {
		return nil, err
	}
	opts, err := settings.Options(logger)
	if err != nil {
		return nil, err
	}
	return blurhash.New(opts)
}
