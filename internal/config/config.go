package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/hackclub/blurhash/internal/blurhash"
	"github.com/hackclub/blurhash/internal/imageproc"
)

type Config struct {
	Port       string `yaml:"port"`
	AppBaseURL string `yaml:"app_base_url"`
	LogLevel   string `yaml:"log_level"`

	// StorageDir selects the filesystem store when set; PublicBaseURL is
	// the URL it is served under.
	StorageDir    string `yaml:"storage_dir"`
	PublicBaseURL string `yaml:"public_base_url"`

	R2AccessKeyID     string `yaml:"-"`
	R2SecretAccessKey string `yaml:"-"`
	R2Bucket          string `yaml:"r2_bucket"`
	R2PublicBaseURL   string `yaml:"r2_public_base_url"`
	R2S3Endpoint      string `yaml:"r2_s3_endpoint"`

	BatchWorkers int `yaml:"batch_workers"`

	Blurhash Blurhash `yaml:"blurhash"`
}

// Blurhash holds the extraction settings as written in env or YAML.
type Blurhash struct {
	Backend     string `yaml:"backend"`
	OnError     string `yaml:"on_error"`
	ResizeTo    int    `yaml:"resize_to"`
	Components  string `yaml:"components"`
	AutoExtract bool   `yaml:"auto_extract"`
}

// Load reads .env files and the environment, then CONFIG_FILE if set.
func Load() (*Config, error) {
	// project root first, then the working directory
	godotenv.Load(filepath.Join("..", ".env"))
	godotenv.Load(".env")

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		AppBaseURL:        getEnv("APP_BASE_URL", "http://localhost:3000"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		StorageDir:        getEnv("STORAGE_DIR", ""),
		PublicBaseURL:     getEnv("PUBLIC_BASE_URL", "http://localhost:8080/files"),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:          getEnv("R2_BUCKET", "blurhash-assets"),
		R2PublicBaseURL:   getEnv("R2_PUBLIC_BASE_URL", "https://i.blurhash.hackclub.com"),
		R2S3Endpoint:      getEnv("R2_S3_ENDPOINT", ""),
		BatchWorkers:      getEnvInt("BATCH_WORKERS", 4),
		Blurhash: Blurhash{
			Backend:     getEnv("BLURHASH_BACKEND", "vips"),
			OnError:     getEnv("BLURHASH_ON_ERROR", "warn"),
			ResizeTo:    getEnvInt("BLURHASH_RESIZE_TO", blurhash.DefaultResizeTo),
			Components:  getEnv("BLURHASH_COMPONENTS", blurhash.DefaultComponents.String()),
			AutoExtract: getEnvBool("BLURHASH_AUTO_EXTRACT", true),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ApplyFile overlays the YAML file at path. Keys missing from the file keep
// their current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// UseR2 reports whether R2 credentials are configured and no local
// storage directory overrides them.
func (c *Config) UseR2() bool {
	return c.StorageDir == "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2S3Endpoint != ""
}

// HasherOptions resolves the blurhash settings. Unknown names are errors.
func (c *Config) HasherOptions(logger zerolog.Logger) (blurhash.Options, error) {
	return c.Blurhash.Options(logger)
}

func (b Blurhash) Options(logger zerolog.Logger) (blurhash.Options, error) {
	opts := blurhash.DefaultOptions()
	opts.Logger = logger

	backend, err := imageproc.ParseBackend(b.Backend)
	if err != nil {
		return opts, err
	}
	policy, err := blurhash.ParsePolicy(b.OnError)
	if err != nil {
		return opts, err
	}

	opts.Backend = backend
	opts.OnError = policy
	opts.ResizeTo = b.ResizeTo

	if b.Components != "" {
		components, err := blurhash.ParseComponents(b.Components)
		if err != nil {
			return opts, err
		}
		opts.Components = components
	}
	return opts, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
