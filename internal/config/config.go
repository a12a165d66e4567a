package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port         string   `env:"PORT" envDefault:"8080"`
	DatabaseURL  string   `env:"DATABASE_URL"`
	DatabaseName string   `env:"DATABASE_NAME" envDefault:"todo"`
	CORSOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	BcryptCost   int      `env:"BCRYPT_COST" envDefault:"10"`
	OTelEndpoint string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	Tokens  TokenConfig
	Upload  UploadConfig
	Storage ObjectStorageConfig
	Log     LogConfig
}

// TokenConfig carries the signing keys and lifetimes for access and refresh tokens.
type TokenConfig struct {
	Issuer        string        `env:"JWT_ISSUER" envDefault:"todo-api"`
	AccessSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshSecret string        `env:"REFRESH_TOKEN_SECRET"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"240h"`
}

// UploadConfig controls where multipart files are staged before they are
// pushed to object storage.
type UploadConfig struct {
	Dir      string `env:"UPLOAD_DIR"`
	MaxBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
}

// ObjectStorageConfig describes the S3-compatible bucket holding user images.
// An empty Bucket disables uploads.
type ObjectStorageConfig struct {
	Bucket          string `env:"S3_BUCKET"`
	Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"S3_ENDPOINT"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	PublicBaseURL   string `env:"S3_PUBLIC_BASE_URL"`
	UsePathStyle    bool   `env:"S3_USE_PATH_STYLE"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Port = fallback(cfg.Port, "8080")
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.Tokens.AccessSecret = strings.TrimSpace(cfg.Tokens.AccessSecret)
	cfg.Tokens.RefreshSecret = strings.TrimSpace(cfg.Tokens.RefreshSecret)
	cfg.CORSOrigins = normalizeOrigins(cfg.CORSOrigins)
	cfg.Upload.Dir = fallback(cfg.Upload.Dir, os.TempDir())

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first missing or inconsistent setting.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Tokens.AccessSecret == "" {
		return errors.New("ACCESS_TOKEN_SECRET is required")
	}
	if c.Tokens.RefreshSecret == "" {
		return errors.New("REFRESH_TOKEN_SECRET is required")
	}
	if c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 {
		return errors.New("token expiry durations must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST %d out of range [4,31]", c.BcryptCost)
	}
	return nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func normalizeOrigins(in []string) []string {
	var out []string
	for _, part := range in {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
