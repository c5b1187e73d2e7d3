package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port               int      `envconfig:"PORT" default:"8080"`
	LogLevel           string   `envconfig:"LOG_LEVEL" default:"info"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`

	// Yalidine
	YalidineAPIID         string        `envconfig:"YALIDINE_API_ID"`
	YalidineAPIToken      string        `envconfig:"YALIDINE_API_TOKEN"`
	YalidineBaseURL       string        `envconfig:"YALIDINE_BASE_URL" default:"https://api.yalidine.app/v1"`
	YalidineTimeout       time.Duration `envconfig:"YALIDINE_TIMEOUT" default:"20s"`
	YalidineRatePerSecond float64       `envconfig:"YALIDINE_RATE_PER_SECOND" default:"5"`
	YalidineBurst         int           `envconfig:"YALIDINE_BURST" default:"5"`
	YalidineFromWilaya    string        `envconfig:"YALIDINE_FROM_WILAYA"`
	YalidineUseMock       bool          `envconfig:"YALIDINE_USE_MOCK" default:"false"`

	// Cache
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	RedisURL string        `envconfig:"REDIS_URL"`

	// Retry
	RetryAttempts       int           `envconfig:"RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay      time.Duration `envconfig:"RETRY_BASE_DELAY" default:"1s"`
	RetryAttemptTimeout time.Duration `envconfig:"RETRY_ATTEMPT_TIMEOUT" default:"15s"`

	// Jobs
	WarmupSchedule string `envconfig:"WARMUP_SCHEDULE"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"yalidine-shipping"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables. Variables from a
// .env file in the working directory are applied first without overriding
// the real environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that envconfig cannot express.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("config: RETRY_ATTEMPTS must be at least 1")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("config: CACHE_TTL must be positive")
	}
	if c.RedisURL != "" && !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
		return fmt.Errorf("config: REDIS_URL must use redis:// or rediss://")
	}
	return nil
}

// YalidineConfigured reports whether carrier credentials are set.
func (c *Config) YalidineConfigured() bool {
	return c.YalidineAPIID != "" && c.YalidineAPIToken != ""
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("yalidine.configured", c.YalidineConfigured()),
		attribute.Bool("yalidine.mock", c.YalidineUseMock),
		attribute.Bool("cache.redis", c.RedisURL != ""),
	}
}
