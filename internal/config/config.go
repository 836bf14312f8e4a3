package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Log       LogConfig       `mapstructure:"log"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
}

type APIConfig struct {
	Addr         string        `mapstructure:"addr"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RateLimitConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Capacity      int           `mapstructure:"capacity"`
	Window        time.Duration `mapstructure:"window"`
	UserIDHeader  string        `mapstructure:"user_id_header"`
	CostUnitBytes int64         `mapstructure:"cost_unit_bytes"`
}

type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// DatabaseConfig selects the run store. An empty DSN keeps runs in memory.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type TracingConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	Exporter     string `mapstructure:"exporter"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

type WebhookConfig struct {
	Secret      string        `mapstructure:"secret"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PipelineConfig struct {
	Overwrite bool `mapstructure:"overwrite"`
}

var defaults = map[string]any{
	"api.addr":                   ":8080",
	"api.max_body_bytes":         int64(32 << 20),
	"api.read_timeout":           15 * time.Second,
	"api.write_timeout":          60 * time.Second,
	"rate_limit.enabled":         false,
	"rate_limit.redis_addr":      "localhost:6379",
	"rate_limit.redis_db":        0,
	"rate_limit.capacity":        60,
	"rate_limit.window":          time.Minute,
	"rate_limit.user_id_header":  "X-User-ID",
	"rate_limit.cost_unit_bytes": 1 << 20,
	"storage.endpoint":           "localhost:9000",
	"storage.access_key":         "minioadmin",
	"storage.secret_key":         "minioadmin",
	"storage.bucket":             "pixelpost",
	"storage.use_ssl":            false,
	"storage.region":             "us-east-1",
	"database.dsn":               "",
	"tracing.service_name":       "pixelpost",
	"tracing.exporter":           "none",
	"tracing.otlp_insecure":      true,
	"webhook.timeout":            5 * time.Second,
	"webhook.max_attempts":       3,
	"log.level":                  "info",
	"log.format":                 "console",
	"pipeline.overwrite":         false,
}

var envBindings = map[string]string{
	"api.addr":                   "PIXELPOST_API_ADDR",
	"api.max_body_bytes":         "PIXELPOST_API_MAX_BODY_BYTES",
	"rate_limit.enabled":         "PIXELPOST_RATE_LIMIT_ENABLED",
	"rate_limit.redis_addr":      "REDIS_ADDR",
	"rate_limit.redis_password":  "REDIS_PASSWORD",
	"rate_limit.redis_db":        "REDIS_DB",
	"rate_limit.capacity":        "PIXELPOST_RATE_LIMIT_CAPACITY",
	"rate_limit.window":          "PIXELPOST_RATE_LIMIT_WINDOW",
	"rate_limit.cost_unit_bytes": "PIXELPOST_RATE_LIMIT_COST_UNIT",
	"storage.endpoint":           "MINIO_ENDPOINT",
	"storage.access_key":         "MINIO_ACCESS_KEY",
	"storage.secret_key":         "MINIO_SECRET_KEY",
	"storage.bucket":             "MINIO_BUCKET",
	"storage.use_ssl":            "MINIO_USE_SSL",
	"storage.region":             "MINIO_REGION",
	"database.dsn":               "POSTGRES_DSN",
	"tracing.service_name":       "OTEL_SERVICE_NAME",
	"tracing.exporter":           "PIXELPOST_TRACE_EXPORTER",
	"tracing.otlp_endpoint":      "OTEL_EXPORTER_OTLP_ENDPOINT",
	"tracing.otlp_insecure":      "PIXELPOST_OTLP_INSECURE",
	"webhook.secret":             "PIXELPOST_WEBHOOK_SECRET",
	"webhook.timeout":            "PIXELPOST_WEBHOOK_TIMEOUT",
	"webhook.max_attempts":       "PIXELPOST_WEBHOOK_MAX_ATTEMPTS",
	"log.level":                  "PIXELPOST_LOG_LEVEL",
	"log.format":                 "PIXELPOST_LOG_FORMAT",
	"pipeline.overwrite":         "PIXELPOST_OVERWRITE",
}

// Load reads defaults, then the optional config file, then the environment.
// An explicit path must exist; without one, pixelpost.yaml is searched in the
// working directory and $HOME/.config/pixelpost.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, name := range envBindings {
		if err := v.BindEnv(key, name); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("pixelpost")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "pixelpost"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
