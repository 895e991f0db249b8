// Package config loads the service configuration from the environment.
// A .env file in the working directory, or the file named by SFD_ENV_FILE,
// is loaded first; variables already set in the environment win.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type S3 struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type AMQP struct {
	URL      string
	Exchange string
}

type Cleanup struct {
	Enabled  bool
	Interval time.Duration
	Grace    time.Duration
}

type Build struct {
	Version string
	Commit  string
}

type Config struct {
	Addr           string
	DatabaseURL    string
	S3             S3
	BaseURL        string
	FileTTL        time.Duration
	MaxUploadBytes int64

	RateLimit  int
	RateWindow time.Duration
	Redis      Redis

	AMQP        AMQP
	CORSOrigins []string
	Cleanup     Cleanup

	Env   string
	Build Build
}

// Load reads the optional env file and then the environment.
func Load() (*Config, error) {
	file := getenvDefault("SFD_ENV_FILE", ".env")
	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	v := NewValidator(getenv)

	cfg := &Config{
		Addr:        v.String("SFD_ADDR", ":8080"),
		DatabaseURL: v.Required("DATABASE_URL"),
		S3: S3{
			Endpoint:  v.Required("SFD_S3_ENDPOINT"),
			AccessKey: v.Required("SFD_S3_ACCESS_KEY"),
			SecretKey: v.Required("SFD_S3_SECRET_KEY"),
			Bucket:    v.Required("SFD_BUCKET"),
			Region:    v.String("SFD_S3_REGION", ""),
		},
		BaseURL:        strings.TrimRight(v.String("SFD_BASE_URL", "http://localhost:8080"), "/"),
		FileTTL:        time.Duration(v.PositiveInt("SFD_FILE_TTL_HOURS", 24)) * time.Hour,
		MaxUploadBytes: v.Int64("SFD_MAX_UPLOAD_BYTES", 0),
		RateLimit:      v.PositiveInt("SFD_RATE_LIMIT", 5),
		RateWindow:     v.Duration("SFD_RATE_WINDOW", time.Minute),
		Redis: Redis{
			Addr:     v.String("SFD_REDIS_ADDR", ""),
			Password: v.String("SFD_REDIS_PASSWORD", ""),
			DB:       v.Int("SFD_REDIS_DB", 0),
		},
		AMQP: AMQP{
			URL:      v.String("SFD_AMQP_URL", ""),
			Exchange: v.String("SFD_AMQP_EXCHANGE", "quickshare.events"),
		},
		CORSOrigins: splitList(v.String("SFD_CORS_ORIGINS", "http://localhost:3000")),
		Cleanup: Cleanup{
			Enabled:  v.Bool("SFD_CLEANUP_ENABLED", false),
			Interval: v.Duration("SFD_CLEANUP_INTERVAL", time.Hour),
			Grace:    v.Duration("SFD_CLEANUP_GRACE", time.Hour),
		},
		Env: v.String("SFD_ENV", ""),
		Build: Build{
			Version: v.String("SFD_VERSION", "dev"),
			Commit:  v.String("SFD_COMMIT", "unknown"),
		},
	}

	if cfg.DatabaseURL != "" &&
		!strings.HasPrefix(cfg.DatabaseURL, "postgres://") && !strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
		v.AddError("DATABASE_URL", "must be a postgres:// connection URL")
	}
	v.Addr("SFD_ADDR", cfg.Addr)
	v.URL("SFD_BASE_URL", cfg.BaseURL)
	if strings.Contains(cfg.S3.Endpoint, "://") {
		v.URL("SFD_S3_ENDPOINT", cfg.S3.Endpoint)
	}
	if cfg.AMQP.URL != "" && !strings.HasPrefix(cfg.AMQP.URL, "amqp://") && !strings.HasPrefix(cfg.AMQP.URL, "amqps://") {
		v.AddError("SFD_AMQP_URL", "must use amqp or amqps scheme")
	}
	for _, o := range cfg.CORSOrigins {
		v.URL("SFD_CORS_ORIGINS", o)
	}
	v.Enum("SFD_LOG_FORMAT", getenv("SFD_LOG_FORMAT"), []string{"json", "text"})
	v.Enum("SFD_LOG_LEVEL", getenv("SFD_LOG_LEVEL"), []string{"debug", "info", "warn", "error"})
	v.Enum("SFD_ENV", cfg.Env, []string{"development", "production", "staging"})

	if err := v.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Warnings lists optional settings that are unset but usually wanted.
func (c *Config) Warnings() []string {
	var w []string
	if c.BaseURL == "http://localhost:8080" {
		w = append(w, "SFD_BASE_URL not set - share links point at http://localhost:8080")
	}
	if c.Redis.Addr == "" {
		w = append(w, "SFD_REDIS_ADDR not set - rate limits are per process")
	}
	if c.AMQP.URL == "" {
		w = append(w, "SFD_AMQP_URL not set - share events are dropped")
	}
	if c.MaxUploadBytes == 0 {
		w = append(w, "SFD_MAX_UPLOAD_BYTES not set - upload size is unbounded")
	}
	return w
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
