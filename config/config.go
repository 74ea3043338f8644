// Package config loads process configuration from the environment, after
// merging a .env file when one is present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Server configures the review authority (main.go).
type Server struct {
	Port        string `env:"PORT" envDefault:"8000"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:agriquest-server.db"`
	AdminKey    string `env:"ADMIN_KEY"`
	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"*"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	EvidenceBucket  string `env:"EVIDENCE_BUCKET" envDefault:"evidence"`
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	CDNBaseURL      string `env:"CDN_BASE_URL"`
	R2Endpoint      string `env:"R2_ENDPOINT"`

	// Deleted evidence rows older than PurgeAfter are removed every PurgeInterval.
	PurgeInterval time.Duration `env:"EVIDENCE_PURGE_INTERVAL" envDefault:"1h"`
	PurgeAfter    time.Duration `env:"EVIDENCE_PURGE_AFTER" envDefault:"720h"`
}

// UploadsEnabled reports whether image data can be stored in a bucket.
func (s Server) UploadsEnabled() bool {
	return s.AccessKeyID != "" && s.AccessKeySecret != "" && (s.AccountID != "" || s.R2Endpoint != "")
}

// PublicBaseURL is the prefix uploaded evidence is served from.
func (s Server) PublicBaseURL() string {
	if s.CDNBaseURL != "" {
		return s.CDNBaseURL
	}
	if s.R2Endpoint != "" {
		return strings.TrimRight(s.R2Endpoint, "/") + "/" + s.EvidenceBucket
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s", s.AccountID, s.EvidenceBucket)
}

// Client configures questctl and the local engine.
type Client struct {
	ServerURL   string        `env:"AGRIQUEST_SERVER_URL" envDefault:"http://localhost:8000"`
	StorePath   string        `env:"AGRIQUEST_STORE" envDefault:"agriquest.db"`
	AdminKey    string        `env:"ADMIN_KEY"`
	HTTPTimeout time.Duration `env:"AGRIQUEST_HTTP_TIMEOUT" envDefault:"15s"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"warn"`

	SyncMinBackoff time.Duration `env:"AGRIQUEST_SYNC_MIN_BACKOFF" envDefault:"1s"`
	SyncMaxBackoff time.Duration `env:"AGRIQUEST_SYNC_MAX_BACKOFF" envDefault:"1m"`
	ProbeInterval  time.Duration `env:"AGRIQUEST_PROBE_INTERVAL" envDefault:"30s"`
	PollInterval   time.Duration `env:"AGRIQUEST_POLL_INTERVAL" envDefault:"1m"`
	EventLogBytes  int           `env:"AGRIQUEST_EVENT_LOG_BYTES" envDefault:"100000"`
}

// LoadServer reads the authority configuration.
func LoadServer() (Server, error) {
	var cfg Server
	if err := load(&cfg); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// LoadClient reads the client configuration.
func LoadClient() (Client, error) {
	var cfg Client
	if err := load(&cfg); err != nil {
		return Client{}, err
	}
	if cfg.SyncMinBackoff <= 0 || cfg.SyncMaxBackoff < cfg.SyncMinBackoff {
		return Client{}, fmt.Errorf("sync backoff: min %s must be positive and not above max %s", cfg.SyncMinBackoff, cfg.SyncMaxBackoff)
	}
	return cfg, nil
}

// load merges .env into the environment (existing variables win) and parses
// target.
func load(target any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// NewLogger builds a production zap logger at level ("debug", "info", ...).
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
