package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the runtime configuration, read from the environment (and an optional .env file).
type Config struct {
	HTTPAddr       string `env:"HTTP_ADDR" envDefault:":5200"`
	DatabaseURL    string `env:"DATABASE_URL"`
	ServiceToken   string `env:"SERVICE_TOKEN"`
	SessionSecret  string `env:"SESSION_SECRET"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	UploadDir      string `env:"UPLOAD_DIR" envDefault:"uploads"`

	R2AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	R2Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL        string `env:"CDN_BASE_URL"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"10m"`
}

// Load reads .env (if present) and parses the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse parses the current environment without touching .env.
func Parse() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.SessionSecret = strings.TrimSpace(c.SessionSecret)
	c.CDNBaseURL = strings.TrimRight(strings.TrimSpace(c.CDNBaseURL), "/")

	if c.DatabaseURL == "" {
		return c, fmt.Errorf("DATABASE_URL is empty")
	}
	if c.SessionSecret == "" {
		return c, fmt.Errorf("SESSION_SECRET is empty")
	}
	if c.ReconcileInterval <= 0 {
		return c, fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	return c, nil
}

// Origins returns ALLOWED_ORIGINS as a trimmed, comma-joined list for the CORS middleware.
func (c Config) Origins() string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

// R2Enabled reports whether object storage credentials are configured.
func (c Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2AccessKeySecret != "" && c.R2Bucket != ""
}
