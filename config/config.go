package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	minSessionSecretLen = 32
	defaultCORSOrigins  = "http://localhost:5173,http://127.0.0.1:5173"
)

// Config holds everything the server and the CLI tools read from the environment.
// Values come from the process environment, optionally seeded by a .env file.
type Config struct {
	Env            string
	DatabaseURL    string
	HTTPAddr       string
	SessionSecret  string
	SessionSecure  bool
	CORSOrigins    []string
	AutoMigrate    bool
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests can feed a map.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Env:           strings.ToLower(valueOr(getenv("APP_ENV"), "dev")),
		DatabaseURL:   strings.TrimSpace(getenv("DATABASE_URL")),
		HTTPAddr:      valueOr(getenv("HTTP_ADDR"), ":8080"),
		SessionSecret: strings.TrimSpace(getenv("SESSION_SECRET")),
		CORSOrigins:   splitList(valueOr(getenv("CORS_ORIGINS"), defaultCORSOrigins)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET not set")
	}
	if cfg.IsProduction() && len(cfg.SessionSecret) < minSessionSecretLen {
		return nil, fmt.Errorf("SESSION_SECRET must be at least %d bytes in production", minSessionSecretLen)
	}

	var err error
	if cfg.SessionSecure, err = parseBool("SESSION_SECURE", getenv("SESSION_SECURE"), cfg.IsProduction()); err != nil {
		return nil, err
	}
	if cfg.AutoMigrate, err = parseBool("AUTO_MIGRATE", getenv("AUTO_MIGRATE"), false); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout, err = parseDuration("READ_TIMEOUT", getenv("READ_TIMEOUT"), 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = parseDuration("WRITE_TIMEOUT", getenv("WRITE_TIMEOUT"), 2*time.Minute); err != nil {
		return nil, err
	}

	uploadMB := 10
	if raw := strings.TrimSpace(getenv("MAX_UPLOAD_MB")); raw != "" {
		uploadMB, err = strconv.Atoi(raw)
		if err != nil || uploadMB <= 0 {
			return nil, fmt.Errorf("invalid MAX_UPLOAD_MB %q", raw)
		}
	}
	cfg.MaxUploadBytes = int64(uploadMB) << 20

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

func valueOr(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(name, raw string, def bool) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return b, nil
}

func parseDuration(name, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return d, nil
}
