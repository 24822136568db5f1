// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ihainan/scholar-data-proxy/pkg/aminer"
	"github.com/ihainan/scholar-data-proxy/pkg/prefetch"
)

// Config is the full service configuration.
type Config struct {
	// Host and Port form the listen address.
	Host string
	Port int

	// CacheDir is the cache store base directory.
	CacheDir string

	// TTLs per cache class.
	DetailTTL         time.Duration
	AvatarTTL         time.Duration
	AvatarNegativeTTL time.Duration
	EmailTTL          time.Duration
	EmailNegativeTTL  time.Duration

	// PlaceholderSize is the byte length of the provider's stock default
	// avatar.
	PlaceholderSize int

	// Upstream holds the provider client configuration.
	Upstream aminer.Config

	// Warm holds the cache warmer configuration.
	Warm prefetch.Config

	// CORSOrigins are the allowed cross-origin hosts ("*" by default).
	CORSOrigins []string

	// LogLevel and LogPretty configure the logger.
	LogLevel  string
	LogPretty bool
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              37803,
		CacheDir:          "./cache",
		DetailTTL:         15 * 24 * time.Hour,
		AvatarTTL:         365 * 24 * time.Hour,
		AvatarNegativeTTL: 30 * 24 * time.Hour,
		EmailTTL:          30 * 24 * time.Hour,
		EmailNegativeTTL:  30 * 24 * time.Hour,
		PlaceholderSize:   1676,
		Upstream:          aminer.DefaultConfig(),
		Warm:              prefetch.DefaultConfig(),
		CORSOrigins:       []string{"*"},
		LogLevel:          "info",
		LogPretty:         false,
	}
}

// Load reads configuration from the environment on top of the defaults. A
// .env file in the working directory is honored when present; real
// environment variables win over it.
func Load() (Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Default()
	var err error

	cfg.Host = envString("HOST", cfg.Host)
	if cfg.Port, err = envInt("PORT", cfg.Port); err != nil {
		return cfg, err
	}
	cfg.CacheDir = envString("CACHE_DIR", cfg.CacheDir)

	if cfg.DetailTTL, err = envSeconds("CACHE_TTL_SECONDS", cfg.DetailTTL); err != nil {
		return cfg, err
	}
	if cfg.AvatarTTL, err = envSeconds("AVATAR_CACHE_TTL_SECONDS", cfg.AvatarTTL); err != nil {
		return cfg, err
	}
	if cfg.AvatarNegativeTTL, err = envSeconds("AVATAR_NEGATIVE_TTL_SECONDS", cfg.AvatarNegativeTTL); err != nil {
		return cfg, err
	}
	if cfg.EmailTTL, err = envSeconds("EMAIL_CACHE_TTL_SECONDS", cfg.EmailTTL); err != nil {
		return cfg, err
	}
	if cfg.EmailNegativeTTL, err = envSeconds("EMAIL_NEGATIVE_TTL_SECONDS", cfg.EmailNegativeTTL); err != nil {
		return cfg, err
	}
	if cfg.PlaceholderSize, err = envInt("DEFAULT_AVATAR_SIZE", cfg.PlaceholderSize); err != nil {
		return cfg, err
	}

	cfg.Upstream.BaseURL = envString("AMINER_API_URL", cfg.Upstream.BaseURL)
	cfg.Upstream.ProfileBaseURL = envString("AMINER_WEB_URL", cfg.Upstream.ProfileBaseURL)
	cfg.Upstream.ScrapeBaseURL = envString("FIRECRAWL_API_URL", cfg.Upstream.ScrapeBaseURL)
	cfg.Upstream.AvatarCDNBaseURL = envString("AVATAR_CDN_URL", cfg.Upstream.AvatarCDNBaseURL)
	if cfg.Upstream.APITimeout, err = envSeconds("HTTP_TIMEOUT_SECONDS", cfg.Upstream.APITimeout); err != nil {
		return cfg, err
	}
	if cfg.Upstream.ScrapeTimeout, err = envSeconds("FIRECRAWL_TIMEOUT_SECONDS", cfg.Upstream.ScrapeTimeout); err != nil {
		return cfg, err
	}
	if cfg.Upstream.DownloadTimeout, err = envSeconds("DOWNLOAD_TIMEOUT_SECONDS", cfg.Upstream.DownloadTimeout); err != nil {
		return cfg, err
	}
	if cfg.Upstream.RetryDelay, err = envSeconds("RETRY_DELAY_SECONDS", cfg.Upstream.RetryDelay); err != nil {
		return cfg, err
	}
	if cfg.Upstream.ScrapeWaitMillis, err = envInt("FIRECRAWL_WAIT_MS", cfg.Upstream.ScrapeWaitMillis); err != nil {
		return cfg, err
	}

	if cfg.Warm.Concurrency, err = envInt("WARM_CONCURRENCY", cfg.Warm.Concurrency); err != nil {
		return cfg, err
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitAndTrim(origins)
	}

	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	if cfg.LogPretty, err = envBool("LOG_PRETTY", cfg.LogPretty); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envSeconds(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return time.Duration(n) * time.Second, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
