package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries process configuration for the web frontend.
type Config struct {
	// ListenAddr is the micro-site server bind address.
	ListenAddr string
	// APIBaseURL is the marketplace REST API root.
	APIBaseURL string
	// TokenPath is the file used to persist the session token pair.
	TokenPath string
	// PGDSN, when set, switches token persistence to Postgres.
	PGDSN string
	// ClickDebounce is the analytics click batching window.
	ClickDebounce time.Duration
	// RateBurst and RatePerSec configure inbound rate limiting.
	RateBurst  int
	RatePerSec int
}

const (
	defaultListenAddr    = ":8080"
	defaultAPIBaseURL    = "http://localhost:3000"
	defaultTokenPath     = ".droffers-session.json"
	defaultClickDebounce = time.Second
	defaultRateBurst     = 20
	defaultRatePerSec    = 10
)

// Load reads configuration from the environment, applying an optional .env
// file first (missing file is not an error).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:    getenv("DROFFERS_LISTEN_ADDR", defaultListenAddr),
		APIBaseURL:    getenv("DROFFERS_API_URL", defaultAPIBaseURL),
		TokenPath:     getenv("DROFFERS_TOKEN_PATH", defaultTokenPath),
		PGDSN:         os.Getenv("DROFFERS_PG_DSN"),
		ClickDebounce: defaultClickDebounce,
		RateBurst:     defaultRateBurst,
		RatePerSec:    defaultRatePerSec,
	}

	if raw := strings.TrimSpace(os.Getenv("DROFFERS_CLICK_DEBOUNCE")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("config: invalid DROFFERS_CLICK_DEBOUNCE %q", raw)
		}
		cfg.ClickDebounce = d
	}
	var err error
	if cfg.RateBurst, err = getint("DROFFERS_RATE_BURST", defaultRateBurst); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSec, err = getint("DROFFERS_RATE_PER_SEC", defaultRatePerSec); err != nil {
		return Config{}, err
	}

	if !strings.HasPrefix(cfg.APIBaseURL, "http://") && !strings.HasPrefix(cfg.APIBaseURL, "https://") {
		return Config{}, fmt.Errorf("config: DROFFERS_API_URL must be an http(s) URL, got %q", cfg.APIBaseURL)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive integer, got %q", key, raw)
	}
	return v, nil
}
