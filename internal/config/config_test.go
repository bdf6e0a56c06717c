package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DROFFERS_LISTEN_ADDR", "")
	t.Setenv("DROFFERS_API_URL", "")
	t.Setenv("DROFFERS_CLICK_DEBOUNCE", "")
	t.Setenv("DROFFERS_RATE_BURST", "")
	t.Setenv("DROFFERS_RATE_PER_SEC", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.ClickDebounce != time.Second {
		t.Fatalf("unexpected debounce: %s", cfg.ClickDebounce)
	}
	if cfg.RateBurst != 20 || cfg.RatePerSec != 10 {
		t.Fatalf("unexpected rate limits: %d/%d", cfg.RateBurst, cfg.RatePerSec)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DROFFERS_API_URL", "https://api.droffers.app")
	t.Setenv("DROFFERS_CLICK_DEBOUNCE", "250ms")
	t.Setenv("DROFFERS_RATE_BURST", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIBaseURL != "https://api.droffers.app" {
		t.Fatalf("unexpected api url: %s", cfg.APIBaseURL)
	}
	if cfg.ClickDebounce != 250*time.Millisecond {
		t.Fatalf("unexpected debounce: %s", cfg.ClickDebounce)
	}
	if cfg.RateBurst != 50 {
		t.Fatalf("unexpected burst: %d", cfg.RateBurst)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"bad debounce": {"DROFFERS_CLICK_DEBOUNCE", "soon"},
		"bad burst":    {"DROFFERS_RATE_BURST", "-3"},
		"bad url":      {"DROFFERS_API_URL", "ftp://api"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}
