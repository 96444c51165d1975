package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "tariff-tracker/internal/errors"
)

func TestLoadWritesTemplates(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EVENTS_API_KEY", "")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, name := range []string{"config.toml", "credentials.toml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	info, err := os.Stat(filepath.Join(dir, "credentials.toml"))
	if err == nil && info.Mode().Perm() != 0600 {
		t.Errorf("credentials mode = %v", info.Mode().Perm())
	}

	if cfg.Duplicates.ToleranceDays != 2 || cfg.API.MaxPages != 5 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Store.Path != filepath.Join(dir, "tracker.db") {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if cfg.HasAPIKey() {
		t.Error("template credentials should not carry a key")
	}
}

func TestLoadReadsFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EVENTS_API_KEY", "")
	writeFile(t, dir, "config.toml", "[duplicates]\ntolerance_days = 5\n\n[api]\ntimeout = \"10s\"\n")
	writeFile(t, dir, "credentials.toml", "[events_api]\napi_key = \"from-file\"\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Duplicates.ToleranceDays != 5 {
		t.Errorf("tolerance = %d", cfg.Duplicates.ToleranceDays)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.API.Timeout)
	}
	// Unset keys keep their defaults.
	if cfg.Analytics.TimeBucket != "month" {
		t.Errorf("time bucket = %q", cfg.Analytics.TimeBucket)
	}
	if cfg.Credentials.EventsAPI.APIKey != "from-file" {
		t.Errorf("api key = %q", cfg.Credentials.EventsAPI.APIKey)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "credentials.toml", "[events_api]\napi_key = \"from-file\"\n")
	t.Setenv("EVENTS_API_KEY", "from-env")
	t.Setenv("EVENTS_API_URL", "http://localhost:9999")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Credentials.EventsAPI.APIKey != "from-env" || cfg.API.BaseURL != "http://localhost:9999" {
		t.Errorf("env overrides not applied: key %q url %q", cfg.Credentials.EventsAPI.APIKey, cfg.API.BaseURL)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.toml", "[analytics]\ntime_bucket = \"fortnight\"\n")

	_, err := Load(dir)
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) || verr.Field != "analytics.time_bucket" {
		t.Errorf("err = %v, want a time_bucket validation error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty base url", func(c *Config) { c.API.BaseURL = " " }, "api.base_url"},
		{"no pages", func(c *Config) { c.API.MaxPages = 0 }, "api.max_pages"},
		{"negative tolerance", func(c *Config) { c.Duplicates.ToleranceDays = -1 }, "duplicates.tolerance_days"},
		{"no bins", func(c *Config) { c.Analytics.HistogramBins = 0 }, "analytics.histogram_bins"},
		{"cache without ttl", func(c *Config) { c.Cache.TTL = 0 }, "cache.ttl"},
		{"disabled cache ignores ttl", func(c *Config) { c.Cache.Enabled, c.Cache.TTL = false, 0 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var verr *apperrors.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("err = %v, want field %s", err, tt.field)
			}
		})
	}
}

func TestWriteTemplatesKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.toml", "# mine\n")

	written, err := WriteTemplates(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 1 || filepath.Base(written[0]) != "credentials.toml" {
		t.Errorf("written = %v", written)
	}
	data, _ := os.ReadFile(ConfigPath(dir))
	if string(data) != "# mine\n" {
		t.Error("existing config.toml overwritten")
	}

	written, err = WriteTemplates(dir, true)
	if err != nil || len(written) != 2 {
		t.Errorf("overwrite: written = %v, err = %v", written, err)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}
