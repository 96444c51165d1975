package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Version is the build version, overridden with -ldflags at release time.
var Version = "0.3.0"

const configTemplate = `# Tariff Tracker Configuration

[api]
# Events API base URL
base_url = "https://events.newscatcherapi.xyz"
# Event type requested from the API
event_type = "tariffs_v2"
# Per-request timeout
timeout = "30s"
# Retries after the first attempt on rate limit or transport failure
max_retries = 1
# Initial backoff between retries
backoff = "500ms"
# Client-side request rate (requests per second)
rate_per_second = 2.0
burst = 2
# Pages followed per fetch
max_pages = 5
# Default extraction window when no range is given
lookback = "720h"
# Consecutive failures before requests fail fast
breaker_threshold = 5
breaker_cooldown = "30s"

[duplicates]
# Maximum gap in days between announcement dates of duplicates
tolerance_days = 2

[analytics]
# Default time bucket: day, week, month, quarter, year
time_bucket = "month"
# Tariff rate histogram bins
histogram_bins = 20
# Rows shown by ranked tables
top_n = 10

[cache]
# Cache raw API responses locally
enabled = true
ttl = "1h"

[store]
# SQLite database path (defaults to the config directory)
# path = "~/.config/tariff-tracker/tracker.db"

[server]
addr = ":8080"
request_timeout = "45s"

[log]
# Log level: debug, info, warn, error
level = "info"
console = true
file = false
max_size = 50
max_backups = 5
max_age = 30

[sample]
# Offline events file used when no API key is configured
path = ""
`

const credentialsTemplate = `# Tariff Tracker Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[events_api]
api_key = ""
`

// ConfigPath returns the path of config.toml under configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// WriteTemplates writes config.toml and credentials.toml into configDir.
// Existing files are left alone unless overwrite is set.
func WriteTemplates(configDir string, overwrite bool) ([]string, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	var written []string
	files := []struct {
		name    string
		content string
		perm    os.FileMode
	}{
		{"config.toml", configTemplate, 0644},
		// Use restricted permissions for credentials file
		{"credentials.toml", credentialsTemplate, 0600},
	}
	for _, f := range files {
		path := filepath.Join(configDir, f.name)
		if _, err := os.Stat(path); err == nil && !overwrite {
			continue
		}
		if err := os.WriteFile(path, []byte(f.content), f.perm); err != nil {
			return written, fmt.Errorf("writing %s: %w", f.name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}
	return nil
}
