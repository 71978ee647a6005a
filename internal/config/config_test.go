package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stripedl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "stripe.com", cfg.Dashboard.Domain)
	assert.Equal(t, "https://dashboard.stripe.com/invoices", cfg.Dashboard.InvoicesURL)
	assert.Equal(t, 10, cfg.Locator.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Locator.Interval)
	assert.Equal(t, 5, cfg.Flow.OpenAttempts)
	assert.Equal(t, 20*time.Second, cfg.Flow.OpenTimeout)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := writeConfig(t, `
browser:
  headless: false
  download_dir: /tmp/invoices
locator:
  max_attempts: 3
  timeout: 4s
  backoff: 0s
flow:
  all_time: true
  download_delay: 1500ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "/tmp/invoices", cfg.Browser.DownloadDir)
	assert.Equal(t, 3, cfg.Locator.MaxAttempts)
	assert.Equal(t, 4*time.Second, cfg.Locator.Timeout)
	assert.Equal(t, time.Duration(0), cfg.Locator.Backoff)
	assert.True(t, cfg.Flow.AllTime)
	assert.Equal(t, 1500*time.Millisecond, cfg.Flow.DownloadDelay)
	// untouched keys keep their defaults
	assert.Equal(t, 500*time.Millisecond, cfg.Locator.Interval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STRIPEDL_PROXY", "http://127.0.0.1:7890")
	t.Setenv("STRIPE_EMAIL", "ops@example.com")
	t.Setenv("STRIPE_PASSWORD", "hunter2")
	t.Setenv("STRIPEDL_DEBUG", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:7890", cfg.Browser.ProxyURL)
	assert.Equal(t, "ops@example.com", cfg.Login.Email)
	assert.Equal(t, "hunter2", cfg.Login.Password)
	assert.True(t, cfg.Log.Debug)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "zero attempts", body: "locator:\n  max_attempts: 0\n"},
		{name: "relative url", body: "dashboard:\n  invoices_url: /invoices\n"},
		{name: "zero interval", body: "locator:\n  interval: 0s\n"},
		{name: "bad yaml", body: "locator: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestInvalidDebugEnv(t *testing.T) {
	t.Setenv("STRIPEDL_DEBUG", "maybe")
	_, err := Load("")
	assert.Error(t, err)
}
