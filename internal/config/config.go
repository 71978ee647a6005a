// Package config loads stripedl settings from defaults, an optional YAML
// file, an optional .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Dashboard DashboardConfig `yaml:"dashboard"`
	Browser   BrowserConfig   `yaml:"browser"`
	Locator   LocatorConfig   `yaml:"locator"`
	Flow      FlowConfig      `yaml:"flow"`
	Login     LoginConfig     `yaml:"login"`
	Log       LogConfig       `yaml:"log"`
}

type DashboardConfig struct {
	// Domain is the host (or parent domain) the trigger accepts.
	Domain       string `yaml:"domain"`
	LoginURL     string `yaml:"login_url"`
	InvoicesURL  string `yaml:"invoices_url"`
	InvoicesPath string `yaml:"invoices_path"`
}

type BrowserConfig struct {
	Headless    bool   `yaml:"headless"`
	ProxyURL    string `yaml:"proxy"`
	UserDataDir string `yaml:"user_data_dir"`
	DownloadDir string `yaml:"download_dir"`
	Stealth     bool   `yaml:"stealth"`
}

type LocatorConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
	Backoff     time.Duration `yaml:"backoff"`
}

type FlowConfig struct {
	OpenAttempts     int           `yaml:"open_attempts"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
	NavigationSettle time.Duration `yaml:"navigation_settle"`
	Settle           time.Duration `yaml:"settle"`
	ModalSettle      time.Duration `yaml:"modal_settle"`
	ExportSettle     time.Duration `yaml:"export_settle"`
	CloseSettle      time.Duration `yaml:"close_settle"`
	DownloadDelay    time.Duration `yaml:"download_delay"`
	DownloadTimeout  time.Duration `yaml:"download_timeout"`
	ReloadDelay      time.Duration `yaml:"reload_delay"`
	ReadyDelay       time.Duration `yaml:"ready_delay"`
	AllTime          bool          `yaml:"all_time"`
	SnapshotDir      string        `yaml:"snapshot_dir"`
}

type LoginConfig struct {
	Email    string        `yaml:"-"`
	Password string        `yaml:"-"`
	Timeout  time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Dir   string `yaml:"dir"`
	Debug bool   `yaml:"debug"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Dashboard: DashboardConfig{
			Domain:       "stripe.com",
			LoginURL:     "https://dashboard.stripe.com/login",
			InvoicesURL:  "https://dashboard.stripe.com/invoices",
			InvoicesPath: "/invoices",
		},
		Browser: BrowserConfig{
			Headless:    true,
			UserDataDir: "user_data",
			DownloadDir: "downloads",
			Stealth:     true,
		},
		Locator: LocatorConfig{
			MaxAttempts: 10,
			Timeout:     10 * time.Second,
			Interval:    500 * time.Millisecond,
			Backoff:     time.Second,
		},
		Flow: FlowConfig{
			OpenAttempts:     5,
			OpenTimeout:      20 * time.Second,
			NavigationSettle: 3 * time.Second,
			Settle:           2 * time.Second,
			ModalSettle:      3 * time.Second,
			ExportSettle:     2 * time.Second,
			CloseSettle:      time.Second,
			DownloadDelay:    5 * time.Second,
			DownloadTimeout:  30 * time.Second,
			ReloadDelay:      2 * time.Second,
			ReadyDelay:       3 * time.Second,
		},
		Login: LoginConfig{
			Timeout: 5 * time.Minute,
		},
	}
}

// Load builds the configuration. path may be empty; a missing file at an
// explicit path is an error. A missing .env file is not.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Browser.ProxyURL = getEnvOrDefault("STRIPEDL_PROXY", c.Browser.ProxyURL)
	c.Browser.UserDataDir = getEnvOrDefault("STRIPEDL_USER_DATA_DIR", c.Browser.UserDataDir)
	c.Browser.DownloadDir = getEnvOrDefault("STRIPEDL_DOWNLOAD_DIR", c.Browser.DownloadDir)
	c.Log.Dir = getEnvOrDefault("STRIPEDL_LOG_DIR", c.Log.Dir)
	c.Login.Email = getEnvOrDefault("STRIPE_EMAIL", c.Login.Email)
	c.Login.Password = getEnvOrDefault("STRIPE_PASSWORD", c.Login.Password)

	if v, ok := os.LookupEnv("STRIPEDL_DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid STRIPEDL_DEBUG %q: %w", v, err)
		}
		c.Log.Debug = b
	}
	return nil
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	if c.Dashboard.Domain == "" {
		return fmt.Errorf("dashboard.domain is required")
	}
	for name, raw := range map[string]string{
		"dashboard.login_url":    c.Dashboard.LoginURL,
		"dashboard.invoices_url": c.Dashboard.InvoicesURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if c.Dashboard.InvoicesPath == "" {
		return fmt.Errorf("dashboard.invoices_path is required")
	}
	if c.Locator.MaxAttempts < 1 || c.Flow.OpenAttempts < 1 {
		return fmt.Errorf("attempt counts must be at least 1")
	}
	if c.Locator.Timeout < 0 || c.Flow.OpenTimeout < 0 {
		return fmt.Errorf("locator timeouts must not be negative")
	}
	if c.Locator.Interval <= 0 {
		return fmt.Errorf("locator.interval must be positive")
	}
	if c.Locator.Backoff < 0 {
		return fmt.Errorf("locator.backoff must not be negative")
	}
	return nil
}

// getEnvOrDefault retrieves an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
