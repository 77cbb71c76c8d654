// Package config loads run configuration from a YAML file plus environment
// variables. The password is taken from the environment only and is never
// written to the file, never logged, and redacted from all string output.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for missing or contradictory configuration.
// It is fatal: the caller must abort before opening any session.
var ErrInvalid = errors.New("config: invalid configuration")

// Environment variable names for credential overrides.
const (
	EnvPassword  = "RECOLTE_PASSWORD"
	EnvCompanyID = "RECOLTE_COMPANY_ID"
	EnvUserID    = "RECOLTE_USER_ID"
)

// Config is the top-level run configuration.
type Config struct {
	BaseURL    string `yaml:"base_url"`
	LoginPath  string `yaml:"login_path"`
	LogoutPath string `yaml:"logout_path"`
	CompanyID  string `yaml:"company_id"`
	UserID     string `yaml:"user_id"`

	Browser  BrowserConfig  `yaml:"browser"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Extract  ExtractConfig  `yaml:"extract"`
	Export   ExportConfig   `yaml:"export"`

	// Profiles overrides selected fields per environment profile
	// (e.g. development, production).
	Profiles map[string]Profile `yaml:"profiles"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"` // WebSocket URL of an external Chrome; empty = launch local
	Headless         bool     `yaml:"headless"`
	XvfbDisplay      string   `yaml:"xvfb_display"`
	ResourceBlocking []string `yaml:"resource_blocking"`
	ScreenshotDir    string   `yaml:"screenshot_dir"`
}

// TimeoutConfig bounds every UI wait. No wait is ever unbounded.
type TimeoutConfig struct {
	Navigate     time.Duration `yaml:"navigate"`
	Submit       time.Duration `yaml:"submit"`
	Interstitial time.Duration `yaml:"interstitial"`
	Verify       time.Duration `yaml:"verify"`
	Element      time.Duration `yaml:"element"`
	Logout       time.Duration `yaml:"logout"`
}

// ExtractConfig bounds the list extraction loop.
type ExtractConfig struct {
	MaxPages      int           `yaml:"max_pages"`
	RetryLimit    int           `yaml:"retry_limit"`
	RetryBase     time.Duration `yaml:"retry_base"`
	PageInterval  time.Duration `yaml:"page_interval"` // minimum spacing between page advances
}

// ExportConfig locates the export destinations.
type ExportConfig struct {
	StorePath  string `yaml:"store_path"`
	CSVDir     string `yaml:"csv_dir"`
	WebhookURL string `yaml:"webhook_url"`
}

// Profile is the subset of Config an environment profile may override.
type Profile struct {
	BaseURL   string `yaml:"base_url"`
	CompanyID string `yaml:"company_id"`
	UserID    string `yaml:"user_id"`
	Headless  *bool  `yaml:"headless"`
	StorePath string `yaml:"store_path"`
	CSVDir    string `yaml:"csv_dir"`
}

// Credentials carries the login identity. The secret is redacted from all
// formatted output; log it only through its LogValue.
type Credentials struct {
	CompanyID string
	UserID    string
	Secret    string
}

// String implements fmt.Stringer with the secret redacted.
func (c Credentials) String() string {
	return fmt.Sprintf("credentials(company=%s user=%s secret=[redacted])", c.CompanyID, c.UserID)
}

// LogValue implements slog.LogValuer so the secret never reaches a handler.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("company", c.CompanyID),
		slog.String("user", c.UserID),
		slog.String("secret", "[redacted]"),
	)
}

// Load reads the YAML file at path, applies the named profile's overrides
// (empty profile = none), resolves credential environment variables, and
// validates the result.
func Load(path, profile string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data, profile)
}

// Parse is Load for in-memory YAML.
func Parse(data []byte, profile string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	if profile != "" {
		p, ok := cfg.Profiles[profile]
		if !ok {
			return nil, fmt.Errorf("%w: unknown profile %q", ErrInvalid, profile)
		}
		cfg.applyProfile(p)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyProfile(p Profile) {
	if p.BaseURL != "" {
		c.BaseURL = p.BaseURL
	}
	if p.CompanyID != "" {
		c.CompanyID = p.CompanyID
	}
	if p.UserID != "" {
		c.UserID = p.UserID
	}
	if p.Headless != nil {
		c.Browser.Headless = *p.Headless
	}
	if p.StorePath != "" {
		c.Export.StorePath = p.StorePath
	}
	if p.CSVDir != "" {
		c.Export.CSVDir = p.CSVDir
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvCompanyID); v != "" {
		c.CompanyID = v
	}
	if v := os.Getenv(EnvUserID); v != "" {
		c.UserID = v
	}
}

func (c *Config) applyDefaults() {
	if c.LoginPath == "" {
		c.LoginPath = "/index/login"
	}
	if c.LogoutPath == "" {
		c.LogoutPath = "/index/logout"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.ScreenshotDir == "" {
		c.Browser.ScreenshotDir = "screenshots"
	}
	if c.Timeouts.Navigate <= 0 {
		c.Timeouts.Navigate = 30 * time.Second
	}
	if c.Timeouts.Submit <= 0 {
		c.Timeouts.Submit = 10 * time.Second
	}
	if c.Timeouts.Interstitial <= 0 {
		// Short on purpose: absence of the interstitial is the normal path
		// and the login sequence blocks for this long when it does not show.
		c.Timeouts.Interstitial = 3 * time.Second
	}
	if c.Timeouts.Verify <= 0 {
		c.Timeouts.Verify = 20 * time.Second
	}
	if c.Timeouts.Element <= 0 {
		c.Timeouts.Element = 10 * time.Second
	}
	if c.Timeouts.Logout <= 0 {
		c.Timeouts.Logout = 10 * time.Second
	}
	if c.Extract.MaxPages <= 0 {
		c.Extract.MaxPages = 50
	}
	if c.Extract.RetryLimit <= 0 {
		c.Extract.RetryLimit = 3
	}
	if c.Extract.RetryBase <= 0 {
		c.Extract.RetryBase = 500 * time.Millisecond
	}
	if c.Extract.PageInterval <= 0 {
		c.Extract.PageInterval = time.Second
	}
	if c.Export.StorePath == "" {
		c.Export.StorePath = "data/recolte.db"
	}
	if c.Export.CSVDir == "" {
		c.Export.CSVDir = "data"
	}
}

func (c *Config) validate() error {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "base_url")
	}
	if c.CompanyID == "" {
		missing = append(missing, "company_id ("+EnvCompanyID+")")
	}
	if c.UserID == "" {
		missing = append(missing, "user_id ("+EnvUserID+")")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("%w: base_url must be http(s), got %q", ErrInvalid, c.BaseURL)
	}
	return nil
}

// Credentials resolves the login identity. The secret comes exclusively
// from the environment; an empty secret is a configuration error.
func (c *Config) Credentials() (Credentials, error) {
	secret := os.Getenv(EnvPassword)
	if secret == "" {
		return Credentials{}, fmt.Errorf("%w: %s not set", ErrInvalid, EnvPassword)
	}
	return Credentials{CompanyID: c.CompanyID, UserID: c.UserID, Secret: secret}, nil
}

// LoginURL returns the absolute login entry point.
func (c *Config) LoginURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.LoginPath
}

// LogoutURL returns the absolute logout endpoint, used as a fallback when
// the logout control cannot be clicked.
func (c *Config) LogoutURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.LogoutPath
}
