package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"apptsync/internal/identity"
)

const (
	defaultListen          = "127.0.0.1:8080"
	defaultTimezone        = "Asia/Jerusalem"
	defaultRefresh         = "*/15 * * * *"
	defaultDurationMinutes = 30
	defaultClientLabel     = "Client"
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultUpstreamURL     = "http://127.0.0.1:9000/api"
	defaultTimeoutSeconds  = 15
	defaultCachePath       = "./var/apptsync-cache.db"
)

// LogConfig selects the log level and handler format ("text" or "json").
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// UpstreamConfig points at the persistence service.
type UpstreamConfig struct {
	BaseURL        string `yaml:"base_url" json:"base_url"`
	Token          string `yaml:"token" json:"-"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	// CachePath is the Bolt file for cached list responses. Empty disables
	// the cache.
	CachePath string `yaml:"cache_path" json:"cache_path"`
}

// IdentityConfig tunes the content-identifier check.
type IdentityConfig struct {
	Prefix    string `yaml:"prefix" json:"prefix"`
	MinLength int    `yaml:"min_length" json:"min_length"`
}

// PhoneConfig holds the country code used when normalizing local numbers.
type PhoneConfig struct {
	CountryCode string `yaml:"country_code" json:"country_code"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone appointments are viewed in (e.g. "Asia/Jerusalem").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron schedules the staff directory refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// DefaultDurationMinutes is the synthetic length of appointments without
	// an end time.
	DefaultDurationMinutes int `yaml:"default_duration_minutes" json:"default_duration_minutes"`

	// DefaultClientLabel stands in for a missing customer name in titles.
	DefaultClientLabel string `yaml:"default_client_label" json:"default_client_label"`

	Log      LogConfig      `yaml:"log" json:"log"`
	Upstream UpstreamConfig `yaml:"upstream" json:"upstream"`
	Identity IdentityConfig `yaml:"identity" json:"identity"`
	Phone    PhoneConfig    `yaml:"phone" json:"phone"`

	// BasicAuth, if set with a username, enables HTTP Basic Authentication on
	// all endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                 defaultListen,
		Timezone:               defaultTimezone,
		RefreshCron:            defaultRefresh,
		DefaultDurationMinutes: defaultDurationMinutes,
		DefaultClientLabel:     defaultClientLabel,
		Log:                    LogConfig{Level: defaultLogLevel, Format: defaultLogFormat},
		Upstream: UpstreamConfig{
			BaseURL:        defaultUpstreamURL,
			TimeoutSeconds: defaultTimeoutSeconds,
			CachePath:      defaultCachePath,
		},
		Identity: IdentityConfig{Prefix: identity.DefaultPrefix, MinLength: identity.DefaultMinLength},
		Phone:    PhoneConfig{CountryCode: identity.DefaultCountryCode},
	}
}

// Normalize fills in missing or invalid values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	c.Timezone = strings.TrimSpace(c.Timezone)
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if strings.TrimSpace(c.RefreshCron) == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.DefaultDurationMinutes <= 0 {
		c.DefaultDurationMinutes = defaultDurationMinutes
	}
	if strings.TrimSpace(c.DefaultClientLabel) == "" {
		c.DefaultClientLabel = defaultClientLabel
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		c.Log.Level = defaultLogLevel
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		c.Log.Format = defaultLogFormat
	}

	if strings.TrimSpace(c.Upstream.BaseURL) == "" {
		c.Upstream.BaseURL = defaultUpstreamURL
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		c.Upstream.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.Identity.Prefix == "" {
		c.Identity.Prefix = identity.DefaultPrefix
	}
	if c.Identity.MinLength <= 0 {
		c.Identity.MinLength = identity.DefaultMinLength
	}
	if c.Phone.CountryCode == "" {
		c.Phone.CountryCode = identity.DefaultCountryCode
	}
	c.Phone.CountryCode = strings.TrimPrefix(c.Phone.CountryCode, "+")

	if c.BasicAuth != nil && c.BasicAuth.Username == "" {
		c.BasicAuth = nil
	}
}

// Location resolves Timezone. An unknown zone is an error.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DefaultDuration returns DefaultDurationMinutes as a duration.
func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.DefaultDurationMinutes) * time.Minute
}

// UpstreamTimeout returns Upstream.TimeoutSeconds as a duration.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is read, unmarshaled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename. The parent
// directory is created with 0700 and the file ends up 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".apptsync-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
