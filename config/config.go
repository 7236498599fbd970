// Package config provides configuration management for auto-mudfish.
// It handles loading, saving, and defaulting the settings consumed by the
// connection engine. Every value can be overridden per call.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yllada/auto-mudfish/common"
)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// AdminPageURL is the Mudfish sign-in page.
	AdminPageURL string `yaml:"admin_page_url"`
	// LauncherPath overrides launcher auto-detection.
	LauncherPath string `yaml:"launcher_path,omitempty"`
	// Verbose enables informational logging.
	Verbose bool `yaml:"verbose"`
	// ShowBrowser disables headless mode for the browser fallback.
	ShowBrowser bool `yaml:"show_browser"`
	// RequireKeyring refuses to store credentials when no system keyring
	// is available instead of falling back to a machine-derived key.
	RequireKeyring bool `yaml:"require_keyring"`

	Direct    DirectConfig    `yaml:"direct"`
	Browser   BrowserConfig   `yaml:"browser"`
	Launch    LaunchConfig    `yaml:"launch"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Driver    DriverConfig    `yaml:"driver"`
}

// DirectConfig tunes the HTTP login path.
type DirectConfig struct {
	// Timeout bounds every request.
	Timeout time.Duration `yaml:"timeout"`
	// Retries is how many times a network failure is retried before falling back.
	Retries int `yaml:"retries"`
	// RetryBackoff is the base delay between retries, growing linearly.
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	// RequireToken treats a sign-in page without hidden fields as changed markup.
	RequireToken bool `yaml:"require_token"`
}

// BrowserConfig tunes the browser-driven login path.
type BrowserConfig struct {
	LoginWait    time.Duration `yaml:"login_wait"`
	ElementWait  time.Duration `yaml:"element_wait"`
	ActionWait   time.Duration `yaml:"action_wait"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LaunchConfig bounds waiting for a freshly launched Mudfish.
type LaunchConfig struct {
	PollAttempts  int           `yaml:"poll_attempts"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	ReachAttempts int           `yaml:"reach_attempts"`
	ReachBackoff  time.Duration `yaml:"reach_backoff"`
}

// EndpointsConfig holds admin page paths, resolved against AdminPageURL.
type EndpointsConfig struct {
	StatusPath     string `yaml:"status_path"`
	ConnectPath    string `yaml:"connect_path"`
	DisconnectPath string `yaml:"disconnect_path"`
}

// DriverConfig controls the browser driver cache.
type DriverConfig struct {
	// CacheDir defaults to <user cache dir>/auto-mudfish/chromedriver.
	CacheDir        string        `yaml:"cache_dir,omitempty"`
	KeepVersions    int           `yaml:"keep_versions"`
	ReleaseBaseURL  string        `yaml:"release_base_url"`
	DownloadBaseURL string        `yaml:"download_base_url"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// BrowserPath overrides installed browser detection.
	BrowserPath string `yaml:"browser_path,omitempty"`
}

// DefaultConfig returns the default configuration.
// The defaults keep a successful direct login within a couple of seconds.
func DefaultConfig() *Config {
	return &Config{
		AdminPageURL: common.DefaultDesktopAdminPage,
		Direct: DirectConfig{
			Timeout:      common.DirectTimeout,
			Retries:      common.DirectRetries,
			RetryBackoff: common.RetryBackoff,
		},
		Browser: BrowserConfig{
			LoginWait:    common.LoginWait,
			ElementWait:  common.ElementWait,
			ActionWait:   common.ActionWait,
			PollInterval: common.PollInterval,
		},
		Launch: LaunchConfig{
			PollAttempts:  common.LaunchPollAttempts,
			PollInterval:  common.LaunchPollInterval,
			ReachAttempts: common.ReachAttempts,
			ReachBackoff:  common.ReachBackoff,
		},
		Endpoints: EndpointsConfig{
			StatusPath:     "main.html",
			ConnectPath:    "api/vpn/start",
			DisconnectPath: "api/vpn/stop",
		},
		Driver: DriverConfig{
			KeepVersions:    common.DriverKeepVersions,
			ReleaseBaseURL:  common.DriverReleaseBaseURL,
			DownloadBaseURL: common.DriverDownloadBaseURL,
			DownloadTimeout: common.DownloadTimeout,
		},
	}
}

// Load loads the configuration from the default config file.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	configPath, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from path, writing defaults there when
// the file is absent.
func LoadFrom(configPath string) (*Config, error) {
	// If it doesn't exist, return default configuration
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.SaveTo(configPath); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("error opening configuration: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	config := DefaultConfig()
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("%w: error parsing %s: %v", common.ErrInvalidConfig, configPath, err)
	}

	// Validate values
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}

	return config, nil
}

// validate verifies that configuration values are valid.
// Out-of-range tuning values fall back to defaults; a malformed admin URL
// is an error because no default can stand in for it.
func (c *Config) validate() error {
	def := DefaultConfig()

	if c.AdminPageURL == "" {
		c.AdminPageURL = def.AdminPageURL
	}
	if err := ValidateAdminURL(c.AdminPageURL); err != nil {
		return err
	}

	positive := func(v *time.Duration, fallback time.Duration) {
		if *v <= 0 {
			*v = fallback
		}
	}
	positive(&c.Direct.Timeout, def.Direct.Timeout)
	positive(&c.Direct.RetryBackoff, def.Direct.RetryBackoff)
	positive(&c.Browser.LoginWait, def.Browser.LoginWait)
	positive(&c.Browser.ElementWait, def.Browser.ElementWait)
	positive(&c.Browser.ActionWait, def.Browser.ActionWait)
	positive(&c.Browser.PollInterval, def.Browser.PollInterval)
	positive(&c.Launch.PollInterval, def.Launch.PollInterval)
	positive(&c.Launch.ReachBackoff, def.Launch.ReachBackoff)
	positive(&c.Driver.DownloadTimeout, def.Driver.DownloadTimeout)

	if c.Direct.Retries < 0 {
		c.Direct.Retries = def.Direct.Retries
	}
	if c.Launch.PollAttempts <= 0 {
		c.Launch.PollAttempts = def.Launch.PollAttempts
	}
	if c.Launch.ReachAttempts <= 0 {
		c.Launch.ReachAttempts = def.Launch.ReachAttempts
	}
	if c.Driver.KeepVersions <= 0 {
		c.Driver.KeepVersions = def.Driver.KeepVersions
	}
	if c.Driver.ReleaseBaseURL == "" {
		c.Driver.ReleaseBaseURL = def.Driver.ReleaseBaseURL
	}
	if c.Driver.DownloadBaseURL == "" {
		c.Driver.DownloadBaseURL = def.Driver.DownloadBaseURL
	}
	if c.Endpoints.StatusPath == "" {
		c.Endpoints.StatusPath = def.Endpoints.StatusPath
	}
	if c.Endpoints.ConnectPath == "" {
		c.Endpoints.ConnectPath = def.Endpoints.ConnectPath
	}
	if c.Endpoints.DisconnectPath == "" {
		c.Endpoints.DisconnectPath = def.Endpoints.DisconnectPath
	}
	return nil
}

// ValidateAdminURL checks that raw is an absolute http(s) URL with a host.
func ValidateAdminURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("admin page URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("admin page URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("admin page URL %q: missing host", raw)
	}
	return nil
}

// SaveTo saves the configuration to configPath.
func (c *Config) SaveTo(configPath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error serializing configuration: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}

	return nil
}

// DefaultPath returns the location of the configuration file.
func DefaultPath() (string, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting config directory: %w", err)
	}
	return filepath.Join(dir, common.ConfigFileName), nil
}
