package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// Config represents the dev configuration stored under the dev home
type Config struct {
	Cache           CacheConfig       `json:"cache" yaml:"cache"`
	Download        DownloadConfig    `json:"download" yaml:"download"`
	URLReplacements map[string]string `json:"url_replacements,omitempty" yaml:"url_replacements,omitempty"`

	// Paths is derived from the dev home, never read from the file
	Paths Paths `json:"-" yaml:"-"`

	// Source is the config file that was loaded, empty when defaults are used
	Source string `json:"-" yaml:"-"`
}

// CacheConfig configures the version catalog cache
type CacheConfig struct {
	// VersionInfoExpires is the catalog TTL in seconds
	VersionInfoExpires int64 `json:"versionInfoExpires" yaml:"versionInfoExpires"`
}

// DownloadConfig configures artifact downloads
type DownloadConfig struct {
	Timeout         string `json:"timeout" yaml:"timeout"`
	Retries         int    `json:"retries" yaml:"retries"`
	RetryDelay      string `json:"retryDelay" yaml:"retryDelay"`
	VerifyChecksums bool   `json:"verifyChecksums" yaml:"verifyChecksums"`
}

// Paths holds the directory layout rooted at the dev home
type Paths struct {
	Root     string
	CacheDir string
	EnvDir   string
	TempDir  string
}

// NewPaths derives the directory layout from a dev home
func NewPaths(root string) Paths {
	return Paths{
		Root:     root,
		CacheDir: filepath.Join(root, CacheFolder, EnvFolder),
		EnvDir:   filepath.Join(root, EnvFolder),
		TempDir:  filepath.Join(root, TempFolder),
	}
}

// configFiles are tried in order of preference
var configFiles = []string{
	"config.json5",
	"config.yml",
	"config.yaml",
	"config.json",
}

// homeDirFunc is a function variable that can be overridden for testing
var homeDirFunc = userHomeDir

func userHomeDir() (string, error) {
	var homeDir string
	var err error

	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
		if homeDir == "" {
			homeDir = os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
		}
	} else {
		homeDir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
	}

	if homeDir == "" {
		return "", fmt.Errorf("unable to determine user home directory")
	}
	return homeDir, nil
}

// Default returns a configuration holding only default values
func Default() *Config {
	return &Config{
		Cache: CacheConfig{VersionInfoExpires: DefaultVersionInfoExpires},
		Download: DownloadConfig{
			Timeout:         DefaultDownloadTimeout.String(),
			Retries:         DefaultMaxRetries,
			RetryDelay:      DefaultRetryDelay.String(),
			VerifyChecksums: true,
		},
	}
}

// HomeDir returns the dev home, honoring DEV_HOME
func HomeDir(provider Provider) (string, error) {
	if root := provider.GetString(EnvHome, ""); root != "" {
		return filepath.Abs(root)
	}
	home, err := homeDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultHomeDirName), nil
}

// Load loads the configuration from the dev home and applies environment overrides
func Load() (*Config, error) {
	return LoadWith(NewEnvironmentProvider())
}

// LoadWith loads the configuration using the given override provider
func LoadWith(provider Provider) (*Config, error) {
	root, err := HomeDir(provider)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadFrom(root)
	if err != nil {
		return nil, err
	}

	cfg.applyOverrides(provider)
	return cfg, nil
}

// LoadFrom loads the configuration stored in root without environment overrides.
// A missing config file is not an error.
func LoadFrom(root string) (*Config, error) {
	cfg := Default()

	for _, filename := range configFiles {
		path := filepath.Join(root, filename)
		if _, err := os.Stat(path); err == nil {
			if err := loadFile(path, cfg); err != nil {
				return nil, err
			}
			cfg.Source = path
			break
		}
	}

	cfg.Paths = NewPaths(root)
	return cfg, cfg.Validate()
}

// loadFile decodes path over cfg so absent keys keep their defaults
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch ext := filepath.Ext(path); ext {
	case ".json5", ".json":
		err = json5.Unmarshal(data, cfg)
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyOverrides(provider Provider) {
	c.Cache.VersionInfoExpires = provider.GetInt64(EnvVersionInfoExpires, c.Cache.VersionInfoExpires)
	c.Download.Timeout = provider.GetDuration(EnvDownloadTimeout, c.DownloadTimeout()).String()
	c.Download.Retries = provider.GetInt(EnvMaxRetries, c.Download.Retries)
	c.Download.RetryDelay = provider.GetDuration(EnvRetryDelay, c.RetryDelay()).String()
}

// Validate checks that the configured values are usable
func (c *Config) Validate() error {
	if c.Cache.VersionInfoExpires < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyVersionInfoExpires, c.Cache.VersionInfoExpires)
	}
	if c.Download.Retries < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyDownloadRetries, c.Download.Retries)
	}
	if _, err := time.ParseDuration(c.Download.Timeout); err != nil {
		return fmt.Errorf("invalid %s %q: %w", KeyDownloadTimeout, c.Download.Timeout, err)
	}
	if _, err := time.ParseDuration(c.Download.RetryDelay); err != nil {
		return fmt.Errorf("invalid %s %q: %w", KeyDownloadRetryDelay, c.Download.RetryDelay, err)
	}
	return nil
}

// CacheTTL returns the catalog cache time-to-live
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.VersionInfoExpires) * time.Second
}

// DownloadTimeout returns the per-artifact download timeout
func (c *Config) DownloadTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Download.Timeout); err == nil && d > 0 {
		return d
	}
	return DefaultDownloadTimeout
}

// RetryDelay returns the delay between download attempts
func (c *Config) RetryDelay() time.Duration {
	if d, err := time.ParseDuration(c.Download.RetryDelay); err == nil && d >= 0 {
		return d
	}
	return DefaultRetryDelay
}

// Get returns the string form of a configuration key
func (c *Config) Get(key string) (string, bool) {
	switch key {
	case KeyVersionInfoExpires:
		return strconv.FormatInt(c.Cache.VersionInfoExpires, 10), true
	case KeyDownloadTimeout:
		return c.DownloadTimeout().String(), true
	case KeyDownloadRetries:
		return strconv.Itoa(c.Download.Retries), true
	case KeyDownloadRetryDelay:
		return c.RetryDelay().String(), true
	case KeyVerifyChecksums:
		return strconv.FormatBool(c.Download.VerifyChecksums), true
	case KeyRoot:
		return c.Paths.Root, true
	case KeyCacheDir:
		return c.Paths.CacheDir, true
	case KeyEnvDir:
		return c.Paths.EnvDir, true
	case KeyTempDir:
		return c.Paths.TempDir, true
	}
	return "", false
}

// Keys lists every key understood by Get
func Keys() []string {
	return []string{
		KeyVersionInfoExpires,
		KeyDownloadTimeout,
		KeyDownloadRetries,
		KeyDownloadRetryDelay,
		KeyVerifyChecksums,
		KeyRoot,
		KeyCacheDir,
		KeyEnvDir,
		KeyTempDir,
	}
}

// EnsureDirs creates the dev home layout
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.Root, c.Paths.CacheDir, c.Paths.EnvDir, c.Paths.TempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ToYAML renders the configuration for display
func (c *Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to format configuration: %w", err)
	}
	return string(data), nil
}
