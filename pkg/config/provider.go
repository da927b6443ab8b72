package config

import (
	"os"
	"strconv"
	"time"
)

// Provider supplies configuration overrides by key
type Provider interface {
	GetDuration(key string, defaultValue time.Duration) time.Duration
	GetInt(key string, defaultValue int) int
	GetInt64(key string, defaultValue int64) int64
	GetString(key string, defaultValue string) string
	GetBool(key string, defaultValue bool) bool
}

// EnvironmentProvider provides configuration from environment variables
type EnvironmentProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvironmentProvider creates a new environment-based config provider
func NewEnvironmentProvider() *EnvironmentProvider {
	return &EnvironmentProvider{lookup: os.LookupEnv}
}

// NewMapProvider creates a provider backed by a fixed map, used in tests
func NewMapProvider(values map[string]string) *EnvironmentProvider {
	return &EnvironmentProvider{lookup: func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}}
}

func (p *EnvironmentProvider) get(key string) string {
	if v, ok := p.lookup(key); ok {
		return v
	}
	return ""
}

// GetDuration returns a duration from environment or default.
// Plain integers are read as seconds.
func (p *EnvironmentProvider) GetDuration(key string, defaultValue time.Duration) time.Duration {
	value := p.get(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// GetInt returns an integer value from environment or default
func (p *EnvironmentProvider) GetInt(key string, defaultValue int) int {
	if value := p.get(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetInt64 returns an int64 value from environment or default
func (p *EnvironmentProvider) GetInt64(key string, defaultValue int64) int64 {
	if value := p.get(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetString returns a string value from environment or default
func (p *EnvironmentProvider) GetString(key string, defaultValue string) string {
	if value := p.get(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBool returns a boolean value from environment or default
func (p *EnvironmentProvider) GetBool(key string, defaultValue bool) bool {
	if value := p.get(key); value != "" {
		return value == "true"
	}
	return defaultValue
}
