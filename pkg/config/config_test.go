package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadFromDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := LoadFrom(root)
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Source)
	assert.Equal(t, DefaultVersionInfoExpires, cfg.Cache.VersionInfoExpires)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL())
	assert.Equal(t, DefaultDownloadTimeout, cfg.DownloadTimeout())
	assert.Equal(t, DefaultMaxRetries, cfg.Download.Retries)
	assert.Equal(t, DefaultRetryDelay, cfg.RetryDelay())
	assert.True(t, cfg.Download.VerifyChecksums)

	assert.Equal(t, filepath.Join(root, "cache", "env"), cfg.Paths.CacheDir)
	assert.Equal(t, filepath.Join(root, "env"), cfg.Paths.EnvDir)
}

func TestLoadFromJSON5(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "config.json5", `{
  // catalog refresh every hour
  cache: { versionInfoExpires: 3600 },
  download: { retries: 5, },
  url_replacements: {
    "nodejs.org": "mirror.example.com",
  },
}`)

	cfg, err := LoadFrom(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "config.json5"), cfg.Source)
	assert.Equal(t, time.Hour, cfg.CacheTTL())
	assert.Equal(t, 5, cfg.Download.Retries)
	// absent keys keep defaults
	assert.Equal(t, DefaultDownloadTimeout, cfg.DownloadTimeout())
	assert.True(t, cfg.Download.VerifyChecksums)
	assert.Equal(t, "mirror.example.com", cfg.URLReplacements["nodejs.org"])
}

func TestLoadFromYAML(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "config.yml", `
cache:
  versionInfoExpires: 60
download:
  timeout: 30s
  verifyChecksums: false
`)

	cfg, err := LoadFrom(root)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, 30*time.Second, cfg.DownloadTimeout())
	assert.False(t, cfg.Download.VerifyChecksums)
}

func TestLoadFromPrefersJSON5(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "config.json5", `{cache: {versionInfoExpires: 10}}`)
	writeConfig(t, root, "config.yaml", "cache:\n  versionInfoExpires: 20\n")

	cfg, err := LoadFrom(root)
	require.NoError(t, err)
	assert.Equal(t, int64(10), cfg.Cache.VersionInfoExpires)
}

func TestLoadFromInvalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"malformed json5", "config.json5", `{cache: `},
		{"negative ttl", "config.yml", "cache:\n  versionInfoExpires: -1\n"},
		{"bad timeout", "config.yml", "download:\n  timeout: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeConfig(t, root, tt.file, tt.content)

			_, err := LoadFrom(root)
			assert.Error(t, err)
		})
	}
}

func TestLoadWithOverrides(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "config.json", `{"download": {"retries": 1}}`)

	cfg, err := LoadWith(NewMapProvider(map[string]string{
		EnvHome:               root,
		EnvVersionInfoExpires: "0",
		EnvDownloadTimeout:    "45",
		EnvMaxRetries:         "7",
		EnvRetryDelay:         "500ms",
	}))
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Paths.Root)
	assert.Equal(t, time.Duration(0), cfg.CacheTTL())
	assert.Equal(t, 45*time.Second, cfg.DownloadTimeout())
	assert.Equal(t, 7, cfg.Download.Retries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay())
}

func TestHomeDirDefault(t *testing.T) {
	original := homeDirFunc
	defer func() { homeDirFunc = original }()

	home := t.TempDir()
	homeDirFunc = func() (string, error) { return home, nil }

	root, err := HomeDir(NewMapProvider(nil))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DefaultHomeDirName), root)
}

func TestGet(t *testing.T) {
	root := t.TempDir()
	cfg, err := LoadFrom(root)
	require.NoError(t, err)

	value, ok := cfg.Get(KeyVersionInfoExpires)
	assert.True(t, ok)
	assert.Equal(t, "86400", value)

	value, ok = cfg.Get(KeyEnvDir)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "env"), value)

	for _, key := range Keys() {
		_, ok := cfg.Get(key)
		assert.True(t, ok, key)
	}

	_, ok = cfg.Get("unknown.key")
	assert.False(t, ok)
}

func TestEnsureDirs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "home")
	cfg, err := LoadFrom(root)
	require.NoError(t, err)

	require.NoError(t, cfg.EnsureDirs())
	assert.DirExists(t, cfg.Paths.CacheDir)
	assert.DirExists(t, cfg.Paths.EnvDir)
	assert.DirExists(t, cfg.Paths.TempDir)
}

func TestEnvironmentProviderDuration(t *testing.T) {
	p := NewMapProvider(map[string]string{
		"A": "2m",
		"B": "15",
		"C": "garbage",
	})

	assert.Equal(t, 2*time.Minute, p.GetDuration("A", time.Second))
	assert.Equal(t, 15*time.Second, p.GetDuration("B", time.Second))
	assert.Equal(t, time.Second, p.GetDuration("C", time.Second))
	assert.Equal(t, time.Second, p.GetDuration("missing", time.Second))
}
