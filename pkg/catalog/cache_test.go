package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e5r/dev/pkg/errdefs"
)

func sampleRaw() *RawCatalog {
	return &RawCatalog{
		Environment: "sample",
		Versions: []RawVersion{
			rawEntry("7.0.3", "linux-x64"),
			rawEntry("7.0.4", "linux-x64", "win-x64-zip"),
		},
	}
}

func TestCacheSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache", "env")
	cache := NewCache(dir, time.Hour)

	saved, err := cache.Save("sample", sampleRaw())
	require.NoError(t, err)
	assert.Equal(t, "7.0.4", saved.Versions[0].Version)

	assert.Equal(t, filepath.Join(dir, "sample-versions.cache.json"), cache.Path("sample"))
	assert.FileExists(t, cache.Path("sample"))

	loaded := cache.Load("sample")
	require.NotNil(t, loaded)
	assert.Equal(t, saved, loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestCacheLoadMissing(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)
	assert.Nil(t, cache.Load("sample"))
}

func TestCacheTTL(t *testing.T) {
	dir := t.TempDir()
	ttl := 86400 * time.Second
	written := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	now := written
	cache := NewCache(dir, ttl, WithClock(func() time.Time { return now }))

	_, err := cache.Save("sample", sampleRaw())
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(cache.Path("sample"), written, written))

	now = written.Add(ttl - time.Second)
	assert.NotNil(t, cache.Load("sample"), "served before expiry")

	now = written.Add(ttl)
	assert.NotNil(t, cache.Load("sample"), "served at exact expiry")

	now = written.Add(ttl + time.Second)
	assert.Nil(t, cache.Load("sample"), "miss after expiry")
}

func TestCacheCorruptionIsMiss(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `{"engineName": "sample", "versions": [`},
		{"schema violation", `{"engineName": "sample", "versions": [{"version": "7.0.4"}]}`},
		{"non canonical version", `{"engineName": "sample", "versions": [{"version": "v7", "platforms": {"linux": ["x64"]}}]}`},
		{"empty platforms", `{"engineName": "sample", "versions": [{"version": "7.0.4", "platforms": {}}]}`},
		{"wrong engine", `{"engineName": "node", "versions": []}`},
		{"unsorted", `{"engineName": "sample", "versions": [
			{"version": "7.0.3", "platforms": {"linux": ["x64"]}},
			{"version": "7.0.4", "platforms": {"linux": ["x64"]}}]}`},
		{"duplicate", `{"engineName": "sample", "versions": [
			{"version": "7.0.4", "platforms": {"linux": ["x64"]}},
			{"version": "7.0.4", "platforms": {"linux": ["x64"]}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewCache(t.TempDir(), time.Hour)
			require.NoError(t, os.WriteFile(cache.Path("sample"), []byte(tt.content), 0644))
			assert.Nil(t, cache.Load("sample"))
		})
	}
}

func TestCacheManualEditResetsFreshness(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Minute)
	content := `{"engineName": "sample", "versions": [{"version": "7.0.4", "platforms": {"linux": ["x64"]}}]}`
	require.NoError(t, os.WriteFile(cache.Path("sample"), []byte(content), 0644))

	cat := cache.Load("sample")
	require.NotNil(t, cat)
	assert.Equal(t, "7.0.4", cat.Versions[0].Version)
}

func TestCacheSaveRejectsMalformed(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)

	_, err := cache.Save("sample", &RawCatalog{Environment: "other", Versions: []RawVersion{}})
	assert.ErrorIs(t, err, errdefs.ErrFormat)
	assert.NoFileExists(t, cache.Path("sample"))
}

func TestCacheInvalidate(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)
	_, err := cache.Save("sample", sampleRaw())
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate("sample"))
	assert.Nil(t, cache.Load("sample"))
	assert.NoError(t, cache.Invalidate("sample"), "invalidating twice is fine")
}
