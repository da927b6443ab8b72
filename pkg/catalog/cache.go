package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/e5r/dev/pkg/errdefs"
	"github.com/e5r/dev/pkg/util"
	"github.com/e5r/dev/pkg/version"
)

//go:embed cache.schema.json
var cacheSchemaJSON string

var cacheSchema = jsonschema.MustCompileString("cache.schema.json", cacheSchemaJSON)

// CacheFileSuffix is appended to the engine name to form the cache file name
const CacheFileSuffix = "-versions.cache.json"

// Cache stores one normalized catalog per engine. Freshness is the file mtime.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithClock overrides the clock used for freshness checks
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a cache rooted at dir with the given time-to-live
func NewCache(dir string, ttl time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{dir: dir, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the cache file of an engine
func (c *Cache) Path(engineName string) string {
	return filepath.Join(c.dir, engineName+CacheFileSuffix)
}

// Load returns the cached catalog, or nil when it is absent, expired or corrupt
func (c *Cache) Load(engineName string) *Catalog {
	path := c.Path(engineName)

	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			util.LogVerbose("Cannot stat catalog cache %s: %v", path, err)
		}
		return nil
	}

	if info.ModTime().Before(c.now().Add(-c.ttl)) {
		util.LogVerbose("Catalog cache %s expired (modified %s)", path, info.ModTime().Format(time.RFC3339))
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		util.LogVerbose("Cannot read catalog cache %s: %v", path, err)
		return nil
	}

	cat, err := decodeCache(engineName, data)
	if err != nil {
		util.LogVerbose("Ignoring corrupt catalog cache %s: %v", path, err)
		return nil
	}
	return cat
}

func decodeCache(engineName string, data []byte) (*Catalog, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if err := cacheSchema.Validate(doc); err != nil {
		return nil, err
	}

	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, err
	}
	if cat.EngineName != engineName {
		return nil, fmt.Errorf("cache belongs to engine %q", cat.EngineName)
	}

	var previous *version.Version
	for _, e := range cat.Versions {
		v, err := version.Parse(e.Version)
		if err != nil {
			return nil, err
		}
		if previous != nil && previous.Compare(v) <= 0 {
			return nil, fmt.Errorf("versions are not strictly descending at %s", e.Version)
		}
		previous = &v
	}
	return &cat, nil
}

// Save normalizes raw, persists it and returns the normalized catalog
func (c *Cache) Save(engineName string, raw *RawCatalog) (*Catalog, error) {
	cat, err := Normalize(engineName, raw)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return nil, errdefs.Format(engineName, "", errdefs.StageNormalize, err)
	}

	if err := writeFileAtomic(c.Path(engineName), data); err != nil {
		return nil, errdefs.Filesystem(engineName, "", errdefs.StageCatalog, err)
	}

	util.LogVerbose("Saved %d %s versions to %s", len(cat.Versions), engineName, c.Path(engineName))
	return cat, nil
}

// Invalidate removes the cache file of an engine
func (c *Cache) Invalidate(engineName string) error {
	if err := os.Remove(c.Path(engineName)); err != nil && !os.IsNotExist(err) {
		return errdefs.Filesystem(engineName, "", errdefs.StageCatalog, err)
	}
	return nil
}

// writeFileAtomic writes data to a temporary sibling and renames it over path
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close cache file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move cache file into place: %w", err)
	}
	return nil
}
