package catalog

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/e5r/dev/pkg/errdefs"
)

// VersionEntry is one normalized catalog entry
type VersionEntry struct {
	Version   string              `json:"version"`
	Platforms map[string][]string `json:"platforms"`
}

// Supports reports whether the entry has a build for platform and arch
func (e VersionEntry) Supports(platform, arch string) bool {
	for _, a := range e.Platforms[platform] {
		if a == arch {
			return true
		}
	}
	return false
}

// PlatformNames returns the entry platforms in sorted order
func (e VersionEntry) PlatformNames() []string {
	names := make([]string, 0, len(e.Platforms))
	for name := range e.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog is the normalized version list of one engine, sorted newest first
type Catalog struct {
	EngineName string         `json:"engineName"`
	Versions   []VersionEntry `json:"versions"`
}

// Find returns the entry with the given canonical version
func (c *Catalog) Find(version string) (VersionEntry, bool) {
	for _, e := range c.Versions {
		if e.Version == version {
			return e, true
		}
	}
	return VersionEntry{}, false
}

// RawVersion is one record of a remote index, of arbitrary shape
type RawVersion map[string]interface{}

// RawCatalog is what an engine returns from its catalog fetch
type RawCatalog struct {
	Environment string       `json:"environment"`
	Versions    []RawVersion `json:"versions"`
}

// DecodeRaw decodes a raw catalog document of the form
// {"environment": "...", "versions": [...]}
func DecodeRaw(engineName string, data []byte) (*RawCatalog, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errdefs.Format(engineName, "", errdefs.StageCatalog, fmt.Errorf("catalog is not a JSON object: %w", err))
	}

	raw := &RawCatalog{}
	if env, ok := doc["environment"]; ok {
		if err := json.Unmarshal(env, &raw.Environment); err != nil {
			return nil, errdefs.Format(engineName, "", errdefs.StageCatalog, fmt.Errorf("environment is not a string: %w", err))
		}
	}

	versions, ok := doc["versions"]
	if !ok {
		return nil, errdefs.Format(engineName, "", errdefs.StageCatalog, fmt.Errorf("catalog has no versions list"))
	}
	if err := json.Unmarshal(versions, &raw.Versions); err != nil || raw.Versions == nil {
		return nil, errdefs.Format(engineName, "", errdefs.StageCatalog, fmt.Errorf("versions is not a list"))
	}
	return raw, nil
}
