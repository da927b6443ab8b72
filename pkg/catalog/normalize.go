package catalog

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"

	"github.com/e5r/dev/pkg/errdefs"
	"github.com/e5r/dev/pkg/util"
	"github.com/e5r/dev/pkg/version"
)

// filePlatformRegex matches artifact names like "linux-x64", "osx-arm64-tar" or "win-x86-zip"
var filePlatformRegex = regexp.MustCompile(`^([a-z0-9]+)-([a-z0-9_]+)`)

// Normalize turns a raw engine catalog into a sorted, de-duplicated catalog.
// Entries without a numeric version or without any platform are dropped.
func Normalize(engineName string, raw *RawCatalog) (*Catalog, error) {
	if raw == nil {
		return nil, errdefs.Format(engineName, "", errdefs.StageNormalize, fmt.Errorf("catalog is empty"))
	}
	if raw.Environment != engineName {
		return nil, errdefs.Format(engineName, "", errdefs.StageNormalize,
			fmt.Errorf("catalog environment %q does not match engine %q", raw.Environment, engineName))
	}
	if raw.Versions == nil {
		return nil, errdefs.Format(engineName, "", errdefs.StageNormalize, fmt.Errorf("versions is not a list"))
	}

	type parsedEntry struct {
		v     version.Version
		entry VersionEntry
	}

	byVersion := make(map[string]parsedEntry)
	for i, rv := range raw.Versions {
		rawVersion, _ := rv["version"].(string)
		v, err := version.Parse(rawVersion)
		if err != nil {
			util.LogVerbose("Skipping %s catalog entry %d: %v", engineName, i, err)
			continue
		}

		platforms := entryPlatforms(rv)
		if len(platforms) == 0 {
			util.LogVerbose("Skipping %s %s: no platform available", engineName, v)
			continue
		}

		entry := VersionEntry{Version: v.String(), Platforms: platforms}
		if existing, ok := byVersion[entry.Version]; ok {
			if !reflect.DeepEqual(existing.entry.Platforms, entry.Platforms) {
				return nil, errdefs.Format(engineName, entry.Version, errdefs.StageNormalize,
					fmt.Errorf("duplicate catalog entries with different platforms"))
			}
			continue
		}
		byVersion[entry.Version] = parsedEntry{v: v, entry: entry}
	}

	parsed := make([]parsedEntry, 0, len(byVersion))
	for _, p := range byVersion {
		parsed = append(parsed, p)
	}
	sort.Slice(parsed, func(i, j int) bool {
		return parsed[i].v.Compare(parsed[j].v) > 0
	})

	cat := &Catalog{EngineName: engineName, Versions: make([]VersionEntry, 0, len(parsed))}
	for _, p := range parsed {
		cat.Versions = append(cat.Versions, p.entry)
	}
	return cat, nil
}

// entryPlatforms reads platforms from a "files" artifact name list, or from a
// "platforms" object already in normalized shape
func entryPlatforms(rv RawVersion) map[string][]string {
	sets := make(map[string]map[string]bool)
	add := func(platform, arch string) {
		if platform == "" || arch == "" {
			return
		}
		if sets[platform] == nil {
			sets[platform] = make(map[string]bool)
		}
		sets[platform][arch] = true
	}

	for _, name := range stringList(rv["files"]) {
		if m := filePlatformRegex.FindStringSubmatch(name); m != nil {
			add(m[1], m[2])
		}
	}

	switch platforms := rv["platforms"].(type) {
	case map[string]interface{}:
		for platform, archs := range platforms {
			for _, arch := range stringList(archs) {
				add(platform, arch)
			}
		}
	case map[string][]string:
		for platform, archs := range platforms {
			for _, arch := range archs {
				add(platform, arch)
			}
		}
	}

	if len(sets) == 0 {
		return nil
	}

	result := make(map[string][]string, len(sets))
	for platform, archs := range sets {
		list := make([]string, 0, len(archs))
		for arch := range archs {
			list = append(list, arch)
		}
		sort.Strings(list)
		result[platform] = list
	}
	return result
}

func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		result := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}
