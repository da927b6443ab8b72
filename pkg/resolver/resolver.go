package resolver

import (
	"github.com/e5r/dev/pkg/catalog"
	"github.com/e5r/dev/pkg/engine"
	"github.com/e5r/dev/pkg/util"
	"github.com/e5r/dev/pkg/version"
)

// Request is a transient version request for one invocation
type Request struct {
	Spec     *version.Request
	Platform string // catalog platform name, e.g. "linux", "win", "osx"
	Arch     string // catalog architecture name, e.g. "x64", "x86"
}

// NewRequest builds a request for eng on the given host platform
func NewRequest(spec *version.Request, eng engine.Engine, host engine.Platform) Request {
	platform, arch := engine.CatalogPlatform(eng, host)
	return Request{Spec: spec, Platform: platform, Arch: arch}
}

// Resolve walks the descending catalog and returns the full version of the
// first entry matching the request, or "" when none does
func Resolve(req Request, cat *catalog.Catalog, eng engine.Engine) string {
	if cat == nil {
		return ""
	}

	for _, entry := range cat.Versions {
		v, err := version.Parse(entry.Version)
		if err != nil {
			continue
		}

		cmp := req.Spec.Match(v)
		if cmp > 0 {
			// sorted descending, nothing below can match
			break
		}
		if cmp < 0 {
			continue
		}

		if !entry.Supports(req.Platform, req.Arch) {
			util.LogVerbose("Skipping %s %s: not available for %s-%s", eng.Name(), entry.Version, req.Platform, req.Arch)
			continue
		}
		if !eng.VersionIsValid(entry) {
			util.LogVerbose("Skipping %s %s: rejected by engine", eng.Name(), entry.Version)
			continue
		}
		return eng.GetFullVersionNumber(entry.Version)
	}
	return ""
}

// Available returns the catalog entries installable on the request platform
// that match the request, newest first
func Available(req Request, cat *catalog.Catalog, eng engine.Engine) []catalog.VersionEntry {
	var result []catalog.VersionEntry
	if cat == nil {
		return result
	}
	for _, entry := range cat.Versions {
		v, err := version.Parse(entry.Version)
		if err != nil || req.Spec.Match(v) != 0 {
			continue
		}
		if entry.Supports(req.Platform, req.Arch) && eng.VersionIsValid(entry) {
			result = append(result, entry)
		}
	}
	return result
}

// ResolveInstalled returns the newest installed version matching spec, or "".
// accept may reject candidates, e.g. ones failing verification.
func ResolveInstalled(spec *version.Request, installed []string, accept func(string) bool) string {
	sorted := append([]string(nil), installed...)
	version.SortDescending(sorted)

	for _, candidate := range sorted {
		v, err := version.Parse(candidate)
		if err != nil {
			continue
		}
		if spec.Match(v) != 0 {
			continue
		}
		if accept == nil || accept(candidate) {
			return candidate
		}
	}
	return ""
}
