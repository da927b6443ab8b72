package engine

import (
	"runtime"
)

// Platform is a host operating system and architecture, in Go naming
type Platform struct {
	OS   string // linux, darwin, windows
	Arch string // amd64, arm64, 386
}

// HostPlatform returns the current platform
func HostPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Default catalog naming, shared by most engines
var (
	DefaultOSNames   = map[string]string{"darwin": "osx", "windows": "win"}
	DefaultArchNames = map[string]string{"amd64": "x64", "386": "x86"}
)

// goArchNames maps catalog architecture names back to Go naming
var goArchNames = map[string]string{"x64": "amd64", "x86": "386", "ia32": "386"}

// WithArch returns p with its architecture overridden. Both Go names
// ("amd64") and catalog names ("x64") are accepted.
func (p Platform) WithArch(arch string) Platform {
	if arch == "" {
		return p
	}
	if goArch, ok := goArchNames[arch]; ok {
		arch = goArch
	}
	p.Arch = arch
	return p
}

// MapOS maps the OS name to a target naming convention
func (p Platform) MapOS(mapping map[string]string) string {
	if mapped, exists := mapping[p.OS]; exists {
		return mapped
	}
	return p.OS
}

// MapArch maps the architecture name to a target naming convention
func (p Platform) MapArch(mapping map[string]string) string {
	if mapped, exists := mapping[p.Arch]; exists {
		return mapped
	}
	return p.Arch
}

// IsWindows returns true if the platform is Windows
func (p Platform) IsWindows() bool {
	return p.OS == "windows"
}

// String returns os/arch
func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// CatalogPlatform returns the catalog platform and architecture names of p for e
func CatalogPlatform(e Engine, p Platform) (string, string) {
	if namer, ok := e.(PlatformNamer); ok {
		return namer.CatalogPlatform(p)
	}
	return p.MapOS(DefaultOSNames), p.MapArch(DefaultArchNames)
}
