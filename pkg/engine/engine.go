package engine

import (
	"context"
	"io"

	"github.com/e5r/dev/pkg/catalog"
	"github.com/e5r/dev/pkg/config"
	"github.com/e5r/dev/pkg/download"
)

// Engine describes how to fetch, lay out and verify one runtime.
// The install pipeline and the resolver treat every Engine identically.
type Engine interface {
	// Name returns the stable lowercase identifier of the engine
	Name() string

	// Init stores the invocation context and options for later calls
	Init(ictx *Context, opts Options)

	// GetVersions fetches the raw remote version index
	GetVersions(ctx context.Context) (*catalog.RawCatalog, error)

	// VersionIsValid filters catalog entries the engine cannot install
	VersionIsValid(entry catalog.VersionEntry) bool

	// GetFullVersionNumber returns the canonical version for a matched entry
	GetFullVersionNumber(version string) string

	// GetDownloadFileList returns the artifact URLs for version
	GetDownloadFileList(version string) ([]string, error)

	// InstallFiles lays out installPath from the downloaded and extracted files.
	// installPath is empty when called.
	InstallFiles(downloadDir, extractDir, installPath, version string) error

	// SuccessfullyInstalled reports whether installPath holds a usable installation
	SuccessfullyInstalled(version, installPath string) bool
}

// PlatformNamer is implemented by engines whose catalog names platforms
// differently from the default mapping
type PlatformNamer interface {
	CatalogPlatform(p Platform) (platform, arch string)
}

// ChecksumSource is implemented by engines publishing a SHASUMS256-style file
type ChecksumSource interface {
	ChecksumURL(version string) string
}

// DisplayNamer is implemented by engines with a user-facing name
type DisplayNamer interface {
	DisplayName() string
}

// Context is the invocation context handed to Engine.Init
type Context struct {
	Config     *config.Config
	Platform   Platform
	Downloader download.Downloader
	Out        io.Writer
}

// Options is the engine option bag parsed from the command line
type Options struct {
	// Arch overrides the host architecture
	Arch string
	// Values holds engine-specific options such as nts=true
	Values map[string]string
}

// Get returns an option value
func (o Options) Get(key string) string {
	return o.Values[key]
}

// Bool returns an option parsed as a boolean
func (o Options) Bool(key string) bool {
	switch o.Values[key] {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// DisplayName returns the user-facing name of an engine
func DisplayName(e Engine) string {
	if namer, ok := e.(DisplayNamer); ok {
		return namer.DisplayName()
	}
	return e.Name()
}
