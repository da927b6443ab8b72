// Package php installs PHP builds for Windows from windows.php.net
package php

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/e5r/dev/pkg/archive"
	"github.com/e5r/dev/pkg/catalog"
	"github.com/e5r/dev/pkg/engine"
	"github.com/e5r/dev/pkg/errdefs"
	"github.com/e5r/dev/pkg/fsutil"
	"github.com/e5r/dev/pkg/util"
)

// Name is the engine identifier
const Name = "php"

// OptionNTS selects the non-thread-safe build
const OptionNTS = "nts"

//go:embed php_windows.json
var windowsMetadata []byte

// Compile-time interface validation
var (
	_ engine.Engine       = (*Engine)(nil)
	_ engine.DisplayNamer = (*Engine)(nil)
)

// Release is the build metadata of one PHP version
type Release struct {
	Version   string   `json:"version"`
	NTS       bool     `json:"nts"`
	VC        string   `json:"vc"`
	Arch      []string `json:"arch"`
	IsArchive bool     `json:"is_archive"`
}

func (r Release) supportsArch(arch string) bool {
	for _, a := range r.Arch {
		if a == arch {
			return true
		}
	}
	return false
}

// Metadata is the embedded release list
type Metadata struct {
	BaseDownloadURL    string    `json:"base_download_url"`
	ArchiveDownloadURL string    `json:"archive_download_url"`
	Versions           []Release `json:"versions"`
}

// Lookup returns the metadata of version
func (m *Metadata) Lookup(version string) (Release, bool) {
	for _, r := range m.Versions {
		if r.Version == version {
			return r, true
		}
	}
	return Release{}, false
}

// LoadMetadata decodes the embedded Windows release list
func LoadMetadata() (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(windowsMetadata, &m); err != nil {
		return nil, fmt.Errorf("invalid embedded PHP metadata: %w", err)
	}
	return &m, nil
}

// Engine manages PHP. Only Windows builds are published as archives.
type Engine struct {
	platform engine.Platform
	nts      bool
	metadata *Metadata
}

// New creates a PHP engine
func New() engine.Engine {
	return &Engine{platform: engine.HostPlatform()}
}

func (p *Engine) Name() string { return Name }

// DisplayName returns the display name for PHP
func (p *Engine) DisplayName() string { return "PHP" }

func (p *Engine) Init(ictx *engine.Context, opts engine.Options) {
	if ictx != nil {
		p.platform = ictx.Platform
	}
	p.platform = p.platform.WithArch(opts.Arch)
	p.nts = opts.Bool(OptionNTS)
}

func (p *Engine) loadMetadata() (*Metadata, error) {
	if p.metadata == nil {
		m, err := LoadMetadata()
		if err != nil {
			return nil, err
		}
		p.metadata = m
	}
	return p.metadata, nil
}

// GetVersions returns the embedded catalog; no network access is needed
func (p *Engine) GetVersions(ctx context.Context) (*catalog.RawCatalog, error) {
	return catalog.DecodeRaw(Name, windowsMetadata)
}

// VersionIsValid rejects versions without a non-thread-safe build when nts is requested
func (p *Engine) VersionIsValid(entry catalog.VersionEntry) bool {
	m, err := p.loadMetadata()
	if err != nil {
		return false
	}
	release, ok := m.Lookup(entry.Version)
	if !ok {
		return false
	}
	return !p.nts || release.NTS
}

func (p *Engine) GetFullVersionNumber(version string) string {
	return version
}

func (p *Engine) arch() string {
	return p.platform.MapArch(engine.DefaultArchNames)
}

func (p *Engine) fileName(release Release) string {
	nts := ""
	if p.nts {
		nts = "-nts"
	}
	return fmt.Sprintf("php-%s%s-Win32-VC%s-%s.zip", release.Version, nts, release.VC, p.arch())
}

func (p *Engine) GetDownloadFileList(version string) ([]string, error) {
	m, err := p.loadMetadata()
	if err != nil {
		return nil, errdefs.Format(Name, version, errdefs.StageDownloadList, err)
	}

	release, ok := m.Lookup(version)
	if !ok {
		return nil, errdefs.NotFound(Name, version, errdefs.StageDownloadList, fmt.Errorf("no metadata for PHP %s", version))
	}
	if !release.supportsArch(p.arch()) {
		return nil, errdefs.NotFound(Name, version, errdefs.StageDownloadList, fmt.Errorf("PHP %s is not available for %q architecture", version, p.arch()))
	}
	if p.nts && !release.NTS {
		return nil, errdefs.NotFound(Name, version, errdefs.StageDownloadList, fmt.Errorf("PHP %s is not available in non-thread-safe mode", version))
	}

	base := m.BaseDownloadURL
	if release.IsArchive {
		base = m.ArchiveDownloadURL
	}
	return []string{base + p.fileName(release)}, nil
}

// InstallFiles copies the extracted zip, which has no top-level directory
func (p *Engine) InstallFiles(downloadDir, extractDir, installPath, version string) error {
	m, err := p.loadMetadata()
	if err != nil {
		return err
	}
	release, ok := m.Lookup(version)
	if !ok {
		return fmt.Errorf("no metadata for PHP %s", version)
	}

	src := filepath.Join(extractDir, archive.TrimExtension(p.fileName(release)))
	if !fsutil.IsDir(src) {
		return fmt.Errorf("extracted files not found at %s", src)
	}
	util.LogVerbose("Copying PHP files from %s", src)
	return fsutil.CopyDir(src, installPath)
}

func (p *Engine) SuccessfullyInstalled(version, installPath string) bool {
	return fsutil.Exists(filepath.Join(installPath, "php.exe")) &&
		fsutil.Exists(filepath.Join(installPath, "php.ini-development"))
}
