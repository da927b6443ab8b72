// Package node installs Node.js from the official distribution
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/e5r/dev/pkg/archive"
	"github.com/e5r/dev/pkg/catalog"
	"github.com/e5r/dev/pkg/engine"
	"github.com/e5r/dev/pkg/errdefs"
	"github.com/e5r/dev/pkg/fsutil"
	"github.com/e5r/dev/pkg/util"
)

// Name is the engine identifier
const Name = "node"

// Node distribution endpoints
const (
	DistURL  = "https://nodejs.org/dist"
	IndexURL = DistURL + "/index.json"
)

// Compile-time interface validation
var (
	_ engine.Engine         = (*Engine)(nil)
	_ engine.ChecksumSource = (*Engine)(nil)
	_ engine.DisplayNamer   = (*Engine)(nil)
)

// distOSNames is the naming of distribution file names
var distOSNames = map[string]string{"windows": "win"}

// Engine manages Node.js
// Downloads from https://nodejs.org/dist/
type Engine struct {
	ictx     *engine.Context
	platform engine.Platform
}

// New creates a Node engine
func New() engine.Engine {
	return &Engine{platform: engine.HostPlatform()}
}

func (n *Engine) Name() string { return Name }

// DisplayName returns the display name for Node.js
func (n *Engine) DisplayName() string { return "Node.js" }

func (n *Engine) Init(ictx *engine.Context, opts engine.Options) {
	n.ictx = ictx
	if ictx != nil {
		n.platform = ictx.Platform
	}
	n.platform = n.platform.WithArch(opts.Arch)
}

// GetVersions fetches index.json, a top-level array of releases
func (n *Engine) GetVersions(ctx context.Context) (*catalog.RawCatalog, error) {
	if n.ictx == nil || n.ictx.Downloader == nil {
		return nil, errdefs.Format(Name, "", errdefs.StageCatalog, fmt.Errorf("engine used before Init"))
	}

	data, err := n.ictx.Downloader.Fetch(ctx, IndexURL)
	if err != nil {
		return nil, errdefs.Network(Name, "", errdefs.StageCatalog, err)
	}

	var releases []catalog.RawVersion
	if err := json.Unmarshal(data, &releases); err != nil {
		return nil, errdefs.Format(Name, "", errdefs.StageCatalog, fmt.Errorf("failed to parse %s: %w", IndexURL, err))
	}
	util.LogVerbose("Fetched %d Node.js releases", len(releases))
	return &catalog.RawCatalog{Environment: Name, Versions: releases}, nil
}

// VersionIsValid accepts every entry that passed the platform filter
func (n *Engine) VersionIsValid(entry catalog.VersionEntry) bool {
	return true
}

func (n *Engine) GetFullVersionNumber(version string) string {
	return version
}

// distName returns the distribution base name, e.g. node-v7.0.4-linux-x64
func (n *Engine) distName(version string) string {
	return fmt.Sprintf("node-v%s-%s-%s", version, n.platform.MapOS(distOSNames), n.platform.MapArch(engine.DefaultArchNames))
}

func (n *Engine) archiveName(version string) string {
	if n.platform.IsWindows() {
		return n.distName(version) + ".zip"
	}
	return n.distName(version) + ".tar.gz"
}

func (n *Engine) GetDownloadFileList(version string) ([]string, error) {
	return []string{fmt.Sprintf("%s/v%s/%s", DistURL, version, n.archiveName(version))}, nil
}

// ChecksumURL returns the SHASUMS256.txt published with every release
func (n *Engine) ChecksumURL(version string) string {
	return fmt.Sprintf("%s/v%s/SHASUMS256.txt", DistURL, version)
}

// InstallFiles copies the distribution directory out of the extracted archive
func (n *Engine) InstallFiles(downloadDir, extractDir, installPath, version string) error {
	src := filepath.Join(extractDir, archive.TrimExtension(n.archiveName(version)), n.distName(version))
	if !fsutil.IsDir(src) {
		return fmt.Errorf("distribution directory %s not found in archive", filepath.Base(src))
	}

	if err := fsutil.CopyDir(src, installPath); err != nil {
		return fmt.Errorf("failed to copy Node.js files: %w", err)
	}

	if n.platform.IsWindows() {
		return nil
	}
	for _, bin := range []string{"node", "npm"} {
		path := filepath.Join(installPath, "bin", bin)
		if !fsutil.Exists(path) {
			continue
		}
		if err := os.Chmod(path, 0750); err != nil {
			return fmt.Errorf("failed to make %s executable: %w", bin, err)
		}
	}
	return nil
}

// SuccessfullyInstalled checks the node and npm binaries and the bundled modules
func (n *Engine) SuccessfullyInstalled(version, installPath string) bool {
	if n.platform.IsWindows() {
		return fsutil.Exists(filepath.Join(installPath, "node.exe")) &&
			fsutil.Exists(filepath.Join(installPath, "npm.cmd")) &&
			fsutil.IsDir(filepath.Join(installPath, "node_modules"))
	}

	for _, bin := range []string{"node", "npm"} {
		if !fsutil.IsExecutable(filepath.Join(installPath, "bin", bin)) {
			util.LogVerbose("Node.js %s: bin/%s missing or not executable", version, bin)
			return false
		}
	}
	return fsutil.IsDir(filepath.Join(installPath, "lib", "node_modules"))
}
