// Package env installs, lists and removes engine versions under the dev home
package env

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/e5r/dev/pkg/catalog"
	"github.com/e5r/dev/pkg/config"
	"github.com/e5r/dev/pkg/download"
	"github.com/e5r/dev/pkg/engine"
	"github.com/e5r/dev/pkg/errdefs"
	"github.com/e5r/dev/pkg/fsutil"
	"github.com/e5r/dev/pkg/install"
	"github.com/e5r/dev/pkg/resolver"
	"github.com/e5r/dev/pkg/util"
	"github.com/e5r/dev/pkg/version"
)

// leftoverPattern matches staging and backup siblings of a version directory
const leftoverPattern = "*{" + install.StagingSuffix + "," + install.BackupSuffix + "}"

// Manager handles engine installation and management
type Manager struct {
	cfg        *config.Config
	registry   *engine.Registry
	cache      *catalog.Cache
	downloader download.Downloader
	platform   engine.Platform
	out        io.Writer
}

// Option configures a Manager
type Option func(*Manager)

// WithDownloader replaces the HTTP downloader
func WithDownloader(d download.Downloader) Option {
	return func(m *Manager) { m.downloader = d }
}

// WithPlatform replaces the host platform
func WithPlatform(p engine.Platform) Option {
	return func(m *Manager) { m.platform = p }
}

// WithOutput sets the progress writer
func WithOutput(w io.Writer) Option {
	return func(m *Manager) { m.out = w }
}

// WithCache replaces the catalog cache
func WithCache(c *catalog.Cache) Option {
	return func(m *Manager) { m.cache = c }
}

// Options are the per-invocation engine options
type Options struct {
	engine.Options
	// Refresh bypasses the catalog cache
	Refresh bool
}

// InstallResult describes the outcome of Install
type InstallResult struct {
	Engine           string
	Version          string
	Path             string
	AlreadyInstalled bool
}

// NewManager creates a manager rooted at the configured dev home
func NewManager(cfg *config.Config, registry *engine.Registry, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		registry: registry,
		platform: engine.HostPlatform(),
		out:      io.Discard,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cache == nil {
		m.cache = catalog.NewCache(cfg.Paths.CacheDir, cfg.CacheTTL())
	}
	if m.downloader == nil {
		m.downloader = download.FromConfig(cfg, m.out)
	}
	return m
}

// Engines returns the registered engine names
func (m *Manager) Engines() []string {
	return m.registry.Names()
}

// InstallRoot returns <root>/env/<engine>
func (m *Manager) InstallRoot(name string) string {
	return filepath.Join(m.cfg.Paths.EnvDir, name)
}

// load creates and initializes an engine for one operation
func (m *Manager) load(name string, opts engine.Options) (engine.Engine, engine.Platform, error) {
	eng, err := m.registry.Load(name)
	if err != nil {
		return nil, engine.Platform{}, err
	}

	platform := m.platform.WithArch(opts.Arch)
	eng.Init(&engine.Context{
		Config:     m.cfg,
		Platform:   platform,
		Downloader: m.downloader,
		Out:        m.out,
	}, opts)
	return eng, platform, nil
}

func parseRequest(name, spec string) (*version.Request, error) {
	req, err := version.ParseRequest(spec)
	if err != nil {
		return nil, errdefs.Format(name, spec, errdefs.StageResolve, err)
	}
	return req, nil
}

// Catalog returns the normalized catalog of eng, from the cache when fresh
func (m *Manager) Catalog(ctx context.Context, eng engine.Engine, refresh bool) (*catalog.Catalog, error) {
	name := eng.Name()
	if refresh {
		if err := m.cache.Invalidate(name); err != nil {
			return nil, err
		}
	} else if cat := m.cache.Load(name); cat != nil {
		util.LogVerbose("Using cached %s catalog (%d versions)", name, len(cat.Versions))
		return cat, nil
	}

	util.LogVerbose("Fetching %s catalog", name)
	raw, err := eng.GetVersions(ctx)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrNetwork, name, "", errdefs.StageCatalog, err)
	}
	return m.cache.Save(name, raw)
}

// Resolve returns the catalog version matching spec on the host
func (m *Manager) Resolve(ctx context.Context, name, spec string, opts Options) (string, error) {
	eng, platform, err := m.load(name, opts.Options)
	if err != nil {
		return "", err
	}
	return m.resolve(ctx, eng, platform, spec, opts.Refresh)
}

func (m *Manager) resolve(ctx context.Context, eng engine.Engine, platform engine.Platform, spec string, refresh bool) (string, error) {
	name := eng.Name()
	req, err := parseRequest(name, spec)
	if err != nil {
		return "", err
	}

	cat, err := m.Catalog(ctx, eng, refresh)
	if err != nil {
		return "", err
	}

	rreq := resolver.NewRequest(req, eng, platform)
	resolved := resolver.Resolve(rreq, cat, eng)
	if resolved == "" {
		return "", errdefs.NotFound(name, spec, errdefs.StageResolve,
			fmt.Errorf("no version matching %q available for %s-%s", spec, rreq.Platform, rreq.Arch))
	}
	return resolved, nil
}

// Install resolves spec and installs the matching version unless a verified
// installation is already present
func (m *Manager) Install(ctx context.Context, name, spec string, opts Options) (*InstallResult, error) {
	eng, platform, err := m.load(name, opts.Options)
	if err != nil {
		return nil, err
	}
	name = eng.Name()
	display := engine.DisplayName(eng)

	resolved, err := m.resolve(ctx, eng, platform, spec, opts.Refresh)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(m.out, "🔍 Resolved %s %s to %s\n", display, spec, resolved)

	root := m.InstallRoot(name)
	target := install.NewTarget(root, resolved)
	if err := install.Recover(target); err != nil {
		return nil, err
	}

	if fsutil.Exists(target.FinalPath) {
		empty, err := fsutil.IsEmptyDir(target.FinalPath)
		if err == nil && !empty && eng.SuccessfullyInstalled(resolved, target.FinalPath) {
			fmt.Fprintf(m.out, "✅ %s %s already installed\n", display, resolved)
			return &InstallResult{Engine: name, Version: resolved, Path: target.FinalPath, AlreadyInstalled: true}, nil
		}

		util.LogVerbose("Removing unusable installation %s", target.FinalPath)
		if err := os.RemoveAll(target.FinalPath); err != nil {
			return nil, errdefs.Filesystem(name, resolved, errdefs.StagePrepare, fmt.Errorf("failed to remove unusable installation: %w", err))
		}
	}

	pipeline := install.NewPipelineFromConfig(m.cfg, m.downloader, m.out)
	res, err := pipeline.Install(ctx, eng, resolved, root)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(m.out, "✅ %s %s installed successfully\n", display, resolved)
	return &InstallResult{Engine: name, Version: resolved, Path: res.Path}, nil
}

// List returns the installed versions of an engine, newest first
func (m *Manager) List(name string) ([]string, error) {
	eng, err := m.registry.Load(name)
	if err != nil {
		return nil, err
	}
	name = eng.Name()

	root := m.InstallRoot(name)
	if !fsutil.IsDir(root) {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(root), "*")
	if err != nil {
		return nil, errdefs.Filesystem(name, "", errdefs.StageUninstall, err)
	}

	var versions []string
	for _, entry := range matches {
		if leftover, _ := doublestar.Match(leftoverPattern, entry); leftover {
			continue
		}
		if !fsutil.IsDir(filepath.Join(root, entry)) {
			continue
		}
		if _, err := version.Parse(entry); err != nil {
			util.LogVerbose("Ignoring %s: not a version directory", filepath.Join(root, entry))
			continue
		}
		versions = append(versions, entry)
	}
	version.SortDescending(versions)
	return versions, nil
}

// Test returns the newest installed version matching spec that passes verification
func (m *Manager) Test(ctx context.Context, name, spec string, opts Options) (string, error) {
	eng, _, err := m.load(name, opts.Options)
	if err != nil {
		return "", err
	}
	name = eng.Name()

	req, err := parseRequest(name, spec)
	if err != nil {
		return "", err
	}

	installed, err := m.List(name)
	if err != nil {
		return "", err
	}

	root := m.InstallRoot(name)
	found := resolver.ResolveInstalled(req, installed, func(v string) bool {
		return eng.SuccessfullyInstalled(v, filepath.Join(root, v))
	})
	if found == "" {
		return "", errdefs.NotFound(name, spec, errdefs.StageVerify, fmt.Errorf("no working installation matches %q", spec))
	}
	return found, nil
}

// Uninstall removes the newest installed version matching spec and returns it
func (m *Manager) Uninstall(ctx context.Context, name, spec string) (string, error) {
	eng, err := m.registry.Load(name)
	if err != nil {
		return "", err
	}
	name = eng.Name()

	req, err := parseRequest(name, spec)
	if err != nil {
		return "", err
	}

	installed, err := m.List(name)
	if err != nil {
		return "", err
	}

	found := resolver.ResolveInstalled(req, installed, nil)
	if found == "" {
		return "", errdefs.NotFound(name, spec, errdefs.StageUninstall, fmt.Errorf("no installed version matches %q", spec))
	}

	target := install.NewTarget(m.InstallRoot(name), found)
	for _, path := range []string{target.StagingPath, target.BackupPath, target.FinalPath} {
		if err := os.RemoveAll(path); err != nil {
			return "", errdefs.Filesystem(name, found, errdefs.StageUninstall, err)
		}
	}
	fmt.Fprintf(m.out, "🗑️  Removed %s %s\n", engine.DisplayName(eng), found)
	return found, nil
}

// Versions returns the catalog entries installable on the host matching spec.
// An empty spec lists every version.
func (m *Manager) Versions(ctx context.Context, name, spec string, opts Options) ([]catalog.VersionEntry, error) {
	eng, platform, err := m.load(name, opts.Options)
	if err != nil {
		return nil, err
	}

	if spec == "" {
		spec = version.Latest
	}
	req, err := parseRequest(eng.Name(), spec)
	if err != nil {
		return nil, err
	}

	cat, err := m.Catalog(ctx, eng, opts.Refresh)
	if err != nil {
		return nil, err
	}
	return resolver.Available(resolver.NewRequest(req, eng, platform), cat, eng), nil
}

// Prune recovers every version left with staging or backup siblings by an
// interrupted install. An empty name sweeps every engine. It returns the
// leftover paths that were handled.
func (m *Manager) Prune(name string) ([]string, error) {
	pattern := filepath.ToSlash(filepath.Join("*", leftoverPattern))
	if name != "" {
		eng, err := m.registry.Load(name)
		if err != nil {
			return nil, err
		}
		pattern = eng.Name() + "/" + leftoverPattern
	}

	envDir := m.cfg.Paths.EnvDir
	if !fsutil.IsDir(envDir) {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(envDir), pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", envDir, err)
	}

	var touched []string
	recovered := make(map[string]bool)
	for _, match := range matches {
		rel := filepath.FromSlash(match)
		engineDir, leftover := filepath.Split(rel)
		ver := strings.TrimSuffix(strings.TrimSuffix(leftover, install.StagingSuffix), install.BackupSuffix)

		touched = append(touched, filepath.Join(envDir, rel))
		key := filepath.Join(engineDir, ver)
		if recovered[key] {
			continue
		}
		recovered[key] = true

		target := install.NewTarget(filepath.Join(envDir, engineDir), ver)
		if err := install.Recover(target); err != nil {
			return touched, err
		}
	}
	return touched, nil
}
