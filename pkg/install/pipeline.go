package install

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/e5r/dev/pkg/archive"
	"github.com/e5r/dev/pkg/config"
	"github.com/e5r/dev/pkg/download"
	"github.com/e5r/dev/pkg/engine"
	"github.com/e5r/dev/pkg/errdefs"
	"github.com/e5r/dev/pkg/util"
)

// Working area layout
const (
	DownloadedDir = "downloaded"
	ExtractedDir  = "extracted"
)

// Pipeline downloads, extracts, lays out and verifies one engine version
// behind a staging directory
type Pipeline struct {
	downloader      download.Downloader
	tempDir         string
	timeout         time.Duration
	verifyChecksums bool
	out             io.Writer
	extract         func(src, dest string) error
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithTempDir sets the parent of the temporary working areas
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// WithTimeout bounds every artifact download
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// WithChecksums toggles checksum verification for ChecksumSource engines
func WithChecksums(enabled bool) Option {
	return func(p *Pipeline) { p.verifyChecksums = enabled }
}

// WithOutput sets the progress writer
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// NewPipeline creates a pipeline using downloader for every fetch
func NewPipeline(downloader download.Downloader, opts ...Option) *Pipeline {
	p := &Pipeline{
		downloader:      downloader,
		timeout:         config.DefaultDownloadTimeout,
		verifyChecksums: true,
		out:             io.Discard,
		extract:         archive.Extract,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewPipelineFromConfig creates a pipeline configured from the dev configuration
func NewPipelineFromConfig(cfg *config.Config, downloader download.Downloader, out io.Writer) *Pipeline {
	return NewPipeline(downloader,
		WithTempDir(cfg.Paths.TempDir),
		WithTimeout(cfg.DownloadTimeout()),
		WithChecksums(cfg.Download.VerifyChecksums),
		WithOutput(out),
	)
}

// Result describes a committed installation
type Result struct {
	Engine    string
	Version   string
	Path      string
	Artifacts []string
	Duration  time.Duration
}

// run executes one stage, turning engine panics into stage failures
func run(kind error, name, version, stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errdefs.New(kind, name, version, stage, fmt.Errorf("panic: %v", r))
		}
	}()
	return errdefs.Wrap(kind, name, version, stage, fn())
}

// Install materializes version of eng under installRoot. On failure the
// previous state of the final path is restored and no staging or backup
// directory remains.
func (p *Pipeline) Install(ctx context.Context, eng engine.Engine, version, installRoot string) (res *Result, err error) {
	start := time.Now()
	name := eng.Name()
	display := engine.DisplayName(eng)

	var target *Target
	defer func() {
		if err == nil || target == nil {
			return
		}
		util.LogVerbose("Rolling back %s %s: %v", name, version, err)
		if rbErr := Rollback(target); rbErr != nil {
			err = &rollbackError{cause: err, rollback: rbErr}
		}
	}()

	// 1. artifact list
	var urls []string
	err = run(errdefs.ErrFormat, name, version, errdefs.StageDownloadList, func() error {
		var listErr error
		urls, listErr = eng.GetDownloadFileList(version)
		if listErr != nil {
			return listErr
		}
		if len(urls) == 0 {
			return fmt.Errorf("engine returned no files to download")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 2. working area
	workDir, err := p.createWorkArea(name, version)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			util.LogVerbose("Failed to remove working area %s: %v", workDir, rmErr)
		}
	}()
	downloadDir := filepath.Join(workDir, DownloadedDir)
	extractDir := filepath.Join(workDir, ExtractedDir)

	// 3. downloads
	fmt.Fprintf(p.out, "📥 Downloading %s %s (%d file(s))...\n", display, version, len(urls))
	artifacts, err := p.downloadAll(ctx, name, version, urls, downloadDir)
	if err != nil {
		return nil, err
	}

	if err := p.verifyArtifacts(ctx, eng, version, downloadDir, artifacts); err != nil {
		return nil, err
	}

	// 4. extraction
	dirs, err := extractDirs(artifacts)
	if err != nil {
		return nil, errdefs.Format(name, version, errdefs.StageExtract, err)
	}
	for _, artifact := range artifacts {
		dir, ok := dirs[artifact]
		if !ok {
			continue
		}
		dest := filepath.Join(extractDir, dir)
		fmt.Fprintf(p.out, "📦 Extracting %s...\n", artifact)
		err = run(errdefs.ErrFormat, name, version, errdefs.StageExtract, func() error {
			return p.extract(filepath.Join(downloadDir, artifact), dest)
		})
		if err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, errdefs.Network(name, version, errdefs.StageExtract, err)
	}

	// 5. staging
	target, err = Prepare(installRoot, version)
	if err != nil {
		return nil, err
	}

	// 6. layout
	fmt.Fprintf(p.out, "🔧 Installing %s %s...\n", display, version)
	err = run(errdefs.ErrFilesystem, name, version, errdefs.StageLayout, func() error {
		return eng.InstallFiles(downloadDir, extractDir, target.StagingPath, version)
	})
	if err != nil {
		return nil, err
	}

	// 7. verification
	err = run(errdefs.ErrVerification, name, version, errdefs.StageVerify, func() error {
		if !eng.SuccessfullyInstalled(version, target.StagingPath) {
			return fmt.Errorf("installed files failed verification")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 8. commit
	if err = Commit(target); err != nil {
		return nil, err
	}

	util.LogVerbose("Installed %s %s to %s in %v", name, version, target.FinalPath, time.Since(start))
	return &Result{
		Engine:    name,
		Version:   version,
		Path:      target.FinalPath,
		Artifacts: artifacts,
		Duration:  time.Since(start),
	}, nil
}

func (p *Pipeline) createWorkArea(name, version string) (string, error) {
	if p.tempDir != "" {
		if err := os.MkdirAll(p.tempDir, 0755); err != nil {
			return "", errdefs.Filesystem(name, version, errdefs.StagePrepare, err)
		}
	}

	workDir, err := os.MkdirTemp(p.tempDir, fmt.Sprintf("install-%s-%s-*", name, version))
	if err != nil {
		return "", errdefs.Filesystem(name, version, errdefs.StagePrepare, fmt.Errorf("failed to create working area: %w", err))
	}

	for _, sub := range []string{DownloadedDir, ExtractedDir} {
		if err := os.MkdirAll(filepath.Join(workDir, sub), 0755); err != nil {
			os.RemoveAll(workDir)
			return "", errdefs.Filesystem(name, version, errdefs.StagePrepare, err)
		}
	}
	return workDir, nil
}

// downloadAll fetches every URL sequentially and returns the artifact file names
func (p *Pipeline) downloadAll(ctx context.Context, name, version string, urls []string, downloadDir string) ([]string, error) {
	artifacts := make([]string, 0, len(urls))
	seen := make(map[string]bool)

	for _, rawURL := range urls {
		artifact, err := artifactName(rawURL)
		if err != nil {
			return nil, errdefs.Format(name, version, errdefs.StageDownloadList, err)
		}
		if seen[artifact] {
			return nil, errdefs.Format(name, version, errdefs.StageDownloadList, fmt.Errorf("duplicate artifact %s", artifact))
		}
		seen[artifact] = true

		if err := p.downloadOne(ctx, rawURL, filepath.Join(downloadDir, artifact)); err != nil {
			return nil, errdefs.Network(name, version, errdefs.StageDownload, err)
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

func (p *Pipeline) downloadOne(ctx context.Context, rawURL, dest string) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	_, err := p.downloader.Download(ctx, rawURL, dest)
	return err
}

// verifyArtifacts checks downloaded files listed in the engine checksum file
func (p *Pipeline) verifyArtifacts(ctx context.Context, eng engine.Engine, version, downloadDir string, artifacts []string) error {
	source, ok := eng.(engine.ChecksumSource)
	if !ok || !p.verifyChecksums {
		return nil
	}
	checksumURL := source.ChecksumURL(version)
	if checksumURL == "" {
		return nil
	}
	name := eng.Name()

	fetchCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	content, err := p.downloader.Fetch(fetchCtx, checksumURL)
	if err != nil {
		return errdefs.Network(name, version, errdefs.StageChecksum, fmt.Errorf("failed to fetch checksums: %w", err))
	}

	sums := parseChecksumFile(string(content))
	for _, artifact := range artifacts {
		expected, listed := sums[artifact]
		if !listed {
			util.LogVerbose("No checksum listed for %s", artifact)
			continue
		}
		if err := verifyChecksum(filepath.Join(downloadDir, artifact), expected); err != nil {
			return errdefs.Verification(name, version, errdefs.StageChecksum, err)
		}
		fmt.Fprintf(p.out, "  ✅ Checksum verified for %s\n", artifact)
	}
	return nil
}

// extractDirs maps every archive artifact to its directory under the
// extraction area. Two archives sharing a directory are rejected.
func extractDirs(artifacts []string) (map[string]string, error) {
	dirs := make(map[string]string)
	owners := make(map[string]string)
	for _, artifact := range artifacts {
		if !archive.IsArchive(artifact) {
			continue
		}
		dir := archive.TrimExtension(artifact)
		if owner, taken := owners[dir]; taken {
			return nil, fmt.Errorf("archives %s and %s both extract to %s", owner, artifact, dir)
		}
		owners[dir] = artifact
		dirs[artifact] = dir
	}
	return dirs, nil
}

// artifactName returns the file name of a download URL
func artifactName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid download URL %q: %w", rawURL, err)
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return "", fmt.Errorf("download URL %q has no file name", rawURL)
	}
	return base, nil
}

// rollbackError keeps the original failure as the cause
type rollbackError struct {
	cause    error
	rollback error
}

func (e *rollbackError) Error() string {
	return fmt.Sprintf("%v (rollback failed: %v)", e.cause, e.rollback)
}

func (e *rollbackError) Unwrap() error {
	return e.cause
}
