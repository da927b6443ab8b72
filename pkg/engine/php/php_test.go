package php

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e5r/dev/pkg/catalog"
	"github.com/e5r/dev/pkg/engine"
	"github.com/e5r/dev/pkg/errdefs"
	"github.com/e5r/dev/pkg/resolver"
	"github.com/e5r/dev/pkg/version"
)

var windows = engine.Platform{OS: "windows", Arch: "amd64"}

func newEngine(p engine.Platform, arch string, values map[string]string) *Engine {
	e := New().(*Engine)
	e.Init(&engine.Context{Platform: p}, engine.Options{Arch: arch, Values: values})
	return e
}

func loadCatalog(t *testing.T, e engine.Engine) *catalog.Catalog {
	t.Helper()
	raw, err := e.GetVersions(context.Background())
	require.NoError(t, err)
	cat, err := catalog.Normalize(Name, raw)
	require.NoError(t, err)
	return cat
}

func TestCatalog(t *testing.T) {
	cat := loadCatalog(t, New())
	require.Len(t, cat.Versions, 9)
	assert.Equal(t, "7.0.4", cat.Versions[0].Version)
	assert.Equal(t, "5.4.45", cat.Versions[8].Version)

	entry, ok := cat.Find("5.4.45")
	require.True(t, ok)
	assert.Equal(t, map[string][]string{"win": {"x86"}}, entry.Platforms)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		spec     string
		platform engine.Platform
		arch     string
		expected string
	}{
		{"latest", windows, "", "7.0.4"},
		{"7.0", windows, "", "7.0.4"},
		{"5", windows, "", "5.6.19"},
		{"5.5", windows, "", "5.5.33"},
		{"5.4", windows, "", ""},
		{"5.4", windows, "x86", "5.4.45"},
		{"7", engine.Platform{OS: "linux", Arch: "amd64"}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.spec+"/"+tt.platform.String()+tt.arch, func(t *testing.T) {
			e := newEngine(tt.platform, tt.arch, nil)
			spec, err := version.ParseRequest(tt.spec)
			require.NoError(t, err)

			req := resolver.NewRequest(spec, e, e.platform)
			assert.Equal(t, tt.expected, resolver.Resolve(req, loadCatalog(t, e), e))
		})
	}
}

func TestDownloadFileList(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		arch     string
		nts      string
		expected string
	}{
		{"current", "7.0.4", "", "", "http://windows.php.net/downloads/releases/php-7.0.4-Win32-VC14-x64.zip"},
		{"archived nts", "7.0.2", "x86", "true", "http://windows.php.net/downloads/releases/archives/php-7.0.2-nts-Win32-VC14-x86.zip"},
		{"vc11", "5.6.18", "", "", "http://windows.php.net/downloads/releases/archives/php-5.6.18-Win32-VC11-x64.zip"},
		{"vc9", "5.4.45", "ia32", "", "http://windows.php.net/downloads/releases/php-5.4.45-Win32-VC9-x86.zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(windows, tt.arch, map[string]string{OptionNTS: tt.nts})
			files, err := e.GetDownloadFileList(tt.version)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.expected}, files)
		})
	}
}

func TestDownloadFileListErrors(t *testing.T) {
	_, err := newEngine(windows, "", nil).GetDownloadFileList("8.0.0")
	assert.ErrorIs(t, err, errdefs.ErrNotFound)

	_, err = newEngine(windows, "x64", nil).GetDownloadFileList("5.4.45")
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
	assert.Contains(t, err.Error(), `"x64" architecture`)
}

func TestVersionIsValid(t *testing.T) {
	e := newEngine(windows, "", map[string]string{OptionNTS: "true"})
	e.metadata = &Metadata{Versions: []Release{
		{Version: "7.0.4", NTS: true, VC: "14", Arch: []string{"x64"}},
		{Version: "7.0.3", NTS: false, VC: "14", Arch: []string{"x64"}},
	}}

	assert.True(t, e.VersionIsValid(catalog.VersionEntry{Version: "7.0.4"}))
	assert.False(t, e.VersionIsValid(catalog.VersionEntry{Version: "7.0.3"}))
	assert.False(t, e.VersionIsValid(catalog.VersionEntry{Version: "1.0.0"}))

	e.nts = false
	assert.True(t, e.VersionIsValid(catalog.VersionEntry{Version: "7.0.3"}))
}

func TestInstallFiles(t *testing.T) {
	e := newEngine(windows, "", nil)
	work := t.TempDir()
	extractDir := filepath.Join(work, "extracted")
	src := filepath.Join(extractDir, "php-7.0.4-Win32-VC14-x64")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "ext"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "php.exe"), []byte("MZ"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "php.ini-development"), []byte("; dev"), 0644))

	installPath := filepath.Join(work, "7.0.4_new")
	require.NoError(t, os.MkdirAll(installPath, 0755))
	require.NoError(t, e.InstallFiles(filepath.Join(work, "downloaded"), extractDir, installPath, "7.0.4"))

	assert.DirExists(t, filepath.Join(installPath, "ext"))
	assert.True(t, e.SuccessfullyInstalled("7.0.4", installPath))

	require.NoError(t, os.Remove(filepath.Join(installPath, "php.ini-development")))
	assert.False(t, e.SuccessfullyInstalled("7.0.4", installPath))
}
