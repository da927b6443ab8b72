package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e5r/dev/pkg/env"
	"github.com/e5r/dev/pkg/util"
)

// withHome points the dev home at a temporary directory and captures output
func withHome(t *testing.T) (string, *bytes.Buffer) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("DEV_HOME", home)

	var buf bytes.Buffer
	original := printer
	printer = util.NewPlainPrinter(&buf)
	t.Cleanup(func() { printer = original })
	return home, &buf
}

func TestParseOptions(t *testing.T) {
	values, err := parseOptions([]string{"nts=true", "NTS2 = no ", "flag"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"nts": "true", "nts2": "no", "flag": "true"}, values)

	_, err = parseOptions([]string{"=value"})
	assert.Error(t, err)
}

func TestEnvAliases(t *testing.T) {
	tests := map[string]string{
		"i": "install", "in": "install",
		"u": "uninstall", "un": "uninstall",
		"l": "list", "li": "list",
		"t": "test", "ts": "test",
	}
	for alias, name := range tests {
		found, _, err := rootCmd.Find([]string{"env", alias})
		require.NoError(t, err, alias)
		assert.Equal(t, name, found.Name(), alias)
	}
}

func TestConfigGet(t *testing.T) {
	home, buf := withHome(t)

	require.NoError(t, getConfig("cache.versionInfoExpires"))
	assert.Equal(t, "86400\n", buf.String())

	buf.Reset()
	require.NoError(t, getConfig("paths.env"))
	assert.Equal(t, filepath.Join(home, "env")+"\n", buf.String())

	err := getConfig("cache.nothing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known keys")
}

func TestConfigPathAndShow(t *testing.T) {
	home, buf := withHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yml"), []byte("download:\n  retries: 9\n"), 0644))

	require.NoError(t, showConfigPath())
	assert.Equal(t, home+"\n", buf.String())

	buf.Reset()
	require.NoError(t, showConfig())
	assert.Contains(t, buf.String(), "retries: 9")
	assert.Contains(t, buf.String(), filepath.Join(home, "config.yml"))
}

func TestListEngines(t *testing.T) {
	_, buf := withHome(t)

	require.NoError(t, listEngines())
	assert.Contains(t, buf.String(), "Node.js")
	assert.Contains(t, buf.String(), "PHP")
}

func TestListAndPruneEnv(t *testing.T) {
	home, buf := withHome(t)
	nodeDir := filepath.Join(home, "env", "node")
	require.NoError(t, os.MkdirAll(filepath.Join(nodeDir, "7.0.4"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(nodeDir, "6.9.1_new"), 0755))

	require.NoError(t, listEnv("node"))
	assert.Contains(t, buf.String(), "7.0.4")
	assert.NotContains(t, buf.String(), "6.9.1")

	buf.Reset()
	require.NoError(t, pruneEnv("node"))
	assert.Contains(t, buf.String(), filepath.Join(nodeDir, "6.9.1_new"))
	assert.NoDirExists(t, filepath.Join(nodeDir, "6.9.1_new"))

	buf.Reset()
	require.NoError(t, listEnv("php"))
	assert.Contains(t, buf.String(), "No php versions installed")

	err := listEnv("ruby")
	assert.Error(t, err)
}

func TestEnvVersionFlagDefaults(t *testing.T) {
	tests := []struct {
		cmd      *cobra.Command
		bound    *string
		expected string
	}{
		{envInstallCmd, &installVersion, "latest"},
		{envUninstallCmd, &uninstallVersion, ""},
		{envTestCmd, &testVersion, "latest"},
		{envVersionsCmd, &versionsFilter, ""},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			require.NoError(t, tt.cmd.ParseFlags([]string{}))
			assert.Equal(t, tt.expected, *tt.bound)
			assert.Equal(t, tt.expected, tt.cmd.Flags().Lookup("version").DefValue)
		})
	}
}

// installFakeNode lays out a directory that passes node verification on the host
func installFakeNode(t *testing.T, dir string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0755))
		for _, name := range []string{"node.exe", "npm.cmd"} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0755))
		}
		return
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib", "node_modules"), 0755))
	for _, name := range []string{"node", "npm"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", name), []byte("#!/bin/sh\n"), 0755))
	}
}

func TestEnvTestWithoutVersionFlag(t *testing.T) {
	home, buf := withHome(t)
	nodeDir := filepath.Join(home, "env", "node")
	installFakeNode(t, filepath.Join(nodeDir, "6.9.1"))
	installFakeNode(t, filepath.Join(nodeDir, "7.0.4"))

	require.NoError(t, envTestCmd.ParseFlags([]string{}))
	require.NoError(t, testEnv(context.Background(), "node", testVersion, env.Options{}))
	assert.Contains(t, buf.String(), "node 7.0.4 is installed and working")

	require.NoError(t, envTestCmd.ParseFlags([]string{"--version", "6"}))
	t.Cleanup(func() { testVersion = "latest" })
	buf.Reset()
	require.NoError(t, testEnv(context.Background(), "node", testVersion, env.Options{}))
	assert.Contains(t, buf.String(), "node 6.9.1 is installed and working")
}
