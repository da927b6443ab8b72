package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/e5r/dev/pkg/engine"
	"github.com/e5r/dev/pkg/env"
)

var (
	installVersion   string
	uninstallVersion string
	testVersion      string
	versionsFilter   string

	envArch    string
	envOptions []string
	envRefresh bool
)

// envCmd groups the environment management commands
var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage runtime environments",
	Long: `Install, remove and inspect runtime environments.

Versions are requested as "latest" or with one to three numeric components;
the newest matching version available for this host is used.

Examples:
  dev env install node --version 7          # Newest 7.x.y
  dev env install php --version 7.0 --option nts=true --arch x86
  dev env uninstall node --version 7.0.4
  dev env test node --version 7`,
}

var envInstallCmd = &cobra.Command{
	Use:     "install <engine>",
	Aliases: []string{"i", "in"},
	Short:   "Install an engine version",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := envOptionsFromFlags()
		exitOnError(err)
		exitOnError(installEnv(cmd.Context(), args[0], installVersion, opts))
	},
}

var envUninstallCmd = &cobra.Command{
	Use:     "uninstall <engine>",
	Aliases: []string{"u", "un"},
	Short:   "Remove an installed engine version",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(uninstallEnv(cmd.Context(), args[0], uninstallVersion))
	},
}

var envListCmd = &cobra.Command{
	Use:     "list <engine>",
	Aliases: []string{"l", "li"},
	Short:   "List installed engine versions",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(listEnv(args[0]))
	},
}

var envTestCmd = &cobra.Command{
	Use:     "test <engine>",
	Aliases: []string{"t", "ts"},
	Short:   "Check that a working installation matches a version",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := envOptionsFromFlags()
		exitOnError(err)
		exitOnError(testEnv(cmd.Context(), args[0], testVersion, opts))
	},
}

var envVersionsCmd = &cobra.Command{
	Use:   "versions <engine>",
	Short: "List versions available for this host",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := envOptionsFromFlags()
		exitOnError(err)
		exitOnError(listAvailable(cmd.Context(), args[0], versionsFilter, opts))
	},
}

var envPruneCmd = &cobra.Command{
	Use:   "prune [engine]",
	Short: "Recover installations left behind by interrupted operations",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		exitOnError(pruneEnv(name))
	},
}

var envEnginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List the available engines",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(listEngines())
	},
}

func init() {
	envInstallCmd.Flags().StringVar(&installVersion, "version", "latest", "version to install")
	envUninstallCmd.Flags().StringVar(&uninstallVersion, "version", "", "version to remove")
	envUninstallCmd.MarkFlagRequired("version")
	envTestCmd.Flags().StringVar(&testVersion, "version", "latest", "version to check")
	envVersionsCmd.Flags().StringVar(&versionsFilter, "version", "", "only show versions matching this request")

	for _, c := range []*cobra.Command{envInstallCmd, envTestCmd, envVersionsCmd} {
		c.Flags().StringVar(&envArch, "arch", "", "target architecture (x64, x86, arm64)")
		c.Flags().StringArrayVar(&envOptions, "option", nil, "engine option as key=value (repeatable)")
	}
	for _, c := range []*cobra.Command{envInstallCmd, envVersionsCmd} {
		c.Flags().BoolVar(&envRefresh, "refresh", false, "ignore the cached version catalog")
	}

	envCmd.AddCommand(envInstallCmd)
	envCmd.AddCommand(envUninstallCmd)
	envCmd.AddCommand(envListCmd)
	envCmd.AddCommand(envTestCmd)
	envCmd.AddCommand(envVersionsCmd)
	envCmd.AddCommand(envPruneCmd)
	envCmd.AddCommand(envEnginesCmd)
}

func envOptionsFromFlags() (env.Options, error) {
	values, err := parseOptions(envOptions)
	if err != nil {
		return env.Options{}, err
	}
	return env.Options{
		Options: engine.Options{Arch: envArch, Values: values},
		Refresh: envRefresh,
	}, nil
}

// parseOptions parses key=value pairs. A bare key means true.
func parseOptions(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return nil, fmt.Errorf("invalid option %q: expected key=value", pair)
		}
		if !found {
			value = "true"
		}
		values[key] = strings.TrimSpace(value)
	}
	return values, nil
}

func installEnv(ctx context.Context, name, spec string, opts env.Options) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	result, err := manager.Install(ctx, name, spec, opts)
	if err != nil {
		return err
	}
	if !result.AlreadyInstalled {
		printer.Success("📍 %s %s installed at %s", result.Engine, result.Version, result.Path)
	}
	return nil
}

func uninstallEnv(ctx context.Context, name, spec string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	removed, err := manager.Uninstall(ctx, name, spec)
	if err != nil {
		return err
	}
	printer.Success("✅ %s %s uninstalled", name, removed)
	return nil
}

func listEnv(name string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	versions, err := manager.List(name)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		printInfo("No %s versions installed", name)
		return nil
	}

	printer.Header("📦 Installed %s versions", name)
	for _, v := range versions {
		printInfo("  %s", v)
	}
	return nil
}

func testEnv(ctx context.Context, name, spec string, opts env.Options) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	found, err := manager.Test(ctx, name, spec, opts)
	if err != nil {
		return err
	}
	printer.Success("✅ %s %s is installed and working", name, found)
	return nil
}

func listAvailable(ctx context.Context, name, spec string, opts env.Options) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	entries, err := manager.Versions(ctx, name, spec, opts)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		printInfo("No %s versions available for this host", name)
		return nil
	}

	printer.Header("🌐 Available %s versions", name)
	for _, entry := range entries {
		var platforms []string
		for _, platform := range entry.PlatformNames() {
			platforms = append(platforms, fmt.Sprintf("%s(%s)", platform, strings.Join(entry.Platforms[platform], ",")))
		}
		printInfo("  %-10s %s", entry.Version, strings.Join(platforms, " "))
	}
	return nil
}

func pruneEnv(name string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	touched, err := manager.Prune(name)
	if err != nil {
		return err
	}
	if len(touched) == 0 {
		printInfo("Nothing to prune")
		return nil
	}

	sort.Strings(touched)
	for _, path := range touched {
		printInfo("  🧹 %s", path)
	}
	printer.Success("✅ Recovered %d leftover director(ies)", len(touched))
	return nil
}

func listEngines() error {
	registry := newRegistry()

	printer.Header("🛠️  Available engines")
	for _, name := range registry.Names() {
		eng, err := registry.Load(name)
		if err != nil {
			printer.Warn("%v", err)
			continue
		}
		printInfo("  %-8s %s", name, engine.DisplayName(eng))
	}
	return nil
}
