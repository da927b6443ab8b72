package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/e5r/dev/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect dev configuration",
	Long: `Inspect the dev configuration stored in the dev home.

The configuration is read from config.json5, config.yml, config.yaml or
config.json in ~/.dev (or $DEV_HOME), with DEV_* environment overrides applied.

Examples:
  dev config show                          # Show the effective configuration
  dev config get cache.versionInfoExpires  # Print a single value
  dev config path                          # Print the dev home`,
}

// configShowCmd shows the effective configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(showConfig())
	},
}

// configGetCmd prints one configuration value
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(getConfig(args[0]))
	},
}

// configPathCmd prints the dev home
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the dev home directory",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(showConfigPath())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)
}

func showConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	printer.Header("⚙️  dev configuration")
	if cfg.Source != "" {
		printer.Muted("# loaded from %s", cfg.Source)
	} else {
		printer.Muted("# no config file found, using defaults")
	}

	content, err := cfg.ToYAML()
	if err != nil {
		return err
	}
	printInfo("%s", strings.TrimRight(content, "\n"))

	printInfo("")
	printer.Header("📁 Paths")
	for _, key := range []string{config.KeyRoot, config.KeyCacheDir, config.KeyEnvDir, config.KeyTempDir} {
		value, _ := cfg.Get(key)
		printInfo("  %-12s %s", key, value)
	}
	return nil
}

func getConfig(key string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	value, ok := cfg.Get(key)
	if !ok {
		return fmt.Errorf("unknown configuration key %q (known keys: %s)", key, strings.Join(config.Keys(), ", "))
	}
	printInfo("%s", value)
	return nil
}

func showConfigPath() error {
	root, err := config.HomeDir(config.NewEnvironmentProvider())
	if err != nil {
		return err
	}
	printInfo("%s", root)
	return nil
}
