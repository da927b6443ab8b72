package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/e5r/dev/pkg/config"
	"github.com/e5r/dev/pkg/engine/builtin"
	"github.com/e5r/dev/pkg/env"
	"github.com/e5r/dev/pkg/util"
)

var (
	// Version information set from main
	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	// Global flags
	verbose bool
	quiet   bool

	printer = util.NewPrinter(false)

	// newRegistry is a function variable that can be overridden for testing
	newRegistry = builtin.NewRegistry
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dev",
	Short: "E5R development environment manager",
	Long: `dev installs and manages runtime environments such as Node.js and PHP
side by side under a single home directory (~/.dev, or $DEV_HOME).

Examples:
  dev env install node --version 20     # Install the newest Node.js 20.x.y
  dev env list node                     # List installed Node.js versions
  dev env versions php --refresh        # Show PHP versions available for this host
  dev config show                       # Show the effective configuration`,

	SilenceUsage: true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			util.SetVerbose(true)
		}
		printer = util.NewPrinter(quiet)
	},

	// Show help if no command is provided
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// An interrupt cancels the running operation, which rolls back any partial install.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version information from main
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet output (errors only)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(configCmd)
}

// Helper functions for output
func printVerbose(format string, args ...interface{}) {
	if !quiet {
		util.LogVerbose(format, args...)
	}
}

func printInfo(format string, args ...interface{}) {
	printer.Info(format, args...)
}

func printError(format string, args ...interface{}) {
	printer.Error(format, args...)
}

// exitOnError prints err and terminates the process
func exitOnError(err error) {
	if err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// newManager creates an environment manager for the configured dev home
func newManager() (*env.Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	printVerbose("Using dev home %s", cfg.Paths.Root)

	return env.NewManager(cfg, newRegistry(), env.WithOutput(printer.Writer())), nil
}
