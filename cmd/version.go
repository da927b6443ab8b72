package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for dev including version number,
commit hash, build date, and runtime information.`,
	Run: func(cmd *cobra.Command, args []string) {
		showVersion()
	},
}

func showVersion() {
	printInfo("dev version %s", version)

	if verbose {
		printInfo("Commit:      %s", commit)
		printInfo("Built:       %s", date)
		printInfo("Go version:  %s", runtime.Version())
		printInfo("OS/Arch:     %s/%s", runtime.GOOS, runtime.GOARCH)
	}
}
