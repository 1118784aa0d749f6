package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"igsync/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igsync",
	Short: "Acquire profile metadata and avatars and sync them to object storage",
	Long: `igsync fetches a profile's public metadata and avatar, stages them
locally under <staging root>/<entity>/ and mirrors the staged files to an
S3-compatible bucket under the <entity>/ prefix.

Features:
  - Session reuse with a backup copy of every stored session
  - Human-like request pacing to avoid rate limiting
  - Classified retries with exponential backoff and jitter
  - Concurrent acquisition of independent profiles
  - HTTP API returning the avatar of a profile`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetNoColor(noColor)
		if quiet {
			ui.SetQuietMode(true)
			logLevel = "error"
		}
		if verbose {
			logLevel = "debug"
		}

		if cmd.Name() == "acquire" || cmd.Name() == "serve" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./igsync.yaml or ~/.config/igsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.SetVersionTemplate(`igsync {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
