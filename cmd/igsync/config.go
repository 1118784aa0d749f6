package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igsync/pkg/config"
	"igsync/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igsync configuration files.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (IGSYNC_*, INSTAGRAM_*, AWS_*)
  - .env file
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Run:   runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with secrets masked",
	Run:   runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Run:   runConfigValidate,
}

var forceInit bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		ui.PrintError("Configuration file already exists", path)
		ui.Println("\nUse --force to overwrite it.")
		os.Exit(1)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	ui.Println("\nNext steps:")
	ui.Println("1. Set account.username and the storage section")
	ui.Println("2. Run 'igsync config validate'")
	ui.Println("3. Run 'igsync login' to create a session")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, _ := loadConfig(nil)

	data, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Print(string(data))
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration has errors", err.Error())
		os.Exit(1)
	}

	var warnings []string
	if cfg.Account.Username == "" {
		warnings = append(warnings, "account.username is not set; acquisitions need a stored session")
	}
	if cfg.Storage.UploadEnabled && cfg.Storage.Endpoint == "" && cfg.Storage.AccessKey == "" {
		warnings = append(warnings, "no object store endpoint or keys configured; the default AWS chain will be used")
	}
	if !cfg.Pacing.Enabled {
		warnings = append(warnings, "pacing is disabled; the provider may rate limit requests")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			ui.Printf("  - %s\n", w)
		}
	}

	ui.PrintSuccess("Configuration is valid")
	ui.Println("\nConfiguration summary:")
	ui.Printf("  Staging root: %s\n", cfg.Staging.Root)
	ui.Printf("  Upload: %t (bucket %s)\n", cfg.Storage.UploadEnabled, cfg.Storage.Bucket)
	ui.Printf("  Max retries: %d, base delay %s\n", cfg.Retry.MaxRetries, cfg.Retry.BaseDelay)
	ui.Printf("  Pacing: %t (%s)\n", cfg.Pacing.Enabled, cfg.Pacing.Policy)
	ui.Printf("  Log level: %s\n", cfg.Logging.Level)
}
