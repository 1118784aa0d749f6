package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"igsync/pkg/checkpoint"
	"igsync/pkg/metadata"
	"igsync/pkg/ui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [entity...]",
	Short: "Show the outcome of the latest run per entity",
	Long: `Show the journaled outcome of the latest acquisition run.

Without arguments every journaled entity is listed.`,
	Run: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, log := loadConfig(nil)

	journal, err := checkpoint.NewManager(cfg.Batch.JournalDir, log)
	if err != nil {
		ui.PrintError("Failed to open run journal", err.Error())
		os.Exit(1)
	}

	var entries []*checkpoint.Entry
	if len(args) == 0 {
		if entries, err = journal.List(); err != nil {
			ui.PrintError("Failed to list runs", err.Error())
			os.Exit(1)
		}
	} else {
		for _, arg := range args {
			entity := metadata.NormalizeIdentifier(arg)
			entry, err := journal.Load(entity)
			if err != nil {
				ui.PrintError("Failed to read run journal", err.Error())
				os.Exit(1)
			}
			if entry == nil {
				ui.PrintWarning("No runs recorded", entity)
				continue
			}
			entries = append(entries, entry)
		}
	}

	if len(entries) == 0 {
		ui.PrintInfo("No runs recorded", "use 'igsync acquire <entity>' first")
		return
	}

	for _, e := range entries {
		printEntry(e)
	}
}

func printEntry(e *checkpoint.Entry) {
	ui.PrintHighlight(e.Entity)
	ui.PrintInfo("  State", e.State)
	ui.PrintInfo("  Run", e.RunID)
	ui.PrintInfo("  Finished", e.FinishedAt.Local().Format("2006-01-02 15:04:05"))
	ui.PrintInfo("  Duration", e.Duration().String())
	ui.PrintInfo("  Total runs", strconv.Itoa(e.Runs))
	if e.StagingDir != "" {
		ui.PrintInfo("  Staging", e.StagingDir)
	}
	if len(e.Uploaded) > 0 {
		ui.PrintInfo("  Uploaded", strings.Join(e.Uploaded, ", "))
	}
	if e.Error != "" {
		ui.PrintError("  Error ("+e.ErrorType+")", e.Error)
	}
	ui.Println()
}
