package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"igsync/internal/batch"
	"igsync/pkg/acquisition"
	"igsync/pkg/instagram"
	"igsync/pkg/logger"
	"igsync/pkg/metadata"
	"igsync/pkg/ui"
)

var (
	// Acquire command flags
	accountName  string
	stagingRoot  string
	bucketName   string
	endpointURL  string
	noUpload     bool
	maxRetries   int
	baseDelay    time.Duration
	noPacing     bool
	pacingPolicy string
	concurrency  int
	runTimeout   time.Duration
)

// acquireCmd represents the acquire command
var acquireCmd = &cobra.Command{
	Use:   "acquire <entity> [entity...]",
	Short: "Fetch profiles, stage them locally and sync them to the bucket",
	Long: `Acquire runs the full pipeline for each entity:

  1. load the stored session for the configured account
  2. fetch the profile (paced and retried)
  3. stage profile_info.json and profile_pic.jpg under <staging root>/<entity>/
  4. upload both files to <bucket>/<entity>/ unless uploads are disabled

A stored session is required. Create one with 'igsync login' or
'igsync session import-cookies'.`,
	Example: `  # Acquire one profile
  igsync acquire nasa

  # Stage only, no upload
  igsync acquire nasa --no-upload

  # Several profiles, two at a time
  igsync acquire nasa natgeo instagram --concurrency 2`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAcquire,
}

func init() {
	rootCmd.AddCommand(acquireCmd)

	acquireCmd.Flags().StringVarP(&accountName, "account", "a", "", "account whose stored session is used")
	acquireCmd.Flags().StringVarP(&stagingRoot, "staging-root", "o", "", "local staging root (default: dados)")
	acquireCmd.Flags().StringVar(&bucketName, "bucket", "", "destination bucket")
	acquireCmd.Flags().StringVar(&endpointURL, "endpoint", "", "S3-compatible endpoint URL")
	acquireCmd.Flags().BoolVar(&noUpload, "no-upload", false, "stage locally without syncing to the bucket")
	acquireCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "maximum attempts per remote call")
	acquireCmd.Flags().DurationVar(&baseDelay, "base-delay", 0, "base retry backoff delay")
	acquireCmd.Flags().BoolVar(&noPacing, "no-pacing", false, "disable the random delay before provider calls")
	acquireCmd.Flags().StringVar(&pacingPolicy, "pacing-policy", "", "pacing policy (random, adaptive, token_bucket, sliding_window, disabled)")
	acquireCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of entities acquired concurrently")
	acquireCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "overall deadline for the command (0 means none)")
}

func acquireFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if accountName != "" {
		flags["username"] = accountName
	}
	if stagingRoot != "" {
		flags["staging-root"] = stagingRoot
	}
	if bucketName != "" {
		flags["bucket"] = bucketName
	}
	if endpointURL != "" {
		flags["endpoint"] = endpointURL
	}
	if cmd.Flags().Changed("no-upload") {
		flags["upload"] = !noUpload
	}
	if maxRetries > 0 {
		flags["max-retries"] = maxRetries
	}
	if cmd.Flags().Changed("base-delay") {
		flags["base-delay"] = baseDelay
	}
	if cmd.Flags().Changed("no-pacing") {
		flags["pacing"] = !noPacing
	}
	if pacingPolicy != "" {
		flags["pacing-policy"] = pacingPolicy
	}
	if concurrency > 0 {
		flags["concurrency"] = concurrency
	}
	return flags
}

func runAcquire(cmd *cobra.Command, args []string) {
	cfg, log := loadConfig(acquireFlags(cmd))

	ctx, stop := signalContext()
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		ui.PrintError("Failed to initialize", err.Error())
		os.Exit(1)
	}

	ui.PrintInfo("Account", cfg.Account.Username)
	ui.PrintInfo("Staging root", a.staging.Root())
	if cfg.Storage.UploadEnabled {
		ui.PrintInfo("Bucket", cfg.Storage.Bucket)
	} else {
		ui.PrintInfo("Upload", "disabled")
	}

	args = uniqueEntities(args)
	if len(args) == 1 {
		res, err := a.orchestrator.Run(ctx, args[0])
		printResult(res, err)
		if err != nil || !res.Success() {
			os.Exit(1)
		}
		return
	}

	ui.PrintHighlight(fmt.Sprintf("[ACQUIRING %d PROFILES]", len(args)))
	tracker := ui.NewStatusTracker(len(args))
	results := batch.RunAll(ctx, args, cfg.Batch.Concurrency, progressRunner{a.orchestrator, tracker}, log)
	tracker.PrintSummary()

	for _, r := range results {
		printResult(r.Run, r.Error)
	}
	if !tracker.AllSucceeded() {
		os.Exit(1)
	}
}

// uniqueEntities drops arguments that normalize to an entity already listed.
func uniqueEntities(args []string) []string {
	seen := make(map[string]bool, len(args))
	out := make([]string, 0, len(args))
	for _, arg := range args {
		entity := metadata.NormalizeIdentifier(arg)
		if seen[entity] {
			ui.PrintWarning("Skipping duplicate entity", arg)
			continue
		}
		seen[entity] = true
		out = append(out, arg)
	}
	return out
}

// progressRunner updates the tracker as runs finish.
type progressRunner struct {
	inner   batch.Runner
	tracker *ui.StatusTracker
}

func (p progressRunner) Run(ctx context.Context, entity string) (*acquisition.Result, error) {
	res, err := p.inner.Run(ctx, entity)
	p.tracker.Record(res)
	p.tracker.PrintProgress()
	return res, err
}

func printResult(res *acquisition.Result, err error) {
	if res == nil {
		ui.PrintError("Acquisition failed", err)
		explain(err)
		return
	}

	entity := res.Entity
	switch res.State {
	case acquisition.StateSynced:
		ui.PrintSuccess(fmt.Sprintf("[SYNCED] %s -> %s", entity, strings.Join(res.Sync.Uploaded, ", ")))
	case acquisition.StateStaged:
		ui.PrintSuccess(fmt.Sprintf("[STAGED] %s -> %s", entity, res.StagingDir))
	case acquisition.StateSyncFailed:
		ui.PrintWarning(fmt.Sprintf("[LOCALLY COMPLETE, SYNC FAILED] %s", entity), res.Err)
	default:
		ui.PrintError(fmt.Sprintf("[FAILED] %s", entity), res.Err)
		explain(res.Err)
	}

	if res.Record != nil && !quiet {
		logger.GetLogger().DebugWithFields("profile captured", map[string]interface{}{
			"entity":    entity,
			"profile":   instagram.UserProfileURL(instagram.BaseURL, entity),
			"followers": res.Record.Followers,
			"posts":     res.Record.MediaCount,
		})
	}
}
