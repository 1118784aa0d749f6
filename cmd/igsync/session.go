package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"igsync/pkg/acquisition"
	"igsync/pkg/config"
	"igsync/pkg/logger"
	"igsync/pkg/retry"
	"igsync/pkg/session"
	"igsync/pkg/ui"
)

// checkProfiles are well-known public profiles used to check that a stored
// session still works.
var checkProfiles = []string{"instagram", "cristiano", "neymarjr"}

// sessionCmd represents the session command
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored provider sessions",
}

var importCookiesCmd = &cobra.Command{
	Use:   "import-cookies <cookies.json>",
	Short: "Create a session from a browser cookie export",
	Long: `Create a session from cookies exported by a browser extension.

The file must be a JSON array of cookies with the fields name, value,
domain, path, secure, httpOnly and expirationDate. It must contain a
sessionid cookie.`,
	Example: `  igsync session import-cookies cookies.json --account myaccount`,
	Args:    cobra.ExactArgs(1),
	Run:     runImportCookies,
}

var checkSessionCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that the stored session can fetch profiles",
	Long: fmt.Sprintf(`Fetch well-known public profiles with the stored session, stopping
at the first one that succeeds.

Profiles probed: %v`, checkProfiles),
	Args: cobra.NoArgs,
	Run:  runCheckSession,
}

var deleteSessionCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored session and its backup",
	Args:  cobra.NoArgs,
	Run:   runDeleteSession,
}

var sessionAccount string

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(importCookiesCmd)
	sessionCmd.AddCommand(checkSessionCmd)
	sessionCmd.AddCommand(deleteSessionCmd)

	sessionCmd.PersistentFlags().StringVarP(&sessionAccount, "account", "a", "", "account the session belongs to")
	sessionCmd.PersistentFlags().StringVar(&sessionDir, "session-dir", "", "directory holding session files")
}

func newSessionStore(cfg *config.Config, log logger.Logger) *session.FileStore {
	return session.NewFileStore(cfg.Account.SessionDir, log)
}

func requireAccount(cfg *config.Config) string {
	if cfg.Account.Username == "" {
		ui.PrintError("No account configured", "use --account or set IGSYNC_USERNAME")
		os.Exit(1)
	}
	return cfg.Account.Username
}

func runImportCookies(cmd *cobra.Command, args []string) {
	cfg, log := loadConfig(sessionFlags(sessionAccount))
	identity := requireAccount(cfg)

	sessions := newSessionStore(cfg, log)
	sess, err := sessions.ImportCookies(identity, args[0])
	if err != nil {
		ui.PrintError("Failed to import cookies", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Imported %d cookies for %s", len(sess.Cookies), identity))
	ui.PrintInfo("Session file", sessions.Path(identity))
}

func runCheckSession(cmd *cobra.Command, args []string) {
	cfg, log := loadConfig(sessionFlags(sessionAccount))
	identity := requireAccount(cfg)

	sess, err := newSessionStore(cfg, log).LoadOrFail(identity)
	if err != nil {
		ui.PrintError("Session unavailable", err.Error())
		explain(err)
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()

	attempts, err := acquisition.CheckSession(ctx, newProvider(cfg, log), sess, checkProfiles, retry.FromSettings(cfg.Retry, log))
	for _, a := range attempts {
		if a.Err != nil {
			ui.PrintWarning("Check failed: "+a.Profile, a.Err.Error())
			continue
		}
		ui.PrintSuccess(fmt.Sprintf("Session for %s works (%s has %d followers)", identity, a.Record.Username, a.Record.Followers))
	}
	if err != nil {
		ui.PrintError("Session check failed for every well-known profile")
		explain(err)
		os.Exit(1)
	}
}

func runDeleteSession(cmd *cobra.Command, args []string) {
	cfg, log := loadConfig(sessionFlags(sessionAccount))
	identity := requireAccount(cfg)

	if err := newSessionStore(cfg, log).Delete(identity); err != nil {
		ui.PrintError("Failed to remove session", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Session removed: " + identity)
}
