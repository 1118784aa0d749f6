package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igsync/pkg/auth"
	"igsync/pkg/ui"
)

var (
	saveCredentials bool
	sessionDir      string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in once and store the session for later runs",
	Long: `Log in to the provider with a username and password and persist the
resulting session as <session dir>/<username>_session, with a
<username>_session.backup copy next to it.

The password is taken from, in order: the configuration (IGSYNC_PASSWORD,
INSTAGRAM_PASSWORD), the credential store, or an interactive prompt.

Accounts protected by two-factor authentication cannot log in here. Export
the browser cookies instead and run 'igsync session import-cookies'.`,
	Example: `  # Interactive login
  igsync login

  # Login and remember the password in the system keychain
  igsync login myaccount --save-credentials`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().BoolVar(&saveCredentials, "save-credentials", false, "store the password in the credential store after a successful login")
	loginCmd.PersistentFlags().StringVar(&sessionDir, "session-dir", "", "directory holding session files")
}

func sessionFlags(username string) map[string]interface{} {
	flags := make(map[string]interface{})
	if username != "" {
		flags["username"] = username
	}
	if sessionDir != "" {
		flags["session-dir"] = sessionDir
	}
	return flags
}

func runLogin(cmd *cobra.Command, args []string) {
	var username string
	if len(args) > 0 {
		username = args[0]
	}
	cfg, log := loadConfig(sessionFlags(username))

	reader := bufio.NewReader(os.Stdin)
	username = cfg.Account.Username
	if username == "" {
		fmt.Print("Username: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read username", err.Error())
			os.Exit(1)
		}
		username = strings.TrimSpace(input)
	}
	if username == "" {
		ui.PrintError("Username is required")
		os.Exit(1)
	}
	cfg.Account.Username = username

	secret := resolveSecret(cfg, log)
	if secret == "" {
		fmt.Print("Password: ")
		var err error
		secret, err = readPassword()
		if err != nil {
			ui.PrintError("Failed to read password", err.Error())
			os.Exit(1)
		}
	}
	if secret == "" {
		ui.PrintError("Password is required")
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()

	sessions := newSessionStore(cfg, log)
	provider := newProvider(cfg, log)

	ui.PrintHighlight("[LOGGING IN]")
	sess, err := sessions.CreateViaLogin(ctx, provider, username, secret)
	if err != nil {
		ui.PrintError("Login failed", err.Error())
		explain(err)
		os.Exit(1)
	}

	ui.PrintSuccess("Session stored for " + sess.Username)
	ui.PrintInfo("Session file", sessions.Path(username))
	ui.PrintInfo("Backup", sessions.BackupPath(username))

	if saveCredentials {
		manager, err := auth.NewManager()
		if err != nil {
			ui.PrintWarning("Credential store unavailable", err.Error())
			return
		}
		store, err := manager.Store(&auth.Account{
			Username:     username,
			Password:     secret,
			LastModified: time.Now(),
		})
		if err != nil {
			ui.PrintWarning("Failed to store credentials", err.Error())
			return
		}
		ui.PrintInfo("Credentials saved in", store)
	}
}

// readPassword reads a password from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
