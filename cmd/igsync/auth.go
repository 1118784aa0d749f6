package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"igsync/pkg/auth"
	"igsync/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored account passwords",
	Long: `Manage account passwords used by 'igsync login' and the HTTP server's
internal login.

Passwords are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only)

Never share your credentials or config files!`,
}

var authStoreCmd = &cobra.Command{
	Use:   "store [username]",
	Short: "Store an account password securely",
	Args:  cobra.MaximumNArgs(1),
	Run:   runAuthStore,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Args:  cobra.NoArgs,
	Run:   runAuthList,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Remove a stored account",
	Args:  cobra.ExactArgs(1),
	Run:   runAuthDelete,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authStoreCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(authDeleteCmd)
}

func credentialManager() *auth.Manager {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}
	return manager
}

func runAuthStore(cmd *cobra.Command, args []string) {
	manager := credentialManager()
	reader := bufio.NewReader(os.Stdin)

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
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

	if existing, _ := manager.Retrieve(username); existing != nil {
		fmt.Printf("Account '%s' already exists. Update password? (y/N): ", username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Print("Password: ")
	password, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read password", err.Error())
		os.Exit(1)
	}

	store, err := manager.Store(&auth.Account{
		Username:     username,
		Password:     password,
		LastModified: time.Now(),
	})
	if err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Account saved: " + username)
	ui.PrintInfo("Stored in", store)
	ui.Println("\nCreate a session with:")
	ui.Printf("  igsync login %s\n", username)
}

func runAuthList(cmd *cobra.Command, args []string) {
	accounts, err := credentialManager().List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'igsync auth store' to add one")
		return
	}

	ui.PrintHighlight("Stored Accounts")
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		ui.Printf("%d. %s\n", i+1, sanitized.Username)
		ui.Printf("   Password: %s\n", sanitized.Password)
		ui.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
	}
}

func runAuthDelete(cmd *cobra.Command, args []string) {
	if err := credentialManager().Delete(args[0]); err != nil {
		ui.PrintError("Failed to remove account", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Account removed: " + args[0])
}
