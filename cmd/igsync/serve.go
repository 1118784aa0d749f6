package main

import (
	"os"

	"github.com/spf13/cobra"

	"igsync/internal/server"
	"igsync/pkg/ui"
)

var (
	listenAddr  string
	serveUpload bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the profile API over HTTP",
	Long: `Start an HTTP server exposing:

  POST /api/get_instagram_profile  {"username": "<entity>"}
       runs the acquisition pipeline and responds with the avatar as image/jpeg
  GET  /healthz

When no session is stored and a password is configured, the server logs in
once before the first acquisition.`,
	Example: `  igsync serve --addr :8000`,
	Args:    cobra.NoArgs,
	Run:     runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (default :8000)")
	serveCmd.Flags().StringVarP(&accountName, "account", "a", "", "account whose session is used")
	serveCmd.Flags().BoolVar(&serveUpload, "upload", true, "sync acquired profiles to the bucket")
}

func runServe(cmd *cobra.Command, args []string) {
	flags := sessionFlags(accountName)
	if listenAddr != "" {
		flags["addr"] = listenAddr
	}
	if cmd.Flags().Changed("upload") {
		flags["upload"] = serveUpload
	}
	cfg, log := loadConfig(flags)

	ctx, stop := signalContext()
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		ui.PrintError("Failed to initialize", err.Error())
		os.Exit(1)
	}

	srv := server.New(a.orchestrator, a.sessions, server.Options{
		Identity:      cfg.Account.Username,
		Secret:        resolveSecret(cfg, log),
		Authenticator: a.provider,
	}, log)

	ui.PrintInfo("Listening on", cfg.Server.Addr)
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.Mode); err != nil {
		ui.PrintError("Server failed", err.Error())
		os.Exit(1)
	}
}
