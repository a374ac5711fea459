package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"dbxmcp/internal/config"
	"dbxmcp/internal/mcpserver"
	"dbxmcp/pkg/logging"

	"github.com/spf13/cobra"
)

// serveTransport optionally overrides the configured transport mode.
var serveTransport string

// serveCmd starts the MCP server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Starts the MCP server exposing the workspace metadata tools.

By default the server speaks MCP over stdio, which is what MCP clients
expect when they launch dbxmcp as a subprocess. With
'--transport streamable-http' (or the equivalent config setting) it
listens on HTTP instead.

On startup the server obtains a credential for the configured profile.
The very first start triggers the interactive databricks CLI login in
your browser; after that the CLI's cached session is refreshed
silently.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	initLogging()

	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		return err
	}
	if err := config.ValidateWorkspace(cfg.Workspace); err != nil {
		return err
	}
	if serveTransport != "" {
		cfg.Transport.Mode = config.TransportMode(serveTransport)
		if err := config.Validate(cfg); err != nil {
			return err
		}
	}

	c, err := buildCore(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Authenticate before serving so the interactive login (if any)
	// happens now, not in the middle of the first tool call.
	cred, err := c.tokens.EnsureValid(ctx, cfg.Auth.Profile)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	logging.Info("Serve", "Authenticated profile=%s fingerprint=%s", cfg.Auth.Profile, cred.Fingerprint())

	if user, err := c.metadata.Whoami(ctx); err != nil {
		logging.Warn("Serve", "Workspace connection check failed: %v", err)
	} else {
		logging.Info("Serve", "Connected to %s as %s", cfg.Workspace.URL, user.UserName)
	}

	server := mcpserver.New(c.metadata, cfg.Transport)
	return server.Start(ctx)
}

func init() {
	serveCmd.Flags().StringVar(&serveTransport, "transport", "",
		"Override the transport mode (stdio or streamable-http)")
	rootCmd.AddCommand(serveCmd)
}
