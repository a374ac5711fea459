package cmd

import (
	"fmt"
	"time"

	"dbxmcp/internal/config"
	"dbxmcp/internal/token"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// authCmd groups authentication-related subcommands.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
}

// authStatusCmd reports whether a usable credential can be obtained
// without starting an interactive login.
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status for the configured profile",
	Long: `Checks whether the databricks CLI holds a usable session for the
dbxmcp profile. This never opens a browser: if no session exists the
command reports that and points at 'dbxmcp init'.

The token value itself is never printed, only its fingerprint and
expiry.`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	initLogging()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		return err
	}

	c, err := buildCore(cfg)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendRow(table.Row{"Profile", cfg.Auth.Profile})
	t.AppendRow(table.Row{"Workspace", valueOrUnset(cfg.Workspace.URL)})
	t.AppendRow(table.Row{"Warehouse", valueOrUnset(cfg.Workspace.WarehouseName)})

	// A direct token probe: non-interactive by design, so a missing CLI
	// session shows up as "not authenticated" instead of a browser
	// window.
	resp, err := c.runner.Token(ctx, cfg.Auth.Profile)
	if err != nil {
		t.AppendRow(table.Row{"Authenticated", "no"})
		t.Render()
		fmt.Fprintf(out, "\nNot authenticated: %v\nRun `dbxmcp init` to log in.\n", err)
		return nil
	}

	cred := token.Credential{Token: resp.AccessToken, ExpiresAt: resp.Expiry, Profile: cfg.Auth.Profile}
	t.AppendRow(table.Row{"Authenticated", "yes"})
	t.AppendRow(table.Row{"Token fingerprint", cred.Fingerprint()})
	if resp.Expiry.IsZero() {
		t.AppendRow(table.Row{"Token expiry", fmt.Sprintf("not reported (assumed TTL %s)", cfg.Auth.AssumedTTL.Std())})
	} else {
		t.AppendRow(table.Row{"Token expiry", resp.Expiry.Format(time.RFC3339)})
	}
	t.Render()

	return nil
}

func valueOrUnset(v string) string {
	if v == "" {
		return "(not configured)"
	}
	return v
}

func init() {
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
