package cmd

import (
	"os"

	"dbxmcp/internal/config"
	"dbxmcp/pkg/logging"

	"github.com/spf13/cobra"
)

// Global flags shared by all subcommands.
var (
	rootConfigPath string
	rootDebug      bool
)

// rootCmd represents the base command for the dbxmcp application.
var rootCmd = &cobra.Command{
	Use:   "dbxmcp",
	Short: "MCP server exposing Databricks workspace metadata",
	Long: `dbxmcp exposes schemas, tables, samples and job results of a
Databricks workspace as MCP tools. Authentication runs through the
databricks CLI (OAuth browser login) under a dedicated profile; no
secrets are stored by dbxmcp itself.

Run 'dbxmcp init' once to pick a workspace and SQL warehouse, then wire
'dbxmcp serve' into your MCP client.`,
	// SilenceUsage prevents Cobra from printing the usage message on
	// errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from the main
// package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "dbxmcp version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config-path", "",
		"Directory containing config.yaml (defaults to ~/.config/dbxmcp)")
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false,
		"Enable debug logging")
}

// initLogging sets up logging on stderr. Stdout stays reserved for the
// MCP protocol stream in stdio mode.
func initLogging() {
	level := logging.LevelInfo
	if rootDebug {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stderr)
}

// configPath resolves the configuration directory from the flag or the
// per-user default.
func configPath() string {
	if rootConfigPath != "" {
		return rootConfigPath
	}
	return config.GetDefaultConfigPathOrPanic()
}
