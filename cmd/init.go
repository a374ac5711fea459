package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"dbxmcp/internal/config"
	"dbxmcp/internal/metadata"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// initCmd performs first-time setup: workspace URL, interactive login,
// warehouse selection, config file.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up workspace, authentication and SQL warehouse",
	Long: `Interactive first-time setup.

Prompts for the Databricks workspace URL, runs the databricks CLI
browser login for the dbxmcp profile, lets you pick a SQL warehouse for
statement execution, and writes config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	initLogging()
	ctx := cmd.Context()
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "dbxmcp setup")
	fmt.Fprintln(out, "============")

	url, err := promptString(in, out, "Databricks workspace URL", cfg.Workspace.URL)
	if err != nil {
		return err
	}
	if url == "" {
		return fmt.Errorf("workspace URL is required")
	}
	cfg.Workspace.URL = strings.TrimRight(url, "/")
	if err := config.Validate(cfg); err != nil {
		return err
	}

	c, err := buildCore(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nStarting browser login for profile %q...\n", cfg.Auth.Profile)
	if err := c.runner.Login(ctx, cfg.Auth.Profile, cfg.Workspace.URL); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintln(out, "Login successful.")

	warehouses, err := c.metadata.ListWarehouses(ctx)
	if err != nil {
		return err
	}
	if len(warehouses) == 0 {
		return fmt.Errorf("no SQL warehouses found in workspace %s", cfg.Workspace.URL)
	}

	selected, err := pickWarehouse(in, out, warehouses)
	if err != nil {
		return err
	}
	cfg.Workspace.WarehouseID = selected.ID
	cfg.Workspace.WarehouseName = selected.Name

	catalog, err := promptString(in, out, "Default catalog (optional)", cfg.Workspace.Catalog)
	if err != nil {
		return err
	}
	cfg.Workspace.Catalog = catalog

	if err := config.SaveConfig(configPath(), cfg); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nSetup complete. Wire `dbxmcp serve` into your MCP client.")
	return nil
}

// promptString asks for a line of input, showing and keeping the
// current value when the user just presses enter.
func promptString(in *bufio.Reader, out io.Writer, label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(out, "\n%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(out, "\n%s: ", label)
	}

	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return current, nil
	}
	return line, nil
}

// pickWarehouse renders the available warehouses and reads a selection.
func pickWarehouse(in *bufio.Reader, out io.Writer, warehouses []metadata.Warehouse) (metadata.Warehouse, error) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Name", "ID", "State"})
	for i, warehouse := range warehouses {
		t.AppendRow(table.Row{i + 1, warehouse.Name, warehouse.ID, warehouse.State})
	}
	fmt.Fprintln(out, "\nAvailable SQL warehouses:")
	t.Render()

	for {
		line, err := promptString(in, out, fmt.Sprintf("Select a warehouse (1-%d)", len(warehouses)), "")
		if err != nil {
			return metadata.Warehouse{}, err
		}
		choice, err := strconv.Atoi(line)
		if err != nil || choice < 1 || choice > len(warehouses) {
			fmt.Fprintln(out, "Invalid selection, try again.")
			continue
		}
		return warehouses[choice-1], nil
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
}
