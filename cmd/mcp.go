package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	qamcp "github.com/qacheck/qacheck/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Long: `Expose recorded suggestions, statistics, and sessions as MCP tools
over stdio, for use from MCP-capable clients.`,
	RunE: mcpRun,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(cmd *cobra.Command, args []string) error {
	st, err := getStore()
	if err != nil {
		return err
	}

	srv := qamcp.NewServer(st)
	if err := srv.ServeStdio(cmd.Context()); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
