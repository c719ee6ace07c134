/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/josephgoksu/TodoBuilder/internal/app"
	mcpserver "github.com/josephgoksu/TodoBuilder/internal/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI assistants",
	Long: `Start a Model Context Protocol (MCP) server over stdin/stdout so AI
assistants can inspect and manage the feature registry.

Tools:
  list_features           list registered features
  feature_dependencies    show what a feature depends on and what depends on it
  can_disable_feature     check whether a feature can be disabled
  set_feature_enabled     enable or disable a feature
  add_feature_dependency  add a dependency between two features

Logs go to stderr; stdout carries the protocol only.

The server runs until the client disconnects.`,
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		log.Info("mcp server starting", "version", version)
		return mcpserver.Serve(cmd.Context(), a, version)
	}),
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
