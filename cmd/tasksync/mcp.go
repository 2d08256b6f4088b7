package main

import (
	"github.com/hyperengineering/tasksync"
	tasksyncmcp "github.com/hyperengineering/tasksync/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for coding agent integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio.

Tools: tasksync_sync, tasksync_status, tasksync_lookup, tasksync_forget,
tasksync_prune. Without a vault and token the server still starts, but
tasksync_sync reports that sync is not configured.

Example agent configuration:

  {
    "mcpServers": {
      "tasksync": {
        "command": "tasksync",
        "args": ["mcp"],
        "env": {
          "TASKSYNC_VAULT": "/path/to/vault",
          "TASKSYNC_TOKEN": "..."
        }
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var client *tasksync.Client
	if cfg.ValidateForSync() == nil {
		session, err := openSyncSession(cmd.Context(), cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer session.Close()
		client = session.client
	} else {
		client, err = openClient(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer client.Close()
	}

	return tasksyncmcp.NewServer(client).Run()
}
