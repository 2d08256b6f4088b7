package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/tasksync"
	"github.com/spf13/cobra"
)

const syncTimeout = 5 * time.Minute

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle",
	Long: `Run one full sync cycle between the daily notes and Microsoft To Do.

The cycle repairs identity records, copies remote tasks into the notes,
pushes new local tasks to To Do, and reconciles completions both ways.
Per-task failures are reported without stopping the cycle.

Example:
  tasksync sync --vault ~/notes --token "$GRAPH_TOKEN"
  tasksync sync --json`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := checkLock(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
	defer cancel()

	session, err := openSyncSession(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer session.Close()

	start := time.Now()
	var result *tasksync.SyncResult
	err = runWithSpinner(cmd.ErrOrStderr(), "Syncing tasks", func() error {
		var syncErr error
		result, syncErr = session.client.Sync(ctx)
		return syncErr
	})
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	return outputSyncResult(cmd, result, time.Since(start))
}
