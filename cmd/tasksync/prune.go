package main

import (
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove stale identity records",
	Long: `Remove identity records that have not been confirmed by a sync within
the given number of days. Defaults to the configured stale_days.

Example:
  tasksync prune --days 30`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

var pruneDays int

func init() {
	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "Maximum record age in days (default: stale_days)")
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	days := pruneDays
	if days == 0 {
		days = cfg.StaleAfterDays
	}

	client, err := openClient(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer client.Close()

	removed, err := client.Prune(days)
	if err != nil {
		return err
	}

	if outputJSON {
		return outputAsJSON(cmd, map[string]int{"removed": removed, "days": days})
	}
	printSuccess(cmd.OutOrStdout(), "Pruned %d identity records older than %d days", removed, days)
	return nil
}
