package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/tasksync"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show identity records and recent sync runs",
	Long: `Display the state database: identity record count, last sync and the
most recent sync runs with their outcome.

Example:
  tasksync status
  tasksync status --runs 20 --json`,
	RunE: runStatus,
}

var statusRuns int

func init() {
	statusCmd.Flags().IntVar(&statusRuns, "runs", 5, "Number of recent runs to show")
}

// statusOutput is the JSON shape of the status report.
type statusOutput struct {
	Profile string               `json:"profile"`
	DBPath  string               `json:"db_path"`
	Stats   *tasksync.StoreStats `json:"stats"`
	Runs    []tasksync.SyncRun   `json:"runs"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := openClient(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer client.Close()

	stats, err := client.Stats()
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	runs, err := client.History(statusRuns)
	if err != nil {
		return fmt.Errorf("get history: %w", err)
	}

	if outputJSON {
		if runs == nil {
			runs = []tasksync.SyncRun{}
		}
		return outputAsJSON(cmd, statusOutput{
			Profile: cfg.Profile,
			DBPath:  cfg.DBPath,
			Stats:   stats,
			Runs:    runs,
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderMarkdown(statusReport(cfg, stats, runs)))
	return nil
}

// statusReport builds the markdown status report.
func statusReport(cfg tasksync.Config, stats *tasksync.StoreStats, runs []tasksync.SyncRun) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# tasksync status: %s\n\n", cfg.Profile)
	fmt.Fprintf(&sb, "- **Database:** `%s`\n", cfg.DBPath)
	fmt.Fprintf(&sb, "- **Identity records:** %d\n", stats.IdentityRecords)
	fmt.Fprintf(&sb, "- **Recorded runs:** %d\n", stats.RunCount)
	if stats.LastSync.IsZero() {
		sb.WriteString("- **Last sync:** never\n")
	} else {
		fmt.Fprintf(&sb, "- **Last sync:** %s (%s)\n",
			stats.LastSync.Local().Format(time.RFC3339), formatRelativeTime(stats.LastSync))
	}

	if len(runs) == 0 {
		return sb.String()
	}

	sb.WriteString("\n## Recent runs\n\n")
	sb.WriteString("| Started | Duration | Added | Completed | Errors | Outcome |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, run := range runs {
		added, completed, errs := 0, 0, 0
		if run.Result != nil {
			added = run.Result.RemoteToLocal.Added + run.Result.LocalToRemote.Added
			completed = run.Result.Completions.Completed
			errs = run.Result.ErrorCount()
		}
		outcome := "ok"
		if run.Error != "" {
			outcome = strings.ReplaceAll(scrubSensitiveData(run.Error), "|", "\\|")
		}
		fmt.Fprintf(&sb, "| %s | %s | %d | %d | %d | %s |\n",
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
			added, completed, errs, outcome)
	}
	return sb.String()
}
