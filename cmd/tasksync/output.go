package main

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/hyperengineering/tasksync"
	"github.com/spf13/cobra"
)

// bearerToken matches an Authorization header value echoed into an error.
var bearerToken = regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-._~+/]+=*`)

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError prints an error to stderr with access tokens redacted.
func outputError(w io.Writer, err error) {
	printError(w, "%s", scrubSensitiveData(err.Error()))
}

// scrubSensitiveData removes access tokens from messages.
func scrubSensitiveData(msg string) string {
	if activeToken != "" {
		msg = strings.ReplaceAll(msg, activeToken, "[REDACTED]")
	}
	if cfgToken != "" {
		msg = strings.ReplaceAll(msg, cfgToken, "[REDACTED]")
	}
	return bearerToken.ReplaceAllString(msg, "Bearer [REDACTED]")
}

// syncOutput is the JSON shape of a sync result.
type syncOutput struct {
	*tasksync.SyncResult
	Errors     int   `json:"error_count"`
	DurationMs int64 `json:"duration_ms"`
}

// outputSyncResult prints a sync result in the configured format.
func outputSyncResult(cmd *cobra.Command, result *tasksync.SyncResult, duration time.Duration) error {
	if outputJSON {
		return outputAsJSON(cmd, syncOutput{
			SyncResult: result,
			Errors:     result.ErrorCount(),
			DurationMs: duration.Milliseconds(),
		})
	}

	out := cmd.OutOrStdout()
	printSuccess(out, "Sync complete (took %s)", duration.Round(time.Millisecond))

	rows := [][]string{
		{"Identity", fmt.Sprintf("%d kept, %d renamed, %d removed",
			result.Reconcile.Kept, result.Reconcile.Renamed, result.Reconcile.Removed)},
		{"To Do -> notes", fmt.Sprintf("%d added", result.RemoteToLocal.Added)},
		{"Notes -> To Do", fmt.Sprintf("%d added", result.LocalToRemote.Added)},
		{"Completions", fmt.Sprintf("%d (%d in notes, %d in To Do)",
			result.Completions.Completed, result.Completions.ToLocal, result.Completions.ToRemote)},
	}
	if result.Pruned > 0 {
		rows = append(rows, []string{"Pruned", fmt.Sprintf("%d stale records", result.Pruned)})
	}
	fmt.Fprintln(out, renderTable([]string{"PHASE", "RESULT"}, rows))

	if n := result.ErrorCount(); n > 0 {
		printWarning(out, "%d tasks could not be synced:", n)
		for _, list := range [][]string{
			result.Reconcile.Errors,
			result.RemoteToLocal.Errors,
			result.LocalToRemote.Errors,
			result.Completions.Errors,
		} {
			for _, e := range list {
				printMuted(out, "  - %s", scrubSensitiveData(e))
			}
		}
	}
	return nil
}

// outputRecords prints identity records in the configured format.
func outputRecords(cmd *cobra.Command, records []tasksync.TaskMetadata) error {
	if outputJSON {
		if records == nil {
			records = []tasksync.TaskMetadata{}
		}
		return outputAsJSON(cmd, records)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No identity records found.")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{rec.Date, rec.Title, rec.RemoteID, formatRelativeTime(rec.LastSynced)})
	}
	fmt.Fprintln(out, renderTable([]string{"DATE", "TITLE", "REMOTE ID", "LAST SYNCED"}, rows))
	return nil
}

// formatRelativeTime renders t as a coarse age such as "3h ago".
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
