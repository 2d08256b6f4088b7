package main

import (
	"fmt"
	"io"
	"os"

	"github.com/hyperengineering/tasksync"
	"github.com/spf13/cobra"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Inspect and edit identity records",
	Long: `Identity records link a task in a daily note, keyed by date and title,
to its Microsoft To Do task. Removing a record makes the next sync treat
the task as unlinked.`,
}

var identityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List identity records",
	Long: `List identity records, optionally for one date or a date range.

Example:
  tasksync identity list
  tasksync identity list --date 2024-01-20
  tasksync identity list --from 2024-01-01 --to 2024-01-31`,
	Args: cobra.NoArgs,
	RunE: runIdentityList,
}

var identityFindCmd = &cobra.Command{
	Use:   "find <date> <title-fragment>",
	Short: "Find identity records by partial title",
	Args:  cobra.ExactArgs(2),
	RunE:  runIdentityFind,
}

var identityForgetCmd = &cobra.Command{
	Use:   "forget [<date> <title>]",
	Short: "Remove identity records",
	Long: `Remove the record for a date and title, or every record linked to a
remote task.

Example:
  tasksync identity forget 2024-01-20 "Call dentist"
  tasksync identity forget --remote-id AAMkAGI2...`,
	RunE: runIdentityForget,
}

var identityExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export identity records as JSON",
	Long: `Write every identity record as JSON, to stdout or a file.

Example:
  tasksync identity export > identity.json
  tasksync identity export --output identity.json`,
	Args: cobra.NoArgs,
	RunE: runIdentityExport,
}

var identityImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import identity records from an export",
	Long: `Merge identity records from a file written by 'identity export'.

Strategies:
  merge    keep whichever record was synced more recently (default)
  skip     keep existing records
  replace  overwrite existing records

Example:
  tasksync identity import identity.json --strategy skip --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentityImport,
}

var (
	identityOutput   string
	identityStrategy string
	identityDryRun   bool
)

var (
	identityDate     string
	identityFrom     string
	identityTo       string
	identityRemoteID string
)

func init() {
	identityListCmd.Flags().StringVar(&identityDate, "date", "", "Only records for this date (YYYY-MM-DD)")
	identityListCmd.Flags().StringVar(&identityFrom, "from", "", "Range start (YYYY-MM-DD), used with --to")
	identityListCmd.Flags().StringVar(&identityTo, "to", "", "Range end (YYYY-MM-DD), used with --from")
	identityForgetCmd.Flags().StringVar(&identityRemoteID, "remote-id", "", "Remove every record linked to this remote task")

	identityCmd.AddCommand(identityListCmd)
	identityCmd.AddCommand(identityFindCmd)
	identityExportCmd.Flags().StringVarP(&identityOutput, "output", "o", "", "Write to file instead of stdout")
	identityImportCmd.Flags().StringVar(&identityStrategy, "strategy", string(tasksync.MergeStrategyMerge), "Merge strategy: merge, skip or replace")
	identityImportCmd.Flags().BoolVar(&identityDryRun, "dry-run", false, "Report what would change without writing")

	identityCmd.AddCommand(identityForgetCmd)
	identityCmd.AddCommand(identityExportCmd)
	identityCmd.AddCommand(identityImportCmd)
}

func checkDate(flag, value string) error {
	if !tasksync.ValidDate(value) {
		return fmt.Errorf("%s: %w: %q", flag, tasksync.ErrInvalidDate, value)
	}
	return nil
}

func runIdentityList(cmd *cobra.Command, args []string) error {
	if (identityFrom == "") != (identityTo == "") {
		return fmt.Errorf("--from and --to must be given together")
	}
	if identityDate != "" {
		if err := checkDate("--date", identityDate); err != nil {
			return err
		}
	}
	if identityFrom != "" {
		if err := checkDate("--from", identityFrom); err != nil {
			return err
		}
		if err := checkDate("--to", identityTo); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := openClient(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer client.Close()

	identity := client.Identity()
	var records []tasksync.TaskMetadata
	switch {
	case identityDate != "":
		records = identity.ByDate(identityDate)
	case identityFrom != "":
		records = identity.ByDateRange(identityFrom, identityTo)
	default:
		records = identity.GetAllMetadata()
	}
	return outputRecords(cmd, records)
}

func runIdentityFind(cmd *cobra.Command, args []string) error {
	if err := checkDate("date", args[0]); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := openClient(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer client.Close()

	return outputRecords(cmd, client.Identity().FindByPartialTitle(args[0], tasksync.CleanTitle(args[1])))
}

func runIdentityForget(cmd *cobra.Command, args []string) error {
	if identityRemoteID == "" && len(args) != 2 {
		return fmt.Errorf("give <date> <title> or --remote-id")
	}
	if len(args) == 2 {
		if err := checkDate("date", args[0]); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := openClient(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer client.Close()

	var removed int
	err = client.Update(func(identity *tasksync.IdentityStore) {
		before := identity.Len()
		if len(args) == 2 {
			identity.RemoveMetadata(args[0], args[1])
		}
		if identityRemoteID != "" {
			identity.RemoveByRemoteID(identityRemoteID)
		}
		removed = before - identity.Len()
	})
	if err != nil {
		return err
	}

	if outputJSON {
		return outputAsJSON(cmd, map[string]int{"removed": removed})
	}
	if removed == 0 {
		printWarning(cmd.OutOrStdout(), "No matching identity records")
		return nil
	}
	printSuccess(cmd.OutOrStdout(), "Removed %d identity records", removed)
	return nil
}

func runIdentityExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := openClient(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer client.Close()

	var w io.Writer = cmd.OutOrStdout()
	if identityOutput != "" {
		f, err := os.Create(identityOutput)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := client.ExportIdentity(cmd.Context(), w); err != nil {
		return fmt.Errorf("export identity: %w", err)
	}
	if identityOutput != "" && !outputJSON {
		printSuccess(cmd.ErrOrStderr(), "Exported %d identity records to %s", client.Identity().Len(), identityOutput)
	}
	return nil
}

func runIdentityImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	client, err := openClient(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.ImportIdentity(cmd.Context(), f, tasksync.MergeStrategy(identityStrategy), identityDryRun)
	if err != nil {
		return err
	}

	if outputJSON {
		return outputAsJSON(cmd, result)
	}
	out := cmd.OutOrStdout()
	verb := "Imported"
	if result.DryRun {
		verb = "Would import"
	}
	printSuccess(out, "%s %d records: %d created, %d merged, %d skipped",
		verb, result.Total, result.Created, result.Merged, result.Skipped)
	for _, e := range result.Errors {
		printMuted(out, "  - %s", e)
	}
	return nil
}
