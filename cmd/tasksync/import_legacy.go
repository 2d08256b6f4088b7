package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hyperengineering/tasksync/internal/store"
	"github.com/spf13/cobra"
)

var importLegacyCmd = &cobra.Command{
	Use:   "import-legacy",
	Short: "Import identity records from the editor plugin",
	Long: `Import the identity records kept by the earlier editor plugin in its
data.json, so tasks it already linked are not duplicated on the first sync.

The data file is copied next to the state database before importing.
Titles are cleaned of legacy [todo::...] tags on the way in.

Example:
  tasksync import-legacy --vault ~/notes
  tasksync import-legacy --from ~/notes/.obsidian/plugins/tasksync/data.json`,
	Args: cobra.NoArgs,
	RunE: runImportLegacy,
}

var importLegacyFrom string

func init() {
	importLegacyCmd.Flags().StringVar(&importLegacyFrom, "from", "", "Plugin data file (default: <vault>/.obsidian/plugins/tasksync/data.json)")
}

// importLegacyOutput is the JSON shape of an import.
type importLegacyOutput struct {
	Source   string `json:"source"`
	Backup   string `json:"backup"`
	Found    int    `json:"found"`
	Imported int    `json:"imported"`
}

func runImportLegacy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	src := expandHome(importLegacyFrom)
	if src == "" {
		if cfg.VaultPath == "" {
			return fmt.Errorf("give --from or configure the vault path")
		}
		src = store.DefaultLegacyDataPath(cfg.VaultPath)
	}

	data, err := store.ReadLegacyData(src)
	if errors.Is(err, store.ErrNoLegacyData) {
		printWarning(cmd.OutOrStdout(), "No identity records in %s", src)
		return nil
	}
	if err != nil {
		return err
	}

	backup, err := store.BackupLegacyData(src, filepath.Dir(cfg.DBPath))
	if err != nil {
		return err
	}

	client, err := openClient(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer client.Close()

	imported, err := client.ImportLegacy(data.Blob)
	if err != nil {
		return err
	}

	if outputJSON {
		return outputAsJSON(cmd, importLegacyOutput{
			Source:   src,
			Backup:   backup,
			Found:    data.Records,
			Imported: imported,
		})
	}

	out := cmd.OutOrStdout()
	printSuccess(out, "Imported %d of %d identity records", imported, data.Records)
	printMuted(out, "  source: %s", src)
	printMuted(out, "  backup: %s", backup)
	if skipped := data.Records - imported; skipped > 0 {
		printWarning(out, "%d records had no remote ID or date and were skipped", skipped)
	}
	return nil
}
