package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LegacyPluginID is the directory name of the earlier editor plugin.
const LegacyPluginID = "tasksync"

// ErrNoLegacyData indicates the plugin data file has no identity records.
var ErrNoLegacyData = errors.New("no taskMetadata in legacy plugin data")

// DefaultLegacyDataPath returns where the earlier plugin kept its data file
// inside a vault.
func DefaultLegacyDataPath(vault string) string {
	return filepath.Join(vault, ".obsidian", "plugins", LegacyPluginID, "data.json")
}

// LegacyData is the identity blob extracted from a plugin data file.
type LegacyData struct {
	// SourcePath is the data file the blob was read from.
	SourcePath string
	// Blob is the raw JSON array of [key, record] pairs.
	Blob []byte
	// Records is the number of pairs in Blob.
	Records int
}

// ReadLegacyData reads the taskMetadata array from a plugin data file.
//
// The file is a JSON object; only its "taskMetadata" member is used. A file
// without that member, or with an empty array, returns ErrNoLegacyData.
func ReadLegacyData(path string) (*LegacyData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read legacy data: %w", err)
	}

	var doc struct {
		TaskMetadata json.RawMessage `json:"taskMetadata"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse legacy data: %w", err)
	}
	if len(doc.TaskMetadata) == 0 || string(doc.TaskMetadata) == "null" {
		return nil, ErrNoLegacyData
	}

	var pairs []json.RawMessage
	if err := json.Unmarshal(doc.TaskMetadata, &pairs); err != nil {
		return nil, fmt.Errorf("parse legacy taskMetadata: %w", err)
	}
	if len(pairs) == 0 {
		return nil, ErrNoLegacyData
	}

	return &LegacyData{
		SourcePath: path,
		Blob:       doc.TaskMetadata,
		Records:    len(pairs),
	}, nil
}

// BackupLegacyData copies the plugin data file into the profile directory
// before an import, returning the backup path.
func BackupLegacyData(src, profileDir string) (string, error) {
	if err := os.MkdirAll(profileDir, 0755); err != nil {
		return "", fmt.Errorf("create profile directory: %w", err)
	}
	dst := filepath.Join(profileDir, "legacy-data.json.bak")
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("backup legacy data: %w", err)
	}
	return dst, nil
}

// copyFile copies a file from src to dst and syncs it to disk.
// On failure, attempts to clean up any partial destination file.
func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	dest, err := os.Create(dst)
	if err != nil {
		return err
	}

	success := false
	defer func() {
		dest.Close()
		if !success {
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(dest, source); err != nil {
		return err
	}
	if err := dest.Sync(); err != nil {
		return err
	}

	success = true
	return nil
}
