package store

import (
	"os"
	"path/filepath"
)

// DBFileName is the state database file name inside a profile directory.
const DBFileName = "tasksync.db"

// DefaultProfileRoot returns the root directory for all profiles.
// Defaults to ~/.tasksync/profiles, falls back to ./.tasksync/profiles if home dir unavailable.
func DefaultProfileRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".tasksync", "profiles")
	}
	return filepath.Join(home, ".tasksync", "profiles")
}

// ProfileDir returns the directory holding a profile's state.
func ProfileDir(profile string) string {
	return filepath.Join(DefaultProfileRoot(), profile)
}

// ProfileDBPath returns the full path to a profile's database file.
// Example: ProfileDBPath("work") -> ~/.tasksync/profiles/work/tasksync.db
func ProfileDBPath(profile string) string {
	return filepath.Join(ProfileDir(profile), DBFileName)
}

// LockFileName is the lock file guarding sync runs, kept next to the database.
const LockFileName = "sync.lock"

// LockPath returns the lock file guarding sync runs against dbPath.
func LockPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), LockFileName)
}

// ListProfiles returns the profiles that have a database under root.
func ListProfiles(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var profiles []string
	for _, e := range entries {
		if !e.IsDir() || ValidateProfile(e.Name()) != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), DBFileName)); err == nil {
			profiles = append(profiles, e.Name())
		}
	}
	return profiles, nil
}
