package tasksync

import (
	"os"
	"strconv"
	"time"

	"github.com/hyperengineering/tasksync/internal/store"
)

// DefaultGraphURL is the Microsoft Graph endpoint used for the remote list.
const DefaultGraphURL = "https://graph.microsoft.com/v1.0"

// DefaultNotesFolder is the vault folder holding daily notes.
const DefaultNotesFolder = "Daily"

// DefaultSchedule is the cron schedule used by the daemon.
const DefaultSchedule = "*/15 * * * *"

// Config configures the tasksync client.
type Config struct {
	// DBPath is the path to the local SQLite state database.
	// If empty, derived from Profile.
	DBPath string

	// Profile selects an isolated state database.
	// If empty, resolved using profile resolution (explicit > TASKSYNC_PROFILE env > "default").
	Profile string

	// VaultPath is the root of the markdown vault.
	VaultPath string

	// NotesFolder is the vault-relative folder holding daily notes.
	// Defaults to "Daily".
	NotesFolder string

	// Section is the heading tasks live under in each daily note.
	// Defaults to "## Tasks".
	Section string

	// GraphURL is the Microsoft Graph base URL.
	GraphURL string

	// AccessToken authenticates with Microsoft Graph.
	AccessToken string

	// ListID pins the remote task list. If empty, the account's default
	// list is discovered on first use.
	ListID string

	// StaleAfterDays prunes identity records untouched for this many days at
	// the end of every sync. Zero disables pruning.
	StaleAfterDays int

	// Timezone is the IANA zone used to turn remote instants into calendar
	// dates. Defaults to the system zone.
	Timezone string

	// Schedule is the cron expression the daemon runs syncs on.
	Schedule string

	// Debug enables verbose logging of all Graph API communications.
	Debug bool

	// DebugLogPath is the path to write debug logs.
	// Defaults to stderr if empty.
	DebugLogPath string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Profile:        store.DefaultProfile,
		DBPath:         store.ProfileDBPath(store.DefaultProfile),
		NotesFolder:    DefaultNotesFolder,
		Section:        DefaultSection,
		GraphURL:       DefaultGraphURL,
		StaleAfterDays: DefaultStaleAfterDays,
		Schedule:       DefaultSchedule,
	}
}

// ConfigFromEnv reads configuration from environment variables.
//
//	TASKSYNC_DB_PATH      → DBPath
//	TASKSYNC_PROFILE      → Profile
//	TASKSYNC_VAULT        → VaultPath
//	TASKSYNC_NOTES_FOLDER → NotesFolder
//	TASKSYNC_SECTION      → Section
//	TASKSYNC_GRAPH_URL    → GraphURL
//	TASKSYNC_TOKEN        → AccessToken
//	TASKSYNC_LIST_ID      → ListID
//	TASKSYNC_STALE_DAYS   → StaleAfterDays (ignored when not an integer)
//	TASKSYNC_TIMEZONE     → Timezone
//	TASKSYNC_SCHEDULE     → Schedule
//	TASKSYNC_DEBUG        → Debug (any non-empty value enables)
//	TASKSYNC_DEBUG_LOG    → DebugLogPath
func ConfigFromEnv() Config {
	cfg := Config{
		DBPath:       os.Getenv("TASKSYNC_DB_PATH"),
		Profile:      os.Getenv(store.ProfileEnv),
		VaultPath:    os.Getenv("TASKSYNC_VAULT"),
		NotesFolder:  os.Getenv("TASKSYNC_NOTES_FOLDER"),
		Section:      os.Getenv("TASKSYNC_SECTION"),
		GraphURL:     os.Getenv("TASKSYNC_GRAPH_URL"),
		AccessToken:  os.Getenv("TASKSYNC_TOKEN"),
		ListID:       os.Getenv("TASKSYNC_LIST_ID"),
		Timezone:     os.Getenv("TASKSYNC_TIMEZONE"),
		Schedule:     os.Getenv("TASKSYNC_SCHEDULE"),
		Debug:        os.Getenv("TASKSYNC_DEBUG") != "",
		DebugLogPath: os.Getenv("TASKSYNC_DEBUG_LOG"),
	}
	if v := os.Getenv("TASKSYNC_STALE_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.StaleAfterDays = days
		}
	}
	return cfg
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return &ValidationError{Field: "DBPath", Message: "required: path to SQLite database"}
	}

	if c.Profile != "" {
		if err := store.ValidateProfile(c.Profile); err != nil {
			return &ValidationError{Field: "Profile", Message: err.Error()}
		}
	}

	if c.StaleAfterDays < 0 {
		return &ValidationError{Field: "StaleAfterDays", Message: "must be non-negative"}
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return &ValidationError{Field: "Timezone", Message: err.Error()}
		}
	}

	return nil
}

// ValidateForSync checks the fields a sync cycle needs on top of Validate.
func (c *Config) ValidateForSync() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.VaultPath == "" {
		return &ValidationError{Field: "VaultPath", Message: "required: path to the markdown vault"}
	}
	if c.AccessToken == "" {
		return &ValidationError{Field: "AccessToken", Message: "required to reach Microsoft Graph"}
	}
	return nil
}

// Location returns the configured zone, or time.Local when unset or invalid.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// LockPath returns the lock file guarding mutations of the state database.
func (c *Config) LockPath() string {
	return store.LockPath(c.DBPath)
}

// WithDefaults fills in default values for unset fields.
// Profile resolution: explicit Profile field > TASKSYNC_PROFILE env > "default".
// DBPath is derived from the resolved profile if not explicitly set.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	if c.Profile == "" {
		resolved, err := store.ResolveProfile("")
		if err == nil {
			c.Profile = resolved
		} else {
			c.Profile = store.DefaultProfile
		}
	}

	if c.DBPath == "" {
		c.DBPath = store.ProfileDBPath(c.Profile)
	}
	if c.NotesFolder == "" {
		c.NotesFolder = defaults.NotesFolder
	}
	if c.Section == "" {
		c.Section = defaults.Section
	}
	if c.GraphURL == "" {
		c.GraphURL = defaults.GraphURL
	}
	if c.Schedule == "" {
		c.Schedule = defaults.Schedule
	}

	return c
}
