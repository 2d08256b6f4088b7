package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperengineering/tasksync"
	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "TASKSYNC"
)

// Config keys, shared by config.yaml and TASKSYNC_* variables.
const (
	keyDBPath      = "db_path"
	keyProfile     = "profile"
	keyVault       = "vault"
	keyNotesFolder = "notes_folder"
	keySection     = "section"
	keyGraphURL    = "graph_url"
	keyToken       = "token"
	keyListID      = "list_id"
	keyStaleDays   = "stale_days"
	keyTimezone    = "timezone"
	keySchedule    = "schedule"
	keyDebug       = "debug"
	keyDebugLog    = "debug_log"
)

// flagKeys maps persistent flags to the config keys they override.
var flagKeys = map[string]string{
	"db":        keyDBPath,
	"profile":   keyProfile,
	"vault":     keyVault,
	"folder":    keyNotesFolder,
	"section":   keySection,
	"graph-url": keyGraphURL,
	"token":     keyToken,
	"list":      keyListID,
	"timezone":  keyTimezone,
	"debug":     keyDebug,
}

// activeToken is the token of the last loaded config, scrubbed from errors.
var activeToken string

// defaultConfigDir returns $XDG_CONFIG_HOME/tasksync, or its platform
// equivalent.
func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tasksync")
}

// newViper layers flags over TASKSYNC_* variables over config.yaml over
// defaults. A missing config file is not an error unless --config named it.
func newViper() (*viper.Viper, error) {
	v := viper.New()

	defaults := tasksync.DefaultConfig()
	v.SetDefault(keyNotesFolder, defaults.NotesFolder)
	v.SetDefault(keySection, defaults.Section)
	v.SetDefault(keyGraphURL, defaults.GraphURL)
	v.SetDefault(keyStaleDays, defaults.StaleAfterDays)
	v.SetDefault(keySchedule, defaults.Schedule)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	pf := rootCmd.PersistentFlags()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, pf.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return v, nil
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	if dir := defaultConfigDir(); dir != "" {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// loadConfig resolves and validates the effective configuration.
func loadConfig() (tasksync.Config, error) {
	v, err := newViper()
	if err != nil {
		return tasksync.Config{}, err
	}

	cfg := tasksync.Config{
		DBPath:         expandHome(v.GetString(keyDBPath)),
		Profile:        v.GetString(keyProfile),
		VaultPath:      expandHome(v.GetString(keyVault)),
		NotesFolder:    v.GetString(keyNotesFolder),
		Section:        v.GetString(keySection),
		GraphURL:       v.GetString(keyGraphURL),
		AccessToken:    v.GetString(keyToken),
		ListID:         v.GetString(keyListID),
		StaleAfterDays: v.GetInt(keyStaleDays),
		Timezone:       v.GetString(keyTimezone),
		Schedule:       v.GetString(keySchedule),
		Debug:          v.GetBool(keyDebug),
		DebugLogPath:   expandHome(v.GetString(keyDebugLog)),
	}
	cfg = cfg.WithDefaults()
	activeToken = cfg.AccessToken

	if err := cfg.Validate(); err != nil {
		return tasksync.Config{}, err
	}
	return cfg, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
