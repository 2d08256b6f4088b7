package main

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	cfgProfile  string
	cfgDBPath   string
	cfgVault    string
	cfgFolder   string
	cfgSection  string
	cfgGraphURL string
	cfgToken    string
	cfgListID   string
	cfgTimezone string
	cfgDebug    bool
	outputJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "tasksync",
	Short: "tasksync - daily notes and Microsoft To Do, kept in step",
	Long: `tasksync keeps the checklist items in a vault of markdown daily notes
and the tasks in a Microsoft To Do list in step with each other.

Tasks created on either side appear on the other, completions flow both
ways, and renamed tasks stay linked to their remote counterpart.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: $XDG_CONFIG_HOME/tasksync/config.yaml)")
	pf.StringVar(&cfgProfile, "profile", "", "Profile name (default: resolved via TASKSYNC_PROFILE or 'default')")
	pf.StringVar(&cfgDBPath, "db", "", "Path to the state database (default: profile directory)")
	pf.StringVar(&cfgVault, "vault", "", "Path to the markdown vault")
	pf.StringVar(&cfgFolder, "folder", "", "Daily notes folder inside the vault (default: Daily)")
	pf.StringVar(&cfgSection, "section", "", "Heading tasks live under (default: '## Tasks')")
	pf.StringVar(&cfgGraphURL, "graph-url", "", "Microsoft Graph base URL")
	pf.StringVar(&cfgToken, "token", "", "Microsoft Graph access token")
	pf.StringVar(&cfgListID, "list", "", "To Do list ID (default: the account's default list)")
	pf.StringVar(&cfgTimezone, "timezone", "", "IANA zone used for calendar dates (default: local)")
	pf.BoolVar(&cfgDebug, "debug", false, "Log Graph requests and responses to stderr")
	pf.BoolVar(&outputJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(importLegacyCmd)
	rootCmd.AddCommand(profilesCmd)

	rootCmd.AddGroup(commandGroups...)
	for _, c := range []*cobra.Command{syncCmd, statusCmd, daemonCmd} {
		c.GroupID = groupSync
	}
	for _, c := range []*cobra.Command{identityCmd, pruneCmd, importLegacyCmd} {
		c.GroupID = groupIdentity
	}
	for _, c := range []*cobra.Command{profilesCmd, mcpCmd, versionCmd} {
		c.GroupID = groupSetup
	}
}
