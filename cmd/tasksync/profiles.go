package main

import (
	"fmt"

	"github.com/hyperengineering/tasksync/internal/store"
	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List profiles that have a state database",
	Args:  cobra.NoArgs,
	RunE:  runProfiles,
}

func runProfiles(cmd *cobra.Command, args []string) error {
	root := store.DefaultProfileRoot()
	profiles, err := store.ListProfiles(root)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	if profiles == nil {
		profiles = []string{}
	}

	if outputJSON {
		return outputAsJSON(cmd, map[string]any{"root": root, "profiles": profiles})
	}

	out := cmd.OutOrStdout()
	if len(profiles) == 0 {
		printMuted(out, "No profiles under %s", root)
		return nil
	}
	for _, p := range profiles {
		fmt.Fprintln(out, p)
	}
	return nil
}
