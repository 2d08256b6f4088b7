package store

import (
	"fmt"
	"os"
)

// ProfileEnv is the environment variable selecting the active profile.
const ProfileEnv = "TASKSYNC_PROFILE"

// ResolveProfile determines the profile to use based on priority chain.
// Priority: explicit > TASKSYNC_PROFILE env > "default"
func ResolveProfile(explicit string) (string, error) {
	if explicit != "" {
		if err := ValidateProfile(explicit); err != nil {
			return "", fmt.Errorf("invalid profile %q: %w", explicit, err)
		}
		return explicit, nil
	}

	if env := os.Getenv(ProfileEnv); env != "" {
		if err := ValidateProfile(env); err != nil {
			return "", fmt.Errorf("invalid %s %q: %w", ProfileEnv, env, err)
		}
		return env, nil
	}

	return DefaultProfile, nil
}
