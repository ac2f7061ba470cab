package main

import (
	"os"
	"path/filepath"

	"github.com/openmined/syftnotes/internal/client/config"
	"github.com/openmined/syftnotes/internal/utils"
	"github.com/spf13/cobra"
)

const envConfigPath = envPrefix + "_CONFIG_PATH"

// resolveConfigPath picks the first of: the --config flag when set,
// SYFTNOTES_CONFIG_PATH, an existing file in a known location, the default.
func resolveConfigPath(cmd *cobra.Command) string {
	if f := lookupFlag(cmd, "config"); f != nil && f.Changed {
		return f.Value.String()
	}

	if envPath := os.Getenv(envConfigPath); envPath != "" {
		return envPath
	}

	candidates := []string{
		config.DefaultConfigPath,
		filepath.Join(home, ".config", "syftnotes", "config.json"),
	}
	for _, candidate := range candidates {
		if utils.FileExists(candidate) {
			return candidate
		}
	}

	return config.DefaultConfigPath
}
