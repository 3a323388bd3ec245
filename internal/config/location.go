package config

import (
	"os"
	"path/filepath"
)

// EnvConfigPath overrides the configuration file location.
const EnvConfigPath = "VIEWLOOP_CONFIG"

// GetConfigPath returns $VIEWLOOP_CONFIG when set, otherwise
// ~/.viewloop/config.
func GetConfigPath() (string, error) {
	if configPath := os.Getenv(EnvConfigPath); configPath != "" {
		return configPath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".viewloop", "config"), nil
}
