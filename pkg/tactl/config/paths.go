package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName   = "tactl"
	defaultConfigFile      = "config.yaml"
	defaultStateDirName    = ".tradingagents"
	defaultTokenFile       = "auth_tokens.json"
	defaultPreferencesFile = "session_config.toml"
)

func DefaultConfigPath() string {
	if env := os.Getenv("TACTL_CONFIG"); env != "" {
		return env
	}
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName, defaultConfigFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tactl", defaultConfigFile)
}

// StateDir holds the token cache and session preferences shared with other
// TradingAgents tools.
func StateDir() string {
	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, defaultStateDirName)
	}
	base, _ := os.UserConfigDir()
	return filepath.Join(base, defaultConfigDirName)
}

func DefaultTokenPath() string {
	return filepath.Join(StateDir(), defaultTokenFile)
}

func DefaultPreferencesPath() string {
	return filepath.Join(StateDir(), defaultPreferencesFile)
}
