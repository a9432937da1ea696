// Package config resolves where deckcheck keeps its files and loads the
// optional config.toml.
package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "deckcheck"

// GetDataDir resolves the base directory for catalog storage. DECKCHECK_DIR
// wins, then the XDG data home, then ~/.local/share.
func GetDataDir() string {
	if explicit := os.Getenv("DECKCHECK_DIR"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), appName)
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, appName)
}

// GetDBPath returns the path to the catalog SQLite file.
func GetDBPath() string {
	return filepath.Join(GetDataDir(), "catalog.db")
}

// GetConfigPath returns the default location of config.toml.
func GetConfigPath() string {
	xdg.Reload()

	configHome := xdg.ConfigHome
	if configHome == "" {
		return filepath.Join(GetDataDir(), "config.toml")
	}
	return filepath.Join(configHome, appName, "config.toml")
}
