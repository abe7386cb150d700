package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults resolves the default locations, honoring in order:
//   - VERETINO_CONFIG_PATH / VERETINO_HOME
//   - XDG_CONFIG_HOME / XDG_DATA_HOME
//   - ~/.config/veretino.toml and ~/.local/share/veretino
func GetDefaults() (map[string]string, error) {
	configPath, err := resolveDir("VERETINO_CONFIG_PATH", "XDG_CONFIG_HOME", "veretino.toml", ".config")
	if err != nil {
		return nil, err
	}
	baseDir, err := resolveDir("VERETINO_HOME", "XDG_DATA_HOME", "veretino", ".local", "share")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"history_dir": filepath.Join(baseDir, "history"),
	}, nil
}

// resolveDir returns $override as is, else name under $xdg, else name under
// the home-relative fallback.
func resolveDir(override, xdg, name string, fallback ...string) (string, error) {
	if p := os.Getenv(override); p != "" {
		return p, nil
	}
	if p := os.Getenv(xdg); p != "" && filepath.IsAbs(p) {
		return filepath.Join(p, name), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	parts := append([]string{homeDir}, fallback...)
	return filepath.Join(append(parts, name)...), nil
}
