// Package paths resolves where othings keeps its configuration, its local
// snapshot store and the optional external sync file.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AppName is the directory name used under platform config and data roots.
const AppName = "othings"

// ConfigFileName is the configuration file inside the config directory.
const ConfigFileName = "config.yaml"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "OTHINGS_CONFIG_DIR"
	EnvDataDir   = "OTHINGS_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/othings (fallback ~/.config/othings)
// macOS:   ~/Library/Application Support/othings
// Windows: %APPDATA%/othings
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// DefaultDataDir returns the platform data directory. On macOS and Windows
// it shares the config directory and keeps snapshots in a data subdirectory.
//
// Linux:   $XDG_DATA_HOME/othings (fallback ~/.local/share/othings)
// macOS:   ~/Library/Application Support/othings/data
// Windows: %APPDATA%/othings/data
func DefaultDataDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName, "data"), nil
}

func xdgDir(env, homeRel string) (string, error) {
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, AppName), nil
}

// ResolveConfigDir follows flag > OTHINGS_CONFIG_DIR > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir follows flag > config.yaml value > OTHINGS_DATA_DIR >
// DefaultDataDir().
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if flag != "" {
		return Abs(flag)
	}
	if configYAMLValue != "" {
		return Abs(configYAMLValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return Abs(env)
	}
	return DefaultDataDir()
}

// ConfigFile returns the path of config.yaml inside configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

// Abs expands a leading ~ to the home directory and makes p absolute.
func Abs(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}
