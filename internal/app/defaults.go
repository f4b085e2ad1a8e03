package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	configPathEnv = "WEIGHBRIDGE_CONFIG_PATH"
	homeEnv       = "WEIGHBRIDGE_HOME"
)

// GetDefaults returns the paths a terminal uses before its config file has
// been read:
//
//	config_path  the TOML file read by every command; $WEIGHBRIDGE_CONFIG_PATH
//	             or ~/.config/weighbridge.toml
//	base_dir     root of the terminal's local state (sqlite file, media,
//	             logs); $WEIGHBRIDGE_HOME or ~/.local/share/weighbridge
//	log_dir      base_dir/log, the log_dir written by config init
//	backup_dir   base_dir/backup, where db backup writes when --dir is not given
func GetDefaults() (map[string]string, error) {
	configPath, err := fromEnvOrHome(configPathEnv, ".config", "weighbridge.toml")
	if err != nil {
		return nil, fmt.Errorf("config path: %w", err)
	}
	baseDir, err := fromEnvOrHome(homeEnv, ".local", "share", "weighbridge")
	if err != nil {
		return nil, fmt.Errorf("base dir: %w", err)
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"backup_dir":  filepath.Join(baseDir, "backup"),
	}, nil
}

// fromEnvOrHome returns $env when set, else the home-relative path.
func fromEnvOrHome(env string, rel ...string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%s is unset and the home directory is unknown: %w", env, err)
	}
	return filepath.Join(append([]string{home}, rel...)...), nil
}
