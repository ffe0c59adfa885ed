package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/errors"
)

// HomeDir returns the herald home directory: $HERALD_HOME when set,
// otherwise ~/.herald. Logs, archived run summaries and the global config
// live here.
func HomeDir() (string, error) {
	if dir := os.Getenv(constants.HomeEnvVar); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.HeraldHome), nil
}

// GlobalConfigDir returns the directory of the global configuration file.
func GlobalConfigDir() (string, error) {
	return HomeDir()
}

// GlobalConfigPath returns the full path to the global configuration file.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigDir returns the relative path to the project configuration directory.
func ProjectConfigDir() string {
	return constants.ProjectConfigDir
}

// ProjectConfigPath returns the relative path to the project configuration file.
// This is always .herald/config.yaml relative to the working directory.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), constants.ProjectConfigName)
}

// RunsDir returns where archived run summaries are kept.
func RunsDir() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.RunsDir), nil
}

// LogsDir returns where the CLI log file is written.
func LogsDir() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.LogsDir), nil
}

// TracesPath returns the default file exporter output path.
func TracesPath() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.TracesDir, DefaultTracesFileName), nil
}
