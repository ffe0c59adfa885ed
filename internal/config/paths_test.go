package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/herald/internal/constants"
)

func TestHomeDir_EnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv(constants.HomeEnvVar, home)

	dir, err := HomeDir()
	require.NoError(t, err)
	assert.Equal(t, home, dir)

	path, err := GlobalConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml"), path)

	runs, err := RunsDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "runs"), runs)

	logs, err := LogsDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs"), logs)

	traces, err := TracesPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "traces", DefaultTracesFileName), traces)
}

func TestHomeDir_Default(t *testing.T) {
	t.Setenv(constants.HomeEnvVar, "")
	t.Setenv("HOME", t.TempDir())

	dir, err := HomeDir()
	require.NoError(t, err)
	assert.Equal(t, ".herald", filepath.Base(dir))
}

func TestProjectConfigPath(t *testing.T) {
	assert.Equal(t, ".herald", ProjectConfigDir())
	assert.Equal(t, filepath.Join(".herald", "config.yaml"), ProjectConfigPath())
}
