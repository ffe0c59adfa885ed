package command

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	heralderrors "github.com/mrz1836/herald/internal/errors"
)

func TestShellRunner_Success(t *testing.T) {
	dir := t.TempDir()
	var live bytes.Buffer

	res, err := (&ShellRunner{}).Run(context.Background(), Spec{
		Dir:     dir,
		Command: `printf "%s" "$HERALD_REPORT_VERSION" > out.txt && echo done`,
		Env:     map[string]string{"HERALD_REPORT_VERSION": "7"},
		LiveOut: &live,
	})
	require.NoError(t, err)
	assert.Equal(t, "done\n", res.Stdout)
	assert.Equal(t, "done\n", live.String())

	data, err := os.ReadFile(filepath.Join(dir, "out.txt")) //#nosec G304 -- test path
	require.NoError(t, err)
	assert.Equal(t, "7", string(data))
}

func TestShellRunner_NonZeroExit(t *testing.T) {
	res, err := (&ShellRunner{}).Run(context.Background(), Spec{Command: "echo boom >&2; exit 3"})

	require.ErrorIs(t, err, heralderrors.ErrCommandFailed)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, err.Error(), "exited with code 3: boom")
}

func TestShellRunner_EmptyCommand(t *testing.T) {
	_, err := (&ShellRunner{}).Run(context.Background(), Spec{Command: "  "})
	require.ErrorIs(t, err, heralderrors.ErrEmptyValue)
}

func TestShellRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&ShellRunner{}).Run(ctx, Spec{Command: "sleep 5"})
	require.ErrorIs(t, err, heralderrors.ErrCommandFailed)
}

func TestEnvList_Sorted(t *testing.T) {
	assert.Equal(t, []string{"A=1", "B=2"}, envList(map[string]string{"B": "2", "A": "1"}))
}
