// Package command runs the collaborator commands herald is configured with
// (checkout, environment setup, dependency install, test execution, report
// rendering).
//
// SECURITY NOTE: commands come from the project (.herald/config.yaml) or
// global (~/.herald/config.yaml) configuration and are trusted the same way
// as a Makefile or CI definition. They run through sh -c so pipes and
// redirects work.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	heralderrors "github.com/mrz1836/herald/internal/errors"
)

// Spec describes one command invocation.
type Spec struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Command is the shell command line.
	Command string
	// Env holds extra environment variables layered over the process environment.
	Env map[string]string
	// LiveOut, when set, receives stdout and stderr as they are produced.
	LiveOut io.Writer
}

// Result is the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes shell commands. Tests inject fakes.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// ShellRunner implements Runner with os/exec and sh -c.
type ShellRunner struct{}

// Run executes spec. A non-zero exit is reported as an error wrapping
// ErrCommandFailed, with the captured output still returned.
func (r *ShellRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return Result{}, fmt.Errorf("command %w", heralderrors.ErrEmptyValue)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", spec.Command) //#nosec G204 -- commands come from trusted configuration
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(spec.Env)...)
	}

	var outBuf, errBuf bytes.Buffer
	if spec.LiveOut != nil {
		cmd.Stdout = io.MultiWriter(&outBuf, spec.LiveOut)
		cmd.Stderr = io.MultiWriter(&errBuf, spec.LiveOut)
	} else {
		cmd.Stdout = &outBuf
		cmd.Stderr = &errBuf
	}

	err := cmd.Run()
	res := Result{Stdout: outBuf.String(), Stderr: errBuf.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, fmt.Errorf("%w: %q exited with code %d%s", heralderrors.ErrCommandFailed,
			spec.Command, res.ExitCode, tail(res.Stderr))
	}
	res.ExitCode = -1
	return res, fmt.Errorf("%w: %q: %w", heralderrors.ErrCommandFailed, spec.Command, err)
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// tail returns the last line of stderr for error messages.
func tail(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return ""
	}
	if i := strings.LastIndexByte(stderr, '\n'); i >= 0 {
		stderr = stderr[i+1:]
	}
	return ": " + stderr
}

var _ Runner = (*ShellRunner)(nil)
