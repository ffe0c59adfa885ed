// Package main provides the entry point for the herald CLI.
package main

import (
	"context"
	"os"

	"github.com/mrz1836/herald/internal/cli"
)

// Set via ldflags.
//
//nolint:gochecknoglobals // build metadata
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx := context.Background()
	err := cli.Execute(ctx, cli.BuildInfo{Version: version, Commit: commit, Date: date})
	os.Exit(cli.ExitCodeForError(err))
}
