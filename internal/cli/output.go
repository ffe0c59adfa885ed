package cli

import (
	"io"
	"os"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// markdownWidth is the wrap width for rendered markdown.
const markdownWidth = 100

// writeYAML encodes v as YAML with two-space indentation.
func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// isTerminal reports whether w is a terminal, which enables styled markdown.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}
