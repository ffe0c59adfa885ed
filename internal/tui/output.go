package tui

import (
	"encoding/json"
	"fmt"
	"io"

	heralderrors "github.com/mrz1836/herald/internal/errors"
)

// Output provides methods for structured output to a terminal.
type Output interface {
	// Success prints a success message.
	Success(msg string)
	// Error prints an error message with its suggested action, if any.
	Error(err error)
	// Warning prints a warning message.
	Warning(msg string)
	// Info prints an informational message.
	Info(msg string)
	// URL prints a labelled link.
	URL(label, url string)
	// JSON outputs a value as formatted JSON.
	JSON(v any) error
}

// NewOutput creates the appropriate output for format. Any format other
// than "json" gets styled terminal output.
func NewOutput(w io.Writer, format string) Output {
	if format == "json" {
		return NewJSONOutput(w)
	}
	return NewTTYOutput(w)
}

// TTYOutput provides styled output for terminal displays.
type TTYOutput struct {
	w      io.Writer
	styles *OutputStyles
}

// NewTTYOutput creates a TTYOutput. It honors NO_COLOR.
func NewTTYOutput(w io.Writer) *TTYOutput {
	CheckNoColor()
	return &TTYOutput{w: w, styles: NewOutputStyles()}
}

// Success prints a success message.
func (o *TTYOutput) Success(msg string) {
	_, _ = fmt.Fprintln(o.w, o.styles.Success.Render("✓ "+msg))
}

// Error prints err followed by a dim "Try:" line when the error catalog
// knows what the user can do about it.
func (o *TTYOutput) Error(err error) {
	_, _ = fmt.Fprintln(o.w, o.styles.Error.Render("✗ "+err.Error()))
	if _, action := heralderrors.Actionable(err); action != "" {
		_, _ = fmt.Fprintln(o.w, o.styles.Dim.Render("  ▸ Try: "+action))
	}
}

// Warning prints a warning message.
func (o *TTYOutput) Warning(msg string) {
	_, _ = fmt.Fprintln(o.w, o.styles.Warning.Render("⚠ "+msg))
}

// Info prints an informational message.
func (o *TTYOutput) Info(msg string) {
	_, _ = fmt.Fprintln(o.w, o.styles.Info.Render(msg))
}

// URL prints a labelled link.
func (o *TTYOutput) URL(label, url string) {
	_, _ = fmt.Fprintf(o.w, "  %s %s\n", o.styles.Dim.Render(label+":"), url)
}

// JSON outputs a value as formatted JSON.
func (o *TTYOutput) JSON(v any) error {
	return encodeJSON(o.w, v)
}

// JSONOutput emits one JSON object per message for non-interactive callers.
type JSONOutput struct {
	w io.Writer
}

// NewJSONOutput creates a JSONOutput.
func NewJSONOutput(w io.Writer) *JSONOutput {
	return &JSONOutput{w: w}
}

type jsonMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	URL     string `json:"url,omitempty"`
}

func (o *JSONOutput) emit(m jsonMessage) {
	//nolint:errchkjson // Output methods have no error return
	_ = json.NewEncoder(o.w).Encode(m)
}

// Success outputs {"type":"success",...}.
func (o *JSONOutput) Success(msg string) { o.emit(jsonMessage{Type: "success", Message: msg}) }

// Error outputs {"type":"error",...} with the suggested action.
func (o *JSONOutput) Error(err error) {
	_, action := heralderrors.Actionable(err)
	o.emit(jsonMessage{Type: "error", Message: err.Error(), Action: action})
}

// Warning outputs {"type":"warning",...}.
func (o *JSONOutput) Warning(msg string) { o.emit(jsonMessage{Type: "warning", Message: msg}) }

// Info outputs {"type":"info",...}.
func (o *JSONOutput) Info(msg string) { o.emit(jsonMessage{Type: "info", Message: msg}) }

// URL outputs {"type":"url",...}.
func (o *JSONOutput) URL(label, url string) {
	o.emit(jsonMessage{Type: "url", Message: label, URL: url})
}

// JSON outputs a value as formatted JSON.
func (o *JSONOutput) JSON(v any) error {
	return encodeJSON(o.w, v)
}

func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
