// Package tui renders herald's terminal output: styled messages, the run
// summary table and the manual checkout prompt.
//
// All colors use AdaptiveColor for light/dark terminal support. Call
// CheckNoColor at the start of commands to honor NO_COLOR and TERM=dumb.
package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mrz1836/herald/internal/constants"
)

//nolint:gochecknoglobals // styling API
var (
	// ColorPrimary is used for links and informational output.
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}

	// ColorSuccess marks successful runs and steps.
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}

	// ColorWarning marks partial failures and skipped steps.
	ColorWarning = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}

	// ColorError marks failed runs and steps.
	ColorError = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}

	// ColorMuted is used for secondary text and steps that never ran.
	ColorMuted = lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}

	// StyleBold applies bold formatting.
	StyleBold = lipgloss.NewStyle().Bold(true)

	// StyleDim applies faint formatting.
	StyleDim = lipgloss.NewStyle().Faint(true)
)

// OutputStyles holds message styles.
type OutputStyles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Dim     lipgloss.Style
}

// NewOutputStyles creates the message styles.
func NewOutputStyles() *OutputStyles {
	return &OutputStyles{
		Success: lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(ColorError).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(ColorWarning),
		Info:    lipgloss.NewStyle().Foreground(ColorPrimary),
		Dim:     lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// CheckNoColor switches lipgloss to plain ASCII when colors are unwanted.
func CheckNoColor() {
	if !HasColorSupport() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// HasColorSupport returns false when NO_COLOR is present (any value,
// see https://no-color.org/) or TERM=dumb.
func HasColorSupport() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// RunStatusColor returns the color for a run status.
func RunStatusColor(status constants.RunStatus) lipgloss.AdaptiveColor {
	switch status {
	case constants.RunStatusSuccess:
		return ColorSuccess
	case constants.RunStatusPartialFailure:
		return ColorWarning
	case constants.RunStatusFailed:
		return ColorError
	default:
		return ColorPrimary
	}
}

// StepStatusColor returns the color for a step status.
func StepStatusColor(status constants.StepStatus) lipgloss.AdaptiveColor {
	switch status {
	case constants.StepStatusSuccess:
		return ColorSuccess
	case constants.StepStatusFailed:
		return ColorError
	case constants.StepStatusSkipped:
		return ColorWarning
	default:
		return ColorMuted
	}
}

// StepStatusIcon returns the icon shown next to a step status. Icon, color
// and label are always rendered together so output stays readable without color.
func StepStatusIcon(status constants.StepStatus) string {
	switch status {
	case constants.StepStatusSuccess:
		return "✓"
	case constants.StepStatusFailed:
		return "✗"
	case constants.StepStatusSkipped:
		return "↷"
	case constants.StepStatusNotRun:
		return "○"
	default:
		return "?"
	}
}

// RunStatusIcon returns the icon for a run status.
func RunStatusIcon(status constants.RunStatus) string {
	switch status {
	case constants.RunStatusSuccess:
		return "✓"
	case constants.RunStatusPartialFailure:
		return "⚠"
	case constants.RunStatusFailed:
		return "✗"
	default:
		return "●"
	}
}

// StatusLabel turns a snake_case status into a title-cased label
// ("partial_failure" becomes "Partial Failure").
func StatusLabel[S ~string](status S) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(status), "_", " "))
}
