package tui

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	heralderrors "github.com/mrz1836/herald/internal/errors"
)

// CheckoutGate asks the operator to confirm that the workspace is checked
// out before the pipeline continues.
type CheckoutGate struct {
	// AssumeYes confirms without prompting (--yes).
	AssumeYes bool

	// Interactive reports whether a prompt can be shown. Defaults to
	// checking that stdin is a terminal.
	Interactive func() bool

	// Prompt asks a yes/no question. Defaults to a huh confirm form.
	Prompt func(ctx context.Context, title, description string) (bool, error)
}

// Confirm returns nil when the checkout is confirmed, ErrCheckoutNotConfirmed
// when the operator declines or aborts, and ErrInteractiveRequired when no
// terminal is available and AssumeYes is unset.
func (g *CheckoutGate) Confirm(ctx context.Context) error {
	if g.AssumeYes {
		return nil
	}

	interactive := g.Interactive
	if interactive == nil {
		interactive = stdinIsTerminal
	}
	if !interactive() {
		return fmt.Errorf("manual checkout needs confirmation, pass --yes: %w", heralderrors.ErrInteractiveRequired)
	}

	prompt := g.Prompt
	if prompt == nil {
		prompt = confirmForm
	}
	ok, err := prompt(ctx, "Has the code under test been checked out?",
		"Manual checkout is enabled. The pipeline continues with environment setup.")
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return heralderrors.ErrCheckoutNotConfirmed
		}
		return fmt.Errorf("checkout prompt failed: %w", err)
	}
	if !ok {
		return heralderrors.ErrCheckoutNotConfirmed
	}
	return nil
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int
}

func confirmForm(ctx context.Context, title, description string) (bool, error) {
	CheckNoColor()
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes, continue").
				Negative("No, stop").
				Value(&confirmed),
		),
	).WithTheme(Theme())

	if err := form.RunWithContext(ctx); err != nil {
		return false, err
	}
	return confirmed, nil
}

// Theme returns the huh theme in herald's colors.
func Theme() *huh.Theme {
	t := huh.ThemeBase()
	t.Focused.Base = t.Focused.Base.BorderForeground(ColorPrimary)
	t.Focused.Title = t.Focused.Title.Foreground(ColorPrimary)
	t.Focused.Description = t.Focused.Description.Foreground(ColorMuted)
	t.Focused.FocusedButton = t.Focused.FocusedButton.Background(ColorPrimary)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(ColorError)
	t.Blurred.Base = t.Blurred.Base.BorderForeground(ColorMuted)
	t.Blurred.Title = t.Blurred.Title.Foreground(ColorMuted)
	return t
}
