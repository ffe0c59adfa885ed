package mail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrz1836/herald/internal/domain"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/report"
	"github.com/mrz1836/herald/internal/retry"
)

const adapterName = "email"

// Config holds the notification envelope settings. Recipient lists accept
// addresses separated by commas or semicolons.
type Config struct {
	From  string
	To    string
	Cc    string
	Bcc   string
	Title string
}

// Notification describes one report version to announce.
type Notification struct {
	Version       string
	Summary       domain.TestSummary
	PDFPath       string
	ConfluenceURL string
	IssueKey      string
	IssueURL      string
}

// Subject returns "<status> Test Result (v<N>)".
func Subject(status, version string) string {
	return fmt.Sprintf("%s Test Result (v%s)", status, version)
}

// Notifier composes report notifications and hands them to a Sender.
type Notifier struct {
	cfg    Config
	sender Sender
	policy retry.Policy
	logger zerolog.Logger
}

// NewNotifier returns a notifier delivering through sender.
func NewNotifier(cfg Config, sender Sender, policy retry.Policy, logger zerolog.Logger) *Notifier {
	if cfg.Title == "" {
		cfg.Title = report.DefaultTitle
	}
	return &Notifier{
		cfg:    cfg,
		sender: sender,
		policy: policy,
		logger: logger.With().Str("adapter", adapterName).Logger(),
	}
}

// Compose builds the message for note without sending it.
func (n *Notifier) Compose(note Notification) (*Message, error) {
	to := ParseRecipients(n.cfg.To)
	if len(to) == 0 {
		return nil, fmt.Errorf("%w: email.to has no recipients", heralderrors.ErrConfigInvalidAdapter)
	}
	if n.cfg.From == "" {
		return nil, fmt.Errorf("%w: email.from is empty", heralderrors.ErrConfigInvalidAdapter)
	}

	md := report.SummaryMarkdown(n.cfg.Title, note.Version, note.Summary, report.Links{
		ConfluenceURL: note.ConfluenceURL,
		IssueKey:      note.IssueKey,
		IssueURL:      note.IssueURL,
	})
	html, err := report.MarkdownToHTML(md)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		From:    n.cfg.From,
		To:      to,
		Cc:      ParseRecipients(n.cfg.Cc),
		Bcc:     ParseRecipients(n.cfg.Bcc),
		Subject: Subject(note.Summary.Status(), note.Version),
		Text:    plainText(n.cfg.Title, note),
		HTML:    html,
	}

	if note.PDFPath != "" {
		data, err := os.ReadFile(note.PDFPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read PDF report: %w", err)
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    filepath.Base(note.PDFPath),
			ContentType: "application/pdf",
			Data:        data,
		})
	}
	return msg, nil
}

// Notify composes and sends the notification, retrying once on a transient
// SMTP failure.
func (n *Notifier) Notify(ctx context.Context, note Notification) (*Message, error) {
	msg, err := n.Compose(note)
	if err != nil {
		return nil, err
	}
	err = retry.Run(ctx, n.policy, n.logger, adapterName, "send", func(ctx context.Context) error {
		return n.sender.Send(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info().
		Str("subject", msg.Subject).
		Int("recipients", len(msg.Recipients())).
		Msg("report email sent")
	return msg, nil
}

func plainText(title string, note Notification) string {
	s := note.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%s\n\n", title, note.Version)
	fmt.Fprintf(&b, "Overall status: %s\n", s.Status())
	fmt.Fprintf(&b, "Total: %d  Passed: %d  Failed: %d  Errors: %d  Skipped: %d\n",
		s.Total, s.Passed, s.Failed, s.Errors, s.Skipped)
	fmt.Fprintf(&b, "Pass rate: %.1f%%\n", s.PassRate())
	if note.ConfluenceURL != "" {
		fmt.Fprintf(&b, "\nFull report: %s\n", note.ConfluenceURL)
	}
	if note.IssueURL != "" {
		fmt.Fprintf(&b, "Test execution %s: %s\n", note.IssueKey, note.IssueURL)
	}
	return b.String()
}
