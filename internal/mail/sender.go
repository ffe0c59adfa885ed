package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/rs/zerolog"

	heralderrors "github.com/mrz1836/herald/internal/errors"
)

// Sender delivers an encoded message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	// InsecureSkipVerify disables certificate checks after STARTTLS.
	InsecureSkipVerify bool
	// HelloName is sent with EHLO. Defaults to "localhost".
	HelloName string
}

// SMTPSender sends mail through an SMTP relay. It upgrades to TLS when the
// server offers STARTTLS and authenticates when credentials are configured
// and the server advertises AUTH.
type SMTPSender struct {
	cfg    SMTPConfig
	logger zerolog.Logger
}

// NewSMTPSender returns a sender for cfg.
func NewSMTPSender(cfg SMTPConfig, logger zerolog.Logger) *SMTPSender {
	if cfg.HelloName == "" {
		cfg.HelloName = "localhost"
	}
	return &SMTPSender{cfg: cfg, logger: logger}
}

// Send delivers msg to every recipient in one SMTP transaction. A failed
// AUTH exchange is logged and the message is sent again without credentials
// on a fresh session, since net/smtp ends the session when AUTH fails.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	rcpts := msg.Recipients()
	if len(rcpts) == 0 {
		return fmt.Errorf("%w: no recipients", heralderrors.ErrEmptyValue)
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	err = s.deliver(ctx, msg.From, rcpts, data, s.cfg.User != "")
	if errors.Is(err, errAuthFailed) {
		s.logger.Warn().Err(err).Str("user", s.cfg.User).Msg("SMTP authentication failed, sending unauthenticated")
		err = s.deliver(ctx, msg.From, rcpts, data, false)
	}
	return err
}

var errAuthFailed = errors.New("smtp auth failed")

func (s *SMTPSender) deliver(ctx context.Context, from string, rcpts []string, data []byte, withAuth bool) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to start SMTP session: %w", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Hello(s.cfg.HelloName); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if ok, _ := c.Extension("STARTTLS"); ok {
		tlsCfg := &tls.Config{
			ServerName:         s.cfg.Host,
			InsecureSkipVerify: s.cfg.InsecureSkipVerify, //nolint:gosec // opt-in for internal relays
			MinVersion:         tls.VersionTLS12,
		}
		if err := c.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if withAuth {
		if ok, _ := c.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("%w: %w", errAuthFailed, err)
			}
		} else {
			s.logger.Debug().Msg("SMTP server does not advertise AUTH, sending unauthenticated")
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM rejected: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s rejected: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA rejected: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("message rejected: %w", err)
	}
	return c.Quit()
}
