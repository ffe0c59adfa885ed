package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/herald/internal/domain"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/retry"
)

type received struct {
	from   string
	rcpts  []string
	data   []byte
	authed bool
}

// fakeSMTP is a minimal ESMTP server speaking just enough of the protocol
// for net/smtp.
type fakeSMTP struct {
	ln            net.Listener
	advertiseAuth bool
	authReply     string
	mailFailures  atomic.Int32

	mu           sync.Mutex
	sessions     int
	authAttempts int
	messages     []received
}

func newFakeSMTP(t *testing.T, configure ...func(*fakeSMTP)) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTP{ln: ln, authReply: "235 2.7.0 accepted"}
	for _, fn := range configure {
		fn(s)
	}
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *fakeSMTP) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTP) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func angle(line string) string {
	start := strings.IndexByte(line, '<')
	end := strings.IndexByte(line, '>')
	if start < 0 || end < start {
		return ""
	}
	return line[start+1 : end]
}

func (s *fakeSMTP) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	tp := textproto.NewConn(conn)

	s.mu.Lock()
	s.sessions++
	s.mu.Unlock()

	_ = tp.PrintfLine("220 fake ESMTP")
	var cur received
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			_ = tp.PrintfLine("500 empty command")
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "EHLO":
			if s.advertiseAuth {
				_ = tp.PrintfLine("250-fake")
				_ = tp.PrintfLine("250 AUTH PLAIN")
			} else {
				_ = tp.PrintfLine("250 fake")
			}
		case "AUTH":
			s.mu.Lock()
			s.authAttempts++
			s.mu.Unlock()
			_ = tp.PrintfLine("%s", s.authReply)
			cur.authed = strings.HasPrefix(s.authReply, "235")
		case "*":
			_ = tp.PrintfLine("501 auth cancelled")
		case "MAIL":
			if s.mailFailures.Add(-1) >= 0 {
				_ = tp.PrintfLine("451 4.3.0 try again later")
				continue
			}
			cur.from = angle(line)
			_ = tp.PrintfLine("250 ok")
		case "RCPT":
			cur.rcpts = append(cur.rcpts, angle(line))
			_ = tp.PrintfLine("250 ok")
		case "DATA":
			_ = tp.PrintfLine("354 go ahead")
			data, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			cur.data = data
			s.mu.Lock()
			s.messages = append(s.messages, cur)
			s.mu.Unlock()
			cur = received{authed: cur.authed}
			_ = tp.PrintfLine("250 queued")
		case "RSET", "NOOP":
			_ = tp.PrintfLine("250 ok")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}

func (s *fakeSMTP) snapshot() (sessions, authAttempts int, messages []received) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions, s.authAttempts, append([]received(nil), s.messages...)
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, Backoff: time.Millisecond, CallTimeout: 5 * time.Second}
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test_result_report_v7.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake report"), 0o600))
	return path
}

func sampleNotification(t *testing.T) Notification {
	t.Helper()
	return Notification{
		Version:       "7",
		Summary:       domain.TestSummary{Total: 10, Passed: 9, Failed: 1},
		PDFPath:       writePDF(t),
		ConfluenceURL: "https://wiki.example.com/spaces/QA/pages/42",
		IssueKey:      "QA-123",
		IssueURL:      "https://jira.example.com/browse/QA-123",
	}
}

func TestParseRecipients(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "a@example.com", []string{"a@example.com"}},
		{"commas", "a@example.com,b@example.com", []string{"a@example.com", "b@example.com"}},
		{"mixed separators", " a@example.com ; b@example.com,c@example.com ", []string{"a@example.com", "b@example.com", "c@example.com"}},
		{"blanks dropped", ";;a@example.com,, ,", []string{"a@example.com"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseRecipients(tc.raw))
		})
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "PASS Test Result (v3)", Subject("PASS", "3"))
	assert.Equal(t, "FAIL Test Result (v12)", Subject("FAIL", "12"))
}

func TestCompose_Structure(t *testing.T) {
	n := NewNotifier(Config{
		From: "qa@example.com",
		To:   "lead@example.com; dev@example.com",
		Cc:   "pm@example.com",
		Bcc:  "audit@example.com",
	}, nil, testPolicy(), zerolog.Nop())

	msg, err := n.Compose(sampleNotification(t))
	require.NoError(t, err)
	assert.Equal(t, "FAIL Test Result (v7)", msg.Subject)
	assert.Equal(t, []string{"lead@example.com", "dev@example.com", "pm@example.com", "audit@example.com"}, msg.Recipients())
	assert.Contains(t, msg.Text, "https://wiki.example.com/spaces/QA/pages/42")
	assert.Contains(t, msg.Text, "https://jira.example.com/browse/QA-123")
	assert.Contains(t, msg.HTML, `href="https://jira.example.com/browse/QA-123"`)

	raw, err := msg.Bytes()
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "FAIL Test Result (v7)", parsed.Header.Get("Subject"))
	assert.Equal(t, "lead@example.com, dev@example.com", parsed.Header.Get("To"))
	assert.Equal(t, "pm@example.com", parsed.Header.Get("Cc"))
	assert.Empty(t, parsed.Header.Get("Bcc"))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])

	alt, err := mr.NextPart()
	require.NoError(t, err)
	altType, altParams, err := mime.ParseMediaType(alt.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", altType)

	var bodyTypes []string
	ar := multipart.NewReader(alt, altParams["boundary"])
	for {
		p, err := ar.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		ct, _, err := mime.ParseMediaType(p.Header.Get("Content-Type"))
		require.NoError(t, err)
		bodyTypes = append(bodyTypes, ct)
	}
	assert.Equal(t, []string{"text/plain", "text/html"}, bodyTypes)

	att, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "test_result_report_v7.pdf", att.FileName())
	encoded, err := io.ReadAll(att)
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake report", string(decoded))

	_, err = mr.NextPart()
	assert.Equal(t, io.EOF, err)
}

func TestCompose_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no to", Config{From: "qa@example.com", To: " ; "}},
		{"no from", Config{To: "lead@example.com"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := NewNotifier(tc.cfg, nil, testPolicy(), zerolog.Nop())
			_, err := n.Compose(sampleNotification(t))
			require.ErrorIs(t, err, heralderrors.ErrConfigInvalidAdapter)
		})
	}
}

func TestCompose_MissingPDF(t *testing.T) {
	n := NewNotifier(Config{From: "qa@example.com", To: "lead@example.com"}, nil, testPolicy(), zerolog.Nop())
	note := sampleNotification(t)
	note.PDFPath = filepath.Join(t.TempDir(), "missing.pdf")

	_, err := n.Compose(note)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read PDF report")
}

func TestNotify_SMTP(t *testing.T) {
	srv := newFakeSMTP(t)
	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: srv.port()}, zerolog.Nop())
	n := NewNotifier(Config{
		From: "qa@example.com",
		To:   "lead@example.com",
		Bcc:  "audit@example.com",
	}, sender, testPolicy(), zerolog.Nop())

	msg, err := n.Notify(context.Background(), sampleNotification(t))
	require.NoError(t, err)
	assert.Equal(t, "FAIL Test Result (v7)", msg.Subject)

	sessions, _, messages := srv.snapshot()
	assert.Equal(t, 1, sessions)
	require.Len(t, messages, 1)
	assert.Equal(t, "qa@example.com", messages[0].from)
	assert.Equal(t, []string{"lead@example.com", "audit@example.com"}, messages[0].rcpts)
	assert.Contains(t, string(messages[0].data), "Subject: FAIL Test Result (v7)")
	assert.NotContains(t, string(messages[0].data), "audit@example.com")
}

func TestNotify_TransientReplyRetried(t *testing.T) {
	srv := newFakeSMTP(t)
	srv.mailFailures.Store(1)
	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: srv.port()}, zerolog.Nop())
	n := NewNotifier(Config{From: "qa@example.com", To: "lead@example.com"}, sender, testPolicy(), zerolog.Nop())

	_, err := n.Notify(context.Background(), sampleNotification(t))
	require.NoError(t, err)

	sessions, _, messages := srv.snapshot()
	assert.Equal(t, 2, sessions)
	assert.Len(t, messages, 1)
}

func TestNotify_PersistentTransientFailure(t *testing.T) {
	srv := newFakeSMTP(t)
	srv.mailFailures.Store(10)
	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: srv.port()}, zerolog.Nop())
	n := NewNotifier(Config{From: "qa@example.com", To: "lead@example.com"}, sender, testPolicy(), zerolog.Nop())

	_, err := n.Notify(context.Background(), sampleNotification(t))
	require.ErrorIs(t, err, heralderrors.ErrAdapter)

	var ae *heralderrors.AdapterError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "email", ae.Adapter)
	assert.Equal(t, 2, ae.Attempts)
}

func TestSMTPSender_Auth(t *testing.T) {
	tests := []struct {
		name         string
		advertise    bool
		authReply    string
		wantSessions int
		wantAttempts int
		wantAuthed   bool
	}{
		{"accepted", true, "235 2.7.0 accepted", 1, 1, true},
		{"rejected falls back to unauthenticated", true, "535 5.7.8 bad credentials", 2, 1, false},
		{"not advertised", false, "", 1, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newFakeSMTP(t, func(s *fakeSMTP) {
				s.advertiseAuth = tc.advertise
				s.authReply = tc.authReply
			})

			sender := NewSMTPSender(SMTPConfig{
				Host:     "127.0.0.1",
				Port:     srv.port(),
				User:     "qa",
				Password: "secret",
			}, zerolog.Nop())

			msg := &Message{From: "qa@example.com", To: []string{"lead@example.com"}, Subject: "s", Text: "hi"}
			require.NoError(t, sender.Send(context.Background(), msg))

			sessions, attempts, messages := srv.snapshot()
			assert.Equal(t, tc.wantSessions, sessions)
			assert.Equal(t, tc.wantAttempts, attempts)
			require.Len(t, messages, 1)
			assert.Equal(t, tc.wantAuthed, messages[0].authed)
		})
	}
}

func TestSMTPSender_NoRecipients(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1}, zerolog.Nop())
	err := sender.Send(context.Background(), &Message{From: "qa@example.com"})
	require.ErrorIs(t, err, heralderrors.ErrEmptyValue)
}

func TestSMTPSender_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: port}, zerolog.Nop())
	err = sender.Send(context.Background(), &Message{From: "a@example.com", To: []string{"b@example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to 127.0.0.1:"+strconv.Itoa(port))
	assert.True(t, retry.IsTransient(err))
}
