package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"syscall"
	"time"
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	HTTPStatus() int
}

// callTimeoutError marks an attempt that exceeded the per-call timeout.
type callTimeoutError struct {
	after time.Duration
	err   error
}

func (e *callTimeoutError) Error() string {
	return fmt.Sprintf("call timed out after %s: %v", e.after, e.err)
}

func (e *callTimeoutError) Unwrap() error { return e.err }

// IsTransient reports whether err may succeed on a retry.
//
// Transient: network failures, connection resets, HTTP 5xx, SMTP 4xx replies
// and per-call timeouts. Everything else, including HTTP 4xx, SMTP 5xx and
// cancellation, is surfaced immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var timeout *callTimeoutError
	if errors.As(err, &timeout) {
		return true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus() >= 500
	}

	var smtpErr *textproto.Error
	if errors.As(err, &smtpErr) {
		return smtpErr.Code >= 400 && smtpErr.Code < 500
	}

	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}
