package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/herald/internal/constants"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/testutil"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatus() int { return int(s) }

func fastPolicy() Policy {
	return Policy{MaxAttempts: 2, Backoff: time.Millisecond, CallTimeout: time.Second}
}

func TestDo_RetriesOnceOn5xx(t *testing.T) {
	var calls atomic.Int32
	_, err := Do(context.Background(), fastPolicy(), zerolog.Nop(), "confluence", "create page",
		func(context.Context) (string, error) {
			calls.Add(1)
			return "", statusErr(500)
		})

	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load(), "exactly one retry")

	var adapterErr *heralderrors.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, "confluence", adapterErr.Adapter)
	assert.Equal(t, 500, adapterErr.StatusCode)
	assert.Equal(t, 2, adapterErr.Attempts)
}

func TestDo_SucceedsOnRetry(t *testing.T) {
	var calls atomic.Int32
	got, err := Do(context.Background(), fastPolicy(), zerolog.Nop(), "rtm", "upload",
		func(context.Context) (string, error) {
			if calls.Add(1) == 1 {
				return "", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
			}
			return "task-1", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "task-1", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_PlainErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	_, err := Do(context.Background(), fastPolicy(), zerolog.Nop(), "rtm", "upload",
		func(context.Context) (string, error) {
			calls.Add(1)
			return "", testutil.ErrMockAPIError
		})

	require.ErrorIs(t, err, testutil.ErrMockAPIError)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_NoRetryOn4xx(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			var calls atomic.Int32
			err := Run(context.Background(), fastPolicy(), zerolog.Nop(), "jira", "attach",
				func(context.Context) error {
					calls.Add(1)
					return statusErr(code)
				})

			require.ErrorIs(t, err, heralderrors.ErrAdapter)
			assert.Equal(t, int32(1), calls.Load())
			assert.Equal(t, code, StatusCode(err))
		})
	}
}

func TestDo_CallTimeout(t *testing.T) {
	var calls atomic.Int32
	p := Policy{MaxAttempts: 2, Backoff: time.Millisecond, CallTimeout: 20 * time.Millisecond}

	err := Run(context.Background(), p, zerolog.Nop(), "smtp", "send", func(ctx context.Context) error {
		calls.Add(1)
		<-ctx.Done()
		return ctx.Err()
	})

	var timeoutErr *heralderrors.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "smtp send", timeoutErr.Op)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.After)
	assert.ErrorIs(t, err, heralderrors.ErrAdapter)
	assert.Equal(t, int32(2), calls.Load(), "a timed out call is retried once")
}

func TestDo_ParentCancelledStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	err := Run(ctx, Policy{MaxAttempts: 2, Backoff: time.Hour, CallTimeout: time.Second}, zerolog.Nop(), "rtm", "poll",
		func(context.Context) error {
			calls.Add(1)
			cancel()
			return statusErr(503)
		})

	require.ErrorIs(t, err, heralderrors.ErrAdapter)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"500", statusErr(500), true},
		{"503 wrapped", fmt.Errorf("update: %w", statusErr(503)), true},
		{"404", statusErr(404), false},
		{"401", statusErr(401), false},
		{"smtp 421", &textproto.Error{Code: 421, Msg: "try later"}, true},
		{"smtp 535", &textproto.Error{Code: 535, Msg: "auth failed"}, false},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"net op error", &net.OpError{Op: "read", Err: errors.New("broken")}, true},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"call timeout", &callTimeoutError{after: time.Second, err: context.DeadlineExceeded}, true},
		{"plain", errors.New("bad json"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 2, p.MaxAttempts)
	assert.Positive(t, p.Backoff)
	assert.Positive(t, p.CallTimeout)

	n := Policy{}.normalized()
	assert.Equal(t, 2, n.MaxAttempts)
	assert.Positive(t, n.CallTimeout)
}

func TestPolicy_StepBudget(t *testing.T) {
	p := Policy{MaxAttempts: 2, Backoff: 2 * time.Second, CallTimeout: 10 * time.Second}

	tests := []struct {
		name  string
		calls int
		want  time.Duration
	}{
		{"single call", 1, 22 * time.Second},
		{"several calls", 3, 66 * time.Second},
		{"zero counts as one", 0, 22 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.StepBudget(tc.calls))
		})
	}

	assert.Equal(t, 2*constants.DefaultCallTimeout, Policy{}.StepBudget(1))
}
