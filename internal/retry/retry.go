// Package retry wraps every external adapter call: one retry on a transient
// failure (network error, 5xx, call timeout) after a fixed backoff, no retry on
// 4xx or authentication failures, and a hard timeout per call. No other
// package retries.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mrz1836/herald/internal/constants"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/tracing"
)

// Policy configures the wrapper.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	// Backoff is the fixed wait before a retry.
	Backoff time.Duration
	// CallTimeout bounds each individual call.
	CallTimeout time.Duration
}

// DefaultPolicy returns one call plus a single retry.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: constants.MaxAdapterAttempts,
		Backoff:     constants.DefaultRetryBackoff,
		CallTimeout: constants.DefaultCallTimeout,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = constants.MaxAdapterAttempts
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = constants.DefaultCallTimeout
	}
	return p
}

// StepBudget is the wall-clock bound for a step making calls sequential
// calls under the policy, each with every attempt and backoff exhausted.
func (p Policy) StepBudget(calls int) time.Duration {
	p = p.normalized()
	calls = max(calls, 1)
	perCall := time.Duration(p.MaxAttempts)*p.CallTimeout + time.Duration(p.MaxAttempts-1)*p.Backoff
	return time.Duration(calls) * perCall
}

// Operation is a single retryable call.
type Operation[R any] interface {
	// Attempt performs one call.
	Attempt(ctx context.Context, attempt int) (R, error)

	// ShouldRetry reports whether a failed attempt may be repeated.
	ShouldRetry(err error) bool

	// OnRetryWait is called before waiting for the next attempt.
	OnRetryWait(attempt int, delay time.Duration, err error)
}

// Execute runs op under the policy with a fixed backoff between attempts.
// It returns the result, the number of attempts made and the last error.
func Execute[R any](ctx context.Context, p Policy, op Operation[R]) (result R, attempts int, finalErr error) {
	p = p.normalized()

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		attempts = attempt

		res, err := op.Attempt(ctx, attempt)
		if err == nil {
			return res, attempts, nil
		}
		result = res
		finalErr = err

		if ctx.Err() != nil || !op.ShouldRetry(err) {
			break
		}

		if attempt < p.MaxAttempts {
			op.OnRetryWait(attempt, p.Backoff, err)

			timer := time.NewTimer(p.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, attempts, finalErr
			case <-timer.C:
			}
		}
	}

	return result, attempts, finalErr
}

// callOperation adapts a plain function to Operation with the per-call
// timeout and the default classification.
type callOperation[R any] struct {
	fn          func(ctx context.Context) (R, error)
	callTimeout time.Duration
	logger      zerolog.Logger
	adapter     string
	op          string
}

func (c *callOperation[R]) Attempt(ctx context.Context, attempt int) (R, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	start := time.Now()
	res, err := c.fn(callCtx)
	c.logger.Debug().
		Str("adapter", c.adapter).
		Str("op", c.op).
		Int("attempt", attempt).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("adapter call finished")

	if err != nil && ctx.Err() == nil && callCtx.Err() == context.DeadlineExceeded {
		return res, &callTimeoutError{after: c.callTimeout, err: err}
	}
	return res, err
}

func (c *callOperation[R]) ShouldRetry(err error) bool {
	return IsTransient(err)
}

func (c *callOperation[R]) OnRetryWait(attempt int, delay time.Duration, err error) {
	c.logger.Warn().
		Str("adapter", c.adapter).
		Str("op", c.op).
		Int("attempt", attempt).
		Dur("backoff", delay).
		Err(err).
		Msg("transient adapter failure, retrying")
}

// Do calls fn under the policy. A final failure is returned as a
// *errors.TimeoutError when the last attempt hit the call timeout, and as an
// *errors.AdapterError otherwise.
func Do[R any](ctx context.Context, p Policy, logger zerolog.Logger, adapter, op string, fn func(ctx context.Context) (R, error)) (res R, err error) {
	p = p.normalized()

	ctx, span := tracing.StartAdapterSpan(ctx, adapter, op)
	defer func() { tracing.EndSpan(span, err) }()

	res, attempts, err := Execute[R](ctx, p, &callOperation[R]{
		fn:          fn,
		callTimeout: p.CallTimeout,
		logger:      logger,
		adapter:     adapter,
		op:          op,
	})
	span.SetAttributes(attribute.Int(tracing.AttrAttempt, attempts))
	if code := StatusCode(err); code != 0 {
		span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, code))
	}
	if err == nil {
		return res, nil
	}

	var timeout *callTimeoutError
	if heralderrors.As(err, &timeout) {
		return res, &heralderrors.TimeoutError{Op: adapter + " " + op, After: timeout.after}
	}
	return res, &heralderrors.AdapterError{
		Adapter:    adapter,
		Op:         op,
		StatusCode: StatusCode(err),
		Attempts:   attempts,
		Err:        err,
	}
}

// Run is Do for calls without a result.
func Run(ctx context.Context, p Policy, logger zerolog.Logger, adapter, op string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, p, logger, adapter, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
