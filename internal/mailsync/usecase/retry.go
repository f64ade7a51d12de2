package usecase

import (
	"context"
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
)

// RetryPolicy bounds every provider call: CallTimeout per attempt and
// exponential backoff between attempts. Only retryable provider errors are
// retried.
type RetryPolicy struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Factor      float64
	CallTimeout time.Duration

	// OnRetry is called before sleeping for the next attempt.
	OnRetry func(op string, attempt int, wait time.Duration, err error)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		MinDelay:    500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Factor:      2,
		CallTimeout: 30 * time.Second,
	}
}

func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	factor := p.Factor
	if factor < 1 {
		factor = 2
	}
	b := &backoff.Backoff{
		Min:    p.MinDelay,
		Max:    p.MaxDelay,
		Factor: factor,
		Jitter: true,
	}

	attempt := 0
	for {
		attempt++
		err := p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !emaildomain.IsRetryable(err) || attempt >= p.MaxAttempts {
			if attempt > 1 {
				return errors.Wrapf(err, "%s: gave up after %d attempts", op, attempt)
			}
			return errors.Wrap(err, op)
		}

		wait := b.Duration()
		if p.OnRetry != nil {
			p.OnRetry(op, attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), op)
		case <-timer.C:
		}
	}
}

func (p RetryPolicy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.CallTimeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.CallTimeout)
	defer cancel()
	return fn(callCtx)
}
