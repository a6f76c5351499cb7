// Package wait polls a condition with exponential backoff until it holds.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTimeout is returned when a condition does not hold before the policy
// gives up.
var ErrTimeout = errors.New("wait: timed out")

// Default policy values.
const (
	DefaultInitial = 2 * time.Second
	DefaultMax     = 15 * time.Second
	DefaultTimeout = 3 * time.Minute
)

// Policy bounds a polling loop. Zero fields take the defaults; MaxAttempts of
// zero means attempts are bounded only by Timeout.
type Policy struct {
	Initial     time.Duration
	Max         time.Duration
	Timeout     time.Duration
	MaxAttempts uint64
}

// DefaultPolicy returns the policy used when callers do not supply one.
func DefaultPolicy() Policy {
	return Policy{Initial: DefaultInitial, Max: DefaultMax, Timeout: DefaultTimeout}
}

func (p Policy) withDefaults() Policy {
	if p.Initial <= 0 {
		p.Initial = DefaultInitial
	}
	if p.Max <= 0 {
		p.Max = DefaultMax
	}
	if p.Max < p.Initial {
		p.Max = p.Initial
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	return p
}

// Condition reports whether the awaited state has been reached. Returning a
// Permanent error stops polling immediately; other errors are retried.
type Condition func(ctx context.Context) (bool, error)

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

var errNotYet = errors.New("condition not met")

// Until polls cond under policy p. It returns nil once cond is true,
// ErrTimeout (wrapping the last error seen) when the policy is exhausted, the
// unwrapped permanent error, or the context error.
func Until(ctx context.Context, p Policy, cond Condition) error {
	p = p.withDefaults()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.Initial
	eb.MaxInterval = p.Max
	eb.MaxElapsedTime = p.Timeout

	var b backoff.BackOff = eb
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, p.MaxAttempts-1)
	}
	b = backoff.WithContext(b, ctx)

	var (
		lastErr   error
		permanent bool
		attempts  int
	)
	op := func() error {
		attempts++
		ok, err := cond(ctx)
		if err != nil {
			var perm *backoff.PermanentError
			permanent = errors.As(err, &perm)
			lastErr = err
			return err
		}
		if !ok {
			lastErr = errNotYet
			return errNotYet
		}
		return nil
	}

	err := backoff.Retry(op, b)
	if err == nil {
		return nil
	}
	if permanent {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if lastErr == nil {
		lastErr = err
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrTimeout, attempts, lastErr)
}
