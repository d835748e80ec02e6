// Package retry provides the bounded retry policy applied to every call the
// assistant makes to the maps provider and the language model.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/imkonsowa/restaurants-assistant/config"
)

const (
	DefaultAttempts = 5
	DefaultDelay    = time.Second
)

type Policy struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int
	Delay    time.Duration
	// Exponential grows the delay between tries instead of keeping it fixed.
	Exponential bool
}

func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, Delay: DefaultDelay}
}

// FromConfig falls back to the defaults for unset values.
func FromConfig(cfg config.Retry) Policy {
	p := Policy{
		Attempts:    cfg.Attempts,
		Delay:       cfg.Delay,
		Exponential: cfg.Backoff == "exponential",
	}
	if p.Attempts < 1 {
		p.Attempts = DefaultAttempts
	}
	if p.Delay <= 0 {
		p.Delay = DefaultDelay
	}

	return p
}

// Permanent marks err as not worth retrying. Do returns the unwrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff
	if p.Exponential {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.Delay
		eb.MaxElapsedTime = 0
		b = eb
	} else {
		b = backoff.NewConstantBackOff(p.Delay)
	}

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do runs op until it succeeds, returns a permanent error, the attempts are
// used up or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, name string, op func() error) error {
	attempt := 0
	err := backoff.RetryNotify(
		func() error {
			attempt++
			return op()
		},
		p.backOff(ctx),
		func(err error, wait time.Duration) {
			slog.Warn("retrying failed call", "call", name, "attempt", attempt, "wait", wait, "err", err)
		},
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}

	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, name string, op func() (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, name, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	})

	return out, err
}
