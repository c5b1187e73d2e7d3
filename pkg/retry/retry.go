// Package retry runs carrier operations with a bounded number of attempts
// and a linearly growing pause between them.
package retry

import (
	"context"
	"time"
)

const (
	DefaultAttempts       = 3
	DefaultBaseDelay      = time.Second
	DefaultAttemptTimeout = 15 * time.Second
)

// Policy controls how an operation is retried. The zero value is usable and
// falls back to the defaults above.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// BaseDelay is multiplied by the attempt number to get the pause after
	// a failed attempt: BaseDelay, 2*BaseDelay, ...
	BaseDelay time.Duration
	// AttemptTimeout bounds each individual attempt. Zero disables it.
	AttemptTimeout time.Duration
	// Retryable reports whether a failed attempt may be repeated. Nil
	// retries every error.
	Retryable func(error) bool
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each pause.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Default returns the standard policy: three attempts, one second base delay.
func Default() Policy {
	return Policy{
		Attempts:       DefaultAttempts,
		BaseDelay:      DefaultBaseDelay,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// Delay returns the pause after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return base * time.Duration(attempt)
}

func (p Policy) attempts() int {
	if p.Attempts <= 0 {
		return DefaultAttempts
	}
	return p.Attempts
}

// Do runs op until it succeeds, the attempts are exhausted, the error is not
// retryable or ctx is done. The error of the last attempt is returned
// unchanged.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero T
		err  error
	)
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	n := p.attempts()
	for attempt := 1; attempt <= n; attempt++ {
		var v T
		v, err = runAttempt(ctx, p.AttemptTimeout, op)
		if err == nil {
			return v, nil
		}
		if attempt == n || ctx.Err() != nil {
			break
		}
		if p.Retryable != nil && !p.Retryable(err) {
			break
		}
		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			break
		}
	}
	return zero, err
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(ctx)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
