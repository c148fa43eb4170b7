package service

import (
	"context"
	"time"
)

// Backoff retries a call with a linearly growing delay: base, 2*base, ...
type Backoff struct {
	base       time.Duration
	maxRetries int
}

func NewBackoff(base time.Duration, maxRetries int) Backoff {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return Backoff{base: base, maxRetries: maxRetries}
}

// Do calls fn until it succeeds, retries are exhausted, or ctx is done.
// fn receives the attempt number starting at 0.
func (b Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	var err error
	for i := 0; i <= b.maxRetries; i++ {
		if err = fn(i); err == nil {
			return nil
		}
		if ctx.Err() != nil || i == b.maxRetries {
			break
		}
		t := time.NewTimer(b.Delay(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Delay is the wait after the given failed attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	return time.Duration(attempt+1) * b.base
}
