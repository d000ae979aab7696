package poller

import (
	"context"
	"errors"
	"time"
)

var ErrExhausted = errors.New("poll budget exhausted")

// Policy is a fixed-interval, fixed-budget schedule. The first attempt runs
// immediately; later attempts wait Interval. No backoff, no jitter.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int

	// After replaces time.After in tests.
	After func(time.Duration) <-chan time.Time
}

// Func is one poll attempt. Returning done stops the poll. A non-nil error
// aborts it; transient errors should be swallowed by Func and reported as
// not done.
type Func func(ctx context.Context, attempt int) (done bool, err error)

// Run calls fn until it reports done, returns an error, the budget runs out
// or ctx ends. It returns the number of attempts made.
func (p Policy) Run(ctx context.Context, fn Func) (int, error) {
	after := p.After
	if after == nil {
		after = time.After
	}

	attempt := 0
	for attempt < p.MaxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return attempt, ctx.Err()
			case <-after(p.Interval):
			}
		}
		if err := ctx.Err(); err != nil {
			return attempt, err
		}

		attempt++
		done, err := fn(ctx, attempt)
		if err != nil {
			return attempt, err
		}
		if done {
			return attempt, nil
		}
	}
	return attempt, ErrExhausted
}
