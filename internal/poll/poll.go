// Package poll provides the deadline-bounded retry loop used for approval
// waits and order-fill waits.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrDeadline is returned by Until when the deadline passes before fn
// reports done.
var ErrDeadline = errors.New("poll: deadline reached")

// Func is one poll attempt. It returns done=true to stop polling.
type Func func(ctx context.Context) (done bool, err error)

// Until runs fn immediately and then every interval. It stops when fn is
// done or fails, when ctx is cancelled, or after the last attempt at or past
// deadline, in which case it returns ErrDeadline.
func Until(ctx context.Context, deadline time.Time, interval time.Duration, fn Func) error {
	if interval <= 0 {
		interval = time.Second
	}

	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrDeadline
		}

		wait := interval
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
