package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Options configures Do.
type Options struct {
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// ShouldRetry reports whether err is worth another attempt. Nil retries everything.
	ShouldRetry func(err error) bool
	// Logger is optional.
	Logger *zap.Logger
}

// sleep is swapped out in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs op until it succeeds or the retry budget is spent, doubling the delay between
// attempts up to MaxDelay. When retries are exhausted the last error is returned as is,
// so callers can still inspect it with errors.As.
func Do[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	delay := opts.BaseDelay

	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		attempt++
		if opts.ShouldRetry != nil && !opts.ShouldRetry(err) {
			return result, err
		}
		if attempt > opts.Retries {
			return result, err
		}

		if opts.Logger != nil {
			opts.Logger.Warn("Operation failed, retrying...",
				zap.Int("attempt", attempt),
				zap.Duration("retry_after", delay),
				zap.Error(err),
			)
		}

		if serr := sleep(ctx, delay); serr != nil {
			var zero T
			return zero, serr
		}

		delay *= 2
		if opts.MaxDelay > 0 && delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
}
