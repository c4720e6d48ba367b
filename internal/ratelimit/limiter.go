package ratelimit

import (
	"context"
	"time"
)

// Limiter spaces calls to an external channel by a fixed minimum interval.
//
// The next free slot travels through a one-element channel, so concurrent callers take
// it strictly one after another and each reservation starts from the time left behind
// by the previous one.
type Limiter struct {
	minInterval time.Duration
	slot        chan time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter whose first call proceeds immediately.
func New(minInterval time.Duration) *Limiter {
	l := &Limiter{
		minInterval: minInterval,
		slot:        make(chan time.Time, 1),
		now:         time.Now,
		sleep:       sleepCtx,
	}
	l.slot <- time.Time{}
	return l
}

// MinInterval returns the configured spacing.
func (l *Limiter) MinInterval() time.Duration {
	return l.minInterval
}

// Wait blocks until the caller's reserved slot is reached. A reservation is kept even if
// ctx is cancelled while sleeping, so later callers never move ahead of it.
func (l *Limiter) Wait(ctx context.Context) error {
	var next time.Time
	select {
	case next = <-l.slot:
	case <-ctx.Done():
		return ctx.Err()
	}

	now := l.now()
	delay := next.Sub(now)
	if delay < 0 {
		delay = 0
	}
	l.slot <- now.Add(delay + l.minInterval)

	if delay == 0 {
		return nil
	}
	return l.sleep(ctx, delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
