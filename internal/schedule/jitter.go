package schedule

import (
	"math/rand/v2"
	"time"
)

const (
	// DefaultVariance is the jitter fraction applied around the loop interval.
	DefaultVariance = 0.15
	// MinDelay is the floor for every computed sleep.
	MinDelay = time.Second
)

// NextDelay returns base shifted by a uniform random fraction in [-variance, +variance] of
// base, never less than MinDelay.
func NextDelay(base time.Duration, variance float64) time.Duration {
	return nextDelay(base, variance, rand.Float64)
}

func nextDelay(base time.Duration, variance float64, unit func() float64) time.Duration {
	delta := float64(base) * variance
	jitter := (unit()*2 - 1) * delta
	d := time.Duration(float64(base) + jitter).Truncate(time.Millisecond)
	if d < MinDelay {
		return MinDelay
	}
	return d
}

// Remaining subtracts the time an iteration already took from the planned delay.
func Remaining(delay, elapsed time.Duration) time.Duration {
	d := delay - elapsed
	if d < MinDelay {
		return MinDelay
	}
	return d
}
