package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDelay_StaysWithinBand(t *testing.T) {
	base := 900000 * time.Millisecond
	lo := 765000 * time.Millisecond
	hi := 1035000 * time.Millisecond

	for i := 0; i < 10000; i++ {
		d := NextDelay(base, DefaultVariance)
		if d < lo || d > hi {
			t.Fatalf("sample %d out of range: %s", i, d)
		}
		if d < MinDelay {
			t.Fatalf("sample %d below floor: %s", i, d)
		}
	}
}

func TestNextDelay_Extremes(t *testing.T) {
	base := 10 * time.Second

	assert.Equal(t, 8500*time.Millisecond, nextDelay(base, 0.15, func() float64 { return 0 }))
	assert.Equal(t, 10*time.Second, nextDelay(base, 0.15, func() float64 { return 0.5 }))
	assert.Equal(t, 11500*time.Millisecond, nextDelay(base, 0.15, func() float64 { return 1 }))
}

func TestNextDelay_FloorsTinyIntervals(t *testing.T) {
	assert.Equal(t, MinDelay, NextDelay(0, DefaultVariance))
	assert.Equal(t, MinDelay, nextDelay(500*time.Millisecond, 0.15, func() float64 { return 1 }))
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 14*time.Minute, Remaining(15*time.Minute, time.Minute))
	assert.Equal(t, MinDelay, Remaining(15*time.Minute, 20*time.Minute))
	assert.Equal(t, MinDelay, Remaining(1500*time.Millisecond, time.Second))
}
