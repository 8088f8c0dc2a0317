package clock_test

import (
	"testing"
	"time"

	"github.com/pilab-dev/planauth/clock"
	"github.com/stretchr/testify/assert"
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := clock.Fake(start)

	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())

	later := start.Add(24 * time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestRealClockMovesForward(t *testing.T) {
	c := clock.Real()
	first := c.Now()
	assert.False(t, c.Now().Before(first))
}
