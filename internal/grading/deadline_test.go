package grading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemaining(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	deadline := Deadline(start, 30*time.Minute)

	assert.Equal(t, 30*time.Minute, Remaining(deadline, start))
	assert.Equal(t, 5*time.Minute, Remaining(deadline, start.Add(25*time.Minute)))
	assert.Equal(t, time.Duration(0), Remaining(deadline, start.Add(31*time.Minute)))
}

func TestIsLate(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	limit, grace := 10*time.Minute, 30*time.Second

	assert.False(t, IsLate(start, start.Add(10*time.Minute), limit, grace))
	assert.False(t, IsLate(start, start.Add(10*time.Minute+30*time.Second), limit, grace))
	assert.True(t, IsLate(start, start.Add(10*time.Minute+31*time.Second), limit, grace))
}

func TestExpired(t *testing.T) {
	deadline := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.False(t, Expired(deadline, deadline.Add(10*time.Second), 30*time.Second))
	assert.True(t, Expired(deadline, deadline.Add(31*time.Second), 30*time.Second))
}
