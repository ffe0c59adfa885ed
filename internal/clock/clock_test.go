package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Now(t *testing.T) {
	before := time.Now()
	got := RealClock{}.Now()
	after := time.Now()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}

func TestFake_Now(t *testing.T) {
	start := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)
	f := NewFake(start, time.Second)

	assert.Equal(t, start, f.Now())
	assert.Equal(t, start.Add(time.Second), f.Now())

	f.Advance(time.Minute)
	assert.Equal(t, start.Add(2*time.Second+time.Minute), f.Now())
}

func TestFake_ZeroStep(t *testing.T) {
	start := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)
	f := NewFake(start, 0)

	assert.Equal(t, start, f.Now())
	assert.Equal(t, start, f.Now())
}
