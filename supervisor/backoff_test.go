package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesUpToMax(t *testing.T) {
	b := NewBackoff(time.Second, 10*time.Second)

	var got []time.Duration
	for i := 0; i < 6; i++ {
		got = append(got, b.Next())
	}
	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}, got)
}

func TestBackoffIsMonotonic(t *testing.T) {
	b := NewBackoff(3*time.Millisecond, time.Minute)
	prev := b.Next()
	for i := 0; i < 100; i++ {
		d := b.Next()
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, time.Minute)
		prev = d
	}
	assert.Equal(t, time.Minute, prev)
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute)
	b.Next()
	b.Next()
	b.Reset()
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoffClampsBadBounds(t *testing.T) {
	b := NewBackoff(5*time.Second, time.Second)
	assert.Equal(t, 5*time.Second, b.Next())
	assert.Equal(t, 5*time.Second, b.Next())

	b = NewBackoff(0, 0)
	assert.Equal(t, time.Second, b.Next())
}
