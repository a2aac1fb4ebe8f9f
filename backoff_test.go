package sio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	b := newBackoff(1*time.Second, 5*time.Second, 0)

	expected := []time.Duration{
		1 * time.Second,
		3 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}
	for _, e := range expected {
		assert.Equal(t, e, b.duration())
	}

	assert.Equal(t, uint32(1), b.increment())
	assert.Equal(t, uint32(2), b.increment())

	b.reset()
	if !assert.Equal(t, uint32(0), b.attempts()) {
		return
	}

	d := b.duration()
	if !assert.Equal(t, 1*time.Second, d) {
		return
	}
}

func TestBackoffWithJitter(t *testing.T) {
	b := newBackoff(1*time.Second, 50*time.Second, 0.5)

	t.Run("lowest", func(t *testing.T) {
		b.reset()
		b.random = func() float64 { return 0 }
		b.duration()
		// 1s + 2s*(1-0.5)
		assert.Equal(t, 2*time.Second, b.duration())
	})

	t.Run("highest", func(t *testing.T) {
		b.reset()
		b.random = func() float64 { return 0.999999999 }
		b.duration()
		assert.InDelta(t, float64(4*time.Second), float64(b.duration()), float64(time.Millisecond))
	})

	t.Run("monotonic", func(t *testing.T) {
		b.reset()
		b.random = newBackoff(0, 0, 0).random
		testBackoffDuration(t, b)
	})
}

func TestBackoffInvalidFactor(t *testing.T) {
	b := newBackoff(1*time.Second, 5*time.Second, 1.5)
	assert.Equal(t, float64(0), b.factor)
}

func testBackoffDuration(t *testing.T, b *backoff) {
	var last time.Duration
	for i := 0; i < 1000; i++ {
		d := b.duration()
		if d < last {
			t.Fatalf("d should be higher than the last value: d: %d, last: %d", d.Milliseconds(), last.Milliseconds())
		}
		if d > b.max {
			t.Fatalf("d exceeded the maximum: d: %d", d.Milliseconds())
		}
		last = d
	}
}
