package sio

import (
	"math/rand"
	"time"

	"github.com/karagenc/socket.io-client-go/internal/sync"
)

// Every wait grows the delay by step * (1 + factor*u) where u is uniform in [-1, 1].
const backoffStep = 2 * time.Second

type backoff struct {
	min    time.Duration
	max    time.Duration
	factor float64

	mu          sync.Mutex
	numAttempts uint32
	delay       time.Duration

	// Uniform in [0, 1). Replaced in tests.
	random func() float64
}

func newBackoff(min time.Duration, max time.Duration, factor float32) *backoff {
	if factor < 0 || factor >= 1 {
		factor = 0
	}
	return &backoff{
		min:    min,
		max:    max,
		factor: float64(factor),
		delay:  min,
		random: rand.Float64,
	}
}

func (b *backoff) attempts() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.numAttempts
}

// increment records a failed attempt and returns the new count.
func (b *backoff) increment() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.numAttempts++
	return b.numAttempts
}

// duration returns the delay to wait now and grows the next one.
func (b *backoff) duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.delay
	if b.delay < b.max {
		u := b.random()*2 - 1
		b.delay += time.Duration(float64(backoffStep) * (1 + b.factor*u))
	}
	if b.delay > b.max {
		b.delay = b.max
	}
	if d > b.max {
		d = b.max
	}
	return d
}

func (b *backoff) reset() {
	b.mu.Lock()
	b.numAttempts = 0
	b.delay = b.min
	b.mu.Unlock()
}
