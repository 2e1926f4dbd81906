package wstransport

import (
	"math/rand/v2"
	"time"
)

// Backoff doubles a base delay per attempt up to Max. Each delay is drawn
// from the upper half of the step so clients that dropped together do not
// reconnect in lockstep.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	// Jitter returns a duration in [0, n]. Nil uses math/rand.
	Jitter func(n time.Duration) time.Duration

	attempt int
}

// NewBackoff creates a Backoff.
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{Base: base, Max: max}
}

// Next returns the delay for the current attempt and advances.
func (b *Backoff) Next() time.Duration {
	step := b.Base << b.attempt
	if step > b.Max || step <= 0 {
		step = b.Max
	} else {
		b.attempt++
	}
	half := step / 2
	return step - half + b.jitter(half)
}

// Reset restarts from Base.
func (b *Backoff) Reset() {
	b.attempt = 0
}

func (b *Backoff) jitter(n time.Duration) time.Duration {
	if n <= 0 {
		return 0
	}
	if b.Jitter != nil {
		return min(max(b.Jitter(n), 0), n)
	}
	return rand.N(n + 1)
}
