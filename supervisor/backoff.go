package supervisor

import "time"

// Backoff yields exponentially growing reconnect delays capped at a maximum.
type Backoff struct {
	base time.Duration
	max  time.Duration
	next time.Duration
}

// NewBackoff returns a Backoff starting at base and doubling up to max.
func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return &Backoff{base: base, max: max, next: base}
}

// Next returns the delay to wait now and doubles the following one.
func (b *Backoff) Next() time.Duration {
	d := b.next
	if b.next > b.max/2 {
		b.next = b.max
	} else {
		b.next *= 2
	}
	return d
}

// Reset starts the sequence over from base.
func (b *Backoff) Reset() {
	b.next = b.base
}
