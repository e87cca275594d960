package session

import (
	"math/rand"
	"time"
)

// Backoff default parameters.
const (
	defaultBackoffFactor = 2.0
	defaultBackoffJitter = 0.2
)

// Backoff computes reconnect delays: exponential growth from Initial up to
// Max, with optional random jitter so a fleet of sessions does not hammer
// the broker in lockstep after an outage.
//
// The zero value is not usable; set Initial and Max. Not safe for concurrent
// use; each session owns its own Backoff.
type Backoff struct {
	// Initial is the delay before the first retry.
	Initial time.Duration

	// Max bounds the delay; growth stops here.
	Max time.Duration

	// Factor is the growth multiplier per attempt. Defaults to 2.
	Factor float64

	// Jitter is the maximum random fraction added to each delay (0 to 1).
	// Defaults to 0.2. Set negative to disable entirely.
	Jitter float64

	attempt int
}

// Next returns the delay to wait before the next connect attempt and
// advances the attempt counter. The undithered base is non-decreasing and
// never exceeds Max*(1+Jitter).
func (b *Backoff) Next() time.Duration {
	factor := b.Factor
	if factor <= 1 {
		factor = defaultBackoffFactor
	}
	jitter := b.Jitter
	if jitter == 0 {
		jitter = defaultBackoffJitter
	}

	d := float64(b.Initial)
	for i := 0; i < b.attempt; i++ {
		d *= factor
		if d >= float64(b.Max) {
			d = float64(b.Max)
			break
		}
	}
	b.attempt++

	if jitter > 0 {
		d += rand.Float64() * jitter * d
	}
	return time.Duration(d)
}

// Reset restarts the sequence after a successful connection.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempts returns the number of delays handed out since the last Reset.
func (b *Backoff) Attempts() int {
	return b.attempt
}
