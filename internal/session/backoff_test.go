package session

import (
	"testing"
	"time"
)

func TestBackoffGrowth(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: 2 * time.Second, Jitter: -1}

	var prev time.Duration
	for i := 0; i < 10; i++ {
		d := b.Next()
		if d < prev {
			t.Errorf("attempt %d: delay %v < previous %v, want non-decreasing", i, d, prev)
		}
		if d > 2*time.Second {
			t.Errorf("attempt %d: delay %v exceeds max", i, d)
		}
		prev = d
	}

	if prev != 2*time.Second {
		t.Errorf("final delay = %v, want capped at 2s", prev)
	}
	if b.Attempts() != 10 {
		t.Errorf("Attempts() = %d, want 10", b.Attempts())
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Jitter: 0.5}

	for i := 0; i < 20; i++ {
		d := b.Next()
		if d < 100*time.Millisecond {
			t.Errorf("attempt %d: delay %v below initial", i, d)
		}
		if d > 1500*time.Millisecond {
			t.Errorf("attempt %d: delay %v exceeds max plus jitter", i, d)
		}
	}
}

func TestBackoffReset(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Jitter: -1}

	b.Next()
	b.Next()
	b.Reset()

	if got := b.Next(); got != 100*time.Millisecond {
		t.Errorf("first delay after Reset() = %v, want 100ms", got)
	}
}
