package target

import (
	"math/rand"
	"time"
)

// Dial retry delays. Emulators usually open their console port within a
// few hundred milliseconds, so the ceiling stays low.
const (
	initialDialBackoff = 50 * time.Millisecond
	maxDialBackoff     = time.Second
	dialJitter         = 0.25
)

// backoff yields exponentially growing delays with jitter.
type backoff struct {
	current time.Duration
	max     time.Duration
	jitter  float64
	rng     *rand.Rand
}

func newBackoff(initial, max time.Duration) *backoff {
	if initial <= 0 {
		initial = initialDialBackoff
	}
	if max < initial {
		max = initial
	}
	return &backoff{
		current: initial,
		max:     max,
		jitter:  dialJitter,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next delay and doubles the base, up to max.
func (b *backoff) Next() time.Duration {
	d := b.current
	if b.jitter > 0 {
		d += time.Duration(float64(d) * b.jitter * b.rng.Float64())
	}
	if b.current *= 2; b.current > b.max {
		b.current = b.max
	}
	return d
}
