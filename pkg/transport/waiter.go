package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Wait errors.
var (
	// ErrWaitTimeout indicates the pattern did not appear before the deadline.
	ErrWaitTimeout = errors.New("timed out waiting for pattern")

	// ErrStreamClosed indicates the target output ended before the pattern appeared.
	ErrStreamClosed = errors.New("stream closed")
)

// DefaultPollInterval bounds each blocking pop inside a wait.
const DefaultPollInterval = 50 * time.Millisecond

// WaitFor consumes bytes from q until the consumed bytes end with pattern,
// the queue reaches its end marker, or timeout elapses.
//
// The returned buffer holds every byte consumed by this call, whatever the
// outcome. A nil error means the pattern matched; bytes queued after the
// match are left for the next wait. Otherwise the error is ErrStreamClosed,
// ErrWaitTimeout, or the context error.
func WaitFor(ctx context.Context, q *Queue, pattern []byte, timeout, poll time.Duration) ([]byte, error) {
	if len(pattern) == 0 {
		return []byte{}, nil
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	var buf []byte
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return buf, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return buf, ErrWaitTimeout
		}

		b, err := q.Pop(ctx, min(poll, remaining))
		switch {
		case err == nil:
			buf = append(buf, b)
			// Checking only the suffix after every byte finds the first
			// occurrence at the exact moment it completes.
			if bytes.HasSuffix(buf, pattern) {
				return buf, nil
			}
		case errors.Is(err, ErrQueueEmpty):
		case errors.Is(err, ErrQueueClosed):
			if cause := q.Err(); cause != nil {
				return buf, fmt.Errorf("%w: %w", ErrStreamClosed, cause)
			}
			return buf, ErrStreamClosed
		default:
			return buf, err
		}
	}
}

// Printable renders raw target output for display. Printable ASCII and
// line control characters pass through; everything else is escaped as \xNN.
func Printable(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		switch {
		case c == '\n' || c == '\r' || c == '\t':
			sb.WriteByte(c)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, `\x%02x`, c)
		}
	}
	return sb.String()
}
