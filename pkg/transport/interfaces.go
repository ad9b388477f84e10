package transport

import (
	"context"
	"time"
)

// Conn is the byte-stream surface the protocol driver needs.
// Implemented by Stream.
type Conn interface {
	// WaitFor consumes output until pattern, end of stream or timeout.
	WaitFor(ctx context.Context, pattern string, timeout time.Duration) ([]byte, error)

	// Discard drops queued output after a short window.
	Discard(ctx context.Context, window time.Duration) []byte

	// Send writes and flushes data.
	Send(data []byte) error

	// SendString writes and flushes a string.
	SendString(s string) error

	// SendPaced writes data one byte at a time.
	SendPaced(ctx context.Context, data []byte, delay time.Duration) error

	// SetStage labels subsequent transcript events.
	SetStage(stage string)

	// SessionID returns the session identifier.
	SessionID() string

	// Done is closed once the target output has ended.
	Done() <-chan struct{}
}

// Compile-time interface satisfaction checks.
var (
	_ Conn = (*Stream)(nil)
)
