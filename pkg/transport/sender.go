package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrSendFailed indicates a write towards the target failed.
var ErrSendFailed = errors.New("send failed")

// SendError reports a failed write and how many bytes went out before it.
type SendError struct {
	// Offset is the number of bytes of the request written successfully.
	Offset int
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed at offset %d: %v", e.Offset, e.Err)
}

// Unwrap exposes both ErrSendFailed and the underlying cause.
func (e *SendError) Unwrap() []error {
	return []error{ErrSendFailed, e.Err}
}

type flusher interface {
	Flush() error
}

// drainer is implemented by serial ports (go.bug.st/serial).
type drainer interface {
	Drain() error
}

// Sender writes commands and payload bytes to the target.
// It is safe for concurrent use; writes are serialized.
type Sender struct {
	w        io.Writer
	mu       sync.Mutex
	observer func([]byte)
}

// NewSender creates a sender writing to w.
func NewSender(w io.Writer) *Sender {
	return &Sender{w: w}
}

// SetObserver registers a callback invoked with the bytes of every
// completed (or partially completed) send.
func (s *Sender) SetObserver(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// Send writes data in full and flushes the writer.
func (s *Sender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.write(data)
	s.observe(data[:n])
	if err != nil {
		return &SendError{Offset: n, Err: err}
	}
	return nil
}

// SendString writes s as bytes.
func (s *Sender) SendString(str string) error {
	return s.Send([]byte(str))
}

// SendPaced writes data one byte at a time, flushing each byte and
// sleeping delay between bytes. A cancelled context stops the send and
// returns the context error.
func (s *Sender) SendPaced(ctx context.Context, data []byte, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var timer *time.Timer
	if delay > 0 {
		timer = time.NewTimer(delay)
		timer.Stop()
		defer timer.Stop()
	}

	sent := 0
	defer func() { s.observe(data[:sent]) }()

	for i := range data {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.write(data[i : i+1])
		sent += n
		if err != nil {
			return &SendError{Offset: sent, Err: err}
		}

		if timer != nil && i < len(data)-1 {
			timer.Reset(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// write performs one full write plus flush. Callers hold s.mu.
func (s *Sender) write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return n, err
	}

	switch f := s.w.(type) {
	case flusher:
		err = f.Flush()
	case drainer:
		err = f.Drain()
	}
	return n, err
}

func (s *Sender) observe(p []byte) {
	if s.observer != nil && len(p) > 0 {
		s.observer(p)
	}
}
