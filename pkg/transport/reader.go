package transport

import (
	"errors"
	"io"
)

// DefaultReadBufferSize is the size of a single read from the target.
const DefaultReadBufferSize = 256

// ReaderOption configures StartReader.
type ReaderOption func(*readerConfig)

type readerConfig struct {
	bufSize  int
	observer func([]byte)
}

// WithReadBufferSize sets the size of each read.
func WithReadBufferSize(n int) ReaderOption {
	return func(c *readerConfig) {
		if n > 0 {
			c.bufSize = n
		}
	}
}

// WithReadObserver registers a callback invoked with every chunk read,
// before the bytes are queued. The slice must not be retained.
func WithReadObserver(fn func([]byte)) ReaderOption {
	return func(c *readerConfig) {
		c.observer = fn
	}
}

// StartReader starts a goroutine that copies r into q byte-for-byte until
// r reports an error. On io.EOF the queue is closed cleanly; any other read
// error closes it with that cause. The returned channel is closed when the
// goroutine exits.
func StartReader(r io.Reader, q *Queue, opts ...ReaderOption) <-chan struct{} {
	cfg := readerConfig{bufSize: DefaultReadBufferSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		buf := make([]byte, cfg.bufSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				if cfg.observer != nil {
					cfg.observer(buf[:n])
				}
				if q.Push(buf[:n]) != nil {
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					q.Close()
				} else {
					q.CloseWithError(err)
				}
				return
			}
		}
	}()
	return done
}
