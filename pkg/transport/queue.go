package transport

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Queue errors.
var (
	// ErrQueueEmpty indicates no byte arrived before the pop timeout.
	ErrQueueEmpty = errors.New("queue empty")

	// ErrQueueClosed indicates the end-of-stream marker was reached.
	ErrQueueClosed = errors.New("queue closed")
)

// Queue is an unbounded FIFO of bytes with a terminal end-of-stream state.
// It is intended for one producer and one consumer.
type Queue struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
	err    error

	// notify has capacity 1 and is signalled on every push and on close.
	notify chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends bytes in order. It returns ErrQueueClosed once the queue
// has been closed.
func (q *Queue) Push(p []byte) error {
	if len(p) == 0 {
		return nil
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.buf = append(q.buf, p...)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Close appends the end-of-stream marker.
func (q *Queue) Close() {
	q.CloseWithError(nil)
}

// CloseWithError appends the end-of-stream marker and records its cause.
// Only the first call has any effect.
func (q *Queue) CloseWithError(err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.err = err
	q.mu.Unlock()

	q.signal()
}

// Closed reports whether the end-of-stream marker has been appended.
// Bytes queued before it may still be pending.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Err returns the error that closed the queue, if any.
func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Len returns the number of queued bytes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Pop removes the oldest byte, waiting at most timeout for one to arrive.
// It returns ErrQueueEmpty on timeout and ErrQueueClosed once every byte
// queued before the end marker has been consumed.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (byte, error) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		q.mu.Lock()
		if len(q.buf) > 0 {
			b := q.buf[0]
			q.buf = q.buf[1:]
			if len(q.buf) == 0 {
				q.buf = nil
			}
			q.mu.Unlock()
			return b, nil
		}
		if q.closed {
			q.mu.Unlock()
			return 0, ErrQueueClosed
		}
		q.mu.Unlock()

		if timer == nil {
			timer = time.NewTimer(timeout)
		}
		select {
		case <-q.notify:
		case <-timer.C:
			return 0, ErrQueueEmpty
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Drain removes and returns every queued byte without waiting.
func (q *Queue) Drain() []byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.buf
	q.buf = nil
	return out
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
