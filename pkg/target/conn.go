package target

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// connHandle wraps a bidirectional connection to a console: a serial port
// or a TCP/telnet serial bridge. The target counts as alive until the
// connection is closed or a read fails.
type connHandle struct {
	rwc  io.ReadWriteCloser
	desc string

	failed atomic.Bool
	closed atomic.Bool
	once   sync.Once
	err    error
}

func newConnHandle(rwc io.ReadWriteCloser, desc string) *connHandle {
	return &connHandle{rwc: rwc, desc: desc}
}

func (h *connHandle) Read(p []byte) (int, error) {
	n, err := h.rwc.Read(p)
	if err != nil {
		h.failed.Store(true)
	}
	return n, err
}

func (h *connHandle) Write(p []byte) (int, error) { return h.rwc.Write(p) }
func (h *connHandle) String() string              { return h.desc }

// Drain waits for buffered output to reach the wire, when supported.
func (h *connHandle) Drain() error {
	if d, ok := h.rwc.(interface{ Drain() error }); ok {
		return d.Drain()
	}
	return nil
}

func (h *connHandle) Alive() bool {
	return !h.closed.Load() && !h.failed.Load()
}

func (h *connHandle) Terminate(time.Duration) error {
	h.once.Do(func() {
		h.closed.Store(true)
		h.err = h.rwc.Close()
	})
	return h.err
}

// dialRetry calls dial until it succeeds, ctx ends or timeout elapses,
// backing off between attempts starting at interval.
// Emulators open their serial listener a moment after they start.
func dialRetry(ctx context.Context, timeout, interval time.Duration, dial func() (io.ReadWriteCloser, error)) (io.ReadWriteCloser, error) {
	b := newBackoff(interval, maxDialBackoff)
	deadline := time.Now().Add(timeout)

	for {
		rwc, err := dial()
		if err == nil {
			return rwc, nil
		}
		wait := b.Next()
		if time.Now().Add(wait).After(deadline) {
			return nil, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
		}

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
}
