package sim

import (
	"context"
	"errors"
	"io"
	"time"
)

var errWindowClosed = errors.New("boot window closed")

// input turns a blocking reader into a byte source with deadlines.
type input struct {
	chunks <-chan []byte
	stop   chan struct{}
	buf    []byte
}

func newInput(r io.Reader) *input {
	ch := make(chan []byte, 16)
	in := &input{chunks: ch, stop: make(chan struct{})}
	go func() {
		defer close(ch)
		for {
			buf := make([]byte, 512)
			n, err := r.Read(buf)
			if n > 0 {
				select {
				case ch <- buf[:n]:
				case <-in.stop:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return in
}

// close releases the reading goroutine once its current Read returns.
func (in *input) close() {
	close(in.stop)
}

// next returns the next byte. A zero deadline waits indefinitely.
// io.EOF is returned once the reader is exhausted.
func (in *input) next(ctx context.Context, deadline time.Time) (byte, error) {
	if len(in.buf) == 0 {
		var timeout <-chan time.Time
		if !deadline.IsZero() {
			t := time.NewTimer(time.Until(deadline))
			defer t.Stop()
			timeout = t.C
		}
		select {
		case chunk, ok := <-in.chunks:
			if !ok {
				return 0, io.EOF
			}
			in.buf = chunk
		case <-timeout:
			return 0, errWindowClosed
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	b := in.buf[0]
	in.buf = in.buf[1:]
	return b, nil
}
