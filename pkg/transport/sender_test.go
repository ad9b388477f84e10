package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingWriter accepts limit bytes and then fails every write.
type failingWriter struct {
	buf   bytes.Buffer
	limit int
	err   error
}

func (w *failingWriter) Write(p []byte) (int, error) {
	room := w.limit - w.buf.Len()
	if room <= 0 {
		return 0, w.err
	}
	if len(p) > room {
		w.buf.Write(p[:room])
		return room, w.err
	}
	return w.buf.Write(p)
}

// countingFlusher records Flush calls.
type countingFlusher struct {
	bytes.Buffer
	flushes int
}

func (c *countingFlusher) Flush() error {
	c.flushes++
	return nil
}

func TestSenderSendFlushes(t *testing.T) {
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)
	s := NewSender(bw)

	require.NoError(t, s.SendString("u"))
	assert.Equal(t, "u", out.String(), "bufio writer should have been flushed")
}

func TestSenderSendPacedWritesEachByte(t *testing.T) {
	cf := &countingFlusher{}
	s := NewSender(cf)

	start := time.Now()
	err := s.SendPaced(context.Background(), []byte("SEND 5\n"), 5*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, "SEND 5\n", cf.String())
	assert.Equal(t, 7, cf.flushes)
	// Six gaps between seven bytes.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSenderSendPacedZeroDelay(t *testing.T) {
	var out bytes.Buffer
	s := NewSender(&out)

	data := bytes.Repeat([]byte{0x00}, 32)
	require.NoError(t, s.SendPaced(context.Background(), data, 0))
	assert.Equal(t, data, out.Bytes())
}

func TestSenderFailureReportsOffset(t *testing.T) {
	cause := errors.New("broken pipe")
	w := &failingWriter{limit: 3, err: cause}
	s := NewSender(w)

	err := s.SendPaced(context.Background(), []byte("0123456789"), 0)

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, 3, sendErr.Offset)
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "012", w.buf.String())
}

func TestSenderShortWrite(t *testing.T) {
	w := &failingWriter{limit: 2}
	s := NewSender(w)

	err := s.Send([]byte("SEND 1\n"))

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, 2, sendErr.Offset)
}

func TestSenderSendPacedCancelled(t *testing.T) {
	var out bytes.Buffer
	s := NewSender(&out)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(25*time.Millisecond, cancel)

	err := s.SendPaced(ctx, make([]byte, 1000), 10*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, out.Len(), 1000)
}

func TestSenderObserver(t *testing.T) {
	var out bytes.Buffer
	s := NewSender(&out)

	var seen [][]byte
	s.SetObserver(func(p []byte) {
		seen = append(seen, append([]byte(nil), p...))
	})

	require.NoError(t, s.SendString("u"))
	require.NoError(t, s.SendPaced(context.Background(), []byte("SEND 1\n"), 0))

	require.Len(t, seen, 2)
	assert.Equal(t, "u", string(seen[0]))
	assert.Equal(t, "SEND 1\n", string(seen[1]))
}
