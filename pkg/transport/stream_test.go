package transport

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvbl-protocol/rvbl-go/pkg/log"
)

type recordingTranscript struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingTranscript) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingTranscript) snapshot() []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]log.Event(nil), r.events...)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStreamWaitAndClose(t *testing.T) {
	pr, pw := io.Pipe()
	var out syncBuffer
	s := NewStream(pr, &out)
	ctx := context.Background()

	go func() {
		_, _ = pw.Write([]byte("RVBL bootloader\r\nBOOT?\r\n"))
	}()

	buf, err := s.WaitFor(ctx, "BOOT?", time.Second)
	require.NoError(t, err)
	assert.Contains(t, string(buf), "RVBL bootloader")

	require.NoError(t, s.SendString("u"))
	assert.Equal(t, "u", out.String())

	pw.Close()
	_, err = s.WaitFor(ctx, "OK", 5*time.Second)
	assert.ErrorIs(t, err, ErrStreamClosed)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("reader goroutine did not exit")
	}
	assert.NoError(t, s.Err())
}

func TestStreamRecordsTranscript(t *testing.T) {
	pr, pw := io.Pipe()
	rec := &recordingTranscript{}
	s := NewStream(pr, io.Discard,
		WithTranscript(rec),
		WithSessionID("session-1"),
		WithTargetName("sim"),
	)
	ctx := context.Background()

	s.SetStage("AwaitBoot")
	go func() {
		_, _ = pw.Write([]byte("BOOT?"))
	}()
	_, err := s.WaitFor(ctx, "BOOT?", time.Second)
	require.NoError(t, err)

	s.SetStage("EnterUpdateMode")
	require.NoError(t, s.SendString("u"))
	_, err = s.WaitFor(ctx, "OK", 20*time.Millisecond)
	require.ErrorIs(t, err, ErrWaitTimeout)

	pw.Close()
	<-s.Done()

	var in, out, markers []log.Event
	for _, e := range rec.snapshot() {
		assert.Equal(t, "session-1", e.SessionID)
		assert.Equal(t, "sim", e.Target)
		switch {
		case e.Data != nil && e.Direction == log.DirectionIn:
			in = append(in, e)
		case e.Data != nil && e.Direction == log.DirectionOut:
			out = append(out, e)
		case e.Marker != nil:
			markers = append(markers, e)
		}
	}

	require.NotEmpty(t, in)
	assert.Equal(t, "AwaitBoot", in[0].Stage)

	require.Len(t, out, 1)
	assert.Equal(t, "u", string(out[0].Data.Data))
	assert.Equal(t, "EnterUpdateMode", out[0].Stage)

	require.Len(t, markers, 2)
	assert.Equal(t, "matched", markers[0].Marker.Outcome)
	assert.True(t, markers[0].Marker.Matched)
	assert.Equal(t, "timeout", markers[1].Marker.Outcome)
	assert.Equal(t, "EnterUpdateMode", markers[1].Stage)
}

func TestStreamDiscard(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewStream(pr, io.Discard)
	ctx := context.Background()

	go func() {
		_, _ = pw.Write([]byte("OK\r\n"))
		time.Sleep(10 * time.Millisecond)
		_, _ = pw.Write([]byte("stray\r\n"))
	}()

	_, err := s.WaitFor(ctx, "OK", time.Second)
	require.NoError(t, err)

	dropped := s.Discard(ctx, 100*time.Millisecond)
	assert.Equal(t, "\r\nstray\r\n", string(dropped))

	pw.Close()
}

func TestStreamSessionIDDefault(t *testing.T) {
	s := NewStream(bytes.NewReader(nil), io.Discard)
	assert.Len(t, s.SessionID(), 36)
	<-s.Done()
}
