package transport

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not exit")
	}
}

func TestStartReaderChunkSizeDoesNotChangeBytes(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i * 7)
	}

	for _, size := range []int{1, 3, DefaultReadBufferSize, 4096} {
		q := NewQueue()
		var observed []byte
		done := StartReader(bytes.NewReader(data), q,
			WithReadBufferSize(size),
			WithReadObserver(func(p []byte) { observed = append(observed, p...) }),
		)
		waitDone(t, done)

		assert.True(t, q.Closed(), "size %d", size)
		assert.NoError(t, q.Err(), "size %d", size)
		assert.Equal(t, data, q.Drain(), "size %d", size)
		assert.Equal(t, data, observed, "size %d", size)
	}
}

func TestStartReaderOneByteReads(t *testing.T) {
	q := NewQueue()
	done := StartReader(iotest.OneByteReader(strings.NewReader("BOOT?\r\nOK")), q)
	waitDone(t, done)

	assert.Equal(t, "BOOT?\r\nOK", string(q.Drain()))
	assert.True(t, q.Closed())
}

func TestStartReaderKeepsReadError(t *testing.T) {
	boom := errors.New("uart reset")
	q := NewQueue()
	done := StartReader(io.MultiReader(strings.NewReader("BOOT?"), iotest.ErrReader(boom)), q)
	waitDone(t, done)

	require.True(t, q.Closed())
	assert.ErrorIs(t, q.Err(), boom)
	assert.Equal(t, "BOOT?", string(q.Drain()))
}
