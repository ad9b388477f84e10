package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rvbl-protocol/rvbl-go/pkg/log"
)

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithTranscript records reads, writes and wait outcomes to logger.
func WithTranscript(logger log.Logger) StreamOption {
	return func(s *Stream) {
		s.transcript = logger
	}
}

// WithSessionID sets the session ID stamped on transcript events.
// A random UUID is used otherwise.
func WithSessionID(id string) StreamOption {
	return func(s *Stream) {
		s.sessionID = id
	}
}

// WithTargetName labels transcript events with a target description.
func WithTargetName(name string) StreamOption {
	return func(s *Stream) {
		s.target = name
	}
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) StreamOption {
	return func(s *Stream) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithLogger sets the operational logger. Nil disables logging.
func WithLogger(logger *slog.Logger) StreamOption {
	return func(s *Stream) {
		s.logger = logger
	}
}

// Stream is one session with a target: a background reader feeding a
// queue, a waiter consuming it and a sender writing commands.
type Stream struct {
	queue  *Queue
	sender *Sender
	done   <-chan struct{}

	poll       time.Duration
	sessionID  string
	target     string
	transcript log.Logger
	logger     *slog.Logger

	mu    sync.Mutex
	stage string
}

// NewStream starts reading r immediately and returns the session.
// The stream does not own r or w; closing them ends the session.
func NewStream(r io.Reader, w io.Writer, opts ...StreamOption) *Stream {
	s := &Stream{
		queue:      NewQueue(),
		sender:     NewSender(w),
		poll:       DefaultPollInterval,
		transcript: log.NoopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessionID == "" {
		s.sessionID = uuid.New().String()
	}
	if s.transcript == nil {
		s.transcript = log.NoopLogger{}
	}

	s.sender.SetObserver(func(p []byte) {
		s.record(log.DirectionOut, p)
	})
	s.done = StartReader(r, s.queue, WithReadObserver(func(p []byte) {
		s.record(log.DirectionIn, p)
	}))
	return s
}

// SessionID returns the ID stamped on transcript events.
func (s *Stream) SessionID() string {
	return s.sessionID
}

// SetStage labels subsequent transcript events with stage.
func (s *Stream) SetStage(stage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
}

// Stage returns the current stage label.
func (s *Stream) Stage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Done is closed when the reader goroutine has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns the read error that ended the stream, if any.
func (s *Stream) Err() error {
	return s.queue.Err()
}

// WaitFor waits for pattern in the target output. See WaitFor.
func (s *Stream) WaitFor(ctx context.Context, pattern string, timeout time.Duration) ([]byte, error) {
	start := time.Now()
	buf, err := WaitFor(ctx, s.queue, []byte(pattern), timeout, s.poll)
	elapsed := time.Since(start)

	outcome := "matched"
	switch {
	case err == nil:
	case errors.Is(err, ErrWaitTimeout):
		outcome = "timeout"
	case errors.Is(err, ErrStreamClosed):
		outcome = "closed"
	default:
		outcome = "cancelled"
	}

	s.transcript.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.sessionID,
		Direction: log.DirectionLocal,
		Category:  log.CategoryMarker,
		Stage:     s.Stage(),
		Target:    s.target,
		Marker: &log.MarkerEvent{
			Pattern:  pattern,
			Matched:  err == nil,
			Outcome:  outcome,
			Observed: len(buf),
			Elapsed:  elapsed,
		},
	})
	if s.logger != nil {
		s.logger.Debug("wait finished",
			"pattern", pattern,
			"outcome", outcome,
			"observed", len(buf),
			"elapsed", elapsed)
	}
	return buf, err
}

// Discard waits for window and then drops everything queued. It returns
// the dropped bytes.
func (s *Stream) Discard(ctx context.Context, window time.Duration) []byte {
	if window > 0 {
		t := time.NewTimer(window)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}
	dropped := s.queue.Drain()
	if s.logger != nil && len(dropped) > 0 {
		s.logger.Debug("discarded output", "bytes", len(dropped))
	}
	return dropped
}

// Send writes data and flushes.
func (s *Stream) Send(data []byte) error {
	return s.sender.Send(data)
}

// SendString writes str and flushes.
func (s *Stream) SendString(str string) error {
	return s.sender.SendString(str)
}

// SendPaced writes data one byte at a time with delay between bytes.
func (s *Stream) SendPaced(ctx context.Context, data []byte, delay time.Duration) error {
	return s.sender.SendPaced(ctx, data, delay)
}

func (s *Stream) record(dir log.Direction, p []byte) {
	event := log.NewDataEvent(s.sessionID, dir, s.Stage(), p)
	event.Target = s.target
	s.transcript.Log(event)
}
