package log

// Logger receives transcript events.
// Pass nil or NoopLogger to disable the transcript.
type Logger interface {
	// Log records an event. Implementations must be safe for concurrent use:
	// the reader goroutine and the driver log from different goroutines.
	Log(event Event)
}

// NoopLogger discards all events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}
