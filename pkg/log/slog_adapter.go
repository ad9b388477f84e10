package log

import (
	"context"
	"log/slog"
	"strconv"
)

// SlogAdapter mirrors transcript events to an slog.Logger at debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event as a structured "transcript" record.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Stage != "" {
		attrs = append(attrs, slog.String("stage", event.Stage))
	}

	switch {
	case event.Data != nil:
		attrs = append(attrs,
			slog.Int("size", event.Data.Size),
			slog.String("data", strconv.Quote(string(event.Data.Data))),
		)
		if event.Data.Truncated {
			attrs = append(attrs, slog.Bool("truncated", true))
		}
	case event.Change != nil:
		attrs = append(attrs,
			slog.String("old_stage", event.Change.OldStage),
			slog.String("new_stage", event.Change.NewStage),
		)
		if event.Change.Outcome != "" {
			attrs = append(attrs, slog.String("outcome", event.Change.Outcome))
		}
	case event.Marker != nil:
		attrs = append(attrs,
			slog.String("pattern", event.Marker.Pattern),
			slog.String("outcome", event.Marker.Outcome),
			slog.Int("observed", event.Marker.Observed),
			slog.Duration("elapsed", event.Marker.Elapsed),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_kind", event.Error.Kind),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "transcript", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
