package log

import (
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// MaxDataSize is the largest chunk of raw bytes stored in one event.
// Longer writes are truncated in the transcript; Size keeps the real length.
const MaxDataSize = 4096

// Event is one transcript entry. CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the update session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates byte flow relative to the host.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Stage is the protocol stage active when the event was captured.
	Stage string `cbor:"5,keyasint,omitempty"`

	// Target describes the target under test (e.g. "qemu", "serial:/dev/ttyUSB0").
	Target string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Data   *DataEvent      `cbor:"10,keyasint,omitempty"`
	Change *StageEvent     `cbor:"11,keyasint,omitempty"`
	Marker *MarkerEvent    `cbor:"12,keyasint,omitempty"`
	Error  *ErrorEventData `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of byte flow.
type Direction uint8

const (
	// DirectionIn is output read from the target.
	DirectionIn Direction = 0
	// DirectionOut is input written to the target.
	DirectionOut Direction = 1
	// DirectionLocal marks host-side events with no bytes on the wire.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryData is raw transport bytes.
	CategoryData Category = 0
	// CategoryStage is a stage transition.
	CategoryStage Category = 1
	// CategoryMarker is the outcome of a marker wait.
	CategoryMarker Category = 2
	// CategoryError is a failure at any layer.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryData:
		return "DATA"
	case CategoryStage:
		return "STAGE"
	case CategoryMarker:
		return "MARKER"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// DataEvent captures raw bytes read or written.
type DataEvent struct {
	// Size is the number of bytes transferred.
	Size int `cbor:"1,keyasint"`

	// Data is the raw bytes (may be truncated for large writes).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// StageEvent captures a stage transition.
type StageEvent struct {
	// OldStage is the previous stage (empty for the first).
	OldStage string `cbor:"1,keyasint,omitempty"`

	// NewStage is the stage being entered.
	NewStage string `cbor:"2,keyasint"`

	// Outcome of OldStage ("passed", "failed", "skipped").
	Outcome string `cbor:"3,keyasint,omitempty"`
}

// MarkerEvent captures the result of waiting for a marker.
type MarkerEvent struct {
	// Pattern is the literal marker waited for.
	Pattern string `cbor:"1,keyasint"`

	// Matched indicates the marker was seen.
	Matched bool `cbor:"2,keyasint"`

	// Outcome is "matched", "timeout", "closed" or "cancelled".
	Outcome string `cbor:"3,keyasint"`

	// Observed is the number of bytes consumed by the wait.
	Observed int `cbor:"4,keyasint"`

	// Elapsed is the wait duration in nanoseconds.
	Elapsed time.Duration `cbor:"5,keyasint"`
}

// ErrorEventData captures a failure.
type ErrorEventData struct {
	// Kind classifies the failure (setup, timeout, stream_closed, send, ...).
	Kind string `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}

// NewDataEvent builds a data event, truncating data beyond MaxDataSize.
// The data slice is copied.
func NewDataEvent(sessionID string, dir Direction, stage string, data []byte) Event {
	d := &DataEvent{Size: len(data)}
	n := len(data)
	if n > MaxDataSize {
		n = MaxDataSize
		d.Truncated = true
	}
	d.Data = append([]byte(nil), data[:n]...)

	return Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Direction: dir,
		Category:  CategoryData,
		Stage:     stage,
		Data:      d,
	}
}

// Transcript codec. Events are flat records written back to back; the
// decoder refuses duplicate keys, indefinite lengths and deep nesting.
var (
	eventEncMode = mustEncMode(cbor.EncOptions{
		Sort:        cbor.SortNone,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	})
	eventDecMode = mustDecMode(cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		IndefLength:     cbor.IndefLengthForbidden,
		MaxNestedLevels: 8,
		MaxMapPairs:     64,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	em, err := opts.EncMode()
	if err != nil {
		panic("log: transcript encoder: " + err.Error())
	}
	return em
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	dm, err := opts.DecMode()
	if err != nil {
		panic("log: transcript decoder: " + err.Error())
	}
	return dm
}

// EncodeEvent encodes one event.
func EncodeEvent(event Event) ([]byte, error) {
	return eventEncMode.Marshal(event)
}

// DecodeEvent decodes one event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := eventDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder returns a streaming event encoder writing to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return eventEncMode.NewEncoder(w)
}

// NewDecoder returns a streaming event decoder reading from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return eventDecMode.NewDecoder(r)
}
