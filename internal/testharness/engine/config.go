package engine

import (
	"fmt"
	"strings"
	"time"
)

// Timeouts holds the per-stage wait limits. Stages never borrow unused
// time from each other.
type Timeouts struct {
	Boot       time.Duration
	UpdateMode time.Duration
	Ready      time.Duration
	CRCPrompt  time.Duration
	CRCResult  time.Duration
	Reboot     time.Duration
}

// Pacing holds the write pacing and fixed delays of the exchange.
type Pacing struct {
	// Command is the delay between characters of the SEND command.
	Command time.Duration

	// Payload is the delay between payload and padding bytes.
	Payload time.Duration

	// AfterUpdate is slept after sending the update command.
	AfterUpdate time.Duration

	// AfterSend is slept after sending the SEND command.
	AfterSend time.Duration

	// Drain is the window after "OK" during which stray output is dropped.
	Drain time.Duration
}

// Settle is the wait after streaming, scaled to the payload size.
type Settle struct {
	// Min is the lower bound.
	Min time.Duration

	// BytesPerSecond is the assumed flash throughput.
	BytesPerSecond int
}

// Duration returns max(Min, size/BytesPerSecond).
func (s Settle) Duration(size int) time.Duration {
	d := s.Min
	if s.BytesPerSecond > 0 {
		scaled := time.Duration(size) * time.Second / time.Duration(s.BytesPerSecond)
		if scaled > d {
			d = scaled
		}
	}
	return d
}

// Padding is appended to the payload. It is not part of the announced
// length and gives the target's receive loop room to drain.
type Padding struct {
	Size int
	Byte byte
}

// Markers are the literal tokens expected from the target.
type Markers struct {
	Boot      string
	UpdateOK  string
	Ready     string
	CRCPrompt string
	CRCResult string
	Reboot    string

	// Rejections mark an explicit refusal. A timed-out wait whose output
	// contains one of them is reported as a rejection, not a timeout.
	Rejections []string
}

// Commands are the host commands. Send is a template; see Interpolate.
type Commands struct {
	Update string
	Send   string
}

// ZeroLengthPolicy selects how an empty payload is handled.
type ZeroLengthPolicy string

const (
	// ZeroLengthReject fails setup before any target I/O.
	ZeroLengthReject ZeroLengthPolicy = "reject"

	// ZeroLengthAllow announces "SEND 0", skips streaming and padding and
	// proceeds to the integrity check.
	ZeroLengthAllow ZeroLengthPolicy = "allow"
)

// ParseZeroLengthPolicy parses "reject" or "allow". Empty means reject.
func ParseZeroLengthPolicy(s string) (ZeroLengthPolicy, error) {
	switch ZeroLengthPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ZeroLengthReject:
		return ZeroLengthReject, nil
	case ZeroLengthAllow:
		return ZeroLengthAllow, nil
	default:
		return "", fmt.Errorf("unknown zero-length policy %q (want reject or allow)", s)
	}
}

// Config configures a Driver.
type Config struct {
	Timeouts Timeouts
	Pacing   Pacing
	Settle   Settle
	Padding  Padding
	Markers  Markers
	Commands Commands

	// ZeroLength is the empty-payload policy.
	ZeroLength ZeroLengthPolicy

	// StrictCRC fails the integrity stage when the checksum the target
	// reports differs from the payload checksum.
	StrictCRC bool

	// ProgressEvery is the payload progress granularity in bytes.
	ProgressEvery int
}

// DefaultConfig returns the timing of the reference validator.
func DefaultConfig() Config {
	return Config{
		Timeouts: Timeouts{
			Boot:       5 * time.Second,
			UpdateMode: 5 * time.Second,
			Ready:      10 * time.Second,
			CRCPrompt:  20 * time.Second,
			CRCResult:  5 * time.Second,
			Reboot:     2 * time.Second,
		},
		Pacing: Pacing{
			Command:     5 * time.Millisecond,
			Payload:     2 * time.Millisecond,
			AfterUpdate: 200 * time.Millisecond,
			AfterSend:   100 * time.Millisecond,
			Drain:       50 * time.Millisecond,
		},
		Settle: Settle{
			Min:            2 * time.Second,
			BytesPerSecond: 200,
		},
		Padding: Padding{Size: 32, Byte: 0x00},
		Markers: Markers{
			Boot:       "BOOT?",
			UpdateOK:   "OK",
			Ready:      "READY",
			CRCPrompt:  "CRC?",
			CRCResult:  "OK",
			Reboot:     "REBOOT",
			Rejections: []string{"ERR", "FAIL"},
		},
		Commands: Commands{
			Update: "u",
			Send:   "SEND {{ size }}\n",
		},
		ZeroLength:    ZeroLengthReject,
		ProgressEvery: 50,
	}
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	timeouts := map[string]time.Duration{
		"boot":        c.Timeouts.Boot,
		"update_mode": c.Timeouts.UpdateMode,
		"ready":       c.Timeouts.Ready,
		"crc_prompt":  c.Timeouts.CRCPrompt,
		"crc_result":  c.Timeouts.CRCResult,
		"reboot":      c.Timeouts.Reboot,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("timeout %s must be positive, got %v", name, d)
		}
	}
	if c.Pacing.Command < 0 || c.Pacing.Payload < 0 || c.Pacing.AfterUpdate < 0 ||
		c.Pacing.AfterSend < 0 || c.Pacing.Drain < 0 {
		return fmt.Errorf("pacing delays must not be negative")
	}
	if c.Settle.Min < 0 || c.Settle.BytesPerSecond < 0 {
		return fmt.Errorf("settle values must not be negative")
	}
	if c.Padding.Size < 0 {
		return fmt.Errorf("padding size must not be negative, got %d", c.Padding.Size)
	}
	if c.Commands.Update == "" {
		return fmt.Errorf("update command is empty")
	}
	if missing := UnresolvedVariables(c.Commands.Send, templateVars(0, 0)); len(missing) > 0 {
		return fmt.Errorf("send command uses unknown variables %v", missing)
	}
	if _, err := ParseZeroLengthPolicy(string(c.ZeroLength)); err != nil {
		return err
	}
	return nil
}
