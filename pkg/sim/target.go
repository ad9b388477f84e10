package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rvbl-protocol/rvbl-go/pkg/payload"
)

// Protocol tokens printed by the bootloader.
const (
	PromptBoot   = "BOOT?"
	ReplyOK      = "OK"
	ReplyErr     = "ERR"
	ReplyReady   = "READY"
	PromptCRC    = "CRC?"
	ReplyFail    = "FAIL"
	NoticeReboot = "REBOOT"

	// CommandUpdate is the single byte that enters update mode.
	CommandUpdate = 'u'
)

// maxCommandLine bounds the SEND line.
const maxCommandLine = 64

// Config configures a simulated target.
type Config struct {
	// Version is printed in the boot banner.
	Version string

	// BootDelay is slept before the banner is printed.
	BootDelay time.Duration

	// BootWindow is how long the target waits for "u" before booting the
	// application. Zero waits forever.
	BootWindow time.Duration

	// MaxImageSize caps the announced size (default payload.MaxAppSize).
	MaxImageSize int

	// ExitAfterReboot ends Serve after "REBOOT" instead of idling until
	// the host disconnects.
	ExitAfterReboot bool

	// Faults injects protocol failures.
	Faults Faults

	// Logger receives operational logs. Nil disables logging.
	Logger *slog.Logger
}

// Session describes one update attempt seen by the target.
type Session struct {
	// Announced is the size from the SEND command (-1 if none arrived).
	Announced int

	// Received is the number of image bytes stored.
	Received int

	// Image is the stored image, as flashed.
	Image []byte

	// CRC32 is the checksum read back from flash.
	CRC32 uint32

	// Verified reports that the read-back matched what was received.
	Verified bool

	// Err records why the session ended early, if it did.
	Err error
}

// Target is a simulated bootloader. Each Serve call is one power cycle.
type Target struct {
	cfg Config

	mu   sync.Mutex
	last Session
	runs int
}

// New creates a simulated target.
func New(cfg Config) *Target {
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = payload.MaxAppSize
	}
	return &Target{cfg: cfg}
}

// LastSession returns the outcome of the most recent Serve call.
func (t *Target) LastSession() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.last
	s.Image = append([]byte(nil), s.Image...)
	return s
}

// Runs returns how many times Serve has been called.
func (t *Target) Runs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

// Serve runs one boot of the bootloader, reading host input from r and
// writing console output to w. It returns nil when the host disconnects or
// the session completes; ctx cancellation returns ctx.Err(). Only output
// write failures are reported as errors.
func (t *Target) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	t.mu.Lock()
	t.runs++
	t.last = Session{Announced: -1}
	t.mu.Unlock()

	in := newInput(r)
	defer in.close()
	c := &console{w: w}

	err := t.serve(ctx, in, c)
	if errors.Is(err, io.EOF) {
		t.logDebug("host disconnected")
		return nil
	}
	return err
}

func (t *Target) serve(ctx context.Context, in *input, c *console) error {
	f := t.cfg.Faults

	if err := sleep(ctx, t.cfg.BootDelay); err != nil {
		return err
	}
	c.line("")
	c.line("RVBL bootloader v" + t.cfg.Version)
	c.line(fmt.Sprintf("app partition 0x%08X, %d KiB", 0x80010000, t.cfg.MaxImageSize/1024))
	if !f.SilentBoot {
		c.line(PromptBoot)
	}
	if c.err != nil {
		return c.err
	}

	// Wait for the update key; anything else is ignored.
	deadline := time.Time{}
	if t.cfg.BootWindow > 0 {
		deadline = time.Now().Add(t.cfg.BootWindow)
	}
	for {
		b, err := in.next(ctx, deadline)
		if errors.Is(err, errWindowClosed) {
			c.line("booting application")
			return t.idle(ctx, in, c)
		}
		if err != nil {
			return err
		}
		if b == CommandUpdate {
			break
		}
	}

	if f.RejectUpdate {
		c.line(ReplyErr)
		t.logDebug("update rejected")
		return t.idle(ctx, in, c)
	}
	c.line(ReplyOK)
	if c.err != nil {
		return c.err
	}
	if f.ExitAfterUpdateMode {
		t.logDebug("exiting after update mode")
		return nil
	}

	size, err := t.readSend(ctx, in)
	if err != nil {
		if errors.Is(err, ErrBadCommand) || errors.Is(err, ErrSizeRejected) {
			t.record(func(s *Session) { s.Err = err })
			c.line(ReplyErr + " " + err.Error())
			return t.idle(ctx, in, c)
		}
		return err
	}
	t.record(func(s *Session) { s.Announced = size })
	c.line(ReplyReady)
	if c.err != nil {
		return c.err
	}

	image := make([]byte, 0, size)
	for len(image) < size {
		b, err := in.next(ctx, time.Time{})
		if err != nil {
			t.record(func(s *Session) { s.Received = len(image) })
			return err
		}
		image = append(image, b)
	}
	t.logDebug("image received", "size", size)

	if f.HangAfterUpload {
		t.record(func(s *Session) { s.Received = size })
		return t.idle(ctx, in, c)
	}

	received := payload.Checksum(image)
	flashed := append([]byte(nil), image...)
	if f.CorruptFlash && len(flashed) > 0 {
		flashed[len(flashed)/2] ^= 0x01
	}
	readback := payload.Checksum(flashed)
	verified := readback == received && !(f.CorruptFlash && len(flashed) == 0)

	t.record(func(s *Session) {
		s.Received = size
		s.Image = flashed
		s.CRC32 = readback
		s.Verified = verified
	})

	c.line(PromptCRC)
	c.line(fmt.Sprintf("CRC32=0x%08X", readback))
	if !verified {
		c.line(ReplyFail)
		return t.idle(ctx, in, c)
	}
	c.line(ReplyOK)
	if !f.NoReboot {
		c.line(NoticeReboot)
	}
	if c.err != nil {
		return c.err
	}
	if t.cfg.ExitAfterReboot {
		return nil
	}
	return t.idle(ctx, in, c)
}

// readSend reads one "SEND <n>" line terminated by '\n'.
func (t *Target) readSend(ctx context.Context, in *input) (int, error) {
	var line []byte
	for {
		b, err := in.next(ctx, time.Time{})
		if err != nil {
			return 0, err
		}
		if b == '\n' {
			break
		}
		if len(line) >= maxCommandLine {
			return 0, ErrBadCommand
		}
		line = append(line, b)
	}

	cmd := strings.TrimSpace(string(line))
	arg, ok := strings.CutPrefix(cmd, "SEND ")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadCommand, cmd)
	}
	size, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || size < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadCommand, cmd)
	}
	if size == 0 && !t.cfg.Faults.AcceptZeroLength {
		return 0, fmt.Errorf("%w: empty image", ErrSizeRejected)
	}
	if size > t.cfg.MaxImageSize {
		return 0, fmt.Errorf("%w: %d > %d", ErrSizeRejected, size, t.cfg.MaxImageSize)
	}
	return size, nil
}

// idle swallows input until the host disconnects or ctx ends.
func (t *Target) idle(ctx context.Context, in *input, c *console) error {
	if c.err != nil {
		return c.err
	}
	for {
		if _, err := in.next(ctx, time.Time{}); err != nil {
			return err
		}
	}
}

func (t *Target) record(fn func(*Session)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.last)
}

func (t *Target) logDebug(msg string, args ...any) {
	if t.cfg.Logger != nil {
		t.cfg.Logger.Debug(msg, args...)
	}
}

// console writes CRLF-terminated lines and remembers the first error.
type console struct {
	w   io.Writer
	err error
}

func (c *console) line(s string) {
	if c.err != nil {
		return
	}
	_, c.err = io.WriteString(c.w, s+"\r\n")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
