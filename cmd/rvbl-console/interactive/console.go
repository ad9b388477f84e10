// Package interactive provides the interactive console of rvbl-console.
package interactive

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/rvbl-protocol/rvbl-go/internal/testharness/engine"
	"github.com/rvbl-protocol/rvbl-go/pkg/log"
	"github.com/rvbl-protocol/rvbl-go/pkg/payload"
	"github.com/rvbl-protocol/rvbl-go/pkg/target"
	"github.com/rvbl-protocol/rvbl-go/pkg/transport"
)

// DefaultWaitTimeout is used by "wait" without an explicit timeout.
const DefaultWaitTimeout = 5 * time.Second

// Console drives a target by hand. Target output is echoed as it arrives.
type Console struct {
	handle target.Handle
	stream *transport.Stream
	config engine.Config

	mu  sync.Mutex
	out io.Writer
}

// echoLogger prints target output to the console.
type echoLogger struct {
	c *Console
}

func (e echoLogger) Log(event log.Event) {
	if event.Data == nil || event.Direction != log.DirectionIn {
		return
	}
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	fmt.Fprint(e.c.out, transport.Printable(event.Data.Data))
}

// New attaches a console to a running target. Output goes to out until Run
// switches it to the readline terminal. transcript may be nil.
func New(h target.Handle, config engine.Config, out io.Writer, transcript log.Logger) *Console {
	c := &Console{handle: h, config: config, out: out}

	var logger log.Logger = echoLogger{c}
	if transcript != nil {
		logger = log.NewMultiLogger(logger, transcript)
	}
	c.stream = transport.NewStream(h, h,
		transport.WithTargetName(h.String()),
		transport.WithTranscript(logger),
	)
	return c
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rvbl> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	c.mu.Lock()
	c.out = rl.Stdout()
	c.mu.Unlock()

	c.printHelp()
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			c.printf("Exiting...\n")
			return nil
		}
		if c.Execute(ctx, line) {
			return nil
		}
	}
}

// Execute runs one command line. It reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "wait", "w":
		err = c.cmdWait(ctx, args)
	case "update", "u":
		err = c.cmdUpdate()
	case "announce", "a":
		err = c.cmdAnnounce(ctx, args)
	case "upload":
		err = c.cmdUpload(ctx, args)
	case "upload-file":
		err = c.cmdUploadFile(ctx, args)
	case "send", "s":
		err = c.send([]byte(strings.Join(args, " ") + "\n"))
	case "raw":
		err = c.cmdRaw(args)
	case "crc":
		err = c.cmdCRC(args)
	case "status":
		c.cmdStatus()
	case "quit", "exit", "q":
		c.printf("Exiting...\n")
		return true
	default:
		c.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		c.printf("Error: %v\n", err)
	}
	return false
}

func (c *Console) printHelp() {
	c.printf(`
RVBL Console Commands:
  Protocol:
    wait <pattern> [timeout] - Wait for target output (default %s)
    update                   - Send the update command ("u")
    announce <size>          - Send "SEND <size>"
    upload <size>            - Stream a generated payload plus padding
    upload-file <path>       - Stream a firmware image plus padding

  Raw I/O:
    send <text>              - Send a line of text
    raw <hex>                - Send raw bytes, e.g. raw 75

  General:
    crc <size>               - Show the CRC-32 of a generated payload
    status                   - Show whether the target is running
    help                     - Show this help
    quit                     - Exit console
`, DefaultWaitTimeout)
}

// fresh drops output queued so far, so the next wait sees only the reply
// to the command about to be sent. The bytes were already echoed.
func (c *Console) fresh() {
	c.stream.Discard(context.Background(), 0)
}

func (c *Console) send(data []byte) error {
	c.fresh()
	return c.stream.Send(data)
}

func (c *Console) cmdWait(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: wait <pattern> [timeout]")
	}
	timeout := DefaultWaitTimeout
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		timeout = d
	}
	start := time.Now()
	if _, err := c.stream.WaitFor(ctx, args[0], timeout); err != nil {
		return err
	}
	c.printf("\n[matched %q after %s]\n", args[0], time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Console) cmdUpdate() error {
	return c.send([]byte(c.config.Commands.Update))
}

func (c *Console) cmdAnnounce(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: announce <size>")
	}
	size, err := strconv.Atoi(args[0])
	if err != nil || size < 0 {
		return fmt.Errorf("invalid size %q", args[0])
	}
	p, err := payload.Generate(size)
	if err != nil {
		return err
	}
	cmd := engine.Interpolate(c.config.Commands.Send, engine.PayloadVars(p))
	c.fresh()
	return c.stream.SendPaced(ctx, []byte(cmd), c.config.Pacing.Command)
}

func (c *Console) cmdUpload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: upload <size>")
	}
	size, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid size %q", args[0])
	}
	p, err := payload.Generate(size)
	if err != nil {
		return err
	}
	return c.upload(ctx, p)
}

func (c *Console) cmdUploadFile(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: upload-file <path>")
	}
	p, err := payload.Load(args[0])
	if err != nil {
		return err
	}
	return c.upload(ctx, p)
}

func (c *Console) upload(ctx context.Context, p payload.Payload) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.printf("Uploading %s\n", p)
	c.fresh()
	start := time.Now()
	if err := c.stream.SendPaced(ctx, p.Data, c.config.Pacing.Payload); err != nil {
		return err
	}
	pad := make([]byte, c.config.Padding.Size)
	for i := range pad {
		pad[i] = c.config.Padding.Byte
	}
	if err := c.stream.SendPaced(ctx, pad, c.config.Pacing.Payload); err != nil {
		return err
	}
	c.printf("Sent %d bytes + %d padding in %s\n", p.Len(), len(pad), time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Console) cmdRaw(args []string) error {
	data, err := hex.DecodeString(strings.Join(args, ""))
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	if len(data) == 0 {
		return errors.New("usage: raw <hex>")
	}
	return c.send(data)
}

func (c *Console) cmdCRC(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: crc <size>")
	}
	size, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid size %q", args[0])
	}
	p, err := payload.Generate(size)
	if err != nil {
		return err
	}
	c.printf("%s\n", p)
	return nil
}

func (c *Console) cmdStatus() {
	state := "running"
	if !c.handle.Alive() {
		state = "exited"
	}
	c.printf("Target: %s (%s)\n", c.handle, state)
}
