package target

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ProcessLauncher starts a local process and talks to it over stdio.
// Stderr is merged into stdout through a single pipe so diagnostics appear
// in the same stream as the console.
type ProcessLauncher struct {
	// Path is the executable.
	Path string

	// Args are the command-line arguments (without argv[0]).
	Args []string

	// Dir is the working directory. Empty uses the current directory.
	Dir string

	// Env extends the inherited environment.
	Env []string

	// StartupDelay is slept after the process starts.
	StartupDelay time.Duration

	// Logger receives operational logs. Nil disables logging.
	Logger *slog.Logger
}

// Launch starts the process.
func (l *ProcessLauncher) Launch(ctx context.Context) (Handle, error) {
	cmd := exec.Command(l.Path, l.Args...)
	cmd.Dir = l.Dir
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrLaunchFailed, err)
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("%w: output pipe: %v", ErrLaunchFailed, err)
	}
	cmd.Stdout = outW
	cmd.Stderr = outW

	if err := cmd.Start(); err != nil {
		stdin.Close()
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrLaunchFailed, l.Path, err)
	}
	// The child holds its own copy of the write end.
	outW.Close()

	h := &processHandle{
		cmd:    cmd,
		stdin:  stdin,
		stdout: outR,
		exited: make(chan struct{}),
		desc:   strings.Join(append([]string{l.Path}, l.Args...), " "),
		logger: l.Logger,
	}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.exited)
	}()

	if l.Logger != nil {
		l.Logger.Info("target started", "pid", cmd.Process.Pid, "cmd", h.desc)
	}

	if l.StartupDelay > 0 {
		t := time.NewTimer(l.StartupDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			_ = h.Terminate(0)
			return nil, ctx.Err()
		}
	}
	return h, nil
}

type processHandle struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	desc   string
	logger *slog.Logger

	exited  chan struct{}
	waitErr error

	once    sync.Once
	termErr error
}

func (h *processHandle) Read(p []byte) (int, error)  { return h.stdout.Read(p) }
func (h *processHandle) Write(p []byte) (int, error) { return h.stdin.Write(p) }
func (h *processHandle) String() string              { return h.desc }

// Pid returns the process ID.
func (h *processHandle) Pid() int {
	return h.cmd.Process.Pid
}

func (h *processHandle) Alive() bool {
	select {
	case <-h.exited:
		return false
	default:
		return true
	}
}

// ExitErr returns the result of waiting for the process, once it exited.
func (h *processHandle) ExitErr() error {
	select {
	case <-h.exited:
		return h.waitErr
	default:
		return nil
	}
}

func (h *processHandle) Terminate(grace time.Duration) error {
	h.once.Do(func() {
		h.termErr = h.terminate(grace)
	})
	return h.termErr
}

func (h *processHandle) terminate(grace time.Duration) error {
	_ = h.stdin.Close()

	if h.Alive() {
		if err := terminateProcess(h.cmd.Process); err != nil && h.logger != nil {
			h.logger.Debug("graceful terminate failed", "pid", h.Pid(), "error", err)
		}

		t := time.NewTimer(grace)
		select {
		case <-h.exited:
			t.Stop()
		case <-t.C:
			if h.logger != nil {
				h.logger.Warn("target did not exit, killing", "pid", h.Pid(), "grace", grace)
			}
			if err := h.cmd.Process.Kill(); err != nil && h.Alive() {
				_ = h.stdout.Close()
				return fmt.Errorf("kill pid %d: %w", h.Pid(), err)
			}
			<-h.exited
		}
	}

	_ = h.stdout.Close()
	if h.logger != nil {
		h.logger.Info("target stopped", "pid", h.Pid())
	}
	return nil
}
