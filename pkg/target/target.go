package target

import (
	"context"
	"errors"
	"io"
	"time"
)

// DefaultGrace is how long Terminate waits after the graceful signal
// before forcing the target down.
const DefaultGrace = time.Second

// Target errors.
var (
	// ErrExecutableNotFound indicates the emulator binary could not be found.
	ErrExecutableNotFound = errors.New("executable not found")

	// ErrLaunchFailed indicates the target could not be started or reached.
	ErrLaunchFailed = errors.New("launch failed")
)

// Handle is a running target.
type Handle interface {
	// Read reads console output from the target.
	io.Reader

	// Write writes console input to the target.
	io.Writer

	// Alive reports whether the target is still running.
	Alive() bool

	// Terminate stops the target: a graceful request first, then a forced
	// stop after grace. It is idempotent.
	Terminate(grace time.Duration) error

	// String describes the target for logs and transcripts.
	String() string
}

// Launcher starts a target.
type Launcher interface {
	Launch(ctx context.Context) (Handle, error)
}

// Compile-time interface satisfaction checks.
var (
	_ Launcher = (*ProcessLauncher)(nil)
	_ Launcher = (*SimLauncher)(nil)
	_ Launcher = (*SerialLauncher)(nil)
	_ Launcher = (*TCPLauncher)(nil)
	_ Launcher = (*TelnetLauncher)(nil)

	_ Handle = (*processHandle)(nil)
	_ Handle = (*simHandle)(nil)
	_ Handle = (*connHandle)(nil)
)
