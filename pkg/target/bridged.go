package target

import (
	"context"
	"errors"
	"time"
)

// BridgedLauncher starts a process whose console is reached through a
// separate connection, e.g. an emulator serving its UART on a TCP port.
type BridgedLauncher struct {
	// Process starts the emulator.
	Process Launcher

	// Console connects to its serial port once it is running.
	Console Launcher
}

// Launch starts the process, then connects to its console.
func (l *BridgedLauncher) Launch(ctx context.Context) (Handle, error) {
	proc, err := l.Process.Launch(ctx)
	if err != nil {
		return nil, err
	}
	console, err := l.Console.Launch(ctx)
	if err != nil {
		_ = proc.Terminate(DefaultGrace)
		return nil, err
	}
	return &bridgedHandle{Handle: console, proc: proc}, nil
}

type bridgedHandle struct {
	Handle
	proc Handle
}

func (h *bridgedHandle) Alive() bool {
	return h.proc.Alive() && h.Handle.Alive()
}

func (h *bridgedHandle) Terminate(grace time.Duration) error {
	return errors.Join(h.Handle.Terminate(grace), h.proc.Terminate(grace))
}

func (h *bridgedHandle) String() string {
	return h.proc.String() + " via " + h.Handle.String()
}
