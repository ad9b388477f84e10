package target

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rvbl-protocol/rvbl-go/pkg/sim"
)

// SimLauncher runs the simulated bootloader in-process over pipes.
type SimLauncher struct {
	// Target is the simulator to run. If nil, one is created from Config.
	Target *sim.Target

	// Config is used when Target is nil.
	Config sim.Config
}

// Launch starts one boot of the simulated target.
func (l *SimLauncher) Launch(ctx context.Context) (Handle, error) {
	t := l.Target
	if t == nil {
		t = sim.New(l.Config)
	}

	hostR, targetW := io.Pipe()
	targetR, hostW := io.Pipe()
	serveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	h := &simHandle{
		hostR:  hostR,
		hostW:  hostW,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		h.serveErr = t.Serve(serveCtx, targetR, targetW)
		close(h.done)
		targetW.Close()
		targetR.Close()
	}()
	return h, nil
}

type simHandle struct {
	hostR  *io.PipeReader
	hostW  *io.PipeWriter
	cancel context.CancelFunc

	done     chan struct{}
	serveErr error
	termErr  error

	once sync.Once
}

func (h *simHandle) Read(p []byte) (int, error)  { return h.hostR.Read(p) }
func (h *simHandle) Write(p []byte) (int, error) { return h.hostW.Write(p) }
func (h *simHandle) String() string              { return "sim" }

func (h *simHandle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Terminate closes the host side of both pipes, which ends the simulator.
// It returns the simulator's own failure, if it had one.
func (h *simHandle) Terminate(grace time.Duration) error {
	h.once.Do(func() {
		h.cancel()
		h.hostW.Close()
		h.hostR.Close()

		t := time.NewTimer(grace)
		defer t.Stop()
		select {
		case <-h.done:
			if h.serveErr != nil && !errors.Is(h.serveErr, context.Canceled) &&
				!errors.Is(h.serveErr, io.ErrClosedPipe) {
				h.termErr = h.serveErr
			}
		case <-t.C:
		}
	})
	return h.termErr
}
