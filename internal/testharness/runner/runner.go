// Package runner runs update sessions against real or simulated targets:
// it launches the target, drives the exchange and always tears the target down.
package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rvbl-protocol/rvbl-go/internal/testharness/engine"
	"github.com/rvbl-protocol/rvbl-go/internal/testharness/reporter"
	"github.com/rvbl-protocol/rvbl-go/pkg/log"
	"github.com/rvbl-protocol/rvbl-go/pkg/payload"
	"github.com/rvbl-protocol/rvbl-go/pkg/target"
	"github.com/rvbl-protocol/rvbl-go/pkg/transport"
)

// DefaultKillStaleWait bounds how long stale emulators get to exit.
const DefaultKillStaleWait = 2 * time.Second

// Config configures the runner.
type Config struct {
	// Launcher starts the target for each session.
	Launcher target.Launcher

	// Engine is the driver configuration.
	Engine engine.Config

	// Payload is the image uploaded in each session.
	Payload payload.Payload

	// Grace is passed to Handle.Terminate (default target.DefaultGrace).
	Grace time.Duration

	// KillStale names a process to kill before launching (e.g. the
	// emulator binary). Empty disables the cleanup.
	KillStale string

	// Observer receives live stage progress.
	Observer engine.Observer

	// Reporter receives the final result. Optional.
	Reporter reporter.Reporter

	// ProtocolLogger receives the protocol transcript.
	// Set to nil to disable protocol logging.
	ProtocolLogger log.Logger

	// Logger receives operational logs. Nil disables logging.
	Logger *slog.Logger
}

// Runner executes update sessions.
type Runner struct {
	config *Config
}

// New creates a runner.
func New(config *Config) *Runner {
	if config.Grace == 0 {
		config.Grace = target.DefaultGrace
	}
	return &Runner{config: config}
}

// Run performs one session: launch, drive, tear down. The target is
// terminated on every path, including interruption. It never returns nil.
func (r *Runner) Run(ctx context.Context) *engine.RunResult {
	result := r.run(ctx)
	if r.config.Reporter != nil {
		r.config.Reporter.ReportRun(result)
	}
	return result
}

func (r *Runner) run(ctx context.Context) *engine.RunResult {
	cfg := r.config
	sessionID := uuid.New().String()

	if cfg.Launcher == nil {
		return engine.NewSetupFailure(sessionID, "", cfg.Payload, "no target configured", errors.New("launcher is nil"))
	}

	if cfg.KillStale != "" {
		n, err := target.KillStale(ctx, cfg.KillStale, DefaultKillStaleWait)
		switch {
		case err != nil:
			r.logWarn("stale process cleanup failed", "name", cfg.KillStale, "error", err)
		case n > 0:
			r.logInfo("killed stale processes", "name", cfg.KillStale, "count", n)
		}
	}

	h, err := cfg.Launcher.Launch(ctx)
	if err != nil {
		reason := "target could not be launched"
		if errors.Is(err, target.ErrExecutableNotFound) {
			reason = "emulator not found"
		}
		if ctx.Err() != nil {
			res := engine.NewSetupFailure(sessionID, "", cfg.Payload, reason, errors.Join(engine.ErrInterrupted, err))
			res.Interrupted = true
			return res
		}
		return engine.NewSetupFailure(sessionID, "", cfg.Payload, reason, err)
	}
	defer func() {
		if err := h.Terminate(cfg.Grace); err != nil {
			r.logWarn("target teardown reported an error", "target", h.String(), "error", err)
		}
	}()
	r.logInfo("target launched", "target", h.String(), "session", sessionID)

	transcript := cfg.ProtocolLogger
	if transcript == nil {
		transcript = log.NoopLogger{}
	}

	stream := transport.NewStream(h, h,
		transport.WithSessionID(sessionID),
		transport.WithTargetName(h.String()),
		transport.WithTranscript(transcript),
		transport.WithLogger(cfg.Logger),
	)

	opts := []engine.DriverOption{
		engine.WithLiveness(h.Alive),
		engine.WithTargetName(h.String()),
		engine.WithTranscript(transcript),
		engine.WithLogger(cfg.Logger),
	}
	if cfg.Observer != nil {
		opts = append(opts, engine.WithObserver(cfg.Observer))
	}
	return engine.NewDriver(stream, cfg.Payload, cfg.Engine, opts...).Run(ctx)
}

func (r *Runner) logInfo(msg string, args ...any) {
	if r.config.Logger != nil {
		r.config.Logger.Info(msg, args...)
	}
}

func (r *Runner) logWarn(msg string, args ...any) {
	if r.config.Logger != nil {
		r.config.Logger.Warn(msg, args...)
	}
}

// Close releases resources held by the protocol logger, if it has any.
func (r *Runner) Close() error {
	if c, ok := r.config.ProtocolLogger.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
