package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rvbl-protocol/rvbl-go/internal/testharness/engine"
	"github.com/rvbl-protocol/rvbl-go/internal/testharness/loader"
	"github.com/rvbl-protocol/rvbl-go/pkg/log"
	"github.com/rvbl-protocol/rvbl-go/pkg/payload"
	"github.com/rvbl-protocol/rvbl-go/pkg/sim"
	"github.com/rvbl-protocol/rvbl-go/pkg/target"
)

// SuiteConfig configures a suite run against the simulator.
type SuiteConfig struct {
	// Engine is the base driver configuration; case overrides apply on top.
	Engine engine.Config

	// PayloadSize is used by cases that do not set their own.
	PayloadSize int

	// Sim is the base simulator configuration; case faults replace its faults.
	Sim sim.Config

	// StopOnFirstFailure stops after the first failed case. The suite file
	// can also request this.
	StopOnFirstFailure bool

	// OnCaseStart is called before each case runs.
	OnCaseStart func(c *loader.Case, index, total int)

	// OnCaseComplete is called after each case, including skipped ones.
	OnCaseComplete func(result *engine.CaseResult)

	// Observer receives live stage progress of every case.
	Observer engine.Observer

	// ProtocolLogger receives the transcript of every case.
	ProtocolLogger log.Logger

	// Logger receives operational logs. Nil disables logging.
	Logger *slog.Logger
}

// RunSuite runs every case of s against a fresh simulated target.
func RunSuite(ctx context.Context, s *loader.Suite, cfg SuiteConfig) *engine.SuiteResult {
	start := time.Now()
	result := &engine.SuiteResult{SuiteName: s.Name}
	stopOnFailure := cfg.StopOnFirstFailure || s.StopOnFirstFailure

	stopped := ""
	for i, c := range s.Cases {
		var cr *engine.CaseResult
		switch {
		case stopped != "":
			cr = skipped(c, stopped)
		case c.Skip != "":
			cr = skipped(c, c.Skip)
		default:
			if cfg.OnCaseStart != nil {
				cfg.OnCaseStart(c, i+1, len(s.Cases))
			}
			cr = runCase(ctx, c, cfg)
		}

		result.Add(cr)
		if cfg.OnCaseComplete != nil {
			cfg.OnCaseComplete(cr)
		}

		if stopped == "" {
			switch {
			case ctx.Err() != nil:
				stopped = "suite interrupted"
			case stopOnFailure && !cr.Passed && !cr.Skipped:
				stopped = "stopped after first failure"
			}
		}
	}

	result.Duration = time.Since(start)
	return result
}

func skipped(c *loader.Case, reason string) *engine.CaseResult {
	exp, _ := c.Expect.Expectation()
	return &engine.CaseResult{
		ID:         c.ID,
		Name:       c.Name,
		Expect:     exp,
		Skipped:    true,
		SkipReason: reason,
	}
}

func runCase(ctx context.Context, c *loader.Case, cfg SuiteConfig) *engine.CaseResult {
	cr := &engine.CaseResult{ID: c.ID, Name: c.Name}

	fail := func(format string, args ...any) *engine.CaseResult {
		cr.Message = fmt.Sprintf(format, args...)
		return cr
	}

	exp, err := c.Expect.Expectation()
	if err != nil {
		return fail("invalid expectation: %v", err)
	}
	cr.Expect = exp

	faults, err := c.Faults()
	if err != nil {
		return fail("invalid faults: %v", err)
	}

	engineCfg := cfg.Engine
	if err := c.Apply(&engineCfg); err != nil {
		return fail("invalid overrides: %v", err)
	}

	size := cfg.PayloadSize
	if c.PayloadSize != nil {
		size = *c.PayloadSize
	}
	p, err := payload.Generate(size)
	if err != nil {
		return fail("payload: %v", err)
	}

	simCfg := cfg.Sim
	simCfg.Faults = faults
	if simCfg.Logger == nil {
		simCfg.Logger = cfg.Logger
	}

	r := New(&Config{
		Launcher:       &target.SimLauncher{Config: simCfg},
		Engine:         engineCfg,
		Payload:        p,
		Observer:       cfg.Observer,
		ProtocolLogger: cfg.ProtocolLogger,
		Logger:         cfg.Logger,
	})
	cr.Run = r.Run(ctx)
	cr.Passed, cr.Message = exp.Check(cr.Run)
	return cr
}
