package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvbl-protocol/rvbl-go/internal/testharness/engine"
	rlog "github.com/rvbl-protocol/rvbl-go/pkg/log"
	"github.com/rvbl-protocol/rvbl-go/pkg/payload"
	"github.com/rvbl-protocol/rvbl-go/pkg/sim"
	"github.com/rvbl-protocol/rvbl-go/pkg/target"
	"github.com/rvbl-protocol/rvbl-go/pkg/transport"
)

// fastConfig keeps the default markers and commands but shrinks every delay.
func fastConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Timeouts = engine.Timeouts{
		Boot:       2 * time.Second,
		UpdateMode: 2 * time.Second,
		Ready:      2 * time.Second,
		CRCPrompt:  5 * time.Second,
		CRCResult:  2 * time.Second,
		Reboot:     time.Second,
	}
	cfg.Pacing = engine.Pacing{}
	cfg.Settle = engine.Settle{Min: 10 * time.Millisecond}
	cfg.ProgressEvery = 256
	return cfg
}

type session struct {
	handle target.Handle
	stream *transport.Stream
	sim    *sim.Target
}

func startSim(t *testing.T, faults sim.Faults) *session {
	t.Helper()
	st := sim.New(sim.Config{Faults: faults})
	h, err := (&target.SimLauncher{Target: st}).Launch(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Terminate(time.Second) })
	return &session{
		handle: h,
		stream: transport.NewStream(h, h, transport.WithTargetName(h.String())),
		sim:    st,
	}
}

func (s *session) run(t *testing.T, ctx context.Context, p payload.Payload, cfg engine.Config, opts ...engine.DriverOption) *engine.RunResult {
	t.Helper()
	opts = append([]engine.DriverOption{engine.WithLiveness(s.handle.Alive)}, opts...)
	result := engine.NewDriver(s.stream, p, cfg, opts...).Run(ctx)
	require.NotNil(t, result)
	return result
}

func mustGenerate(t *testing.T, size int) payload.Payload {
	t.Helper()
	p, err := payload.Generate(size)
	require.NoError(t, err)
	return p
}

func requireFailure(t *testing.T, result *engine.RunResult, stage engine.Stage, kind error) *engine.StageResult {
	t.Helper()
	require.False(t, result.Passed)
	assert.Equal(t, 1, result.ExitCode())
	failed := result.FailedStage()
	require.NotNil(t, failed, "no failed stage in %+v", result)
	assert.Equal(t, stage, failed.Stage)
	assert.ErrorIs(t, failed.Error, kind)
	assert.ErrorIs(t, result.Error, kind)
	return failed
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []engine.Stage
	indexes  []int
	finished []*engine.StageResult
	progress [][2]int
}

func (o *recordingObserver) StageStarted(stage engine.Stage, index, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, stage)
	o.indexes = append(o.indexes, index*10+total)
}

func (o *recordingObserver) StageFinished(r *engine.StageResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, r)
}

func (o *recordingObserver) Progress(sent, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = append(o.progress, [2]int{sent, total})
}

type recordingTranscript struct {
	mu     sync.Mutex
	events []rlog.Event
}

func (r *recordingTranscript) Log(e rlog.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingTranscript) byCategory(c rlog.Category) []rlog.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []rlog.Event
	for _, e := range r.events {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

func TestRunHappyPath(t *testing.T) {
	s := startSim(t, sim.Faults{})
	p := mustGenerate(t, 1024)
	obs := &recordingObserver{}
	tr := &recordingTranscript{}

	result := s.run(t, context.Background(), p, fastConfig(),
		engine.WithObserver(obs),
		engine.WithTranscript(tr),
		engine.WithTargetName("sim"))

	require.True(t, result.Passed, "run failed: %v", result.Error)
	assert.Equal(t, 0, result.ExitCode())
	assert.NoError(t, result.Error)
	assert.True(t, result.RebootSeen)
	assert.Equal(t, "sim", result.Target)
	assert.Equal(t, s.stream.SessionID(), result.SessionID)
	assert.Equal(t, 1024, result.PayloadSize)
	require.NotNil(t, result.ReportedCRC32)
	assert.Equal(t, p.CRC32, *result.ReportedCRC32)

	require.Len(t, result.Stages, 6)
	for i, stage := range engine.ProtocolStages() {
		assert.Equal(t, stage, result.Stages[i].Stage)
		assert.Equal(t, engine.StatusPassed, result.Stages[i].Status)
	}
	assert.Equal(t, engine.ProtocolStages(), obs.started)
	assert.Equal(t, []int{16, 26, 36, 46, 56, 66}, obs.indexes)
	assert.Len(t, obs.finished, 6)
	assert.Equal(t, [][2]int{{256, 1024}, {512, 1024}, {768, 1024}, {1024, 1024}}, obs.progress)

	// The simulator saw exactly the payload, not the padding.
	last := s.sim.LastSession()
	assert.Equal(t, 1024, last.Announced)
	assert.Equal(t, p.Data, last.Image)
	assert.True(t, last.Verified)

	stages := tr.byCategory(rlog.CategoryStage)
	require.Len(t, stages, 6)
	assert.Equal(t, "await_boot", stages[0].Change.NewStage)
	assert.Empty(t, stages[0].Change.OldStage)
	assert.Equal(t, "await_boot", stages[1].Change.OldStage)
	assert.Equal(t, "passed", stages[1].Change.Outcome)
	assert.Empty(t, tr.byCategory(rlog.CategoryError))
}

func TestRunBootTimeoutUnrelatedOutput(t *testing.T) {
	s := startSim(t, sim.Faults{SilentBoot: true})
	cfg := fastConfig()
	cfg.Timeouts.Boot = 300 * time.Millisecond

	start := time.Now()
	result := s.run(t, context.Background(), mustGenerate(t, 64), cfg)
	assert.Less(t, time.Since(start), 2*time.Second)

	failed := requireFailure(t, result, engine.StageAwaitBoot, engine.ErrStageTimeout)
	assert.Equal(t, "BOOT?", failed.Expected)
	assert.Contains(t, string(failed.Observed), "RVBL bootloader")
	assert.NotContains(t, string(failed.Observed), "BOOT?")
	assert.Len(t, result.Stages, 1)
}

func TestRunBootTimeoutSilentTarget(t *testing.T) {
	r, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })
	stream := transport.NewStream(r, io.Discard)
	cfg := fastConfig()
	cfg.Timeouts.Boot = 200 * time.Millisecond

	result := engine.NewDriver(stream, mustGenerate(t, 64), cfg).Run(context.Background())

	failed := requireFailure(t, result, engine.StageAwaitBoot, engine.ErrStageTimeout)
	assert.Empty(t, failed.Observed)
	var se *engine.StageError
	require.ErrorAs(t, result.Error, &se)
	assert.Equal(t, engine.StageAwaitBoot, se.Stage)
	assert.Equal(t, "BOOT?", se.Expected)
}

func TestRunStreamClosedAfterUpdateMode(t *testing.T) {
	s := startSim(t, sim.Faults{ExitAfterUpdateMode: true})
	cfg := fastConfig()
	cfg.Timeouts.Ready = 5 * time.Second

	start := time.Now()
	result := s.run(t, context.Background(), mustGenerate(t, 64), cfg)

	requireFailure(t, result, engine.StagePrepareUpload, engine.ErrStreamClosed)
	assert.NotErrorIs(t, result.Error, engine.ErrStageTimeout)
	assert.Less(t, time.Since(start), 4*time.Second, "closed stream must not wait for the timeout")
}

func TestRunRejectUpdate(t *testing.T) {
	s := startSim(t, sim.Faults{RejectUpdate: true})
	cfg := fastConfig()
	cfg.Timeouts.UpdateMode = 300 * time.Millisecond

	result := s.run(t, context.Background(), mustGenerate(t, 64), cfg)

	failed := requireFailure(t, result, engine.StageEnterUpdateMode, engine.ErrTargetRejected)
	assert.Contains(t, string(failed.Observed), "ERR")
	assert.Equal(t, "target_rejected", engine.KindName(result.Error))
}

func TestRunZeroLengthRejectedByPolicy(t *testing.T) {
	conn := &untouchedConn{t: t}
	cfg := fastConfig()
	cfg.ZeroLength = engine.ZeroLengthReject

	result := engine.NewDriver(conn, mustGenerate(t, 0), cfg).Run(context.Background())

	requireFailure(t, result, engine.StageSetup, engine.ErrSetup)
	assert.ErrorIs(t, result.Error, payload.ErrEmpty)
	var se *engine.SetupError
	assert.ErrorAs(t, result.Error, &se)
	assert.Len(t, result.Stages, 1)
}

func TestRunZeroLengthAllowed(t *testing.T) {
	s := startSim(t, sim.Faults{AcceptZeroLength: true})
	cfg := fastConfig()
	cfg.ZeroLength = engine.ZeroLengthAllow
	obs := &recordingObserver{}

	result := s.run(t, context.Background(), mustGenerate(t, 0), cfg, engine.WithObserver(obs))

	require.True(t, result.Passed, "run failed: %v", result.Error)
	stream := result.Stage(engine.StageStreamPayload)
	require.NotNil(t, stream)
	assert.Equal(t, engine.StatusSkipped, stream.Status)
	assert.True(t, stream.Passed())
	assert.Empty(t, obs.progress)
	require.NotNil(t, result.ReportedCRC32)
	assert.Equal(t, uint32(0), *result.ReportedCRC32)
	assert.Equal(t, 0, s.sim.LastSession().Announced)
}

func TestRunZeroLengthAllowedButRefusedByTarget(t *testing.T) {
	s := startSim(t, sim.Faults{})
	cfg := fastConfig()
	cfg.ZeroLength = engine.ZeroLengthAllow
	cfg.Timeouts.Ready = 300 * time.Millisecond

	result := s.run(t, context.Background(), mustGenerate(t, 0), cfg)

	requireFailure(t, result, engine.StagePrepareUpload, engine.ErrTargetRejected)
}

func TestRunOversizePayload(t *testing.T) {
	conn := &untouchedConn{t: t}
	big := payload.FromBytes(make([]byte, payload.MaxAppSize+1))

	result := engine.NewDriver(conn, big, fastConfig()).Run(context.Background())

	requireFailure(t, result, engine.StageSetup, engine.ErrSetup)
	assert.ErrorIs(t, result.Error, payload.ErrTooLarge)
}

func TestRunCorruptFlash(t *testing.T) {
	tests := []struct {
		name   string
		strict bool
		kind   error
	}{
		{"strict", true, engine.ErrIntegrityMismatch},
		{"lenient", false, engine.ErrTargetRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := startSim(t, sim.Faults{CorruptFlash: true})
			cfg := fastConfig()
			cfg.StrictCRC = tt.strict
			cfg.Timeouts.CRCResult = 300 * time.Millisecond
			p := mustGenerate(t, 256)

			result := s.run(t, context.Background(), p, cfg)

			failed := requireFailure(t, result, engine.StageAwaitIntegrityCheck, tt.kind)
			require.NotNil(t, result.ReportedCRC32)
			assert.NotEqual(t, p.CRC32, *result.ReportedCRC32)
			assert.Contains(t, string(failed.Observed), "CRC32=0x")
		})
	}
}

func TestRunHangAfterUpload(t *testing.T) {
	s := startSim(t, sim.Faults{HangAfterUpload: true})
	cfg := fastConfig()
	cfg.Timeouts.CRCPrompt = 300 * time.Millisecond

	result := s.run(t, context.Background(), mustGenerate(t, 128), cfg)

	failed := requireFailure(t, result, engine.StageAwaitIntegrityCheck, engine.ErrStageTimeout)
	assert.Equal(t, "CRC?", failed.Expected)
	assert.True(t, result.Stage(engine.StageStreamPayload).Passed())
}

func TestRunMissingRebootIsInformational(t *testing.T) {
	s := startSim(t, sim.Faults{NoReboot: true})
	cfg := fastConfig()
	cfg.Timeouts.Reboot = 200 * time.Millisecond

	result := s.run(t, context.Background(), mustGenerate(t, 128), cfg)

	require.True(t, result.Passed, "run failed: %v", result.Error)
	assert.False(t, result.RebootSeen)
	final := result.Stage(engine.StageFinalize)
	require.NotNil(t, final)
	assert.Equal(t, engine.StatusPassed, final.Status)
	assert.Contains(t, final.Note, "REBOOT")
}

func TestRunTargetDiesDuringSettle(t *testing.T) {
	s := startSim(t, sim.Faults{})

	result := s.run(t, context.Background(), mustGenerate(t, 64), fastConfig(),
		engine.WithLiveness(func() bool { return false }))

	failed := requireFailure(t, result, engine.StageStreamPayload, engine.ErrStreamClosed)
	assert.Equal(t, "target alive", failed.Expected)
}

func TestRunInterrupted(t *testing.T) {
	s := startSim(t, sim.Faults{SilentBoot: true})
	cfg := fastConfig()
	cfg.Timeouts.Boot = 10 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	result := s.run(t, ctx, mustGenerate(t, 64), cfg)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, result.Interrupted)
	requireFailure(t, result, engine.StageAwaitBoot, engine.ErrInterrupted)
	assert.Equal(t, "interrupted", engine.KindName(result.Error))
}

func TestRunSendFailure(t *testing.T) {
	conn := &scriptedConn{sendErr: &transport.SendError{Offset: 0, Err: io.ErrClosedPipe}}

	result := engine.NewDriver(conn, mustGenerate(t, 16), fastConfig()).Run(context.Background())

	requireFailure(t, result, engine.StageEnterUpdateMode, engine.ErrSendFailure)
	assert.ErrorIs(t, result.Error, io.ErrClosedPipe)
}

func TestRunBrokenPipeBeforeEndOfStream(t *testing.T) {
	done := make(chan struct{})
	conn := &scriptedConn{sendErr: &transport.SendError{Offset: 0, Err: io.ErrClosedPipe}, done: done}
	time.AfterFunc(20*time.Millisecond, func() { close(done) })

	result := engine.NewDriver(conn, mustGenerate(t, 64), fastConfig(),
		engine.WithLiveness(func() bool { return true }),
	).Run(context.Background())

	requireFailure(t, result, engine.StageEnterUpdateMode, engine.ErrStreamClosed)
	assert.ErrorIs(t, result.Error, io.ErrClosedPipe)
}

func TestRunCustomSendTemplate(t *testing.T) {
	conn := &scriptedConn{}
	cfg := fastConfig()
	cfg.Commands.Send = "LOAD {{ size }} {{crc32_hex}}\n"
	p := mustGenerate(t, 16)

	result := engine.NewDriver(conn, p, cfg).Run(context.Background())

	require.True(t, result.Passed, "run failed: %v", result.Error)
	require.GreaterOrEqual(t, len(conn.paced), 1)
	assert.Equal(t, fmt.Sprintf("LOAD 16 %08X\n", p.CRC32), conn.paced[0])
}

// untouchedConn fails the test on any target I/O.
type untouchedConn struct {
	t *testing.T
}

func (c *untouchedConn) WaitFor(context.Context, string, time.Duration) ([]byte, error) {
	c.t.Error("unexpected WaitFor")
	return nil, errors.New("unexpected")
}

func (c *untouchedConn) Discard(context.Context, time.Duration) []byte {
	c.t.Error("unexpected Discard")
	return nil
}

func (c *untouchedConn) Send([]byte) error {
	c.t.Error("unexpected Send")
	return nil
}

func (c *untouchedConn) SendString(string) error {
	c.t.Error("unexpected SendString")
	return nil
}

func (c *untouchedConn) SendPaced(context.Context, []byte, time.Duration) error {
	c.t.Error("unexpected SendPaced")
	return nil
}

func (c *untouchedConn) SetStage(string) {}

func (c *untouchedConn) SessionID() string { return "untouched" }

func (c *untouchedConn) Done() <-chan struct{} { return nil }

// scriptedConn matches every wait and records what was sent.
type scriptedConn struct {
	sendErr error
	paced   []string
	done    chan struct{}
}

func (c *scriptedConn) WaitFor(_ context.Context, pattern string, _ time.Duration) ([]byte, error) {
	return []byte(pattern), nil
}

func (c *scriptedConn) Discard(context.Context, time.Duration) []byte { return nil }

func (c *scriptedConn) Send([]byte) error { return c.sendErr }

func (c *scriptedConn) SendString(string) error { return c.sendErr }

func (c *scriptedConn) SendPaced(_ context.Context, data []byte, _ time.Duration) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.paced = append(c.paced, string(data))
	return nil
}

func (c *scriptedConn) SetStage(string) {}

func (c *scriptedConn) SessionID() string { return "scripted" }

// Done returns the done channel; a nil channel never ends.
func (c *scriptedConn) Done() <-chan struct{} { return c.done }

var (
	_ transport.Conn = (*untouchedConn)(nil)
	_ transport.Conn = (*scriptedConn)(nil)
)
