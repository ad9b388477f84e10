package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	rlog "github.com/rvbl-protocol/rvbl-go/pkg/log"
	"github.com/rvbl-protocol/rvbl-go/pkg/payload"
	"github.com/rvbl-protocol/rvbl-go/pkg/transport"
)

// crcReport matches the checksum line printed by the bootloader.
var crcReport = regexp.MustCompile(`CRC32=0x([0-9A-Fa-f]{8})`)

// sendFailureGrace bounds the wait for end of stream after a failed write.
const sendFailureGrace = 200 * time.Millisecond

// Observer receives live progress. Calls are made from the goroutine
// running Driver.Run and must not block.
type Observer interface {
	// StageStarted is called before a stage begins. index is 1-based
	// out of total protocol stages.
	StageStarted(stage Stage, index, total int)

	// StageFinished is called with the result of every stage reached.
	StageFinished(result *StageResult)

	// Progress reports payload bytes written so far.
	Progress(sent, total int)
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithObserver registers a progress observer.
func WithObserver(o Observer) DriverOption {
	return func(d *Driver) {
		d.observer = o
	}
}

// WithLogger sets the operational logger. Nil disables logging.
func WithLogger(logger *slog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithTranscript records stage transitions and failures.
func WithTranscript(logger rlog.Logger) DriverOption {
	return func(d *Driver) {
		if logger != nil {
			d.transcript = logger
		}
	}
}

// WithLiveness sets the check run after the settle delay. Without one the
// target is assumed alive.
func WithLiveness(alive func() bool) DriverOption {
	return func(d *Driver) {
		d.alive = alive
	}
}

// WithTargetName labels the result and transcript with the target description.
func WithTargetName(name string) DriverOption {
	return func(d *Driver) {
		d.target = name
	}
}

// Driver runs one update session over a connection.
// A Driver is single use; create a new one per session.
type Driver struct {
	conn    transport.Conn
	payload payload.Payload
	config  Config

	observer   Observer
	logger     *slog.Logger
	transcript rlog.Logger
	alive      func() bool
	target     string

	result  *RunResult
	current *StageResult
}

// NewDriver creates a driver sending p over conn.
func NewDriver(conn transport.Conn, p payload.Payload, config Config, opts ...DriverOption) *Driver {
	d := &Driver{
		conn:       conn,
		payload:    p,
		config:     config,
		transcript: rlog.NoopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes the stages in order and stops at the first failure.
// It never returns nil and never panics on target misbehaviour.
func (d *Driver) Run(ctx context.Context) *RunResult {
	d.result = &RunResult{
		SessionID:    d.conn.SessionID(),
		Target:       d.target,
		PayloadSize:  d.payload.Len(),
		PayloadCRC32: d.payload.CRC32,
		StartTime:    time.Now(),
	}
	defer d.finish()

	if err := d.setup(); err != nil {
		now := time.Now()
		d.record(&StageResult{
			Stage:     StageSetup,
			Status:    StatusFailed,
			Error:     err,
			StartTime: now,
		})
		d.result.Error = err
		d.logTranscriptError(StageSetup, err)
		return d.result
	}

	steps := []struct {
		stage Stage
		run   func(context.Context) error
	}{
		{StageAwaitBoot, d.awaitBoot},
		{StageEnterUpdateMode, d.enterUpdateMode},
		{StagePrepareUpload, d.prepareUpload},
		{StageStreamPayload, d.streamPayload},
		{StageAwaitIntegrityCheck, d.awaitIntegrityCheck},
		{StageFinalize, d.finalize},
	}

	prev := ""
	for i, step := range steps {
		if err := d.runStage(ctx, step.stage, i+1, len(steps), prev, step.run); err != nil {
			d.result.Error = err
			if errors.Is(err, ErrInterrupted) {
				d.result.Interrupted = true
			}
			return d.result
		}
		prev = step.stage.String()
	}

	d.result.Passed = true
	return d.result
}

func (d *Driver) finish() {
	d.result.EndTime = time.Now()
	d.result.Duration = d.result.EndTime.Sub(d.result.StartTime)
	if d.logger != nil {
		d.logger.Info("update session finished",
			"session", d.result.SessionID,
			"passed", d.result.Passed,
			"duration", d.result.Duration,
			"error", d.result.Error)
	}
}

// setup validates everything that can fail before any target I/O.
func (d *Driver) setup() error {
	if err := d.config.Validate(); err != nil {
		return &SetupError{Reason: "invalid configuration", Err: err}
	}
	if err := d.payload.Validate(); err != nil {
		if errors.Is(err, payload.ErrEmpty) {
			if d.config.ZeroLength == ZeroLengthAllow {
				return nil
			}
			return &SetupError{Reason: "zero-length payload rejected by policy", Err: err}
		}
		return &SetupError{Reason: "payload does not fit", Err: err}
	}
	return nil
}

func (d *Driver) runStage(ctx context.Context, stage Stage, index, total int, prev string, fn func(context.Context) error) error {
	d.conn.SetStage(stage.String())
	d.transcript.Log(rlog.Event{
		Timestamp: time.Now(),
		SessionID: d.result.SessionID,
		Direction: rlog.DirectionLocal,
		Category:  rlog.CategoryStage,
		Stage:     stage.String(),
		Target:    d.target,
		Change: &rlog.StageEvent{
			OldStage: prev,
			NewStage: stage.String(),
			Outcome:  outcomeOf(prev),
		},
	})
	if d.observer != nil {
		d.observer.StageStarted(stage, index, total)
	}
	if d.logger != nil {
		d.logger.Debug("stage started", "stage", stage, "index", index, "total", total)
	}

	d.current = &StageResult{
		Stage:     stage,
		Status:    StatusPassed,
		StartTime: time.Now(),
	}
	err := fn(ctx)
	sr := d.current
	sr.Duration = time.Since(sr.StartTime)
	if err != nil {
		sr.Status = StatusFailed
		sr.Error = err
		d.logTranscriptError(stage, err)
	}
	d.record(sr)
	return err
}

func outcomeOf(prev string) string {
	if prev == "" {
		return ""
	}
	return string(StatusPassed)
}

func (d *Driver) record(sr *StageResult) {
	d.result.Stages = append(d.result.Stages, sr)
	if d.observer != nil {
		d.observer.StageFinished(sr)
	}
	if d.logger != nil && sr.Status == StatusFailed {
		d.logger.Warn("stage failed", "stage", sr.Stage, "error", sr.Error,
			"observed", transport.Printable(sr.Observed))
	}
}

func (d *Driver) logTranscriptError(stage Stage, err error) {
	d.transcript.Log(rlog.Event{
		Timestamp: time.Now(),
		SessionID: d.result.SessionID,
		Direction: rlog.DirectionLocal,
		Category:  rlog.CategoryError,
		Stage:     stage.String(),
		Target:    d.target,
		Error: &rlog.ErrorEventData{
			Kind:    KindName(err),
			Message: err.Error(),
			Context: stage.String(),
		},
	})
}

// wait waits for marker and converts a miss into a *StageError.
func (d *Driver) wait(ctx context.Context, marker string, timeout time.Duration) ([]byte, error) {
	buf, err := d.conn.WaitFor(ctx, marker, timeout)
	d.current.Expected = marker
	d.current.Observed = buf
	if err == nil {
		return buf, nil
	}

	kind := classify(err)
	if ctx.Err() != nil {
		kind = ErrInterrupted
	} else if kind == ErrStageTimeout && d.rejected(buf) {
		kind = ErrTargetRejected
	}
	return buf, &StageError{
		Stage:    d.current.Stage,
		Kind:     kind,
		Expected: marker,
		Observed: buf,
		Err:      err,
	}
}

func (d *Driver) rejected(buf []byte) bool {
	for _, token := range d.config.Markers.Rejections {
		if token != "" && bytes.Contains(buf, []byte(token)) {
			return true
		}
	}
	return false
}

// fail builds a *StageError for a non-wait failure of the current stage.
// A write that failed because the target went away counts as a closed stream.
func (d *Driver) fail(ctx context.Context, expected string, err error) error {
	kind := classify(err)
	if kind == ErrSendFailure && ctx.Err() == nil && d.outputEnded(ctx) {
		kind = ErrStreamClosed
	}
	if ctx.Err() != nil {
		kind = ErrInterrupted
	}
	return &StageError{
		Stage:    d.current.Stage,
		Kind:     kind,
		Expected: expected,
		Err:      err,
	}
}

// outputEnded reports whether the target is gone after a failed write.
// A broken pipe can be seen before the reader reaches end of stream, so the
// reader gets up to sendFailureGrace to catch up.
func (d *Driver) outputEnded(ctx context.Context) bool {
	if d.alive != nil && !d.alive() {
		return true
	}
	timer := time.NewTimer(sendFailureGrace)
	defer timer.Stop()
	select {
	case <-d.conn.Done():
		return true
	case <-timer.C:
	case <-ctx.Done():
	}
	return d.alive != nil && !d.alive()
}

func (d *Driver) awaitBoot(ctx context.Context) error {
	_, err := d.wait(ctx, d.config.Markers.Boot, d.config.Timeouts.Boot)
	return err
}

func (d *Driver) enterUpdateMode(ctx context.Context) error {
	cmd := d.config.Commands.Update
	if err := d.conn.SendString(cmd); err != nil {
		return d.fail(ctx, cmd, err)
	}
	if err := sleep(ctx, d.config.Pacing.AfterUpdate); err != nil {
		return d.fail(ctx, d.config.Markers.UpdateOK, err)
	}
	if _, err := d.wait(ctx, d.config.Markers.UpdateOK, d.config.Timeouts.UpdateMode); err != nil {
		return err
	}

	if dropped := d.conn.Discard(ctx, d.config.Pacing.Drain); len(dropped) > 0 && d.logger != nil {
		d.logger.Debug("dropped output after update mode", "data", transport.Printable(dropped))
	}
	return nil
}

func (d *Driver) prepareUpload(ctx context.Context) error {
	cmd := Interpolate(d.config.Commands.Send, templateVars(d.payload.Len(), d.payload.CRC32))
	if err := d.conn.SendPaced(ctx, []byte(cmd), d.config.Pacing.Command); err != nil {
		return d.fail(ctx, cmd, err)
	}
	if err := sleep(ctx, d.config.Pacing.AfterSend); err != nil {
		return d.fail(ctx, d.config.Markers.Ready, err)
	}
	_, err := d.wait(ctx, d.config.Markers.Ready, d.config.Timeouts.Ready)
	return err
}

func (d *Driver) streamPayload(ctx context.Context) error {
	total := d.payload.Len()
	if total == 0 {
		d.current.Status = StatusSkipped
		d.current.Note = "zero-length payload, nothing streamed"
	} else {
		if err := d.sendPayload(ctx, total); err != nil {
			return err
		}
		if d.config.Padding.Size > 0 {
			pad := bytes.Repeat([]byte{d.config.Padding.Byte}, d.config.Padding.Size)
			if err := d.conn.SendPaced(ctx, pad, d.config.Pacing.Payload); err != nil {
				return d.fail(ctx, "padding", err)
			}
		}
	}

	settle := d.config.Settle.Duration(total)
	if d.logger != nil {
		d.logger.Debug("settling", "duration", settle)
	}
	if err := sleep(ctx, settle); err != nil {
		return d.fail(ctx, "settle", err)
	}

	if d.alive != nil && !d.alive() {
		d.current.Expected = "target alive"
		return &StageError{
			Stage:    StageStreamPayload,
			Kind:     ErrStreamClosed,
			Expected: "target alive",
			Err:      errors.New("target exited after upload"),
		}
	}
	return nil
}

// sendPayload writes the payload in chunks so progress can be reported.
func (d *Driver) sendPayload(ctx context.Context, total int) error {
	chunk := d.config.ProgressEvery
	if chunk <= 0 {
		chunk = total
	}

	sent := 0
	for sent < total {
		end := min(sent+chunk, total)
		if err := d.conn.SendPaced(ctx, d.payload.Data[sent:end], d.config.Pacing.Payload); err != nil {
			var se *transport.SendError
			if errors.As(err, &se) {
				err = &transport.SendError{Offset: sent + se.Offset, Err: se.Err}
			}
			return d.fail(ctx, "payload", err)
		}
		sent = end
		if d.observer != nil {
			d.observer.Progress(sent, total)
		}
		if sent < total {
			if err := sleep(ctx, d.config.Pacing.Payload); err != nil {
				return d.fail(ctx, "payload", err)
			}
		}
	}
	return nil
}

func (d *Driver) awaitIntegrityCheck(ctx context.Context) error {
	if _, err := d.wait(ctx, d.config.Markers.CRCPrompt, d.config.Timeouts.CRCPrompt); err != nil {
		return err
	}

	buf, waitErr := d.wait(ctx, d.config.Markers.CRCResult, d.config.Timeouts.CRCResult)
	if reported, ok := parseReportedCRC(buf); ok {
		d.result.ReportedCRC32 = &reported
		if reported != d.payload.CRC32 {
			mismatch := fmt.Errorf("target reported CRC32 0x%08X, payload has 0x%08X", reported, d.payload.CRC32)
			if d.config.StrictCRC {
				return &StageError{
					Stage:    StageAwaitIntegrityCheck,
					Kind:     ErrIntegrityMismatch,
					Expected: fmt.Sprintf("CRC32=0x%08X", d.payload.CRC32),
					Observed: buf,
					Err:      mismatch,
				}
			}
			d.current.Note = mismatch.Error()
			if d.logger != nil {
				d.logger.Warn("checksum mismatch ignored", "reported", fmt.Sprintf("0x%08X", reported),
					"expected", fmt.Sprintf("0x%08X", d.payload.CRC32))
			}
		}
	}
	return waitErr
}

// parseReportedCRC extracts the last CRC32=0x........ value from buf.
func parseReportedCRC(buf []byte) (uint32, bool) {
	matches := crcReport.FindAllSubmatch(buf, -1)
	if len(matches) == 0 {
		return 0, false
	}
	v, err := strconv.ParseUint(string(matches[len(matches)-1][1]), 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// finalize waits for the reboot notice. Its absence is only noted.
func (d *Driver) finalize(ctx context.Context) error {
	_, err := d.wait(ctx, d.config.Markers.Reboot, d.config.Timeouts.Reboot)
	if err == nil {
		d.result.RebootSeen = true
		return nil
	}
	if errors.Is(err, ErrInterrupted) {
		return err
	}
	d.current.Note = fmt.Sprintf("no %q notice: %s", d.config.Markers.Reboot, KindName(err))
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// NewSetupFailure returns the result of a session that failed before any
// target I/O, for example because the target could not be launched.
// err is wrapped in a *SetupError unless it already is one.
func NewSetupFailure(sessionID, target string, p payload.Payload, reason string, err error) *RunResult {
	if !errors.Is(err, ErrSetup) {
		err = &SetupError{Reason: reason, Err: err}
	}
	now := time.Now()
	return &RunResult{
		SessionID:    sessionID,
		Target:       target,
		PayloadSize:  p.Len(),
		PayloadCRC32: p.CRC32,
		Error:        err,
		Stages: []*StageResult{{
			Stage:     StageSetup,
			Status:    StatusFailed,
			Error:     err,
			StartTime: now,
		}},
		StartTime: now,
		EndTime:   now,
	}
}
