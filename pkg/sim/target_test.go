package sim_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvbl-protocol/rvbl-go/pkg/payload"
	"github.com/rvbl-protocol/rvbl-go/pkg/sim"
	"github.com/rvbl-protocol/rvbl-go/pkg/transport"
)

type session struct {
	target *sim.Target
	stream *transport.Stream
	served chan error
}

// startTarget runs a simulated target on pipes and returns the host side.
func startTarget(t *testing.T, cfg sim.Config) *session {
	t.Helper()

	hostR, targetW := io.Pipe()
	targetR, hostW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	target := sim.New(cfg)
	served := make(chan error, 1)
	go func() {
		err := target.Serve(ctx, targetR, targetW)
		targetW.Close()
		served <- err
	}()

	t.Cleanup(func() {
		cancel()
		hostW.Close()
		hostR.Close()
	})

	return &session{
		target: target,
		stream: transport.NewStream(hostR, hostW),
		served: served,
	}
}

func (s *session) expect(t *testing.T, pattern string) string {
	t.Helper()
	buf, err := s.stream.WaitFor(context.Background(), pattern, 2*time.Second)
	require.NoError(t, err, "waiting for %q, saw %q", pattern, buf)
	return string(buf)
}

func TestTargetHappyPath(t *testing.T) {
	s := startTarget(t, sim.Config{Version: "2.1"})
	p, err := payload.Generate(1024)
	require.NoError(t, err)

	banner := s.expect(t, sim.PromptBoot)
	assert.Contains(t, banner, "RVBL bootloader v2.1")

	require.NoError(t, s.stream.SendString("u"))
	s.expect(t, sim.ReplyOK)

	require.NoError(t, s.stream.SendString(fmt.Sprintf("SEND %d\n", p.Len())))
	s.expect(t, sim.ReplyReady)

	require.NoError(t, s.stream.Send(p.Data))
	require.NoError(t, s.stream.Send(make([]byte, 32)))

	s.expect(t, sim.PromptCRC)
	crcLine := s.expect(t, sim.ReplyOK)
	assert.Contains(t, crcLine, fmt.Sprintf("CRC32=0x%08X", p.CRC32))
	s.expect(t, sim.NoticeReboot)

	session := s.target.LastSession()
	assert.Equal(t, 1024, session.Announced)
	assert.Equal(t, 1024, session.Received)
	assert.True(t, session.Verified)
	assert.Equal(t, p.CRC32, session.CRC32)
	assert.Equal(t, p.Data, session.Image)
	assert.Equal(t, 1, s.target.Runs())
}

func TestTargetIgnoresNoiseBeforeUpdateKey(t *testing.T) {
	s := startTarget(t, sim.Config{})
	s.expect(t, sim.PromptBoot)

	require.NoError(t, s.stream.SendString("\r\nxyz"))
	_, err := s.stream.WaitFor(context.Background(), sim.ReplyOK, 100*time.Millisecond)
	assert.ErrorIs(t, err, transport.ErrWaitTimeout)

	require.NoError(t, s.stream.SendString("u"))
	s.expect(t, sim.ReplyOK)
}

func TestTargetSilentBoot(t *testing.T) {
	s := startTarget(t, sim.Config{Faults: sim.Faults{SilentBoot: true}})

	buf, err := s.stream.WaitFor(context.Background(), sim.PromptBoot, 200*time.Millisecond)
	assert.ErrorIs(t, err, transport.ErrWaitTimeout)
	assert.Contains(t, string(buf), "RVBL bootloader")
}

func TestTargetRejectUpdate(t *testing.T) {
	s := startTarget(t, sim.Config{Faults: sim.Faults{RejectUpdate: true}})
	s.expect(t, sim.PromptBoot)

	require.NoError(t, s.stream.SendString("u"))
	s.expect(t, sim.ReplyErr)
}

func TestTargetExitAfterUpdateMode(t *testing.T) {
	s := startTarget(t, sim.Config{Faults: sim.Faults{ExitAfterUpdateMode: true}})
	s.expect(t, sim.PromptBoot)

	require.NoError(t, s.stream.SendString("u"))
	s.expect(t, sim.ReplyOK)

	_, err := s.stream.WaitFor(context.Background(), sim.ReplyReady, 2*time.Second)
	assert.ErrorIs(t, err, transport.ErrStreamClosed)
	assert.NoError(t, <-s.served)
}

func TestTargetZeroLength(t *testing.T) {
	tests := []struct {
		name   string
		faults sim.Faults
		want   string
	}{
		{"rejected by default", sim.Faults{}, sim.ReplyErr},
		{"accepted", sim.Faults{AcceptZeroLength: true}, sim.ReplyReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := startTarget(t, sim.Config{Faults: tt.faults})
			s.expect(t, sim.PromptBoot)
			require.NoError(t, s.stream.SendString("u"))
			s.expect(t, sim.ReplyOK)

			require.NoError(t, s.stream.SendString("SEND 0\n"))
			s.expect(t, tt.want)
		})
	}
}

func TestTargetZeroLengthAcceptedCompletes(t *testing.T) {
	s := startTarget(t, sim.Config{Faults: sim.Faults{AcceptZeroLength: true}})
	s.expect(t, sim.PromptBoot)
	require.NoError(t, s.stream.SendString("u"))
	s.expect(t, sim.ReplyOK)
	require.NoError(t, s.stream.SendString("SEND 0\n"))
	s.expect(t, sim.ReplyReady)

	s.expect(t, sim.PromptCRC)
	assert.Contains(t, s.expect(t, sim.ReplyOK), "CRC32=0x00000000")
}

func TestTargetOversizeRejected(t *testing.T) {
	s := startTarget(t, sim.Config{MaxImageSize: 1024})
	s.expect(t, sim.PromptBoot)
	require.NoError(t, s.stream.SendString("u"))
	s.expect(t, sim.ReplyOK)

	require.NoError(t, s.stream.SendString("SEND 1025\n"))
	s.expect(t, sim.ReplyErr)

	assert.ErrorIs(t, s.target.LastSession().Err, sim.ErrSizeRejected)
}

func TestTargetMalformedSend(t *testing.T) {
	s := startTarget(t, sim.Config{})
	s.expect(t, sim.PromptBoot)
	require.NoError(t, s.stream.SendString("u"))
	s.expect(t, sim.ReplyOK)

	require.NoError(t, s.stream.SendString("SEND lots\n"))
	s.expect(t, sim.ReplyErr)
	assert.ErrorIs(t, s.target.LastSession().Err, sim.ErrBadCommand)
}

func TestTargetCorruptFlash(t *testing.T) {
	s := startTarget(t, sim.Config{Faults: sim.Faults{CorruptFlash: true}})
	p, err := payload.Generate(256)
	require.NoError(t, err)

	s.expect(t, sim.PromptBoot)
	require.NoError(t, s.stream.SendString("u"))
	s.expect(t, sim.ReplyOK)
	require.NoError(t, s.stream.SendString("SEND 256\n"))
	s.expect(t, sim.ReplyReady)
	require.NoError(t, s.stream.Send(p.Data))

	s.expect(t, sim.PromptCRC)
	out := s.expect(t, sim.ReplyFail)
	assert.NotContains(t, out, fmt.Sprintf("CRC32=0x%08X", p.CRC32))

	session := s.target.LastSession()
	assert.False(t, session.Verified)
	assert.NotEqual(t, p.CRC32, session.CRC32)
}

func TestTargetNoReboot(t *testing.T) {
	s := startTarget(t, sim.Config{Faults: sim.Faults{NoReboot: true}})
	s.expect(t, sim.PromptBoot)
	require.NoError(t, s.stream.SendString("u"))
	s.expect(t, sim.ReplyOK)
	require.NoError(t, s.stream.SendString("SEND 1\n"))
	s.expect(t, sim.ReplyReady)
	require.NoError(t, s.stream.Send([]byte{0x00}))
	s.expect(t, sim.PromptCRC)
	s.expect(t, sim.ReplyOK)

	_, err := s.stream.WaitFor(context.Background(), sim.NoticeReboot, 150*time.Millisecond)
	assert.ErrorIs(t, err, transport.ErrWaitTimeout)
}

func TestTargetBootWindow(t *testing.T) {
	s := startTarget(t, sim.Config{BootWindow: 50 * time.Millisecond})
	s.expect(t, sim.PromptBoot)
	s.expect(t, "booting application")
}

func TestTargetServeCancelled(t *testing.T) {
	targetR, hostW := io.Pipe()
	defer hostW.Close()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- sim.New(sim.Config{}).Serve(ctx, targetR, io.Discard)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
