package target

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// KillStale kills every process whose executable name is name (with or
// without a .exe suffix) and waits up to wait for them to disappear. It
// returns how many processes were killed.
func KillStale(ctx context.Context, name string, wait time.Duration) (int, error) {
	want := strings.TrimSuffix(filepath.Base(name), ".exe")

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, err
	}

	var killed []*process.Process
	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if strings.TrimSuffix(pname, ".exe") != want {
			continue
		}
		if err := p.KillWithContext(ctx); err != nil {
			continue
		}
		killed = append(killed, p)
	}

	deadline := time.Now().Add(wait)
	for _, p := range killed {
		for time.Now().Before(deadline) {
			if running, err := p.IsRunningWithContext(ctx); err != nil || !running {
				break
			}
			select {
			case <-time.After(20 * time.Millisecond):
			case <-ctx.Done():
				return len(killed), ctx.Err()
			}
		}
	}
	return len(killed), nil
}

// PIDAlive reports whether a process with the given PID is running.
func PIDAlive(pid int) bool {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	running, err := p.IsRunning()
	return err == nil && running
}
