//go:build !windows

package target

import (
	"os"

	"golang.org/x/sys/unix"
)

// terminateProcess asks the process to exit with SIGTERM.
func terminateProcess(p *os.Process) error {
	return unix.Kill(p.Pid, unix.SIGTERM)
}
