//go:build windows

package target

import "os"

// terminateProcess has no graceful variant on Windows.
func terminateProcess(p *os.Process) error {
	return p.Kill()
}
