package target

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// LocateExecutable finds name on PATH, then in the given fallback paths,
// then in the usual install locations for the platform.
func LocateExecutable(name string, fallbacks ...string) (string, error) {
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}

	candidates := append(append([]string{}, fallbacks...), platformFallbacks(name, runtime.GOOS)...)
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, name)
}

func platformFallbacks(name, goos string) []string {
	switch goos {
	case "windows":
		exe := name
		if filepath.Ext(exe) != ".exe" {
			exe += ".exe"
		}
		return []string{
			`C:\Program Files\qemu\` + exe,
			`C:\Program Files (x86)\qemu\` + exe,
			`C:\qemu\` + exe,
		}
	case "darwin":
		return []string{
			"/opt/homebrew/bin/" + name,
			"/usr/local/bin/" + name,
		}
	default:
		return []string{
			"/usr/local/bin/" + name,
			"/usr/bin/" + name,
		}
	}
}
