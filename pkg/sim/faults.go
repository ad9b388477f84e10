package sim

import (
	"fmt"
	"sort"
	"strings"
)

// Faults selects deviations from a well-behaved bootloader.
type Faults struct {
	// SilentBoot suppresses the "BOOT?" prompt.
	SilentBoot bool

	// RejectUpdate answers "u" with "ERR" instead of "OK".
	RejectUpdate bool

	// ExitAfterUpdateMode ends the session right after "OK".
	ExitAfterUpdateMode bool

	// HangAfterUpload swallows the payload and never prints "CRC?".
	HangAfterUpload bool

	// CorruptFlash flips a bit of the stored image, so the read-back CRC
	// differs and the target answers "FAIL".
	CorruptFlash bool

	// NoReboot omits the final "REBOOT" line.
	NoReboot bool

	// AcceptZeroLength answers "SEND 0" with "READY" instead of "ERR".
	AcceptZeroLength bool
}

// faultNames maps the names used in suites and flags to setters.
var faultNames = map[string]func(*Faults){
	"silent-boot":        func(f *Faults) { f.SilentBoot = true },
	"reject-update":      func(f *Faults) { f.RejectUpdate = true },
	"exit-after-update":  func(f *Faults) { f.ExitAfterUpdateMode = true },
	"hang-after-upload":  func(f *Faults) { f.HangAfterUpload = true },
	"corrupt-flash":      func(f *Faults) { f.CorruptFlash = true },
	"no-reboot":          func(f *Faults) { f.NoReboot = true },
	"accept-zero-length": func(f *Faults) { f.AcceptZeroLength = true },
}

// FaultNames returns the recognised fault names, sorted.
func FaultNames() []string {
	names := make([]string, 0, len(faultNames))
	for name := range faultNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseFaults builds a Faults value from names such as "silent-boot".
// Names are case-insensitive; underscores are accepted for dashes.
func ParseFaults(names []string) (Faults, error) {
	var f Faults
	for _, raw := range names {
		name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-")
		if name == "" {
			continue
		}
		set, ok := faultNames[name]
		if !ok {
			return Faults{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownFault, raw, strings.Join(FaultNames(), ", "))
		}
		set(&f)
	}
	return f, nil
}

// String lists the active faults, or "none".
func (f Faults) String() string {
	var active []string
	for _, name := range FaultNames() {
		probe := Faults{}
		faultNames[name](&probe)
		if f.has(probe) {
			active = append(active, name)
		}
	}
	if len(active) == 0 {
		return "none"
	}
	return strings.Join(active, ",")
}

// has reports whether every fault set in probe is also set in f.
func (f Faults) has(probe Faults) bool {
	return (!probe.SilentBoot || f.SilentBoot) &&
		(!probe.RejectUpdate || f.RejectUpdate) &&
		(!probe.ExitAfterUpdateMode || f.ExitAfterUpdateMode) &&
		(!probe.HangAfterUpload || f.HangAfterUpload) &&
		(!probe.CorruptFlash || f.CorruptFlash) &&
		(!probe.NoReboot || f.NoReboot) &&
		(!probe.AcceptZeroLength || f.AcceptZeroLength)
}
