package runner

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/rvbl-protocol/rvbl-go/internal/testharness/loader"
	"github.com/rvbl-protocol/rvbl-go/pkg/payload"
	"github.com/rvbl-protocol/rvbl-go/pkg/sim"
	"github.com/rvbl-protocol/rvbl-go/pkg/target"
)

// LauncherFromProfile builds the launcher described by the profile's target
// section. The profile must already be validated.
func LauncherFromProfile(p *loader.Profile, logger *slog.Logger) (target.Launcher, error) {
	t := p.Target
	switch t.Kind {
	case "", loader.TargetQEMU:
		name := t.Emulator
		if name == "" {
			name = target.DefaultEmulator
		}
		binary, err := target.LocateExecutable(name)
		if err != nil {
			return nil, err
		}
		var port int
		if t.Port != "" {
			if port, err = strconv.Atoi(t.Port); err != nil {
				return nil, fmt.Errorf("invalid console port %q: %w", t.Port, err)
			}
		}
		delay := p.StartupDelay()
		if delay == 0 {
			delay = target.DefaultStartupDelay
		}
		return target.QEMUConfig{
			Binary:       binary,
			Machine:      t.Machine,
			Kernel:       t.Kernel,
			Serial:       t.Serial,
			SerialPort:   port,
			ExtraArgs:    t.Args,
			StartupDelay: delay,
			Logger:       logger,
		}.Launcher()

	case loader.TargetProcess:
		binary, err := target.LocateExecutable(t.Emulator)
		if err != nil {
			return nil, err
		}
		return &target.ProcessLauncher{
			Path:         binary,
			Args:         t.Args,
			StartupDelay: p.StartupDelay(),
			Logger:       logger,
		}, nil

	case loader.TargetSim:
		faults, err := sim.ParseFaults(t.SimFaults)
		if err != nil {
			return nil, err
		}
		return &target.SimLauncher{Config: sim.Config{Faults: faults, Logger: logger}}, nil

	case loader.TargetSerial:
		return &target.SerialLauncher{Port: t.Port, BaudRate: t.Baud, ResetOnOpen: true}, nil

	case loader.TargetTCP:
		return &target.TCPLauncher{Address: t.Address}, nil

	case loader.TargetTelnet:
		return &target.TelnetLauncher{Address: t.Address}, nil

	default:
		return nil, fmt.Errorf("unknown target kind %q", t.Kind)
	}
}

// KillStaleName returns the process name to clean up before launching, or
// "" when the profile does not ask for it.
func KillStaleName(p *loader.Profile) string {
	if !p.Target.KillStale {
		return ""
	}
	switch p.Target.Kind {
	case "", loader.TargetQEMU:
		if p.Target.Emulator != "" {
			return p.Target.Emulator
		}
		return target.DefaultEmulator
	case loader.TargetProcess:
		return p.Target.Emulator
	}
	return ""
}

// PayloadFromProfile loads the profile's firmware file, or generates the
// test pattern of the configured size.
func PayloadFromProfile(p *loader.Profile) (payload.Payload, error) {
	if p.Payload.File != "" {
		return payload.Load(p.Payload.File)
	}
	return payload.Generate(p.PayloadSize())
}
