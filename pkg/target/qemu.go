package target

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// QEMU defaults for the RVBL virt board.
const (
	DefaultEmulator     = "qemu-system-riscv32"
	DefaultMachine      = "virt"
	DefaultStartupDelay = 500 * time.Millisecond
)

// Serial console modes for QEMUConfig.Serial.
const (
	SerialStdio  = "stdio"
	SerialTCP    = "tcp"
	SerialTelnet = "telnet"
)

// QEMUConfig describes an emulator run of the bootloader image.
type QEMUConfig struct {
	// Binary is the emulator executable path.
	Binary string

	// Machine is the -M argument (default "virt").
	Machine string

	// Kernel is the bootloader ELF image.
	Kernel string

	// Serial selects how the console is exposed: "stdio" (default),
	// "tcp" or "telnet".
	Serial string

	// SerialPort is the local port for tcp and telnet modes.
	SerialPort int

	// ExtraArgs are appended to the command line.
	ExtraArgs []string

	// StartupDelay is slept after the emulator starts.
	StartupDelay time.Duration

	// Logger receives operational logs. Nil disables logging.
	Logger *slog.Logger
}

func (c QEMUConfig) serialArg() (string, error) {
	switch c.Serial {
	case "", SerialStdio:
		return "stdio", nil
	case SerialTCP, SerialTelnet:
		if c.SerialPort <= 0 {
			return "", fmt.Errorf("serial mode %q needs a port", c.Serial)
		}
		return fmt.Sprintf("%s:127.0.0.1:%d,server,nowait", c.Serial, c.SerialPort), nil
	default:
		return "", fmt.Errorf("unknown serial mode %q", c.Serial)
	}
}

// Args returns the emulator command line (without the binary).
func (c QEMUConfig) Args() ([]string, error) {
	if c.Kernel == "" {
		return nil, fmt.Errorf("no kernel image")
	}
	serialArg, err := c.serialArg()
	if err != nil {
		return nil, err
	}
	machine := c.Machine
	if machine == "" {
		machine = DefaultMachine
	}

	args := []string{
		"-M", machine,
		"-display", "none",
		"-serial", serialArg,
		"-bios", "none",
		"-kernel", c.Kernel,
	}
	return append(args, c.ExtraArgs...), nil
}

// Launcher returns a launcher for this configuration. In stdio mode the
// emulator's stdio is the console; otherwise the console is reached over
// the configured local port.
func (c QEMUConfig) Launcher() (Launcher, error) {
	args, err := c.Args()
	if err != nil {
		return nil, err
	}
	binary := c.Binary
	if binary == "" {
		binary = DefaultEmulator
	}

	proc := &ProcessLauncher{
		Path:         binary,
		Args:         args,
		StartupDelay: c.StartupDelay,
		Logger:       c.Logger,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", c.SerialPort)
	switch c.Serial {
	case SerialTCP:
		return &BridgedLauncher{Process: proc, Console: &TCPLauncher{Address: addr}}, nil
	case SerialTelnet:
		return &BridgedLauncher{Process: proc, Console: &TelnetLauncher{Address: addr}}, nil
	default:
		return proc, nil
	}
}

// String renders the command line.
func (c QEMUConfig) String() string {
	args, err := c.Args()
	if err != nil {
		return "qemu (" + err.Error() + ")"
	}
	binary := c.Binary
	if binary == "" {
		binary = DefaultEmulator
	}
	return strings.Join(append([]string{binary}, args...), " ")
}
