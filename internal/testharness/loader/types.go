// Package loader reads validation profiles and self-test suites from YAML
// or TOML files.
package loader

import "strconv"

// Profile is a named validation setup: which target to drive, what to
// upload and how to time the exchange. Unset fields keep engine defaults.
type Profile struct {
	// Name identifies the profile in reports.
	Name string `yaml:"name" toml:"name"`

	// Description explains what the profile is for.
	Description string `yaml:"description" toml:"description"`

	Target   TargetSpec   `yaml:"target" toml:"target"`
	Payload  PayloadSpec  `yaml:"payload" toml:"payload"`
	Timeouts TimeoutsSpec `yaml:"timeouts" toml:"timeouts"`
	Pacing   PacingSpec   `yaml:"pacing" toml:"pacing"`
	Settle   SettleSpec   `yaml:"settle" toml:"settle"`
	Padding  PaddingSpec  `yaml:"padding" toml:"padding"`
	Commands CommandsSpec `yaml:"commands" toml:"commands"`

	// ZeroLength is the empty-payload policy ("reject" or "allow").
	ZeroLength string `yaml:"zero_length,omitempty" toml:"zero_length"`

	// StrictCRC fails on a reported checksum mismatch.
	StrictCRC *bool `yaml:"strict_crc,omitempty" toml:"strict_crc"`
}

// Target kinds.
const (
	TargetQEMU    = "qemu"
	TargetProcess = "process"
	TargetSim     = "sim"
	TargetSerial  = "serial"
	TargetTCP     = "tcp"
	TargetTelnet  = "telnet"
)

// TargetSpec selects and configures the target.
type TargetSpec struct {
	// Kind is one of qemu, process, sim, serial, tcp, telnet. Empty means qemu.
	Kind string `yaml:"kind" toml:"kind"`

	// Emulator is the emulator binary name or path (qemu, process).
	Emulator string `yaml:"emulator,omitempty" toml:"emulator"`

	// Machine is the emulated board (qemu).
	Machine string `yaml:"machine,omitempty" toml:"machine"`

	// Kernel is the bootloader image booted by the emulator (qemu).
	Kernel string `yaml:"kernel,omitempty" toml:"kernel"`

	// Serial is how the emulator exposes its console: stdio, tcp or telnet (qemu).
	Serial string `yaml:"serial,omitempty" toml:"serial"`

	// Args are extra emulator arguments (qemu) or the full argument list (process).
	Args []string `yaml:"args,omitempty" toml:"args"`

	// Port is the serial device (serial) or console port (qemu tcp/telnet).
	Port string `yaml:"port,omitempty" toml:"port"`

	// Baud is the serial line rate (serial).
	Baud int `yaml:"baud,omitempty" toml:"baud"`

	// Address is host:port of a TCP or telnet console.
	Address string `yaml:"address,omitempty" toml:"address"`

	// StartupDelay is waited after launching before reading (e.g. "500ms").
	StartupDelay string `yaml:"startup_delay,omitempty" toml:"startup_delay"`

	// KillStale kills leftover emulator processes before launching.
	KillStale bool `yaml:"kill_stale,omitempty" toml:"kill_stale"`

	// SimFaults are fault names injected into the simulator (sim).
	SimFaults []string `yaml:"sim_faults,omitempty" toml:"sim_faults"`
}

// PayloadSpec selects the uploaded image.
type PayloadSpec struct {
	// Size is the generated payload size in bytes.
	Size *int `yaml:"size,omitempty" toml:"size"`

	// File is a firmware image to upload instead of the generated pattern.
	File string `yaml:"file,omitempty" toml:"file"`
}

// TimeoutsSpec holds per-stage timeouts as duration strings.
type TimeoutsSpec struct {
	Boot       string `yaml:"boot,omitempty" toml:"boot"`
	UpdateMode string `yaml:"update_mode,omitempty" toml:"update_mode"`
	Ready      string `yaml:"ready,omitempty" toml:"ready"`
	CRCPrompt  string `yaml:"crc_prompt,omitempty" toml:"crc_prompt"`
	CRCResult  string `yaml:"crc_result,omitempty" toml:"crc_result"`
	Reboot     string `yaml:"reboot,omitempty" toml:"reboot"`
}

// PacingSpec holds write pacing as duration strings.
type PacingSpec struct {
	Command     string `yaml:"command,omitempty" toml:"command"`
	Payload     string `yaml:"payload,omitempty" toml:"payload"`
	AfterUpdate string `yaml:"after_update,omitempty" toml:"after_update"`
	AfterSend   string `yaml:"after_send,omitempty" toml:"after_send"`
	Drain       string `yaml:"drain,omitempty" toml:"drain"`
}

// SettleSpec configures the post-upload settle delay.
type SettleSpec struct {
	Min            string `yaml:"min,omitempty" toml:"min"`
	BytesPerSecond *int   `yaml:"bytes_per_second,omitempty" toml:"bytes_per_second"`
}

// PaddingSpec configures the trailing padding.
type PaddingSpec struct {
	Size *int `yaml:"size,omitempty" toml:"size"`
	Byte *int `yaml:"byte,omitempty" toml:"byte"`
}

// CommandsSpec overrides the host commands.
type CommandsSpec struct {
	Update string `yaml:"update,omitempty" toml:"update"`
	Send   string `yaml:"send,omitempty" toml:"send"`
}

// Suite is a list of cases run against the simulator to check the
// harness itself.
type Suite struct {
	// Name of the suite.
	Name string `yaml:"name" toml:"name"`

	// Description of what this suite checks.
	Description string `yaml:"description" toml:"description"`

	// Profile is an optional profile file, relative to the suite file.
	Profile string `yaml:"profile,omitempty" toml:"profile"`

	// StopOnFirstFailure stops the suite after the first failed case.
	StopOnFirstFailure bool `yaml:"stop_on_first_failure,omitempty" toml:"stop_on_first_failure"`

	// Cases are the cases in this suite.
	Cases []*Case `yaml:"cases" toml:"cases"`
}

// Case is one suite entry.
type Case struct {
	// ID is the unique case identifier (e.g. "TC-BOOT-001").
	ID string `yaml:"id" toml:"id"`

	// Name is a human-readable name.
	Name string `yaml:"name" toml:"name"`

	// Description explains what the case checks.
	Description string `yaml:"description,omitempty" toml:"description"`

	// PayloadSize overrides the profile payload size.
	PayloadSize *int `yaml:"payload_size,omitempty" toml:"payload_size"`

	// SimFaults are injected into the simulator for this case.
	SimFaults []string `yaml:"sim_faults,omitempty" toml:"sim_faults"`

	// ZeroLength overrides the profile zero-length policy.
	ZeroLength string `yaml:"zero_length,omitempty" toml:"zero_length"`

	// StrictCRC overrides the profile checksum policy.
	StrictCRC *bool `yaml:"strict_crc,omitempty" toml:"strict_crc"`

	// Timeouts override the profile timeouts for this case.
	Timeouts TimeoutsSpec `yaml:"timeouts,omitempty" toml:"timeouts"`

	// Expect is the expected outcome.
	Expect ExpectSpec `yaml:"expect" toml:"expect"`

	// Skip disables the case; the value is the reason.
	Skip string `yaml:"skip,omitempty" toml:"skip"`
}

// ExpectSpec is either the scalar "pass" or a {stage, kind} mapping.
type ExpectSpec struct {
	Pass  bool   `yaml:"-" toml:"-"`
	Stage string `yaml:"stage" toml:"stage"`
	Kind  string `yaml:"kind,omitempty" toml:"kind"`
}

// LoadError provides details about a profile or suite loading error.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Line is the line number where the error occurred (0 if unknown).
	Line int

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.File == "" {
		return msg
	}
	if e.Line > 0 {
		return e.File + ":" + strconv.Itoa(e.Line) + ": " + msg
	}
	return e.File + ": " + msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
