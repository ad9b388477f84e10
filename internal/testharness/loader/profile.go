package loader

import (
	"fmt"
	"strings"
	"time"

	"github.com/rvbl-protocol/rvbl-go/internal/testharness/engine"
	"github.com/rvbl-protocol/rvbl-go/pkg/payload"
	"github.com/rvbl-protocol/rvbl-go/pkg/sim"
)

// ValidateProfile checks a profile for values that cannot be applied.
func ValidateProfile(p *Profile) error {
	switch p.Target.Kind {
	case "", TargetQEMU, TargetProcess, TargetSim, TargetSerial, TargetTCP, TargetTelnet:
	default:
		return &LoadError{Message: fmt.Sprintf("unknown target kind %q", p.Target.Kind)}
	}
	if p.Target.Kind == TargetProcess && p.Target.Emulator == "" {
		return &LoadError{Message: "target kind process requires emulator"}
	}
	if p.Target.Kind == TargetSerial && p.Target.Port == "" {
		return &LoadError{Message: "target kind serial requires port"}
	}
	if (p.Target.Kind == TargetTCP || p.Target.Kind == TargetTelnet) && p.Target.Address == "" {
		return &LoadError{Message: fmt.Sprintf("target kind %s requires address", p.Target.Kind)}
	}
	if p.Target.Baud < 0 {
		return &LoadError{Message: fmt.Sprintf("baud must not be negative, got %d", p.Target.Baud)}
	}
	if _, err := parseDuration("target.startup_delay", p.Target.StartupDelay); err != nil {
		return err
	}
	if _, err := sim.ParseFaults(p.Target.SimFaults); err != nil {
		return &LoadError{Message: "invalid target.sim_faults", Cause: err}
	}

	if p.Payload.Size != nil {
		if *p.Payload.Size < 0 || *p.Payload.Size > payload.MaxAppSize {
			return &LoadError{Message: fmt.Sprintf("payload.size must be within 0..%d, got %d", payload.MaxAppSize, *p.Payload.Size)}
		}
		if p.Payload.File != "" {
			return &LoadError{Message: "payload.size and payload.file are mutually exclusive"}
		}
	}

	cfg := engine.DefaultConfig()
	if err := p.Apply(&cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return &LoadError{Message: "invalid engine settings", Cause: err}
	}
	return nil
}

// Apply overlays the profile's tuning onto cfg.
func (p *Profile) Apply(cfg *engine.Config) error {
	if err := p.Timeouts.Apply(&cfg.Timeouts); err != nil {
		return err
	}

	pacing := []struct {
		field string
		value string
		dst   *time.Duration
	}{
		{"pacing.command", p.Pacing.Command, &cfg.Pacing.Command},
		{"pacing.payload", p.Pacing.Payload, &cfg.Pacing.Payload},
		{"pacing.after_update", p.Pacing.AfterUpdate, &cfg.Pacing.AfterUpdate},
		{"pacing.after_send", p.Pacing.AfterSend, &cfg.Pacing.AfterSend},
		{"pacing.drain", p.Pacing.Drain, &cfg.Pacing.Drain},
		{"settle.min", p.Settle.Min, &cfg.Settle.Min},
	}
	for _, f := range pacing {
		if err := setDuration(f.dst, f.field, f.value); err != nil {
			return err
		}
	}
	if p.Settle.BytesPerSecond != nil {
		cfg.Settle.BytesPerSecond = *p.Settle.BytesPerSecond
	}

	if p.Padding.Size != nil {
		cfg.Padding.Size = *p.Padding.Size
	}
	if p.Padding.Byte != nil {
		b := *p.Padding.Byte
		if b < 0 || b > 0xFF {
			return &LoadError{Message: fmt.Sprintf("padding.byte must be within 0..255, got %d", b)}
		}
		cfg.Padding.Byte = byte(b)
	}

	if p.Commands.Update != "" {
		cfg.Commands.Update = p.Commands.Update
	}
	if p.Commands.Send != "" {
		cfg.Commands.Send = p.Commands.Send
	}

	if p.ZeroLength != "" {
		policy, err := engine.ParseZeroLengthPolicy(p.ZeroLength)
		if err != nil {
			return &LoadError{Message: "invalid zero_length", Cause: err}
		}
		cfg.ZeroLength = policy
	}
	if p.StrictCRC != nil {
		cfg.StrictCRC = *p.StrictCRC
	}
	return nil
}

// PayloadSize returns the configured generated payload size, or the default.
func (p *Profile) PayloadSize() int {
	if p.Payload.Size != nil {
		return *p.Payload.Size
	}
	return payload.DefaultSize
}

// StartupDelay returns the parsed target startup delay (0 if unset).
func (p *Profile) StartupDelay() time.Duration {
	d, _ := parseDuration("target.startup_delay", p.Target.StartupDelay)
	return d
}

// Apply overlays the set timeouts onto t.
func (s TimeoutsSpec) Apply(t *engine.Timeouts) error {
	fields := []struct {
		field string
		value string
		dst   *time.Duration
	}{
		{"timeouts.boot", s.Boot, &t.Boot},
		{"timeouts.update_mode", s.UpdateMode, &t.UpdateMode},
		{"timeouts.ready", s.Ready, &t.Ready},
		{"timeouts.crc_prompt", s.CRCPrompt, &t.CRCPrompt},
		{"timeouts.crc_result", s.CRCResult, &t.CRCResult},
		{"timeouts.reboot", s.Reboot, &t.Reboot},
	}
	for _, f := range fields {
		if err := setDuration(f.dst, f.field, f.value); err != nil {
			return err
		}
	}
	return nil
}

func setDuration(dst *time.Duration, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := parseDuration(field, value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &LoadError{Message: "invalid " + field, Cause: err}
	}
	if d < 0 {
		return 0, &LoadError{Message: fmt.Sprintf("%s must not be negative, got %s", field, value)}
	}
	return d, nil
}
