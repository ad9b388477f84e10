package loader

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rvbl-protocol/rvbl-go/internal/testharness/engine"
	"github.com/rvbl-protocol/rvbl-go/pkg/payload"
	"github.com/rvbl-protocol/rvbl-go/pkg/sim"
)

// ValidateSuite checks a suite: unique case IDs, known faults and a
// well-formed expectation on every case.
func ValidateSuite(s *Suite) error {
	if len(s.Cases) == 0 {
		return &LoadError{Message: "suite must have at least one case"}
	}

	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c == nil {
			return &LoadError{Message: fmt.Sprintf("case %d is empty", i)}
		}
		if c.ID == "" {
			return &LoadError{Message: fmt.Sprintf("case %d: id is required", i)}
		}
		if seen[c.ID] {
			return &LoadError{Message: fmt.Sprintf("duplicate case id %q", c.ID)}
		}
		seen[c.ID] = true

		if err := validateCase(c); err != nil {
			return &LoadError{Message: "case " + c.ID, Cause: err}
		}
	}
	return nil
}

func validateCase(c *Case) error {
	if c.PayloadSize != nil && (*c.PayloadSize < 0 || *c.PayloadSize > payload.MaxAppSize) {
		return fmt.Errorf("payload_size must be within 0..%d, got %d", payload.MaxAppSize, *c.PayloadSize)
	}
	if _, err := c.Faults(); err != nil {
		return err
	}
	if c.ZeroLength != "" {
		if _, err := engine.ParseZeroLengthPolicy(c.ZeroLength); err != nil {
			return err
		}
	}
	var t engine.Timeouts
	if err := c.Timeouts.Apply(&t); err != nil {
		return err
	}
	_, err := c.Expect.Expectation()
	return err
}

// Faults returns the parsed simulator faults of the case.
func (c *Case) Faults() (sim.Faults, error) {
	return sim.ParseFaults(c.SimFaults)
}

// Apply overlays the case's overrides onto cfg.
func (c *Case) Apply(cfg *engine.Config) error {
	if err := c.Timeouts.Apply(&cfg.Timeouts); err != nil {
		return err
	}
	if c.ZeroLength != "" {
		policy, err := engine.ParseZeroLengthPolicy(c.ZeroLength)
		if err != nil {
			return err
		}
		cfg.ZeroLength = policy
	}
	if c.StrictCRC != nil {
		cfg.StrictCRC = *c.StrictCRC
	}
	return nil
}

// Expectation converts the spec into an engine expectation.
func (e ExpectSpec) Expectation() (engine.Expectation, error) {
	if e.Pass {
		return engine.Expectation{Pass: true}, nil
	}
	if e.Stage == "" {
		return engine.Expectation{}, fmt.Errorf(`expect must be "pass" or name a failing stage`)
	}
	stage, err := engine.ParseStage(e.Stage)
	if err != nil {
		return engine.Expectation{}, err
	}
	if e.Kind != "" {
		if _, ok := engine.KindByName(e.Kind); !ok {
			return engine.Expectation{}, fmt.Errorf("unknown failure kind %q", e.Kind)
		}
	}
	return engine.Expectation{Stage: stage, Kind: e.Kind}, nil
}

// UnmarshalYAML accepts either "pass" or a {stage, kind} mapping.
func (e *ExpectSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return e.fromScalar(node.Value)
	}
	type plain ExpectSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = ExpectSpec(p)
	return nil
}

// UnmarshalTOML accepts either "pass" or an inline {stage, kind} table.
func (e *ExpectSpec) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case string:
		return e.fromScalar(v)
	case map[string]any:
		for key, value := range v {
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("expect.%s must be a string", key)
			}
			switch key {
			case "stage":
				e.Stage = s
			case "kind":
				e.Kind = s
			default:
				return fmt.Errorf("unknown key expect.%s", key)
			}
		}
		return nil
	default:
		return fmt.Errorf("expect must be a string or table, got %T", v)
	}
}

func (e *ExpectSpec) fromScalar(s string) error {
	if strings.EqualFold(strings.TrimSpace(s), "pass") {
		*e = ExpectSpec{Pass: true}
		return nil
	}
	return fmt.Errorf(`expect must be "pass" or a {stage, kind} mapping, got %q`, s)
}
