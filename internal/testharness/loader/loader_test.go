package loader_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvbl-protocol/rvbl-go/internal/testharness/engine"
	"github.com/rvbl-protocol/rvbl-go/internal/testharness/loader"
	"github.com/rvbl-protocol/rvbl-go/pkg/payload"
)

const yamlProfile = `
name: qemu-virt
description: Default emulator run
target:
  kind: qemu
  machine: virt
  kernel: build/bootloader.elf
  startup_delay: 500ms
  kill_stale: true
payload:
  size: 1024
timeouts:
  boot: 8s
  crc_prompt: 30s
pacing:
  payload: 1ms
settle:
  min: 1s
  bytes_per_second: 400
padding:
  size: 16
  byte: 255
zero_length: allow
strict_crc: true
`

const tomlProfile = `
name = "qemu-virt"
description = "Default emulator run"
zero_length = "allow"
strict_crc = true

[target]
kind = "qemu"
machine = "virt"
kernel = "build/bootloader.elf"
startup_delay = "500ms"
kill_stale = true

[payload]
size = 1024

[timeouts]
boot = "8s"
crc_prompt = "30s"

[pacing]
payload = "1ms"

[settle]
min = "1s"
bytes_per_second = 400

[padding]
size = 16
byte = 255
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseProfileFormatsAgree(t *testing.T) {
	fromYAML, err := loader.ParseProfile([]byte(yamlProfile), loader.FormatYAML)
	require.NoError(t, err)
	fromTOML, err := loader.ParseProfile([]byte(tomlProfile), loader.FormatTOML)
	require.NoError(t, err)

	if diff := cmp.Diff(fromYAML, fromTOML); diff != "" {
		t.Errorf("YAML and TOML profiles differ (-yaml +toml):\n%s", diff)
	}
	assert.Equal(t, 1024, fromYAML.PayloadSize())
	assert.Equal(t, 500*time.Millisecond, fromYAML.StartupDelay())
}

func TestProfileApply(t *testing.T) {
	p, err := loader.ParseProfile([]byte(yamlProfile), loader.FormatYAML)
	require.NoError(t, err)

	cfg := engine.DefaultConfig()
	require.NoError(t, p.Apply(&cfg))

	assert.Equal(t, 8*time.Second, cfg.Timeouts.Boot)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.CRCPrompt)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.UpdateMode, "unset timeouts keep defaults")
	assert.Equal(t, time.Millisecond, cfg.Pacing.Payload)
	assert.Equal(t, 5*time.Millisecond, cfg.Pacing.Command)
	assert.Equal(t, engine.Settle{Min: time.Second, BytesPerSecond: 400}, cfg.Settle)
	assert.Equal(t, engine.Padding{Size: 16, Byte: 0xFF}, cfg.Padding)
	assert.Equal(t, engine.ZeroLengthAllow, cfg.ZeroLength)
	assert.True(t, cfg.StrictCRC)
	require.NoError(t, cfg.Validate())
}

func TestParseProfileEmpty(t *testing.T) {
	p, err := loader.ParseProfile(nil, loader.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, payload.DefaultSize, p.PayloadSize())

	cfg := engine.DefaultConfig()
	require.NoError(t, p.Apply(&cfg))
	assert.Equal(t, engine.DefaultConfig(), cfg)
}

func TestParseProfileErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "name: x\nbogus: 1\n"},
		{"bad duration", "timeouts:\n  boot: soon\n"},
		{"negative duration", "pacing:\n  payload: -1ms\n"},
		{"zero timeout", "timeouts:\n  ready: 0s\n"},
		{"unknown kind", "target:\n  kind: jtag\n"},
		{"serial without port", "target:\n  kind: serial\n"},
		{"tcp without address", "target:\n  kind: tcp\n"},
		{"process without emulator", "target:\n  kind: process\n"},
		{"unknown fault", "target:\n  kind: sim\n  sim_faults: [explode]\n"},
		{"oversize payload", "payload:\n  size: 999999999\n"},
		{"size and file", "payload:\n  size: 10\n  file: fw.bin\n"},
		{"padding byte range", "padding:\n  byte: 256\n"},
		{"zero length policy", "zero_length: sometimes\n"},
		{"bad template", "commands:\n  send: \"SEND {{ bytes }}\\n\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.ParseProfile([]byte(tt.data), loader.FormatYAML)
			require.Error(t, err)
			var le *loader.LoadError
			assert.ErrorAs(t, err, &le)
		})
	}
}

func TestParseProfileTOMLErrors(t *testing.T) {
	_, err := loader.ParseProfile([]byte("name = \"x\"\nbogus = 1\n"), loader.FormatTOML)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")

	_, err = loader.ParseProfile([]byte("name = \"x\"\n[target\n"), loader.FormatTOML)
	require.Error(t, err)
	var le *loader.LoadError
	require.ErrorAs(t, err, &le)
	assert.Positive(t, le.Line)
}

func TestLoadProfileResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "virt.toml", tomlProfile+"\n")

	p, err := loader.LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "build", "bootloader.elf"), p.Target.Kernel)
}

func TestLoadProfileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := loader.LoadProfile(filepath.Join(dir, "missing.yaml"))
	var le *loader.LoadError
	require.ErrorAs(t, err, &le)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	path := writeFile(t, dir, "profile.json", "{}")
	_, err = loader.LoadProfile(path)
	require.ErrorAs(t, err, &le)
	assert.Equal(t, path, le.File)

	path = writeFile(t, dir, "bad.yaml", "timeouts:\n  boot: never\n")
	_, err = loader.LoadProfile(path)
	require.ErrorAs(t, err, &le)
	assert.Equal(t, path, le.File)
	assert.Contains(t, err.Error(), "timeouts.boot")
}

const yamlSuite = `
name: simulator self-test
profile: fast.yaml
cases:
  - id: TC-PASS-001
    name: happy path
    payload_size: 1024
    expect: pass
  - id: TC-BOOT-001
    name: silent boot
    sim_faults: [silent-boot]
    timeouts:
      boot: 300ms
    expect:
      stage: await_boot
      kind: timeout
  - id: TC-ZERO-001
    name: zero length allowed
    payload_size: 0
    zero_length: allow
    sim_faults: [accept-zero-length]
    expect: pass
`

const tomlSuite = `
name = "simulator self-test"
profile = "fast.yaml"

[[cases]]
id = "TC-PASS-001"
name = "happy path"
payload_size = 1024
expect = "pass"

[[cases]]
id = "TC-BOOT-001"
name = "silent boot"
sim_faults = ["silent-boot"]
timeouts = { boot = "300ms" }
expect = { stage = "await_boot", kind = "timeout" }

[[cases]]
id = "TC-ZERO-001"
name = "zero length allowed"
payload_size = 0
zero_length = "allow"
sim_faults = ["accept-zero-length"]
expect = "pass"
`

func TestParseSuiteFormatsAgree(t *testing.T) {
	fromYAML, err := loader.ParseSuite([]byte(yamlSuite), loader.FormatYAML)
	require.NoError(t, err)
	fromTOML, err := loader.ParseSuite([]byte(tomlSuite), loader.FormatTOML)
	require.NoError(t, err)

	if diff := cmp.Diff(fromYAML, fromTOML); diff != "" {
		t.Errorf("YAML and TOML suites differ (-yaml +toml):\n%s", diff)
	}
	require.Len(t, fromYAML.Cases, 3)

	boot := fromYAML.Cases[1]
	faults, err := boot.Faults()
	require.NoError(t, err)
	assert.True(t, faults.SilentBoot)

	exp, err := boot.Expect.Expectation()
	require.NoError(t, err)
	assert.Equal(t, engine.Expectation{Stage: engine.StageAwaitBoot, Kind: "timeout"}, exp)

	cfg := engine.DefaultConfig()
	require.NoError(t, boot.Apply(&cfg))
	assert.Equal(t, 300*time.Millisecond, cfg.Timeouts.Boot)

	zero := fromYAML.Cases[2]
	require.NotNil(t, zero.PayloadSize)
	assert.Equal(t, 0, *zero.PayloadSize)
	cfg = engine.DefaultConfig()
	require.NoError(t, zero.Apply(&cfg))
	assert.Equal(t, engine.ZeroLengthAllow, cfg.ZeroLength)
}

func TestParseSuiteErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no cases", "name: empty\n"},
		{"missing id", "cases:\n  - name: x\n    expect: pass\n"},
		{"duplicate id", "cases:\n  - id: A\n    expect: pass\n  - id: A\n    expect: pass\n"},
		{"missing expect", "cases:\n  - id: A\n"},
		{"bad expect scalar", "cases:\n  - id: A\n    expect: maybe\n"},
		{"unknown stage", "cases:\n  - id: A\n    expect:\n      stage: flashing\n"},
		{"unknown kind", "cases:\n  - id: A\n    expect:\n      stage: finalize\n      kind: meltdown\n"},
		{"unknown fault", "cases:\n  - id: A\n    sim_faults: [gremlins]\n    expect: pass\n"},
		{"negative size", "cases:\n  - id: A\n    payload_size: -1\n    expect: pass\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.ParseSuite([]byte(tt.data), loader.FormatYAML)
			assert.Error(t, err)
		})
	}
}

func TestLoadSuiteAndDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", yamlSuite)
	writeFile(t, dir, "b.toml", "[[cases]]\nid = \"ONE\"\nexpect = \"pass\"\n")
	writeFile(t, dir, "README.md", "not a suite")

	s, err := loader.LoadSuite(filepath.Join(dir, "a.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fast.yaml"), s.Profile)

	suites, err := loader.LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, suites, 2)
	assert.Equal(t, "simulator self-test", suites[0].Name)
	assert.Equal(t, "b", suites[1].Name, "unnamed suites take the file name")
}

func TestLoadErrorMessage(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err  *loader.LoadError
		want string
	}{
		{&loader.LoadError{Message: "bad"}, "bad"},
		{&loader.LoadError{File: "p.yaml", Message: "bad"}, "p.yaml: bad"},
		{&loader.LoadError{File: "p.toml", Line: 12, Message: "bad", Cause: cause}, "p.toml:12: bad: boom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
	assert.ErrorIs(t, &loader.LoadError{Cause: cause}, cause)
}

func TestFormatFor(t *testing.T) {
	for path, want := range map[string]loader.Format{
		"a.yaml": loader.FormatYAML,
		"a.YML":  loader.FormatYAML,
		"a.toml": loader.FormatTOML,
	} {
		got, err := loader.FormatFor(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := loader.FormatFor("a.ini")
	assert.Error(t, err)
}
