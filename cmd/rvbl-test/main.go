// Command rvbl-test validates the UART update protocol of an RVBL
// bootloader.
//
// It boots the bootloader (normally under QEMU), enters update mode,
// uploads a payload and checks that the target verifies it, reporting the
// stage at which anything goes wrong.
//
// Usage:
//
//	rvbl-test [flags]
//
// Flags:
//
//	-profile string       Validation profile (YAML or TOML)
//	-suite string         Self-test suite to run against the simulator
//	-emulator string      Emulator binary (default qemu-system-riscv32)
//	-kernel string        Bootloader image booted by the emulator
//	-machine string       Emulated board (default virt)
//	-sim                  Drive the in-process simulated target
//	-faults string        Comma-separated simulator faults (with -sim)
//	-serial string        Serial device of a real board
//	-baud int             Serial line rate (default 115200)
//	-tcp string           host:port of a raw TCP console
//	-telnet string        host:port of a telnet console
//	-discover             Find a networked target via mDNS
//	-size int             Generated payload size in bytes
//	-firmware string      Upload this image instead of the generated pattern
//	-zero-length string   Empty-payload policy: reject or allow
//	-strict-crc           Fail when the reported CRC differs
//	-kill-stale           Kill leftover emulator processes first
//	-json                 Output results as JSON
//	-junit                Output results as JUnit XML
//	-verbose              Print every stage of every case
//	-no-color             Disable coloured output
//	-protocol-log string  File path for the protocol transcript (CBOR)
//	-log-level string     Operational log level (default warn)
//
// Examples:
//
//	# Validate a bootloader image under QEMU
//	rvbl-test -kernel build/bootloader.elf
//
//	# Upload 4 KiB to a board on a serial port
//	rvbl-test -serial /dev/ttyUSB0 -size 4096
//
//	# Check the harness itself
//	rvbl-test -suite testdata/suites/self-test.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rvbl-protocol/rvbl-go/internal/testharness/engine"
	"github.com/rvbl-protocol/rvbl-go/internal/testharness/loader"
	"github.com/rvbl-protocol/rvbl-go/internal/testharness/reporter"
	"github.com/rvbl-protocol/rvbl-go/internal/testharness/runner"
	"github.com/rvbl-protocol/rvbl-go/pkg/discovery"
	rlog "github.com/rvbl-protocol/rvbl-go/pkg/log"
	"github.com/rvbl-protocol/rvbl-go/pkg/target"
)

var (
	profilePath = flag.String("profile", "", "Validation profile (YAML or TOML)")
	suitePath   = flag.String("suite", "", "Self-test suite to run against the simulator")
	emulator    = flag.String("emulator", "", "Emulator binary (default "+target.DefaultEmulator+")")
	kernel      = flag.String("kernel", "", "Bootloader image booted by the emulator")
	machine     = flag.String("machine", "", "Emulated board (default "+target.DefaultMachine+")")
	useSim      = flag.Bool("sim", false, "Drive the in-process simulated target")
	faults      = flag.String("faults", "", "Comma-separated simulator faults (with -sim)")
	serialPort  = flag.String("serial", "", "Serial device of a real board")
	baud        = flag.Int("baud", target.DefaultBaudRate, "Serial line rate")
	tcpAddr     = flag.String("tcp", "", "host:port of a raw TCP console")
	telnetAddr  = flag.String("telnet", "", "host:port of a telnet console")
	discover    = flag.Bool("discover", false, "Find a networked target via mDNS")
	size        = flag.Int("size", 0, "Generated payload size in bytes")
	firmware    = flag.String("firmware", "", "Upload this image instead of the generated pattern")
	zeroLength  = flag.String("zero-length", "", "Empty-payload policy: reject or allow")
	strictCRC   = flag.Bool("strict-crc", false, "Fail when the reported CRC differs from the payload")
	killStale   = flag.Bool("kill-stale", false, "Kill leftover emulator processes first")
	jsonOut     = flag.Bool("json", false, "Output results as JSON")
	junitOut    = flag.Bool("junit", false, "Output results as JUnit XML")
	verbose     = flag.Bool("verbose", false, "Print every stage of every case")
	noColor     = flag.Bool("no-color", false, "Disable coloured output")
	protocolLog = flag.String("protocol-log", "", "File path for protocol transcript logging (CBOR format)")
	logLevel    = flag.String("log-level", "warn", "Operational log level: debug, info, warn, error")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	outputFormat := "text"
	if *jsonOut {
		outputFormat = "json"
	} else if *junitOut {
		outputFormat = "junit"
	}
	color := !*noColor && reporter.ColorEnabled(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var transcript rlog.Logger
	if *protocolLog != "" {
		fl, err := rlog.NewFileLogger(*protocolLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create protocol logger: %v\n", err)
			return 1
		}
		defer fl.Close()
		transcript = fl
		if level <= slog.LevelDebug {
			transcript = rlog.NewMultiLogger(fl, rlog.NewSlogAdapter(logger))
		}
	}

	var rep reporter.Reporter
	switch outputFormat {
	case "json":
		rep = reporter.NewJSONReporter(os.Stdout, true)
	case "junit":
		rep = reporter.NewJUnitReporter(os.Stdout)
	default:
		tr := reporter.NewTextReporter(os.Stdout, *verbose)
		tr.SetColor(color)
		rep = tr
		printBanner()
	}

	profile, err := loadProfile(ctx, logger)
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}

	cfg := engine.DefaultConfig()
	if err := profile.Apply(&cfg); err != nil {
		log.Printf("Error: %v", err)
		return 1
	}

	if *suitePath != "" {
		return runSuite(ctx, profile, cfg, rep, outputFormat, color, transcript, logger)
	}

	var observer engine.Observer
	if outputFormat == "text" {
		observer = reporter.NewLiveReporter(os.Stdout, color, reporter.IsTerminal(os.Stdout))
	}

	p, err := runner.PayloadFromProfile(profile)
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}

	launcher, err := runner.LauncherFromProfile(profile, logger)
	if err != nil {
		reason := "target could not be configured"
		if errors.Is(err, target.ErrExecutableNotFound) {
			reason = "emulator not found"
		}
		result := engine.NewSetupFailure("", "", p, reason, err)
		rep.ReportRun(result)
		return result.ExitCode()
	}

	if outputFormat == "text" {
		log.Printf("Target: %s", describeTarget(profile))
		log.Printf("Payload: %s", p)
	}

	r := runner.New(&runner.Config{
		Launcher:       launcher,
		Engine:         cfg,
		Payload:        p,
		KillStale:      runner.KillStaleName(profile),
		Observer:       observer,
		Reporter:       rep,
		ProtocolLogger: transcript,
		Logger:         logger,
	})
	result := r.Run(ctx)
	return result.ExitCode()
}

func runSuite(ctx context.Context, profile *loader.Profile, cfg engine.Config, rep reporter.Reporter,
	outputFormat string, color bool, transcript rlog.Logger, logger *slog.Logger) int {

	suite, err := loader.LoadSuite(*suitePath)
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}

	sc := runner.SuiteConfig{
		Engine:         cfg,
		PayloadSize:    profile.PayloadSize(),
		ProtocolLogger: transcript,
		Logger:         logger,
	}
	if outputFormat == "text" {
		log.Printf("Suite: %s (%d cases)", suite.Name, len(suite.Cases))
		if *verbose {
			sc.Observer = reporter.NewLiveReporter(os.Stdout, color, false)
			sc.OnCaseStart = func(c *loader.Case, index, total int) {
				fmt.Printf("\n--- [%d/%d] %s %s ---\n", index, total, c.ID, c.Name)
			}
		}
	}

	result := runner.RunSuite(ctx, suite, sc)
	rep.ReportSuite(result)
	return result.ExitCode()
}

// loadProfile reads -profile (or the suite's profile) and applies the
// command-line overrides on top.
func loadProfile(ctx context.Context, logger *slog.Logger) (*loader.Profile, error) {
	path := *profilePath
	if path == "" && *suitePath != "" {
		suite, err := loader.LoadSuite(*suitePath)
		if err != nil {
			return nil, err
		}
		path = suite.Profile
	}

	profile := &loader.Profile{}
	if path != "" {
		var err error
		if profile, err = loader.LoadProfile(path); err != nil {
			return nil, err
		}
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	t := &profile.Target
	if set["emulator"] {
		t.Emulator = *emulator
	}
	if set["kernel"] {
		t.Kind, t.Kernel = loader.TargetQEMU, *kernel
	}
	if set["machine"] {
		t.Machine = *machine
	}
	if *useSim {
		t.Kind = loader.TargetSim
	}
	if set["faults"] {
		t.SimFaults = strings.Split(*faults, ",")
	}
	if set["serial"] {
		t.Kind, t.Port = loader.TargetSerial, *serialPort
	}
	if set["baud"] {
		t.Baud = *baud
	}
	if set["tcp"] {
		t.Kind, t.Address = loader.TargetTCP, *tcpAddr
	}
	if set["telnet"] {
		t.Kind, t.Address = loader.TargetTelnet, *telnetAddr
	}
	if *killStale {
		t.KillStale = true
	}
	if set["size"] {
		profile.Payload.Size, profile.Payload.File = size, ""
	}
	if set["firmware"] {
		profile.Payload.File, profile.Payload.Size = *firmware, nil
	}
	if set["zero-length"] {
		profile.ZeroLength = *zeroLength
	}
	if set["strict-crc"] {
		profile.StrictCRC = strictCRC
	}

	if *discover {
		svc, err := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig()).FindFirst(ctx, nil)
		if err != nil {
			return nil, err
		}
		logger.Info("discovered target", "instance", svc.InstanceName, "address", svc.Address())
		t.Kind, t.Address = loader.TargetTCP, svc.Address()
		if svc.Info.Console == discovery.ConsoleTelnet {
			t.Kind = loader.TargetTelnet
		}
	}

	if err := loader.ValidateProfile(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func describeTarget(p *loader.Profile) string {
	t := p.Target
	switch t.Kind {
	case loader.TargetSim:
		return "simulator"
	case loader.TargetSerial:
		return "serial " + t.Port
	case loader.TargetTCP, loader.TargetTelnet:
		return t.Kind + " " + t.Address
	case loader.TargetProcess:
		return t.Emulator
	}
	return target.QEMUConfig{Binary: t.Emulator, Machine: t.Machine, Kernel: t.Kernel, Serial: t.Serial}.String()
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func printBanner() {
	fmt.Print(`
 ____  __     ______  _       _            _
|  _ \ \ \   / / __ )| |     | |_ ___  ___| |_
| |_) | \ \ / /|  _ \| |     | __/ _ \/ __| __|
|  _ <   \ V / | |_) | |___  | ||  __/\__ \ |_
|_| \_\   \_/  |____/|_____|  \__\___||___/\__|

Bootloader Update Protocol Validator
`)
}
