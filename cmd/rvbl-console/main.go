// Command rvbl-console is an interactive console for an RVBL target.
//
// It connects to the same targets as rvbl-test and lets the protocol be
// stepped through by hand. Target output is echoed as it arrives.
//
// Usage:
//
//	rvbl-console [flags]
//
// Flags:
//
//	-kernel string        Bootloader image to boot under QEMU
//	-emulator string      Emulator binary (default qemu-system-riscv32)
//	-sim                  Use the in-process simulated target
//	-faults string        Comma-separated simulator faults (with -sim)
//	-serial string        Serial device of a real board
//	-baud int             Serial line rate (default 115200)
//	-tcp string           host:port of a raw TCP console
//	-telnet string        host:port of a telnet console
//	-protocol-log string  File path for the protocol transcript (CBOR)
//
// Examples:
//
//	# Poke the simulator
//	rvbl-console -sim
//
//	# Talk to a board
//	rvbl-console -serial /dev/ttyUSB0
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rvbl-protocol/rvbl-go/cmd/rvbl-console/interactive"
	"github.com/rvbl-protocol/rvbl-go/internal/testharness/engine"
	"github.com/rvbl-protocol/rvbl-go/internal/testharness/loader"
	"github.com/rvbl-protocol/rvbl-go/internal/testharness/runner"
	rlog "github.com/rvbl-protocol/rvbl-go/pkg/log"
	"github.com/rvbl-protocol/rvbl-go/pkg/target"
)

var (
	kernel      = flag.String("kernel", "", "Bootloader image to boot under QEMU")
	emulator    = flag.String("emulator", "", "Emulator binary (default "+target.DefaultEmulator+")")
	useSim      = flag.Bool("sim", false, "Use the in-process simulated target")
	faults      = flag.String("faults", "", "Comma-separated simulator faults (with -sim)")
	serialPort  = flag.String("serial", "", "Serial device of a real board")
	baud        = flag.Int("baud", target.DefaultBaudRate, "Serial line rate")
	tcpAddr     = flag.String("tcp", "", "host:port of a raw TCP console")
	telnetAddr  = flag.String("telnet", "", "host:port of a telnet console")
	protocolLog = flag.String("protocol-log", "", "File path for protocol transcript logging (CBOR format)")
)

func main() {
	flag.Parse()

	spec := loader.TargetSpec{Emulator: *emulator, Kernel: *kernel, Baud: *baud}
	switch {
	case *useSim:
		spec.Kind = loader.TargetSim
		if *faults != "" {
			spec.SimFaults = strings.Split(*faults, ",")
		}
	case *serialPort != "":
		spec.Kind, spec.Port = loader.TargetSerial, *serialPort
	case *tcpAddr != "":
		spec.Kind, spec.Address = loader.TargetTCP, *tcpAddr
	case *telnetAddr != "":
		spec.Kind, spec.Address = loader.TargetTelnet, *telnetAddr
	case *kernel != "":
		spec.Kind = loader.TargetQEMU
	default:
		fmt.Fprintln(os.Stderr, "Error: no target given (-kernel, -sim, -serial, -tcp or -telnet)")
		flag.Usage()
		os.Exit(1)
	}

	profile := &loader.Profile{Target: spec}
	if err := loader.ValidateProfile(profile); err != nil {
		log.Fatalf("Error: %v", err)
	}
	launcher, err := runner.LauncherFromProfile(profile, nil)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	var transcript rlog.Logger
	if *protocolLog != "" {
		fl, err := rlog.NewFileLogger(*protocolLog)
		if err != nil {
			log.Fatalf("Error: failed to create protocol logger: %v", err)
		}
		defer fl.Close()
		transcript = fl
	}

	h, err := launcher.Launch(ctx)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer h.Terminate(target.DefaultGrace)
	fmt.Printf("Connected to %s\n", h)

	c := interactive.New(h, engine.DefaultConfig(), os.Stdout, transcript)
	if err := c.Run(ctx); err != nil {
		log.Printf("Error: %v", err)
	}
}
