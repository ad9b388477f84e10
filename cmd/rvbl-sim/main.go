// Command rvbl-sim runs the simulated RVBL bootloader.
//
// By default the console is on stdio, so rvbl-sim can stand in for the
// emulator binary of a "process" profile. With -listen it serves every TCP
// connection as a fresh boot and can advertise itself via mDNS.
//
// Usage:
//
//	rvbl-sim [flags]
//
// Flags:
//
//	-listen string        Serve on this TCP address instead of stdio
//	-advertise            Advertise the listener via mDNS (with -listen)
//	-name string          mDNS instance name (default: hostname)
//	-faults string        Comma-separated faults to inject
//	-boot-delay duration  Delay before the boot banner
//	-boot-window duration How long to wait for "u" (0 waits forever)
//	-version string       Version printed in the banner
//	-log-level string     Operational log level (default warn)
//
// Examples:
//
//	# A well-behaved target on stdio
//	rvbl-sim
//
//	# A target that corrupts its flash, reachable on port 4444
//	rvbl-sim -listen :4444 -advertise -faults corrupt-flash
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rvbl-protocol/rvbl-go/pkg/discovery"
	"github.com/rvbl-protocol/rvbl-go/pkg/sim"
)

var (
	listen     = flag.String("listen", "", "Serve on this TCP address instead of stdio")
	advertise  = flag.Bool("advertise", false, "Advertise the listener via mDNS (with -listen)")
	name       = flag.String("name", "", "mDNS instance name (default: hostname)")
	faults     = flag.String("faults", "", "Comma-separated faults to inject ("+strings.Join(sim.FaultNames(), ", ")+")")
	bootDelay  = flag.Duration("boot-delay", 0, "Delay before the boot banner")
	bootWindow = flag.Duration("boot-window", 0, `How long to wait for "u" (0 waits forever)`)
	version    = flag.String("version", "1.0", "Version printed in the banner")
	logLevel   = flag.String("log-level", "warn", "Operational log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		log.Fatalf("invalid log level %q", *logLevel)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	f, err := sim.ParseFaults(strings.Split(*faults, ","))
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	cfg := sim.Config{
		Version:    *version,
		BootDelay:  *bootDelay,
		BootWindow: *bootWindow,
		Faults:     f,
		Logger:     logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *listen == "" {
		cfg.ExitAfterReboot = true
		if err := sim.New(cfg).Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("Error: %v", err)
		}
		return
	}

	if err := serveTCP(ctx, cfg, logger); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func serveTCP(ctx context.Context, cfg sim.Config, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		return err
	}
	logger.Info("simulated target listening", "address", ln.Addr().String(), "faults", cfg.Faults.String())
	fmt.Fprintf(os.Stderr, "rvbl-sim listening on %s (faults: %s)\n", ln.Addr(), cfg.Faults)

	target := sim.New(cfg)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	if *advertise {
		adv := discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
		instance := *name
		if instance == "" {
			instance, _ = os.Hostname()
		}
		info := &discovery.TargetInfo{
			Name:     instance,
			Port:     uint16(ln.Addr().(*net.TCPAddr).Port),
			Kind:     discovery.KindSim,
			Console:  discovery.ConsoleTCP,
			Version:  cfg.Version,
			Protocol: discovery.ProtocolVersion,
		}
		if err := adv.Advertise(ctx, info); err != nil {
			ln.Close()
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			adv.Stop()
			return nil
		})
	}

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			logger.Info("host connected", "remote", conn.RemoteAddr().String())
			g.Go(func() error {
				defer conn.Close()
				start := time.Now()
				if err := target.Serve(ctx, conn, conn); err != nil && ctx.Err() == nil {
					logger.Warn("session ended with error", "remote", conn.RemoteAddr().String(), "error", err)
				}
				s := target.LastSession()
				logger.Info("session finished",
					"remote", conn.RemoteAddr().String(),
					"announced", s.Announced,
					"received", s.Received,
					"verified", s.Verified,
					"elapsed", time.Since(start).Round(time.Millisecond))
				return nil
			})
		}
	})

	return g.Wait()
}
