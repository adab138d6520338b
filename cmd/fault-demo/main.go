// ABOUTME: Scripted crash and repair walkthrough against a time service
// ABOUTME: Requests time, crashes the service, times out, repairs and requests again
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/timesync-go/internal/logger"
	"github.com/Resonate-Protocol/timesync-go/pkg/syncclient"
	"github.com/Resonate-Protocol/timesync-go/pkg/timeserver"
)

var (
	serverAddr = flag.String("server", "", "Time service address (default: start one in-process)")
	timeout    = flag.Duration("timeout", 2*time.Second, "Per-request timeout")
	faultMode  = flag.String("fault-mode", "drop", "Fault mode for the in-process server: drop or refuse")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

type step struct {
	name string
	run  func() (string, bool)
}

func main() {
	flag.Parse()

	level := "warn"
	if *debug {
		level = "debug"
	}
	logger.Init(level, os.Stderr)

	target := *serverAddr
	if target == "" {
		mode, err := timeserver.ParseFaultMode(*faultMode)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid fault mode")
		}

		srv, err := timeserver.New(timeserver.Config{Addr: "127.0.0.1:0", Name: "fault-demo", FaultMode: mode})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create server")
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Fatal().Err(err).Msg("Server error")
			}
		}()
		<-srv.Ready()
		target = srv.Addr().String()
		fmt.Printf("Started in-process time service on %s (fault mode %s)\n", target, mode)
	}

	fmt.Println("=== Fault Injection Demo ===")
	fmt.Println("This demo will:")
	fmt.Println("1. Request the time from a healthy service")
	fmt.Println("2. Crash the service with ADMIN_CRASH")
	fmt.Println("3. Request the time and observe the failure")
	fmt.Println("4. Repair the service with ADMIN_REPAIR")
	fmt.Println("5. Request the time again")
	fmt.Println()

	client := syncclient.New(syncclient.Config{})
	history := syncclient.NewHistory(syncclient.HistoryCapacity)

	request := func(wantOK bool) func() (string, bool) {
		return func() (string, bool) {
			outcome, err := client.RequestTime(target, *timeout)
			if err != nil {
				return err.Error(), false
			}
			history.Add(outcome)
			return outcome.String(), outcome.OK() == wantOK
		}
	}
	sendAdmin := func(kind syncclient.AdminKind) func() (string, bool) {
		return func() (string, bool) {
			if err := client.SendAdminCommand(target, kind); err != nil {
				return err.Error(), false
			}
			// no acknowledgement; give the service a moment to read it
			time.Sleep(50 * time.Millisecond)
			return kind.String() + " sent", true
		}
	}

	steps := []step{
		{"request (healthy)", request(true)},
		{"crash", sendAdmin(syncclient.AdminCrash)},
		{"request (failed)", request(false)},
		{"repair", sendAdmin(syncclient.AdminRepair)},
		{"request (repaired)", request(true)},
	}

	failed := 0
	for i, s := range steps {
		detail, ok := s.run()
		mark := "✓"
		if !ok {
			mark = "✗"
			failed++
		}
		fmt.Printf("%d. %s %-20s %s\n", i+1, mark, s.name, detail)
	}

	fmt.Printf("\nHistory (newest first):\n")
	for _, o := range history.Entries() {
		fmt.Printf("  %-14s %s\n", o.Kind, o)
	}

	if failed > 0 {
		fmt.Printf("\n%d step(s) did not behave as expected\n", failed)
		os.Exit(1)
	}
	fmt.Println("\nDemo complete")
}
