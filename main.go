// ABOUTME: Entry point for the UDP time sync client
// ABOUTME: Parses CLI flags and runs one-shot requests, admin commands or the TUI
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/timesync-go/internal/config"
	"github.com/Resonate-Protocol/timesync-go/internal/discovery"
	"github.com/Resonate-Protocol/timesync-go/internal/logger"
	"github.com/Resonate-Protocol/timesync-go/internal/monitor"
	"github.com/Resonate-Protocol/timesync-go/internal/ui"
	"github.com/Resonate-Protocol/timesync-go/pkg/protocol"
	"github.com/Resonate-Protocol/timesync-go/pkg/syncclient"
)

var (
	configFile  = flag.String("config", "", "YAML config file")
	target      = flag.String("target", "", "Time service host (default: $SERVER_IP or 127.0.0.1)")
	port        = flag.Int("port", config.DefaultPort, "Time service UDP port")
	timeout     = flag.Duration("timeout", 2*time.Second, "Per-request timeout")
	discover    = flag.Bool("discover", false, "Find the time service with mDNS instead of -target")
	admin       = flag.String("admin", "", "Send an admin command (crash or repair) and exit")
	once        = flag.Bool("once", false, "Request the time once and exit (no TUI)")
	count       = flag.Int("n", 1, "Number of requests with -once")
	monitorAddr = flag.String("monitor", "", "Serve the outcome feed on this address (e.g. :8080)")
	logFile     = flag.String("log-file", "timesync-client.log", "Log file path")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	useTUI := !*once && *admin == ""

	f, err := logger.OpenFile(cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		logger.Init(cfg.Log.Level, f)
	} else {
		logger.Init(cfg.Log.Level, io.MultiWriter(os.Stderr, f))
	}

	targetAddr, err := resolveTarget(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("No time service to talk to")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	history := syncclient.NewHistory(syncclient.HistoryCapacity)

	var hub *monitor.Hub
	if cfg.Client.MonitorAddr != "" {
		hub = monitor.NewHub(history)
		go func() {
			if err := monitor.Serve(ctx, cfg.Client.MonitorAddr, hub); err != nil {
				log.Error().Err(err).Msg("Outcome feed stopped")
			}
		}()
	}

	client := syncclient.New(syncclient.Config{
		OnOutcome: func(o syncclient.Outcome) {
			if hub != nil {
				hub.Publish(o)
			}
		},
	})

	switch {
	case *admin != "":
		os.Exit(runAdmin(client, targetAddr, *admin))
	case *once:
		os.Exit(runOnce(ctx, client, history, targetAddr, cfg.Client.Timeout, *count))
	}

	prog := ui.Run(ui.NewModel(client, targetAddr, cfg.Client.Timeout, history))
	go func() {
		<-ctx.Done()
		prog.Quit()
	}()
	if _, err := prog.Run(); err != nil {
		log.Fatal().Err(err).Msg("TUI error")
	}
}

func runAdmin(client *syncclient.Client, targetAddr, command string) int {
	kind, err := syncclient.ParseAdminKind(command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unknown admin command %q (must be crash or repair)\n", command)
		return 2
	}

	if err := client.SendAdminCommand(targetAddr, kind); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to send %s: %v\n", kind, err)
		return 1
	}

	fmt.Printf("Sent %s to %s\n", kind, targetAddr)
	return 0
}

func runOnce(ctx context.Context, client *syncclient.Client, history *syncclient.History, targetAddr string, timeout time.Duration, n int) int {
	status := 0
	for i := 0; i < n && ctx.Err() == nil; i++ {
		outcome, err := client.RequestTime(targetAddr, timeout)
		local := time.Now()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			var callerErr *syncclient.CallerError
			if errors.As(err, &callerErr) {
				return 2
			}
			status = 1
			continue
		}
		history.Add(outcome)

		fmt.Printf("Local time:  %s\n", local.Format(protocol.TimestampLayout))
		if outcome.OK() {
			fmt.Printf("Server time: %s (round trip %v)\n",
				outcome.ServerTime.Format(protocol.TimestampLayout), outcome.RoundTrip.Round(time.Microsecond))
		} else {
			fmt.Printf("Server time: unavailable (%s)\n", outcome)
			status = 1
		}
	}

	if n > 1 {
		fmt.Printf("\nHistory (last %d):\n", history.Cap())
		for _, o := range history.Entries() {
			fmt.Printf("  %-14s %s\n", o.Kind, o)
		}
	}

	return status
}

// resolveTarget returns the configured host:port or browses for one with mDNS
func resolveTarget(cfg *config.Config) (string, error) {
	if !cfg.Client.Discover {
		return cfg.TargetAddr(), nil
	}

	log.Info().Msg("Starting server discovery...")
	server, err := discovery.Discover(5 * time.Second)
	if err != nil {
		return "", err
	}
	log.Info().Str("name", server.Name).Str("addr", server.Addr()).Msg("Discovered time service")
	return server.Addr(), nil
}

// loadConfig layers flags that were set explicitly over env and the config file
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	if cfg.Log.File == "" {
		cfg.Log.File = *logFile
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "target":
			cfg.Client.Target = *target
		case "port":
			cfg.Client.Port = *port
		case "timeout":
			cfg.Client.Timeout = *timeout
		case "discover":
			cfg.Client.Discover = *discover
		case "monitor":
			cfg.Client.MonitorAddr = *monitorAddr
		case "log-file":
			cfg.Log.File = *logFile
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
