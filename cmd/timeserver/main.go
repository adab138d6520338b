// ABOUTME: Entry point for the UDP time service
// ABOUTME: Parses CLI flags over the config file and runs the server
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/timesync-go/internal/config"
	"github.com/Resonate-Protocol/timesync-go/internal/logger"
	"github.com/Resonate-Protocol/timesync-go/internal/server"
	"github.com/Resonate-Protocol/timesync-go/internal/version"
	"github.com/Resonate-Protocol/timesync-go/pkg/timeserver"
)

var (
	configFile = flag.String("config", "", "YAML config file")
	listen     = flag.String("listen", "", "Listen address (default: 0.0.0.0)")
	port       = flag.Int("port", config.DefaultPort, "UDP port")
	name       = flag.String("name", "", "Server friendly name (default: hostname-udptime)")
	faultMode  = flag.String("fault-mode", "", "Behaviour while failed: drop or refuse")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	logFile    = flag.String("log-file", "", "Log file path (default: timeserver.log with -tui)")
	logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
	useTUI     = flag.Bool("tui", false, "Show the status TUI instead of streaming logs")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// TUI mode: log only to file
	var out io.Writer = os.Stdout
	if cfg.Log.File == "" && *useTUI {
		cfg.Log.File = "timeserver.log"
	}
	if cfg.Log.File != "" {
		f, err := logger.OpenFile(cfg.Log.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if *useTUI {
			out = f
		} else {
			out = io.MultiWriter(os.Stdout, f)
		}
	}
	logger.Init(cfg.Log.Level, out)

	mode, err := timeserver.ParseFaultMode(cfg.Server.FaultMode)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid fault mode")
	}

	var tui *server.ServerTUI
	if *useTUI {
		tui = server.NewServerTUI()
	}
	recorder := server.NewRecorder(server.DefaultEventLimit, tui)

	srv, err := timeserver.New(timeserver.Config{
		Addr:       cfg.ServerAddr(),
		Name:       cfg.Server.Name,
		FaultMode:  mode,
		EnableMDNS: cfg.Server.MDNS,
		OnEvent:    recorder.OnEvent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}
	recorder.Attach(srv)

	log.Info().
		Str("version", version.Version).
		Str("name", srv.Name()).
		Str("addr", cfg.ServerAddr()).
		Msg("Starting UDP time server")
	if cfg.Log.File != "" {
		log.Info().Str("file", cfg.Log.File).Msg("Logging to file")
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down gracefully...")
		srv.Stop()
	}()

	if tui != nil {
		go func() {
			<-tui.QuitChan()
			srv.Stop()
		}()
		go func() {
			<-srv.Ready()
			tui.Update(recorder.Status())
		}()
		go func() {
			if err := tui.Start(recorder.Status()); err != nil {
				log.Error().Err(err).Msg("TUI error")
			}
			srv.Stop()
		}()
	}

	// Start server
	err = srv.Start()
	if tui != nil {
		tui.Stop()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}

	log.Info().Msg("Server stopped")
}

// loadConfig layers flags that were set explicitly over env and the config file
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Server.Listen = *listen
		case "port":
			cfg.Server.Port = *port
		case "name":
			cfg.Server.Name = *name
		case "fault-mode":
			cfg.Server.FaultMode = *faultMode
		case "no-mdns":
			cfg.Server.MDNS = !*noMDNS
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
