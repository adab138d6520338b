// ABOUTME: Time service server with a single-threaded datagram loop
// ABOUTME: Owns the health state and answers requests according to it
package timeserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/timesync-go/internal/discovery"
	"github.com/Resonate-Protocol/timesync-go/internal/logger"
	"github.com/Resonate-Protocol/timesync-go/pkg/protocol"
)

// DefaultAddr binds every interface on the fixed service port
const DefaultAddr = ":5678"

// ErrAlreadyRunning is returned when Run is called on a server that has run before
var ErrAlreadyRunning = errors.New("time server already started")

// Config configures a time server
type Config struct {
	// Addr to listen on (default: ":5678")
	Addr string

	// Name of the server for logs and mDNS (default: hostname-udptime)
	Name string

	// FaultMode selects drop or refuse while failed (default: drop)
	FaultMode FaultMode

	// EnableMDNS advertises the service on the local network
	EnableMDNS bool

	// Now supplies reply timestamps (default: time.Now)
	Now func() time.Time

	// OnEvent is called from the receive loop after each datagram.
	// It must not block.
	OnEvent func(Event)
}

// Event describes how one datagram was handled
type Event struct {
	At      time.Time
	From    string
	Command protocol.Kind
	Action  Action
	Health  Health
}

// Stats counts handled datagrams by action
type Stats struct {
	Answered uint64
	Dropped  uint64
	Refused  uint64
	Invalid  uint64
	Crashes  uint64
	Repairs  uint64
}

// Server is a health-switchable UDP time service
type Server struct {
	config   Config
	serverID string
	log      zerolog.Logger

	// health mirrors the receive loop's state for readers; only the loop stores it
	health atomic.Int32

	answered atomic.Uint64
	dropped  atomic.Uint64
	refused  atomic.Uint64
	invalid  atomic.Uint64
	crashes  atomic.Uint64
	repairs  atomic.Uint64

	started atomic.Bool
	ready   chan struct{}
	addr    net.Addr

	mdnsManager *discovery.Manager

	stopChan chan struct{}
	stopOnce sync.Once
}

// New creates a new time server
func New(config Config) (*Server, error) {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		config.Name = fmt.Sprintf("%s-udptime", hostname)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.FaultMode != FaultDrop && config.FaultMode != FaultRefuse {
		return nil, fmt.Errorf("invalid fault mode: %v", config.FaultMode)
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		ready:    make(chan struct{}),
		stopChan: make(chan struct{}),
	}
	s.log = logger.WithComponent("timeserver").With().Str("server_id", s.serverID).Logger()

	return s, nil
}

// Run binds the socket and handles datagrams one at a time until ctx is done.
// It returns nil on cancellation and an error only if the socket cannot be bound.
func (s *Server) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	conn, err := net.ListenPacket("udp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	s.addr = conn.LocalAddr()
	close(s.ready)

	s.log.Info().
		Str("name", s.config.Name).
		Str("addr", s.addr.String()).
		Str("fault_mode", s.config.FaultMode.String()).
		Msg("UDP time server running")

	if s.config.EnableMDNS {
		s.startMDNS()
	}

	loopDone := make(chan struct{})
	defer close(loopDone)
	go func() {
		select {
		case <-ctx.Done():
		case <-loopDone:
		}
		conn.Close()
	}()

	s.loop(ctx, conn)

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}
	s.log.Info().Msg("UDP time server stopped")

	return nil
}

// loop is the only goroutine that reads or writes health.
func (s *Server) loop(ctx context.Context, conn net.PacketConn) {
	health := HealthHealthy
	s.health.Store(int32(health))

	buf := make([]byte, protocol.MaxPayload)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn().Err(err).Msg("Read error")
			continue
		}

		health = s.handle(conn, health, buf[:n], from)
	}
}

// handle processes one datagram under the current health and returns the next.
func (s *Server) handle(w net.PacketConn, current Health, payload []byte, from net.Addr) Health {
	cmd, err := protocol.Decode(payload)
	if err != nil {
		s.log.Debug().Err(err).Str("from", from.String()).Msg("Undecodable datagram")
	}

	next, action := transition(current, cmd.Kind, s.config.FaultMode)
	if next != current {
		s.health.Store(int32(next))
	}

	var reply []byte
	switch action {
	case ActionReplied:
		reply = protocol.EncodeReply(s.config.Now())
		s.answered.Add(1)
		s.log.Info().Str("from", from.String()).Str("reply", string(reply)).Msg("Time request answered")
	case ActionDropped:
		s.dropped.Add(1)
		s.log.Info().Str("from", from.String()).Msg("Time request ignored (simulated crash)")
	case ActionRefused:
		reply = []byte(protocol.ReplyUnavailable)
		s.refused.Add(1)
		s.log.Info().Str("from", from.String()).Msg("Time request refused (simulated crash)")
	case ActionRejected:
		reply = []byte(protocol.ReplyInvalidRequest)
		s.invalid.Add(1)
		s.log.Info().Str("from", from.String()).Int("bytes", len(payload)).Msg("Invalid request")
	case ActionCrashed:
		s.crashes.Add(1)
		s.log.Warn().Str("from", from.String()).Msg("[ADMIN] Simulation mode: CRASHED")
	case ActionRepaired:
		s.repairs.Add(1)
		s.log.Warn().Str("from", from.String()).Msg("[ADMIN] Simulation mode: REPAIRED")
	}

	if reply != nil {
		if _, err := w.WriteTo(reply, from); err != nil {
			s.log.Warn().Err(err).Str("to", from.String()).Msg("Failed to send reply")
		}
	}

	if s.config.OnEvent != nil {
		s.config.OnEvent(Event{
			At:      time.Now(),
			From:    from.String(),
			Command: cmd.Kind,
			Action:  action,
			Health:  next,
		})
	}

	return next
}

func (s *Server) startMDNS() {
	port := 0
	if udpAddr, ok := s.addr.(*net.UDPAddr); ok {
		port = udpAddr.Port
	}

	s.mdnsManager = discovery.NewManager(discovery.Config{
		ServiceName: s.config.Name,
		Port:        port,
	})

	if err := s.mdnsManager.Advertise(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to start mDNS advertisement")
	}
}

// Start runs the server until Stop is called
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.Run(ctx)
}

// Stop stops a server started with Start
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Ready is closed once the socket is bound
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or nil before Ready is closed
func (s *Server) Addr() net.Addr {
	select {
	case <-s.ready:
		return s.addr
	default:
		return nil
	}
}

// ID returns the server instance ID
func (s *Server) ID() string {
	return s.serverID
}

// Name returns the configured server name
func (s *Server) Name() string {
	return s.config.Name
}

// FaultMode returns the configured fault mode
func (s *Server) FaultMode() FaultMode {
	return s.config.FaultMode
}

// Health returns the most recent health published by the receive loop.
// Health only changes through ADMIN_CRASH and ADMIN_REPAIR datagrams.
func (s *Server) Health() Health {
	return Health(s.health.Load())
}

// Stats returns a snapshot of the datagram counters
func (s *Server) Stats() Stats {
	return Stats{
		Answered: s.answered.Load(),
		Dropped:  s.dropped.Load(),
		Refused:  s.refused.Load(),
		Invalid:  s.invalid.Load(),
		Crashes:  s.crashes.Load(),
		Repairs:  s.repairs.Load(),
	}
}
