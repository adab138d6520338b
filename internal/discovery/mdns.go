// ABOUTME: mDNS service discovery for the UDP time service
// ABOUTME: Handles both advertisement (server side) and browsing (client side)
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/timesync-go/internal/logger"
	"github.com/Resonate-Protocol/timesync-go/internal/version"
)

// ServiceType is the mDNS service the time service advertises
const ServiceType = "_udptime._udp"

// ErrNoServer is returned by Discover when nothing answered in time
var ErrNoServer = errors.New("no time service found")

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
	log     zerolog.Logger
}

// ServerInfo describes a discovered time service
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// Addr returns host:port suitable for a UDP dial
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
		log:     logger.WithComponent("discovery"),
	}
}

// Advertise announces the time service via mDNS until Stop is called
func (m *Manager) Advertise() error {
	if m.config.Port <= 0 {
		return fmt.Errorf("cannot advertise without a port")
	}

	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"proto=udptime", "version=" + version.Version},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.log.Info().
		Str("service", m.config.ServiceName).
		Int("port", m.config.Port).
		Str("type", ServiceType).
		Msg("Advertising mDNS service")

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for time services until Stop is called
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

// browseLoop continuously browses for servers
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		m.query(3 * time.Second)
	}
}

func (m *Manager) query(timeout time.Duration) {
	entries := make(chan *mdns.ServiceEntry, 10)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			if entry.AddrV4 == nil {
				continue
			}
			server := &ServerInfo{
				Name: entry.Name,
				Host: entry.AddrV4.String(),
				Port: entry.Port,
			}

			m.log.Debug().Str("name", server.Name).Str("addr", server.Addr()).Msg("Discovered time service")

			select {
			case m.servers <- server:
			case <-m.ctx.Done():
				// drain so the query can finish
			}
		}
	}()

	params := &mdns.QueryParam{
		Service:     ServiceType,
		Domain:      "local",
		Timeout:     timeout,
		Entries:     entries,
		DisableIPv6: true,
	}

	if err := mdns.Query(params); err != nil {
		m.log.Warn().Err(err).Msg("mDNS query failed")
	}
	close(entries)
	<-done
}

// Servers returns the channel of discovered servers
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// Discover runs a single browse and returns the first service that answers
func Discover(timeout time.Duration) (*ServerInfo, error) {
	m := NewManager(Config{})
	defer m.Stop()

	go m.query(timeout)

	select {
	case server := <-m.servers:
		return server, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v", ErrNoServer, timeout)
	}
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	ips := []net.IP{}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
