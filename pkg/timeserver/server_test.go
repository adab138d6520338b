// ABOUTME: Integration tests for the time server
// ABOUTME: Drives a real UDP socket through healthy, crashed and repaired modes
package timeserver

import (
	"context"
	"errors"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/Resonate-Protocol/timesync-go/pkg/protocol"
)

var replyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{6}$`)

// startServer runs a server on an ephemeral loopback port and returns it
// together with a channel of handled events.
func startServer(t *testing.T, config Config) (*Server, <-chan Event) {
	t.Helper()

	events := make(chan Event, 64)
	config.Addr = "127.0.0.1:0"
	config.OnEvent = func(e Event) {
		select {
		case events <- e:
		default:
		}
	}

	srv, err := New(config)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run(ctx)
	}()

	select {
	case <-srv.Ready():
	case err := <-errChan:
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not become ready")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errChan:
			if err != nil {
				t.Errorf("server error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("server did not stop within timeout")
		}
	})

	return srv, events
}

// peer is a connected UDP socket talking to the server under test
type peer struct {
	t    *testing.T
	conn net.Conn
}

func dialServer(t *testing.T, srv *Server) *peer {
	t.Helper()

	conn, err := net.Dial("udp", srv.Addr().String())
	if err != nil {
		t.Fatalf("failed to dial server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &peer{t: t, conn: conn}
}

func (p *peer) send(payload string) {
	p.t.Helper()
	if _, err := p.conn.Write([]byte(payload)); err != nil {
		p.t.Fatalf("failed to send %q: %v", payload, err)
	}
}

// receive waits up to wait for one datagram
func (p *peer) receive(wait time.Duration) (string, bool) {
	p.t.Helper()

	p.conn.SetReadDeadline(time.Now().Add(wait))
	buf := make([]byte, protocol.MaxPayload)
	n, err := p.conn.Read(buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return "", false
		}
		p.t.Fatalf("read failed: %v", err)
	}
	return string(buf[:n]), true
}

func waitEvent(t *testing.T, events <-chan Event, want Action) Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Action == want {
				return e
			}
		case <-deadline:
			t.Fatalf("no %v event within 2s", want)
		}
	}
}

func TestNewDefaults(t *testing.T) {
	srv, err := New(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if srv.config.Addr != DefaultAddr {
		t.Errorf("expected default addr %s, got %s", DefaultAddr, srv.config.Addr)
	}
	if srv.Name() == "" {
		t.Error("name should have been set to default")
	}
	if srv.config.Now == nil {
		t.Error("clock should have been set to default")
	}
	if srv.ID() == "" {
		t.Error("server ID should be set")
	}
	if srv.Addr() != nil {
		t.Error("addr should be nil before Run")
	}
}

func TestNewRejectsUnknownFaultMode(t *testing.T) {
	if _, err := New(Config{FaultMode: FaultMode(7)}); err == nil {
		t.Error("expected error for unknown fault mode")
	}
}

func TestRequestTimeWhileHealthy(t *testing.T) {
	srv, _ := startServer(t, Config{})
	p := dialServer(t, srv)

	p.send("REQUEST_TIME")
	reply, ok := p.receive(time.Second)
	if !ok {
		t.Fatal("expected a reply from a healthy server")
	}
	if !replyPattern.MatchString(reply) {
		t.Errorf("reply %q does not match timestamp pattern", reply)
	}
	if srv.Health() != HealthHealthy {
		t.Errorf("expected healthy, got %v", srv.Health())
	}
}

func TestSequentialRepliesNonDecreasing(t *testing.T) {
	srv, _ := startServer(t, Config{})
	p := dialServer(t, srv)

	var prev time.Time
	for i := 0; i < 5; i++ {
		p.send("REQUEST_TIME")
		reply, ok := p.receive(time.Second)
		if !ok {
			t.Fatalf("request %d: no reply", i)
		}

		ts, err := protocol.DecodeReply([]byte(reply))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if ts.Before(prev) {
			t.Errorf("request %d: timestamp %v before previous %v", i, ts, prev)
		}
		prev = ts
	}
}

func TestCrashThenRepair(t *testing.T) {
	srv, events := startServer(t, Config{})
	p := dialServer(t, srv)

	p.send("ADMIN_CRASH")
	if reply, ok := p.receive(200 * time.Millisecond); ok {
		t.Fatalf("admin command should not be answered, got %q", reply)
	}
	waitEvent(t, events, ActionCrashed)
	if srv.Health() != HealthFailed {
		t.Fatalf("expected failed after ADMIN_CRASH, got %v", srv.Health())
	}

	p.send("REQUEST_TIME")
	if reply, ok := p.receive(300 * time.Millisecond); ok {
		t.Fatalf("crashed server should stay silent, got %q", reply)
	}
	waitEvent(t, events, ActionDropped)

	p.send("ADMIN_REPAIR")
	waitEvent(t, events, ActionRepaired)
	if srv.Health() != HealthHealthy {
		t.Fatalf("expected healthy after ADMIN_REPAIR, got %v", srv.Health())
	}

	p.send("REQUEST_TIME")
	reply, ok := p.receive(time.Second)
	if !ok {
		t.Fatal("expected a reply after repair")
	}
	if !replyPattern.MatchString(reply) {
		t.Errorf("reply %q does not match timestamp pattern", reply)
	}

	stats := srv.Stats()
	if stats.Answered != 1 || stats.Dropped != 1 || stats.Crashes != 1 || stats.Repairs != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestUnrecognizedPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "ping", payload: "PING"},
		{name: "lowercase", payload: "request_time"},
		{name: "binary", payload: "\xff\x00\xfe"},
	}

	srv, _ := startServer(t, Config{})
	p := dialServer(t, srv)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.send(tt.payload)
			reply, ok := p.receive(time.Second)
			if !ok {
				t.Fatal("expected an error reply")
			}
			if reply != "INVALID_REQUEST" {
				t.Errorf("expected INVALID_REQUEST, got %q", reply)
			}
		})
	}

	// the loop keeps serving after garbage
	p.send("REQUEST_TIME")
	if _, ok := p.receive(time.Second); !ok {
		t.Error("expected the server to keep answering after invalid input")
	}
}

func TestUnrecognizedWhileFailed(t *testing.T) {
	srv, events := startServer(t, Config{})
	p := dialServer(t, srv)

	p.send("ADMIN_CRASH")
	waitEvent(t, events, ActionCrashed)

	p.send("PING")
	reply, ok := p.receive(time.Second)
	if !ok || reply != "INVALID_REQUEST" {
		t.Errorf("expected INVALID_REQUEST while failed, got %q (ok=%v)", reply, ok)
	}
}

func TestRefuseFaultMode(t *testing.T) {
	srv, events := startServer(t, Config{FaultMode: FaultRefuse})
	p := dialServer(t, srv)

	p.send("ADMIN_CRASH")
	waitEvent(t, events, ActionCrashed)

	p.send("REQUEST_TIME")
	reply, ok := p.receive(time.Second)
	if !ok {
		t.Fatal("expected a refusal reply")
	}
	if reply != "SERVICE_UNAVAILABLE" {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %q", reply)
	}
	if srv.Stats().Refused != 1 {
		t.Errorf("expected one refusal, got %d", srv.Stats().Refused)
	}
}

func TestFixedClock(t *testing.T) {
	fixed := time.Date(2025, time.January, 2, 3, 4, 5, 678901000, time.Local)
	srv, _ := startServer(t, Config{Now: func() time.Time { return fixed }})
	p := dialServer(t, srv)

	p.send("REQUEST_TIME")
	reply, ok := p.receive(time.Second)
	if !ok {
		t.Fatal("expected a reply")
	}
	if reply != "2025-01-02 03:04:05.678901" {
		t.Errorf("unexpected reply %q", reply)
	}
}

func TestLastAdminCommandWinsOverSocket(t *testing.T) {
	srv, events := startServer(t, Config{})
	p := dialServer(t, srv)

	sequence := []string{"ADMIN_CRASH", "ADMIN_CRASH", "ADMIN_REPAIR", "ADMIN_CRASH", "ADMIN_REPAIR", "ADMIN_REPAIR", "ADMIN_CRASH"}
	for _, cmd := range sequence {
		p.send(cmd)
	}

	var last Event
	for range sequence {
		select {
		case last = <-events:
		case <-time.After(2 * time.Second):
			t.Fatal("not every admin command was handled")
		}
	}

	if last.Health != HealthFailed || srv.Health() != HealthFailed {
		t.Errorf("expected failed after trailing ADMIN_CRASH, got event=%v server=%v", last.Health, srv.Health())
	}
}

func TestRunTwice(t *testing.T) {
	srv, _ := startServer(t, Config{})

	if err := srv.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestRunBindFailure(t *testing.T) {
	taken, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	defer taken.Close()

	srv, err := New(Config{Addr: taken.LocalAddr().String()})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	if err := srv.Run(context.Background()); err == nil {
		t.Error("expected bind error")
	}
}

func TestServerStartStop(t *testing.T) {
	srv, err := New(Config{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	<-srv.Ready()
	srv.Stop()
	srv.Stop()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("server error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("server did not stop within timeout")
	}
}
