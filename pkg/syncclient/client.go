// ABOUTME: UDP sync client for the time service
// ABOUTME: Sends REQUEST_TIME with a hard deadline and classifies the reply
package syncclient

import (
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/timesync-go/internal/logger"
	"github.com/Resonate-Protocol/timesync-go/pkg/protocol"
)

// AdminKind selects an administrative command
type AdminKind int

const (
	AdminCrash AdminKind = iota
	AdminRepair
)

func (k AdminKind) String() string {
	switch k {
	case AdminCrash:
		return "crash"
	case AdminRepair:
		return "repair"
	default:
		return "unknown"
	}
}

// ParseAdminKind accepts "crash" or "repair"
func ParseAdminKind(s string) (AdminKind, error) {
	switch s {
	case "crash":
		return AdminCrash, nil
	case "repair":
		return AdminRepair, nil
	default:
		return 0, &CallerError{Err: ErrUnknownAdminKind}
	}
}

func (k AdminKind) protocolKind() (protocol.Kind, bool) {
	switch k {
	case AdminCrash:
		return protocol.KindAdminCrash, true
	case AdminRepair:
		return protocol.KindAdminRepair, true
	default:
		return protocol.KindUnrecognized, false
	}
}

// Config holds client configuration
type Config struct {
	// Network to dial (default: "udp")
	Network string

	// OnOutcome is called with every classified outcome
	OnOutcome func(Outcome)
}

// Client issues time requests and admin commands
type Client struct {
	config Config
	log    zerolog.Logger
}

// New creates a new sync client
func New(config Config) *Client {
	if config.Network == "" {
		config.Network = "udp"
	}

	return &Client{
		config: config,
		log:    logger.WithComponent("syncclient"),
	}
}

// RequestTime sends one REQUEST_TIME to target and waits at most timeout.
//
// Timeouts and undecodable replies are reported in the Outcome with a nil
// error. A non-nil error is either a *CallerError (bad arguments, nothing
// was sent) or a *TransportError (the socket failed for another reason).
func (c *Client) RequestTime(target string, timeout time.Duration) (Outcome, error) {
	if timeout <= 0 {
		return Outcome{}, &CallerError{Err: ErrInvalidTimeout}
	}
	if target == "" {
		return Outcome{}, &CallerError{Err: ErrEmptyTarget}
	}

	start := time.Now()
	out := Outcome{
		ID:        uuid.New().String(),
		Target:    target,
		StartedAt: start,
	}

	conn, err := net.Dial(c.config.Network, target)
	if err != nil {
		return out, &TransportError{Op: "dial", Target: target, Err: err}
	}
	defer conn.Close()

	// hard deadline measured from before the dial
	if err := conn.SetDeadline(start.Add(timeout)); err != nil {
		return out, &TransportError{Op: "set deadline", Target: target, Err: err}
	}

	request, _ := protocol.Encode(protocol.KindTimeRequest)
	if _, err := conn.Write(request); err != nil {
		if isTimeout(err) {
			return c.finish(timedOut(out, timeout)), nil
		}
		return out, &TransportError{Op: "send", Target: target, Err: err}
	}

	buf := make([]byte, protocol.MaxPayload)
	n, err := conn.Read(buf)
	received := time.Now()
	if err != nil {
		if isTimeout(err) {
			return c.finish(timedOut(out, timeout)), nil
		}
		return out, &TransportError{Op: "receive", Target: target, Err: err}
	}

	serverTime, err := protocol.DecodeReply(buf[:n])
	if err != nil {
		out.Kind = OutcomeProtocolError
		out.Reason = err.Error()
		return c.finish(out), nil
	}

	out.Kind = OutcomeSuccess
	out.ServerTime = serverTime
	out.RoundTrip = received.Sub(start)

	return c.finish(out), nil
}

func timedOut(out Outcome, timeout time.Duration) Outcome {
	out.Kind = OutcomeTimeout
	out.Waited = timeout
	return out
}

func (c *Client) finish(out Outcome) Outcome {
	c.log.Info().
		Str("id", out.ID).
		Str("target", out.Target).
		Str("kind", out.Kind.String()).
		Msg(out.String())

	if c.config.OnOutcome != nil {
		c.config.OnOutcome(out)
	}
	return out
}

// SendAdminCommand sends ADMIN_CRASH or ADMIN_REPAIR to target.
// The error only reflects the local send; the service never acknowledges.
func (c *Client) SendAdminCommand(target string, kind AdminKind) error {
	pk, ok := kind.protocolKind()
	if !ok {
		return &CallerError{Err: ErrUnknownAdminKind}
	}
	if target == "" {
		return &CallerError{Err: ErrEmptyTarget}
	}

	payload, err := protocol.Encode(pk)
	if err != nil {
		return &CallerError{Err: err}
	}

	conn, err := net.Dial(c.config.Network, target)
	if err != nil {
		return &TransportError{Op: "dial", Target: target, Err: err}
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		return &TransportError{Op: "send", Target: target, Err: err}
	}

	c.log.Info().Str("target", target).Str("command", pk.String()).Msg("Admin command sent")
	return nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
