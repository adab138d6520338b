// ABOUTME: Outcome of a single time request
// ABOUTME: Success, timeout or protocol error, with human and JSON views
package syncclient

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/timesync-go/pkg/protocol"
)

// OutcomeKind classifies a completed request
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTimeout
	OutcomeProtocolError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeProtocolError:
		return "protocol_error"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name
func (k *OutcomeKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "success":
		*k = OutcomeSuccess
	case "timeout":
		*k = OutcomeTimeout
	case "protocol_error":
		*k = OutcomeProtocolError
	default:
		return fmt.Errorf("unknown outcome kind %q", b)
	}
	return nil
}

// Outcome is the result of one RequestTime call.
// ServerTime and RoundTrip are set for successes, Waited for timeouts and
// Reason for protocol errors.
type Outcome struct {
	ID         string        `json:"id"`
	Kind       OutcomeKind   `json:"kind"`
	Target     string        `json:"target"`
	StartedAt  time.Time     `json:"started_at"`
	ServerTime time.Time     `json:"server_time,omitzero"`
	RoundTrip  time.Duration `json:"round_trip_ns,omitzero"`
	Waited     time.Duration `json:"waited_ns,omitzero"`
	Reason     string        `json:"reason,omitempty"`
}

// OK reports whether the request succeeded
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return fmt.Sprintf("server time %s (round trip %v)",
			o.ServerTime.Format(protocol.TimestampLayout), o.RoundTrip.Round(time.Microsecond))
	case OutcomeTimeout:
		return fmt.Sprintf("timeout: no reply within %v", o.Waited)
	case OutcomeProtocolError:
		return fmt.Sprintf("protocol error: %s", o.Reason)
	default:
		return o.Kind.String()
	}
}
