// ABOUTME: Health state machine for the time service
// ABOUTME: Maps (health, command) to the next health and the action taken
package timeserver

import (
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/timesync-go/pkg/protocol"
)

// Health is the simulated up/down mode of the service
type Health int32

const (
	HealthHealthy Health = iota
	HealthFailed
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthFailed:
		return "failed"
	default:
		return fmt.Sprintf("Health(%d)", int32(h))
	}
}

// FaultMode selects how a failed service treats time requests
type FaultMode int

const (
	// FaultDrop reads the request and never answers
	FaultDrop FaultMode = iota
	// FaultRefuse answers with SERVICE_UNAVAILABLE
	FaultRefuse
)

func (f FaultMode) String() string {
	switch f {
	case FaultDrop:
		return "drop"
	case FaultRefuse:
		return "refuse"
	default:
		return fmt.Sprintf("FaultMode(%d)", int(f))
	}
}

// ParseFaultMode accepts "drop" or "refuse" (case-insensitive)
func ParseFaultMode(s string) (FaultMode, error) {
	switch strings.ToLower(s) {
	case "drop", "":
		return FaultDrop, nil
	case "refuse":
		return FaultRefuse, nil
	default:
		return FaultDrop, fmt.Errorf("unknown fault mode %q (must be drop or refuse)", s)
	}
}

// Action records what the service did with one datagram
type Action int

const (
	ActionReplied Action = iota
	ActionDropped
	ActionRefused
	ActionRejected
	ActionCrashed
	ActionRepaired
)

func (a Action) String() string {
	switch a {
	case ActionReplied:
		return "replied"
	case ActionDropped:
		return "dropped"
	case ActionRefused:
		return "refused"
	case ActionRejected:
		return "rejected"
	case ActionCrashed:
		return "crashed"
	case ActionRepaired:
		return "repaired"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// transition is the whole state machine. Admin commands are fire-and-forget;
// crash and repair are idempotent.
func transition(current Health, kind protocol.Kind, mode FaultMode) (Health, Action) {
	switch kind {
	case protocol.KindAdminCrash:
		return HealthFailed, ActionCrashed
	case protocol.KindAdminRepair:
		return HealthHealthy, ActionRepaired
	case protocol.KindTimeRequest:
		if current == HealthHealthy {
			return current, ActionReplied
		}
		if mode == FaultRefuse {
			return current, ActionRefused
		}
		return current, ActionDropped
	default:
		return current, ActionRejected
	}
}
