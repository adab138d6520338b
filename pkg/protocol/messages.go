// ABOUTME: Time sync protocol tokens and command variant
// ABOUTME: Decodes raw datagram payloads into tagged commands
package protocol

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Request tokens. Matching is exact and case-sensitive.
const (
	TokenRequestTime = "REQUEST_TIME"
	TokenAdminCrash  = "ADMIN_CRASH"
	TokenAdminRepair = "ADMIN_REPAIR"
)

// Reply tokens other than a timestamp.
const (
	// ReplyInvalidRequest is sent for any payload that is not a known token
	ReplyInvalidRequest = "INVALID_REQUEST"

	// ReplyUnavailable is sent for time requests while the service is failed
	// and configured to refuse rather than drop
	ReplyUnavailable = "SERVICE_UNAVAILABLE"
)

// MaxPayload is the largest datagram either side reads or writes
const MaxPayload = 1024

var (
	// ErrUnrecognized is returned by Decode for payloads that are not a request token
	ErrUnrecognized = errors.New("unrecognized command")

	// ErrUnknownKind is returned by Encode for kinds that have no wire token
	ErrUnknownKind = errors.New("command kind has no wire token")
)

// Kind tags the variant held by a Command
type Kind int

const (
	KindUnrecognized Kind = iota
	KindTimeRequest
	KindAdminCrash
	KindAdminRepair
)

// String returns the wire token for request kinds and "UNRECOGNIZED" otherwise
func (k Kind) String() string {
	switch k {
	case KindTimeRequest:
		return TokenRequestTime
	case KindAdminCrash:
		return TokenAdminCrash
	case KindAdminRepair:
		return TokenAdminRepair
	default:
		return "UNRECOGNIZED"
	}
}

// Command is a decoded datagram. Payload is only set for KindUnrecognized.
type Command struct {
	Kind    Kind
	Payload []byte
}

// IsAdmin reports whether the command changes service health
func (c Command) IsAdmin() bool {
	return c.Kind == KindAdminCrash || c.Kind == KindAdminRepair
}

// Decode parses a raw datagram into a Command.
//
// Anything that is not exactly one of the request tokens decodes to
// KindUnrecognized together with an error wrapping ErrUnrecognized, so the
// caller still gets a usable variant to dispatch on.
func Decode(b []byte) (Command, error) {
	if len(b) > MaxPayload {
		return unrecognized(b), fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrUnrecognized, len(b), MaxPayload)
	}
	if !utf8.Valid(b) {
		return unrecognized(b), fmt.Errorf("%w: payload is not valid UTF-8", ErrUnrecognized)
	}

	switch string(b) {
	case TokenRequestTime:
		return Command{Kind: KindTimeRequest}, nil
	case TokenAdminCrash:
		return Command{Kind: KindAdminCrash}, nil
	case TokenAdminRepair:
		return Command{Kind: KindAdminRepair}, nil
	}

	return unrecognized(b), fmt.Errorf("%w: %q", ErrUnrecognized, truncate(b, 32))
}

// Encode returns the wire token for a request kind
func Encode(kind Kind) ([]byte, error) {
	switch kind {
	case KindTimeRequest, KindAdminCrash, KindAdminRepair:
		return []byte(kind.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
}

func unrecognized(b []byte) Command {
	payload := make([]byte, len(b))
	copy(payload, b)
	return Command{Kind: KindUnrecognized, Payload: payload}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
