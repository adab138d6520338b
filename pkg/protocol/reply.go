// ABOUTME: Time reply encoding and decoding
// ABOUTME: Fixed-width local timestamps with microsecond precision
package protocol

import (
	"errors"
	"fmt"
	"time"
)

// TimestampLayout renders YYYY-MM-DD HH:MM:SS.ffffff in server local time.
// There is no zone field; both ends interpret it as their local zone.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// TimestampLen is the fixed length of an encoded reply
const TimestampLen = len(TimestampLayout)

var (
	// ErrInvalidRequest is returned when the server answered INVALID_REQUEST
	ErrInvalidRequest = errors.New("server rejected request as invalid")

	// ErrUnavailable is returned when a failed server refused the request
	ErrUnavailable = errors.New("server refused request: service unavailable")

	// ErrMalformedReply is returned for replies that are not a timestamp
	ErrMalformedReply = errors.New("malformed time reply")
)

// EncodeReply formats t as a reply payload, truncated to microseconds
func EncodeReply(t time.Time) []byte {
	return []byte(t.Truncate(time.Microsecond).Format(TimestampLayout))
}

// DecodeReply parses a reply payload as a local timestamp.
// Error tokens map to ErrInvalidRequest and ErrUnavailable; everything else
// that does not match the layout wraps ErrMalformedReply.
func DecodeReply(b []byte) (time.Time, error) {
	s := string(b)

	switch s {
	case ReplyInvalidRequest:
		return time.Time{}, ErrInvalidRequest
	case ReplyUnavailable:
		return time.Time{}, ErrUnavailable
	}

	if len(b) != TimestampLen {
		return time.Time{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedReply, TimestampLen, len(b))
	}

	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	return t, nil
}
