// ABOUTME: Tests for outcome rendering
// ABOUTME: Checks human-readable summaries and the JSON view
package syncclient

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestOutcomeString(t *testing.T) {
	ts := time.Date(2024, time.May, 6, 7, 8, 9, 10000, time.Local)

	tests := []struct {
		name string
		out  Outcome
		want string
	}{
		{
			name: "success",
			out:  Outcome{Kind: OutcomeSuccess, ServerTime: ts, RoundTrip: 1500 * time.Microsecond},
			want: "server time 2024-05-06 07:08:09.000010 (round trip 1.5ms)",
		},
		{
			name: "timeout",
			out:  Outcome{Kind: OutcomeTimeout, Waited: 2 * time.Second},
			want: "timeout: no reply within 2s",
		},
		{
			name: "protocol error",
			out:  Outcome{Kind: OutcomeProtocolError, Reason: "malformed time reply"},
			want: "protocol error: malformed time reply",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.out.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestOutcomeJSON(t *testing.T) {
	out := Outcome{ID: "abc", Kind: OutcomeTimeout, Target: "127.0.0.1:5678", Waited: time.Second}

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	s := string(data)
	if !strings.Contains(s, `"kind":"timeout"`) {
		t.Errorf("expected kind by name in %s", s)
	}
	if strings.Contains(s, "server_time") {
		t.Errorf("zero server time should be omitted: %s", s)
	}

	var decoded Outcome
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if decoded.Kind != OutcomeTimeout || decoded.Waited != time.Second {
		t.Errorf("unexpected decoded outcome %+v", decoded)
	}
}
