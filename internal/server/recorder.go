// ABOUTME: Collects recent time service events into status snapshots
// ABOUTME: Bridges the server's OnEvent hook to the status TUI
package server

import (
	"sync"

	"github.com/Resonate-Protocol/timesync-go/pkg/timeserver"
)

// DefaultEventLimit is how many recent datagrams the status view keeps
const DefaultEventLimit = 8

// Recorder keeps the most recent events, newest first
type Recorder struct {
	mu     sync.Mutex
	events []timeserver.Event
	limit  int

	srv *timeserver.Server
	tui *ServerTUI
}

// NewRecorder creates a recorder; tui may be nil
func NewRecorder(limit int, tui *ServerTUI) *Recorder {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	return &Recorder{
		limit: limit,
		tui:   tui,
	}
}

// Attach sets the server whose identity and counters are reported
func (r *Recorder) Attach(srv *timeserver.Server) {
	r.mu.Lock()
	r.srv = srv
	r.mu.Unlock()
}

// OnEvent records ev and pushes a fresh snapshot. Suitable as timeserver.Config.OnEvent.
func (r *Recorder) OnEvent(ev timeserver.Event) {
	r.mu.Lock()
	r.events = append([]timeserver.Event{ev}, r.events...)
	if len(r.events) > r.limit {
		r.events = r.events[:r.limit]
	}
	r.mu.Unlock()

	if r.tui != nil {
		r.tui.Update(r.Status())
	}
}

// Status builds a snapshot for the TUI
func (r *Recorder) Status() ServerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := ServerStatus{
		Events: append([]timeserver.Event(nil), r.events...),
	}

	if r.srv != nil {
		status.Name = r.srv.Name()
		status.ID = r.srv.ID()
		status.FaultMode = r.srv.FaultMode()
		status.Health = r.srv.Health()
		status.Stats = r.srv.Stats()
		if addr := r.srv.Addr(); addr != nil {
			status.Addr = addr.String()
		}
	}

	return status
}
