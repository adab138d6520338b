// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the sync client
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/timesync-go/pkg/syncclient"
)

// NewModel creates a new TUI model; a nil history gets the default capacity
func NewModel(syncer Syncer, target string, timeout time.Duration, history *syncclient.History) Model {
	if history == nil {
		history = syncclient.NewHistory(syncclient.HistoryCapacity)
	}

	return Model{
		syncer:    syncer,
		history:   history,
		target:    target,
		timeout:   timeout,
		localTime: time.Now(),
	}
}

// Run creates the TUI program; the caller runs it
func Run(model Model) *tea.Program {
	return tea.NewProgram(model, tea.WithAltScreen())
}
