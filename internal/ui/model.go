// ABOUTME: Bubbletea model for the sync client TUI
// ABOUTME: Renders the latest outcome and the bounded history, drives requests
package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/timesync-go/pkg/protocol"
	"github.com/Resonate-Protocol/timesync-go/pkg/syncclient"
)

// Syncer is the part of the sync client the TUI drives
type Syncer interface {
	RequestTime(target string, timeout time.Duration) (syncclient.Outcome, error)
	SendAdminCommand(target string, kind syncclient.AdminKind) error
}

// Model represents the TUI state
type Model struct {
	syncer  Syncer
	history *syncclient.History

	// Target
	target  string
	timeout time.Duration

	// Request state
	busy      bool
	lastErr   error
	lastAdmin string
	localTime time.Time
	lastLocal time.Time
	requests  int

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int
}

// outcomeMsg carries the result of a RequestTime call
type outcomeMsg struct {
	outcome syncclient.Outcome
	local   time.Time
	err     error
}

// adminMsg carries the result of a SendAdminCommand call
type adminMsg struct {
	kind syncclient.AdminKind
	err  error
}

type tickMsg time.Time

// Init starts the local clock tick
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.localTime = time.Time(msg)
		return m, tickEvery()
	case outcomeMsg:
		m.applyOutcome(msg)
	case adminMsg:
		m.applyAdmin(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderLatest()
	s += m.renderHistory()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders target and local clock
func (m Model) renderHeader() string {
	status := "Idle"
	if m.busy {
		status = "Waiting for reply..."
	}

	return fmt.Sprintf(`┌─ Time Sync Client ───────────────────────────────────┐
│ Target: %-44s │
│ Local:  %-44s │
│ Status: %-44s │
├──────────────────────────────────────────────────────┤
`, truncate(m.target, 44), formatTime(m.localTime), truncate(status, 44))
}

// renderLatest renders the most recent outcome
func (m Model) renderLatest() string {
	if m.lastErr != nil {
		return fmt.Sprintf("│ ✗ Error: %-43s │\n", truncate(m.lastErr.Error(), 43))
	}

	latest, ok := m.history.Latest()
	if !ok {
		return "│ No requests yet                                      │\n"
	}

	switch latest.Kind {
	case syncclient.OutcomeSuccess:
		return fmt.Sprintf("│ ✓ Server: %-42s │\n│   Local:  %-42s │\n│   RTT:    %-42s │\n",
			formatTime(latest.ServerTime),
			formatTime(m.lastLocal),
			latest.RoundTrip.Round(time.Microsecond).String())
	case syncclient.OutcomeTimeout:
		return fmt.Sprintf("│ ⚠ Timeout: no reply within %-25s │\n", latest.Waited.String())
	default:
		return fmt.Sprintf("│ ✗ %-50s │\n", truncate(latest.String(), 50))
	}
}

// renderHistory renders the bounded history, newest first
func (m Model) renderHistory() string {
	s := "├──────────────────────────────────────────────────────┤\n"
	s += fmt.Sprintf("│ History (last %d):%-35s │\n", m.history.Cap(), "")

	entries := m.history.Entries()
	if len(entries) == 0 {
		s += "│   (empty)                                            │\n"
	}
	for _, e := range entries {
		s += fmt.Sprintf("│   %s %-48s │\n", outcomeIcon(e.Kind), truncate(e.String(), 48))
	}

	return s
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ s:Sync  c:Crash  r:Repair  d:Debug  q:Quit           │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Requests:   %-38d │
│   Timeout:    %-38s │
│   Last admin: %-38s │
`, m.requests, m.timeout.String(), truncate(m.lastAdmin, 38))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "s", "enter":
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.requests++
		return m, m.requestTime()
	case "c":
		return m, m.sendAdmin(syncclient.AdminCrash)
	case "r":
		return m, m.sendAdmin(syncclient.AdminRepair)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) requestTime() tea.Cmd {
	syncer, target, timeout := m.syncer, m.target, m.timeout
	return func() tea.Msg {
		out, err := syncer.RequestTime(target, timeout)
		return outcomeMsg{outcome: out, local: time.Now(), err: err}
	}
}

func (m Model) sendAdmin(kind syncclient.AdminKind) tea.Cmd {
	syncer, target := m.syncer, m.target
	return func() tea.Msg {
		return adminMsg{kind: kind, err: syncer.SendAdminCommand(target, kind)}
	}
}

// applyOutcome records a finished request
func (m *Model) applyOutcome(msg outcomeMsg) {
	m.busy = false
	m.lastErr = msg.err
	if msg.err != nil {
		return
	}
	m.lastLocal = msg.local
	m.history.Add(msg.outcome)
}

// applyAdmin records a sent admin command
func (m *Model) applyAdmin(msg adminMsg) {
	if msg.err != nil {
		m.lastErr = msg.err
		m.lastAdmin = fmt.Sprintf("%s (failed)", msg.kind)
		return
	}
	m.lastErr = nil
	m.lastAdmin = fmt.Sprintf("%s sent", msg.kind)
}

// Utility functions
func outcomeIcon(kind syncclient.OutcomeKind) string {
	switch kind {
	case syncclient.OutcomeSuccess:
		return "✓"
	case syncclient.OutcomeTimeout:
		return "⚠"
	default:
		return "✗"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(protocol.TimestampLayout)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
