// ABOUTME: Server TUI for displaying health, counters and recent datagrams
// ABOUTME: Real-time time service status display using bubbletea
package server

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Resonate-Protocol/timesync-go/pkg/timeserver"
)

// ServerTUI manages the server TUI
type ServerTUI struct {
	program  *tea.Program
	updates  chan ServerStatus
	quitChan chan struct{} // Signal to stop the server
}

// ServerStatus holds server state for TUI
type ServerStatus struct {
	Name      string
	Addr      string
	ID        string
	FaultMode timeserver.FaultMode
	Health    timeserver.Health
	Stats     timeserver.Stats
	Events    []timeserver.Event
}

// tuiModel is the bubbletea model for server TUI
type tuiModel struct {
	status    ServerStatus
	startTime time.Time
	now       time.Time
	quitting  bool
	quitChan  chan struct{} // Channel to signal server stop
}

type tickMsg time.Time
type statusMsg ServerStatus

func newTUIModel(status ServerStatus, quitChan chan struct{}) tuiModel {
	now := time.Now()
	return tuiModel{
		status:    status,
		startTime: now,
		now:       now,
		quitChan:  quitChan,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			// Signal the server to stop
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickEvery()

	case statusMsg:
		m.status = ServerStatus(msg)
		return m, nil
	}

	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	healthyStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("UDP Time Server"))
	b.WriteString("\n\n")

	field := func(label, value string) {
		b.WriteString(headerStyle.Render(label + ": "))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	field("Server", m.status.Name)
	field("Address", m.status.Addr)
	field("Fault mode", m.status.FaultMode.String())
	field("Uptime", m.now.Sub(m.startTime).Round(time.Second).String())

	b.WriteString(headerStyle.Render("Health: "))
	if m.status.Health == timeserver.HealthHealthy {
		b.WriteString(healthyStyle.Render("HEALTHY"))
	} else {
		b.WriteString(failedStyle.Render("FAILED"))
	}
	b.WriteString("\n\n")

	st := m.status.Stats
	b.WriteString(sectionStyle.Render("Datagrams"))
	b.WriteString("\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("  answered %d  dropped %d  refused %d  invalid %d",
		st.Answered, st.Dropped, st.Refused, st.Invalid)))
	b.WriteString("\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("  crashes %d  repairs %d", st.Crashes, st.Repairs)))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Recent Datagrams (%d)", len(m.status.Events))))
	b.WriteString("\n\n")

	if len(m.status.Events) == 0 {
		b.WriteString(valueStyle.Render("  No datagrams received"))
		b.WriteString("\n")
	} else {
		for _, ev := range m.status.Events {
			b.WriteString(fmt.Sprintf("  • %s %-21s", ev.At.Format("15:04:05.000"), ev.From))
			b.WriteString(valueStyle.Render(fmt.Sprintf(" %s -> %s", ev.Command, ev.Action)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// NewServerTUI creates a new server TUI
func NewServerTUI() *ServerTUI {
	return &ServerTUI{
		updates:  make(chan ServerStatus, 10),
		quitChan: make(chan struct{}, 1),
	}
}

// Start runs the TUI until the user quits or Stop is called
func (t *ServerTUI) Start(initial ServerStatus) error {
	t.program = tea.NewProgram(newTUIModel(initial, t.quitChan), tea.WithAltScreen())

	// Start listening for updates in a goroutine
	go func() {
		for status := range t.updates {
			t.program.Send(statusMsg(status))
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *ServerTUI) Update(status ServerStatus) {
	select {
	case t.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI
func (t *ServerTUI) Stop() {
	if t.program != nil {
		t.program.Quit()
	}
	close(t.updates)
}

// QuitChan returns the channel that signals when user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
