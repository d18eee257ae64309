package monitor

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// row is one peer's current state in the live table.
type row struct {
	peerHash  string
	transport string
	cost      int
	rttSkew   uint32
	lastEvent string
}

// Model is the TUI's root tea.Model: a table of live peer sessions fed
// by events arriving on an EventStream, plus a status line.
type Model struct {
	stream *EventStream
	table  table.Model
	rows   map[string]*row
	status string
}

// eventMsg wraps one decoded event as a tea.Msg.
type eventMsg RowEvent

// errMsg wraps a stream read error as a tea.Msg.
type errMsg struct{ err error }

// NewModel builds a Model that reads events from stream.
func NewModel(stream *EventStream) Model {
	columns := []table.Column{
		{Title: "Peer Hash", Width: 16},
		{Title: "Transport", Width: 10},
		{Title: "Bid Cost", Width: 10},
		{Title: "RTT Skew (s)", Width: 14},
		{Title: "Last Event", Width: 18},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(20),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	return Model{
		stream: stream,
		table:  t,
		rows:   make(map[string]*row),
		status: "connecting...",
	}
}

func (m Model) Init() tea.Cmd {
	return m.waitForEvent
}

func (m Model) waitForEvent() tea.Msg {
	ev, err := m.stream.Next()
	if err != nil {
		return errMsg{err}
	}
	return eventMsg(ev)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case eventMsg:
		m.applyEvent(RowEvent(msg))
		m.refreshTable()
		return m, m.waitForEvent
	case errMsg:
		m.status = fmt.Sprintf("stream error: %v", msg.err)
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) applyEvent(ev RowEvent) {
	r, ok := m.rows[ev.PeerHash]
	if !ok {
		r = &row{peerHash: ev.PeerHash}
		m.rows[ev.PeerHash] = r
	}
	r.lastEvent = ev.Type
	if ev.Transport != "" {
		r.transport = ev.Transport
	}
	if ev.Cost != 0 {
		r.cost = ev.Cost
	}
	if ev.Type == "rtt_skew" {
		r.rttSkew = ev.Seconds
	}
	if ev.Type == "closed" {
		delete(m.rows, ev.PeerHash)
	}
	m.status = fmt.Sprintf("last: %s (%s)", ev.Type, ev.PeerHash)
}

func (m *Model) refreshTable() {
	rows := make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		hash := r.peerHash
		if len(hash) > 16 {
			hash = hash[:16]
		}
		rows = append(rows, table.Row{
			hash,
			r.transport,
			fmt.Sprintf("%d", r.cost),
			fmt.Sprintf("%d", r.rttSkew),
			r.lastEvent,
		})
	}
	m.table.SetRows(rows)
}

func (m Model) View() string {
	return lipgloss.NewStyle().Padding(1).Render(m.table.View() + "\n\n" + m.status + "\n(q to quit)")
}
