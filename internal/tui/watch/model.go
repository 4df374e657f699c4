package watch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/porter-gw/porter/internal/events"
)

const eventLogSize = 50

// alertPayload is the subset of an alert event the TUI renders.
type alertPayload struct {
	Source   string `json:"source"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Model is the BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	connected     bool
	status        string
	uptimeSeconds int64
	pluginsLoaded int

	alertTable table.Model
	eventLog   []events.Event

	theme     Theme
	hubEvents chan events.Event
	lastError string
}

// New creates a watch TUI model pointed at the admin API.
func New(apiURL, apiKey string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Time", Width: 8},
			{Title: "Severity", Width: 8},
			{Title: "Source", Width: 18},
			{Title: "Message", Width: 50},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		apiURL:     apiURL,
		apiKey:     apiKey,
		alertTable: t,
		eventLog:   make([]events.Event, 0),
		hubEvents:  make(chan events.Event, 100),
		theme:      NewDefaultTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.apiURL) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.alertTable, cmd = m.alertTable.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := events.Event(msg)
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > eventLogSize {
			m.eventLog = m.eventLog[:eventLogSize]
		}
		if e.Kind == events.KindAlert {
			m.refreshAlertRows()
		}
		m.connected = true
		m.lastError = ""
		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.status = msg.Status
		m.uptimeSeconds = msg.UptimeSeconds
		m.pluginsLoaded = msg.PluginsLoaded
		m.connected = true
		m.lastError = ""
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL)
		})

	case disconnectedMsg:
		m.connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL)
		})
	}

	return m, nil
}

func (m *Model) refreshAlertRows() {
	rows := make([]table.Row, 0, len(m.eventLog))
	for _, e := range m.eventLog {
		if e.Kind != events.KindAlert {
			continue
		}
		var a alertPayload
		if err := json.Unmarshal(e.Payload, &a); err != nil {
			continue
		}
		rows = append(rows, table.Row{
			e.At.Local().Format("15:04:05"),
			a.Severity,
			a.Source,
			a.Message,
		})
	}
	m.alertTable.SetRows(rows)
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to porter..."
	}

	conn := m.theme.ConnDown.Render("● offline")
	if m.connected {
		conn = m.theme.ConnUp.Render("● connected")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		m.theme.Title.Render("porter watch"),
		m.theme.Dim.Render(fmt.Sprintf("  %s  plugins: %d  up: %s  ",
			m.status, m.pluginsLoaded, formatUptime(m.uptimeSeconds))),
		conn,
	)

	alerts := m.theme.Border.Render(m.alertTable.View())
	stream := m.renderEventStream()

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.SevCritical.Render(" ⚠ " + m.lastError)
	}

	help := m.theme.Dim.Render(" [q] Quit • [↑/↓] Scroll Alerts")

	parts := []string{header, alerts, stream}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m Model) renderEventStream() string {
	lines := []string{m.theme.Title.Render("Events")}
	max := 8
	for i, e := range m.eventLog {
		if i >= max {
			break
		}
		ts := m.theme.Dim.Render(e.At.Local().Format("15:04:05"))
		var body string
		switch e.Kind {
		case events.KindAlert:
			var a alertPayload
			_ = json.Unmarshal(e.Payload, &a)
			body = m.theme.severity(a.Severity).Render(fmt.Sprintf("%s %s: %s", a.Severity, a.Source, a.Message))
		default:
			body = fmt.Sprintf("%s %s", e.Kind, string(e.Payload))
		}
		lines = append(lines, fmt.Sprintf("%s %s", ts, body))
	}
	if len(lines) == 1 {
		lines = append(lines, m.theme.Dim.Render("waiting for events..."))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func formatUptime(secs int64) string {
	d := time.Duration(secs) * time.Second
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
