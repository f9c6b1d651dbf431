// Package live contains the Bubble Tea view behind "sensible watch": a list of
// timestamps that re-render in place as time passes.
package live

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/wordwrap"

	"github.com/zjrosen/sensible/internal/keys"
	"github.com/zjrosen/sensible/internal/log"
	"github.com/zjrosen/sensible/internal/pubsub"
	"github.com/zjrosen/sensible/internal/refresh"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79F6"})

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})

	textStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#DDDDDD"})

	selectedStyle = textStyle.
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#00A66E", Dark: "#73F59F"})

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF6B6B"})

	logBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}).
			PaddingLeft(1).
			PaddingRight(1)
)

const (
	logBufferSize = 200 // entries kept for the log pane
	logPaneLines  = 8   // entries shown at once
)

// ReloadedMsg reports a config reload attempt. Err is nil on success.
type ReloadedMsg struct {
	Path string
	Err  error
}

// RefreshedMsg is returned after a refresh completes.
type RefreshedMsg struct {
	Changed int
}

type tickMsg time.Time

// Model holds the live view state.
type Model struct {
	ctx       context.Context
	refresher *refresh.Refresher
	listener  *pubsub.ContinuousListener[refresh.Update]
	logs      *log.LogListener // nil when logging is off
	keys      keys.KeyMap
	help      help.Model

	rows     []refresh.Update
	cursor   int
	showRaw  bool
	showLogs bool
	logLines []string

	status    string
	statusErr bool
	width     int
	height    int
}

// New creates the view over refresher. The event subscription ends when ctx
// is cancelled.
func New(ctx context.Context, refresher *refresh.Refresher) Model {
	return Model{
		ctx:       ctx,
		refresher: refresher,
		listener:  pubsub.NewContinuousListener[refresh.Update](ctx, refresher),
		logs:      log.NewListener(ctx),
		keys:      keys.DefaultKeyMap(),
		help:      help.New(),
		rows:      refresher.Snapshot(),
	}
}

// Init starts listening for updates and schedules the first tick.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.listener.Listen(), m.tick()}
	if m.logs != nil {
		cmds = append(cmds, m.logs.Listen())
	}
	return tea.Batch(cmds...)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresher.Rate(), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refreshCmd() tea.Cmd {
	ctx, r := m.ctx, m.refresher
	return func() tea.Msg {
		return RefreshedMsg{Changed: r.Refresh(ctx)}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tick())

	case RefreshedMsg:
		if msg.Changed > 0 {
			log.Debug(log.CatUI, "Refresh changed rows", "changed", msg.Changed)
		}
		return m, nil

	case pubsub.Event[refresh.Update]:
		m = m.apply(msg)
		return m, m.listener.Listen()

	case log.LogEvent:
		m = m.appendLog(msg.Payload)
		if m.logs == nil {
			return m, nil
		}
		return m, m.logs.Listen()

	case ReloadedMsg:
		if msg.Err != nil {
			m.status = "reload failed: " + msg.Err.Error()
			m.statusErr = true
			return m, nil
		}
		m.status = "reloaded " + msg.Path
		m.statusErr = false
		return m, m.refreshCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.ToggleRaw):
		m.showRaw = !m.showRaw
	case key.Matches(msg, m.keys.Logs):
		m.showLogs = !m.showLogs
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// apply folds a refresher event into the row list.
func (m Model) apply(event pubsub.Event[refresh.Update]) Model {
	u := event.Payload
	idx := -1
	for i, row := range m.rows {
		if row.ID == u.ID {
			idx = i
			break
		}
	}

	// Copy before mutating so earlier Model values keep their rows.
	rows := make([]refresh.Update, len(m.rows), len(m.rows)+1)
	copy(rows, m.rows)

	switch event.Type {
	case pubsub.AddedEvent, pubsub.UpdatedEvent:
		if idx >= 0 {
			rows[idx] = u
		} else {
			rows = append(rows, u)
		}
	case pubsub.RemovedEvent:
		if idx >= 0 {
			rows = append(rows[:idx], rows[idx+1:]...)
		}
	}

	m.rows = rows
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
	return m
}

// appendLog adds entry to the log buffer, dropping the oldest entries beyond
// logBufferSize.
func (m Model) appendLog(entry string) Model {
	entry = strings.TrimRight(entry, "\n")
	start := max(len(m.logLines)+1-logBufferSize, 0)
	lines := make([]string, 0, len(m.logLines)-start+1)
	lines = append(lines, m.logLines[start:]...)
	m.logLines = append(lines, entry)
	return m
}

// LogLines returns the buffered log entries, oldest first.
func (m Model) LogLines() []string {
	return m.logLines
}

func (m Model) logPane() string {
	var body string
	switch {
	case len(m.logLines) == 0 && m.logs == nil:
		body = "logging is off (run with --debug)"
	case len(m.logLines) == 0:
		body = "no log entries yet"
	default:
		lines := m.logLines[max(len(m.logLines)-logPaneLines, 0):]
		if m.width > 0 {
			fitted := make([]string, len(lines))
			for i, line := range lines {
				fitted[i] = ansi.Truncate(line, max(m.width-4, 1), "…")
			}
			lines = fitted
		}
		body = strings.Join(lines, "\n")
	}
	return logBoxStyle.Render(titleStyle.Render("logs") + "\n" + subtleStyle.Render(body))
}

// Rows returns the rows currently displayed.
func (m Model) Rows() []refresh.Update {
	return m.rows
}

// fitRaw truncates raw to the space left of the text column. Before the
// first WindowSizeMsg the width is unknown and raw is returned whole.
func (m Model) fitRaw(raw string, textWidth int) string {
	if m.width == 0 {
		return raw
	}
	avail := m.width - textWidth - 4 // marker and gap
	if avail < 1 {
		return ""
	}
	return ansi.Truncate(raw, avail, "…")
}

// View renders the list.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("sensible"))
	b.WriteString(subtleStyle.Render(fmt.Sprintf("  refreshing every %s", m.refresher.Rate())))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(subtleStyle.Render("  no timestamps"))
		b.WriteString("\n")
	}

	textWidth := 0
	for _, row := range m.rows {
		textWidth = max(textWidth, lipgloss.Width(row.Text))
	}

	for i, row := range m.rows {
		marker, style := "  ", textStyle
		if i == m.cursor {
			marker, style = "› ", selectedStyle
		}
		line := marker + style.Width(textWidth).Render(row.Text)
		if m.showRaw {
			line += "  " + subtleStyle.Render(m.fitRaw(row.Raw, textWidth))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.status != "" {
		status := m.status
		if m.width > 0 {
			status = wordwrap.String(status, m.width)
		}
		b.WriteString("\n")
		if m.statusErr {
			b.WriteString(errorStyle.Render(status))
		} else {
			b.WriteString(subtleStyle.Render(status))
		}
		b.WriteString("\n")
	}

	if m.showLogs {
		b.WriteString("\n")
		b.WriteString(m.logPane())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}
