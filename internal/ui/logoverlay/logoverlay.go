// Package logoverlay shows recent log entries, including bridge diagnostics,
// without leaving the TUI.
package logoverlay

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/agentdesk/internal/log"
	"github.com/zjrosen/agentdesk/internal/ui/overlay"
	"github.com/zjrosen/agentdesk/internal/ui/styles"
)

const (
	viewportMaxHeight = 25
	viewportMinHeight = 5
	boxMaxWidth       = 160
	boxMinWidth       = 40

	// DefaultCapacity is how many entries are retained.
	DefaultCapacity = 500
)

// CloseMsg is sent when the overlay closes itself.
type CloseMsg struct{}

// Model is the log overlay state.
type Model struct {
	entries  []string
	capacity int
	visible  bool
	minLevel log.Level
	width    int
	height   int
	viewport viewport.Model
}

// New creates a hidden overlay retaining up to capacity entries.
func New(capacity int) Model {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return Model{capacity: capacity, minLevel: log.LevelDebug}
}

// Append records one formatted log entry, dropping the oldest past capacity.
func (m Model) Append(entry string) Model {
	entries := append(m.entries, strings.TrimSuffix(entry, "\n"))
	if over := len(entries) - m.capacity; over > 0 {
		entries = append([]string(nil), entries[over:]...)
	}
	m.entries = entries
	if m.visible {
		m = m.refresh(true)
	}
	return m
}

// Entries returns the retained entries, oldest first.
func (m Model) Entries() []string {
	return m.entries
}

// Update handles keys while visible.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "c":
			m.entries = nil
			return m.refresh(false), nil
		case "d":
			return m.filter(log.LevelDebug), nil
		case "i":
			return m.filter(log.LevelInfo), nil
		case "w":
			return m.filter(log.LevelWarn), nil
		case "e":
			return m.filter(log.LevelError), nil
		case "j", "down":
			m.viewport.ScrollDown(1)
		case "k", "up":
			m.viewport.ScrollUp(1)
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		case "esc", "ctrl+l":
			m.visible = false
			return m, func() tea.Msg { return CloseMsg{} }
		}
	case tea.WindowSizeMsg:
		return m.SetSize(msg.Width, msg.Height), nil
	}
	return m, nil
}

func (m Model) filter(level log.Level) Model {
	m.minLevel = level
	return m.refresh(true)
}

// Toggle flips visibility.
func (m Model) Toggle() Model {
	m.visible = !m.visible
	if m.visible {
		m = m.refresh(true)
	}
	return m
}

// Visible reports whether the overlay is shown.
func (m Model) Visible() bool {
	return m.visible
}

// SetSize records the screen size.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	return m.refresh(true)
}

// Filtered returns the entries at or above the current level.
func (m Model) Filtered() []string {
	var out []string
	for _, e := range m.entries {
		if levelOf(e) >= m.minLevel {
			out = append(out, e)
		}
	}
	return out
}

// levelOf reads the level tag written by log.Format. Untagged lines count
// as errors so they are never filtered out.
func levelOf(entry string) log.Level {
	for _, l := range []log.Level{log.LevelError, log.LevelWarn, log.LevelInfo, log.LevelDebug} {
		if strings.Contains(entry, "["+l.String()+"]") {
			return l
		}
	}
	return log.LevelError
}

func (m Model) refresh(follow bool) Model {
	if m.width == 0 || m.height == 0 {
		return m
	}
	// header, footer and border take six lines
	h := max(min(viewportMaxHeight, m.height-6), viewportMinHeight)
	w := m.contentWidth()
	if m.viewport.Width != w || m.viewport.Height != h {
		m.viewport = viewport.New(w, h)
	}
	m.viewport.SetContent(m.content(w))
	if follow {
		m.viewport.GotoBottom()
	}
	return m
}

func (m Model) content(width int) string {
	filtered := m.Filtered()
	if len(filtered) == 0 {
		return lipgloss.NewStyle().Foreground(styles.TextMutedColor).Italic(true).Render("No logs to display")
	}
	lines := make([]string, 0, len(filtered))
	for _, e := range filtered {
		lines = append(lines, colorize(e, width))
	}
	return strings.Join(lines, "\n")
}

func colorize(entry string, width int) string {
	if ansi.StringWidth(entry) > width {
		entry = ansi.Truncate(entry, width-1, "…")
	}
	var c lipgloss.TerminalColor
	switch levelOf(entry) {
	case log.LevelError:
		c = styles.StatusErrorColor
	case log.LevelWarn:
		c = styles.ToastBorderWarnColor
	case log.LevelInfo:
		c = styles.ToastBorderInfoColor
	default:
		c = styles.TextMutedColor
	}
	return lipgloss.NewStyle().Foreground(c).Render(entry)
}

func (m Model) boxWidth() int {
	return max(min(m.width-4, boxMaxWidth), boxMinWidth)
}

func (m Model) contentWidth() int {
	return m.boxWidth() - 2
}

// View renders the bordered box, or "" when hidden.
func (m Model) View() string {
	if !m.visible {
		return ""
	}
	w := m.boxWidth()
	divider := lipgloss.NewStyle().Foreground(styles.OverlayBorderColor).Render(strings.Repeat("─", w))
	title := lipgloss.NewStyle().Bold(true).Foreground(styles.OverlayTitleColor).PaddingLeft(1).Render("Logs")

	body := strings.Join([]string{title, divider, m.viewport.View(), divider, m.hints()}, "\n")
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.OverlayBorderColor).
		Width(w).
		Render(body)
}

func (m Model) hints() string {
	muted := lipgloss.NewStyle().Foreground(styles.TextMutedColor)
	active := lipgloss.NewStyle().Foreground(styles.TextPrimaryColor).Bold(true)

	hints := []string{muted.Render("[c] Clear")}
	for _, h := range []struct {
		level log.Level
		label string
	}{
		{log.LevelDebug, "[d] Debug"},
		{log.LevelInfo, "[i] Info"},
		{log.LevelWarn, "[w] Warn"},
		{log.LevelError, "[e] Error"},
	} {
		if h.level == m.minLevel {
			hints = append(hints, active.Render(h.label))
		} else {
			hints = append(hints, muted.Render(h.label))
		}
	}
	return strings.Join(hints, "  ")
}

// Overlay centers the overlay on bg.
func (m Model) Overlay(bg string) string {
	if !m.visible {
		return bg
	}
	return overlay.Place(overlay.Config{
		Width:    m.width,
		Height:   m.height,
		Position: overlay.Center,
	}, m.View(), bg)
}
