// Package transcript renders the active session: a header with title and
// status, and a scrollable list of turns.
package transcript

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/wordwrap"

	"github.com/zjrosen/agentdesk/internal/log"
	"github.com/zjrosen/agentdesk/internal/session"
	"github.com/zjrosen/agentdesk/internal/ui/styles"
)

// Model shows one session.
type Model struct {
	viewport viewport.Model
	session  *session.Session
	markdown bool
	style    string
	renderer *markdownRenderer
	width    int
	height   int
}

// New creates an empty transcript. markdown selects glamour rendering for
// agent turns.
func New(markdown bool, style string) Model {
	return Model{
		viewport: viewport.New(0, 0),
		markdown: markdown,
		style:    style,
	}
}

// SetSize resizes the transcript including its one-line header.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-1, 0)
	return m.refresh(false)
}

// SetStyle switches the glamour style (after a theme change).
func (m Model) SetStyle(style string) Model {
	if style == m.style {
		return m
	}
	m.style = style
	m.renderer = nil
	return m.refresh(false)
}

// SetSession replaces the shown session. nil shows the empty state. The view
// follows the bottom when it was already there.
func (m Model) SetSession(s *session.Session) Model {
	follow := m.viewport.AtBottom() || m.session == nil || s == nil || m.session.ID != s.ID
	m.session = s
	return m.refresh(follow)
}

// Update forwards scrolling input to the viewport.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// ScrollUp moves up one page.
func (m Model) ScrollUp() Model {
	m.viewport.PageUp()
	return m
}

// ScrollDown moves down one page.
func (m Model) ScrollDown() Model {
	m.viewport.PageDown()
	return m
}

// View renders the header followed by the turns.
func (m Model) View() string {
	return m.header() + "\n" + m.viewport.View()
}

func (m Model) header() string {
	if m.session == nil {
		return styles.HeaderStyle.Render("New task")
	}
	s := m.session
	badge := lipgloss.NewStyle().Foreground(styles.StatusColor(s.Status)).Render("● " + string(s.Status))
	title := s.Title
	if title == "" {
		title = s.ID
	}
	room := max(m.width-lipgloss.Width(badge)-1, 1)
	return styles.HeaderStyle.Render(ansi.Truncate(title, room, "…")) + " " + badge
}

func (m Model) refresh(follow bool) Model {
	m.viewport.SetContent(m.body())
	if follow {
		m.viewport.GotoBottom()
	}
	return m
}

func (m *Model) body() string {
	if m.session == nil {
		return styles.MutedStyle.Render("Type a prompt and press enter to start a session.")
	}
	var b strings.Builder
	for i, turn := range m.session.Turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderTurn(turn))
		b.WriteString("\n")
	}
	if m.session.Error != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.StatusErrorColor).
			Render(wordwrap.String("error: "+m.session.Error, max(m.width, 20))))
	}
	return b.String()
}

func (m *Model) renderTurn(turn session.Turn) string {
	width := max(m.width, 20)
	if turn.Role == session.RoleUser {
		label := lipgloss.NewStyle().Bold(true).Foreground(styles.UserTurnColor).Render("You")
		return label + "\n" + wordwrap.String(turn.Text, width)
	}

	label := lipgloss.NewStyle().Bold(true).Foreground(styles.AgentTurnColor).Render("Agent")
	text := turn.Text
	if text == "" {
		text = styles.MutedStyle.Render("(no text)")
	} else if rendered, ok := m.renderMarkdown(text, width); ok {
		text = strings.TrimRight(rendered, "\n")
	} else {
		text = wordwrap.String(text, width)
	}
	return label + "\n" + text
}

func (m *Model) renderMarkdown(text string, width int) (string, bool) {
	if !m.markdown {
		return "", false
	}
	if m.renderer == nil || m.renderer.width != width || m.renderer.style != m.style {
		r, err := newMarkdownRenderer(width, m.style)
		if err != nil {
			log.ErrorErr(log.CatUI, "markdown renderer", err, "style", m.style)
			return "", false
		}
		m.renderer = r
	}
	out, err := m.renderer.r.Render(text)
	if err != nil {
		log.Debug(log.CatUI, "markdown render failed", "error", err)
		return "", false
	}
	return out, true
}

// TurnCount returns how many turns are shown.
func (m Model) TurnCount() int {
	if m.session == nil {
		return 0
	}
	return len(m.session.Turns)
}
