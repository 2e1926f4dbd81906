// Package composer is the prompt entry area: a multi-line input, the
// working-directory line and the send/stop button.
package composer

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/agentdesk/internal/projection"
	"github.com/zjrosen/agentdesk/internal/ui/styles"
)

// ButtonZoneID marks the send/stop button for mouse clicks.
const ButtonZoneID = "composer-button"

// ButtonPressedMsg is emitted when the button is clicked.
type ButtonPressedMsg struct {
	Action projection.Action
}

// Model holds the composer state.
type Model struct {
	input textarea.Model
	view  projection.View
	cwd   string
	width int
}

// New creates a focused composer.
func New() Model {
	ta := textarea.New()
	ta.Prompt = ""
	ta.Placeholder = "Describe a task..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	// enter sends; newlines need a modifier
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()
	return Model{input: ta}
}

// SetWidth resizes the input.
func (m Model) SetWidth(width int) Model {
	m.width = width
	m.input.SetWidth(max(width-2, 10))
	return m
}

// SetView applies the derived compose state.
func (m Model) SetView(v projection.View) Model {
	m.view = v
	if v.EntryDisabled {
		m.input.Blur()
	} else if !m.input.Focused() {
		m.input.Focus()
	}
	return m
}

// SetCwd sets the working directory shown under the input.
func (m Model) SetCwd(cwd string) Model {
	m.cwd = cwd
	return m
}

// Cwd returns the working directory shown under the input.
func (m Model) Cwd() string {
	return m.cwd
}

// Value returns the text in the input.
func (m Model) Value() string {
	return m.input.Value()
}

// SetValue replaces the input text and moves the cursor to the end.
func (m Model) SetValue(s string) Model {
	if m.input.Value() == s {
		return m
	}
	m.input.SetValue(s)
	m.input.CursorEnd()
	return m
}

// Update handles typing and button clicks. enter is left to the caller.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if mouse, ok := msg.(tea.MouseMsg); ok {
		if mouse.Button == tea.MouseButtonLeft && mouse.Action == tea.MouseActionRelease {
			if z := zone.Get(ButtonZoneID); z != nil && z.InBounds(mouse) {
				return m, m.press()
			}
		}
		return m, nil
	}
	if m.view.EntryDisabled {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// press returns the command for the button's current action. The stop
// control stays usable while entry is disabled.
func (m Model) press() tea.Cmd {
	action := m.view.Action()
	if action == projection.ActionSend && (m.view.EntryDisabled || m.view.Starting) {
		return nil
	}
	return func() tea.Msg { return ButtonPressedMsg{Action: action} }
}

// ButtonLabel is the text on the primary button.
func (m Model) ButtonLabel() string {
	switch {
	case m.view.ShowStop:
		return "Stop"
	case m.view.Starting:
		return "Starting…"
	default:
		return "Send"
	}
}

// View renders the input, the cwd line and the button.
func (m Model) View() string {
	border := styles.BorderDefaultColor
	if m.input.Focused() {
		border = styles.BorderFocusColor
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Render(m.input.View())

	var btnStyle lipgloss.Style
	switch {
	case m.view.ShowStop:
		btnStyle = styles.DangerButtonStyle
	case m.view.Starting, m.view.EntryDisabled:
		btnStyle = styles.DisabledButtonStyle
	default:
		btnStyle = styles.PrimaryButtonStyle
	}
	button := zone.Mark(ButtonZoneID, btnStyle.Render(m.ButtonLabel()))

	status := m.statusLine()
	room := max(m.width-lipgloss.Width(button)-1, 1)
	status = ansi.Truncate(status, room, "…")
	gap := max(m.width-lipgloss.Width(status)-lipgloss.Width(button), 1)

	return box + "\n" + styles.MutedStyle.Render(status) + strings.Repeat(" ", gap) + button
}

func (m Model) statusLine() string {
	if m.view.Active != nil {
		cwd := m.view.Active.Cwd
		if cwd == "" {
			return "continuing " + m.view.Active.ID
		}
		return "continuing in " + cwd
	}
	if m.cwd == "" {
		return "no working directory set"
	}
	return "new session in " + m.cwd
}
