// Package commandpalette provides a searchable picker used for app commands
// and for choosing a saved prompt.
package commandpalette

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/agentdesk/internal/keys"
	"github.com/zjrosen/agentdesk/internal/ui/overlay"
	"github.com/zjrosen/agentdesk/internal/ui/styles"
)

// Item is one selectable entry.
type Item struct {
	ID          string
	Name        string
	Description string
}

// Config defines command palette configuration.
type Config struct {
	Title           string
	Placeholder     string
	Items           []Item
	Width           int // default 56
	MaxVisibleItems int // default 6
}

// SelectMsg is sent when an item is chosen.
type SelectMsg struct {
	Item Item
}

// CancelMsg is sent on Esc.
type CancelMsg struct{}

// Model holds the command palette state.
type Model struct {
	config         Config
	input          textinput.Model
	filtered       []Item
	cursor         int
	offset         int
	viewportWidth  int
	viewportHeight int
}

// New creates a palette with focus in the search box.
func New(cfg Config) Model {
	ti := textinput.New()
	ti.Placeholder = cfg.Placeholder
	if ti.Placeholder == "" {
		ti.Placeholder = "Search..."
	}
	ti.Prompt = ""
	ti.Focus()
	return Model{config: cfg, input: ti, filtered: cfg.Items}
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case msg.Type == tea.KeyDown, key.Matches(msg, keys.Component.Next):
			m = m.move(1)
			return m, nil
		case msg.Type == tea.KeyUp, key.Matches(msg, keys.Component.Prev):
			m = m.move(-1)
			return m, nil
		case key.Matches(msg, keys.Common.Enter):
			item, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return SelectMsg{Item: item} }
		case key.Matches(msg, keys.Common.Escape):
			return m, func() tea.Msg { return CancelMsg{} }
		case msg.Type == tea.KeyCtrlU:
			m.input.SetValue("")
			return m.refilter(), nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m.refilter(), cmd

	case tea.WindowSizeMsg:
		m = m.SetSize(msg.Width, msg.Height)
	}
	return m, nil
}

func (m Model) move(delta int) Model {
	next := m.cursor + delta
	if next < 0 || next >= len(m.filtered) {
		return m
	}
	m.cursor = next
	visible := m.visibleItems()
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	return m
}

// refilter keeps name matches ahead of description-only matches.
func (m Model) refilter() Model {
	q := strings.ToLower(strings.TrimSpace(m.input.Value()))
	if q == "" {
		m.filtered = m.config.Items
	} else {
		var byName, byDesc []Item
		for _, it := range m.config.Items {
			switch {
			case strings.Contains(strings.ToLower(it.Name), q):
				byName = append(byName, it)
			case strings.Contains(strings.ToLower(it.Description), q):
				byDesc = append(byDesc, it)
			}
		}
		m.filtered = append(byName, byDesc...)
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = 0
		m.offset = 0
	}
	return m
}

func (m Model) visibleItems() int {
	n := m.config.MaxVisibleItems
	if n <= 0 {
		n = 6
	}
	if m.viewportHeight > 0 {
		// border, title, search and dividers take 6 rows; items take 2 each
		fit := max((m.viewportHeight-6)/2, 2)
		n = min(n, fit)
	}
	return n
}

func (m Model) width() int {
	if m.config.Width > 0 {
		return m.config.Width
	}
	return 56
}

// SetSize sets the viewport dimensions for overlay rendering.
func (m Model) SetSize(width, height int) Model {
	m.viewportWidth = width
	m.viewportHeight = height
	return m
}

// Selected returns the highlighted item.
func (m Model) Selected() (Item, bool) {
	if m.cursor >= 0 && m.cursor < len(m.filtered) {
		return m.filtered[m.cursor], true
	}
	return Item{}, false
}

// FilteredItems returns the items matching the search text.
func (m Model) FilteredItems() []Item {
	return m.filtered
}

// Cursor returns the highlighted index within FilteredItems.
func (m Model) Cursor() int {
	return m.cursor
}

// View renders the palette box.
func (m Model) View() string {
	w := m.width()
	divider := lipgloss.NewStyle().Foreground(styles.OverlayBorderColor).Render(strings.Repeat("─", w))

	var b strings.Builder
	if m.config.Title != "" {
		title := lipgloss.NewStyle().Bold(true).Foreground(styles.OverlayTitleColor).PaddingLeft(1).Render(m.config.Title)
		hints := styles.MutedStyle.Render("↑/↓ enter esc")
		gap := max(w-lipgloss.Width(title)-lipgloss.Width(hints)-1, 1)
		b.WriteString(title + strings.Repeat(" ", gap) + hints + "\n" + divider + "\n")
	}

	m.input.Width = w - 4
	b.WriteString(styles.MutedStyle.Render(" > ") + m.input.View() + "\n" + divider)

	visible := m.visibleItems()
	if len(m.filtered) == 0 {
		b.WriteString("\n" + styles.MutedStyle.Italic(true).PaddingLeft(1).Render("No matching items"))
	}
	end := min(m.offset+visible, len(m.filtered))
	for i := m.offset; i < end; i++ {
		b.WriteString("\n" + m.renderItem(m.filtered[i], i == m.cursor, w))
	}
	if end < len(m.filtered) {
		more := styles.MutedStyle.Render("↓ more")
		b.WriteString("\n" + strings.Repeat(" ", (w-lipgloss.Width(more))/2) + more)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.OverlayBorderColor).
		Width(w).
		Render(b.String())
}

func (m Model) renderItem(item Item, selected bool, w int) string {
	indicator := " "
	nameStyle := lipgloss.NewStyle().Foreground(styles.TextPrimaryColor)
	if selected {
		indicator = styles.SelectionIndicatorStyle.Render(">")
		nameStyle = nameStyle.Bold(true)
	}
	line := indicator + nameStyle.Render(ansi.Truncate(item.Name, w-2, "…"))
	desc := item.Description
	if desc == "" {
		desc = " "
	}
	// Descriptions are single-line so every item has the same height.
	desc = strings.ReplaceAll(desc, "\n", " ")
	return line + "\n  " + styles.MutedStyle.Render(ansi.Truncate(desc, w-4, "…"))
}

// Overlay renders the palette centered over background.
func (m Model) Overlay(background string) string {
	box := m.View()
	if background == "" {
		return lipgloss.Place(m.viewportWidth, m.viewportHeight, lipgloss.Center, lipgloss.Center, box)
	}
	return overlay.Place(overlay.Config{
		Width:    m.viewportWidth,
		Height:   m.viewportHeight,
		Position: overlay.Center,
	}, box, background)
}
