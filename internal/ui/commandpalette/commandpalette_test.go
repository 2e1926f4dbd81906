package commandpalette

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func testItems() []Item {
	return []Item{
		{ID: "new-task", Name: "New Task", Description: "Start a new session"},
		{ID: "insert-prompt", Name: "Insert Prompt...", Description: "Append a saved prompt"},
		{ID: "theme-light", Name: "Light Mode", Description: "Switch to the light theme"},
		{ID: "theme-dark", Name: "Dark Mode", Description: "Switch to the dark theme"},
	}
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestNew_ShowsAllItems(t *testing.T) {
	m := New(Config{Title: "Commands", Items: testItems()})
	require.Len(t, m.FilteredItems(), 4)
	item, ok := m.Selected()
	require.True(t, ok)
	require.Equal(t, "new-task", item.ID)
}

func TestNavigate(t *testing.T) {
	m := New(Config{Items: testItems()})

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	require.Equal(t, 2, m.Cursor())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	require.Equal(t, 1, m.Cursor())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	require.Equal(t, 0, m.Cursor(), "cursor stops at the top")
}

func TestFilter_NameBeforeDescription(t *testing.T) {
	m := New(Config{Items: testItems()})
	m = typeText(m, "theme")
	// "theme" only appears in descriptions
	require.Len(t, m.FilteredItems(), 2)

	m = New(Config{Items: []Item{
		{ID: "a", Name: "Alpha", Description: "dark things"},
		{ID: "b", Name: "Dark Mode"},
	}})
	m = typeText(m, "DARK")
	require.Equal(t, []string{"b", "a"}, ids(m.FilteredItems()))
}

func TestFilter_ResetsCursorWhenOutOfRange(t *testing.T) {
	m := New(Config{Items: testItems()})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = typeText(m, "new")
	require.Equal(t, 0, m.Cursor())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlU})
	require.Len(t, m.FilteredItems(), 4)
}

func TestSelect(t *testing.T) {
	m := New(Config{Items: testItems()})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.Equal(t, SelectMsg{Item: testItems()[1]}, cmd())
}

func TestSelect_NoMatches(t *testing.T) {
	m := New(Config{Items: testItems()})
	m = typeText(m, "zzz")
	require.Empty(t, m.FilteredItems())
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
	require.Contains(t, m.View(), "No matching items")
}

func TestCancel(t *testing.T) {
	_, cmd := New(Config{Items: testItems()}).Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	require.Equal(t, CancelMsg{}, cmd())
}

func TestView_ScrollsWithCursor(t *testing.T) {
	var items []Item
	for i := 0; i < 10; i++ {
		items = append(items, Item{ID: fmt.Sprint(i), Name: fmt.Sprintf("Prompt %d", i)})
	}
	m := New(Config{Title: "Insert Prompt", Items: items, MaxVisibleItems: 3})
	view := m.View()
	require.Contains(t, view, "Insert Prompt")
	require.Contains(t, view, "Prompt 2")
	require.NotContains(t, view, "Prompt 3")
	require.Contains(t, view, "↓ more")

	for i := 0; i < 5; i++ {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	view = m.View()
	require.Contains(t, view, "Prompt 5")
	require.NotContains(t, view, "Prompt 2")
}

func TestOverlay_Centered(t *testing.T) {
	m := New(Config{Items: testItems(), Width: 30}).SetSize(80, 24)
	out := m.Overlay("")
	require.Contains(t, out, "New Task")
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
