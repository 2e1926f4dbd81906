package composer

import (
	"os"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/agentdesk/internal/projection"
	"github.com/zjrosen/agentdesk/internal/session"
)

func TestMain(m *testing.M) {
	zone.NewGlobal()
	os.Exit(m.Run())
}

func running() projection.View {
	s := session.Session{ID: "s1", Status: session.StatusRunning, Cwd: "/work"}
	return projection.View{ActiveID: "s1", Active: &s, IsRunning: true, ShowStop: true}
}

func TestTyping(t *testing.T) {
	m := New().SetWidth(60)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi there")})
	require.Equal(t, "hi there", m.Value())
}

func TestTyping_IgnoredWhenDisabled(t *testing.T) {
	m := New().SetWidth(60).SetView(projection.View{EntryDisabled: true})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	require.Empty(t, m.Value())
}

func TestSetValue(t *testing.T) {
	m := New().SetWidth(60).SetValue("line one\nline two")
	require.Equal(t, "line one\nline two", m.Value())
}

func TestButtonLabel(t *testing.T) {
	m := New()
	require.Equal(t, "Send", m.ButtonLabel())
	require.Equal(t, "Starting…", m.SetView(projection.View{Starting: true}).ButtonLabel())
	require.Equal(t, "Stop", m.SetView(running()).ButtonLabel())
}

func TestPress(t *testing.T) {
	require.Equal(t, ButtonPressedMsg{Action: projection.ActionSend}, New().press()())
	require.Equal(t, ButtonPressedMsg{Action: projection.ActionStop}, New().SetView(running()).press()())

	require.Nil(t, New().SetView(projection.View{Starting: true}).press())
	require.Nil(t, New().SetView(projection.View{EntryDisabled: true}).press())
}

func TestView_StatusLine(t *testing.T) {
	m := New().SetWidth(70)
	require.Contains(t, zone.Scan(m.View()), "no working directory set")

	m = m.SetCwd("/srv/app")
	require.Contains(t, zone.Scan(m.View()), "new session in /srv/app")

	m = m.SetView(running())
	view := zone.Scan(m.View())
	require.Contains(t, view, "continuing in /work")
	require.Contains(t, view, "Stop")
}

func TestMouseClickOnButton(t *testing.T) {
	m := New().SetWidth(60).SetView(running())
	zone.Scan(m.View())

	var z *zone.ZoneInfo
	require.Eventually(t, func() bool {
		z = zone.Get(ButtonZoneID)
		return z != nil && !z.IsZero()
	}, time.Second, 10*time.Millisecond)

	_, cmd := m.Update(tea.MouseMsg{
		X:      z.StartX,
		Y:      z.StartY,
		Button: tea.MouseButtonLeft,
		Action: tea.MouseActionRelease,
	})
	require.NotNil(t, cmd)
	require.Equal(t, ButtonPressedMsg{Action: projection.ActionStop}, cmd())

	_, cmd = m.Update(tea.MouseMsg{X: 0, Y: 0, Button: tea.MouseButtonLeft, Action: tea.MouseActionRelease})
	require.Nil(t, cmd)
}
