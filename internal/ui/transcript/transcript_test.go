package transcript

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/agentdesk/internal/session"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

func sample() *session.Session {
	return &session.Session{
		ID:     "s1",
		Title:  "Fix flaky login test",
		Status: session.StatusRunning,
		Turns: []session.Turn{
			{Role: session.RoleUser, Text: "fix the login test"},
			{Role: session.RoleAgent, Text: "# Plan\n\nLooking at `login_test.go`"},
		},
	}
}

func TestView_EmptyState(t *testing.T) {
	m := New(false, "dark").SetSize(60, 10)
	view := stripANSI(m.View())
	require.Contains(t, view, "New task")
	require.Contains(t, view, "press enter to start")
	require.Zero(t, m.TurnCount())
}

func TestView_PlainTurns(t *testing.T) {
	m := New(false, "dark").SetSize(60, 20).SetSession(sample())
	view := stripANSI(m.View())
	require.Contains(t, view, "Fix flaky login test")
	require.Contains(t, view, "● running")
	require.Contains(t, view, "You")
	require.Contains(t, view, "fix the login test")
	require.Contains(t, view, "# Plan")
	require.Equal(t, 2, m.TurnCount())
}

func TestView_MarkdownTurns(t *testing.T) {
	m := New(true, "dark").SetSize(60, 20).SetSession(sample())
	view := stripANSI(m.View())
	require.Contains(t, view, "Plan")
	require.NotContains(t, view, "# Plan", "heading markup should be rendered")
	require.Contains(t, view, "login_test.go")
}

func TestHeader_TruncatesLongTitle(t *testing.T) {
	s := sample()
	s.Title = strings.Repeat("very long title ", 10)
	m := New(false, "dark").SetSize(40, 10).SetSession(s)
	header := strings.Split(stripANSI(m.View()), "\n")[0]
	require.LessOrEqual(t, len([]rune(header)), 40)
	require.Contains(t, header, "…")
	require.Contains(t, header, "running")
}

func TestView_ShowsSessionError(t *testing.T) {
	s := sample()
	s.Status = session.StatusErrored
	s.Error = "runner crashed"
	m := New(false, "dark").SetSize(60, 20).SetSession(s)
	require.Contains(t, stripANSI(m.View()), "error: runner crashed")
}

func TestHeader_FallsBackToID(t *testing.T) {
	s := sample()
	s.Title = ""
	m := New(false, "light").SetSize(60, 10).SetSession(s)
	require.Contains(t, stripANSI(m.View()), "s1")
}
