package app

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/agentdesk/internal/bridge/event"
	"github.com/zjrosen/agentdesk/internal/config"
)

func hasSent(h *harness, match func(event.ClientEvent) bool) func() bool {
	return func() bool {
		for _, ev := range h.pipe.SentEvents() {
			if match(ev) {
				return true
			}
		}
		return false
	}
}

func TestProgram_StartFollowStop(t *testing.T) {
	h := newHarness(t)
	m := New(h.svc, config.Defaults(), Options{Cwd: "/work"})
	t.Cleanup(func() { _ = m.Close() })

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 30))

	tm.Type("write a haiku")
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

	require.Eventually(t, hasSent(h, func(ev event.ClientEvent) bool {
		s, ok := ev.(event.SessionStart)
		return ok && s.Prompt == "write a haiku" && s.Cwd == "/work"
	}), 2*time.Second, 10*time.Millisecond)

	// the backend reports the new session
	require.NoError(t, h.pipe.PushEvent(event.SessionStatus{SessionID: "s1", Status: event.StatusRunning, Title: "write a haiku"}))
	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("write a haiku")) && bytes.Contains(b, []byte("Stop"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlX})
	require.Eventually(t, hasSent(h, func(ev event.ClientEvent) bool {
		return ev == event.SessionStop{SessionID: "s1"}
	}), 2*time.Second, 10*time.Millisecond)

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	final := tm.FinalModel(t, teatest.WithFinalTimeout(2*time.Second)).(Model)
	require.Equal(t, "s1", final.ActiveID())
}

func TestProgram_ContinueRunningShowsToast(t *testing.T) {
	h := newHarness(t)
	m := New(h.svc, config.Defaults(), Options{Cwd: "/work"})
	t.Cleanup(func() { _ = m.Close() })
	m.activeID = "s1"

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 30))
	require.NoError(t, h.pipe.PushEvent(event.SessionStatus{SessionID: "s1", Status: event.StatusRunning}))

	tm.Type("more please")
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("Session is still running"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
	require.Equal(t, "more please", h.orch.Handles().Buffer.Value())
}
