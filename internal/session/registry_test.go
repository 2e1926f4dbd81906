package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/agentdesk/internal/bridge/channel"
	"github.com/zjrosen/agentdesk/internal/bridge/event"
)

func status(id string, st Status) event.SessionStatus {
	return event.SessionStatus{SessionID: id, Status: st}
}

func TestApply_StatusCreatesSession(t *testing.T) {
	r := NewRegistry()
	r.Apply(event.SessionStatus{SessionID: "s1", Status: StatusRunning, Title: "Fix tests", Cwd: "/repo"})

	s, ok := r.Get("s1")
	require.True(t, ok)
	require.Equal(t, "Fix tests", s.Title)
	require.Equal(t, "/repo", s.Cwd)
	require.True(t, s.Running())

	_, ok = r.Get("nope")
	require.False(t, ok)
}

func TestApply_TerminalIsSticky(t *testing.T) {
	r := NewRegistry()
	r.Apply(status("s1", StatusRunning))
	r.Apply(status("s1", StatusStopped))
	r.Apply(status("s1", StatusRunning))
	r.Apply(status("s1", StatusIdle))

	s, _ := r.Get("s1")
	require.Equal(t, StatusStopped, s.Status)

	r.Apply(status("s1", StatusErrored))
	s, _ = r.Get("s1")
	require.Equal(t, StatusErrored, s.Status, "terminal to terminal is allowed")
}

func TestBeginCycle_RearmsOnce(t *testing.T) {
	r := NewRegistry()
	r.Apply(status("s1", StatusStopped))

	r.BeginCycle("s1")
	r.Apply(status("s1", StatusRunning))
	s, _ := r.Get("s1")
	require.Equal(t, StatusRunning, s.Status)

	r.Apply(status("s1", StatusStopped))
	r.Apply(status("s1", StatusRunning))
	s, _ = r.Get("s1")
	require.Equal(t, StatusStopped, s.Status, "re-arm is consumed by the first accepted non-terminal status")

	// continue from idle that ends before any running
	r.Apply(status("s2", StatusIdle))
	r.BeginCycle("s2")
	r.Apply(status("s2", StatusStopped))
	r.Apply(status("s2", StatusRunning))
	s, _ = r.Get("s2")
	require.Equal(t, StatusStopped, s.Status)

	// a repeated terminal status does not use up the re-arm
	r.BeginCycle("s1")
	r.Apply(status("s1", StatusStopped))
	r.Apply(status("s1", StatusRunning))
	s, _ = r.Get("s1")
	require.Equal(t, StatusRunning, s.Status)
	r.Apply(status("s1", StatusErrored))
	r.Apply(status("s1", StatusRunning))
	s, _ = r.Get("s1")
	require.Equal(t, StatusErrored, s.Status)

	r.BeginCycle("missing")
	_, ok := r.Get("missing")
	require.False(t, ok)
}

func TestApply_StreamAndHistoryTurns(t *testing.T) {
	r := NewRegistry()
	r.Apply(status("s1", StatusRunning))
	r.Apply(event.StreamUserPrompt{SessionID: "s1", Prompt: "hello"})
	r.Apply(event.StreamMessage{SessionID: "s1", Message: json.RawMessage(`{"type":"assistant","message":{"content":[{"type":"text","text":"hi"},{"type":"tool_use"},{"type":"text","text":"there"}]}}`)})

	s, _ := r.Get("s1")
	require.Len(t, s.Turns, 2)
	require.Equal(t, Turn{Role: RoleUser, Text: "hello"}, s.Turns[0])
	require.Equal(t, RoleAgent, s.Turns[1].Role)
	require.Equal(t, "hi\nthere", s.Turns[1].Text)

	r.Apply(event.SessionHistory{SessionID: "s1", Status: StatusStopped, Messages: []json.RawMessage{
		json.RawMessage(`{"type":"user_prompt","prompt":"hello"}`),
		json.RawMessage(`{"text":"hi"}`),
		json.RawMessage(`{"type":"result","result":"all done"}`),
	}})

	s, _ = r.Get("s1")
	require.Len(t, s.Turns, 3, "history only extends beyond known turns")
	require.Equal(t, "all done", s.Turns[2].Text)
	require.Equal(t, StatusStopped, s.Status)
}

func TestApply_ListUpsertsWithTransitionRule(t *testing.T) {
	r := NewRegistry()
	r.Apply(status("a", StatusStopped))

	r.Apply(event.SessionList{Sessions: []event.SessionInfo{
		{ID: "a", Title: "A", Status: StatusRunning},
		{ID: "b", Title: "B", Status: StatusIdle, UpdatedAt: time.Now().Add(time.Hour).UnixMilli()},
	}})

	a, _ := r.Get("a")
	require.Equal(t, StatusStopped, a.Status)
	require.Equal(t, "A", a.Title)

	list := r.List()
	require.Len(t, list, 2)
	require.Equal(t, "b", list[0].ID, "most recently updated first")
	require.Equal(t, map[Status]int{StatusStopped: 1, StatusIdle: 1}, r.Count())
}

func TestApply_RunnerError(t *testing.T) {
	r := NewRegistry()
	r.Apply(status("s1", StatusRunning))

	r.Apply(event.RunnerError{Message: "no session"})
	s, _ := r.Get("s1")
	require.Equal(t, StatusRunning, s.Status)

	r.Apply(event.RunnerError{SessionID: "s1", Message: "boom"})
	s, _ = r.Get("s1")
	require.Equal(t, StatusErrored, s.Status)
	require.Equal(t, "boom", s.Error)
}

func TestApply_UnrecognizedIgnored(t *testing.T) {
	r := NewRegistry()
	r.Apply(event.Unrecognized{Kind: "permission.request"})
	require.Empty(t, r.List())
}

func TestGet_ReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Apply(event.StreamUserPrompt{SessionID: "s1", Prompt: "x"})

	s, _ := r.Get("s1")
	s.Turns[0].Text = "mutated"
	s.Status = StatusErrored

	again, _ := r.Get("s1")
	require.Equal(t, "x", again.Turns[0].Text)
	require.Equal(t, StatusRunning, again.Status)
}

func TestBroker_PublishesSnapshots(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := r.Broker().Subscribe(ctx)

	r.Apply(status("s1", StatusRunning))
	r.Apply(status("s1", StatusStopped))

	first := <-ch
	second := <-ch
	require.Equal(t, "s1", first.Payload.ID)
	require.Equal(t, StatusRunning, first.Payload.Status)
	require.Equal(t, StatusStopped, second.Payload.Status)
}

func TestRegistry_UndecodableEventLeavesStateUnchanged(t *testing.T) {
	pipe := channel.NewPipe()
	ch := channel.New(pipe, channel.WithDiagnosticSink(func(channel.Diagnostic) {}))
	defer ch.Close()

	r := NewRegistry()
	ch.Subscribe(r.Apply)

	require.NoError(t, pipe.PushEvent(event.SessionStatus{SessionID: "s1", Status: StatusRunning, Title: "T"}))
	before := r.List()

	pipe.Push([]byte(`{"type":"session.status","payload":{"sessionId":"s1","status":"stopped"`))
	pipe.Push([]byte(`{"type":"session.status","payload":{"sessionId":"s1","status":"exploded"}}`))

	require.Equal(t, before, r.List())
}

func TestNextStatus_TerminalStickiness(t *testing.T) {
	statuses := []Status{StatusIdle, StatusRunning, StatusStopped, StatusErrored}

	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry()
		seq := rapid.SliceOfN(rapid.SampledFrom(statuses), 1, 30).Draw(t, "statuses")

		sawTerminal := false
		for _, st := range seq {
			r.Apply(status("s1", st))
			s, _ := r.Get("s1")
			if st.Terminal() {
				sawTerminal = true
			}
			if sawTerminal && !s.Status.Terminal() {
				t.Fatalf("left terminal state: now %s after %v", s.Status, seq)
			}
		}
	})
}

func TestBeginCycle_TerminalStickinessWithinCycle(t *testing.T) {
	statuses := []Status{StatusIdle, StatusRunning, StatusStopped, StatusErrored}

	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry()
		r.Apply(status("s1", StatusRunning))
		n := rapid.IntRange(1, 30).Draw(t, "steps")

		// ended is set once a cycle reaches a terminal status from a
		// non-terminal one; only a new BeginCycle may leave it.
		ended := false
		for i := 0; i < n; i++ {
			if rapid.Bool().Draw(t, "continue") {
				r.BeginCycle("s1")
				ended = false
				continue
			}
			before, _ := r.Get("s1")
			st := rapid.SampledFrom(statuses).Draw(t, "status")
			r.Apply(status("s1", st))
			after, _ := r.Get("s1")
			if ended && !after.Status.Terminal() {
				t.Fatalf("left terminal state %s within one cycle", before.Status)
			}
			if !before.Status.Terminal() && after.Status.Terminal() {
				ended = true
			}
		}
	})
}

func TestTurnFromMessage(t *testing.T) {
	require.Equal(t, "plain", TurnFromMessage(json.RawMessage(`"plain"`)).Text)
	require.Equal(t, "block", TurnFromMessage(json.RawMessage(`{"content":[{"type":"text","text":"block"}]}`)).Text)
	require.Equal(t, "str", TurnFromMessage(json.RawMessage(`{"content":"str"}`)).Text)
	require.Empty(t, TurnFromMessage(json.RawMessage(`{"type":"system"}`)).Text)
	require.Empty(t, TurnFromMessage(json.RawMessage(`[1,2]`)).Text)
}
