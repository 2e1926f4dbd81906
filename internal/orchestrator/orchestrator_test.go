package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/agentdesk/internal/bridge/channel"
	"github.com/zjrosen/agentdesk/internal/bridge/event"
)

type mockTitles struct {
	mock.Mock
}

func (m *mockTitles) GenerateTitle(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type recordingSender struct {
	mu     sync.Mutex
	events []event.ClientEvent
}

func (r *recordingSender) Send(ev event.ClientEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingSender) Events() []event.ClientEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.ClientEvent, len(r.events))
	copy(out, r.events)
	return out
}

type recordingCwds struct {
	cwds []string
	err  error
}

func (r *recordingCwds) RecordCwd(_ context.Context, cwd string) error {
	r.cwds = append(r.cwds, cwd)
	return r.err
}

func setup(t *testing.T, opts ...Option) (*Orchestrator, *recordingSender, *mockTitles) {
	t.Helper()
	sender := &recordingSender{}
	titles := &mockTitles{}
	t.Cleanup(func() { titles.AssertExpectations(t) })
	return New(NewHandles(), sender, titles, opts...), sender, titles
}

func TestSend_StartsNewSession(t *testing.T) {
	cwds := &recordingCwds{}
	o, sender, titles := setup(t, WithCwdRecorder(cwds))
	o.Handles().Buffer.Set("  fix the\n  flaky test ")
	titles.On("GenerateTitle", mock.Anything, "  fix the\n  flaky test ").Return("Fix flaky test", nil).Once()

	require.NoError(t, o.Send(context.Background(), "", "  /repo  "))

	require.Equal(t, []event.ClientEvent{event.SessionStart{
		Title:        "Fix flaky test",
		Prompt:       "  fix the\n  flaky test ",
		Cwd:          "/repo",
		AllowedTools: "Read,Edit,Bash",
	}}, sender.Events())
	require.Empty(t, o.Handles().Buffer.Value())
	require.False(t, o.Handles().Pending.Active())
	require.Equal(t, PhaseComposing, o.Phase())
	require.Equal(t, []string{"/repo"}, cwds.cwds)
	require.Equal(t, uint64(1), o.StartCount())
}

func TestSend_StartOmitsBlankCwd(t *testing.T) {
	o, sender, titles := setup(t, WithAllowedTools("Read"))
	o.Handles().Buffer.Set("hello")
	titles.On("GenerateTitle", mock.Anything, "hello").Return("Hello", nil).Once()

	require.NoError(t, o.Send(context.Background(), "", "   "))
	require.Equal(t, []event.ClientEvent{event.SessionStart{Title: "Hello", Prompt: "hello", AllowedTools: "Read"}}, sender.Events())
}

func TestSend_TitleFailure(t *testing.T) {
	o, sender, titles := setup(t)
	o.Handles().Buffer.Set("hello")
	cause := errors.New("503")
	titles.On("GenerateTitle", mock.Anything, "hello").Return("", cause).Once()

	err := o.Send(context.Background(), "", "/repo")

	require.ErrorIs(t, err, ErrTitleFailed)
	require.ErrorIs(t, err, cause)
	require.EqualError(t, err, "Failed to get session title.")
	require.Empty(t, sender.Events())
	require.Equal(t, "hello", o.Handles().Buffer.Value(), "buffer untouched on failure")
	require.False(t, o.Handles().Pending.Active())
	require.Equal(t, PhaseComposing, o.Phase())
}

func TestSend_BlankTitleIsFailure(t *testing.T) {
	o, sender, titles := setup(t)
	o.Handles().Buffer.Set("hello")
	titles.On("GenerateTitle", mock.Anything, "hello").Return("  ", nil).Once()

	require.ErrorIs(t, o.Send(context.Background(), "", ""), ErrTitleFailed)
	require.Empty(t, sender.Events())
}

func TestSend_WhitespacePromptIsNoop(t *testing.T) {
	for _, active := range []string{"", "s1"} {
		o, sender, _ := setup(t)
		o.Handles().Buffer.Set("   ")

		require.NoError(t, o.Send(context.Background(), active, "/repo"))
		require.Empty(t, sender.Events())
		require.Equal(t, "   ", o.Handles().Buffer.Value())
	}
}

func TestSend_ContinueRejectedWhileRunning(t *testing.T) {
	o, sender, _ := setup(t)
	o.Handles().Registry.Apply(event.SessionStatus{SessionID: "s1", Status: event.StatusRunning})
	o.Handles().Buffer.Set("more")

	err := o.Send(context.Background(), "s1", "")

	require.ErrorIs(t, err, ErrSessionRunning)
	require.EqualError(t, err, "Session is still running. Please wait for it to finish.")
	require.Empty(t, sender.Events())
	require.Equal(t, "more", o.Handles().Buffer.Value())
}

func TestSend_ContinueIdleSession(t *testing.T) {
	o, sender, _ := setup(t)
	reg := o.Handles().Registry
	reg.Apply(event.SessionStatus{SessionID: "s1", Status: event.StatusStopped})
	o.Handles().Buffer.Set("next step")

	require.NoError(t, o.Send(context.Background(), "s1", ""))

	require.Equal(t, []event.ClientEvent{event.SessionContinue{SessionID: "s1", Prompt: "next step"}}, sender.Events())
	require.Empty(t, o.Handles().Buffer.Value())

	reg.Apply(event.SessionStatus{SessionID: "s1", Status: event.StatusRunning})
	s, _ := reg.Get("s1")
	require.Equal(t, event.StatusRunning, s.Status, "continue re-arms a terminal session")
}

func TestStartFromSurface_RequiresCwdBeforeTitle(t *testing.T) {
	o, sender, titles := setup(t)
	o.Handles().Buffer.Set("hello")

	err := o.StartFromSurface(context.Background(), "  ")

	require.ErrorIs(t, err, ErrWorkingDirectoryRequired)
	require.EqualError(t, err, "Working Directory is required to start a session.")
	titles.AssertNotCalled(t, "GenerateTitle", mock.Anything, mock.Anything)
	require.Empty(t, sender.Events())
}

func TestStartFromSurface_WithCwd(t *testing.T) {
	o, sender, titles := setup(t)
	o.Handles().Buffer.Set("hello")
	titles.On("GenerateTitle", mock.Anything, "hello").Return("Hello", nil).Once()

	_, ok := o.LastStart()
	require.False(t, ok)

	require.NoError(t, o.StartFromSurface(context.Background(), "/x"))
	require.Len(t, sender.Events(), 1)

	last, ok := o.LastStart()
	require.True(t, ok)
	require.Equal(t, sender.Events()[0], last)
	require.Equal(t, uint64(1), o.StartCount())
}

func TestStop(t *testing.T) {
	o, sender, _ := setup(t)
	o.Handles().Buffer.Set("keep me")

	o.Stop(context.Background(), "")
	require.Empty(t, sender.Events())

	o.Stop(context.Background(), "s1")
	require.Equal(t, []event.ClientEvent{event.SessionStop{SessionID: "s1"}}, sender.Events())
	require.Equal(t, "keep me", o.Handles().Buffer.Value())
}

// gatedTitles blocks every call until release is closed.
type gatedTitles struct {
	entered chan struct{}
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func (g *gatedTitles) GenerateTitle(ctx context.Context, _ string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return "Title", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestSend_DoubleSubmitWhileAwaitingTitle(t *testing.T) {
	titles := &gatedTitles{entered: make(chan struct{}, 1), release: make(chan struct{})}
	sender := &recordingSender{}
	o := New(NewHandles(), sender, titles)
	o.Handles().Buffer.Set("hello")

	done := make(chan error, 1)
	go func() { done <- o.Send(context.Background(), "", "/repo") }()
	<-titles.entered

	require.Equal(t, PhaseAwaitingTitle, o.Phase())
	require.True(t, o.Handles().Pending.Active())
	require.NoError(t, o.Send(context.Background(), "", "/repo"))
	require.NoError(t, o.Send(context.Background(), "", "/repo"))

	o.Handles().Buffer.Append(" world")
	close(titles.release)
	require.NoError(t, <-done)

	require.Equal(t, 1, titles.calls)
	require.Equal(t, uint64(1), o.StartCount())
	require.Equal(t, []event.ClientEvent{event.SessionStart{
		Title: "Title", Prompt: "hello world", Cwd: "/repo", AllowedTools: event.DefaultAllowedTools,
	}}, sender.Events())
}

func TestSend_AtMostOneStartPerGesture(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		extra := rapid.IntRange(0, 20).Draw(rt, "extraSends")

		titles := &gatedTitles{entered: make(chan struct{}, 1), release: make(chan struct{})}
		sender := &recordingSender{}
		o := New(NewHandles(), sender, titles)
		o.Handles().Buffer.Set("do it")

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = o.Send(context.Background(), "", "")
		}()
		<-titles.entered

		for range extra {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = o.Send(context.Background(), "", "")
			}()
		}
		time.Sleep(time.Millisecond)
		close(titles.release)
		wg.Wait()

		starts := 0
		for _, ev := range sender.Events() {
			if _, ok := ev.(event.SessionStart); ok {
				starts++
			}
		}
		if starts != 1 {
			rt.Fatalf("expected exactly one session.start, got %d", starts)
		}
	})
}

func TestRoundTrip_StartStatusStop(t *testing.T) {
	pipe := channel.NewPipe()
	ch := channel.New(pipe)
	defer ch.Close()

	h := NewHandles()
	ch.Subscribe(h.Registry.Apply)

	titles := &mockTitles{}
	titles.On("GenerateTitle", mock.Anything, "P").Return("T", nil).Once()
	o := New(h, ch, titles)

	h.Buffer.Set("P")
	require.NoError(t, o.Send(context.Background(), "", "/x"))
	require.NoError(t, pipe.PushEvent(event.SessionStatus{SessionID: "s1", Status: event.StatusRunning}))

	s, ok := h.Registry.Get("s1")
	require.True(t, ok)
	require.True(t, s.Running())

	o.Stop(context.Background(), "s1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ch.Flush(ctx))

	sent := pipe.Sent()
	require.Len(t, sent, 2)
	require.JSONEq(t, `{"type":"session.start","payload":{"title":"T","prompt":"P","cwd":"/x","allowedTools":"Read,Edit,Bash"}}`, string(sent[0]))
	require.JSONEq(t, `{"type":"session.stop","payload":{"sessionId":"s1"}}`, string(sent[1]))
}

func TestSetAllowedTools(t *testing.T) {
	o, _, _ := setup(t)
	o.SetAllowedTools(" Read,Grep ")
	require.Equal(t, "Read,Grep", o.AllowedTools())
	o.SetAllowedTools("")
	require.Equal(t, event.DefaultAllowedTools, o.AllowedTools())
}

func TestRecordCwdFailureDoesNotFailStart(t *testing.T) {
	cwds := &recordingCwds{err: errors.New("disk full")}
	o, sender, titles := setup(t, WithCwdRecorder(cwds))
	o.Handles().Buffer.Set("x")
	titles.On("GenerateTitle", mock.Anything, "x").Return("X", nil).Once()

	require.NoError(t, o.Send(context.Background(), "", "/repo"))
	require.Len(t, sender.Events(), 1)
}

func TestPhaseString(t *testing.T) {
	require.Equal(t, "composing", PhaseComposing.String())
	require.Equal(t, "awaiting-title", PhaseAwaitingTitle.String())
	require.Equal(t, "dispatched", PhaseDispatched.String())
}
