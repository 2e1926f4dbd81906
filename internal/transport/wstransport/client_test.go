package wstransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/agentdesk/internal/bridge/channel"
	"github.com/zjrosen/agentdesk/internal/bridge/event"
)

func TestBackoff(t *testing.T) {
	bo := NewBackoff(time.Second, 10*time.Second)
	bo.Jitter = func(n time.Duration) time.Duration { return n }

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for i, want := range expected {
		require.Equal(t, want, bo.Next(), "attempt %d", i)
	}

	bo.Reset()
	require.Equal(t, time.Second, bo.Next())
}

func TestBackoff_JitterStaysInUpperHalf(t *testing.T) {
	bo := NewBackoff(time.Second, 10*time.Second)
	bo.Jitter = func(time.Duration) time.Duration { return 0 }
	require.Equal(t, 500*time.Millisecond, bo.Next())
	require.Equal(t, time.Second, bo.Next())

	bo = NewBackoff(time.Second, 10*time.Second)
	steps := []time.Duration{1, 2, 4, 8, 10, 10}
	for i, s := range steps {
		step := s * time.Second
		d := bo.Next()
		require.GreaterOrEqual(t, d, step/2, "attempt %d", i)
		require.LessOrEqual(t, d, step, "attempt %d", i)
	}
}

func TestSend_NotConnected(t *testing.T) {
	c := NewClient("ws://127.0.0.1:0/ws", "")
	require.Equal(t, StateDisconnected, c.State())
	require.ErrorIs(t, c.Send(context.Background(), []byte(`{}`)), ErrNotConnected)
}

// fakeBackend answers every session.start with a running status for s1 and
// every session.stop with a stopped status.
func fakeBackend(t *testing.T, gotAuth chan<- string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotAuth != nil {
			gotAuth <- r.Header.Get("Authorization")
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			ev, err := event.DecodeClient(data)
			if err != nil {
				continue
			}
			var reply event.ServerEvent
			switch e := ev.(type) {
			case event.SessionStart:
				reply = event.SessionStatus{SessionID: "s1", Status: event.StatusRunning, Title: e.Title, Cwd: e.Cwd}
			case event.SessionStop:
				reply = event.SessionStatus{SessionID: e.SessionID, Status: event.StatusStopped}
			default:
				continue
			}
			out, _ := event.EncodeServer(reply)
			_ = conn.Write(r.Context(), websocket.MessageText, out)
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_RoundTripThroughChannel(t *testing.T) {
	auth := make(chan string, 1)
	srv := fakeBackend(t, auth)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewClient(wsURL(srv), "secret")
	connected := make(chan struct{})
	client.OnStateChange = func(state State, _ error) {
		if state == StateConnected {
			close(connected)
		}
	}
	go func() { _ = client.Run(ctx) }()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "client never connected")
	}
	require.Equal(t, "Bearer secret", <-auth)

	ch := channel.New(client)
	defer ch.Close()

	statuses := make(chan event.SessionStatus, 4)
	ch.Subscribe(func(ev event.ServerEvent) {
		if s, ok := ev.(event.SessionStatus); ok {
			statuses <- s
		}
	})

	ch.Send(event.SessionStart{Title: "T", Prompt: "P", Cwd: "/x", AllowedTools: event.DefaultAllowedTools})
	select {
	case s := <-statuses:
		require.Equal(t, event.SessionStatus{SessionID: "s1", Status: event.StatusRunning, Title: "T", Cwd: "/x"}, s)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no status for start")
	}

	ch.Send(event.SessionStop{SessionID: "s1"})
	select {
	case s := <-statuses:
		require.Equal(t, event.StatusStopped, s.Status)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no status for stop")
	}
}

func TestRun_AuthRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := NewClient(wsURL(srv), "bad").Run(ctx)
	require.ErrorIs(t, err, ErrAuthRejected)
}

func TestRun_ServerErrorMentioning401Retries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream returned 401", http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := NewClient(wsURL(srv), "").Run(ctx)
	require.NotErrorIs(t, err, ErrAuthRejected)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewClient("ws://127.0.0.1:1/ws", "").Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOnServerEvent_UnsubscribeIdempotent(t *testing.T) {
	c := NewClient("ws://unused", "")
	calls := 0
	unsub := c.OnServerEvent(func([]byte) { calls++ })

	c.dispatch([]byte("x"))
	unsub()
	unsub()
	c.dispatch([]byte("y"))

	require.Equal(t, 1, calls)
}
