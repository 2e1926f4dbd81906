package watcher_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/agentdesk/internal/pubsub"
	"github.com/zjrosen/agentdesk/internal/watcher"
)

func startWatcher(t *testing.T, path string) <-chan pubsub.Event[watcher.WatcherEvent] {
	t.Helper()
	w, err := watcher.New(watcher.Config{Path: path, DebounceDur: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch := w.Broker().Subscribe(ctx)
	require.NoError(t, w.Start())
	return ch
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ui: {}\n"), 0o600))

	events := startWatcher(t, path)

	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("# %d\n", i)), 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case ev := <-events:
		require.Equal(t, pubsub.UpdatedEvent, ev.Type)
		require.False(t, ev.Payload.Removed)
		require.Equal(t, "config.yaml", filepath.Base(ev.Payload.Path))
	case <-time.After(time.Second):
		t.Fatal("expected notification but got timeout")
	}

	select {
	case <-events:
		t.Fatal("unexpected second notification")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ui: {}\n"), 0o600))

	events := startWatcher(t, path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600))

	select {
	case <-events:
		t.Fatal("sibling write should not notify")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_RemovedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ui: {}\n"), 0o600))

	events := startWatcher(t, path)
	require.NoError(t, os.Remove(path))

	select {
	case ev := <-events:
		require.Equal(t, pubsub.DeletedEvent, ev.Type)
		require.True(t, ev.Payload.Removed)
	case <-time.After(time.Second):
		t.Fatal("expected removal notification")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := watcher.New(watcher.DefaultConfig(filepath.Join(dir, "config.yaml")))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
