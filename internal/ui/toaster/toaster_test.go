package toaster

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New()
	assert.False(t, m.Visible())
	assert.Empty(t, m.View())
}

func TestShow(t *testing.T) {
	m, cmd := New().Show("Saved", StyleSuccess, time.Millisecond)
	require.NotNil(t, cmd)
	assert.True(t, m.Visible())
	assert.Contains(t, m.View(), "Saved")
	assert.Contains(t, m.View(), "╭")
}

func TestView_ErrorIcon(t *testing.T) {
	m, _ := New().Show("Failed to generate title", StyleError, time.Second)
	assert.Contains(t, m.View(), "✗ Failed to generate title")
}

func TestView_WrapsLongMessages(t *testing.T) {
	msg := strings.Repeat("word ", 40)
	m, _ := New().Show(msg, StyleInfo, time.Second)
	lines := strings.Split(m.View(), "\n")
	assert.Greater(t, len(lines), 3, "long message should wrap onto several lines")
}

func TestDismiss_OnlyMatchingSequence(t *testing.T) {
	m, first := New().Show("first", StyleInfo, time.Millisecond)
	staleMsg := first()

	m, second := m.Show("second", StyleInfo, time.Millisecond)
	m = m.Update(staleMsg)
	require.True(t, m.Visible(), "stale dismiss must not hide the newer toast")
	require.Equal(t, "second", m.Message())

	m = m.Update(second())
	require.False(t, m.Visible())
}

func TestOverlay(t *testing.T) {
	bg := strings.Repeat(strings.Repeat(".", 40)+"\n", 9) + strings.Repeat(".", 40)

	assert.Equal(t, bg, New().Overlay(bg, 40, 10))

	m, _ := New().Show("hello", StyleSuccess, time.Second)
	out := m.Overlay(bg, 40, 10)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 10)
	assert.Contains(t, lines[7], "hello")
	assert.NotContains(t, lines[0], "hello")
}
