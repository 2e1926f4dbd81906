// Package session holds the client-side view of agent sessions and the
// registry that keeps it in step with server events.
package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/zjrosen/agentdesk/internal/bridge/event"
)

// Status is a session's lifecycle state.
type Status = event.Status

const (
	StatusIdle    = event.StatusIdle
	StatusRunning = event.StatusRunning
	StatusStopped = event.StatusStopped
	StatusErrored = event.StatusErrored
)

// Role identifies who produced a Turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Turn is one entry of a session transcript.
type Turn struct {
	Role Role
	Text string
	Raw  json.RawMessage // original agent message, nil for user turns
}

// Session is a snapshot of one backend session.
type Session struct {
	ID        string
	Title     string
	Status    Status
	Cwd       string
	Error     string
	Turns     []Turn
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Running reports whether the session is currently executing.
func (s Session) Running() bool {
	return s.Status == StatusRunning
}

func (s Session) clone() Session {
	if s.Turns != nil {
		turns := make([]Turn, len(s.Turns))
		copy(turns, s.Turns)
		s.Turns = turns
	}
	return s
}

// NextStatus applies the monotonic transition rule. A terminal status only
// yields to another terminal status, unless the session was re-armed by a new
// start or continue cycle. The second result reports whether next was
// accepted.
func NextStatus(current, next Status, rearmed bool) (Status, bool) {
	if !current.Terminal() || next.Terminal() || rearmed {
		return next, true
	}
	return current, false
}

// TurnFromMessage converts a raw agent message into a Turn, pulling out the
// readable text for the common message shapes.
func TurnFromMessage(raw json.RawMessage) Turn {
	var probe struct {
		Type    string          `json:"type"`
		Prompt  string          `json:"prompt"`
		Text    string          `json:"text"`
		Result  string          `json:"result"`
		Content json.RawMessage `json:"content"`
		Message *struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return Turn{Role: RoleAgent, Text: s, Raw: raw}
	}
	if json.Unmarshal(raw, &probe) != nil {
		return Turn{Role: RoleAgent, Raw: raw}
	}

	if probe.Type == "user_prompt" {
		return Turn{Role: RoleUser, Text: probe.Prompt}
	}

	var text string
	switch {
	case probe.Text != "":
		text = probe.Text
	case probe.Result != "":
		text = probe.Result
	case probe.Message != nil:
		text = contentText(probe.Message.Content)
	default:
		text = contentText(probe.Content)
	}
	return Turn{Role: RoleAgent, Text: text, Raw: raw}
}

// contentText accepts either a plain string or a list of content blocks and
// joins the text blocks.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if json.Unmarshal(raw, &blocks) != nil {
		return ""
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
