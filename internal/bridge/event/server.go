package event

import "encoding/json"

// ServerEvent is a state change pushed by the backend.
type ServerEvent interface {
	Type() string
	serverEvent()
}

// SessionStatus reports a session's status. The first status for an unknown
// id creates the session.
type SessionStatus struct {
	SessionID string `json:"sessionId"`
	Status    Status `json:"status"`
	Title     string `json:"title,omitempty"`
	Cwd       string `json:"cwd,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SessionInfo is one entry of a SessionList.
type SessionInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    Status `json:"status"`
	Cwd       string `json:"cwd,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// SessionList is the backend's full view of known sessions.
type SessionList struct {
	Sessions []SessionInfo `json:"sessions"`
}

// SessionHistory replays a session's transcript.
type SessionHistory struct {
	SessionID string            `json:"sessionId"`
	Status    Status            `json:"status"`
	Messages  []json.RawMessage `json:"messages"`
}

// StreamMessage carries one agent message for a session. The message body is
// kept as raw JSON; its shape belongs to the agent, not the bridge.
type StreamMessage struct {
	SessionID string          `json:"sessionId"`
	Message   json.RawMessage `json:"message"`
}

// StreamUserPrompt echoes a prompt the backend accepted for a session.
type StreamUserPrompt struct {
	SessionID string `json:"sessionId"`
	Prompt    string `json:"prompt"`
}

// RunnerError reports a backend failure, optionally scoped to a session.
type RunnerError struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}

// Unrecognized is a well-formed envelope whose type this build does not know.
type Unrecognized struct {
	Kind    string
	Payload json.RawMessage
}

func (SessionStatus) Type() string    { return TypeSessionStatus }
func (SessionList) Type() string      { return TypeSessionList }
func (SessionHistory) Type() string   { return TypeSessionHistory }
func (StreamMessage) Type() string    { return TypeStreamMessage }
func (StreamUserPrompt) Type() string { return TypeStreamUserPrompt }
func (RunnerError) Type() string      { return TypeRunnerError }
func (u Unrecognized) Type() string   { return u.Kind }

func (SessionStatus) serverEvent()    {}
func (SessionList) serverEvent()      {}
func (SessionHistory) serverEvent()   {}
func (StreamMessage) serverEvent()    {}
func (StreamUserPrompt) serverEvent() {}
func (RunnerError) serverEvent()      {}
func (Unrecognized) serverEvent()     {}
