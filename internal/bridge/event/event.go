// Package event defines the closed set of events that cross the boundary
// between the front-end and the agent backend.
//
// Client events carry user intent to the backend; server events carry
// session state back. Both are sealed interfaces: only the types in this
// package implement them, so a type switch over either one names every
// variant the bridge can see.
package event

// Client event types.
const (
	TypeSessionStart    = "session.start"
	TypeSessionContinue = "session.continue"
	TypeSessionStop     = "session.stop"
)

// Server event types.
const (
	TypeSessionStatus    = "session.status"
	TypeSessionList      = "session.list"
	TypeSessionHistory   = "session.history"
	TypeStreamMessage    = "stream.message"
	TypeStreamUserPrompt = "stream.user_prompt"
	TypeRunnerError      = "runner.error"
)

// DefaultAllowedTools is the tool allow-list sent with every session.start
// unless configuration overrides it.
const DefaultAllowedTools = "Read,Edit,Bash"

// Status is the lifecycle state of a session as reported by the backend.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusErrored Status = "errored"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusRunning, StatusStopped, StatusErrored:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusErrored
}

// ClientEvent is user intent sent to the backend.
type ClientEvent interface {
	Type() string
	clientEvent()
}

// SessionStart asks the backend to create a session and run its first prompt.
type SessionStart struct {
	Title        string `json:"title"`
	Prompt       string `json:"prompt"`
	Cwd          string `json:"cwd,omitempty"`
	AllowedTools string `json:"allowedTools"`
}

// SessionContinue sends a follow-up prompt into an existing session.
type SessionContinue struct {
	SessionID string `json:"sessionId"`
	Prompt    string `json:"prompt"`
}

// SessionStop asks the backend to stop a session.
type SessionStop struct {
	SessionID string `json:"sessionId"`
}

func (SessionStart) Type() string    { return TypeSessionStart }
func (SessionContinue) Type() string { return TypeSessionContinue }
func (SessionStop) Type() string     { return TypeSessionStop }

func (SessionStart) clientEvent()    {}
func (SessionContinue) clientEvent() {}
func (SessionStop) clientEvent()     {}
