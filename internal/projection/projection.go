// Package projection derives what the compose area should offer from the
// session registry and the pending-start flag.
package projection

import "github.com/zjrosen/agentdesk/internal/session"

// Lookup finds a session by id. *session.Registry satisfies it.
type Lookup interface {
	Get(id string) (session.Session, bool)
}

// Action is the primary button's meaning.
type Action int

const (
	ActionSend Action = iota
	ActionStop
)

func (a Action) String() string {
	if a == ActionStop {
		return "stop"
	}
	return "send"
}

// View is the derived compose state.
type View struct {
	ActiveID      string
	Active        *session.Session
	IsRunning     bool
	ShowStop      bool
	EntryDisabled bool
	Starting      bool
}

// Action returns the primary button's meaning.
func (v View) Action() Action {
	if v.ShowStop {
		return ActionStop
	}
	return ActionSend
}

// Derive computes the View. disabled is the caller's own disable flag; it
// never hides the stop control of a running session.
func Derive(sessions Lookup, activeID string, pending, disabled bool) View {
	v := View{ActiveID: activeID, Starting: pending}
	if activeID != "" {
		if s, ok := sessions.Get(activeID); ok {
			v.Active = &s
			v.IsRunning = s.Running()
		}
	}
	v.ShowStop = v.IsRunning
	v.EntryDisabled = disabled && !v.IsRunning
	return v
}
