package session

import (
	"slices"
	"sync"
	"time"

	"github.com/zjrosen/agentdesk/internal/bridge/event"
	"github.com/zjrosen/agentdesk/internal/log"
	"github.com/zjrosen/agentdesk/internal/pubsub"
)

type entry struct {
	session Session
	rearmed bool
}

// Registry maps session ids to their latest known state. It is the single
// source of truth for what sessions exist and what they are doing.
// Registry is safe for concurrent use; server events are applied in the order
// Apply is called.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	broker   *pubsub.Broker[Session]
	now      func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		broker:   pubsub.NewBroker[Session](),
		now:      time.Now,
	}
}

// Broker publishes a snapshot after every change.
func (r *Registry) Broker() *pubsub.Broker[Session] {
	return r.broker
}

// Get returns a copy of the session with the given id.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return e.session.clone(), true
}

// List returns copies of all sessions, most recently updated first.
func (r *Registry) List() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.session.clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Session) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// Count returns the number of sessions in each status.
func (r *Registry) Count() map[Status]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[Status]int)
	for _, e := range r.sessions {
		counts[e.session.Status]++
	}
	return counts
}

// BeginCycle marks a session as superseded by a new continue cycle, so the
// next status for it is accepted even if the session is terminal.
// Unknown ids are ignored.
func (r *Registry) BeginCycle(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		e.rearmed = true
	}
}

// Apply folds one server event into the registry.
func (r *Registry) Apply(ev event.ServerEvent) {
	var changed []Session
	var created []bool

	r.mu.Lock()
	switch e := ev.(type) {
	case event.SessionStatus:
		s, isNew := r.upsert(e.SessionID, func(s *Session) {
			refresh(s, e.Title, e.Cwd)
			if e.Error != "" {
				s.Error = e.Error
			}
		}, e.Status)
		changed, created = append(changed, s), append(created, isNew)

	case event.SessionList:
		for _, info := range e.Sessions {
			s, isNew := r.upsert(info.ID, func(s *Session) {
				if info.CreatedAt > 0 {
					s.CreatedAt = time.UnixMilli(info.CreatedAt)
				}
				if info.UpdatedAt > 0 {
					s.UpdatedAt = time.UnixMilli(info.UpdatedAt)
				}
				refresh(s, info.Title, info.Cwd)
			}, info.Status)
			changed, created = append(changed, s), append(created, isNew)
		}

	case event.SessionHistory:
		s, isNew := r.upsert(e.SessionID, func(s *Session) {
			if len(e.Messages) <= len(s.Turns) {
				return
			}
			for _, m := range e.Messages[len(s.Turns):] {
				s.Turns = append(s.Turns, TurnFromMessage(m))
			}
		}, e.Status)
		changed, created = append(changed, s), append(created, isNew)

	case event.StreamMessage:
		s, isNew := r.upsert(e.SessionID, func(s *Session) {
			s.Turns = append(s.Turns, TurnFromMessage(e.Message))
		}, "")
		changed, created = append(changed, s), append(created, isNew)

	case event.StreamUserPrompt:
		s, isNew := r.upsert(e.SessionID, func(s *Session) {
			s.Turns = append(s.Turns, Turn{Role: RoleUser, Text: e.Prompt})
		}, "")
		changed, created = append(changed, s), append(created, isNew)

	case event.RunnerError:
		if e.SessionID == "" {
			r.mu.Unlock()
			log.Warn(log.CatSession, "Runner error", "message", e.Message)
			return
		}
		s, isNew := r.upsert(e.SessionID, func(s *Session) {
			s.Error = e.Message
		}, StatusErrored)
		changed, created = append(changed, s), append(created, isNew)

	case event.Unrecognized:
		r.mu.Unlock()
		log.Debug(log.CatSession, "Ignoring unrecognized server event", "type", e.Kind)
		return
	}
	r.mu.Unlock()

	for i, s := range changed {
		typ := pubsub.UpdatedEvent
		if created[i] {
			typ = pubsub.CreatedEvent
		}
		r.broker.Publish(typ, s)
	}
}

// upsert creates the session if needed, runs mutate, then applies status
// through the transition rule. An empty status leaves it unchanged. Must be
// called with r.mu held.
func (r *Registry) upsert(id string, mutate func(*Session), status Status) (Session, bool) {
	now := r.now()
	e, ok := r.sessions[id]
	if !ok {
		initial := status
		if initial == "" {
			initial = StatusRunning
		}
		e = &entry{session: Session{ID: id, Status: initial, CreatedAt: now, UpdatedAt: now}}
		r.sessions[id] = e
		log.Debug(log.CatSession, "Session created", "id", id, "status", initial)
	}

	updatedAt := e.session.UpdatedAt
	mutate(&e.session)
	if e.session.UpdatedAt.Equal(updatedAt) {
		e.session.UpdatedAt = now
	}

	if ok && status != "" {
		next, accepted := NextStatus(e.session.Status, status, e.rearmed)
		if !accepted {
			log.Debug(log.CatSession, "Ignoring stale status", "id", id, "current", e.session.Status, "reported", status)
		} else {
			// A terminal status ends the re-armed cycle unless it merely
			// repeats the terminal state the continue started from.
			if e.rearmed && (!status.Terminal() || !e.session.Status.Terminal()) {
				e.rearmed = false
			}
			if next != e.session.Status {
				log.Debug(log.CatSession, "Session status", "id", id, "from", e.session.Status, "to", next)
			}
			e.session.Status = next
			if next == StatusRunning {
				e.session.Error = ""
			}
		}
	}
	return e.session.clone(), !ok
}

func refresh(s *Session, title, cwd string) {
	if title != "" {
		s.Title = title
	}
	if cwd != "" {
		s.Cwd = cwd
	}
}
