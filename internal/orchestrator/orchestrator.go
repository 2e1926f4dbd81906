// Package orchestrator turns user actions into client events.
//
// It owns the compose slot's small state machine: composing, awaiting a
// generated title before a new session can be started, and dispatching a
// continuation into an existing session. Preconditions (non-blank prompt, a
// session that is not already running, a working directory on the start
// surface) are checked here, and at most one session.start is emitted per
// user gesture no matter how often send is pressed while the title is
// pending.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/agentdesk/internal/bridge/event"
	"github.com/zjrosen/agentdesk/internal/log"
	"github.com/zjrosen/agentdesk/internal/prompt"
	"github.com/zjrosen/agentdesk/internal/session"
	"github.com/zjrosen/agentdesk/internal/tracing"
)

// Phase is the compose slot state.
type Phase int32

const (
	PhaseComposing Phase = iota
	PhaseAwaitingTitle
	PhaseDispatched
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingTitle:
		return "awaiting-title"
	case PhaseDispatched:
		return "dispatched"
	default:
		return "composing"
	}
}

// TitleGenerator produces a session title from the raw prompt text.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, prompt string) (string, error)
}

// Sender emits client events. *channel.Channel satisfies it.
type Sender interface {
	Send(ev event.ClientEvent)
}

// CwdRecorder remembers working directories used to start sessions.
type CwdRecorder interface {
	RecordCwd(ctx context.Context, cwd string) error
}

// Handles is the state the orchestrator reads and mutates.
type Handles struct {
	Registry *session.Registry
	Pending  *PendingStart
	Buffer   *prompt.Buffer
}

// NewHandles creates empty state.
func NewHandles() Handles {
	return Handles{
		Registry: session.NewRegistry(),
		Pending:  &PendingStart{},
		Buffer:   prompt.NewBuffer(),
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAllowedTools sets the tool allow-list sent with session.start.
func WithAllowedTools(tools string) Option {
	return func(o *Orchestrator) { o.SetAllowedTools(tools) }
}

// WithCwdRecorder records the working directory of every started session.
func WithCwdRecorder(r CwdRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithTracer sets the tracer for orchestrator spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// Orchestrator is the Session Orchestrator.
type Orchestrator struct {
	h        Handles
	sender   Sender
	titles   TitleGenerator
	recorder CwdRecorder
	tracer   trace.Tracer

	// mu serializes the synchronous steps so each one reads and writes the
	// registry and buffer as a single turn.
	mu     sync.Mutex
	phase     atomic.Int32
	starts    atomic.Uint64
	lastStart atomic.Pointer[event.SessionStart]

	toolsMu      sync.RWMutex
	allowedTools string
}

// New creates an Orchestrator.
func New(h Handles, sender Sender, titles TitleGenerator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		h:            h,
		sender:       sender,
		titles:       titles,
		tracer:       tracing.Noop().Tracer(),
		allowedTools: event.DefaultAllowedTools,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handles returns the state this orchestrator operates on.
func (o *Orchestrator) Handles() Handles { return o.h }

// Phase returns the current compose slot state.
func (o *Orchestrator) Phase() Phase {
	return Phase(o.phase.Load())
}

// StartCount returns how many session.start events have been emitted.
func (o *Orchestrator) StartCount() uint64 {
	return o.starts.Load()
}

// LastStart returns the most recently emitted session.start, if any.
func (o *Orchestrator) LastStart() (event.SessionStart, bool) {
	if ev := o.lastStart.Load(); ev != nil {
		return *ev, true
	}
	return event.SessionStart{}, false
}

// SetAllowedTools replaces the allow-list for future starts. Blank values
// restore the default.
func (o *Orchestrator) SetAllowedTools(tools string) {
	tools = strings.TrimSpace(tools)
	if tools == "" {
		tools = event.DefaultAllowedTools
	}
	o.toolsMu.Lock()
	o.allowedTools = tools
	o.toolsMu.Unlock()
}

// AllowedTools returns the current allow-list.
func (o *Orchestrator) AllowedTools() string {
	o.toolsMu.RLock()
	defer o.toolsMu.RUnlock()
	return o.allowedTools
}

// Send submits the Prompt Buffer. With no active session it starts a new one
// in cwd (which may be blank); otherwise it continues activeID. Silent no-ops
// return nil; user-facing rejections return a *UserError.
func (o *Orchestrator) Send(ctx context.Context, activeID, cwd string) error {
	ctx, span := o.tracer.Start(ctx, tracing.SpanSend,
		trace.WithAttributes(attribute.String(tracing.AttrSessionID, activeID)))
	defer span.End()

	var err error
	if activeID == "" {
		err = o.start(ctx, cwd)
	} else {
		err = o.continueSession(ctx, activeID)
	}
	tracing.Fail(span, err)
	return err
}

// StartFromSurface starts a new session from a surface where the working
// directory is mandatory. A blank cwd is rejected before any title request.
func (o *Orchestrator) StartFromSurface(ctx context.Context, cwd string) error {
	if strings.TrimSpace(cwd) == "" {
		log.Debug(log.CatOrch, "Start rejected: no working directory")
		return ErrWorkingDirectoryRequired
	}
	return o.Send(ctx, "", cwd)
}

// Stop emits session.stop for activeID. It is a no-op when no session is
// active and never touches the Prompt Buffer.
func (o *Orchestrator) Stop(ctx context.Context, activeID string) {
	if activeID == "" {
		return
	}
	_, span := o.tracer.Start(ctx, tracing.SpanStop,
		trace.WithAttributes(attribute.String(tracing.AttrSessionID, activeID)))
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.emit(span, event.SessionStop{SessionID: activeID})
}

func (o *Orchestrator) start(ctx context.Context, cwd string) error {
	ctx, span := o.tracer.Start(ctx, tracing.SpanStart)
	defer span.End()

	text := o.h.Buffer.Value()
	if strings.TrimSpace(text) == "" {
		span.SetAttributes(attribute.String(tracing.AttrOutcome, "blank"))
		return nil
	}
	if !o.h.Pending.TryAcquire() {
		log.Debug(log.CatOrch, "Dropped send while awaiting title")
		span.AddEvent(tracing.EventDropped)
		span.SetAttributes(attribute.String(tracing.AttrOutcome, "dropped"))
		return nil
	}
	defer o.h.Pending.Release()

	// A start that finished between the read above and the acquire has
	// already taken the buffer.
	text = o.h.Buffer.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	o.setPhase(PhaseAwaitingTitle)
	defer o.setPhase(PhaseComposing)

	title, err := o.titles.GenerateTitle(ctx, text)
	if err == nil && strings.TrimSpace(title) == "" {
		err = errors.New("empty title")
	}
	if err != nil {
		log.ErrorErr(log.CatOrch, "Title generation failed", err)
		return &UserError{Message: ErrTitleFailed.Message, Err: err}
	}
	span.AddEvent(tracing.EventTitleReceived)

	trimmedCwd := strings.TrimSpace(cwd)

	o.mu.Lock()
	content := o.h.Buffer.Take()
	if strings.TrimSpace(content) == "" {
		// The user cleared the buffer while the title was pending; the
		// gesture still refers to the text that was submitted.
		content = text
	}
	ev := event.SessionStart{
		Title:        title,
		Prompt:       content,
		Cwd:          trimmedCwd,
		AllowedTools: o.AllowedTools(),
	}
	// Recorded before the send so any reply to it observes the new start.
	o.lastStart.Store(&ev)
	o.starts.Add(1)
	o.emit(span, ev)
	o.mu.Unlock()

	span.SetAttributes(
		attribute.String(tracing.AttrCwd, trimmedCwd),
		attribute.Int(tracing.AttrPromptBytes, len(content)),
		attribute.String(tracing.AttrOutcome, "started"),
	)

	if trimmedCwd != "" && o.recorder != nil {
		if err := o.recorder.RecordCwd(ctx, trimmedCwd); err != nil {
			log.Warn(log.CatOrch, "Failed to record working directory", "cwd", trimmedCwd, "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) continueSession(ctx context.Context, id string) error {
	_, span := o.tracer.Start(ctx, tracing.SpanContinue,
		trace.WithAttributes(attribute.String(tracing.AttrSessionID, id)))
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()

	if strings.TrimSpace(o.h.Buffer.Value()) == "" {
		span.SetAttributes(attribute.String(tracing.AttrOutcome, "blank"))
		return nil
	}
	if s, ok := o.h.Registry.Get(id); ok && s.Running() {
		log.Debug(log.CatOrch, "Continue rejected: session running", "id", id)
		span.SetAttributes(attribute.String(tracing.AttrOutcome, "running"))
		return ErrSessionRunning
	}

	o.setPhase(PhaseDispatched)
	defer o.setPhase(PhaseComposing)

	content := o.h.Buffer.Take()
	o.h.Registry.BeginCycle(id)
	o.emit(span, event.SessionContinue{SessionID: id, Prompt: content})
	span.SetAttributes(
		attribute.Int(tracing.AttrPromptBytes, len(content)),
		attribute.String(tracing.AttrOutcome, "continued"),
	)
	return nil
}

func (o *Orchestrator) emit(span trace.Span, ev event.ClientEvent) {
	o.sender.Send(ev)
	span.AddEvent(tracing.EventClientEvent, trace.WithAttributes(attribute.String(tracing.AttrEventType, ev.Type())))
	log.Info(log.CatOrch, "Emitted client event", "type", ev.Type())
}

func (o *Orchestrator) setPhase(p Phase) {
	o.phase.Store(int32(p))
	log.Debug(log.CatOrch, "Phase", "phase", p)
}
