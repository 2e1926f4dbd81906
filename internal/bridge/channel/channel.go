// Package channel implements the Event Channel between the front-end and the
// agent backend.
//
// Client events are encoded on the caller's goroutine and queued; a single
// writer goroutine hands them to the Transport in the order they were sent,
// so Send never blocks. Raw server payloads arriving from the Transport are
// decoded once and fanned out to every subscriber, synchronously and in
// arrival order. Payloads that fail to decode go to the DiagnosticSink and
// never reach a subscriber.
package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zjrosen/agentdesk/internal/bridge/event"
	"github.com/zjrosen/agentdesk/internal/log"
)

// Transport physically moves serialized events across the process boundary.
type Transport interface {
	// Send delivers one serialized client event.
	Send(ctx context.Context, data []byte) error
	// OnServerEvent registers a handler for raw server payloads and returns
	// a function that removes it.
	OnServerEvent(handler func(data []byte)) (unsubscribe func())
}

// Handler receives decoded server events.
type Handler func(event.ServerEvent)

// ErrClosed is reported for sends attempted after Close.
var ErrClosed = errors.New("event channel closed")

// DiagnosticKind classifies a Diagnostic.
type DiagnosticKind string

const (
	DiagnosticDecode DiagnosticKind = "decode" // server payload could not be decoded
	DiagnosticEncode DiagnosticKind = "encode" // client event could not be encoded
	DiagnosticSend   DiagnosticKind = "send"   // transport rejected a client event
)

// Diagnostic describes a non-fatal bridge failure.
type Diagnostic struct {
	Kind DiagnosticKind
	Type string // event type when known
	Raw  []byte // offending payload, for decode failures
	Err  error
}

// DiagnosticSink receives diagnostics. It is called from the goroutine that
// observed the failure and must not block.
type DiagnosticSink func(Diagnostic)

// LogSink writes diagnostics to the bridge log category.
func LogSink(d Diagnostic) {
	switch d.Kind {
	case DiagnosticDecode:
		log.Warn(log.CatBridge, "Dropped undecodable server event", "error", d.Err, "bytes", len(d.Raw))
	default:
		log.ErrorErr(log.CatBridge, "Client event not delivered", d.Err, "kind", d.Kind, "type", d.Type)
	}
}

// Option configures a Channel.
type Option func(*Channel)

// WithDiagnosticSink replaces the default LogSink.
func WithDiagnosticSink(sink DiagnosticSink) Option {
	return func(c *Channel) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// WithWriteTimeout bounds each Transport.Send call. Zero means no bound.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Channel) { c.writeTimeout = d }
}

type outbound struct {
	typ  string
	data []byte
	done chan struct{} // flush marker when data is nil
}

type registration struct {
	handler Handler
	active  atomic.Bool
	once    sync.Once
}

// Channel is the bidirectional event pipe.
type Channel struct {
	transport    Transport
	sink         DiagnosticSink
	writeTimeout time.Duration

	mu     sync.Mutex
	queue  []outbound
	closed bool
	wake   chan struct{}

	regMu    sync.Mutex
	handlers atomic.Pointer[[]*registration]

	detach func()
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Channel over transport and starts its writer.
func New(transport Transport, opts ...Option) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		transport: transport,
		sink:      LogSink,
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	empty := []*registration{}
	c.handlers.Store(&empty)

	c.detach = transport.OnServerEvent(c.receive)
	go c.writeLoop()
	return c
}

// Send queues a client event for delivery and returns immediately. There is
// no acknowledgment; failures are reported to the DiagnosticSink.
func (c *Channel) Send(ev event.ClientEvent) {
	data, err := event.EncodeClient(ev)
	if err != nil {
		typ := ""
		if ev != nil {
			typ = ev.Type()
		}
		c.sink(Diagnostic{Kind: DiagnosticEncode, Type: typ, Err: err})
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.sink(Diagnostic{Kind: DiagnosticSend, Type: ev.Type(), Err: ErrClosed})
		return
	}
	c.queue = append(c.queue, outbound{typ: ev.Type(), data: data})
	c.mu.Unlock()

	log.Debug(log.CatBridge, "Queued client event", "type", ev.Type())
	c.signal()
}

// Flush blocks until every event sent before the call has been handed to the
// transport, or ctx is done.
func (c *Channel) Flush(ctx context.Context) error {
	marker := outbound{done: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.queue = append(c.queue, marker)
	c.mu.Unlock()
	c.signal()

	select {
	case <-marker.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers handler for decoded server events. The returned
// function removes exactly this registration; calling it more than once, or
// from inside a handler, is safe.
func (c *Channel) Subscribe(handler Handler) (unsubscribe func()) {
	reg := &registration{handler: handler}
	reg.active.Store(true)

	c.regMu.Lock()
	cur := *c.handlers.Load()
	next := make([]*registration, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, reg)
	c.handlers.Store(&next)
	c.regMu.Unlock()

	return func() {
		reg.once.Do(func() {
			reg.active.Store(false)

			c.regMu.Lock()
			defer c.regMu.Unlock()
			cur := *c.handlers.Load()
			next := make([]*registration, 0, len(cur))
			for _, r := range cur {
				if r != reg {
					next = append(next, r)
				}
			}
			c.handlers.Store(&next)
		})
	}
}

// SubscriberCount returns the number of live subscriptions.
func (c *Channel) SubscriberCount() int {
	return len(*c.handlers.Load())
}

// Close stops accepting sends, delivers what is already queued, detaches from
// the transport and stops the writer. Close is idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.signal()
	<-c.done
	c.cancel()
	if c.detach != nil {
		c.detach()
	}
	return nil
}

func (c *Channel) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Channel) writeLoop() {
	defer close(c.done)
	for range c.wake {
		for {
			c.mu.Lock()
			if len(c.queue) == 0 {
				closed := c.closed
				c.mu.Unlock()
				if closed {
					return
				}
				break
			}
			item := c.queue[0]
			c.queue[0] = outbound{}
			c.queue = c.queue[1:]
			c.mu.Unlock()

			c.deliver(item)
		}
	}
}

func (c *Channel) deliver(item outbound) {
	if item.data == nil {
		close(item.done)
		return
	}

	ctx := c.ctx
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	if err := c.transport.Send(ctx, item.data); err != nil {
		c.sink(Diagnostic{Kind: DiagnosticSend, Type: item.typ, Err: err})
		return
	}
	log.Debug(log.CatBridge, "Sent client event", "type", item.typ)
}

func (c *Channel) receive(data []byte) {
	ev, err := event.DecodeServer(data)
	if err != nil {
		raw := make([]byte, len(data))
		copy(raw, data)
		c.sink(Diagnostic{Kind: DiagnosticDecode, Raw: raw, Err: err})
		return
	}

	for _, reg := range *c.handlers.Load() {
		if reg.active.Load() {
			reg.handler(ev)
		}
	}
}
