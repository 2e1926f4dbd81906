package channel

import (
	"context"
	"sync"

	"github.com/zjrosen/agentdesk/internal/bridge/event"
)

// Pipe is an in-process Transport. The front-end side uses it like any other
// transport; the backend side pushes raw server payloads with Push and sees
// client payloads through OnClient. Tests use it, and the front-end falls back
// to it when no backend is configured.
type Pipe struct {
	mu       sync.Mutex
	handlers map[int]func([]byte)
	nextID   int
	sent     [][]byte
	onClient func([]byte)
}

// NewPipe creates an empty Pipe.
func NewPipe() *Pipe {
	return &Pipe{handlers: make(map[int]func([]byte))}
}

// Send records data and forwards it to the OnClient hook if one is set.
func (p *Pipe) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.sent = append(p.sent, data)
	hook := p.onClient
	p.mu.Unlock()

	if hook != nil {
		hook(data)
	}
	return nil
}

// OnServerEvent implements Transport.
func (p *Pipe) OnServerEvent(handler func([]byte)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = handler
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.handlers, id)
		p.mu.Unlock()
	}
}

// OnClient sets the backend-side hook invoked for every sent payload.
func (p *Pipe) OnClient(hook func(data []byte)) {
	p.mu.Lock()
	p.onClient = hook
	p.mu.Unlock()
}

// Push delivers a raw server payload to every registered handler on the
// calling goroutine.
func (p *Pipe) Push(data []byte) {
	p.mu.Lock()
	handlers := make([]func([]byte), 0, len(p.handlers))
	for id := 0; id < p.nextID; id++ {
		if h, ok := p.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
}

// PushEvent encodes ev and pushes it.
func (p *Pipe) PushEvent(ev event.ServerEvent) error {
	data, err := event.EncodeServer(ev)
	if err != nil {
		return err
	}
	p.Push(data)
	return nil
}

// Sent returns a copy of every payload sent so far.
func (p *Pipe) Sent() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.sent))
	copy(out, p.sent)
	return out
}

// SentEvents decodes every payload sent so far. Payloads that fail to decode
// are skipped.
func (p *Pipe) SentEvents() []event.ClientEvent {
	var out []event.ClientEvent
	for _, data := range p.Sent() {
		if ev, err := event.DecodeClient(data); err == nil {
			out = append(out, ev)
		}
	}
	return out
}
