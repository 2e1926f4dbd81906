// Package wstransport carries the Event Channel over a WebSocket connection
// to the agent backend. Each WebSocket text message is one serialized event.
package wstransport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/zjrosen/agentdesk/internal/log"
)

// ErrNotConnected is returned by Send while no connection is established.
var ErrNotConnected = errors.New("backend not connected")

// ErrAuthRejected is returned by Run when the backend rejects the token.
var ErrAuthRejected = errors.New("backend rejected authentication (401)")

const (
	defaultWriteTimeout = 10 * time.Second
	maxReconnectDelay   = 10 * time.Second
	readLimit           = 4 << 20
)

// State is the connection state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Client is a reconnecting WebSocket transport.
type Client struct {
	URL          string
	Token        string
	WriteTimeout time.Duration

	// OnStateChange is called on every connection state transition.
	OnStateChange func(state State, err error)

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	handlers map[int]func([]byte)
	nextID   int
}

// NewClient creates a Client for url. token may be empty.
func NewClient(url, token string) *Client {
	return &Client{
		URL:          url,
		Token:        token,
		WriteTimeout: defaultWriteTimeout,
		handlers:     make(map[int]func([]byte)),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run connects and reads until ctx is cancelled, reconnecting with jittered
// exponential backoff after each disconnect. A 401 on the handshake ends Run
// with ErrAuthRejected.
func (c *Client) Run(ctx context.Context) error {
	bo := NewBackoff(250*time.Millisecond, maxReconnectDelay)
	for {
		c.setState(StateConnecting, nil)
		connected, err := c.connectAndServe(ctx)
		if ctx.Err() != nil {
			c.setState(StateDisconnected, ctx.Err())
			return ctx.Err()
		}
		if errors.Is(err, ErrAuthRejected) {
			c.setState(StateDisconnected, err)
			return err
		}
		if connected {
			bo.Reset()
		}
		delay := bo.Next()
		c.setState(StateDisconnected, err)
		log.Warn(log.CatTransport, "Backend disconnected", "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			c.setState(StateDisconnected, ctx.Err())
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Send writes one serialized client event.
func (c *Client) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	timeout := c.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	writeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// OnServerEvent registers handler for raw inbound messages. Handlers run on
// the read goroutine in message order.
func (c *Client) OnServerEvent(handler func([]byte)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = handler
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.handlers, id)
			c.mu.Unlock()
		})
	}
}

func (c *Client) connectAndServe(ctx context.Context) (connected bool, err error) {
	opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
	if c.Token != "" {
		opts.HTTPHeader.Set("Authorization", "Bearer "+c.Token)
	}

	conn, resp, err := websocket.Dial(ctx, c.URL, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return false, ErrAuthRejected
		}
		return false, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(readLimit)
	defer conn.CloseNow()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	c.setState(StateConnected, nil)
	log.Info(log.CatTransport, "Connected to backend", "url", c.URL)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		if typ != websocket.MessageText {
			log.Debug(log.CatTransport, "Ignoring binary message", "bytes", len(data))
			continue
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	c.mu.Lock()
	handlers := make([]func([]byte), 0, len(c.handlers))
	for id := 0; id < c.nextID; id++ {
		if h, ok := c.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if changed && c.OnStateChange != nil {
		c.OnStateChange(state, err)
	}
}
