// Package prompt holds the not-yet-sent user input.
package prompt

import (
	"sync"

	"github.com/zjrosen/agentdesk/internal/pubsub"
)

// Buffer is the mutable prompt text shared by the composer, the attachment
// pipeline and the orchestrator. Each operation is atomic with respect to the
// others, so an Append always extends the latest value.
type Buffer struct {
	mu     sync.Mutex
	value  string
	broker *pubsub.Broker[string]
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{broker: pubsub.NewBroker[string]()}
}

// Broker publishes the new value after every change.
func (b *Buffer) Broker() *pubsub.Broker[string] {
	return b.broker
}

// Value returns the current text.
func (b *Buffer) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Set replaces the text. Used for direct user edits.
func (b *Buffer) Set(s string) {
	b.update(func(string) string { return s })
}

// CompareAndSet replaces the text with s only if it still equals old.
// Editors use it so an append that landed since their last read is not
// overwritten.
func (b *Buffer) CompareAndSet(old, s string) bool {
	b.mu.Lock()
	if b.value != old {
		b.mu.Unlock()
		return false
	}
	b.value = s
	b.mu.Unlock()

	if s != old {
		b.broker.Publish(pubsub.UpdatedEvent, s)
	}
	return true
}

// Append adds s to the end of the current text and returns the result.
func (b *Buffer) Append(s string) string {
	return b.update(func(cur string) string { return cur + s })
}

// InsertPrompt adds a saved prompt on its own line after the current text.
func (b *Buffer) InsertPrompt(content string) string {
	return b.update(func(cur string) string {
		if cur == "" {
			return content
		}
		return cur + "\n" + content
	})
}

// Take returns the current text and clears the buffer in one step.
func (b *Buffer) Take() string {
	b.mu.Lock()
	v := b.value
	b.value = ""
	b.mu.Unlock()

	if v != "" {
		b.broker.Publish(pubsub.UpdatedEvent, "")
	}
	return v
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.Take()
}

func (b *Buffer) update(fn func(string) string) string {
	b.mu.Lock()
	prev := b.value
	b.value = fn(prev)
	v := b.value
	b.mu.Unlock()

	if v != prev {
		b.broker.Publish(pubsub.UpdatedEvent, v)
	}
	return v
}
