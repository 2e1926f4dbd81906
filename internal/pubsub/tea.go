package pubsub

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// ListenCmd creates a Bubble Tea command that waits for the next event on ch.
// Returns nil if the context is cancelled or the channel is closed.
func ListenCmd[T any](ctx context.Context, ch <-chan Event[T]) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			return event
		}
	}
}

// ListenLatestCmd is like ListenCmd but, once an event arrives, drains any
// events already buffered behind it and returns only the newest. Used for
// feeds where intermediate states are not worth a re-render.
func ListenLatestCmd[T any](ctx context.Context, ch <-chan Event[T]) tea.Cmd {
	return func() tea.Msg {
		var latest Event[T]
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			latest = event
		}
		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return latest
				}
				latest = event
			default:
				return latest
			}
		}
	}
}

// ContinuousListener maintains subscription state for the Bubble Tea update
// loop. Call Listen (or ListenLatest) again after handling each event to keep
// receiving.
type ContinuousListener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewContinuousListener creates a new listener that subscribes to the broker.
// The subscription is cleaned up when the context is cancelled.
func NewContinuousListener[T any](ctx context.Context, broker *Broker[T]) *ContinuousListener[T] {
	return &ContinuousListener[T]{
		ctx: ctx,
		ch:  broker.Subscribe(ctx),
	}
}

// Listen returns a tea.Cmd that waits for the next event.
func (l *ContinuousListener[T]) Listen() tea.Cmd {
	return ListenCmd(l.ctx, l.ch)
}

// ListenLatest returns a tea.Cmd that waits for the next event and coalesces
// any backlog into the newest one.
func (l *ContinuousListener[T]) ListenLatest() tea.Cmd {
	return ListenLatestCmd(l.ctx, l.ch)
}
