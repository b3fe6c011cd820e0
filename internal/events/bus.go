// Package events provides the in-process event bus shared by the supervisor,
// the UI notifier and the shell bridge.
package events

import (
	"context"

	"github.com/kelindar/event"
)

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(ev Event)
}

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// kelindar/event is generic, so dispatch on the concrete type.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case StateChangedEvent:
		event.Publish(b.dispatcher, e)
	case PortReadyEvent:
		event.Publish(b.dispatcher, e)
	case NavigateEvent:
		event.Publish(b.dispatcher, e)
	case ProcessExitedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type in its signature and
// returns an unsubscribe function. Unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e NavigateEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(StateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PortReadyEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(NavigateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessExitedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// SubscribeToChannel bridges callback subscriptions to a channel for SSE
// select loops. Events are dropped when ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeToChannelContext is SubscribeToChannel for events that must not be
// lost: a full ch blocks delivery until the reader catches up or ctx is done.
func SubscribeToChannelContext[T Event](ctx context.Context, bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		case <-ctx.Done():
		}
	})
}
