package events

import (
	"context"
)

// Event represents a generic event with context support
type Event interface {
	GetName() string
	GetPayload() interface{}
	GetMetadata() map[string]interface{}
}

// StoppableEvent is an event whose remaining listeners can be skipped
type StoppableEvent interface {
	Event
	StopPropagation()
	IsPropagationStopped() bool
}

// Listener handles events with context support
type Listener interface {
	Handle(ctx context.Context, event Event) error
}

// ListenerFunc is a function that implements the Listener interface
type ListenerFunc func(ctx context.Context, event Event) error

// Handle implements the Listener interface
func (lf ListenerFunc) Handle(ctx context.Context, event Event) error {
	return lf(ctx, event)
}

// Subscriber can register multiple event listeners
type Subscriber interface {
	Subscribe(dispatcher *Dispatcher)
}

// Resolver builds listeners registered by container binding name
type Resolver interface {
	Make(name string) (interface{}, error)
}
