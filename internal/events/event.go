package events

import (
	"net/http"
	"sync"
	"time"
)

// BaseEvent provides a basic implementation of the Event interface
type BaseEvent struct {
	name      string
	payload   interface{}
	metadata  map[string]interface{}
	timestamp time.Time
	stopped   bool
	mutex     sync.RWMutex
}

// NewBaseEvent creates a new BaseEvent
func NewBaseEvent(name string, payload interface{}) *BaseEvent {
	return &BaseEvent{
		name:      name,
		payload:   payload,
		metadata:  make(map[string]interface{}),
		timestamp: time.Now(),
	}
}

// GetName returns the event name
func (e *BaseEvent) GetName() string {
	return e.name
}

// GetPayload returns the event payload
func (e *BaseEvent) GetPayload() interface{} {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.payload
}

// GetMetadata returns a copy of the event metadata
func (e *BaseEvent) GetMetadata() map[string]interface{} {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	result := make(map[string]interface{}, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// SetMetadata sets a metadata value
func (e *BaseEvent) SetMetadata(key string, value interface{}) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.metadata[key] = value
}

// GetTimestamp returns the event timestamp
func (e *BaseEvent) GetTimestamp() time.Time {
	return e.timestamp
}

// StopPropagation prevents listeners after the current one from running
func (e *BaseEvent) StopPropagation() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.stopped = true
}

// IsPropagationStopped reports whether StopPropagation was called
func (e *BaseEvent) IsPropagationStopped() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.stopped
}

// String returns a string representation of the event
func (e *BaseEvent) String() string {
	return e.GetName()
}

// RequestEvent is fired around HTTP request handling
type RequestEvent struct {
	*BaseEvent
	Request *http.Request
	Status  int
}

// NewRequestEvent creates a new request event
func NewRequestEvent(name string, r *http.Request) *RequestEvent {
	return &RequestEvent{
		BaseEvent: NewBaseEvent(name, r),
		Request:   r,
	}
}

// Lifecycle event names
const (
	EventRequestReceived = "request.received"
	EventRequestHandled  = "request.handled"
	EventAppBooted       = "app.booted"
	EventAppTerminating  = "app.terminating"
)
