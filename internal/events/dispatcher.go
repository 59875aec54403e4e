package events

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// registration is one listener attached to an event name or pattern
type registration struct {
	listener Listener
	priority int
	seq      uint64
}

// Dispatcher runs listeners synchronously in descending priority order.
// Listeners with equal priority run in registration order.
type Dispatcher struct {
	listeners map[string][]registration
	wildcards map[string][]registration
	pushed    map[string][]interface{}
	resolver  Resolver
	recorder  Recorder
	seq       uint64
	mutex     sync.RWMutex
}

// NewDispatcher creates a new dispatcher. The resolver builds listeners
// registered by binding name and may be nil when none are used. A nil
// recorder discards outcomes.
func NewDispatcher(resolver Resolver, recorder Recorder) *Dispatcher {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Dispatcher{
		listeners: make(map[string][]registration),
		wildcards: make(map[string][]registration),
		pushed:    make(map[string][]interface{}),
		resolver:  resolver,
		recorder:  recorder,
	}
}

// AddListener registers a listener with a priority; higher runs first.
// The listener may be a Listener, a ListenerFunc, a plain
// func(context.Context, Event) error, or a string naming a container
// binding that is resolved each time the event is dispatched.
func (d *Dispatcher) AddListener(eventName string, listener interface{}, priority int) error {
	var l Listener
	switch v := listener.(type) {
	case nil:
		return fmt.Errorf("nil listener for event %s", eventName)
	case ListenerFunc:
		if v == nil {
			return fmt.Errorf("nil listener for event %s", eventName)
		}
		l = v
	case Listener:
		l = v
	case func(context.Context, Event) error:
		if v == nil {
			return fmt.Errorf("nil listener for event %s", eventName)
		}
		l = ListenerFunc(v)
	case string:
		l = &lazyListener{binding: v, dispatcher: d}
	default:
		return fmt.Errorf("unsupported listener type %T for event %s", listener, eventName)
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.seq++
	reg := registration{listener: l, priority: priority, seq: d.seq}
	if isWildcard(eventName) {
		d.wildcards[eventName] = append(d.wildcards[eventName], reg)
	} else {
		d.listeners[eventName] = append(d.listeners[eventName], reg)
	}
	return nil
}

// Listen registers a listener at priority 0
func (d *Dispatcher) Listen(eventName string, listener Listener) error {
	return d.AddListener(eventName, listener, 0)
}

// ListenFunc registers a listener function at priority 0
func (d *Dispatcher) ListenFunc(eventName string, listenerFunc ListenerFunc) error {
	return d.AddListener(eventName, listenerFunc, 0)
}

// Dispatch dispatches an event to all registered listeners and returns it.
// A StoppableEvent that reports propagation stopped skips the remaining
// listeners. The first listener error aborts the dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) (Event, error) {
	eventName := event.GetName()
	listeners := d.GetListeners(eventName)

	outcome := Outcome{Event: eventName}
	start := time.Now()
	defer func() {
		outcome.Took = time.Since(start)
		d.recorder.Record(outcome)
	}()

	stoppable, canStop := event.(StoppableEvent)

	for i, listener := range listeners {
		if canStop && stoppable.IsPropagationStopped() {
			outcome.Skipped = len(listeners) - i
			break
		}

		outcome.Ran++
		if err := listener.Handle(ctx, event); err != nil {
			outcome.Skipped = len(listeners) - i - 1
			outcome.Err = fmt.Errorf("listener %s failed for event %s: %w", listenerName(listener), eventName, err)
			return event, fmt.Errorf("listener error for event %s: %w", eventName, err)
		}
	}

	return event, nil
}

// Fire dispatches a BaseEvent built from a name and payload
func (d *Dispatcher) Fire(ctx context.Context, eventName string, payload interface{}) error {
	_, err := d.Dispatch(ctx, NewBaseEvent(eventName, payload))
	return err
}

// Push adds an event to the delayed queue
func (d *Dispatcher) Push(eventName string, payload interface{}) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pushed[eventName] = append(d.pushed[eventName], payload)
}

// Flush processes all pushed events for a given event name
func (d *Dispatcher) Flush(ctx context.Context, eventName string) error {
	d.mutex.Lock()
	payloads := d.pushed[eventName]
	delete(d.pushed, eventName)
	d.mutex.Unlock()

	for _, payload := range payloads {
		event, ok := payload.(Event)
		if !ok {
			event = NewBaseEvent(eventName, payload)
		}

		if _, err := d.Dispatch(ctx, event); err != nil {
			return fmt.Errorf("error flushing event %s: %w", eventName, err)
		}
	}

	return nil
}

// Subscribe registers a subscriber's event listeners
func (d *Dispatcher) Subscribe(subscriber Subscriber) {
	subscriber.Subscribe(d)
}

// Forget removes all listeners for an event
func (d *Dispatcher) Forget(eventName string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	delete(d.listeners, eventName)
	delete(d.wildcards, eventName)
}

// ForgetPushed removes all pushed events for an event name
func (d *Dispatcher) ForgetPushed(eventName string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	delete(d.pushed, eventName)
}

// HasListeners checks if there are listeners for an event
func (d *Dispatcher) HasListeners(eventName string) bool {
	return len(d.GetListeners(eventName)) > 0
}

// GetListeners returns the listeners for an event in dispatch order
func (d *Dispatcher) GetListeners(eventName string) []Listener {
	d.mutex.RLock()
	regs := append([]registration(nil), d.listeners[eventName]...)
	for pattern, wildcardRegs := range d.wildcards {
		if matchesWildcard(pattern, eventName) {
			regs = append(regs, wildcardRegs...)
		}
	}
	d.mutex.RUnlock()

	sort.Slice(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority > regs[j].priority
		}
		return regs[i].seq < regs[j].seq
	})

	listeners := make([]Listener, len(regs))
	for i, reg := range regs {
		listeners[i] = reg.listener
	}
	return listeners
}

func isWildcard(eventName string) bool {
	return strings.Contains(eventName, "*")
}

// matchesWildcard supports a single trailing * ("user.*", "*")
func matchesWildcard(pattern, eventName string) bool {
	if !isWildcard(pattern) {
		return pattern == eventName
	}

	if strings.HasSuffix(pattern, "*") {
		prefix := pattern[:len(pattern)-1]
		return !strings.Contains(prefix, "*") && strings.HasPrefix(eventName, prefix)
	}

	return false
}

// lazyListener resolves a container binding each time it handles an event
type lazyListener struct {
	binding    string
	dispatcher *Dispatcher
}

// Handle implements the Listener interface
func (l *lazyListener) Handle(ctx context.Context, event Event) error {
	if l.dispatcher.resolver == nil {
		return fmt.Errorf("cannot resolve listener %q: no container", l.binding)
	}

	instance, err := l.dispatcher.resolver.Make(l.binding)
	if err != nil {
		return fmt.Errorf("cannot resolve listener %q: %w", l.binding, err)
	}

	switch v := instance.(type) {
	case Listener:
		return v.Handle(ctx, event)
	case func(context.Context, Event) error:
		return v(ctx, event)
	}
	return fmt.Errorf("binding %q resolved to %T, which is not a listener", l.binding, instance)
}

// listenerName names a listener in error reports
func listenerName(listener Listener) string {
	switch l := listener.(type) {
	case ListenerFunc:
		return "ListenerFunc"
	case *lazyListener:
		return l.binding
	default:
		return fmt.Sprintf("%T", l)
	}
}
