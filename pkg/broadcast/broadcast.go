// Package broadcast fans out live execution events to subscribers (C6).
// It generalizes the teacher's pkg/observer Manager — async, panic-safe
// notification to multiple listeners — into real per-execution pub/sub:
// a Hub keyed by execution id, with a parallel global channel for
// execution-lifecycle events, bounded per-listener buffers, and a drop
// counter reported when a listener falls behind.
package broadcast

import (
	"sync"
	"time"

	"github.com/flowcraft/workflow-core/pkg/types"
)

// EventKind identifies the shape of an Event's Payload.
type EventKind string

const (
	EventExecutionStarted      EventKind = "ExecutionStarted"
	EventExecutionCompleted    EventKind = "ExecutionCompleted"
	EventNodeExecutionStarted  EventKind = "NodeExecutionStarted"
	EventNodeExecutionComplete EventKind = "NodeExecutionCompleted"
	EventExecutionLog          EventKind = "ExecutionLog"
)

// Event is one fanned-out notification. Payload holds the concrete
// journal row (types.WorkflowExecution, types.NodeExecution, or
// types.ExecutionLog) matching Kind.
type Event struct {
	Kind        EventKind
	ExecutionID string
	WorkflowID  string
	Emitted     time.Time
	Payload     any
}

// defaultBufferSize bounds how many events a single listener can lag
// behind before further events are dropped for it.
const defaultBufferSize = 64

// Subscription is a live feed of Events for one execution (or the
// global feed). Callers receive from Events until they call Close; the
// Events channel is never closed, so a reader must stop on its own
// signal (e.g. context cancellation) rather than on channel closure.
type Subscription struct {
	Events <-chan Event

	hub     *Hub
	key     string
	id      uint64
	ch      chan Event
	mu      sync.Mutex
	closed  bool
	dropped uint64
}

// Dropped returns how many events have been dropped for this
// subscription because its buffer was full — reported to the client on
// reconnection per §4.6.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close unregisters the subscription so no further events are delivered
// to it. The Events channel is left open.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.hub.unsubscribe(s)
}

type listener struct {
	sub     *Subscription
	mu      sync.Mutex
	dropped uint64
}

// Hub is the process-wide broadcast fan-out point. One Hub serves every
// execution; subscriptions are cheap and short-lived (one per connected
// client).
type Hub struct {
	mu          sync.RWMutex
	perExec     map[string][]*listener
	global      []*listener
	bufferSize  int
	nextID      uint64
}

// NewHub creates an empty Hub with the default per-listener buffer size.
func NewHub() *Hub {
	return &Hub{
		perExec:    make(map[string][]*listener),
		bufferSize: defaultBufferSize,
	}
}

// Subscribe opens a feed for one execution id's events.
func (h *Hub) Subscribe(executionID string) *Subscription {
	return h.subscribeTo(executionID)
}

// SubscribeGlobal opens a feed that only ever receives
// ExecutionStarted/ExecutionCompleted events, for any execution.
func (h *Hub) SubscribeGlobal() *Subscription {
	return h.subscribeTo("")
}

func (h *Hub) subscribeTo(key string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := make(chan Event, h.bufferSize)
	sub := &Subscription{Events: ch, hub: h, key: key, id: h.nextID, ch: ch}
	l := &listener{sub: sub}

	if key == "" {
		h.global = append(h.global, l)
	} else {
		h.perExec[key] = append(h.perExec[key], l)
	}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub.key == "" {
		h.global = removeListener(h.global, sub.id)
		return
	}
	remaining := removeListener(h.perExec[sub.key], sub.id)
	if len(remaining) == 0 {
		delete(h.perExec, sub.key)
	} else {
		h.perExec[sub.key] = remaining
	}
}

func removeListener(listeners []*listener, id uint64) []*listener {
	out := listeners[:0]
	for _, l := range listeners {
		if l.sub.id != id {
			out = append(out, l)
		}
	}
	return out
}

// Publish fans an event out to every subscriber of its execution id,
// and, for lifecycle events, to every global subscriber too. Delivery is
// best-effort: a listener whose buffer is full has the event dropped and
// its drop counter incremented rather than blocking the publisher.
func (h *Hub) Publish(event Event) {
	if event.Emitted.IsZero() {
		event.Emitted = time.Now()
	}

	h.mu.RLock()
	perExec := append([]*listener{}, h.perExec[event.ExecutionID]...)
	var global []*listener
	if event.Kind == EventExecutionStarted || event.Kind == EventExecutionCompleted {
		global = append([]*listener{}, h.global...)
	}
	h.mu.RUnlock()

	for _, l := range perExec {
		deliver(l, event)
	}
	for _, l := range global {
		deliver(l, event)
	}
}

func deliver(l *listener, event Event) {
	select {
	case l.sub.ch <- event:
	default:
		l.mu.Lock()
		l.dropped++
		l.sub.mu.Lock()
		l.sub.dropped = l.dropped
		l.sub.mu.Unlock()
		l.mu.Unlock()
	}
}

// ExecutionStarted publishes an ExecutionStarted event for exec.
func (h *Hub) ExecutionStarted(exec types.WorkflowExecution) {
	h.Publish(Event{Kind: EventExecutionStarted, ExecutionID: exec.ID, WorkflowID: exec.WorkflowID, Payload: exec})
}

// ExecutionCompleted publishes an ExecutionCompleted event for exec.
func (h *Hub) ExecutionCompleted(exec types.WorkflowExecution) {
	h.Publish(Event{Kind: EventExecutionCompleted, ExecutionID: exec.ID, WorkflowID: exec.WorkflowID, Payload: exec})
}

// NodeExecutionStarted publishes a NodeExecutionStarted event.
func (h *Hub) NodeExecutionStarted(ne types.NodeExecution) {
	h.Publish(Event{Kind: EventNodeExecutionStarted, ExecutionID: ne.ExecutionID, Payload: ne})
}

// NodeExecutionCompleted publishes a NodeExecutionCompleted event.
func (h *Hub) NodeExecutionCompleted(ne types.NodeExecution) {
	h.Publish(Event{Kind: EventNodeExecutionComplete, ExecutionID: ne.ExecutionID, Payload: ne})
}

// Log publishes an ExecutionLog event.
func (h *Hub) Log(log types.ExecutionLog) {
	h.Publish(Event{Kind: EventExecutionLog, ExecutionID: log.ExecutionID, Payload: log})
}
