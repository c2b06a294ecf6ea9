// Package events provides the in-process pub/sub registry that decouples
// the viewer's inbound event sources from their consumers.
package events

import (
	"log/slog"
	"sync"
)

// Kind identifies a class of viewer event
type Kind string

const (
	// KindConnected fires when the push channel reaches the open state
	KindConnected Kind = "connected"
	// KindDisconnected fires on transport loss before reconnect begins
	KindDisconnected Kind = "disconnected"
	// KindConnectionFailed fires after reconnect attempts are exhausted
	KindConnectionFailed Kind = "connection-failed"
	// KindContentRefresh fires on a server hint to re-request content
	KindContentRefresh Kind = "content-refresh"
	// KindCurrentBroadcast fires on an unsolicited authoritative update
	KindCurrentBroadcast Kind = "current-content-broadcast"
	// KindCurrentResponse fires on a correlated current-content reply
	KindCurrentResponse Kind = "current-content-response"
	// KindPollSnapshot fires when the fallback poller fetched a snapshot
	KindPollSnapshot Kind = "poll-snapshot"
	// KindConnectivityDegraded fires after consecutive poll failures
	KindConnectivityDegraded Kind = "connectivity-degraded"
	// KindRenderStateChanged fires when the reconciler changed visible state
	KindRenderStateChanged Kind = "render-state-changed"
	// KindScheduleCreated fires when the authority announces a new schedule
	KindScheduleCreated Kind = "schedule-created"
)

// Handler consumes one event payload. Payload types are per-kind and
// documented on the publishing component.
type Handler func(payload interface{})

type subscription struct {
	id      uint64
	handler Handler
}

// Dispatcher fans events out to subscribers. Handlers for one kind run in
// registration order; no ordering holds across kinds. A panicking handler
// is logged and does not suppress delivery to the rest of its kind's list.
type Dispatcher struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[Kind][]subscription
	logger *slog.Logger
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		subs:   make(map[Kind][]subscription),
		logger: logger,
	}
}

// Subscribe registers handler for kind and returns its unsubscribe
// function. Unsubscribing twice is harmless.
func (d *Dispatcher) Subscribe(kind Kind, handler Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.subs[kind] = append(d.subs[kind], subscription{id: id, handler: handler})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		list := d.subs[kind]
		for i, sub := range list {
			if sub.id == id {
				d.subs[kind] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers payload to every handler registered for kind
func (d *Dispatcher) Publish(kind Kind, payload interface{}) {
	d.mu.Lock()
	list := make([]subscription, len(d.subs[kind]))
	copy(list, d.subs[kind])
	d.mu.Unlock()

	for _, sub := range list {
		d.invoke(kind, sub, payload)
	}
}

func (d *Dispatcher) invoke(kind Kind, sub subscription, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				"kind", kind,
				"panic", r,
			)
		}
	}()
	sub.handler(payload)
}
