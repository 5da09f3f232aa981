package panel

import (
	"log/slog"
	"sync"
)

// Event types
const (
	EventDeviceAdded       = "device_added"
	EventDeviceDeleted     = "device_deleted"
	EventEntityAdded       = "entity_added"
	EventEntityDeleted     = "entity_deleted"
	EventDevicesScanned    = "devices_scanned"
	EventInventoryImported = "inventory_imported"
	EventHostSelected      = "host_selected"
)

// Event is an inventory change on one host.
type Event struct {
	Type string `json:"type"`
	Host string `json:"host,omitempty"`
	Data any    `json:"data,omitempty"`
}

// EventHandler is a callback for events.
type EventHandler func(Event)

type subscription struct {
	match   func(Event) bool // nil matches everything
	handler EventHandler
}

// EventBus fans panel events out to the web hub and the MQTT bridge.
// Handlers run synchronously on the emitting goroutine.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[uint64]subscription
	nextID uint64
	logger *slog.Logger
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		subs:   make(map[uint64]subscription),
		logger: logger,
	}
}

func (eb *EventBus) subscribe(match func(Event) bool, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := eb.nextID
	eb.nextID++
	eb.subs[id] = subscription{match: match, handler: handler}
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		delete(eb.subs, id)
	}
}

// On registers a handler for one event type and returns its unsubscribe func.
func (eb *EventBus) On(eventType string, handler EventHandler) func() {
	return eb.subscribe(func(e Event) bool { return e.Type == eventType }, handler)
}

// OnAll registers a handler that receives every event.
func (eb *EventBus) OnAll(handler EventHandler) func() {
	return eb.subscribe(nil, handler)
}

// OnHost registers a handler for the events of one host. Events that carry
// no host reach every host subscriber.
func (eb *EventBus) OnHost(hostID string, handler EventHandler) func() {
	return eb.subscribe(func(e Event) bool { return e.Host == "" || e.Host == hostID }, handler)
}

// Emit calls the matching handlers; a panicking handler is recovered.
func (eb *EventBus) Emit(event Event) {
	eb.mu.RLock()
	var matched []EventHandler
	for _, sub := range eb.subs {
		if sub.match == nil || sub.match(event) {
			matched = append(matched, sub.handler)
		}
	}
	eb.mu.RUnlock()

	for _, h := range matched {
		eb.dispatch(h, event)
	}
}

func (eb *EventBus) dispatch(h EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event handler panic", "type", event.Type, "host", event.Host, "panic", r)
		}
	}()
	h(event)
}
