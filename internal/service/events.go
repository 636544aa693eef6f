package service

import (
	"sync"
	"time"
)

// EventType defines the type of event
type EventType string

const (
	EventNetworkLoaded     EventType = "network_loaded"
	EventLoadFailed        EventType = "load_failed"
	EventModeChanged       EventType = "mode_changed"
	EventRecomputeStarted  EventType = "recompute_started"
	EventRecomputeFinished EventType = "recompute_finished"
	EventRecomputeFailed   EventType = "recompute_failed"
	EventSettingsChanged   EventType = "settings_changed"
	EventViewOpened        EventType = "view_opened"
	EventViewClosed        EventType = "view_closed"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType   `json:"type"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventName names the SSE event the hub sends this as
func (e Event) EventName() string {
	return string(e.Type)
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe removes a subscriber
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers. A nil bus drops the event.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
