// Package changefeed carries table-level change notifications from the store
// to everything that needs to re-read: live queries, published values and
// WebSocket clients. Subscribers register for topics (table names) and
// receive an Event whenever a write touches that table.
package changefeed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event describes a committed change. Topic is the table the subscriber
// listens on; ResourceType is the table the write was issued against, which
// differs from Topic for cascaded deletes.
type Event struct {
	Type         string    `json:"type"`
	Topic        string    `json:"topic"`
	ResourceType string    `json:"resourceType"`
	ResourceID   string    `json:"resourceId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ClientMessage represents an inbound subscription request from a remote client.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Publisher receives the events of committed writes. Event.Topic selects
// who hears about it; the store writes through this and Hub implements it.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber is a single registration on the hub. Events are delivered on
// Send; when the buffer is full the event is dropped, so a buffer of one
// coalesces bursts into a single pending "something changed" signal.
type Subscriber struct {
	ID     string
	Topics []string
	Send   chan Event
	hub    *Hub
}

// Close unregisters the subscriber and closes Send. Safe to call twice.
func (s *Subscriber) Close() {
	s.hub.Unregister(s)
}

// Hub tracks subscribers and their topics. All operations are safe for
// concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Subscriber]struct{} // topic -> set of subscribers
	all     map[*Subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Subscriber]struct{}),
		all:     make(map[*Subscriber]struct{}),
	}
}

// Listen creates and registers a subscriber with the given buffer size.
func (h *Hub) Listen(buffer int, topics ...string) *Subscriber {
	if buffer < 1 {
		buffer = 1
	}
	s := &Subscriber{
		ID:     uuid.New().String(),
		Topics: append([]string(nil), topics...),
		Send:   make(chan Event, buffer),
		hub:    h,
	}
	h.Register(s)
	return s
}

// Register adds a subscriber to the hub under its initial topics.
func (h *Hub) Register(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[s] = struct{}{}
	for _, topic := range s.Topics {
		h.addLocked(topic, s)
	}
}

// Unregister removes a subscriber from every topic and closes its Send channel.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[s]; !ok {
		return
	}
	for _, topic := range s.Topics {
		h.removeLocked(topic, s)
	}
	delete(h.all, s)
	close(s.Send)
}

// Subscribe adds topics to an already-registered subscriber.
func (h *Hub) Subscribe(s *Subscriber, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[s]; !ok {
		return
	}
	for _, topic := range topics {
		if h.hasLocked(topic, s) {
			continue
		}
		h.addLocked(topic, s)
		s.Topics = append(s.Topics, topic)
	}
}

// Unsubscribe removes topics from an already-registered subscriber.
func (h *Hub) Unsubscribe(s *Subscriber, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		removeSet[t] = struct{}{}
		h.removeLocked(t, s)
	}

	remaining := make([]string, 0, len(s.Topics))
	for _, t := range s.Topics {
		if _, rm := removeSet[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	s.Topics = remaining
}

// ProcessMessage dispatches a client message to Subscribe or Unsubscribe.
func (h *Hub) ProcessMessage(s *Subscriber, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(s, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(s, msg.Topics)
	}
}

// Broadcast delivers an event to every subscriber of topic without blocking.
func (h *Hub) Broadcast(topic string, event Event) {
	event.Topic = topic
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.clients[topic] {
		select {
		case s.Send <- event:
		default:
			// Buffer full: a notification is already pending.
		}
	}
}

// Publish broadcasts event on event.Topic. It never fails.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.Broadcast(event.Topic, event)
	return nil
}

// ClientCount returns the number of registered subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of subscribers on a topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

func (h *Hub) addLocked(topic string, s *Subscriber) {
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Subscriber]struct{})
	}
	h.clients[topic][s] = struct{}{}
}

func (h *Hub) removeLocked(topic string, s *Subscriber) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, s)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}

func (h *Hub) hasLocked(topic string, s *Subscriber) bool {
	_, ok := h.clients[topic][s]
	return ok
}
