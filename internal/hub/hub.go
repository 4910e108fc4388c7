// Package hub implements fan-out of session state snapshots to coaching UI
// subscribers. One registry is shared across sessions; snapshots carry their
// session id so observers can filter.
package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Subscriber receives serialized state snapshots. Send must be safe to call
// from the hub's publishing goroutine.
type Subscriber interface {
	Send(data []byte) error
}

// Hub maintains the shared subscriber set and broadcasts snapshots to all of
// them. A subscriber whose Send fails is dropped.
type Hub struct {
	mu          sync.Mutex
	subscribers map[Subscriber]struct{}
	logger      *slog.Logger
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[Subscriber]struct{}),
		logger:      logger,
	}
}

// Register adds a subscriber. Registering an already registered subscriber is
// a no-op.
func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[s] = struct{}{}
}

// Unregister removes a subscriber. Unknown subscribers are ignored, so a
// disconnect handler may race with a failed-send removal safely.
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, s)
}

// SubscriberCount returns the current number of subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Publish marshals the payload once and sends it to every subscriber.
// Subscribers whose Send fails are removed after the full delivery pass, so
// one bad connection never blocks the rest.
func (h *Hub) Publish(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var failed []Subscriber
	for s := range h.subscribers {
		if err := s.Send(data); err != nil {
			h.logger.Debug("Dropping subscriber after failed send", "error", err)
			failed = append(failed, s)
		}
	}

	for _, s := range failed {
		delete(h.subscribers, s)
	}

	return nil
}
