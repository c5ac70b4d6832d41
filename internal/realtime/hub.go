// Package realtime fans work order change events out to SSE subscribers and an optional MQTT broker
package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Event types mirror the row operation that caused them
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Event is one change of a work order row
type Event struct {
	Type        string    `json:"type"`
	WorkOrderID string    `json:"work_order_id"`
	Status      string    `json:"status,omitempty"`
	At          time.Time `json:"at"`
}

// Publisher accepts change events. Publish must not block.
type Publisher interface {
	Publish(e Event)
}

// Discard is a Publisher that drops every event
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Hub delivers events to in-process subscribers and bridges
type Hub struct {
	mu      sync.RWMutex
	subs    map[chan Event]struct{}
	bridges []Publisher
	closed  bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// AddBridge forwards every published event to p
func (h *Hub) AddBridge(p Publisher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridges = append(h.bridges, p)
}

// Subscribe registers a buffered subscriber. The returned cancel func
// unregisters it and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of live subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers e to every subscriber without blocking; a subscriber
// whose buffer is full misses the event.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			log.WithField("work_order_id", e.WorkOrderID).Warn("Realtime subscriber is slow, event dropped")
		}
	}
	for _, b := range h.bridges {
		b.Publish(e)
	}
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}

// ServeHTTP streams events as server-sent events until the client goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	events, cancel := h.Subscribe(16)
	defer cancel()

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				log.WithError(err).Error("Failed to encode realtime event")
				continue
			}
			fmt.Fprintf(w, "event: work_orders\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
