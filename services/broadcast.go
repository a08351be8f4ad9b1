// services/broadcast.go
package services

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Event names pushed to clients. Game events are prefixed with the engine they belong to.
const (
	EventConnected          = "connected"
	EventKniffelState       = "kniffel:stateUpdate"
	EventKniffelError       = "kniffel:actionError"
	EventKniffelSaved       = "kniffel:gameSaved"
	EventOlympiadeStatus    = "olympiade:statusUpdate"
	EventSpinAnnounced      = "olympiade:spinAnnounced"
	EventOlympiadeError     = "olympiade:tournamentError"
	EventOlympiadeFinished  = "olympiade:tournamentFinished"
	eventKeepalive          = ""
	defaultSubscriberBuffer = 64
)

// Event is one outbound message. An empty Name is a keepalive comment.
type Event struct {
	Name string
	Data any
}

// IsKeepalive reports whether the event only keeps the stream open.
func (e Event) IsKeepalive() bool { return e.Name == eventKeepalive }

// ErrorPayload is the body of every caller-only error event.
type ErrorPayload struct {
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

// Broadcaster is the delivery surface the engines need: fan-out to every
// observer, or a message to one connection only.
type Broadcaster interface {
	Broadcast(ev Event)
	SendTo(connectionID string, ev Event)
}

// Subscriber receives events for a single connection.
type Subscriber struct {
	ConnectionID string
	C            <-chan Event

	ch chan Event
}

// Hub fans events out to connected streams. Sends never block: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	buffer      int
	log         *logrus.Entry
}

func NewHub(buffer int, logger *logrus.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		buffer:      buffer,
		log:         logger.WithField("component", "hub"),
	}
}

// Subscribe registers a stream for connectionID, replacing an older one with the same id.
func (h *Hub) Subscribe(connectionID string) *Subscriber {
	ch := make(chan Event, h.buffer)
	sub := &Subscriber{ConnectionID: connectionID, C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.subscribers[connectionID]; ok {
		close(old.ch)
	}
	h.subscribers[connectionID] = sub
	return sub
}

// Unsubscribe removes the stream and closes its channel.
func (h *Hub) Unsubscribe(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[connectionID]; ok {
		close(sub.ch)
		delete(h.subscribers, connectionID)
	}
}

func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, sub := range h.subscribers {
		h.deliver(id, sub, ev)
	}
}

func (h *Hub) SendTo(connectionID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, ok := h.subscribers[connectionID]
	if !ok {
		h.log.WithFields(logrus.Fields{"connection_id": connectionID, "event": ev.Name}).
			Debug("target connection not subscribed")
		return
	}
	h.deliver(connectionID, sub, ev)
}

// Heartbeat sends a keepalive to every stream so dead connections surface as write errors.
func (h *Hub) Heartbeat() {
	h.Broadcast(Event{Name: eventKeepalive})
}

// Count returns the number of open streams.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// deliver assumes the read lock is held.
func (h *Hub) deliver(connectionID string, sub *Subscriber, ev Event) {
	select {
	case sub.ch <- ev:
	default:
		h.log.WithFields(logrus.Fields{"connection_id": connectionID, "event": ev.Name}).
			Warn("subscriber buffer full, dropping event")
	}
}
