// Package notify broadcasts board events to topic subscribers. Delivery is
// at-most-once best-effort: a slow or gone subscriber is dropped, and a
// failed broadcast never surfaces to the mutating caller, who already holds
// the authoritative response.
package notify

import (
	"sync"

	"go.uber.org/zap"

	"whisperboard/pkg/logger"
	"whisperboard/pkg/models"
)

// Broadcaster publishes one event to every current subscriber of its topic.
// The Mutation Service receives a Broadcaster as an explicit dependency.
type Broadcaster interface {
	Publish(ev models.Event)
}

// Subscription is a live per-subscriber event feed. The C channel closes
// when the subscription is cancelled or the hub shuts down.
type Subscription struct {
	C      <-chan models.Event
	topic  string
	ch     chan models.Event
	cancel func()
	once   sync.Once

	// sendMu serializes sends against the close: a publisher may hold a
	// snapshot of the subscriber set after the subscription was removed
	// from the hub, so the channel must never close mid-send.
	sendMu sync.Mutex
	closed bool
}

// Cancel detaches the subscription and closes C.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// close marks the subscription dead and closes C, exactly once.
func (s *Subscription) close() {
	s.sendMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.sendMu.Unlock()
}

const (
	sendOK = iota
	sendFull
	sendClosed
)

// trySend delivers without blocking. The channel cannot be closed while
// sendMu is held.
func (s *Subscription) trySend(ev models.Event) int {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return sendClosed
	}
	select {
	case s.ch <- ev:
		return sendOK
	default:
		return sendFull
	}
}

// Hub is the in-process topic registry: topic name to live subscriber set.
// It has an explicit lifecycle: constructed during app wiring, closed on
// shutdown; nothing reaches it ambiently.
type Hub struct {
	mu      sync.Mutex
	topics  map[string]map[*Subscription]struct{}
	buffer  int
	closed  bool
	metrics hubMetrics
}

// NewHub returns a hub whose subscribers buffer up to sendBuffer events
// before being dropped.
func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Hub{
		topics:  make(map[string]map[*Subscription]struct{}),
		buffer:  sendBuffer,
		metrics: newHubMetrics(),
	}
}

// Subscribe attaches a new subscriber to a topic channel.
func (h *Hub) Subscribe(topic string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, topic: topic}
	sub.cancel = func() { h.remove(topic, sub) }

	if h.closed {
		sub.close()
		return sub
	}
	set, ok := h.topics[topic]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.topics[topic] = set
	}
	set[sub] = struct{}{}
	h.metrics.subscribers.Inc()
	logger.Debug("subscriber_attached", zap.String("topic", topic))
	return sub
}

func (h *Hub) remove(topic string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.topics[topic]
	if !ok {
		return
	}
	if _, present := set[sub]; !present {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.topics, topic)
	}
	sub.close()
	h.metrics.subscribers.Dec()
	logger.Debug("subscriber_detached", zap.String("topic", topic))
}

// Publish sends the event to every current subscriber of ev.Topic without
// blocking: a subscriber with a full buffer is detached on the spot.
func (h *Hub) Publish(ev models.Event) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	set := h.topics[ev.Topic]
	subs := make([]*Subscription, 0, len(set))
	for s := range set {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		switch s.trySend(ev) {
		case sendOK:
			h.metrics.published.WithLabelValues(ev.Kind).Inc()
		case sendFull:
			// subscriber is not keeping up; drop it rather than stall
			// the mutation path, it will recover via snapshot re-fetch
			h.metrics.dropped.Inc()
			logger.Warn("subscriber_dropped", zap.String("topic", ev.Topic), zap.String("kind", ev.Kind))
			s.Cancel()
		case sendClosed:
			// cancelled between the snapshot and the send; nothing to do
		}
	}
}

// SubscriberCount reports the number of live subscribers for a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

// Close detaches every subscriber and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for topic, set := range h.topics {
		for s := range set {
			s.close()
		}
		delete(h.topics, topic)
	}
	logger.Info("notify_hub_closed")
}
