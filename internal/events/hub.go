package events

import "sync"

const defaultSubscriberBuffer = 8

// Hub is the in-process event bus. Delivery is best-effort, at-most-once
// per connected subscriber: sends never block, and an event arriving while
// a subscriber's buffer is full is dropped for that subscriber. There is no
// replay; clients re-fetch authoritative state on (re)connect.
type Hub struct {
	mu     sync.Mutex
	buffer int
	nextID int64
	topics map[string]map[int64]chan Event
	closed bool
}

// NewHub builds a hub whose subscriber channels hold buffer events each.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		buffer: buffer,
		topics: make(map[string]map[int64]chan Event),
	}
}

// Subscribe registers a subscriber for the topic and returns its channel
// plus an unsubscribe func. Unsubscribe is idempotent and closes the channel.
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	h.nextID++
	id := h.nextID
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[int64]chan Event)
		h.topics[topic] = subs
	}
	subs[id] = ch

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.topics[topic]
		if !ok {
			return
		}
		if sub, ok := subs[id]; ok {
			delete(subs, id)
			close(sub)
		}
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	return ch, unsubscribe
}

// Publish delivers the event to every current subscriber of the topic
// without blocking the caller.
func (h *Hub) Publish(topic string, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, ch := range h.topics[topic] {
		select {
		case ch <- event:
		default:
			// Subscriber is not keeping up; dropping is the contract.
		}
	}
}

// Close tears down every subscription. Publish and Subscribe become no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for topic, subs := range h.topics {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
		delete(h.topics, topic)
	}
}
