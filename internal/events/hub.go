// Package events is the in-process feed behind the SSE endpoint and the
// watch TUI. Publishers never block; late subscribers replay what the
// ring buffer still holds via Last-Event-ID.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event kinds published by the gateway.
const (
	KindAlert         = "alert"
	KindPluginChanged = "plugin_changed"
	KindDelivery      = "delivery"
)

// Event is one feed entry. Seq is monotonic per process and doubles as
// the SSE event id.
type Event struct {
	Seq     int64           `json:"seq"`
	Kind    string          `json:"kind"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

const subscriberBuffer = 128

// Hub fans events out to subscribers and keeps a bounded replay buffer.
type Hub struct {
	seq atomic.Int64

	mu    sync.Mutex
	ring  []Event
	start int
	count int

	subs   map[int]chan Event
	subSeq int
}

// NewHub builds a hub retaining the last capacity events for replay.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 256
	}
	return &Hub{
		ring: make([]Event, capacity),
		subs: make(map[int]chan Event),
	}
}

// Publish marshals payload and delivers the event to every subscriber
// that can accept it without blocking. Slow subscribers miss events
// rather than stall the gateway.
func (h *Hub) Publish(kind string, payload any) {
	raw := json.RawMessage("{}")
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			raw = b
		}
	}

	ev := Event{
		Seq:     h.seq.Add(1),
		Kind:    kind,
		At:      time.Now().UTC(),
		Payload: raw,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.appendLocked(ev)
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a buffered subscriber. The returned cancel is
// idempotent and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.subSeq
	h.subSeq++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Replay returns buffered events with Seq > after, oldest first. after
// of 0 returns everything still buffered.
func (h *Hub) Replay(after int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.count)
	for i := 0; i < h.count; i++ {
		ev := h.ring[(h.start+i)%len(h.ring)]
		if ev.Seq > after {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Hub) appendLocked(ev Event) {
	if h.count < len(h.ring) {
		h.ring[(h.start+h.count)%len(h.ring)] = ev
		h.count++
		return
	}
	h.ring[h.start] = ev
	h.start = (h.start + 1) % len(h.ring)
}
