package events

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// subscriberBuffer holds a few cycles worth of events for a watcher.
const subscriberBuffer = 16

type subscriber struct {
	dropped uint64
}

// EventHub fans daemon events out to the connected watchers. A watcher that
// falls behind loses events instead of stalling the control cycle.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[chan Event]*subscriber
	closed bool
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan Event]*subscriber)}
}

// Subscribe registers a new watcher. On a closed hub the returned channel
// is already closed.
func (h *EventHub) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = &subscriber{}
	logrus.WithField("watchers", len(h.subs)).Debug("event watcher connected")
	return ch
}

func (h *EventHub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.subs[ch]
	if !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
	logrus.WithFields(logrus.Fields{
		"watchers": len(h.subs),
		"dropped":  s.dropped,
	}).Debug("event watcher disconnected")
}

// Publish encodes payload once and offers it to every watcher. A nil hub
// discards everything, so the runner works without one.
func (h *EventHub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		logrus.WithField("event", name).Errorf("failed to encode event: %v", err)
		return
	}
	msg := Event{Name: name, Data: b}

	// Write lock: the per-watcher drop counters are updated in place.
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, s := range h.subs {
		select {
		case ch <- msg:
		default:
			s.dropped++
			logrus.WithFields(logrus.Fields{
				"event":   name,
				"dropped": s.dropped,
			}).Trace("event watcher is slow, event dropped")
		}
	}
}

// Close disconnects every watcher. Later subscriptions are closed at once.
func (h *EventHub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
	h.closed = true
}
