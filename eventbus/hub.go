package eventbus

import (
	"sync"
	"time"
)

// Event is the payload pushed to live sessions. Type is "notification" for
// human-readable messages and "status" for machine state changes.
type Event struct {
	Type      string    `json:"type"`
	BookingID string    `json:"booking_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const subscriberBuffer = 16

// Hub fans best-effort live updates out to sessions subscribed by user ID.
// Delivery is at most once with no retry: a slow subscriber whose buffer is
// full simply misses the event, and recovers by polling the store.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a live session for the user and returns its event
// channel with a cancel func. Cancel is idempotent and closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish pushes the event to every live session of the user without
// blocking. Full buffers drop the event.
func (h *Hub) Publish(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[userID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports live sessions for the user.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
