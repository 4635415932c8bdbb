package memory

import (
	"sync"
	"time"

	"roomreserve/model"
)

// MemoryCacheRepository is an in-process cache used by tests and local
// development. TTLs are honored lazily on read.
type MemoryCacheRepository struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	status    model.BookingStatusUpdate
	expiresAt time.Time
}

func NewMemoryCacheRepository() *MemoryCacheRepository {
	return &MemoryCacheRepository{entries: make(map[string]entry)}
}

func (c *MemoryCacheRepository) GetBookingStatus(bookingID string) (*model.BookingStatusUpdate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[bookingID]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, nil // Cache miss
	}
	out := e.status
	return &out, nil
}

func (c *MemoryCacheRepository) SetBookingStatus(bookingID string, status *model.BookingStatusUpdate, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[bookingID] = entry{status: *status, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCacheRepository) InvalidateBookingStatus(bookingID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, bookingID)
	return nil
}

func (c *MemoryCacheRepository) Ping() error {
	return nil
}
