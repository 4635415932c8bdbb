package cache

import (
	"time"

	"roomreserve/model"
)

// CacheRepository defines the interface for booking status caching. A missed
// live push is recoverable by polling this snapshot.
type CacheRepository interface {
	GetBookingStatus(bookingID string) (*model.BookingStatusUpdate, error)
	SetBookingStatus(bookingID string, status *model.BookingStatusUpdate, ttl time.Duration) error
	InvalidateBookingStatus(bookingID string) error

	// Health check
	Ping() error
}
