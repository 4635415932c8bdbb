package model

import (
	"time"
)

// Booking statuses. COMPLETED is never stored: it is derived at read time
// from a confirmed booking whose end has passed, so cancellation never races
// a background sweep.
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

// ============================================================================
// DATABASE ENTITIES (Internal - GORM only, no JSON tags)
// ============================================================================

// Booking represents the database model for room bookings
type Booking struct {
	ID            string    `gorm:"primary_key;default:gen_random_uuid()"`
	ResourceID    string    `gorm:"not null;index"`
	RequesterID   string    `gorm:"not null;index"`
	StartTime     time.Time `gorm:"not null;index"`
	EndTime       time.Time `gorm:"not null"`
	Purpose       string    `gorm:"type:text;not null"`
	AttendeeCount int       `gorm:"not null"`
	Status        string    `gorm:"type:varchar(20);not null;default:'confirmed';index"`
	CreatedAt     time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	CancelledAt   *time.Time
}

// TableName sets the table name for GORM
func (Booking) TableName() string {
	return "bookings"
}

// Interval returns the booking's time range as a value type.
func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

// EffectiveStatus projects the stored status against the clock: a confirmed
// booking whose end has passed reads as completed.
func (b *Booking) EffectiveStatus(now time.Time) string {
	if b.Status == BookingStatusConfirmed && now.After(b.EndTime) {
		return BookingStatusCompleted
	}
	return b.Status
}

// ============================================================================
// REPOSITORY DATA TRANSFER OBJECTS (Internal - no JSON tags)
// ============================================================================

// CreateBookingRequest represents the data needed to create a booking
type CreateBookingRequest struct {
	ResourceID    string
	RequesterID   string
	StartTime     time.Time
	EndTime       time.Time
	Purpose       string
	AttendeeCount int
}

// BookingFilter represents filtering options for booking queries
type BookingFilter struct {
	RequesterID string
	ResourceID  string
	Status      string
	Limit       int
	Offset      int
}

// ============================================================================
// API DATA TRANSFER OBJECTS (External - JSON tags for HTTP)
// ============================================================================

// SubmitBookingRequest represents the API request to create a booking
type SubmitBookingRequest struct {
	ResourceID    string    `json:"resource_id" binding:"required"`
	RequesterID   string    `json:"requester_id" binding:"required"`
	StartTime     time.Time `json:"start" binding:"required"`
	EndTime       time.Time `json:"end" binding:"required"`
	Purpose       string    `json:"purpose" binding:"required"`
	AttendeeCount int       `json:"attendee_count" binding:"required,gt=0"`
}

// CancelBookingRequest represents the API request to cancel a booking
type CancelBookingRequest struct {
	RequesterID string `json:"requester_id" binding:"required"`
}

// BookingResponse represents a booking in API responses
type BookingResponse struct {
	BookingID     string     `json:"booking_id"`
	ResourceID    string     `json:"resource_id"`
	RequesterID   string     `json:"requester_id"`
	StartTime     time.Time  `json:"start"`
	EndTime       time.Time  `json:"end"`
	Purpose       string     `json:"purpose"`
	AttendeeCount int        `json:"attendee_count"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

// UserBookingsResponse represents the list of a requester's bookings
type UserBookingsResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Total    int               `json:"total"`
}

// BookingStatusUpdate represents real-time status updates pushed to live
// clients and cached for polling recovery
type BookingStatusUpdate struct {
	BookingID string    `json:"booking_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ============================================================================
// CONVERSION METHODS
// ============================================================================

// ToBookingResponse converts a Booking entity to an API response, projecting
// the effective status against now.
func (b *Booking) ToBookingResponse(now time.Time) BookingResponse {
	return BookingResponse{
		BookingID:     b.ID,
		ResourceID:    b.ResourceID,
		RequesterID:   b.RequesterID,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Purpose:       b.Purpose,
		AttendeeCount: b.AttendeeCount,
		Status:        b.EffectiveStatus(now),
		CreatedAt:     b.CreatedAt,
		CancelledAt:   b.CancelledAt,
	}
}
