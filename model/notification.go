package model

import (
	"fmt"
	"time"
)

// Notification channels. These mirror the providers wired into the
// dispatcher; unknown channel names on a user profile are skipped.
const (
	ChannelRealtime = "realtime"
	ChannelSMS      = "sms"
	ChannelTelegram = "telegram"
	ChannelWhatsapp = "whatsapp"
)

// Notification task statuses. Transitions are monotonic: pending moves to
// sent or failed, attempts only ever increase, and a sent task is never
// re-sent.
const (
	TaskStatusPending = "pending"
	TaskStatusSent    = "sent"
	TaskStatusFailed  = "failed"
)

// Booking event types carried over the notification topic.
const (
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
)

// ============================================================================
// DATABASE ENTITIES (Internal - GORM only, no JSON tags)
// ============================================================================

// NotificationTask is the durable per-(booking, channel) delivery record.
// It is written before any send attempt so a crash mid-dispatch leaves a
// recoverable pending row instead of silent loss.
type NotificationTask struct {
	ID        string    `gorm:"primary_key;default:gen_random_uuid()"`
	BookingID string    `gorm:"not null;index"`
	UserID    string    `gorm:"not null;index"`
	Channel   string    `gorm:"type:varchar(20);not null"`
	Recipient string    `gorm:"type:varchar(255);not null"`
	Message   string    `gorm:"type:text;not null"`
	Status    string    `gorm:"type:varchar(20);not null;default:'pending';index"`
	Attempts  int       `gorm:"not null;default:0"`
	LastError *string   `gorm:"type:text"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time
}

// TableName sets the table name for GORM
func (NotificationTask) TableName() string {
	return "notification_tasks"
}

// ============================================================================
// KAFKA MESSAGE STRUCTURES
// ============================================================================

// NotificationEvent represents the message published to the notification
// topic when a booking settles
type NotificationEvent struct {
	Type        string    `json:"type"`
	BookingID   string    `json:"booking_id"`
	UserID      string    `json:"user_id"`
	ResourceID  string    `json:"resource_id"`
	Message     string    `json:"message"`
	PublishedAt time.Time `json:"published_at"`
}

// ============================================================================
// MESSAGE RENDERING
// ============================================================================

// RenderBookingMessage derives the human-readable message for a settled
// booking. It is computed once per event and reused verbatim across every
// channel.
func RenderBookingMessage(eventType string, room *Resource, b *Booking) string {
	when := b.StartTime.Format("Mon, 02 Jan 2006 15:04")
	switch eventType {
	case EventBookingCancelled:
		return fmt.Sprintf("Your booking for %s on %s has been cancelled", room.Name, when)
	default:
		return fmt.Sprintf("Your booking for %s has been confirmed for %s", room.Name, when)
	}
}
