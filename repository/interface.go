package repository

import (
	"time"

	"roomreserve/model"
)

// BookingRepository defines the interface for booking data operations.
// InsertIfNoConflict and CancelBooking are the two write paths; both must be
// atomic with respect to concurrent attempts on the same room.
type BookingRepository interface {
	// InsertIfNoConflict persists the candidate as confirmed only if no
	// confirmed booking on the same room overlaps its interval. The overlap
	// check and the insert are indivisible per room: of two concurrent
	// overlapping candidates exactly one wins, the other gets
	// model.ErrConflict. Attempts on different rooms never contend.
	InsertIfNoConflict(req model.CreateBookingRequest) (*model.Booking, error)

	// FindOverlapping returns confirmed bookings on the room whose intervals
	// overlap the given one.
	FindOverlapping(resourceID string, interval model.Interval) ([]model.Booking, error)

	// CancelBooking transitions a confirmed booking to cancelled. The owner,
	// not-started and not-ended checks run inside the same transaction as the
	// update, so a double cancel cannot slip through.
	CancelBooking(bookingID, requesterID string, now time.Time) (*model.Booking, error)

	GetBooking(bookingID string) (*model.Booking, error)
	ListUserBookings(filter model.BookingFilter) ([]model.Booking, int, error)

	// Health check
	Ping() error
}

// ResourceRepository reads the room catalog.
type ResourceRepository interface {
	GetResource(resourceID string) (*model.Resource, error)
	ListResources() ([]model.Resource, error)
}

// UserRepository reads the requester contact directory.
type UserRepository interface {
	GetUser(userID string) (*model.User, error)
}

// NotificationRepository owns the durable per-channel delivery records.
// Status transitions are monotonic: a sent task is never moved back.
type NotificationRepository interface {
	CreateTasks(tasks []model.NotificationTask) error
	GetTask(taskID string) (*model.NotificationTask, error)
	GetTasksByBooking(bookingID string) ([]model.NotificationTask, error)
	MarkTaskSent(taskID string, attempts int) error
	MarkTaskFailed(taskID string, attempts int, lastError string) error

	// IncrementTaskAttempt durably records one failed attempt and returns
	// the new attempt count.
	IncrementTaskAttempt(taskID string, lastError string) (int, error)

	// ListPendingTasks returns tasks still pending since before olderThan,
	// used by the worker's crash-recovery sweep.
	ListPendingTasks(olderThan time.Time, limit int) ([]model.NotificationTask, error)
}
