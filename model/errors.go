package model

import "errors"

// Domain errors returned by the booking service and repositories. Handlers
// map these to HTTP status codes; everything else is treated as a store
// failure and surfaced as 500.
var (
	// ErrConflict means the requested interval overlaps a confirmed booking
	// on the same room.
	ErrConflict = errors.New("room is already booked for this time slot")

	// ErrValidation means the request was rejected before any store access.
	ErrValidation = errors.New("invalid booking request")

	ErrBookingNotFound  = errors.New("booking not found")
	ErrResourceNotFound = errors.New("room not found")
	ErrUserNotFound     = errors.New("user not found")

	// Cancellation-path errors.
	ErrForbidden        = errors.New("only the original requester may cancel")
	ErrTooLate          = errors.New("booking has already started")
	ErrAlreadyCancelled = errors.New("booking is already cancelled")
	ErrAlreadyCompleted = errors.New("booking has already ended")

	ErrTaskNotFound = errors.New("notification task not found")
)
