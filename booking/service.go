package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roomreserve/cache"
	"roomreserve/eventbus"
	"roomreserve/logger"
	"roomreserve/model"
	"roomreserve/repository"

	"go.uber.org/zap"
)

// EventPublisher hands a settled booking event off to the notification
// worker. Publishing is fire-and-forget relative to the booking caller.
type EventPublisher interface {
	PublishNotificationEvent(ctx context.Context, event model.NotificationEvent) error
}

// Service is the sole arbiter of the no-double-booking rule. It validates
// candidates, drives the conditional insert, and settles accepted bookings:
// status cache, live push, durable notification tasks, then the async
// handoff to the dispatcher. The synchronous result never waits on delivery.
type Service struct {
	repo      repository.BookingRepository
	resources repository.ResourceRepository
	users     repository.UserRepository
	tasks     repository.NotificationRepository
	cache     cache.CacheRepository
	live      eventbus.Pusher
	publisher EventPublisher
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	repo repository.BookingRepository,
	resources repository.ResourceRepository,
	users repository.UserRepository,
	tasks repository.NotificationRepository,
	cacheRepo cache.CacheRepository,
	live eventbus.Pusher,
	publisher EventPublisher,
	opts ...Option,
) *Service {
	s := &Service{
		repo:      repo,
		resources: resources,
		users:     users,
		tasks:     tasks,
		cache:     cacheRepo,
		live:      live,
		publisher: publisher,
		log:       logger.Get(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const statusCacheTTL = 24 * time.Hour

// RequestBooking validates the candidate and admits it if no confirmed
// booking on the room overlaps. Validation failures never touch the store.
func (s *Service) RequestBooking(req model.SubmitBookingRequest) (*model.Booking, error) {
	now := s.now()

	if !req.StartTime.Before(req.EndTime) {
		return nil, fmt.Errorf("%w: start must be before end", model.ErrValidation)
	}
	if req.StartTime.Before(now) {
		return nil, fmt.Errorf("%w: start must not be in the past", model.ErrValidation)
	}
	if req.AttendeeCount <= 0 {
		return nil, fmt.Errorf("%w: attendee count must be positive", model.ErrValidation)
	}

	room, err := s.resources.GetResource(req.ResourceID)
	if err != nil {
		if errors.Is(err, model.ErrResourceNotFound) {
			return nil, fmt.Errorf("%w: unknown room %s", model.ErrValidation, req.ResourceID)
		}
		return nil, err
	}
	if req.AttendeeCount > room.Capacity {
		return nil, fmt.Errorf("%w: attendee count %d exceeds room capacity %d",
			model.ErrValidation, req.AttendeeCount, room.Capacity)
	}

	booking, err := s.repo.InsertIfNoConflict(model.CreateBookingRequest{
		ResourceID:    req.ResourceID,
		RequesterID:   req.RequesterID,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Purpose:       req.Purpose,
		AttendeeCount: req.AttendeeCount,
	})
	if err != nil {
		return nil, err
	}

	s.settle(booking, room, model.EventBookingConfirmed)
	return booking, nil
}

// CancelBooking transitions a confirmed booking to cancelled. The interval
// is free for new requests as soon as the transition commits.
func (s *Service) CancelBooking(bookingID, requesterID string) (*model.Booking, error) {
	booking, err := s.repo.CancelBooking(bookingID, requesterID, s.now())
	if err != nil {
		return nil, err
	}

	room, err := s.resources.GetResource(booking.ResourceID)
	if err != nil {
		// The booking is already cancelled; settle with a bare room record
		// rather than failing the caller.
		s.log.Warn("room lookup failed during cancellation settle",
			zap.String("booking_id", booking.ID), zap.Error(err))
		room = &model.Resource{ID: booking.ResourceID, Name: booking.ResourceID}
	}

	s.settle(booking, room, model.EventBookingCancelled)
	return booking, nil
}

// GetBooking retrieves a booking by ID
func (s *Service) GetBooking(bookingID string) (*model.Booking, error) {
	return s.repo.GetBooking(bookingID)
}

// ListUserBookings retrieves a requester's bookings
func (s *Service) ListUserBookings(filter model.BookingFilter) ([]model.Booking, int, error) {
	return s.repo.ListUserBookings(filter)
}

// ListRooms retrieves the room catalog
func (s *Service) ListRooms() ([]model.Resource, error) {
	return s.resources.ListResources()
}

// Ping reports store health for the health endpoint
func (s *Service) Ping() error {
	return s.repo.Ping()
}

// settle runs the post-decision side effects for a settled booking: cache
// the status snapshot, push the live update, durably record one notification
// task per configured channel, then publish the event for the worker.
// Failures here are logged, never propagated; the booking stands.
func (s *Service) settle(booking *model.Booking, room *model.Resource, eventType string) {
	now := s.now()
	status := booking.Status
	message := model.RenderBookingMessage(eventType, room, booking)

	update := &model.BookingStatusUpdate{
		BookingID: booking.ID,
		Status:    status,
		Message:   message,
		UpdatedAt: now,
	}
	if err := s.cache.SetBookingStatus(booking.ID, update, statusCacheTTL); err != nil {
		s.log.Warn("failed to cache booking status",
			zap.String("booking_id", booking.ID), zap.Error(err))
	}

	if err := s.live.Push(booking.RequesterID, eventbus.Event{
		Type:      "status",
		BookingID: booking.ID,
		Status:    status,
		Message:   message,
		Timestamp: now,
	}); err != nil {
		s.log.Warn("failed to push live status update",
			zap.String("booking_id", booking.ID), zap.Error(err))
	}

	// Durable tasks must exist before any send attempt so a crash leaves
	// recoverable pending rows, not silent loss.
	if err := s.createTasks(booking, message); err != nil {
		s.log.Error("failed to record notification tasks",
			zap.String("booking_id", booking.ID), zap.Error(err))
	}

	event := model.NotificationEvent{
		Type:        eventType,
		BookingID:   booking.ID,
		UserID:      booking.RequesterID,
		ResourceID:  booking.ResourceID,
		Message:     message,
		PublishedAt: now,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.publisher.PublishNotificationEvent(ctx, event); err != nil {
			// The recovery sweep redelivers from the pending tasks.
			s.log.Error("failed to publish notification event",
				zap.String("booking_id", booking.ID), zap.Error(err))
		}
	}()
}

// createTasks records one pending task per channel the requester has
// configured and can actually receive on. A requester without a contact
// profile gets no tasks, which is not an error.
func (s *Service) createTasks(booking *model.Booking, message string) error {
	user, err := s.users.GetUser(booking.RequesterID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			s.log.Warn("no contact profile for requester, skipping notifications",
				zap.String("requester_id", booking.RequesterID))
			return nil
		}
		return err
	}

	var tasks []model.NotificationTask
	for _, channel := range user.Channels {
		address := user.AddressFor(channel)
		if address == "" {
			s.log.Warn("channel enabled without address, skipping",
				zap.String("requester_id", user.ID), zap.String("channel", channel))
			continue
		}
		tasks = append(tasks, model.NotificationTask{
			BookingID: booking.ID,
			UserID:    user.ID,
			Channel:   channel,
			Recipient: address,
			Message:   message,
			Status:    model.TaskStatusPending,
		})
	}
	if len(tasks) == 0 {
		return nil
	}
	return s.tasks.CreateTasks(tasks)
}
