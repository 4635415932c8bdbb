package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"roomreserve/booking"
	"roomreserve/cache"
	"roomreserve/eventbus"
	"roomreserve/model"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service *booking.Service
	cache   cache.CacheRepository
	hub     *eventbus.Hub
}

func NewBookingHandler(service *booking.Service, cacheRepo cache.CacheRepository, hub *eventbus.Hub) *BookingHandler {
	return &BookingHandler{
		service: service,
		cache:   cacheRepo,
		hub:     hub,
	}
}

// SubmitBooking handles booking creation with synchronous admission control
func (h *BookingHandler) SubmitBooking(c *gin.Context) {
	var req model.SubmitBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "validation_failed",
			Message: err.Error(),
		})
		return
	}

	booked, err := h.service.RequestBooking(req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrValidation):
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Error:   "validation_failed",
				Message: err.Error(),
			})
		case errors.Is(err, model.ErrConflict):
			c.JSON(http.StatusConflict, model.ErrorResponse{
				Error:   "booking_conflict",
				Message: model.ErrConflict.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, model.ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to create booking",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, booked.ToBookingResponse(time.Now()))
}

// CancelBooking handles explicit cancellation by the original requester
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID := c.Param("bookingId")

	var req model.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "validation_failed",
			Message: err.Error(),
		})
		return
	}

	cancelled, err := h.service.CancelBooking(bookingID, req.RequesterID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrBookingNotFound):
			c.JSON(http.StatusNotFound, model.ErrorResponse{
				Error:   "not_found",
				Message: model.ErrBookingNotFound.Error(),
			})
		case errors.Is(err, model.ErrForbidden):
			c.JSON(http.StatusForbidden, model.ErrorResponse{
				Error:   "forbidden",
				Message: model.ErrForbidden.Error(),
			})
		case errors.Is(err, model.ErrTooLate):
			c.JSON(http.StatusConflict, model.ErrorResponse{
				Error:   "too_late",
				Message: model.ErrTooLate.Error(),
			})
		case errors.Is(err, model.ErrAlreadyCancelled):
			c.JSON(http.StatusConflict, model.ErrorResponse{
				Error:   "already_cancelled",
				Message: model.ErrAlreadyCancelled.Error(),
			})
		case errors.Is(err, model.ErrAlreadyCompleted):
			c.JSON(http.StatusConflict, model.ErrorResponse{
				Error:   "already_completed",
				Message: model.ErrAlreadyCompleted.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, model.ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to cancel booking",
			})
		}
		return
	}

	c.JSON(http.StatusOK, cancelled.ToBookingResponse(time.Now()))
}

// GetBooking returns a booking with its effective status
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID := c.Param("bookingId")

	booked, err := h.service.GetBooking(bookingID)
	if err != nil {
		if errors.Is(err, model.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, model.ErrorResponse{
				Error:   "not_found",
				Message: model.ErrBookingNotFound.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to retrieve booking",
		})
		return
	}

	c.JSON(http.StatusOK, booked.ToBookingResponse(time.Now()))
}

// ListUserBookings returns all bookings for a requester
func (h *BookingHandler) ListUserBookings(c *gin.Context) {
	requesterID := c.Query("requester_id")
	if requesterID == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "validation_failed",
			Message: "requester_id query parameter is required",
		})
		return
	}

	filter := model.BookingFilter{
		RequesterID: requesterID,
		Status:      c.Query("status"),
		Limit:       50,
		Offset:      0,
	}

	bookings, total, err := h.service.ListUserBookings(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to retrieve bookings",
		})
		return
	}

	now := time.Now()
	summaries := make([]model.BookingResponse, 0, len(bookings))
	for i := range bookings {
		summaries = append(summaries, bookings[i].ToBookingResponse(now))
	}

	c.JSON(http.StatusOK, model.UserBookingsResponse{
		Bookings: summaries,
		Total:    total,
	})
}

// ListRooms returns the room catalog
func (h *BookingHandler) ListRooms(c *gin.Context) {
	rooms, err := h.service.ListRooms()
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to retrieve rooms",
		})
		return
	}

	responses := make([]model.ResourceResponse, 0, len(rooms))
	for i := range rooms {
		responses = append(responses, rooms[i].ToResourceResponse())
	}
	c.JSON(http.StatusOK, responses)
}

// StreamEvents provides Server-Sent Events for a requester's live updates:
// notification pushes and booking status changes. Delivery is best effort;
// clients reconcile by polling the booking endpoints.
func (h *BookingHandler) StreamEvents(c *gin.Context) {
	requesterID := c.Query("requester_id")
	if requesterID == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "validation_failed",
			Message: "requester_id query parameter is required",
		})
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	events, cancel := h.hub.Subscribe(requesterID)
	defer cancel()

	// Heartbeat keeps intermediaries from closing an idle stream.
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	c.Writer.Flush()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			c.SSEvent(event.Type, string(data))
			c.Writer.Flush()

		case <-heartbeat.C:
			c.SSEvent("heartbeat", time.Now().Format(time.RFC3339))
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}

// GetBookingStatus returns the latest cached status snapshot, falling back
// to the store when the cache has expired.
func (h *BookingHandler) GetBookingStatus(c *gin.Context) {
	bookingID := c.Param("bookingId")

	status, err := h.cache.GetBookingStatus(bookingID)
	if err == nil && status != nil {
		c.JSON(http.StatusOK, status)
		return
	}

	booked, err := h.service.GetBooking(bookingID)
	if err != nil {
		if errors.Is(err, model.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, model.ErrorResponse{
				Error:   "not_found",
				Message: model.ErrBookingNotFound.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to retrieve booking status",
		})
		return
	}

	c.JSON(http.StatusOK, model.BookingStatusUpdate{
		BookingID: booked.ID,
		Status:    booked.EffectiveStatus(time.Now()),
		UpdatedAt: time.Now(),
	})
}

// HealthCheck handles health check endpoint
func (h *BookingHandler) HealthCheck(c *gin.Context) {
	if err := h.service.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Error:   "service_unavailable",
			Message: "Database connection failed",
		})
		return
	}

	if err := h.cache.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Error:   "service_unavailable",
			Message: "Cache connection failed",
		})
		return
	}

	c.JSON(http.StatusOK, model.HealthResponse{
		Status:    "healthy",
		Service:   "roomreserve-api",
		Timestamp: time.Now(),
	})
}
