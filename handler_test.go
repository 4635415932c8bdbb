package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roomreserve/booking"
	cachememory "roomreserve/cache/memory"
	"roomreserve/eventbus"
	"roomreserve/model"
	"roomreserve/repository/memory"

	"github.com/gin-gonic/gin"
)

type nopPublisher struct{}

func (nopPublisher) PublishNotificationEvent(ctx context.Context, event model.NotificationEvent) error {
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *memory.Repository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.New()
	repo.AddResource(model.Resource{ID: "room-101", Name: "Lecture Hall 101", Capacity: 50})
	repo.AddUser(model.User{ID: "alice", Name: "Alice", Channels: []string{model.ChannelRealtime}})

	hub := eventbus.NewHub()
	service := booking.NewService(repo, repo, repo, repo,
		cachememory.NewMemoryCacheRepository(), hub, nopPublisher{})
	handler := NewBookingHandler(service, cachememory.NewMemoryCacheRepository(), hub)

	router := gin.New()
	api := router.Group("/api")
	{
		api.POST("/bookings", handler.SubmitBooking)
		api.POST("/bookings/:bookingId/cancel", handler.CancelBooking)
		api.GET("/bookings/:bookingId", handler.GetBooking)
		api.GET("/bookings/:bookingId/status", handler.GetBookingStatus)
		api.GET("/bookings", handler.ListUserBookings)
		api.GET("/rooms", handler.ListRooms)
	}
	router.GET("/health", handler.HealthCheck)

	return router, repo
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func validSubmission() model.SubmitBookingRequest {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	return model.SubmitBookingRequest{
		ResourceID:    "room-101",
		RequesterID:   "alice",
		StartTime:     start,
		EndTime:       start.Add(time.Hour),
		Purpose:       "lecture",
		AttendeeCount: 30,
	}
}

func createBooking(t *testing.T, router *gin.Engine) model.BookingResponse {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/bookings", validSubmission())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp model.BookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestSubmitBookingCreated(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := createBooking(t, router)
	if resp.Status != model.BookingStatusConfirmed {
		t.Errorf("status = %s, want confirmed", resp.Status)
	}
	if resp.BookingID == "" {
		t.Error("response missing booking_id")
	}
}

func TestSubmitBookingValidationErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	missing := validSubmission()
	missing.ResourceID = ""
	if rec := doJSON(t, router, http.MethodPost, "/api/bookings", missing); rec.Code != http.StatusBadRequest {
		t.Errorf("missing resource_id: got %d, want 400", rec.Code)
	}

	inverted := validSubmission()
	inverted.StartTime, inverted.EndTime = inverted.EndTime, inverted.StartTime
	if rec := doJSON(t, router, http.MethodPost, "/api/bookings", inverted); rec.Code != http.StatusBadRequest {
		t.Errorf("inverted interval: got %d, want 400", rec.Code)
	}

	unknownRoom := validSubmission()
	unknownRoom.ResourceID = "room-999"
	if rec := doJSON(t, router, http.MethodPost, "/api/bookings", unknownRoom); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown room: got %d, want 400", rec.Code)
	}
}

func TestSubmitBookingConflict(t *testing.T) {
	router, _ := newTestRouter(t)
	createBooking(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", validSubmission())
	if rec.Code != http.StatusConflict {
		t.Fatalf("got %d, want 409: %s", rec.Code, rec.Body.String())
	}
	var errResp model.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Error != "booking_conflict" {
		t.Errorf("error code = %s, want booking_conflict", errResp.Error)
	}
}

func TestCancelBooking(t *testing.T) {
	router, _ := newTestRouter(t)
	created := createBooking(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/bookings/"+created.BookingID+"/cancel",
		model.CancelBookingRequest{RequesterID: "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp model.BookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != model.BookingStatusCancelled {
		t.Errorf("status = %s, want cancelled", resp.Status)
	}

	// A second cancel is a conflict.
	rec = doJSON(t, router, http.MethodPost, "/api/bookings/"+created.BookingID+"/cancel",
		model.CancelBookingRequest{RequesterID: "alice"})
	if rec.Code != http.StatusConflict {
		t.Errorf("repeat cancel: got %d, want 409", rec.Code)
	}
}

func TestCancelBookingErrors(t *testing.T) {
	router, _ := newTestRouter(t)
	created := createBooking(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/bookings/nope/cancel",
		model.CancelBookingRequest{RequesterID: "alice"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown booking: got %d, want 404", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/bookings/"+created.BookingID+"/cancel",
		model.CancelBookingRequest{RequesterID: "bob"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign requester: got %d, want 403", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/bookings/"+created.BookingID+"/cancel", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing requester_id: got %d, want 400", rec.Code)
	}
}

func TestGetBooking(t *testing.T) {
	router, _ := newTestRouter(t)
	created := createBooking(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/bookings/"+created.BookingID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/bookings/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown booking: got %d, want 404", rec.Code)
	}
}

func TestGetBookingStatusFallsBackToStore(t *testing.T) {
	// The handler's status cache is empty here, so the lookup must fall
	// through to the store.
	router, _ := newTestRouter(t)
	created := createBooking(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/bookings/"+created.BookingID+"/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var status model.BookingStatusUpdate
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != model.BookingStatusConfirmed {
		t.Errorf("status = %s, want confirmed", status.Status)
	}
}

func TestListUserBookings(t *testing.T) {
	router, _ := newTestRouter(t)
	createBooking(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/bookings?requester_id=alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	var resp model.UserBookingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Bookings) != 1 {
		t.Errorf("total = %d, bookings = %d, want 1 each", resp.Total, len(resp.Bookings))
	}

	rec = doJSON(t, router, http.MethodGet, "/api/bookings", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing requester_id: got %d, want 400", rec.Code)
	}
}

func TestListRooms(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/rooms", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	var rooms []model.ResourceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &rooms); err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 {
		t.Errorf("got %d rooms, want 1", len(rooms))
	}
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	var health model.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" {
		t.Errorf("status = %s, want healthy", health.Status)
	}
}
