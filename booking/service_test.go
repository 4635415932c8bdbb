package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	cachememory "roomreserve/cache/memory"
	"roomreserve/eventbus"
	"roomreserve/model"
	"roomreserve/repository/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type capturePublisher struct {
	events chan model.NotificationEvent
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{events: make(chan model.NotificationEvent, 64)}
}

func (p *capturePublisher) PublishNotificationEvent(ctx context.Context, event model.NotificationEvent) error {
	p.events <- event
	return nil
}

func (p *capturePublisher) wait(t *testing.T) model.NotificationEvent {
	t.Helper()
	select {
	case e := <-p.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
		return model.NotificationEvent{}
	}
}

var baseTime = time.Date(2030, 5, 14, 0, 0, 0, 0, time.UTC)

type fixture struct {
	repo    *memory.Repository
	service *Service
	pub     *capturePublisher
	hub     *eventbus.Hub
	clock   *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := memory.New()
	repo.AddResource(model.Resource{ID: "room-101", Name: "Lecture Hall 101", Capacity: 50})
	repo.AddResource(model.Resource{ID: "room-202", Name: "Meeting Room 202", Capacity: 10})
	repo.AddUser(model.User{
		ID:             "alice",
		Name:           "Alice",
		Phone:          "+15550001111",
		TelegramChatID: "10001",
		Channels:       []string{model.ChannelRealtime, model.ChannelSMS, model.ChannelTelegram},
	})
	repo.AddUser(model.User{ID: "bob", Name: "Bob"})

	clock := newFakeClock(baseTime)
	hub := eventbus.NewHub()
	pub := newCapturePublisher()

	service := NewService(repo, repo, repo, repo,
		cachememory.NewMemoryCacheRepository(), hub, pub, WithClock(clock.Now))

	return &fixture{repo: repo, service: service, pub: pub, hub: hub, clock: clock}
}

func submitReq(resourceID, requesterID string, start, end time.Time) model.SubmitBookingRequest {
	return model.SubmitBookingRequest{
		ResourceID:    resourceID,
		RequesterID:   requesterID,
		StartTime:     start,
		EndTime:       end,
		Purpose:       "team sync",
		AttendeeCount: 5,
	}
}

func TestRequestBookingValidation(t *testing.T) {
	f := newFixture(t)
	start := baseTime.Add(9 * time.Hour)
	end := baseTime.Add(10 * time.Hour)

	tests := []struct {
		name string
		req  model.SubmitBookingRequest
	}{
		{
			name: "start after end",
			req:  submitReq("room-101", "alice", end, start),
		},
		{
			name: "start equals end",
			req:  submitReq("room-101", "alice", start, start),
		},
		{
			name: "start in the past",
			req:  submitReq("room-101", "alice", baseTime.Add(-time.Hour), end),
		},
		{
			name: "unknown room",
			req:  submitReq("room-999", "alice", start, end),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.RequestBooking(tt.req)
			if !errors.Is(err, model.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	t.Run("attendees over capacity", func(t *testing.T) {
		req := submitReq("room-202", "alice", start, end)
		req.AttendeeCount = 11
		_, err := f.service.RequestBooking(req)
		if !errors.Is(err, model.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	// Validation failures must never reach the store.
	_, total, err := f.repo.ListUserBookings(model.BookingFilter{RequesterID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("rejected requests created %d bookings, want 0", total)
	}
}

func TestRequestBookingSuccess(t *testing.T) {
	f := newFixture(t)

	b, err := f.service.RequestBooking(submitReq("room-101", "alice",
		baseTime.Add(9*time.Hour), baseTime.Add(10*time.Hour)))
	if err != nil {
		t.Fatalf("RequestBooking failed: %v", err)
	}
	if b.Status != model.BookingStatusConfirmed {
		t.Errorf("booking status = %s, want confirmed", b.Status)
	}

	event := f.pub.wait(t)
	if event.Type != model.EventBookingConfirmed {
		t.Errorf("published event type = %s, want %s", event.Type, model.EventBookingConfirmed)
	}
	if event.BookingID != b.ID {
		t.Errorf("published event booking = %s, want %s", event.BookingID, b.ID)
	}

	// One durable pending task per configured channel, recorded before any
	// send could happen.
	tasks, err := f.repo.GetTasksByBooking(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d notification tasks, want 3", len(tasks))
	}
	seen := map[string]bool{}
	for _, task := range tasks {
		if task.Status != model.TaskStatusPending {
			t.Errorf("task %s status = %s, want pending", task.Channel, task.Status)
		}
		if task.Message == "" {
			t.Errorf("task %s has empty message", task.Channel)
		}
		seen[task.Channel] = true
	}
	for _, ch := range []string{model.ChannelRealtime, model.ChannelSMS, model.ChannelTelegram} {
		if !seen[ch] {
			t.Errorf("missing task for channel %s", ch)
		}
	}
}

func TestRequestBookingConflict(t *testing.T) {
	f := newFixture(t)
	start := baseTime.Add(9 * time.Hour)
	end := baseTime.Add(10 * time.Hour)

	if _, err := f.service.RequestBooking(submitReq("room-101", "alice", start, end)); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	_, err := f.service.RequestBooking(submitReq("room-101", "bob",
		start.Add(30*time.Minute), end.Add(30*time.Minute)))
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// A different room with the same interval is unaffected.
	if _, err := f.service.RequestBooking(submitReq("room-202", "bob", start, end)); err != nil {
		t.Fatalf("booking on a different room failed: %v", err)
	}
}

func TestRequestBookingTouchingBoundary(t *testing.T) {
	f := newFixture(t)
	ten := baseTime.Add(10 * time.Hour)

	if _, err := f.service.RequestBooking(submitReq("room-101", "alice",
		baseTime.Add(9*time.Hour), ten)); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if _, err := f.service.RequestBooking(submitReq("room-101", "bob",
		ten, baseTime.Add(11*time.Hour))); err != nil {
		t.Fatalf("booking starting at the previous end should succeed, got %v", err)
	}
}

func TestConcurrentIdenticalRequestsExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	start := baseTime.Add(9 * time.Hour)
	end := baseTime.Add(10 * time.Hour)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.RequestBooking(submitReq("room-101",
				fmt.Sprintf("alice-%d", i), start, end))
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, model.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("got %d winners, want exactly 1", wins)
	}
	if conflicts != attempts-1 {
		t.Errorf("got %d conflicts, want %d", conflicts, attempts-1)
	}
}

func TestConcurrentRandomIntervalsNoDoubleBooking(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewSource(42))

	type candidate struct {
		start time.Time
		end   time.Time
	}
	const n = 40
	candidates := make([]candidate, n)
	for i := range candidates {
		startMin := rng.Intn(10 * 60)
		length := 15 + rng.Intn(120)
		start := baseTime.Add(8*time.Hour + time.Duration(startMin)*time.Minute)
		candidates[i] = candidate{start: start, end: start.Add(time.Duration(length) * time.Minute)}
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.service.RequestBooking(submitReq("room-101",
				fmt.Sprintf("user-%d", i), candidates[i].start, candidates[i].end))
			if err != nil && !errors.Is(err, model.ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// Every pair of accepted bookings must be disjoint.
	accepted, err := f.repo.FindOverlapping("room-101", model.Interval{
		Start: baseTime, End: baseTime.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) == 0 {
		t.Fatal("no bookings accepted at all")
	}
	for i := 0; i < len(accepted); i++ {
		for j := i + 1; j < len(accepted); j++ {
			if accepted[i].Interval().Overlaps(accepted[j].Interval()) {
				t.Errorf("double booking: %v and %v", accepted[i].Interval(), accepted[j].Interval())
			}
		}
	}
}

func TestCancelBookingFreesSlot(t *testing.T) {
	f := newFixture(t)
	start := baseTime.Add(9 * time.Hour)
	end := baseTime.Add(10 * time.Hour)

	b, err := f.service.RequestBooking(submitReq("room-101", "alice", start, end))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	f.pub.wait(t)

	cancelled, err := f.service.CancelBooking(b.ID, "alice")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != model.BookingStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}

	event := f.pub.wait(t)
	if event.Type != model.EventBookingCancelled {
		t.Errorf("published event type = %s, want %s", event.Type, model.EventBookingCancelled)
	}

	// The interval is free again.
	if _, err := f.service.RequestBooking(submitReq("room-101", "bob", start, end)); err != nil {
		t.Fatalf("rebooking a cancelled slot failed: %v", err)
	}
}

func TestCancelBookingRules(t *testing.T) {
	f := newFixture(t)
	start := baseTime.Add(time.Hour)
	end := baseTime.Add(2 * time.Hour)

	b, err := f.service.RequestBooking(submitReq("room-101", "alice", start, end))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	if _, err := f.service.CancelBooking("no-such-id", "alice"); !errors.Is(err, model.ErrBookingNotFound) {
		t.Errorf("unknown booking: got %v, want not found", err)
	}
	if _, err := f.service.CancelBooking(b.ID, "bob"); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("foreign requester: got %v, want forbidden", err)
	}

	// After start but before end: too late to cancel.
	f.clock.Advance(90 * time.Minute)
	if _, err := f.service.CancelBooking(b.ID, "alice"); !errors.Is(err, model.ErrTooLate) {
		t.Errorf("started booking: got %v, want too late", err)
	}

	// After end: the booking already completed.
	f.clock.Advance(time.Hour)
	if _, err := f.service.CancelBooking(b.ID, "alice"); !errors.Is(err, model.ErrAlreadyCompleted) {
		t.Errorf("elapsed booking: got %v, want already completed", err)
	}
}

func TestCancelTwice(t *testing.T) {
	f := newFixture(t)

	b, err := f.service.RequestBooking(submitReq("room-101", "alice",
		baseTime.Add(time.Hour), baseTime.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := f.service.CancelBooking(b.ID, "alice"); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}
	if _, err := f.service.CancelBooking(b.ID, "alice"); !errors.Is(err, model.ErrAlreadyCancelled) {
		t.Errorf("second cancel: got %v, want already cancelled", err)
	}
}

func TestRequesterWithoutProfileGetsNoTasks(t *testing.T) {
	f := newFixture(t)

	b, err := f.service.RequestBooking(submitReq("room-101", "stranger",
		baseTime.Add(time.Hour), baseTime.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	tasks, err := f.repo.GetTasksByBooking(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Errorf("got %d tasks for unknown requester, want 0", len(tasks))
	}
	// The booking itself still stands.
	if b.Status != model.BookingStatusConfirmed {
		t.Errorf("status = %s, want confirmed", b.Status)
	}
}

func TestLiveStatusPushOnBooking(t *testing.T) {
	f := newFixture(t)

	events, cancel := f.hub.Subscribe("alice")
	defer cancel()

	b, err := f.service.RequestBooking(submitReq("room-101", "alice",
		baseTime.Add(time.Hour), baseTime.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Type != "status" || ev.BookingID != b.ID || ev.Status != model.BookingStatusConfirmed {
			t.Errorf("unexpected live event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no live event received")
	}
}
