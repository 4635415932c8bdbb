package memory

import (
	"sort"
	"sync"
	"time"

	"roomreserve/model"

	"github.com/google/uuid"
)

// Repository is an in-memory implementation of the repository interfaces,
// used by tests and local development without a Postgres instance. Admission
// attempts serialize on a per-room mutex, mirroring the advisory-lock
// scoping of the Postgres implementation: two rooms never contend.
type Repository struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
	rooms    map[string]*model.Resource
	users    map[string]*model.User
	tasks    map[string]*model.NotificationTask

	lockMu    sync.Mutex
	roomLocks map[string]*sync.Mutex
}

func New() *Repository {
	return &Repository{
		bookings:  make(map[string]*model.Booking),
		rooms:     make(map[string]*model.Resource),
		users:     make(map[string]*model.User),
		tasks:     make(map[string]*model.NotificationTask),
		roomLocks: make(map[string]*sync.Mutex),
	}
}

// roomLock returns the mutex guarding admission for one room, creating it on
// first use.
func (r *Repository) roomLock(resourceID string) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	l, ok := r.roomLocks[resourceID]
	if !ok {
		l = &sync.Mutex{}
		r.roomLocks[resourceID] = l
	}
	return l
}

// AddResource seeds a room into the catalog
func (r *Repository) AddResource(resource model.Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[resource.ID] = &resource
}

// AddUser seeds a contact profile
func (r *Repository) AddUser(user model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = &user
}

// InsertIfNoConflict checks and inserts under the room's mutex so concurrent
// overlapping candidates for the same room resolve deterministically.
func (r *Repository) InsertIfNoConflict(req model.CreateBookingRequest) (*model.Booking, error) {
	lock := r.roomLock(req.ResourceID)
	lock.Lock()
	defer lock.Unlock()

	candidate := model.Interval{Start: req.StartTime, End: req.EndTime}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.bookings {
		if b.ResourceID != req.ResourceID || b.Status != model.BookingStatusConfirmed {
			continue
		}
		if b.Interval().Overlaps(candidate) {
			return nil, model.ErrConflict
		}
	}

	booking := &model.Booking{
		ID:            uuid.New().String(),
		ResourceID:    req.ResourceID,
		RequesterID:   req.RequesterID,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Purpose:       req.Purpose,
		AttendeeCount: req.AttendeeCount,
		Status:        model.BookingStatusConfirmed,
		CreatedAt:     time.Now(),
	}
	r.bookings[booking.ID] = booking

	out := *booking
	return &out, nil
}

// FindOverlapping returns confirmed bookings on the room overlapping the
// interval, ordered by start time.
func (r *Repository) FindOverlapping(resourceID string, interval model.Interval) ([]model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []model.Booking
	for _, b := range r.bookings {
		if b.ResourceID == resourceID && b.Status == model.BookingStatusConfirmed && b.Interval().Overlaps(interval) {
			result = append(result, *b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

// CancelBooking runs the cancellation rule set and the transition atomically.
func (r *Repository) CancelBooking(bookingID, requesterID string, now time.Time) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	if b.RequesterID != requesterID {
		return nil, model.ErrForbidden
	}
	switch {
	case b.Status == model.BookingStatusCancelled:
		return nil, model.ErrAlreadyCancelled
	case now.After(b.EndTime):
		return nil, model.ErrAlreadyCompleted
	case now.After(b.StartTime):
		return nil, model.ErrTooLate
	}

	b.Status = model.BookingStatusCancelled
	cancelledAt := now
	b.CancelledAt = &cancelledAt

	out := *b
	return &out, nil
}

// GetBooking retrieves a booking by ID
func (r *Repository) GetBooking(bookingID string) (*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	out := *b
	return &out, nil
}

// ListUserBookings retrieves a requester's bookings, newest start first.
func (r *Repository) ListUserBookings(filter model.BookingFilter) ([]model.Booking, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []model.Booking
	for _, b := range r.bookings {
		if b.RequesterID != filter.RequesterID {
			continue
		}
		if filter.ResourceID != "" && b.ResourceID != filter.ResourceID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		matched = append(matched, *b)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartTime.After(matched[j].StartTime) })

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

// Ping always succeeds for the in-memory store
func (r *Repository) Ping() error {
	return nil
}

// GetResource retrieves a room by ID
func (r *Repository) GetResource(resourceID string) (*model.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[resourceID]
	if !ok {
		return nil, model.ErrResourceNotFound
	}
	out := *room
	return &out, nil
}

// ListResources retrieves the room catalog ordered by name
func (r *Repository) ListResources() ([]model.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rooms []model.Resource
	for _, room := range r.rooms {
		rooms = append(rooms, *room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms, nil
}

// GetUser retrieves a contact profile by ID
func (r *Repository) GetUser(userID string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

// CreateTasks stores pending delivery records
func (r *Repository) CreateTasks(tasks []model.NotificationTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for i := range tasks {
		t := tasks[i]
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		r.tasks[t.ID] = &t
	}
	return nil
}

// GetTask retrieves a notification task by ID
func (r *Repository) GetTask(taskID string) (*model.NotificationTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return nil, model.ErrTaskNotFound
	}
	out := *t
	return &out, nil
}

// GetTasksByBooking retrieves every delivery record for a booking
func (r *Repository) GetTasksByBooking(bookingID string) ([]model.NotificationTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tasks []model.NotificationTask
	for _, t := range r.tasks {
		if t.BookingID == bookingID {
			tasks = append(tasks, *t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	return tasks, nil
}

// MarkTaskSent records a successful delivery; only pending tasks move.
func (r *Repository) MarkTaskSent(taskID string, attempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok || t.Status != model.TaskStatusPending {
		return nil
	}
	t.Status = model.TaskStatusSent
	t.Attempts = attempts
	t.UpdatedAt = time.Now()
	return nil
}

// MarkTaskFailed records a terminal failure; only pending tasks move.
func (r *Repository) MarkTaskFailed(taskID string, attempts int, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok || t.Status != model.TaskStatusPending {
		return nil
	}
	t.Status = model.TaskStatusFailed
	t.Attempts = attempts
	t.LastError = &lastError
	t.UpdatedAt = time.Now()
	return nil
}

// IncrementTaskAttempt records one failed attempt and returns the new count.
func (r *Repository) IncrementTaskAttempt(taskID string, lastError string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return 0, model.ErrTaskNotFound
	}
	t.Attempts++
	t.LastError = &lastError
	t.UpdatedAt = time.Now()
	return t.Attempts, nil
}

// ListPendingTasks returns stale pending tasks for the recovery sweep.
func (r *Repository) ListPendingTasks(olderThan time.Time, limit int) ([]model.NotificationTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tasks []model.NotificationTask
	for _, t := range r.tasks {
		if t.Status == model.TaskStatusPending && t.CreatedAt.Before(olderThan) {
			tasks = append(tasks, *t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}
