package postgres

import (
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"roomreserve/config"
	"roomreserve/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func New(cfg *config.Database) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	if err := db.AutoMigrate(&model.Booking{}, &model.Resource{}, &model.User{}, &model.NotificationTask{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := seedRooms(db); err != nil {
		return nil, fmt.Errorf("failed to seed room catalog: %w", err)
	}

	return &Repository{db: db}, nil
}

// resourceLockKey maps a room ID onto the 64-bit advisory lock space.
func resourceLockKey(resourceID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(resourceID))
	return int64(h.Sum64())
}

// InsertIfNoConflict creates a confirmed booking unless a confirmed booking
// on the same room overlaps. The overlap check and the insert run inside one
// transaction holding a per-room advisory lock, so concurrent candidates for
// the same room serialize while other rooms proceed in parallel.
func (r *Repository) InsertIfNoConflict(req model.CreateBookingRequest) (*model.Booking, error) {
	booking := &model.Booking{
		ResourceID:    req.ResourceID,
		RequesterID:   req.RequesterID,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Purpose:       req.Purpose,
		AttendeeCount: req.AttendeeCount,
		Status:        model.BookingStatusConfirmed,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", resourceLockKey(req.ResourceID)).Error; err != nil {
			return fmt.Errorf("failed to acquire room lock: %w", err)
		}

		var count int64
		err := tx.Model(&model.Booking{}).
			Where("resource_id = ? AND status = ? AND start_time < ? AND end_time > ?",
				req.ResourceID, model.BookingStatusConfirmed, req.EndTime, req.StartTime).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to check for overlapping bookings: %w", err)
		}
		if count > 0 {
			return model.ErrConflict
		}

		if err := tx.Create(booking).Error; err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

// FindOverlapping returns confirmed bookings on the room overlapping the
// half-open interval.
func (r *Repository) FindOverlapping(resourceID string, interval model.Interval) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.
		Where("resource_id = ? AND status = ? AND start_time < ? AND end_time > ?",
			resourceID, model.BookingStatusConfirmed, interval.End, interval.Start).
		Order("start_time ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	return bookings, nil
}

// CancelBooking transitions a confirmed booking to cancelled under a row
// lock, running the owner and timing checks inside the same transaction.
func (r *Repository) CancelBooking(bookingID, requesterID string, now time.Time) (*model.Booking, error) {
	var booking model.Booking

	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", bookingID).
			First(&booking).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.ErrBookingNotFound
			}
			return fmt.Errorf("failed to load booking: %w", err)
		}

		if err := checkCancellable(&booking, requesterID, now); err != nil {
			return err
		}

		booking.Status = model.BookingStatusCancelled
		booking.CancelledAt = &now
		if err := tx.Model(&model.Booking{}).Where("id = ?", bookingID).
			Updates(map[string]interface{}{
				"status":       model.BookingStatusCancelled,
				"cancelled_at": now,
			}).Error; err != nil {
			return fmt.Errorf("failed to cancel booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &booking, nil
}

// checkCancellable enforces the cancellation rules shared with the in-memory
// store: owner only, before start, and never on a settled booking.
func checkCancellable(b *model.Booking, requesterID string, now time.Time) error {
	if b.RequesterID != requesterID {
		return model.ErrForbidden
	}
	switch {
	case b.Status == model.BookingStatusCancelled:
		return model.ErrAlreadyCancelled
	case now.After(b.EndTime):
		return model.ErrAlreadyCompleted
	case now.After(b.StartTime):
		return model.ErrTooLate
	}
	return nil
}

// GetBooking retrieves a booking by its ID
func (r *Repository) GetBooking(bookingID string) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.Where("id = ?", bookingID).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// ListUserBookings retrieves bookings for a specific requester with filtering
func (r *Repository) ListUserBookings(filter model.BookingFilter) ([]model.Booking, int, error) {
	var bookings []model.Booking
	var total int64

	query := r.db.Model(&model.Booking{}).Where("requester_id = ?", filter.RequesterID)

	if filter.ResourceID != "" {
		query = query.Where("resource_id = ?", filter.ResourceID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	err := query.Order("start_time DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&bookings).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	return bookings, int(total), nil
}

// Ping checks database connectivity for health reporting
func (r *Repository) Ping() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
