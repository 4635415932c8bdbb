package postgres

import (
	"errors"
	"fmt"
	"time"

	"roomreserve/model"

	"gorm.io/gorm"
)

// CreateTasks persists the per-channel delivery records for a booking event.
// Tasks must exist in pending state before any send is attempted.
func (r *Repository) CreateTasks(tasks []model.NotificationTask) error {
	if len(tasks) == 0 {
		return nil
	}
	if err := r.db.Create(&tasks).Error; err != nil {
		return fmt.Errorf("failed to create notification tasks: %w", err)
	}
	return nil
}

// GetTask retrieves a notification task by its ID
func (r *Repository) GetTask(taskID string) (*model.NotificationTask, error) {
	var task model.NotificationTask
	err := r.db.Where("id = ?", taskID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get notification task: %w", err)
	}
	return &task, nil
}

// GetTasksByBooking retrieves every delivery record for a booking
func (r *Repository) GetTasksByBooking(bookingID string) ([]model.NotificationTask, error) {
	var tasks []model.NotificationTask
	err := r.db.Where("booking_id = ?", bookingID).Order("created_at ASC").Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notification tasks: %w", err)
	}
	return tasks, nil
}

// MarkTaskSent records a successful delivery. The status guard keeps the
// transition monotonic: a task already sent or failed is left alone.
func (r *Repository) MarkTaskSent(taskID string, attempts int) error {
	err := r.db.Model(&model.NotificationTask{}).
		Where("id = ? AND status = ?", taskID, model.TaskStatusPending).
		Updates(map[string]interface{}{
			"status":     model.TaskStatusSent,
			"attempts":   attempts,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark task sent: %w", err)
	}
	return nil
}

// MarkTaskFailed records a terminally failed delivery after the retry budget
// is exhausted.
func (r *Repository) MarkTaskFailed(taskID string, attempts int, lastError string) error {
	err := r.db.Model(&model.NotificationTask{}).
		Where("id = ? AND status = ?", taskID, model.TaskStatusPending).
		Updates(map[string]interface{}{
			"status":     model.TaskStatusFailed,
			"attempts":   attempts,
			"last_error": lastError,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark task failed: %w", err)
	}
	return nil
}

// IncrementTaskAttempt records one failed attempt and returns the new count.
func (r *Repository) IncrementTaskAttempt(taskID string, lastError string) (int, error) {
	err := r.db.Model(&model.NotificationTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return 0, fmt.Errorf("failed to increment task attempts: %w", err)
	}

	task, err := r.GetTask(taskID)
	if err != nil {
		return 0, err
	}
	return task.Attempts, nil
}

// ListPendingTasks returns stale pending tasks for the recovery sweep.
func (r *Repository) ListPendingTasks(olderThan time.Time, limit int) ([]model.NotificationTask, error) {
	var tasks []model.NotificationTask
	err := r.db.
		Where("status = ? AND created_at < ?", model.TaskStatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending tasks: %w", err)
	}
	return tasks, nil
}
