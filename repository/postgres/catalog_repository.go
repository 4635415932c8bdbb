package postgres

import (
	"errors"
	"fmt"

	"roomreserve/model"

	"gorm.io/gorm"
)

// GetResource retrieves a room by its ID
func (r *Repository) GetResource(resourceID string) (*model.Resource, error) {
	var resource model.Resource
	err := r.db.Where("id = ?", resourceID).First(&resource).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &resource, nil
}

// ListResources retrieves the full room catalog
func (r *Repository) ListResources() ([]model.Resource, error) {
	var resources []model.Resource
	if err := r.db.Order("name ASC").Find(&resources).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return resources, nil
}

// GetUser retrieves a requester's contact profile
func (r *Repository) GetUser(userID string) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// seedRooms loads the default room catalog on first run. The catalog is
// read-only at runtime, so an already populated table is left untouched.
func seedRooms(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Resource{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	rooms := []model.Resource{
		{ID: "room-101", Name: "Lecture Hall 101", Location: "Building A, Floor 1", Capacity: 120},
		{ID: "room-102", Name: "Seminar Room 102", Location: "Building A, Floor 1", Capacity: 30},
		{ID: "room-201", Name: "Lab 201", Location: "Building B, Floor 2", Capacity: 45},
		{ID: "room-202", Name: "Meeting Room 202", Location: "Building B, Floor 2", Capacity: 12},
		{ID: "room-301", Name: "Auditorium", Location: "Building C, Ground Floor", Capacity: 300},
	}
	return db.Create(&rooms).Error
}
