package model

// Resource represents a bookable room. The catalog is read-only from the
// booking core's perspective and is seeded at migration time.
type Resource struct {
	ID       string `gorm:"primary_key"`
	Name     string `gorm:"type:varchar(255);not null"`
	Location string `gorm:"type:varchar(255)"`
	Capacity int    `gorm:"not null"`
}

// TableName sets the table name for GORM
func (Resource) TableName() string {
	return "rooms"
}

// ResourceResponse represents a room in API responses
type ResourceResponse struct {
	ResourceID string `json:"resource_id"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Capacity   int    `json:"capacity"`
}

// ToResourceResponse converts a Resource entity to an API response
func (r *Resource) ToResourceResponse() ResourceResponse {
	return ResourceResponse{
		ResourceID: r.ID,
		Name:       r.Name,
		Location:   r.Location,
		Capacity:   r.Capacity,
	}
}
