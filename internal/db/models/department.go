package models

import "time"

// Department represents an organizational unit users belong to.
// Departments are one of the three subject kinds a viewer visibility
// grant can target.
type Department struct {
	// ID is the unique identifier for the department.
	ID uint64 `gorm:"primaryKey"`
	// OrganizationID is the tenant this department belongs to.
	OrganizationID uint64 `gorm:"uniqueIndex:idx_departments_org_name;not null"`
	// Name is the department name, unique within the organization.
	Name string `gorm:"uniqueIndex:idx_departments_org_name;size:255;not null"`
	// CreatedAt is the timestamp when the department was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the department was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Department model.
func (Department) TableName() string {
	return "departments"
}
