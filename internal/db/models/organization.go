package models

import "time"

// Organization represents a tenant in the multi-tenant system.
// Every authorization-relevant row carries an organization ID, and every
// query issued by the engine is scoped to exactly one organization.
type Organization struct {
	// ID is the unique identifier for the organization.
	ID uint64 `gorm:"primaryKey"`
	// Slug is the URL-safe unique short name of the organization (e.g., "acme").
	Slug string `gorm:"unique;size:100;not null"`
	// Name is the display name of the organization.
	Name string `gorm:"size:255;not null"`
	// Active indicates whether the organization is enabled.
	Active bool `gorm:"default:true"`
	// CreatedAt is the timestamp when the organization was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the organization was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Organization model.
func (Organization) TableName() string {
	return "organizations"
}
