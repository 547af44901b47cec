package models

import "time"

// User represents a person in an organization.
// Users are provisioned from the external identity provider; the engine never
// stores credentials. A user may exist in the identity provider before a row
// is written here (the signup race), so authorization code must tolerate a
// missing user record.
type User struct {
	// ID is the unique identifier for the user.
	ID uint64 `gorm:"primaryKey"`
	// OrganizationID is the tenant this user belongs to.
	OrganizationID uint64 `gorm:"uniqueIndex:idx_users_org_external;not null"`
	// ExternalID is the identity-provider subject (the identity key of the bearer token).
	ExternalID string `gorm:"uniqueIndex:idx_users_org_external;size:255;not null"`
	// Email is the user's email address.
	Email string `gorm:"size:255;not null"`
	// FirstName is the user's first or given name.
	FirstName string `gorm:"size:100"`
	// LastName is the user's last or family name.
	LastName string `gorm:"size:100"`
	// Active indicates whether the user account is active.
	Active bool `gorm:"default:true"`
	// DepartmentID is the department the user belongs to, if any.
	DepartmentID *uint64 `gorm:"index"`
	// SupervisorID is the user ID of this user's supervisor, if any.
	// It is the edge used to resolve supervisor-team visibility subjects.
	SupervisorID *uint64 `gorm:"index"`
	// CreatedAt is the timestamp when the user was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the user was last updated (managed by GORM).
	UpdatedAt time.Time
	// DeletedAt is the soft delete timestamp (nil if not deleted, managed by GORM).
	DeletedAt *time.Time
}

// TableName specifies the database table name for the User model.
func (User) TableName() string {
	return "users"
}
