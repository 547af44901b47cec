package models

import "time"

// Permission represents one grantable capability in the authorization system.
// Permissions are created once via catalog seeding and are immutable
// thereafter, except for description and group edits.
type Permission struct {
	// ID is the unique identifier for the permission.
	ID uint `gorm:"primaryKey"`
	// Code is the globally unique namespaced identifier in
	// resource:action[:scope] format (e.g., "goal:read:all").
	Code string `gorm:"unique;size:100;not null"`
	// Resource is the resource this permission applies to (e.g., "goal", "evaluation").
	Resource string `gorm:"size:100;not null"`
	// Action is the action allowed on the resource (e.g., "read", "approve").
	Action string `gorm:"size:50;not null"`
	// Scope optionally widens or narrows the action (e.g., "all", "own").
	Scope string `gorm:"size:50"`
	// Description provides a human-readable explanation of what this permission grants.
	Description string `gorm:"size:255"`
	// Group is the catalog group used for presentation (e.g., "goals", "administration").
	Group string `gorm:"column:perm_group;size:100"`
	// CreatedAt is the timestamp when the permission was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the permission was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Permission model.
func (Permission) TableName() string {
	return "permissions"
}
