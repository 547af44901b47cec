package models

import "time"

// Built-in role names seeded on every cold start. A role's identity is
// global; its capabilities are organization-scoped (see RoleAssignment),
// so the same role name can carry different permissions per tenant.
const (
	// RoleAdmin administers roles, visibility and organization settings.
	RoleAdmin = "admin"
	// RoleSupervisor manages goals and evaluations for direct reports.
	RoleSupervisor = "supervisor"
	// RoleEmployee owns goals and self-assessments.
	RoleEmployee = "employee"
	// RoleViewer has read access restricted by explicit visibility grants.
	RoleViewer = "viewer"
)

// Role represents a role in the role-based access control (RBAC) system.
// Roles are collections of permissions assigned per organization.
type Role struct {
	// ID is the unique identifier for the role.
	ID uint `gorm:"primaryKey"`
	// Name is the unique name of the role (e.g., "admin", "viewer").
	Name string `gorm:"unique;size:100;not null"`
	// Description provides a human-readable description of the role's purpose.
	Description string `gorm:"size:255"`
	// IsSystem indicates if this is a built-in role that cannot be deleted.
	IsSystem bool `gorm:"default:false"`
	// CreatedAt is the timestamp when the role was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the role was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Role model.
func (Role) TableName() string {
	return "roles"
}
