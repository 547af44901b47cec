package models

import "time"

// RoleAssignment maps one permission to one role within one organization.
// The full assignment set for a (organization, role) pair is only ever
// written as a whole by an explicit admin write, never partially.
//
// UpdatedAt is deliberately not auto-managed: the admin write path stamps
// it explicitly, and rows created by fixtures or provisioning leave it
// NULL. The derived version token for a (organization, role) pair is
// max(updated_at) over its rows, with the sentinel "0" when no row has
// been stamped yet.
type RoleAssignment struct {
	// OrganizationID is the tenant this assignment belongs to.
	OrganizationID uint64 `gorm:"primaryKey;autoIncrement:false;column:organization_id"`
	// RoleID is the ID of the role in this mapping.
	RoleID uint `gorm:"primaryKey;autoIncrement:false;column:role_id"`
	// PermissionID is the ID of the permission in this mapping.
	PermissionID uint `gorm:"primaryKey;autoIncrement:false;column:permission_id"`
	// Role is the associated role (loaded via foreign key).
	Role Role `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
	// Permission is the associated permission (loaded via foreign key).
	Permission Permission `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the assignment was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is stamped by the admin write path only; see the type comment.
	UpdatedAt *time.Time `gorm:"autoUpdateTime:false"`
}

// TableName specifies the database table name for the RoleAssignment model.
func (RoleAssignment) TableName() string {
	return "role_assignments"
}
