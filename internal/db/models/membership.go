package models

import "time"

// Membership records that a user holds a role within an organization.
// A user can hold several roles in the same organization. This is the
// durable source of role resolution; token role claims are only a
// fallback for identities that have not been provisioned yet.
type Membership struct {
	// ID is the unique identifier for the membership.
	ID uint64 `gorm:"primaryKey"`
	// OrganizationID is the tenant this membership belongs to.
	OrganizationID uint64 `gorm:"uniqueIndex:idx_memberships_org_user_role;not null"`
	// UserID is the user holding the role.
	UserID uint64 `gorm:"uniqueIndex:idx_memberships_org_user_role;not null"`
	// RoleID is the role held.
	RoleID uint `gorm:"uniqueIndex:idx_memberships_org_user_role;not null"`
	// Role is the associated role (loaded via foreign key).
	Role Role `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the membership was created (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the Membership model.
func (Membership) TableName() string {
	return "memberships"
}
