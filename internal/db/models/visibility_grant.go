package models

import "time"

// SubjectType tags the polymorphic target of a viewer visibility grant.
// The three kinds replace what would otherwise be three near-identical
// tables; a single repository dispatches on the tag.
type SubjectType string

const (
	// SubjectUser grants visibility into one user's resources.
	SubjectUser SubjectType = "USER"
	// SubjectDepartment grants visibility into one department's resources.
	SubjectDepartment SubjectType = "DEPARTMENT"
	// SubjectSupervisorTeam grants visibility into one supervisor's full reporting line.
	SubjectSupervisorTeam SubjectType = "SUPERVISOR_TEAM"
)

// Valid reports whether the subject type is one of the three known kinds.
func (s SubjectType) Valid() bool {
	switch s {
	case SubjectUser, SubjectDepartment, SubjectSupervisorTeam:
		return true
	}

	return false
}

// ViewerVisibilityGrant is an explicit allow-list entry letting a
// viewer-role identity see resources belonging to one subject.
// The polymorphic subject cannot be enforced by a single foreign key,
// so the store validates target existence before every insert.
//
// UpdatedAt follows the same stamping discipline as RoleAssignment:
// only the admin write path sets it, and the viewer's version token is
// derived from max(updated_at) over their rows.
type ViewerVisibilityGrant struct {
	// ID is the unique identifier for the grant.
	ID uint64 `gorm:"primaryKey"`
	// OrganizationID is the tenant this grant belongs to.
	OrganizationID uint64 `gorm:"uniqueIndex:idx_visibility_grant;not null"`
	// ViewerUserID is the viewer-role user the grant applies to.
	ViewerUserID uint64 `gorm:"uniqueIndex:idx_visibility_grant;not null"`
	// SubjectType is the kind of target (USER, DEPARTMENT or SUPERVISOR_TEAM).
	SubjectType SubjectType `gorm:"uniqueIndex:idx_visibility_grant;type:varchar(20);not null"`
	// SubjectID is the ID of the targeted user, department or supervisor.
	SubjectID uint64 `gorm:"uniqueIndex:idx_visibility_grant;not null"`
	// ResourceType is the kind of resource made visible (e.g., "goal").
	ResourceType string `gorm:"uniqueIndex:idx_visibility_grant;size:50;not null"`
	// CreatedBy is the user ID of the administrator who created the grant.
	CreatedBy uint64 `gorm:"not null"`
	// CreatedAt is the timestamp when the grant was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is stamped by the admin write path only; see the type comment.
	UpdatedAt *time.Time `gorm:"autoUpdateTime:false"`
}

// TableName specifies the database table name for the ViewerVisibilityGrant model.
func (ViewerVisibilityGrant) TableName() string {
	return "viewer_visibility_grants"
}
