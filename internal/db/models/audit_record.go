package models

import "time"

// AuditRecord captures one administrative change to role capabilities or
// viewer visibility: who changed what, the added/removed diff, and the
// version tokens before and after the write.
type AuditRecord struct {
	// ID is a UUID assigned by the audit recorder.
	ID string `gorm:"primaryKey;size:36"`
	// OrganizationID is the tenant the change happened in.
	OrganizationID uint64 `gorm:"index;not null"`
	// ActorID is the user ID of the administrator who made the change.
	ActorID uint64 `gorm:"not null"`
	// Action names the operation (e.g., "role_permissions.replace").
	Action string `gorm:"size:100;not null"`
	// TargetKind is the kind of resource changed ("role" or "viewer").
	TargetKind string `gorm:"size:50;not null"`
	// TargetID identifies the changed role or viewer.
	TargetID string `gorm:"size:100;not null"`
	// Added is the JSON-encoded list of entries the write added.
	Added string `gorm:"type:text"`
	// Removed is the JSON-encoded list of entries the write removed.
	Removed string `gorm:"type:text"`
	// BeforeVersion is the version token before the write.
	BeforeVersion string `gorm:"size:64"`
	// AfterVersion is the version token after the write.
	AfterVersion string `gorm:"size:64"`
	// CreatedAt is the timestamp when the record was written (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the AuditRecord model.
func (AuditRecord) TableName() string {
	return "audit_records"
}
