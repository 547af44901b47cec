// Package audit persists administrative change records and mirrors them
// to the structured log.
package audit

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/evalforge/evalforge/internal/db/models"
)

// Audit actions.
const (
	ActionRolePermissionsReplace  = "role_permissions.replace"
	ActionRolePermissionsPatch    = "role_permissions.patch"
	ActionViewerVisibilityReplace = "viewer_visibility.replace"
	ActionViewerVisibilityPatch   = "viewer_visibility.patch"
)

// Target kinds.
const (
	TargetRole   = "role"
	TargetViewer = "viewer"
)

// Entry describes one administrative change to record.
type Entry struct {
	OrganizationID uint64
	ActorID        uint64
	Action         string
	TargetKind     string
	TargetID       string
	Added          any
	Removed        any
	BeforeVersion  string
	AfterVersion   string
}

// Recorder writes audit records.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder creates a recorder over the given database handle.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record persists the entry and emits it to the log. The added/removed
// diffs are stored JSON-encoded.
func (r *Recorder) Record(entry Entry) error {
	added, err := json.Marshal(entry.Added)
	if err != nil {
		return fmt.Errorf("failed to encode added diff: %w", err)
	}

	removed, err := json.Marshal(entry.Removed)
	if err != nil {
		return fmt.Errorf("failed to encode removed diff: %w", err)
	}

	record := models.AuditRecord{
		ID:             uuid.NewString(),
		OrganizationID: entry.OrganizationID,
		ActorID:        entry.ActorID,
		Action:         entry.Action,
		TargetKind:     entry.TargetKind,
		TargetID:       entry.TargetID,
		Added:          string(added),
		Removed:        string(removed),
		BeforeVersion:  entry.BeforeVersion,
		AfterVersion:   entry.AfterVersion,
	}

	if err := r.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}

	log.Info().
		Str("audit_id", record.ID).
		Uint64("org_id", entry.OrganizationID).
		Uint64("actor_id", entry.ActorID).
		Str("action", entry.Action).
		Str("target", entry.TargetKind+"/"+entry.TargetID).
		Str("before_version", entry.BeforeVersion).
		Str("after_version", entry.AfterVersion).
		RawJSON("added", added).
		RawJSON("removed", removed).
		Msg("audit")

	return nil
}
