package audit

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/evalforge/evalforge/internal/db/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(&models.AuditRecord{})
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func TestRecorder_Record(t *testing.T) {
	db := setupTestDB(t)
	recorder := NewRecorder(db)

	err := recorder.Record(Entry{
		OrganizationID: 1,
		ActorID:        7,
		Action:         ActionRolePermissionsReplace,
		TargetKind:     TargetRole,
		TargetID:       "3",
		Added:          []string{"goal:read", "goal:approve"},
		Removed:        []string{"goal:delete"},
		BeforeVersion:  "0",
		AfterVersion:   "2026-03-01T12:00:00Z",
	})
	require.NoError(t, err)

	var record models.AuditRecord
	require.NoError(t, db.First(&record).Error)

	assert.NotEmpty(t, record.ID)
	assert.EqualValues(t, 1, record.OrganizationID)
	assert.EqualValues(t, 7, record.ActorID)
	assert.Equal(t, ActionRolePermissionsReplace, record.Action)
	assert.Equal(t, TargetRole, record.TargetKind)
	assert.Equal(t, "3", record.TargetID)
	assert.JSONEq(t, `["goal:read","goal:approve"]`, record.Added)
	assert.JSONEq(t, `["goal:delete"]`, record.Removed)
	assert.Equal(t, "0", record.BeforeVersion)
	assert.Equal(t, "2026-03-01T12:00:00Z", record.AfterVersion)
}

func TestRecorder_EveryRecordGetsAFreshID(t *testing.T) {
	db := setupTestDB(t)
	recorder := NewRecorder(db)

	for i := 0; i < 3; i++ {
		err := recorder.Record(Entry{
			OrganizationID: 1,
			ActorID:        7,
			Action:         ActionViewerVisibilityPatch,
			TargetKind:     TargetViewer,
			TargetID:       "12",
		})
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&models.AuditRecord{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}
