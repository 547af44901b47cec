package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalforge/evalforge/internal/db/models"
)

func TestEnsurePermissions_Idempotent(t *testing.T) {
	// setupTestDB already seeds the full catalog once.
	db := setupTestDB(t)

	created, err := EnsurePermissions(db, DefaultCatalog())
	require.NoError(t, err)
	assert.Empty(t, created, "reseeding must not create duplicates")

	var count int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&count).Error)
	assert.EqualValues(t, len(DefaultCatalog()), count)
}

func TestEnsurePermissions_UpdatesDriftedMetadata(t *testing.T) {
	db := setupTestDB(t)

	var perm models.Permission
	require.NoError(t, db.Where("code = ?", PermGoalRead).First(&perm).Error)

	perm.Description = "stale description"
	require.NoError(t, db.Save(&perm).Error)

	_, err := EnsurePermissions(db, DefaultCatalog())
	require.NoError(t, err)

	var reloaded models.Permission
	require.NoError(t, db.Where("code = ?", PermGoalRead).First(&reloaded).Error)
	assert.Equal(t, "Read own goals", reloaded.Description)
	assert.Equal(t, perm.ID, reloaded.ID, "existing rows keep their identity")
}

func TestEnsurePermissions_RejectsMalformedCodes(t *testing.T) {
	db := setupTestDB(t)

	_, err := EnsurePermissions(db, []CatalogEntry{{Code: "goal", Description: "no action", Group: GroupGoals}})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSplitCode(t *testing.T) {
	tests := []struct {
		code     string
		resource string
		action   string
		scope    string
		wantErr  bool
	}{
		{code: "goal:read", resource: "goal", action: "read"},
		{code: "goal:read:all", resource: "goal", action: "read", scope: "all"},
		{code: "goal", wantErr: true},
		{code: ":read", wantErr: true},
		{code: "goal:", wantErr: true},
		{code: "goal:read:all:really", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			resource, action, scope, err := splitCode(tt.code)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.resource, resource)
			assert.Equal(t, tt.action, action)
			assert.Equal(t, tt.scope, scope)
		})
	}
}
