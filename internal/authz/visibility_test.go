package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/evalforge/evalforge/internal/db/models"
)

func createDepartment(t *testing.T, db *gorm.DB, name string) uint64 {
	t.Helper()

	dept := models.Department{OrganizationID: testOrgID, Name: name}
	require.NoError(t, db.Create(&dept).Error)

	return dept.ID
}

func TestVisibilityOverrideStore_ReplaceFromVersionZero(t *testing.T) {
	db := setupTestDB(t)
	store := NewVisibilityOverrideStore(db, time.Minute)

	viewerID := createUser(t, db, "viewer-1")
	subjectID := createUser(t, db, "subject-1")
	deptID := createDepartment(t, db, "engineering")

	change, err := store.ReplaceGrants(testOrgID, viewerID, []Grant{
		{SubjectType: models.SubjectUser, SubjectID: subjectID, ResourceType: ResourceGoal},
		{SubjectType: models.SubjectDepartment, SubjectID: deptID, ResourceType: ResourceEvaluation},
		{SubjectType: models.SubjectSupervisorTeam, SubjectID: subjectID, ResourceType: ResourceFeedback},
	}, 99, VersionZero)
	require.NoError(t, err)

	assert.Equal(t, VersionZero, change.BeforeVersion)
	assert.NotEqual(t, VersionZero, change.AfterVersion)
	assert.Len(t, change.Added, 3)
	assert.Empty(t, change.Removed)

	grants, err := store.ListGrants(testOrgID, viewerID)
	require.NoError(t, err)
	require.Len(t, grants, 3)

	for _, grant := range grants {
		assert.EqualValues(t, 99, grant.CreatedBy)
	}

	version, err := store.GetVersion(testOrgID, viewerID)
	require.NoError(t, err)
	assert.Equal(t, change.AfterVersion, version)
}

func TestVisibilityOverrideStore_DuplicateEntriesCollapse(t *testing.T) {
	db := setupTestDB(t)
	store := NewVisibilityOverrideStore(db, time.Minute)

	viewerID := createUser(t, db, "viewer-1")
	subjectID := createUser(t, db, "subject-1")

	grant := Grant{SubjectType: models.SubjectUser, SubjectID: subjectID, ResourceType: ResourceGoal}

	change, err := store.ReplaceGrants(testOrgID, viewerID, []Grant{grant, grant, grant}, 99, VersionZero)
	require.NoError(t, err)
	assert.Len(t, change.Grants, 1)
}

func TestVisibilityOverrideStore_ValidatesSubjects(t *testing.T) {
	db := setupTestDB(t)
	store := NewVisibilityOverrideStore(db, time.Minute)

	viewerID := createUser(t, db, "viewer-1")
	subjectID := createUser(t, db, "subject-1")

	tests := []struct {
		name    string
		grant   Grant
		wantErr error
	}{
		{
			name:    "unknown subject type",
			grant:   Grant{SubjectType: "TEAM", SubjectID: subjectID, ResourceType: ResourceGoal},
			wantErr: ErrValidation,
		},
		{
			name:    "unknown resource type",
			grant:   Grant{SubjectType: models.SubjectUser, SubjectID: subjectID, ResourceType: "payroll"},
			wantErr: ErrValidation,
		},
		{
			name:    "missing user subject",
			grant:   Grant{SubjectType: models.SubjectUser, SubjectID: 4242, ResourceType: ResourceGoal},
			wantErr: ErrNotFound,
		},
		{
			name:    "missing department subject",
			grant:   Grant{SubjectType: models.SubjectDepartment, SubjectID: 4242, ResourceType: ResourceGoal},
			wantErr: ErrNotFound,
		},
		{
			name:    "missing supervisor subject",
			grant:   Grant{SubjectType: models.SubjectSupervisorTeam, SubjectID: 4242, ResourceType: ResourceGoal},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.ReplaceGrants(testOrgID, viewerID, []Grant{tt.grant}, 99, VersionZero)
			require.ErrorIs(t, err, tt.wantErr)

			grants, err := store.ListGrants(testOrgID, viewerID)
			require.NoError(t, err)
			assert.Empty(t, grants, "failed writes must be all-or-nothing")
		})
	}
}

func TestVisibilityOverrideStore_UnknownViewer(t *testing.T) {
	db := setupTestDB(t)
	store := NewVisibilityOverrideStore(db, time.Minute)

	_, err := store.ReplaceGrants(testOrgID, 4242, nil, 99, VersionZero)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVisibilityOverrideStore_StaleVersionConflicts(t *testing.T) {
	db := setupTestDB(t)
	store := NewVisibilityOverrideStore(db, time.Minute)

	viewerID := createUser(t, db, "viewer-1")
	subjectID := createUser(t, db, "subject-1")

	grant := Grant{SubjectType: models.SubjectUser, SubjectID: subjectID, ResourceType: ResourceGoal}

	_, err := store.ReplaceGrants(testOrgID, viewerID, []Grant{grant}, 99, VersionZero)
	require.NoError(t, err)

	_, err = store.ReplaceGrants(testOrgID, viewerID, nil, 99, VersionZero)
	require.ErrorIs(t, err, ErrConflict)

	grants, err := store.ListGrants(testOrgID, viewerID)
	require.NoError(t, err)
	assert.Len(t, grants, 1, "the losing write must not have touched the set")
}

func TestVisibilityOverrideStore_Patch(t *testing.T) {
	db := setupTestDB(t)
	store := NewVisibilityOverrideStore(db, time.Minute)

	viewerID := createUser(t, db, "viewer-1")
	subjectID := createUser(t, db, "subject-1")
	deptID := createDepartment(t, db, "engineering")

	userGrant := Grant{SubjectType: models.SubjectUser, SubjectID: subjectID, ResourceType: ResourceGoal}
	deptGrant := Grant{SubjectType: models.SubjectDepartment, SubjectID: deptID, ResourceType: ResourceGoal}

	first, err := store.ReplaceGrants(testOrgID, viewerID, []Grant{userGrant}, 99, VersionZero)
	require.NoError(t, err)

	change, err := store.PatchGrants(testOrgID, viewerID, []Grant{deptGrant}, []Grant{userGrant}, 99, first.AfterVersion)
	require.NoError(t, err)

	assert.Equal(t, []Grant{deptGrant}, change.Added)
	assert.Equal(t, []Grant{userGrant}, change.Removed)
	require.Len(t, change.Grants, 1)
	assert.Equal(t, models.SubjectDepartment, change.Grants[0].SubjectType)
}

func TestVisibilityOverrideStore_ListServesCachedSet(t *testing.T) {
	db := setupTestDB(t)
	store := NewVisibilityOverrideStore(db, time.Minute)

	viewerID := createUser(t, db, "viewer-1")
	subjectID := createUser(t, db, "subject-1")

	grant := Grant{SubjectType: models.SubjectUser, SubjectID: subjectID, ResourceType: ResourceGoal}

	_, err := store.ReplaceGrants(testOrgID, viewerID, []Grant{grant}, 99, VersionZero)
	require.NoError(t, err)

	first, err := store.ListGrants(testOrgID, viewerID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Delete behind the cache's back; the stale entry is still served.
	require.NoError(t, db.Where("viewer_user_id = ?", viewerID).
		Delete(&models.ViewerVisibilityGrant{}).Error)

	cached, err := store.ListGrants(testOrgID, viewerID)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	// Invalidation drops the entry, the next read sees the truth.
	store.Invalidate(testOrgID, viewerID)

	fresh, err := store.ListGrants(testOrgID, viewerID)
	require.NoError(t, err)
	assert.Empty(t, fresh)
}

func TestVisibilityOverrideStore_CacheExpires(t *testing.T) {
	db := setupTestDB(t)
	store := NewVisibilityOverrideStore(db, 10*time.Second)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.setClock(func() time.Time { return now })

	viewerID := createUser(t, db, "viewer-1")

	_, err := store.ListGrants(testOrgID, viewerID)
	require.NoError(t, err)

	subjectID := createUser(t, db, "subject-1")
	stamp := now
	require.NoError(t, db.Create(&models.ViewerVisibilityGrant{
		OrganizationID: testOrgID,
		ViewerUserID:   viewerID,
		SubjectType:    models.SubjectUser,
		SubjectID:      subjectID,
		ResourceType:   ResourceGoal,
		CreatedBy:      99,
		UpdatedAt:      &stamp,
	}).Error)

	// Within the TTL the empty set is still served.
	now = now.Add(5 * time.Second)

	grants, err := store.ListGrants(testOrgID, viewerID)
	require.NoError(t, err)
	assert.Empty(t, grants)

	// Past the TTL the new grant appears without explicit invalidation.
	now = now.Add(6 * time.Second)

	grants, err = store.ListGrants(testOrgID, viewerID)
	require.NoError(t, err)
	assert.Len(t, grants, 1)
}
