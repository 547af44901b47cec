package roleperm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/evalforge/evalforge/internal/audit"
	"github.com/evalforge/evalforge/internal/authz"
	"github.com/evalforge/evalforge/internal/db/models"
	"github.com/evalforge/evalforge/internal/identity"
	"github.com/evalforge/evalforge/internal/web/handler"
	authmw "github.com/evalforge/evalforge/internal/web/middleware/auth"
)

const (
	testOrgID  = uint64(1)
	testSecret = "test-secret"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
}

// setupTestEnv builds an in-memory database and a fiber app with the
// bearer middleware and this handler's routes registered.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(
		&models.Organization{},
		&models.Department{},
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.RoleAssignment{},
		&models.Membership{},
		&models.ViewerVisibilityGrant{},
		&models.AuditRecord{},
	)
	require.NoError(t, err, "failed to migrate test database")

	require.NoError(t, db.Create(&models.Organization{ID: testOrgID, Slug: "acme", Name: "Acme Inc."}).Error)

	_, err = authz.EnsurePermissions(db, authz.DefaultCatalog())
	require.NoError(t, err)

	engine := authz.NewService(db, audit.NewRecorder(db), authz.Options{})
	verifier := identity.NewStaticVerifier([]byte(testSecret))

	app := fiber.New()
	app.Use(handler.APIPath, authmw.New(verifier, engine))

	var svc Service
	svc.Init(app, engine)

	return &testEnv{app: app, db: db}
}

// seedAdmin creates an admin user whose role carries the given codes and
// returns a bearer token for them.
func (e *testEnv) seedAdmin(t *testing.T, codes ...string) string {
	t.Helper()

	role := models.Role{Name: models.RoleAdmin, IsSystem: true}
	require.NoError(t, e.db.Where("name = ?", role.Name).FirstOrCreate(&role).Error)

	user := models.User{OrganizationID: testOrgID, ExternalID: "admin-1", Email: "admin@acme.test", Active: true}
	require.NoError(t, e.db.FirstOrCreate(&user, models.User{ExternalID: "admin-1"}).Error)

	require.NoError(t, e.db.FirstOrCreate(&models.Membership{
		OrganizationID: testOrgID,
		UserID:         user.ID,
		RoleID:         role.ID,
	}, models.Membership{UserID: user.ID, RoleID: role.ID}).Error)

	if len(codes) > 0 {
		store := authz.NewRoleAssignmentStore(e.db)
		version, err := store.GetVersion(testOrgID, role.ID)
		require.NoError(t, err)

		_, err = store.Replace(testOrgID, role.ID, codes, version)
		require.NoError(t, err)
	}

	return e.token(t, "admin-1", models.RoleAdmin)
}

func (e *testEnv) token(t *testing.T, identityKey string, roles ...string) string {
	t.Helper()

	token, err := identity.SignStaticToken([]byte(testSecret), identity.Claims{
		IdentityKey:      identityKey,
		OrganizationID:   testOrgID,
		OrganizationSlug: "acme",
		Roles:            roles,
	}, time.Minute)
	require.NoError(t, err)

	return token
}

func (e *testEnv) createRole(t *testing.T, name string) uint {
	t.Helper()

	role := models.Role{Name: name, IsSystem: true}
	require.NoError(t, e.db.Create(&role).Error)

	return role.ID
}

func (e *testEnv) request(t *testing.T, method, target, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))

	return body
}

func TestRolePermissions_RequiresBearerToken(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.request(t, fiber.MethodGet, "/api/roles/1/permissions", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = env.request(t, fiber.MethodGet, "/api/roles/1/permissions", "garbage", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRolePermissions_RequiresCapability(t *testing.T) {
	env := setupTestEnv(t)
	roleID := env.createRole(t, models.RoleSupervisor)

	// Admin role exists but carries no capabilities: an empty assignment
	// set is a lockout, not a default.
	token := env.seedAdmin(t)

	resp := env.request(t, fiber.MethodGet, roleTarget(roleID), token, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRolePermissions_GetEmptySet(t *testing.T) {
	env := setupTestEnv(t)
	roleID := env.createRole(t, models.RoleSupervisor)
	token := env.seedAdmin(t, authz.PermRoleRead)

	resp := env.request(t, fiber.MethodGet, roleTarget(roleID), token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Empty(t, body["permissions"])
	assert.Equal(t, authz.VersionZero, body["version"])
}

func TestRolePermissions_ReplaceCycle(t *testing.T) {
	env := setupTestEnv(t)
	roleID := env.createRole(t, models.RoleSupervisor)
	token := env.seedAdmin(t, authz.PermRoleRead, authz.PermRoleManage)

	resp := env.request(t, fiber.MethodPut, roleTarget(roleID), token, fiber.Map{
		"codes":            []string{authz.PermGoalApprove, authz.PermGoalRead},
		"expected_version": authz.VersionZero,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	version, ok := body["version"].(string)
	require.True(t, ok)
	assert.NotEqual(t, authz.VersionZero, version)
	assert.Len(t, body["permissions"], 2)

	// Replaying the first write with the stale token conflicts.
	resp = env.request(t, fiber.MethodPut, roleTarget(roleID), token, fiber.Map{
		"codes":            []string{authz.PermGoalRead},
		"expected_version": authz.VersionZero,
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// Patch from the fresh token.
	resp = env.request(t, fiber.MethodPatch, roleTarget(roleID), token, fiber.Map{
		"remove":           []string{authz.PermGoalApprove},
		"expected_version": version,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body = decodeBody(t, resp)
	assert.Len(t, body["permissions"], 1)
	assert.Equal(t, []any{authz.PermGoalApprove}, body["removed"])
}

func TestRolePermissions_UnknownRole(t *testing.T) {
	env := setupTestEnv(t)
	token := env.seedAdmin(t, authz.PermRoleRead, authz.PermRoleManage)

	resp := env.request(t, fiber.MethodGet, "/api/roles/4242/permissions", token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRolePermissions_MalformedRoleID(t *testing.T) {
	env := setupTestEnv(t)
	token := env.seedAdmin(t, authz.PermRoleRead)

	resp := env.request(t, fiber.MethodGet, "/api/roles/abc/permissions", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRolePermissions_UnknownCode(t *testing.T) {
	env := setupTestEnv(t)
	roleID := env.createRole(t, models.RoleSupervisor)
	token := env.seedAdmin(t, authz.PermRoleManage)

	resp := env.request(t, fiber.MethodPut, roleTarget(roleID), token, fiber.Map{
		"codes":            []string{"goal:fly"},
		"expected_version": authz.VersionZero,
	})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRolePermissions_MissingExpectedVersion(t *testing.T) {
	env := setupTestEnv(t)
	roleID := env.createRole(t, models.RoleSupervisor)
	token := env.seedAdmin(t, authz.PermRoleManage)

	resp := env.request(t, fiber.MethodPut, roleTarget(roleID), token, fiber.Map{
		"codes": []string{authz.PermGoalRead},
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func roleTarget(roleID uint) string {
	return fmt.Sprintf("/api/roles/%d/permissions", roleID)
}
