// Package roleperm provides the admin API for managing the permission
// set of a role inside the caller's organization.
package roleperm

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/evalforge/evalforge/internal/authz"
	"github.com/evalforge/evalforge/internal/db/models"
	"github.com/evalforge/evalforge/internal/web/handler"
	authmw "github.com/evalforge/evalforge/internal/web/middleware/auth"
)

// Path is the base path for role permission management.
const Path = handler.APIPath + "/roles/:id/permissions"

// Service provides read and rewrite operations for role permission sets.
type Service struct {
	engine    *authz.Service
	validator *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, engine *authz.Service) {
	if app == nil || engine == nil {
		log.Fatal().Msg(handler.ErrNilAppEngineFatalLogMsg)
		return
	}

	s.engine = engine
	s.validator = validator.New()

	// Routes
	app.Get(Path, s.Get)
	app.Put(Path, s.Replace)
	app.Patch(Path, s.Patch)
}

// replaceRequest allows an empty code list: replacing with the empty set
// is an intentional lockout, not a validation error.
type replaceRequest struct {
	Codes           []string `json:"codes"`
	ExpectedVersion string   `json:"expected_version" validate:"required"`
}

type patchRequest struct {
	Add             []string `json:"add"`
	Remove          []string `json:"remove"`
	ExpectedVersion string   `json:"expected_version" validate:"required"`
}

type permissionView struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Group       string `json:"group"`
}

// Get returns the permission set of the role and its version token.
func (s *Service) Get(c *fiber.Ctx) error {
	actor, roleID, err := s.caller(c, authz.PermRoleRead, authz.PermRoleManage)
	if err != nil {
		return handler.Error(c, err)
	}

	permissions, version, err := s.engine.ListRolePermissions(actor.OrganizationID, roleID)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(fiber.Map{
		"permissions": permissionViews(permissions),
		"version":     version,
	})
}

// Replace swaps the role's permission set for the submitted codes.
func (s *Service) Replace(c *fiber.Ctx) error {
	actor, roleID, err := s.caller(c, authz.PermRoleManage)
	if err != nil {
		return handler.Error(c, err)
	}

	var req replaceRequest
	if err = c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
	}

	if err = s.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	change, err := s.engine.ReplaceRolePermissions(actor, roleID, req.Codes, req.ExpectedVersion)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(roleChangeView(change))
}

// Patch adds and removes individual codes from the role's permission set.
func (s *Service) Patch(c *fiber.Ctx) error {
	actor, roleID, err := s.caller(c, authz.PermRoleManage)
	if err != nil {
		return handler.Error(c, err)
	}

	var req patchRequest
	if err = c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
	}

	if err = s.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	change, err := s.engine.PatchRolePermissions(actor, roleID, req.Add, req.Remove, req.ExpectedVersion)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(roleChangeView(change))
}

// caller resolves the acting AuthContext, checks it holds one of the
// required permissions and parses the role id from the path.
func (s *Service) caller(c *fiber.Ctx, required ...string) (*authz.AuthContext, uint, error) {
	actor, ok := authmw.FromContext(c)
	if !ok {
		return nil, 0, authz.ErrPermissionDenied
	}

	if err := authz.RequireAny(actor, required...); err != nil {
		return nil, 0, err
	}

	roleID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return nil, 0, authz.ErrBadRequest
	}

	return actor, uint(roleID), nil
}

func permissionViews(permissions []models.Permission) []permissionView {
	views := make([]permissionView, 0, len(permissions))

	for _, permission := range permissions {
		views = append(views, permissionView{
			Code:        permission.Code,
			Description: permission.Description,
			Group:       permission.Group,
		})
	}

	return views
}

func roleChangeView(change authz.RoleChange) fiber.Map {
	return fiber.Map{
		"permissions":    permissionViews(change.Permissions),
		"added":          change.Added,
		"removed":        change.Removed,
		"before_version": change.BeforeVersion,
		"version":        change.AfterVersion,
	}
}
