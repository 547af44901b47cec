// Package visibility provides the admin API for managing a viewer's
// visibility grants inside the caller's organization.
package visibility

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

// Path is the base path for viewer visibility management.
const Path = handler.APIPath + "/visibility/:viewerID"

// Service provides read and rewrite operations for visibility grants.
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

type grantPayload struct {
	SubjectType  string `json:"subject_type" validate:"required"`
	SubjectID    uint64 `json:"subject_id" validate:"required"`
	ResourceType string `json:"resource_type" validate:"required"`
}

// replaceRequest allows an empty grant list: replacing with the empty
// set revokes all overrides and is not a validation error.
type replaceRequest struct {
	Grants          []grantPayload `json:"grants" validate:"dive"`
	ExpectedVersion string         `json:"expected_version" validate:"required"`
}

type patchRequest struct {
	Add             []grantPayload `json:"add" validate:"dive"`
	Remove          []grantPayload `json:"remove" validate:"dive"`
	ExpectedVersion string         `json:"expected_version" validate:"required"`
}

// Get returns the viewer's grants and their version token.
func (s *Service) Get(c *fiber.Ctx) error {
	actor, viewerID, err := s.caller(c, authz.PermVisibilityRead, authz.PermVisibilityManage)
	if err != nil {
		return handler.Error(c, err)
	}

	grants, version, err := s.engine.GetViewerVisibility(actor.OrganizationID, viewerID)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(fiber.Map{
		"grants":  grants,
		"version": version,
	})
}

// Replace swaps the viewer's grant set for the submitted grants.
func (s *Service) Replace(c *fiber.Ctx) error {
	actor, viewerID, err := s.caller(c, authz.PermVisibilityManage)
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

	change, err := s.engine.ReplaceViewerVisibility(actor, viewerID, grantsFromPayload(req.Grants), req.ExpectedVersion)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(visibilityChangeView(change))
}

// Patch adds and removes individual grants from the viewer's set.
func (s *Service) Patch(c *fiber.Ctx) error {
	actor, viewerID, err := s.caller(c, authz.PermVisibilityManage)
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

	change, err := s.engine.PatchViewerVisibility(
		actor,
		viewerID,
		grantsFromPayload(req.Add),
		grantsFromPayload(req.Remove),
		req.ExpectedVersion,
	)
	if err != nil {
		return handler.Error(c, err)
	}

	return c.JSON(visibilityChangeView(change))
}

// caller resolves the acting AuthContext, checks it holds one of the
// required permissions and parses the viewer id from the path.
func (s *Service) caller(c *fiber.Ctx, required ...string) (*authz.AuthContext, uint64, error) {
	actor, ok := authmw.FromContext(c)
	if !ok {
		return nil, 0, authz.ErrPermissionDenied
	}

	if err := authz.RequireAny(actor, required...); err != nil {
		return nil, 0, err
	}

	viewerID, err := strconv.ParseUint(c.Params("viewerID"), 10, 64)
	if err != nil {
		return nil, 0, authz.ErrBadRequest
	}

	return actor, viewerID, nil
}

func grantsFromPayload(payloads []grantPayload) []authz.Grant {
	grants := make([]authz.Grant, 0, len(payloads))

	for _, payload := range payloads {
		grants = append(grants, authz.Grant{
			SubjectType:  models.SubjectType(payload.SubjectType),
			SubjectID:    payload.SubjectID,
			ResourceType: payload.ResourceType,
		})
	}

	return grants
}

func visibilityChangeView(change authz.VisibilityChange) fiber.Map {
	return fiber.Map{
		"grants":         change.Grants,
		"added":          change.Added,
		"removed":        change.Removed,
		"before_version": change.BeforeVersion,
		"version":        change.AfterVersion,
	}
}
