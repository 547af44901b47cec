// Package handler holds shared helpers for the web handlers.
package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/evalforge/evalforge/internal/authz"
)

const (
	// RootPath is the root path of the route group.
	RootPath = "/"

	// APIPath is the base path for the engine's admin API.
	APIPath = "/api"

	// ErrNilAppEngineFatalLogMsg is used if the app or engine pointer is nil.
	ErrNilAppEngineFatalLogMsg = "app or engine is nil"
)

// StatusFromError maps engine errors onto HTTP status codes.
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, authz.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, authz.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, authz.ErrPermissionDenied):
		return fiber.StatusForbidden
	case errors.Is(err, authz.ErrValidation):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, authz.ErrBadRequest):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// Error renders an engine error as a JSON problem response.
func Error(c *fiber.Ctx, err error) error {
	return c.Status(StatusFromError(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}
