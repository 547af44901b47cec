// Package auth provides the bearer authentication middleware. It
// resolves the caller's AuthContext exactly once per request and stores
// it in the request locals so every handler in the chain reuses it.
package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/evalforge/evalforge/internal/authz"
	"github.com/evalforge/evalforge/internal/identity"
	"github.com/evalforge/evalforge/internal/web/handler"
)

// localsKey stores the resolved AuthContext in fiber locals.
const localsKey = "authContext"

// New creates the middleware: bearer token → claims → AuthContext.
func New(verifier identity.Verifier, engine *authz.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rawToken := bearerToken(c.Get(fiber.HeaderAuthorization))
		if rawToken == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
		}

		claims, err := verifier.Verify(c.UserContext(), rawToken)
		if err != nil {
			log.Warn().Err(err).Msg("bearer verification failed")

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid bearer token"})
		}

		authCtx, err := engine.ResolveAuthContext(claims)
		if err != nil {
			return handler.Error(c, err)
		}

		c.Locals(localsKey, authCtx)

		return c.Next()
	}
}

// FromContext returns the AuthContext resolved by the middleware.
func FromContext(c *fiber.Ctx) (*authz.AuthContext, bool) {
	authCtx, ok := c.Locals(localsKey).(*authz.AuthContext)

	return authCtx, ok
}

func bearerToken(header string) string {
	const prefix = "Bearer "

	if !strings.HasPrefix(header, prefix) {
		return ""
	}

	return strings.TrimSpace(header[len(prefix):])
}
