package daemon

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/evalforge/evalforge/internal/authz"
	"github.com/evalforge/evalforge/internal/config"
	"github.com/evalforge/evalforge/internal/db/models"
)

// seed makes sure the built-in roles and the permission catalog exist.
// Both operations are idempotent and run on every cold start. Role
// capability sets are never seeded: a role with no assignments resolves
// to the empty set until an administrator grants permissions.
func seed(_ *config.Config, db *gorm.DB) {
	roles := []models.Role{
		{Name: models.RoleAdmin, Description: "Administers roles, visibility and settings", IsSystem: true},
		{Name: models.RoleSupervisor, Description: "Manages goals and evaluations for direct reports", IsSystem: true},
		{Name: models.RoleEmployee, Description: "Owns goals and self-assessments", IsSystem: true},
		{Name: models.RoleViewer, Description: "Read access restricted by visibility grants", IsSystem: true},
	}

	for _, role := range roles {
		err := db.Where("name = ?", role.Name).FirstOrCreate(&role).Error
		if err != nil {
			log.Error().Err(err).Str("role", role.Name).Msg("failed to seed role")
		}
	}

	created, err := authz.EnsurePermissions(db, authz.DefaultCatalog())
	if err != nil {
		log.Error().Err(err).Msg("failed to seed permission catalog")
		return
	}

	if len(created) > 0 {
		log.Info().Int("count", len(created)).Msg("seeded new permission catalog entries")
	}
}
