// Package daemon boots the service: database, migrations, seeding,
// authorization engine and web surface.
package daemon

import (
	"context"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/evalforge/evalforge/internal/audit"
	"github.com/evalforge/evalforge/internal/authz"
	"github.com/evalforge/evalforge/internal/config"
	"github.com/evalforge/evalforge/internal/db/dsn"
	"github.com/evalforge/evalforge/internal/db/models"
	"github.com/evalforge/evalforge/internal/identity"
	"github.com/evalforge/evalforge/internal/web"
)

// Daemon represents the main application daemon.
type Daemon struct {
	webService *web.Service
}

// Start starts the Daemon's web service.
func (d *Daemon) Start() error {
	return d.webService.Start()
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db, err := gorm.Open(openDialector(cfg), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
		return nil
	}

	if err = db.AutoMigrate(
		&models.Organization{},
		&models.Department{},
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.RoleAssignment{},
		&models.Membership{},
		&models.ViewerVisibilityGrant{},
		&models.AuditRecord{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
		return nil
	}

	seed(cfg, db)

	engine := authz.NewService(db, audit.NewRecorder(db), authz.Options{})

	verifier, err := newVerifier(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure bearer verifier")
		return nil
	}

	return &Daemon{
		webService: web.New(cfg, db, engine, verifier),
	}
}

func openDialector(cfg *config.Config) gorm.Dialector {
	switch cfg.DB.GormEngine {
	case "postgres":
		return gormpostgres.Open(dsn.Create(cfg))
	case "sqlite":
		return sqlite.Open(dsn.Create(cfg))
	default:
		return gormmysql.Open(dsn.Create(cfg))
	}
}

func newVerifier(cfg *config.Config) (identity.Verifier, error) {
	if cfg.Identity.OIDC.Enabled {
		return identity.NewOIDCVerifier(context.Background(), &identity.OIDCConfig{
			Enabled:     true,
			ProviderURL: cfg.Identity.OIDC.ProviderURL,
			ClientID:    cfg.Identity.OIDC.ClientID,
			RolesClaim:  cfg.Identity.OIDC.RolesClaim,
		})
	}

	log.Warn().Msg("OIDC disabled, using the dev token verifier")

	return identity.NewStaticVerifier([]byte(cfg.Identity.DevTokenSecret)), nil
}
