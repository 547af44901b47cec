package config

import (
	"github.com/evalforge/evalforge/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Identity  Identity
}

// Webserver implement webserver settings.
type Webserver struct {
	DisableRecover bool   // disable recover middleware
	Domain         string // domain name for the webserver
	Port           int    // listening port for the webserver
	ShutDownTime   int    // wait time for shutdown
	URL            string // base url for the webserver
}

// OIDC holds the identity provider verification settings.
type OIDC struct {
	Enabled     bool   // verify bearer tokens against the provider
	ProviderURL string // discovery URL of the provider
	ClientID    string // expected token audience
	RolesClaim  string // claim carrying role names ("roles" or "groups")
}

// Identity groups bearer verification settings.
type Identity struct {
	OIDC OIDC

	// DevTokenSecret enables the HMAC dev verifier when OIDC is disabled.
	// Dev mode only; never set in production.
	DevTokenSecret string
}
