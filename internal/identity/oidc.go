package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCConfig holds OpenID Connect configuration for bearer verification.
type OIDCConfig struct {
	// Enabled indicates if OIDC verification is enabled.
	Enabled bool
	// ProviderURL is the OIDC provider's discovery URL.
	ProviderURL string
	// ClientID is the audience expected in ID tokens.
	ClientID string
	// RolesClaim is the token claim carrying role names (default "roles").
	RolesClaim string
}

// OIDCVerifier verifies provider-issued ID tokens presented as bearer
// credentials and maps their claims onto Claims.
type OIDCVerifier struct {
	config   *OIDCConfig
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider and prepares a token verifier.
func NewOIDCVerifier(ctx context.Context, config *OIDCConfig) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, config.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return &OIDCVerifier{
		config:   config,
		verifier: provider.Verifier(&oidc.Config{ClientID: config.ClientID}),
	}, nil
}

// Verify validates the raw token against the provider keys and decodes
// the organization and role claims.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var raw struct {
		Email            string   `json:"email"`
		OrganizationID   uint64   `json:"org_id"`
		OrganizationSlug string   `json:"org_slug"`
		Roles            []string `json:"roles"`
		Groups           []string `json:"groups"`
	}

	if err := idToken.Claims(&raw); err != nil {
		return Claims{}, fmt.Errorf("%w: failed to decode claims: %v", ErrInvalidToken, err)
	}

	roles := raw.Roles
	if v.config.RolesClaim == "groups" {
		roles = raw.Groups
	}

	return Claims{
		IdentityKey:      idToken.Subject,
		Email:            raw.Email,
		OrganizationID:   raw.OrganizationID,
		OrganizationSlug: raw.OrganizationSlug,
		Roles:            roles,
	}, nil
}
