package identity

import (
	"context"
	"errors"
)

// ErrInvalidToken is returned when a bearer credential cannot be
// verified or decoded.
var ErrInvalidToken = errors.New("invalid bearer token")

// Claims is the decoded content of a bearer credential.
type Claims struct {
	// IdentityKey is the provider subject; it keys the auth context cache
	// and matches users.external_id once the identity is provisioned.
	IdentityKey string
	// Email is the asserted email address.
	Email string
	// OrganizationID is the tenant the credential was issued for.
	// Zero means no organization context is available.
	OrganizationID uint64
	// OrganizationSlug is the tenant's short name.
	OrganizationSlug string
	// Roles are role names asserted by the provider. They are only a
	// fallback for identities with no durable membership rows yet.
	Roles []string
}

// Verifier turns a raw bearer token into Claims.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Claims, error)
}
