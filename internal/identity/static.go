package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// staticTokenClaims is the JWT payload shape of dev-mode tokens.
type staticTokenClaims struct {
	jwt.RegisteredClaims

	Email            string   `json:"email,omitempty"`
	OrganizationID   uint64   `json:"org_id,omitempty"`
	OrganizationSlug string   `json:"org_slug,omitempty"`
	Roles            []string `json:"roles,omitempty"`
}

// StaticVerifier verifies HMAC-signed tokens minted with a shared
// secret. It exists for dev mode and tests; production deployments use
// the OIDC verifier.
type StaticVerifier struct {
	secret []byte
}

// NewStaticVerifier creates a verifier for the given shared secret.
func NewStaticVerifier(secret []byte) *StaticVerifier {
	return &StaticVerifier{secret: secret}
}

// Verify parses and validates a dev-mode token.
func (v *StaticVerifier) Verify(_ context.Context, rawToken string) (Claims, error) {
	var claims staticTokenClaims

	_, err := jwt.ParseWithClaims(rawToken, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}

		return v.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return Claims{
		IdentityKey:      claims.Subject,
		Email:            claims.Email,
		OrganizationID:   claims.OrganizationID,
		OrganizationSlug: claims.OrganizationSlug,
		Roles:            claims.Roles,
	}, nil
}

// SignStaticToken mints a dev-mode token for the given claims.
func SignStaticToken(secret []byte, c Claims, ttl time.Duration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, staticTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.IdentityKey,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:            c.Email,
		OrganizationID:   c.OrganizationID,
		OrganizationSlug: c.OrganizationSlug,
		Roles:            c.Roles,
	})

	return token.SignedString(secret)
}
