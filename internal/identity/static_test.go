package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticVerifier_RoundTrip(t *testing.T) {
	secret := []byte("local-dev-only")

	claims := Claims{
		IdentityKey:      "ext-1",
		Email:            "jo@acme.test",
		OrganizationID:   1,
		OrganizationSlug: "acme",
		Roles:            []string{"supervisor"},
	}

	token, err := SignStaticToken(secret, claims, time.Minute)
	require.NoError(t, err)

	verified, err := NewStaticVerifier(secret).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, claims, verified)
}

func TestStaticVerifier_WrongSecret(t *testing.T) {
	token, err := SignStaticToken([]byte("right"), Claims{IdentityKey: "ext-1"}, time.Minute)
	require.NoError(t, err)

	_, err = NewStaticVerifier([]byte("wrong")).Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestStaticVerifier_ExpiredToken(t *testing.T) {
	secret := []byte("local-dev-only")

	token, err := SignStaticToken(secret, Claims{IdentityKey: "ext-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = NewStaticVerifier(secret).Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestStaticVerifier_Garbage(t *testing.T) {
	_, err := NewStaticVerifier([]byte("secret")).Verify(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}
