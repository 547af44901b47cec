package authz

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionToken(t *testing.T) {
	assert.Equal(t, VersionZero, VersionToken(sql.NullTime{}), "unstamped sets derive the sentinel")

	stamp := time.Date(2026, 3, 1, 12, 30, 45, 123456789, time.UTC)
	token := VersionToken(sql.NullTime{Time: stamp, Valid: true})
	assert.Equal(t, "2026-03-01T12:30:45.123456789Z", token)

	// Tokens normalize to UTC regardless of the input location.
	loc := time.FixedZone("CET", 3600)
	shifted := VersionToken(sql.NullTime{Time: stamp.In(loc), Valid: true})
	assert.Equal(t, token, shifted)
}

func TestConcurrencyGuard_EnsureFresh(t *testing.T) {
	var guard ConcurrencyGuard

	require.NoError(t, guard.EnsureFresh(VersionZero, VersionZero))
	require.NoError(t, guard.EnsureFresh("2026-03-01T12:00:00Z", "2026-03-01T12:00:00Z"))

	err := guard.EnsureFresh(VersionZero, "2026-03-01T12:00:00Z")
	require.ErrorIs(t, err, ErrConflict)

	err = guard.EnsureFresh("2026-03-01T12:00:00Z", VersionZero)
	require.ErrorIs(t, err, ErrConflict)
}
