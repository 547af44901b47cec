package authz

import (
	"database/sql"
	"fmt"
	"time"
)

// VersionZero is the sentinel version token for a resource set with no
// stamped rows. Clients that have never seen an admin write present it
// on their first edit.
const VersionZero = "0"

// VersionToken derives the opaque token for a resource set from the
// latest stamped mutation time. A nil or invalid time yields VersionZero.
func VersionToken(latest sql.NullTime) string {
	if !latest.Valid {
		return VersionZero
	}

	return latest.Time.UTC().Format(time.RFC3339Nano)
}

// ConcurrencyGuard rejects writes that present a stale version token.
// Tokens are derived (max updated_at) rather than stored counters, so the
// persistence layer's timestamp precision must separate truly concurrent
// writes; RFC3339Nano keeps sub-second precision intact on the way out.
type ConcurrencyGuard struct{}

// EnsureFresh compares the caller-supplied token against the current
// derived token and returns ErrConflict on mismatch, forcing the client
// to refetch and retry.
func (ConcurrencyGuard) EnsureFresh(expected, current string) error {
	if expected != current {
		return fmt.Errorf("%w: expected version %q, current version %q", ErrConflict, expected, current)
	}

	return nil
}
