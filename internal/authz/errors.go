package authz

import (
	"errors"
)

var (
	// ErrNotFound is returned when a role, permission code, user,
	// department or supervisor target does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write presents a stale version token.
	// The caller must refetch the current version and retry.
	ErrConflict = errors.New("version conflict")

	// ErrPermissionDenied is returned when the caller lacks the
	// administrative capability required for the operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation is returned for malformed payloads, e.g. an unknown
	// visibility subject kind or an empty permission code.
	ErrValidation = errors.New("validation failed")

	// ErrBadRequest is returned when no organization context is available
	// to scope the operation.
	ErrBadRequest = errors.New("no organization context")

	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)
