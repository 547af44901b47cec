package authz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/evalforge/evalforge/internal/db/models"
)

// AuthContext is the resolved, request-lifetime view of what an
// authenticated caller can do in one organization. It is immutable once
// built; a new one is built on cache expiry or invalidation.
type AuthContext struct {
	// IdentityKey is the provider subject the context was resolved for.
	IdentityKey string
	// UserID is the durable user record ID, or zero when the identity has
	// not been provisioned yet (the signup race). A context without a
	// durable user must never be used for ownership-based checks; it is
	// valid only for role and permission checks.
	UserID uint64
	// OrganizationID scopes every check made through this context.
	OrganizationID uint64
	// OrganizationSlug is the tenant's short name.
	OrganizationSlug string
	// Roles are the resolved role names.
	Roles []string

	permissions map[string]struct{}

	// Visibility holds the viewer's visibility grants. It is populated
	// only when the resolved roles include the viewer role.
	Visibility []models.ViewerVisibilityGrant
}

// NewAuthContext builds an immutable context from resolved parts.
func NewAuthContext(
	identityKey string,
	userID, orgID uint64,
	orgSlug string,
	roles []string,
	codes []string,
	visibility []models.ViewerVisibilityGrant,
) *AuthContext {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}

	return &AuthContext{
		IdentityKey:      identityKey,
		UserID:           userID,
		OrganizationID:   orgID,
		OrganizationSlug: orgSlug,
		Roles:            roles,
		permissions:      set,
		Visibility:       visibility,
	}
}

// HasDurableIdentity reports whether a user record backs this context.
func (a *AuthContext) HasDurableIdentity() bool {
	return a.UserID != 0
}

// HasPermission reports whether the computed permission set contains code.
func (a *AuthContext) HasPermission(code string) bool {
	_, ok := a.permissions[code]

	return ok
}

// HasRole reports whether the resolved roles include name.
func (a *AuthContext) HasRole(name string) bool {
	for _, role := range a.Roles {
		if role == name {
			return true
		}
	}

	return false
}

// IsViewer reports whether the resolved roles include the viewer role.
func (a *AuthContext) IsViewer() bool {
	return a.HasRole(models.RoleViewer)
}

// PermissionCodes returns the computed permission set sorted by code.
func (a *AuthContext) PermissionCodes() []string {
	codes := make([]string, 0, len(a.permissions))
	for code := range a.permissions {
		codes = append(codes, code)
	}

	sort.Strings(codes)

	return codes
}

// CanSeeSubject reports whether the viewer's visibility overrides allow
// access to the given subject for the given resource type. Callers with
// broader roles should not consult this; overrides only widen what a
// viewer can see.
func (a *AuthContext) CanSeeSubject(subjectType models.SubjectType, subjectID uint64, resourceType string) bool {
	for _, grant := range a.Visibility {
		if grant.SubjectType == subjectType && grant.SubjectID == subjectID && grant.ResourceType == resourceType {
			return true
		}
	}

	return false
}

// RequireAny returns nil if the context holds at least one of the given
// permissions, ErrPermissionDenied otherwise. It is called at the top of
// each handler instead of wrapping call sites, keeping control flow
// linear and independently testable.
func RequireAny(ctx *AuthContext, codes ...string) error {
	for _, code := range codes {
		if ctx.HasPermission(code) {
			return nil
		}
	}

	return fmt.Errorf("%w: requires any of [%s]", ErrPermissionDenied, strings.Join(codes, ", "))
}

// RequireAll returns nil if the context holds every given permission.
func RequireAll(ctx *AuthContext, codes ...string) error {
	for _, code := range codes {
		if !ctx.HasPermission(code) {
			return fmt.Errorf("%w: requires %s", ErrPermissionDenied, code)
		}
	}

	return nil
}
