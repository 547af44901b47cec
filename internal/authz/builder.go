package authz

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/evalforge/evalforge/internal/db/models"
	"github.com/evalforge/evalforge/internal/identity"
)

// DefaultAuthContextTTL bounds how long a resolved AuthContext is reused
// across requests before it is rebuilt. It is deliberately distinct from
// the permission cache TTL.
const DefaultAuthContextTTL = 10 * time.Second

// resolveState tracks a resolution through its phases; a cache hit
// short-circuits directly to the terminal state.
type resolveState int

const (
	stateUnvalidated resolveState = iota
	stateIdentityValidated
	stateRolesResolved
	statePermissionsResolved
	stateContextReady
)

func (s resolveState) String() string {
	switch s {
	case stateIdentityValidated:
		return "identity_validated"
	case stateRolesResolved:
		return "roles_resolved"
	case statePermissionsResolved:
		return "permissions_resolved"
	case stateContextReady:
		return "context_ready"
	default:
		return "unvalidated"
	}
}

type builderCacheKey struct {
	orgID       uint64
	identityKey string
}

type builderCacheEntry struct {
	ctx      *AuthContext
	userID   uint64
	cachedAt time.Time
}

// AuthContextBuilder turns identity claims into an immutable AuthContext,
// resolving roles through the permission cache and attaching visibility
// overrides for viewer identities. It keeps its own short cross-request
// cache keyed by (identity, organization).
//
// Resolution policy: a role with an empty assignment set is an
// intentional lockout and resolves to no permissions. A missing durable
// user record (the signup race) falls back to the role names asserted by
// the token; the resulting context carries no UserID and must only be
// used for role and permission checks, never ownership checks.
type AuthContextBuilder struct {
	db         *gorm.DB
	perms      *PermissionCache
	visibility *VisibilityOverrideStore

	mu    sync.Mutex
	cache map[builderCacheKey]builderCacheEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewAuthContextBuilder creates a builder over the given caches. A zero
// ttl falls back to DefaultAuthContextTTL.
func NewAuthContextBuilder(
	db *gorm.DB,
	perms *PermissionCache,
	visibility *VisibilityOverrideStore,
	ttl time.Duration,
) *AuthContextBuilder {
	if ttl <= 0 {
		ttl = DefaultAuthContextTTL
	}

	return &AuthContextBuilder{
		db:         db,
		perms:      perms,
		visibility: visibility,
		cache:      make(map[builderCacheKey]builderCacheEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

// Resolve returns the AuthContext for the given claims, serving a fresh
// cached context when one exists. Transient load failures degrade to a
// smaller permission set; they are never interpreted as broader access
// and never fail the resolution.
func (b *AuthContextBuilder) Resolve(claims identity.Claims) (*AuthContext, error) {
	state := stateUnvalidated

	if claims.OrganizationID == 0 {
		return nil, fmt.Errorf("%w: claims carry no organization", ErrBadRequest)
	}

	if claims.IdentityKey == "" {
		return nil, fmt.Errorf("%w: claims carry no identity key", ErrBadRequest)
	}

	state = stateIdentityValidated

	key := builderCacheKey{orgID: claims.OrganizationID, identityKey: claims.IdentityKey}

	b.mu.Lock()

	if entry, ok := b.cache[key]; ok && b.now().Sub(entry.cachedAt) < b.ttl {
		b.mu.Unlock()
		contextBuilds.WithLabelValues(buildOutcomeHit).Inc()

		return entry.ctx, nil
	}
	b.mu.Unlock()

	degraded := false

	user := b.lookupUser(claims, &degraded)

	roleNames, roleIDs := b.resolveRoles(claims, user, &degraded)
	state = stateRolesResolved

	codes := b.resolvePermissions(claims, roleIDs, &degraded)
	state = statePermissionsResolved

	var userID uint64
	if user != nil {
		userID = user.ID
	}

	var grants []models.ViewerVisibilityGrant

	if containsRole(roleNames, models.RoleViewer) && user != nil {
		var err error

		grants, err = b.visibility.ListGrants(claims.OrganizationID, userID)
		if err != nil {
			degraded = true

			log.Error().Err(err).Uint64("viewer_id", userID).
				Msg("failed to load visibility overrides, continuing without")
		}
	}

	ctx := NewAuthContext(
		claims.IdentityKey,
		userID,
		claims.OrganizationID,
		claims.OrganizationSlug,
		roleNames,
		codes,
		grants,
	)

	b.mu.Lock()
	b.cache[key] = builderCacheEntry{ctx: ctx, userID: userID, cachedAt: b.now()}
	b.mu.Unlock()

	state = stateContextReady

	outcome := buildOutcomeBuilt
	if degraded {
		outcome = buildOutcomeDegraded
	}

	contextBuilds.WithLabelValues(outcome).Inc()
	log.Debug().Str("identity", claims.IdentityKey).Uint64("org_id", claims.OrganizationID).
		Stringer("state", state).Bool("degraded", degraded).Msg("auth context resolved")

	return ctx, nil
}

// lookupUser finds the durable user record for the claims, or nil when
// the identity has not been provisioned yet.
func (b *AuthContextBuilder) lookupUser(claims identity.Claims, degraded *bool) *models.User {
	var user models.User

	err := b.db.Where("organization_id = ? AND external_id = ?", claims.OrganizationID, claims.IdentityKey).
		First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			*degraded = true

			log.Error().Err(err).Str("identity", claims.IdentityKey).
				Msg("failed to look up user, resolving from claims only")
		}

		return nil
	}

	return &user
}

// resolveRoles prefers durable memberships and falls back to role names
// asserted by the token claims. Unrecognized names stay in the role list
// but contribute no role ID, so they resolve to the empty set.
func (b *AuthContextBuilder) resolveRoles(
	claims identity.Claims,
	user *models.User,
	degraded *bool,
) (names []string, ids map[string]uint) {
	ids = make(map[string]uint)

	if user != nil {
		var memberships []models.Membership

		err := b.db.Preload("Role").
			Where("organization_id = ? AND user_id = ?", claims.OrganizationID, user.ID).
			Find(&memberships).Error
		if err != nil {
			*degraded = true

			log.Error().Err(err).Uint64("user_id", user.ID).Msg("failed to load memberships")
		}

		for _, m := range memberships {
			names = append(names, m.Role.Name)
			ids[m.Role.Name] = m.RoleID
		}
	}

	if len(names) > 0 {
		return names, ids
	}

	// Signup race: no durable roles yet, trust the claim names for
	// role/permission checks only.
	if len(claims.Roles) == 0 {
		return nil, ids
	}

	var roles []models.Role

	err := b.db.Where("name IN ?", claims.Roles).Find(&roles).Error
	if err != nil {
		*degraded = true

		log.Error().Err(err).Strs("roles", claims.Roles).Msg("failed to resolve claim roles")
	}

	known := make(map[string]uint, len(roles))
	for _, role := range roles {
		known[role.Name] = role.ID
	}

	for _, name := range claims.Roles {
		names = append(names, name)

		if id, ok := known[name]; ok {
			ids[name] = id
		}
	}

	return names, ids
}

// resolvePermissions unions the permission sets of all resolved roles
// through the permission cache.
func (b *AuthContextBuilder) resolvePermissions(
	claims identity.Claims,
	roleIDs map[string]uint,
	degraded *bool,
) []string {
	set := make(map[string]struct{})

	for name, roleID := range roleIDs {
		perms, err := b.perms.Get(claims.OrganizationID, roleID)
		if err != nil {
			*degraded = true

			log.Error().Err(err).Str("role", name).Uint64("org_id", claims.OrganizationID).
				Msg("failed to load role permissions, treating as empty")

			continue
		}

		for _, perm := range perms {
			set[perm.Code] = struct{}{}
		}
	}

	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}

	return codes
}

// InvalidateViewer drops any cached context belonging to the viewer so
// the next request rebuilds it with fresh visibility overrides. Writers
// call it synchronously after a committed change.
func (b *AuthContextBuilder) InvalidateViewer(orgID, viewerUserID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, entry := range b.cache {
		if key.orgID == orgID && entry.userID == viewerUserID {
			delete(b.cache, key)
		}
	}
}

// InvalidateRole drops every cached context in the organization that
// holds the role, so capability edits take effect on the next request.
func (b *AuthContextBuilder) InvalidateRole(orgID uint64, roleName string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, entry := range b.cache {
		if key.orgID == orgID && entry.ctx.HasRole(roleName) {
			delete(b.cache, key)
		}
	}
}

// setClock replaces the builder clock; tests only.
func (b *AuthContextBuilder) setClock(now func() time.Time) {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
}

func containsRole(names []string, want string) bool {
	for _, name := range names {
		if name == want {
			return true
		}
	}

	return false
}
