package authz

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/evalforge/evalforge/internal/audit"
	"github.com/evalforge/evalforge/internal/db/models"
	"github.com/evalforge/evalforge/internal/identity"
)

// Options tunes the service caches. Zero values select the defaults.
type Options struct {
	PermissionCacheTTL time.Duration
	AuthContextTTL     time.Duration
	VisibilityCacheTTL time.Duration
}

// Service is the process-wide authorization engine facade. It owns the
// stores, the caches and the builder (all process-lifetime singletons)
// and enforces the write discipline: every committed change invalidates
// the affected caches and emits an audit record before the call returns.
type Service struct {
	db          *gorm.DB
	assignments *RoleAssignmentStore
	cache       *PermissionCache
	visibility  *VisibilityOverrideStore
	builder     *AuthContextBuilder
	audit       *audit.Recorder
}

// NewService wires the engine over the given database handle.
func NewService(db *gorm.DB, recorder *audit.Recorder, opts Options) *Service {
	assignments := NewRoleAssignmentStore(db)
	cache := NewPermissionCache(assignments, opts.PermissionCacheTTL)
	visibility := NewVisibilityOverrideStore(db, opts.VisibilityCacheTTL)
	builder := NewAuthContextBuilder(db, cache, visibility, opts.AuthContextTTL)

	return &Service{
		db:          db,
		assignments: assignments,
		cache:       cache,
		visibility:  visibility,
		builder:     builder,
		audit:       recorder,
	}
}

// ResolveAuthContext resolves the claims into an AuthContext.
func (s *Service) ResolveAuthContext(claims identity.Claims) (*AuthContext, error) {
	return s.builder.Resolve(claims)
}

// CacheStats exposes the permission cache counters for diagnostics.
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

// ListRolePermissions returns the role's permission set for the
// organization, sorted by code, together with its version token.
func (s *Service) ListRolePermissions(orgID uint64, roleID uint) ([]models.Permission, string, error) {
	if err := s.roleExists(roleID); err != nil {
		return nil, "", err
	}

	perms, err := s.assignments.ListForRole(orgID, roleID)
	if err != nil {
		return nil, "", err
	}

	version, err := s.assignments.GetVersion(orgID, roleID)
	if err != nil {
		return nil, "", err
	}

	return perms, version, nil
}

// ReplaceRolePermissions replaces the role's full assignment set in the
// actor's organization, invalidates the caches and records the change.
func (s *Service) ReplaceRolePermissions(
	actor *AuthContext,
	roleID uint,
	codes []string,
	expectedVersion string,
) (RoleChange, error) {
	change, err := s.assignments.Replace(actor.OrganizationID, roleID, codes, expectedVersion)
	if err != nil {
		return RoleChange{}, err
	}

	s.afterRoleWrite(actor, roleID, audit.ActionRolePermissionsReplace, change)

	return change, nil
}

// PatchRolePermissions applies an add/remove delta to the role's
// assignment set in the actor's organization.
func (s *Service) PatchRolePermissions(
	actor *AuthContext,
	roleID uint,
	add, remove []string,
	expectedVersion string,
) (RoleChange, error) {
	change, err := s.assignments.Patch(actor.OrganizationID, roleID, add, remove, expectedVersion)
	if err != nil {
		return RoleChange{}, err
	}

	s.afterRoleWrite(actor, roleID, audit.ActionRolePermissionsPatch, change)

	return change, nil
}

// afterRoleWrite runs the synchronous post-commit duties of a role
// capability write: cache invalidation first, then the audit record.
func (s *Service) afterRoleWrite(actor *AuthContext, roleID uint, action string, change RoleChange) {
	s.InvalidateRoleCache(actor.OrganizationID, roleID)

	err := s.audit.Record(audit.Entry{
		OrganizationID: actor.OrganizationID,
		ActorID:        actor.UserID,
		Action:         action,
		TargetKind:     audit.TargetRole,
		TargetID:       strconv.FormatUint(uint64(roleID), 10),
		Added:          change.Added,
		Removed:        change.Removed,
		BeforeVersion:  change.BeforeVersion,
		AfterVersion:   change.AfterVersion,
	})
	if err != nil {
		log.Error().Err(err).Uint("role_id", roleID).Msg("failed to record role audit entry")
	}
}

// GetViewerVisibility returns the viewer's grants across all subject
// kinds together with their version token.
func (s *Service) GetViewerVisibility(orgID, viewerID uint64) ([]models.ViewerVisibilityGrant, string, error) {
	grants, err := s.visibility.ListGrants(orgID, viewerID)
	if err != nil {
		return nil, "", err
	}

	version, err := s.visibility.GetVersion(orgID, viewerID)
	if err != nil {
		return nil, "", err
	}

	return grants, version, nil
}

// ReplaceViewerVisibility replaces the viewer's full grant set in the
// actor's organization, invalidates the viewer's caches and records the
// before/after diff.
func (s *Service) ReplaceViewerVisibility(
	actor *AuthContext,
	viewerID uint64,
	grants []Grant,
	expectedVersion string,
) (VisibilityChange, error) {
	change, err := s.visibility.ReplaceGrants(actor.OrganizationID, viewerID, grants, actor.UserID, expectedVersion)
	if err != nil {
		return VisibilityChange{}, err
	}

	s.afterVisibilityWrite(actor, viewerID, audit.ActionViewerVisibilityReplace, change)

	return change, nil
}

// PatchViewerVisibility applies an add/remove delta to the viewer's
// grant set in the actor's organization.
func (s *Service) PatchViewerVisibility(
	actor *AuthContext,
	viewerID uint64,
	add, remove []Grant,
	expectedVersion string,
) (VisibilityChange, error) {
	change, err := s.visibility.PatchGrants(actor.OrganizationID, viewerID, add, remove, actor.UserID, expectedVersion)
	if err != nil {
		return VisibilityChange{}, err
	}

	s.afterVisibilityWrite(actor, viewerID, audit.ActionViewerVisibilityPatch, change)

	return change, nil
}

func (s *Service) afterVisibilityWrite(actor *AuthContext, viewerID uint64, action string, change VisibilityChange) {
	s.InvalidateViewerCache(actor.OrganizationID, viewerID)

	err := s.audit.Record(audit.Entry{
		OrganizationID: actor.OrganizationID,
		ActorID:        actor.UserID,
		Action:         action,
		TargetKind:     audit.TargetViewer,
		TargetID:       strconv.FormatUint(viewerID, 10),
		Added:          change.Added,
		Removed:        change.Removed,
		BeforeVersion:  change.BeforeVersion,
		AfterVersion:   change.AfterVersion,
	})
	if err != nil {
		log.Error().Err(err).Uint64("viewer_id", viewerID).Msg("failed to record visibility audit entry")
	}
}

// InvalidateRoleCache drops the cached permission set for the role and
// every cached context holding it. Writers must call it synchronously
// after a committed change, before returning to their own caller.
func (s *Service) InvalidateRoleCache(orgID uint64, roleID uint) {
	s.cache.Invalidate(orgID, roleID)

	var role models.Role
	if err := s.db.First(&role, roleID).Error; err == nil {
		s.builder.InvalidateRole(orgID, role.Name)
	}
}

// InvalidateViewerCache drops the viewer's cached grants and any cached
// context carrying them.
func (s *Service) InvalidateViewerCache(orgID, viewerID uint64) {
	s.visibility.Invalidate(orgID, viewerID)
	s.builder.InvalidateViewer(orgID, viewerID)
}

func (s *Service) roleExists(roleID uint) error {
	var role models.Role

	if err := s.db.First(&role, roleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: role %d", ErrNotFound, roleID)
		}

		return err
	}

	return nil
}
