package authz

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/evalforge/evalforge/internal/db/models"
)

// Resource types a visibility grant can cover.
const (
	ResourceGoal       = "goal"
	ResourceEvaluation = "evaluation"
	ResourceAssessment = "assessment"
	ResourceFeedback   = "feedback"
)

// DefaultVisibilityCacheTTL bounds staleness of cached viewer grant sets
// between explicit invalidations.
const DefaultVisibilityCacheTTL = 10 * time.Second

// knownResourceTypes gates grant validation.
var knownResourceTypes = map[string]struct{}{ //nolint:gochecknoglobals
	ResourceGoal:       {},
	ResourceEvaluation: {},
	ResourceAssessment: {},
	ResourceFeedback:   {},
}

// Grant is the caller-facing shape of one visibility override entry.
type Grant struct {
	SubjectType  models.SubjectType `json:"subject_type"`
	SubjectID    uint64             `json:"subject_id"`
	ResourceType string             `json:"resource_type"`
}

// VisibilityChange describes a committed write: the resulting grant set,
// the added/removed diff, and the version tokens around the write.
type VisibilityChange struct {
	Grants        []models.ViewerVisibilityGrant
	Added         []Grant
	Removed       []Grant
	BeforeVersion string
	AfterVersion  string
}

type visibilityCacheKey struct {
	orgID    uint64
	viewerID uint64
}

type visibilityCacheEntry struct {
	grants   []models.ViewerVisibilityGrant
	cachedAt time.Time
}

// VisibilityOverrideStore persists viewer visibility grants keyed by the
// polymorphic subject tag, fronted by its own short TTL read cache. The
// cache map is mutated only under the store's lock; other components
// request invalidation through Invalidate, never directly.
type VisibilityOverrideStore struct {
	db    *gorm.DB
	guard ConcurrencyGuard
	now   func() time.Time

	mu    sync.Mutex
	cache map[visibilityCacheKey]visibilityCacheEntry
	ttl   time.Duration
}

// NewVisibilityOverrideStore creates a store over the given database
// handle. A zero ttl falls back to DefaultVisibilityCacheTTL.
func NewVisibilityOverrideStore(db *gorm.DB, ttl time.Duration) *VisibilityOverrideStore {
	if ttl <= 0 {
		ttl = DefaultVisibilityCacheTTL
	}

	return &VisibilityOverrideStore{
		db:    db,
		now:   time.Now,
		cache: make(map[visibilityCacheKey]visibilityCacheEntry),
		ttl:   ttl,
	}
}

// ListGrants returns the viewer's grants across all subject kinds,
// serving a fresh cached set when one exists.
func (s *VisibilityOverrideStore) ListGrants(orgID, viewerID uint64) ([]models.ViewerVisibilityGrant, error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	key := visibilityCacheKey{orgID: orgID, viewerID: viewerID}

	s.mu.Lock()

	if entry, ok := s.cache[key]; ok && s.now().Sub(entry.cachedAt) < s.ttl {
		s.mu.Unlock()

		return entry.grants, nil
	}
	s.mu.Unlock()

	grants, err := s.load(s.db, orgID, viewerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = visibilityCacheEntry{grants: grants, cachedAt: s.now()}
	s.mu.Unlock()

	return grants, nil
}

func (s *VisibilityOverrideStore) load(tx *gorm.DB, orgID, viewerID uint64) ([]models.ViewerVisibilityGrant, error) {
	var grants []models.ViewerVisibilityGrant

	err := tx.Where("organization_id = ? AND viewer_user_id = ?", orgID, viewerID).
		Order("subject_type, subject_id, resource_type").
		Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list visibility grants: %w", err)
	}

	return grants, nil
}

// GetVersion derives the viewer's version token from max(updated_at)
// over their grant rows.
func (s *VisibilityOverrideStore) GetVersion(orgID, viewerID uint64) (string, error) {
	if s.db == nil {
		return "", ErrDBNil
	}

	return s.version(s.db, orgID, viewerID)
}

// version reads the latest stamped row instead of a MAX() aggregate;
// see RoleAssignmentStore.version for the sqlite type caveat.
func (s *VisibilityOverrideStore) version(tx *gorm.DB, orgID, viewerID uint64) (string, error) {
	var stamps []time.Time

	err := tx.Model(&models.ViewerVisibilityGrant{}).
		Where("organization_id = ? AND viewer_user_id = ? AND updated_at IS NOT NULL", orgID, viewerID).
		Order("updated_at DESC").
		Limit(1).
		Pluck("updated_at", &stamps).Error
	if err != nil {
		return "", fmt.Errorf("failed to derive visibility version: %w", err)
	}

	if len(stamps) == 0 {
		return VersionZero, nil
	}

	return VersionToken(sql.NullTime{Time: stamps[0], Valid: true}), nil
}

// ReplaceGrants deletes all existing grants for the viewer and inserts
// the given set within one transaction, under the version guard.
// Duplicate (subject, resource) entries in the input collapse to one row.
func (s *VisibilityOverrideStore) ReplaceGrants(
	orgID, viewerID uint64,
	grants []Grant,
	createdBy uint64,
	expectedVersion string,
) (VisibilityChange, error) {
	return s.rewrite(orgID, viewerID, createdBy, expectedVersion, func([]Grant) ([]Grant, error) {
		return dedupeGrants(grants), nil
	})
}

// PatchGrants applies an add/remove delta to the viewer's grant set
// under the same version guard as ReplaceGrants.
func (s *VisibilityOverrideStore) PatchGrants(
	orgID, viewerID uint64,
	add, remove []Grant,
	createdBy uint64,
	expectedVersion string,
) (VisibilityChange, error) {
	return s.rewrite(orgID, viewerID, createdBy, expectedVersion, func(current []Grant) ([]Grant, error) {
		target := make(map[Grant]struct{}, len(current)+len(add))
		for _, g := range current {
			target[g] = struct{}{}
		}

		for _, g := range add {
			target[g] = struct{}{}
		}

		for _, g := range remove {
			delete(target, g)
		}

		out := make([]Grant, 0, len(target))
		for g := range target {
			out = append(out, g)
		}

		sortGrants(out)

		return out, nil
	})
}

// rewrite runs the shared guarded delete-then-insert cycle and computes
// the added/removed diff for the audit trail.
func (s *VisibilityOverrideStore) rewrite(
	orgID, viewerID, createdBy uint64,
	expectedVersion string,
	nextGrants func(current []Grant) ([]Grant, error),
) (VisibilityChange, error) {
	if s.db == nil {
		return VisibilityChange{}, ErrDBNil
	}

	var change VisibilityChange

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := userExists(tx, orgID, viewerID); err != nil {
			return fmt.Errorf("viewer %d: %w", viewerID, err)
		}

		before, err := s.version(tx, orgID, viewerID)
		if err != nil {
			return err
		}

		if err := s.guard.EnsureFresh(expectedVersion, before); err != nil {
			return err
		}

		existing, err := s.load(tx, orgID, viewerID)
		if err != nil {
			return err
		}

		current := make([]Grant, 0, len(existing))
		for _, row := range existing {
			current = append(current, Grant{
				SubjectType:  row.SubjectType,
				SubjectID:    row.SubjectID,
				ResourceType: row.ResourceType,
			})
		}

		target, err := nextGrants(current)
		if err != nil {
			return err
		}

		for _, g := range target {
			if err := s.validateGrant(tx, orgID, g); err != nil {
				return err
			}
		}

		err = tx.Where("organization_id = ? AND viewer_user_id = ?", orgID, viewerID).
			Delete(&models.ViewerVisibilityGrant{}).Error
		if err != nil {
			return fmt.Errorf("failed to clear visibility grants: %w", err)
		}

		stamp := s.now().UTC()
		rows := make([]models.ViewerVisibilityGrant, 0, len(target))

		for _, g := range target {
			row := models.ViewerVisibilityGrant{
				OrganizationID: orgID,
				ViewerUserID:   viewerID,
				SubjectType:    g.SubjectType,
				SubjectID:      g.SubjectID,
				ResourceType:   g.ResourceType,
				CreatedBy:      createdBy,
				UpdatedAt:      &stamp,
			}

			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to write visibility grant: %w", err)
			}

			rows = append(rows, row)
		}

		change = VisibilityChange{
			Grants:        rows,
			Added:         diffGrants(target, current),
			Removed:       diffGrants(current, target),
			BeforeVersion: before,
			AfterVersion:  VersionToken(sql.NullTime{Time: stamp, Valid: len(rows) > 0}),
		}

		return nil
	})
	if err != nil {
		return VisibilityChange{}, err
	}

	s.Invalidate(orgID, viewerID)

	return change, nil
}

// validateGrant checks the subject kind, resource type and the existence
// of the polymorphic target, which no single foreign key can enforce.
func (s *VisibilityOverrideStore) validateGrant(tx *gorm.DB, orgID uint64, g Grant) error {
	if !g.SubjectType.Valid() {
		return fmt.Errorf("%w: unknown subject type %q", ErrValidation, g.SubjectType)
	}

	if _, ok := knownResourceTypes[g.ResourceType]; !ok {
		return fmt.Errorf("%w: unknown resource type %q", ErrValidation, g.ResourceType)
	}

	switch g.SubjectType {
	case models.SubjectUser, models.SubjectSupervisorTeam:
		if err := userExists(tx, orgID, g.SubjectID); err != nil {
			return fmt.Errorf("subject %s %d: %w", g.SubjectType, g.SubjectID, err)
		}
	case models.SubjectDepartment:
		var count int64

		err := tx.Model(&models.Department{}).
			Where("organization_id = ? AND id = ?", orgID, g.SubjectID).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to check department: %w", err)
		}

		if count == 0 {
			return fmt.Errorf("%w: department %d", ErrNotFound, g.SubjectID)
		}
	}

	return nil
}

// Invalidate removes the viewer's cached grant set immediately. Writers
// call it synchronously after a committed change.
func (s *VisibilityOverrideStore) Invalidate(orgID, viewerID uint64) {
	s.mu.Lock()
	delete(s.cache, visibilityCacheKey{orgID: orgID, viewerID: viewerID})
	s.mu.Unlock()
}

// setClock replaces the store clock; tests only.
func (s *VisibilityOverrideStore) setClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func userExists(tx *gorm.DB, orgID, userID uint64) error {
	var count int64

	err := tx.Model(&models.User{}).
		Where("organization_id = ? AND id = ?", orgID, userID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}

	if count == 0 {
		return fmt.Errorf("%w: user", ErrNotFound)
	}

	return nil
}

// diffGrants returns entries of a not present in b.
func diffGrants(a, b []Grant) []Grant {
	set := make(map[Grant]struct{}, len(b))
	for _, g := range b {
		set[g] = struct{}{}
	}

	var out []Grant

	for _, g := range a {
		if _, ok := set[g]; !ok {
			out = append(out, g)
		}
	}

	return out
}

func dedupeGrants(grants []Grant) []Grant {
	set := make(map[Grant]struct{}, len(grants))
	for _, g := range grants {
		set[g] = struct{}{}
	}

	out := make([]Grant, 0, len(set))
	for g := range set {
		out = append(out, g)
	}

	sortGrants(out)

	return out
}

func sortGrants(grants []Grant) {
	sort.Slice(grants, func(i, j int) bool {
		if grants[i].SubjectType != grants[j].SubjectType {
			return grants[i].SubjectType < grants[j].SubjectType
		}

		if grants[i].SubjectID != grants[j].SubjectID {
			return grants[i].SubjectID < grants[j].SubjectID
		}

		return grants[i].ResourceType < grants[j].ResourceType
	})
}
