package authz

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/evalforge/evalforge/internal/db/models"
)

// RoleAssignmentStore persists the organization-scoped mapping of roles to
// permission codes. Writes are all-or-nothing per (organization, role)
// pair and guarded against stale version tokens; the caller is
// responsible for invalidating the permission cache after a committed
// write returns.
type RoleAssignmentStore struct {
	db    *gorm.DB
	guard ConcurrencyGuard
	now   func() time.Time
}

// NewRoleAssignmentStore creates a store over the given database handle.
func NewRoleAssignmentStore(db *gorm.DB) *RoleAssignmentStore {
	return &RoleAssignmentStore{db: db, now: time.Now}
}

// ListForRole returns the role's permission set for the organization,
// sorted by code. A role with zero assignments resolves to the empty
// set, never to a default.
func (s *RoleAssignmentStore) ListForRole(orgID uint64, roleID uint) ([]models.Permission, error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	var perms []models.Permission

	err := s.db.Table("permissions").
		Joins("JOIN role_assignments ON role_assignments.permission_id = permissions.id").
		Where("role_assignments.organization_id = ? AND role_assignments.role_id = ?", orgID, roleID).
		Order("permissions.code").
		Find(&perms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}

	return perms, nil
}

// GetVersion derives the version token for the (organization, role)
// assignment set from max(updated_at) over its rows.
func (s *RoleAssignmentStore) GetVersion(orgID uint64, roleID uint) (string, error) {
	if s.db == nil {
		return "", ErrDBNil
	}

	return s.version(s.db, orgID, roleID)
}

// version reads the latest stamped row instead of a MAX() aggregate:
// aggregate expressions lose the column's declared type on sqlite and
// would come back as bare text.
func (s *RoleAssignmentStore) version(tx *gorm.DB, orgID uint64, roleID uint) (string, error) {
	var stamps []time.Time

	err := tx.Model(&models.RoleAssignment{}).
		Where("organization_id = ? AND role_id = ? AND updated_at IS NOT NULL", orgID, roleID).
		Order("updated_at DESC").
		Limit(1).
		Pluck("updated_at", &stamps).Error
	if err != nil {
		return "", fmt.Errorf("failed to derive role assignment version: %w", err)
	}

	if len(stamps) == 0 {
		return VersionZero, nil
	}

	return VersionToken(sql.NullTime{Time: stamps[0], Valid: true}), nil
}

// RoleChange describes a committed write: the resulting permission set,
// the added/removed code diff, and the version tokens around the write.
type RoleChange struct {
	Permissions   []models.Permission
	Added         []string
	Removed       []string
	BeforeVersion string
	AfterVersion  string
}

// Replace transactionally deletes the full assignment set for the
// (organization, role) pair and inserts the given codes, rejecting the
// write if expectedVersion is stale. The resulting permission set is
// sorted by code.
func (s *RoleAssignmentStore) Replace(
	orgID uint64,
	roleID uint,
	codes []string,
	expectedVersion string,
) (RoleChange, error) {
	return s.rewrite(orgID, roleID, expectedVersion, func([]string) ([]string, error) {
		return dedupeCodes(codes), nil
	})
}

// Patch applies an add/remove delta to the assignment set under the same
// version guard as Replace.
func (s *RoleAssignmentStore) Patch(
	orgID uint64,
	roleID uint,
	add, remove []string,
	expectedVersion string,
) (RoleChange, error) {
	return s.rewrite(orgID, roleID, expectedVersion, func(current []string) ([]string, error) {
		target := make(map[string]struct{}, len(current)+len(add))
		for _, code := range current {
			target[code] = struct{}{}
		}

		for _, code := range add {
			target[code] = struct{}{}
		}

		for _, code := range remove {
			delete(target, code)
		}

		out := make([]string, 0, len(target))
		for code := range target {
			out = append(out, code)
		}

		sort.Strings(out)

		return out, nil
	})
}

// rewrite runs the shared guarded delete-then-insert cycle. nextCodes
// receives the current code set and returns the full target set.
func (s *RoleAssignmentStore) rewrite(
	orgID uint64,
	roleID uint,
	expectedVersion string,
	nextCodes func(current []string) ([]string, error),
) (RoleChange, error) {
	if s.db == nil {
		return RoleChange{}, ErrDBNil
	}

	var change RoleChange

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, roleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: role %d", ErrNotFound, roleID)
			}

			return err
		}

		current, err := s.version(tx, orgID, roleID)
		if err != nil {
			return err
		}

		if err := s.guard.EnsureFresh(expectedVersion, current); err != nil {
			return err
		}

		var currentCodes []string

		err = tx.Table("permissions").
			Joins("JOIN role_assignments ON role_assignments.permission_id = permissions.id").
			Where("role_assignments.organization_id = ? AND role_assignments.role_id = ?", orgID, roleID).
			Pluck("permissions.code", &currentCodes).Error
		if err != nil {
			return fmt.Errorf("failed to read current codes: %w", err)
		}

		codes, err := nextCodes(currentCodes)
		if err != nil {
			return err
		}

		resolved, err := resolveCodes(tx, codes)
		if err != nil {
			return err
		}

		err = tx.Where("organization_id = ? AND role_id = ?", orgID, roleID).
			Delete(&models.RoleAssignment{}).Error
		if err != nil {
			return fmt.Errorf("failed to clear role assignments: %w", err)
		}

		stamp := s.now().UTC()

		for _, perm := range resolved {
			assignment := models.RoleAssignment{
				OrganizationID: orgID,
				RoleID:         roleID,
				PermissionID:   perm.ID,
				UpdatedAt:      &stamp,
			}

			if err := tx.Create(&assignment).Error; err != nil {
				return fmt.Errorf("failed to write role assignment: %w", err)
			}
		}

		newCodes := make([]string, 0, len(resolved))
		for _, perm := range resolved {
			newCodes = append(newCodes, perm.Code)
		}

		change = RoleChange{
			Permissions:   resolved,
			Added:         diffCodes(newCodes, currentCodes),
			Removed:       diffCodes(currentCodes, newCodes),
			BeforeVersion: current,
			AfterVersion:  VersionToken(sql.NullTime{Time: stamp, Valid: len(resolved) > 0}),
		}

		return nil
	})
	if err != nil {
		return RoleChange{}, err
	}

	return change, nil
}

// diffCodes returns entries of a not present in b, sorted.
func diffCodes(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, code := range b {
		set[code] = struct{}{}
	}

	var out []string

	for _, code := range a {
		if _, ok := set[code]; !ok {
			out = append(out, code)
		}
	}

	sort.Strings(out)

	return out
}

// resolveCodes maps permission codes to catalog rows, sorted by code.
// Any unknown code fails the whole write with ErrNotFound.
func resolveCodes(tx *gorm.DB, codes []string) ([]models.Permission, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	var perms []models.Permission

	err := tx.Where("code IN ?", codes).Order("code").Find(&perms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permission codes: %w", err)
	}

	if len(perms) != len(codes) {
		known := make(map[string]struct{}, len(perms))
		for _, perm := range perms {
			known[perm.Code] = struct{}{}
		}

		for _, code := range codes {
			if _, ok := known[code]; !ok {
				return nil, fmt.Errorf("%w: permission code %q", ErrNotFound, code)
			}
		}
	}

	return perms, nil
}

// dedupeCodes collapses duplicates and sorts, so writes are stable.
func dedupeCodes(codes []string) []string {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}

	sort.Strings(out)

	return out
}
