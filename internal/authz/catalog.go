package authz

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/evalforge/evalforge/internal/db/models"
)

// Permission code constants define the grantable capabilities of the
// performance-evaluation system. Codes follow resource:action[:scope].
const (
	// PermGoalCreate allows creating goals.
	PermGoalCreate = "goal:create"
	// PermGoalRead allows reading own goals.
	PermGoalRead = "goal:read"
	// PermGoalReadAll allows reading any goal in the organization.
	PermGoalReadAll = "goal:read:all"
	// PermGoalUpdate allows editing goals.
	PermGoalUpdate = "goal:update"
	// PermGoalDelete allows deleting goals.
	PermGoalDelete = "goal:delete"
	// PermGoalApprove allows approving a direct report's goals.
	PermGoalApprove = "goal:approve"

	// PermEvaluationCreate allows opening evaluation periods.
	PermEvaluationCreate = "evaluation:create"
	// PermEvaluationRead allows reading own evaluations.
	PermEvaluationRead = "evaluation:read"
	// PermEvaluationReadAll allows reading any evaluation in the organization.
	PermEvaluationReadAll = "evaluation:read:all"
	// PermEvaluationReview allows reviewing submitted evaluations.
	PermEvaluationReview = "evaluation:review"

	// PermAssessmentRead allows reading self-assessments.
	PermAssessmentRead = "assessment:read"
	// PermAssessmentSubmit allows submitting a self-assessment.
	PermAssessmentSubmit = "assessment:submit"

	// PermFeedbackRead allows reading supervisor feedback.
	PermFeedbackRead = "feedback:read"
	// PermFeedbackWrite allows writing supervisor feedback.
	PermFeedbackWrite = "feedback:write"

	// PermReportView allows viewing aggregated dashboards and reports.
	PermReportView = "report:view"

	// PermRoleRead allows reading role capability sets.
	PermRoleRead = "role:read"
	// PermRoleManage allows editing role capability sets.
	PermRoleManage = "role:manage"
	// PermVisibilityRead allows reading viewer visibility grants.
	PermVisibilityRead = "visibility:read"
	// PermVisibilityManage allows editing viewer visibility grants.
	PermVisibilityManage = "visibility:manage"
	// PermUserRead allows reading user accounts.
	PermUserRead = "user:read"
	// PermUserManage allows managing user accounts.
	PermUserManage = "user:manage"
	// PermDepartmentRead allows reading departments.
	PermDepartmentRead = "department:read"
	// PermOrgManage allows managing organization settings.
	PermOrgManage = "org:manage"
)

// Catalog groups.
const (
	GroupGoals          = "goals"
	GroupEvaluations    = "evaluations"
	GroupAssessments    = "assessments"
	GroupFeedback       = "feedback"
	GroupReports        = "reports"
	GroupAdministration = "administration"
)

// CatalogEntry describes one permission the catalog must contain.
type CatalogEntry struct {
	Code        string
	Description string
	Group       string
}

// DefaultCatalog returns the canonical set of grantable permission codes.
// Seeding with this set is idempotent and safe on every cold start.
func DefaultCatalog() []CatalogEntry {
	return []CatalogEntry{
		{PermGoalCreate, "Create goals", GroupGoals},
		{PermGoalRead, "Read own goals", GroupGoals},
		{PermGoalReadAll, "Read any goal in the organization", GroupGoals},
		{PermGoalUpdate, "Edit goals", GroupGoals},
		{PermGoalDelete, "Delete goals", GroupGoals},
		{PermGoalApprove, "Approve a direct report's goals", GroupGoals},
		{PermEvaluationCreate, "Open evaluation periods", GroupEvaluations},
		{PermEvaluationRead, "Read own evaluations", GroupEvaluations},
		{PermEvaluationReadAll, "Read any evaluation in the organization", GroupEvaluations},
		{PermEvaluationReview, "Review submitted evaluations", GroupEvaluations},
		{PermAssessmentRead, "Read self-assessments", GroupAssessments},
		{PermAssessmentSubmit, "Submit a self-assessment", GroupAssessments},
		{PermFeedbackRead, "Read supervisor feedback", GroupFeedback},
		{PermFeedbackWrite, "Write supervisor feedback", GroupFeedback},
		{PermReportView, "View dashboards and reports", GroupReports},
		{PermRoleRead, "Read role capability sets", GroupAdministration},
		{PermRoleManage, "Edit role capability sets", GroupAdministration},
		{PermVisibilityRead, "Read viewer visibility grants", GroupAdministration},
		{PermVisibilityManage, "Edit viewer visibility grants", GroupAdministration},
		{PermUserRead, "Read user accounts", GroupAdministration},
		{PermUserManage, "Manage user accounts", GroupAdministration},
		{PermDepartmentRead, "Read departments", GroupAdministration},
		{PermOrgManage, "Manage organization settings", GroupAdministration},
	}
}

// EnsurePermissions idempotently inserts any catalog entries missing from
// the permissions table and returns the ones it created. Existing rows
// keep their identity; only description and group are brought up to date.
func EnsurePermissions(db *gorm.DB, entries []CatalogEntry) ([]models.Permission, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var created []models.Permission

	for _, entry := range entries {
		resource, action, scope, err := splitCode(entry.Code)
		if err != nil {
			return created, err
		}

		var existing models.Permission

		result := db.Where("code = ?", entry.Code).First(&existing)

		switch {
		case result.Error == nil:
			if existing.Description != entry.Description || existing.Group != entry.Group {
				existing.Description = entry.Description
				existing.Group = entry.Group

				if err := db.Save(&existing).Error; err != nil {
					return created, fmt.Errorf("failed to update catalog entry %s: %w", entry.Code, err)
				}
			}
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
			perm := models.Permission{
				Code:        entry.Code,
				Resource:    resource,
				Action:      action,
				Scope:       scope,
				Description: entry.Description,
				Group:       entry.Group,
			}

			if err := db.Create(&perm).Error; err != nil {
				return created, fmt.Errorf("failed to create catalog entry %s: %w", entry.Code, err)
			}

			created = append(created, perm)
		default:
			return created, result.Error
		}
	}

	return created, nil
}

// splitCode parses resource:action[:scope] and rejects anything else.
func splitCode(code string) (resource, action, scope string, err error) {
	parts := strings.Split(code, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("%w: malformed permission code %q", ErrValidation, code)
	}

	resource, action = parts[0], parts[1]
	if len(parts) == 3 {
		scope = parts[2]
	}

	return resource, action, scope, nil
}
