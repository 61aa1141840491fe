package service

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"beasiswaku_backend/internals/constants"
	appModel "beasiswaku_backend/internals/features/scholarship/applications/model"
	"beasiswaku_backend/internals/features/scholarship/ssc_reviews/model"
	"beasiswaku_backend/internals/helpers/apperror"
)

// Authorizer answers who may act on a stage and who may decide. Calls run
// on the caller's transaction.
type Authorizer interface {
	StageRole(tx *gorm.DB, userID uuid.UUID, stage appModel.StageName) (string, error)
	CanDecide(tx *gorm.DB, userID uuid.UUID) error
}

// GormAuthorizer reads ssc_role_assignments. Assignments are maintained
// elsewhere; nothing here writes them.
type GormAuthorizer struct{}

func (GormAuthorizer) Roles(tx *gorm.DB, userID uuid.UUID) ([]string, error) {
	var rows []model.RoleAssignmentModel
	err := tx.Where("role_assignment_user_id = ? AND role_assignment_is_active = ? AND role_assignment_revoked_at IS NULL", userID, true).
		Order("role_assignment_assigned_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.RoleAssignmentRole)
	}
	return out, nil
}

// StageRole returns the committee role that lets userID act on stage.
func (a GormAuthorizer) StageRole(tx *gorm.DB, userID uuid.UUID, stage appModel.StageName) (string, error) {
	roles, err := a.Roles(tx, userID)
	if err != nil {
		return "", err
	}
	for _, r := range roles {
		if constants.StageForSSCRole[r] == string(stage) {
			return r, nil
		}
	}
	return "", apperror.New(apperror.KindForbidden, "no active committee assignment for stage "+string(stage))
}

func (a GormAuthorizer) CanDecide(tx *gorm.DB, userID uuid.UUID) error {
	roles, err := a.Roles(tx, userID)
	if err != nil {
		return err
	}
	for _, r := range roles {
		if r == constants.SSCRoleChairperson {
			return nil
		}
	}
	return apperror.New(apperror.KindForbidden, "only the committee chairperson may decide")
}
