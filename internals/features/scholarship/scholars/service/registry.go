// Package service is the student registry that awarded applications are
// enrolled into.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"beasiswaku_backend/internals/features/scholarship/scholars/model"
	"beasiswaku_backend/internals/helpers/apperror"
)

type Enrollment struct {
	ApplicationID    uuid.UUID
	StudentID        uuid.UUID
	SchoolID         uuid.UUID
	AcademicPeriodID uuid.UUID
	Amount           int64
}

// GormRegistry writes scholars rows. Enrolling the same application twice
// is a no-op.
type GormRegistry struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewGormRegistry(db *gorm.DB) *GormRegistry {
	return &GormRegistry{DB: db, Now: time.Now}
}

func (r *GormRegistry) Enroll(ctx context.Context, e Enrollment) error {
	if e.ApplicationID == uuid.Nil || e.StudentID == uuid.Nil {
		return errors.New("enrollment needs application and student ids")
	}
	row := model.ScholarModel{
		ScholarID:               uuid.New(),
		ScholarApplicationID:    e.ApplicationID,
		ScholarStudentID:        e.StudentID,
		ScholarSchoolID:         e.SchoolID,
		ScholarAcademicPeriodID: e.AcademicPeriodID,
		ScholarAwardedAmount:    e.Amount,
		ScholarEnrolledAt:       r.Now().UTC(),
	}
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "scholar_application_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (r *GormRegistry) GetByApplication(ctx context.Context, applicationID uuid.UUID) (*model.ScholarModel, error) {
	var row model.ScholarModel
	err := r.DB.WithContext(ctx).Where("scholar_application_id = ?", applicationID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("scholar")
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
