package model

import (
	"time"

	"github.com/google/uuid"
)

// ScholarModel is the student registry entry created after an award.
type ScholarModel struct {
	ScholarID               uuid.UUID `gorm:"type:uuid;primaryKey;column:scholar_id" json:"scholar_id"`
	ScholarApplicationID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex;column:scholar_application_id" json:"scholar_application_id"`
	ScholarStudentID        uuid.UUID `gorm:"type:uuid;not null;index;column:scholar_student_id" json:"scholar_student_id"`
	ScholarSchoolID         uuid.UUID `gorm:"type:uuid;not null;column:scholar_school_id" json:"scholar_school_id"`
	ScholarAcademicPeriodID uuid.UUID `gorm:"type:uuid;not null;column:scholar_academic_period_id" json:"scholar_academic_period_id"`
	ScholarAwardedAmount    int64     `gorm:"not null;column:scholar_awarded_amount" json:"scholar_awarded_amount"`
	ScholarEnrolledAt       time.Time `gorm:"not null;column:scholar_enrolled_at" json:"scholar_enrolled_at"`
}

func (ScholarModel) TableName() string { return "scholars" }
