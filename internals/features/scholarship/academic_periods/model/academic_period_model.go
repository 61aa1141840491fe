// file: internals/features/scholarship/academic_periods/model/academic_period_model.go
package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AcademicPeriodModel struct {
	AcademicPeriodID uuid.UUID `gorm:"type:uuid;primaryKey;column:academic_period_id" json:"academic_period_id"`

	// Example school_year: "2026-2027"
	AcademicPeriodSchoolYear string `gorm:"size:9;not null;column:academic_period_school_year" json:"academic_period_school_year"`

	// first_semester | second_semester | summer
	AcademicPeriodTerm string `gorm:"size:20;not null;column:academic_period_term" json:"academic_period_term"`
	AcademicPeriodName string `gorm:"size:120;not null;column:academic_period_name" json:"academic_period_name"`

	AcademicPeriodStartDate time.Time `gorm:"not null;column:academic_period_start_date" json:"academic_period_start_date"`
	AcademicPeriodEndDate   time.Time `gorm:"not null;column:academic_period_end_date" json:"academic_period_end_date"`
	AcademicPeriodIsActive  bool      `gorm:"not null;default:true;column:academic_period_is_active" json:"academic_period_is_active"`

	AcademicPeriodCreatedAt time.Time `gorm:"not null;autoCreateTime;column:academic_period_created_at" json:"academic_period_created_at"`
	AcademicPeriodUpdatedAt time.Time `gorm:"not null;autoUpdateTime;column:academic_period_updated_at" json:"academic_period_updated_at"`
}

func (AcademicPeriodModel) TableName() string { return "academic_periods" }

func (m *AcademicPeriodModel) BeforeSave(tx *gorm.DB) error {
	if m.AcademicPeriodEndDate.Before(m.AcademicPeriodStartDate) {
		return errors.New("academic_period_end_date must be >= academic_period_start_date")
	}
	m.AcademicPeriodSchoolYear = strings.TrimSpace(m.AcademicPeriodSchoolYear)
	m.AcademicPeriodName = strings.TrimSpace(m.AcademicPeriodName)
	if m.AcademicPeriodID == uuid.Nil {
		m.AcademicPeriodID = uuid.New()
	}
	return nil
}

// Contains reports whether t falls inside [start, end].
func (m AcademicPeriodModel) Contains(t time.Time) bool {
	return !t.Before(m.AcademicPeriodStartDate) && !t.After(m.AcademicPeriodEndDate)
}
