package dto

import (
	"strings"
	"time"

	"beasiswaku_backend/internals/features/scholarship/academic_periods/model"
)

type AcademicPeriodCreateDTO struct {
	AcademicPeriodSchoolYear string    `json:"academic_period_school_year" validate:"required,len=9"`
	AcademicPeriodTerm       string    `json:"academic_period_term"        validate:"required,oneof=first_semester second_semester summer"`
	AcademicPeriodName       string    `json:"academic_period_name"        validate:"required,min=3,max=120"`
	AcademicPeriodStartDate  time.Time `json:"academic_period_start_date"  validate:"required"`
	AcademicPeriodEndDate    time.Time `json:"academic_period_end_date"    validate:"required,gtefield=AcademicPeriodStartDate"`

	// pointer: "not sent" differs from false
	AcademicPeriodIsActive *bool `json:"academic_period_is_active,omitempty"`
}

type AcademicPeriodUpdateDTO struct {
	AcademicPeriodName      *string    `json:"academic_period_name,omitempty" validate:"omitempty,min=3,max=120"`
	AcademicPeriodStartDate *time.Time `json:"academic_period_start_date,omitempty"`
	AcademicPeriodEndDate   *time.Time `json:"academic_period_end_date,omitempty"`
	AcademicPeriodIsActive  *bool      `json:"academic_period_is_active,omitempty"`
}

func (p *AcademicPeriodCreateDTO) ToModel() model.AcademicPeriodModel {
	active := true
	if p.AcademicPeriodIsActive != nil {
		active = *p.AcademicPeriodIsActive
	}
	return model.AcademicPeriodModel{
		AcademicPeriodSchoolYear: strings.TrimSpace(p.AcademicPeriodSchoolYear),
		AcademicPeriodTerm:       p.AcademicPeriodTerm,
		AcademicPeriodName:       strings.TrimSpace(p.AcademicPeriodName),
		AcademicPeriodStartDate:  p.AcademicPeriodStartDate,
		AcademicPeriodEndDate:    p.AcademicPeriodEndDate,
		AcademicPeriodIsActive:   active,
	}
}

func (u *AcademicPeriodUpdateDTO) ApplyUpdates(ent *model.AcademicPeriodModel) {
	if u.AcademicPeriodName != nil {
		ent.AcademicPeriodName = strings.TrimSpace(*u.AcademicPeriodName)
	}
	if u.AcademicPeriodStartDate != nil {
		ent.AcademicPeriodStartDate = *u.AcademicPeriodStartDate
	}
	if u.AcademicPeriodEndDate != nil {
		ent.AcademicPeriodEndDate = *u.AcademicPeriodEndDate
	}
	if u.AcademicPeriodIsActive != nil {
		ent.AcademicPeriodIsActive = *u.AcademicPeriodIsActive
	}
}
