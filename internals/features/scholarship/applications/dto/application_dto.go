package dto

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"beasiswaku_backend/internals/features/scholarship/applications/model"
	"beasiswaku_backend/internals/features/scholarship/applications/service"
	disbModel "beasiswaku_backend/internals/features/scholarship/disbursements/model"
)

// NewValidator returns a validator that reports json field names and knows
// the scholarship enums.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("application_status", func(fl validator.FieldLevel) bool {
		return model.ApplicationStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("ssc_stage", func(fl validator.FieldLevel) bool {
		return model.StageName(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("disbursement_method", func(fl validator.FieldLevel) bool {
		return disbModel.Method(fl.Field().String()).Valid()
	})
	return v
}

/* =========================================================
   Requests
========================================================= */

type CreateApplicationRequest struct {
	StudentID        *uuid.UUID `json:"application_student_id"`
	SchoolID         uuid.UUID  `json:"application_school_id" validate:"required"`
	AcademicPeriodID uuid.UUID  `json:"application_academic_period_id" validate:"required"`
	RequestedAmount  int64      `json:"application_requested_amount" validate:"gte=0"`
	Purpose          string     `json:"application_purpose" validate:"omitempty,max=2000"`
}

func (r CreateApplicationRequest) ToInput(actor, student uuid.UUID) service.CreateInput {
	return service.CreateInput{
		StudentID:        student,
		SchoolID:         r.SchoolID,
		AcademicPeriodID: r.AcademicPeriodID,
		RequestedAmount:  r.RequestedAmount,
		Purpose:          strings.TrimSpace(r.Purpose),
		ActorID:          actor,
	}
}

type UpdateDraftRequest struct {
	RequestedAmount *int64  `json:"application_requested_amount" validate:"omitempty,gte=0"`
	Purpose         *string `json:"application_purpose" validate:"omitempty,max=2000"`
}

func (r UpdateDraftRequest) ToInput(actor uuid.UUID) service.UpdateDraftInput {
	in := service.UpdateDraftInput{ActorID: actor, RequestedAmount: r.RequestedAmount}
	if r.Purpose != nil {
		p := strings.TrimSpace(*r.Purpose)
		in.Purpose = &p
	}
	return in
}

type DisbursementRequest struct {
	Method             string `json:"method" validate:"required,disbursement_method"`
	BeneficiaryName    string `json:"beneficiary_name" validate:"omitempty,max=160"`
	BeneficiaryAccount string `json:"beneficiary_account" validate:"omitempty,max=64"`
	BeneficiaryBank    string `json:"beneficiary_bank" validate:"omitempty,max=64"`
	BeneficiaryEmail   string `json:"beneficiary_email" validate:"omitempty,email"`
}

// TransitionRequest carries the union of transition payloads; each
// operation reads its own fields.
type TransitionRequest struct {
	ExpectedStatus *string `json:"expected_status" validate:"omitempty,application_status"`
	Note           string  `json:"note" validate:"omitempty,max=2000"`

	ApprovedAmount *int64     `json:"approved_amount" validate:"omitempty,gte=0"`
	BudgetID       *uuid.UUID `json:"budget_id"`
	Reason         string     `json:"reason" validate:"omitempty,max=2000"`

	InterviewAt       *time.Time `json:"interview_at"`
	InterviewMode     string     `json:"interview_mode" validate:"omitempty,oneof=in_person online"`
	InterviewLocation string     `json:"interview_location" validate:"omitempty,max=255"`
	InterviewScore    *int       `json:"interview_score" validate:"omitempty,gte=0,lte=100"`
	Recommendation    string     `json:"recommendation" validate:"omitempty,max=2000"`
	AutoSchedule      bool       `json:"auto_schedule"`

	Stage          string `json:"stage" validate:"omitempty,ssc_stage"`
	RevisionTarget string `json:"revision_target" validate:"omitempty,oneof=for_compliance previous"`

	Disbursement    *DisbursementRequest `json:"disbursement" validate:"omitempty"`
	ReferenceNumber string               `json:"reference_number" validate:"omitempty,max=128"`
}

func (r TransitionRequest) ToInput(actor uuid.UUID) service.Input {
	in := service.Input{
		ActorID:           actor,
		Note:              strings.TrimSpace(r.Note),
		ApprovedAmount:    r.ApprovedAmount,
		BudgetID:          r.BudgetID,
		Reason:            strings.TrimSpace(r.Reason),
		InterviewAt:       r.InterviewAt,
		InterviewMode:     r.InterviewMode,
		InterviewLocation: strings.TrimSpace(r.InterviewLocation),
		InterviewScore:    r.InterviewScore,
		Recommendation:    strings.TrimSpace(r.Recommendation),
		AutoSchedule:      r.AutoSchedule,
		Stage:             model.StageName(r.Stage),
		RevisionTarget:    service.RevisionTarget(r.RevisionTarget),
		ReferenceNumber:   strings.TrimSpace(r.ReferenceNumber),
	}
	if r.ExpectedStatus != nil {
		s := model.ApplicationStatus(*r.ExpectedStatus)
		in.ExpectedStatus = &s
	}
	if d := r.Disbursement; d != nil {
		in.Disbursement = &service.DisbursementInput{
			Method:             disbModel.Method(d.Method),
			BeneficiaryName:    strings.TrimSpace(d.BeneficiaryName),
			BeneficiaryAccount: strings.TrimSpace(d.BeneficiaryAccount),
			BeneficiaryBank:    strings.TrimSpace(d.BeneficiaryBank),
			BeneficiaryEmail:   strings.TrimSpace(d.BeneficiaryEmail),
		}
	}
	return in
}

/* =========================================================
   Responses
========================================================= */

type ApplicationDetail struct {
	*model.ApplicationModel
	ApplicationAvailableOperations []service.Operation `json:"application_available_operations"`
	ApplicationPendingStages       []model.StageName   `json:"application_pending_stages,omitempty"`
}

func NewApplicationDetail(app *model.ApplicationModel) ApplicationDetail {
	out := ApplicationDetail{
		ApplicationModel:               app,
		ApplicationAvailableOperations: service.Available(app.ApplicationStatus),
	}
	if out.ApplicationAvailableOperations == nil {
		out.ApplicationAvailableOperations = []service.Operation{}
	}
	if app.ApplicationStatus.InSSCReview() {
		out.ApplicationPendingStages = app.Stages().Pending()
	}
	return out
}
