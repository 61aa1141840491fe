// file: internals/features/scholarship/applications/model/application_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StageEntry is one stage's slot in the stage_status map.
type StageEntry struct {
	Status       StageOutcome   `json:"status"`
	ReviewerID   *uuid.UUID     `json:"reviewer_id,omitempty"`
	ReviewerRole string         `json:"reviewer_role,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	UpdatedAt    *time.Time     `json:"updated_at,omitempty"`
}

type StageStatusMap map[StageName]StageEntry

// Clone copies the map and each entry's Data so callers can mutate freely.
func (m StageStatusMap) Clone() StageStatusMap {
	if m == nil {
		return nil
	}
	out := make(StageStatusMap, len(m))
	for k, v := range m {
		if v.Data != nil {
			data := make(map[string]any, len(v.Data))
			for dk, dv := range v.Data {
				data[dk] = dv
			}
			v.Data = data
		}
		out[k] = v
	}
	return out
}

// AllApproved reports whether every stage shows approved.
func (m StageStatusMap) AllApproved() bool {
	for _, s := range AllStages {
		if m[s].Status != StageApproved {
			return false
		}
	}
	return true
}

// Pending lists stages not yet approved, in fixed stage order.
func (m StageStatusMap) Pending() []StageName {
	var out []StageName
	for _, s := range AllStages {
		if m[s].Status != StageApproved {
			out = append(out, s)
		}
	}
	return out
}

type ApplicationModel struct {
	ApplicationID               uuid.UUID         `gorm:"type:uuid;primaryKey;column:application_id" json:"application_id"`
	ApplicationNumber           string            `gorm:"size:20;not null;uniqueIndex;column:application_number" json:"application_number"`
	ApplicationStudentID        uuid.UUID         `gorm:"type:uuid;not null;index;column:application_student_id" json:"application_student_id"`
	ApplicationSchoolID         uuid.UUID         `gorm:"type:uuid;not null;index;column:application_school_id" json:"application_school_id"`
	ApplicationAcademicPeriodID uuid.UUID         `gorm:"type:uuid;not null;index;column:application_academic_period_id" json:"application_academic_period_id"`
	ApplicationBudgetID         *uuid.UUID        `gorm:"type:uuid;index;column:application_budget_id" json:"application_budget_id,omitempty"`
	ApplicationStatus           ApplicationStatus `gorm:"size:40;not null;index;column:application_status" json:"application_status"`

	ApplicationRequestedAmount int64   `gorm:"not null;column:application_requested_amount" json:"application_requested_amount"`
	ApplicationApprovedAmount  *int64  `gorm:"column:application_approved_amount" json:"application_approved_amount,omitempty"`
	ApplicationPurpose         *string `gorm:"column:application_purpose" json:"application_purpose,omitempty"`
	ApplicationRejectionReason *string `gorm:"column:application_rejection_reason" json:"application_rejection_reason,omitempty"`
	ApplicationComplianceNote  *string `gorm:"column:application_compliance_note" json:"application_compliance_note,omitempty"`

	// SSC
	ApplicationStageStatus datatypes.JSONType[StageStatusMap] `gorm:"not null;column:application_stage_status" json:"application_stage_status"`
	ApplicationSSCCycle    int                                `gorm:"not null;default:0;column:application_ssc_cycle" json:"application_ssc_cycle"`

	// Interview
	ApplicationInterviewAt       *time.Time `gorm:"column:application_interview_at" json:"application_interview_at,omitempty"`
	ApplicationInterviewMode     *string    `gorm:"size:12;column:application_interview_mode" json:"application_interview_mode,omitempty"`
	ApplicationInterviewLocation *string    `gorm:"column:application_interview_location" json:"application_interview_location,omitempty"`
	ApplicationInterviewScore    *int       `gorm:"column:application_interview_score" json:"application_interview_score,omitempty"`

	// Lifecycle timestamps and actors
	ApplicationSubmittedAt          *time.Time `gorm:"column:application_submitted_at" json:"application_submitted_at,omitempty"`
	ApplicationReviewedAt           *time.Time `gorm:"column:application_reviewed_at" json:"application_reviewed_at,omitempty"`
	ApplicationReviewedBy           *uuid.UUID `gorm:"type:uuid;column:application_reviewed_by" json:"application_reviewed_by,omitempty"`
	ApplicationVerifiedAt           *time.Time `gorm:"column:application_verified_at" json:"application_verified_at,omitempty"`
	ApplicationInterviewCompletedAt *time.Time `gorm:"column:application_interview_completed_at" json:"application_interview_completed_at,omitempty"`
	ApplicationEndorsedAt           *time.Time `gorm:"column:application_endorsed_at" json:"application_endorsed_at,omitempty"`
	ApplicationApprovedAt           *time.Time `gorm:"column:application_approved_at" json:"application_approved_at,omitempty"`
	ApplicationApprovedBy           *uuid.UUID `gorm:"type:uuid;column:application_approved_by" json:"application_approved_by,omitempty"`
	ApplicationProcessedAt          *time.Time `gorm:"column:application_processed_at" json:"application_processed_at,omitempty"`
	ApplicationReleasedAt           *time.Time `gorm:"column:application_released_at" json:"application_released_at,omitempty"`
	ApplicationReleasedBy           *uuid.UUID `gorm:"type:uuid;column:application_released_by" json:"application_released_by,omitempty"`
	ApplicationRejectedAt           *time.Time `gorm:"column:application_rejected_at" json:"application_rejected_at,omitempty"`
	ApplicationRejectedBy           *uuid.UUID `gorm:"type:uuid;column:application_rejected_by" json:"application_rejected_by,omitempty"`
	ApplicationWithdrawnAt          *time.Time `gorm:"column:application_withdrawn_at" json:"application_withdrawn_at,omitempty"`

	// last status history seq appended for this application
	ApplicationHistorySeq int64 `gorm:"not null;default:0;column:application_history_seq" json:"application_history_seq"`

	ApplicationCreatedAt time.Time `gorm:"not null;column:application_created_at" json:"application_created_at"`
	ApplicationUpdatedAt time.Time `gorm:"not null;column:application_updated_at" json:"application_updated_at"`
}

func (ApplicationModel) TableName() string { return "applications" }

func (a ApplicationModel) Stages() StageStatusMap {
	return a.ApplicationStageStatus.Data()
}

// Clone returns a copy that shares no mutable state with a.
func (a ApplicationModel) Clone() ApplicationModel {
	out := a
	out.ApplicationStageStatus = datatypes.NewJSONType(a.Stages().Clone())
	return out
}

/* =========================================================
   Year counter for application numbers
========================================================= */

type ApplicationSequenceModel struct {
	ApplicationSequenceYear int   `gorm:"primaryKey;autoIncrement:false;column:application_sequence_year" json:"application_sequence_year"`
	ApplicationSequenceLast int64 `gorm:"not null;default:0;column:application_sequence_last" json:"application_sequence_last"`
}

func (ApplicationSequenceModel) TableName() string { return "application_sequences" }
