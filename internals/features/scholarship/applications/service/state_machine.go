// Package service implements the application lifecycle: a fixed transition
// table, the money side effects some transitions carry, and the history log
// every transition appends to.
package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"beasiswaku_backend/internals/features/scholarship/applications/model"
	disbModel "beasiswaku_backend/internals/features/scholarship/disbursements/model"
	"beasiswaku_backend/internals/helpers/apperror"
)

type Operation string

const (
	OpCreate                 Operation = "create"
	OpSubmit                 Operation = "submit"
	OpStartReview            Operation = "start_review"
	OpReview                 Operation = "review"
	OpFlagForCompliance      Operation = "flag_for_compliance"
	OpResolveCompliance      Operation = "resolve_compliance"
	OpApproveForVerification Operation = "approve_for_verification"
	OpVerifyEnrollment       Operation = "verify_enrollment"
	OpScheduleInterview      Operation = "schedule_interview"
	OpCompleteInterview      Operation = "complete_interview"
	OpEndorseToSSC           Operation = "endorse_to_ssc"
	OpCompleteStages         Operation = "complete_stages"
	OpReturnForRevision      Operation = "return_for_revision"
	OpSSCFinalApproval       Operation = "ssc_final_approval"
	OpSSCFinalRejection      Operation = "ssc_final_rejection"
	OpApprove                Operation = "approve"
	OpReject                 Operation = "reject"
	OpWithdraw               Operation = "withdraw"
	OpProcess                Operation = "process"
	OpRelease                Operation = "release"
)

// RevisionTarget says where returnForRevision sends the application.
type RevisionTarget string

const (
	RevisionToCompliance RevisionTarget = "for_compliance"
	RevisionToPrevious   RevisionTarget = "previous"
)

const (
	InterviewInPerson = "in_person"
	InterviewOnline   = "online"
)

/* =========================================================
   Transition table
========================================================= */

type rule struct {
	from []model.ApplicationStatus
	to   model.ApplicationStatus
}

func nonTerminal() []model.ApplicationStatus {
	var out []model.ApplicationStatus
	for _, s := range model.AllStatuses {
		if !s.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

func withSSC(statuses ...model.ApplicationStatus) []model.ApplicationStatus {
	return append(statuses, model.SSCReviewStatuses...)
}

// returnForRevision has no fixed destination; Transition resolves it from
// the input.
var transitions = map[Operation]rule{
	OpSubmit:                 {from: []model.ApplicationStatus{model.StatusDraft}, to: model.StatusSubmitted},
	OpStartReview:            {from: []model.ApplicationStatus{model.StatusSubmitted}, to: model.StatusUnderReview},
	OpReview:                 {from: []model.ApplicationStatus{model.StatusSubmitted, model.StatusUnderReview}, to: model.StatusDocumentsReviewed},
	OpFlagForCompliance:      {from: withSSC(model.StatusSubmitted, model.StatusUnderReview, model.StatusDocumentsReviewed), to: model.StatusForCompliance},
	OpResolveCompliance:      {from: []model.ApplicationStatus{model.StatusForCompliance}, to: model.StatusSubmitted},
	OpApproveForVerification: {from: []model.ApplicationStatus{model.StatusDocumentsReviewed}, to: model.StatusApprovedPendingVerification},
	OpVerifyEnrollment:       {from: []model.ApplicationStatus{model.StatusApprovedPendingVerification}, to: model.StatusEnrollmentVerified},
	OpScheduleInterview:      {from: []model.ApplicationStatus{model.StatusEnrollmentVerified}, to: model.StatusInterviewScheduled},
	OpCompleteInterview:      {from: []model.ApplicationStatus{model.StatusInterviewScheduled}, to: model.StatusInterviewCompleted},
	OpEndorseToSSC:           {from: []model.ApplicationStatus{model.StatusInterviewCompleted}, to: model.StatusEndorsedToSSC},
	OpCompleteStages:         {from: withSSC(), to: model.StatusSSCFinalApproval},
	OpReturnForRevision:      {from: withSSC()},
	OpSSCFinalApproval:       {from: []model.ApplicationStatus{model.StatusSSCFinalApproval}, to: model.StatusApproved},
	OpSSCFinalRejection:      {from: []model.ApplicationStatus{model.StatusSSCFinalApproval}, to: model.StatusRejected},
	OpApprove:                {from: []model.ApplicationStatus{model.StatusEndorsedToSSC}, to: model.StatusApproved},
	OpReject:                 {from: nonTerminal(), to: model.StatusRejected},
	OpWithdraw:               {from: []model.ApplicationStatus{model.StatusSubmitted, model.StatusUnderReview}, to: model.StatusWithdrawn},
	OpProcess:                {from: []model.ApplicationStatus{model.StatusApproved}, to: model.StatusProcessing},
	OpRelease:                {from: []model.ApplicationStatus{model.StatusProcessing}, to: model.StatusDisbursed},
}

// Operations lists every public operation in pipeline order.
var Operations = []Operation{
	OpSubmit, OpStartReview, OpReview, OpFlagForCompliance, OpResolveCompliance,
	OpApproveForVerification, OpVerifyEnrollment, OpScheduleInterview, OpCompleteInterview,
	OpEndorseToSSC, OpCompleteStages, OpReturnForRevision, OpSSCFinalApproval, OpSSCFinalRejection,
	OpApprove, OpReject, OpWithdraw, OpProcess, OpRelease,
}

func (op Operation) Known() bool {
	_, ok := transitions[op]
	return ok
}

// Allows reports whether op may start from status.
func (op Operation) Allows(status model.ApplicationStatus) bool {
	r, ok := transitions[op]
	if !ok {
		return false
	}
	for _, s := range r.from {
		if s == status {
			return true
		}
	}
	return false
}

// Available lists the operations legal from status, for UI action menus.
func Available(status model.ApplicationStatus) []Operation {
	var out []Operation
	for _, op := range Operations {
		if op.Allows(status) {
			out = append(out, op)
		}
	}
	return out
}

/* =========================================================
   Input / Change
========================================================= */

type DisbursementInput struct {
	Method             disbModel.Method
	BeneficiaryName    string
	BeneficiaryAccount string
	BeneficiaryBank    string
	BeneficiaryEmail   string
}

// Input is the union of every operation's payload. Each operation reads
// only its own fields.
type Input struct {
	ActorID        uuid.UUID
	ExpectedStatus *model.ApplicationStatus
	Note           string

	ApprovedAmount *int64
	BudgetID       *uuid.UUID
	Reason         string

	InterviewAt       *time.Time
	InterviewMode     string
	InterviewLocation string
	InterviewScore    *int
	Recommendation    string
	AutoSchedule      bool

	Stage          model.StageName
	RevisionTarget RevisionTarget

	Disbursement    *DisbursementInput
	ReferenceNumber string
}

// ChangePayload is what the history log keeps beyond the status itself;
// it carries enough to rebuild the projection by replay.
type ChangePayload struct {
	ApprovedAmount    *int64         `json:"approved_amount,omitempty"`
	BudgetID          *uuid.UUID     `json:"budget_id,omitempty"`
	Reason            string         `json:"reason,omitempty"`
	InterviewAt       *time.Time     `json:"interview_at,omitempty"`
	InterviewMode     string         `json:"interview_mode,omitempty"`
	InterviewLocation string         `json:"interview_location,omitempty"`
	InterviewScore    *int           `json:"interview_score,omitempty"`
	Recommendation    string         `json:"recommendation,omitempty"`
	Stage             string         `json:"stage,omitempty"`
	RevisionTarget    RevisionTarget `json:"revision_target,omitempty"`
	SSCCycle          int            `json:"ssc_cycle,omitempty"`
	DisbursementID    *uuid.UUID     `json:"disbursement_id,omitempty"`
	Method            string         `json:"method,omitempty"`
	ReferenceNumber   string         `json:"reference_number,omitempty"`
	ReservedAmount    int64          `json:"reserved_amount,omitempty"`
	ReleasedAmount    int64          `json:"released_amount,omitempty"`
}

// Change is the event a successful transition produces.
type Change struct {
	Operation Operation
	From      model.ApplicationStatus
	To        model.ApplicationStatus
	ActorID   uuid.UUID
	Note      string
	At        time.Time
	Payload   ChangePayload
}

// Fields flattens the payload for audit events and log lines.
func (p ChangePayload) Fields() map[string]any {
	out := map[string]any{}
	if p.ApprovedAmount != nil {
		out["approved_amount"] = *p.ApprovedAmount
	}
	if p.BudgetID != nil {
		out["budget_id"] = p.BudgetID.String()
	}
	if p.Reason != "" {
		out["reason"] = p.Reason
	}
	if p.InterviewAt != nil {
		out["interview_at"] = p.InterviewAt.UTC().Format(time.RFC3339)
	}
	if p.InterviewScore != nil {
		out["interview_score"] = *p.InterviewScore
	}
	if p.Stage != "" {
		out["stage"] = p.Stage
	}
	if p.RevisionTarget != "" {
		out["revision_target"] = string(p.RevisionTarget)
	}
	if p.DisbursementID != nil {
		out["disbursement_id"] = p.DisbursementID.String()
	}
	if p.ReferenceNumber != "" {
		out["reference_number"] = p.ReferenceNumber
	}
	if p.ReservedAmount != 0 {
		out["reserved_amount"] = p.ReservedAmount
	}
	if p.ReleasedAmount != 0 {
		out["released_amount"] = p.ReleasedAmount
	}
	return out
}

/* =========================================================
   Transition
========================================================= */

// Transition checks op against app and returns the next state plus the
// change it represents. app is never modified. Money and persistence are
// the caller's business.
func Transition(app model.ApplicationModel, op Operation, in Input, now time.Time) (model.ApplicationModel, Change, error) {
	r, ok := transitions[op]
	if !ok {
		return app, Change{}, apperror.Field("operation", fmt.Sprintf("unknown operation %q", op))
	}
	if in.ActorID == uuid.Nil {
		return app, Change{}, apperror.New(apperror.KindUnauthorized, "operation requires an authenticated actor").
			WithOperation(string(op), string(app.ApplicationStatus))
	}
	current := app.ApplicationStatus
	if in.ExpectedStatus != nil && *in.ExpectedStatus != current {
		return app, Change{}, apperror.StaleState(string(op), string(*in.ExpectedStatus), string(current))
	}
	if !op.Allows(current) {
		return app, Change{}, apperror.InvalidTransition(string(op), string(current))
	}

	now = now.UTC()
	actor := in.ActorID
	note := strings.TrimSpace(in.Note)
	next := app.Clone()
	next.ApplicationStatus = r.to
	next.ApplicationUpdatedAt = now
	ch := Change{Operation: op, From: current, ActorID: actor, Note: note, At: now}

	fail := func(err *apperror.Error) (model.ApplicationModel, Change, error) {
		return app, Change{}, err.WithOperation(string(op), string(current))
	}

	switch op {
	case OpSubmit:
		if app.ApplicationRequestedAmount <= 0 {
			return fail(apperror.Field("application_requested_amount", "must be positive before submitting"))
		}
		if next.ApplicationSubmittedAt == nil {
			next.ApplicationSubmittedAt = &now
		}

	case OpReview:
		next.ApplicationReviewedAt = &now
		next.ApplicationReviewedBy = &actor

	case OpFlagForCompliance:
		reason := firstNonEmpty(in.Reason, note)
		if reason == "" {
			return fail(apperror.Field("reason", "is required"))
		}
		next.ApplicationComplianceNote = &reason
		ch.Payload.Reason = reason

	case OpResolveCompliance:
		next.ApplicationComplianceNote = nil

	case OpVerifyEnrollment:
		next.ApplicationVerifiedAt = &now

	case OpScheduleInterview:
		if in.InterviewAt == nil {
			return fail(apperror.Field("interview_at", "is required"))
		}
		at := in.InterviewAt.UTC().Truncate(time.Second)
		if !at.After(now) {
			return fail(apperror.Field("interview_at", "must be in the future"))
		}
		mode := in.InterviewMode
		if mode == "" {
			mode = InterviewInPerson
		}
		if mode != InterviewInPerson && mode != InterviewOnline {
			return fail(apperror.Field("interview_mode", "must be in_person or online"))
		}
		next.ApplicationInterviewAt = &at
		next.ApplicationInterviewMode = &mode
		next.ApplicationInterviewLocation = optional(in.InterviewLocation)
		ch.Payload.InterviewAt = &at
		ch.Payload.InterviewMode = mode
		ch.Payload.InterviewLocation = strings.TrimSpace(in.InterviewLocation)

	case OpCompleteInterview:
		if in.InterviewScore == nil {
			return fail(apperror.Field("interview_score", "is required"))
		}
		if *in.InterviewScore < 0 || *in.InterviewScore > 100 {
			return fail(apperror.Field("interview_score", "must be between 0 and 100"))
		}
		score := *in.InterviewScore
		next.ApplicationInterviewScore = &score
		next.ApplicationInterviewCompletedAt = &now
		ch.Payload.InterviewScore = &score
		ch.Payload.Recommendation = strings.TrimSpace(in.Recommendation)

	case OpEndorseToSSC:
		stages := next.Stages()
		if stages == nil {
			stages = model.StageStatusMap{}
		}
		for _, s := range model.AllStages {
			if stages[s].Status != model.StageApproved {
				stages[s] = model.StageEntry{Status: model.StagePending, UpdatedAt: &now}
			}
		}
		next.ApplicationStageStatus = datatypes.NewJSONType(stages)
		next.ApplicationSSCCycle++
		next.ApplicationEndorsedAt = &now
		ch.Payload.SSCCycle = next.ApplicationSSCCycle

	case OpCompleteStages:
		if stages := app.Stages(); !stages.AllApproved() {
			pending := make([]string, 0, 3)
			for _, s := range stages.Pending() {
				pending = append(pending, string(s))
			}
			err := apperror.InvalidTransition(string(op), string(current))
			err.Message = "every review stage must be approved first"
			err.Meta = map[string]any{"pending_stages": pending}
			return app, Change{}, err
		}

	case OpReturnForRevision:
		if !in.Stage.Valid() {
			return fail(apperror.Field("stage", "must be one of document_verification, financial_review, academic_review"))
		}
		if note == "" {
			return fail(apperror.Field("notes", "are required when requesting a revision"))
		}
		switch in.RevisionTarget {
		case RevisionToCompliance, "":
			next.ApplicationStatus = model.StatusForCompliance
			next.ApplicationComplianceNote = &note
			ch.Payload.RevisionTarget = RevisionToCompliance
		case RevisionToPrevious:
			next.ApplicationStatus = model.StatusInterviewCompleted
			ch.Payload.RevisionTarget = RevisionToPrevious
		default:
			return fail(apperror.Field("target", "must be for_compliance or previous"))
		}
		stages := next.Stages()
		if stages == nil {
			stages = model.StageStatusMap{}
		}
		stages[in.Stage] = model.StageEntry{Status: model.StageRevisionRequested, ReviewerID: &actor, Notes: note, UpdatedAt: &now}
		next.ApplicationStageStatus = datatypes.NewJSONType(stages)
		ch.Payload.Stage = string(in.Stage)
		ch.Payload.Reason = note

	case OpApprove, OpSSCFinalApproval:
		if in.ApprovedAmount == nil {
			return fail(apperror.Field("approved_amount", "is required"))
		}
		amount := *in.ApprovedAmount
		if amount < 0 {
			return fail(apperror.Field("approved_amount", "must not be negative"))
		}
		if amount > app.ApplicationRequestedAmount {
			return fail(apperror.Field("approved_amount", fmt.Sprintf("must not exceed the requested amount %d", app.ApplicationRequestedAmount)))
		}
		next.ApplicationApprovedAmount = &amount
		next.ApplicationApprovedAt = &now
		next.ApplicationApprovedBy = &actor
		ch.Payload.ApprovedAmount = &amount
		if in.BudgetID != nil {
			id := *in.BudgetID
			ch.Payload.BudgetID = &id
		}

	case OpReject, OpSSCFinalRejection:
		reason := firstNonEmpty(in.Reason, note)
		if reason == "" {
			return fail(apperror.Field("reason", "is required"))
		}
		next.ApplicationRejectionReason = &reason
		next.ApplicationRejectedAt = &now
		next.ApplicationRejectedBy = &actor
		ch.Payload.Reason = reason

	case OpWithdraw:
		next.ApplicationWithdrawnAt = &now

	case OpProcess:
		if app.ApplicationApprovedAmount == nil || *app.ApplicationApprovedAmount <= 0 {
			return fail(apperror.Field("approved_amount", "nothing to disburse for a zero award"))
		}
		d := in.Disbursement
		if d == nil {
			return fail(apperror.Field("method", "is required"))
		}
		if !d.Method.Valid() {
			return fail(apperror.Field("method", "must be bank_transfer, check, cash or gateway"))
		}
		if d.Method == disbModel.MethodBankTransfer || d.Method == disbModel.MethodGateway {
			fields := map[string]string{}
			if strings.TrimSpace(d.BeneficiaryName) == "" {
				fields["beneficiary_name"] = "required"
			}
			if strings.TrimSpace(d.BeneficiaryAccount) == "" {
				fields["beneficiary_account"] = "required"
			}
			if strings.TrimSpace(d.BeneficiaryBank) == "" {
				fields["beneficiary_bank"] = "required"
			}
			if len(fields) > 0 {
				return fail(apperror.Validation("beneficiary details are required for "+string(d.Method), fields))
			}
		}
		next.ApplicationProcessedAt = &now
		ch.Payload.Method = string(d.Method)

	case OpRelease:
		ref := strings.TrimSpace(in.ReferenceNumber)
		if ref == "" {
			return fail(apperror.Field("reference_number", "is required"))
		}
		next.ApplicationReleasedAt = &now
		next.ApplicationReleasedBy = &actor
		ch.Payload.ReferenceNumber = ref
	}

	ch.To = next.ApplicationStatus
	return next, ch, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
