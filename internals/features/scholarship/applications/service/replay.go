package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"beasiswaku_backend/internals/features/scholarship/applications/model"
)

// Projection is the part of an application that the status history alone
// determines.
type Projection struct {
	ApplicationID   uuid.UUID               `json:"application_id"`
	Status          model.ApplicationStatus `json:"status"`
	ApprovedAmount  *int64                  `json:"approved_amount,omitempty"`
	BudgetID        *uuid.UUID              `json:"budget_id,omitempty"`
	RejectionReason *string                 `json:"rejection_reason,omitempty"`
	ComplianceNote  *string                 `json:"compliance_note,omitempty"`
	InterviewAt     *time.Time              `json:"interview_at,omitempty"`
	InterviewScore  *int                    `json:"interview_score,omitempty"`
	SSCCycle        int                     `json:"ssc_cycle"`
	Seq             int64                   `json:"seq"`
}

// ProjectionOf reads the same fields off a stored application.
func ProjectionOf(app model.ApplicationModel) Projection {
	p := Projection{
		ApplicationID:   app.ApplicationID,
		Status:          app.ApplicationStatus,
		ApprovedAmount:  app.ApplicationApprovedAmount,
		BudgetID:        app.ApplicationBudgetID,
		RejectionReason: app.ApplicationRejectionReason,
		ComplianceNote:  app.ApplicationComplianceNote,
		InterviewScore:  app.ApplicationInterviewScore,
		SSCCycle:        app.ApplicationSSCCycle,
		Seq:             app.ApplicationHistorySeq,
	}
	if app.ApplicationInterviewAt != nil {
		at := app.ApplicationInterviewAt.UTC()
		p.InterviewAt = &at
	}
	return p
}

// Equal compares field by field, times by instant.
func (p Projection) Equal(q Projection) bool {
	return p.ApplicationID == q.ApplicationID &&
		p.Status == q.Status &&
		eqPtr(p.ApprovedAmount, q.ApprovedAmount) &&
		eqPtr(p.BudgetID, q.BudgetID) &&
		eqPtr(p.RejectionReason, q.RejectionReason) &&
		eqPtr(p.ComplianceNote, q.ComplianceNote) &&
		eqPtr(p.InterviewScore, q.InterviewScore) &&
		eqTime(p.InterviewAt, q.InterviewAt) &&
		p.SSCCycle == q.SSCCycle &&
		p.Seq == q.Seq
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// ApplyEntry folds one history row into p. Rows at or below p.Seq were
// already applied and are skipped, so replaying a log twice is harmless.
func ApplyEntry(p Projection, e model.StatusHistoryModel) (Projection, error) {
	if e.StatusHistorySeq <= p.Seq {
		return p, nil
	}
	if e.StatusHistorySeq != p.Seq+1 {
		return p, fmt.Errorf("history gap: have seq %d, next row is %d", p.Seq, e.StatusHistorySeq)
	}

	var pl ChangePayload
	if len(e.StatusHistoryPayload) > 0 {
		if err := sonic.Unmarshal(e.StatusHistoryPayload, &pl); err != nil {
			return p, fmt.Errorf("history seq %d: decode payload: %w", e.StatusHistorySeq, err)
		}
	}

	p.ApplicationID = e.StatusHistoryApplicationID
	p.Status = e.StatusHistoryStatus
	p.Seq = e.StatusHistorySeq

	switch Operation(e.StatusHistoryOperation) {
	case OpFlagForCompliance:
		p.ComplianceNote = strPtr(pl.Reason)
	case OpResolveCompliance:
		p.ComplianceNote = nil
	case OpReturnForRevision:
		if pl.RevisionTarget == RevisionToCompliance {
			p.ComplianceNote = strPtr(pl.Reason)
		}
	case OpScheduleInterview:
		if pl.InterviewAt != nil {
			at := pl.InterviewAt.UTC()
			p.InterviewAt = &at
		}
	case OpCompleteInterview:
		p.InterviewScore = pl.InterviewScore
	case OpEndorseToSSC:
		p.SSCCycle = pl.SSCCycle
	case OpApprove, OpSSCFinalApproval:
		p.ApprovedAmount = pl.ApprovedAmount
		if pl.BudgetID != nil {
			p.BudgetID = pl.BudgetID
		}
	case OpReject, OpSSCFinalRejection:
		p.RejectionReason = strPtr(pl.Reason)
	}
	return p, nil
}

// Replay folds a history log from nothing. Entries may arrive in any order
// and may repeat.
func Replay(entries []model.StatusHistoryModel) (Projection, error) {
	sorted := append([]model.StatusHistoryModel(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StatusHistorySeq < sorted[j].StatusHistorySeq
	})

	var p Projection
	for _, e := range sorted {
		var err error
		if p, err = ApplyEntry(p, e); err != nil {
			return p, err
		}
	}
	return p, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
