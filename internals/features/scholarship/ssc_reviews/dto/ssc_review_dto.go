package dto

import (
	"strings"

	"github.com/google/uuid"

	appModel "beasiswaku_backend/internals/features/scholarship/applications/model"
	appService "beasiswaku_backend/internals/features/scholarship/applications/service"
	"beasiswaku_backend/internals/features/scholarship/ssc_reviews/service"
)

// StageReviewRequest is the body of approve / reject / revision on a stage.
// Data carries stage findings, e.g. recommended_amount for financial_review.
type StageReviewRequest struct {
	Notes string         `json:"notes" validate:"omitempty,max=4000"`
	Data  map[string]any `json:"data"`
}

func (r StageReviewRequest) ToInput(actor uuid.UUID) service.StageInput {
	return service.StageInput{ActorID: actor, Notes: strings.TrimSpace(r.Notes), Data: r.Data}
}

type ReturnForRevisionRequest struct {
	Stage          string  `json:"stage" validate:"required,ssc_stage"`
	Notes          string  `json:"notes" validate:"required,max=4000"`
	Target         string  `json:"revision_target" validate:"required,oneof=for_compliance previous"`
	ExpectedStatus *string `json:"expected_status" validate:"omitempty,application_status"`
}

func (r ReturnForRevisionRequest) ToInput(actor uuid.UUID) service.RevisionInput {
	return service.RevisionInput{
		ActorID:        actor,
		Stage:          appModel.StageName(r.Stage),
		Notes:          strings.TrimSpace(r.Notes),
		Target:         appService.RevisionTarget(r.Target),
		ExpectedStatus: statusPtr(r.ExpectedStatus),
	}
}

type DecisionRequest struct {
	Amount         *int64     `json:"approved_amount" validate:"omitempty,gte=0"`
	BudgetID       *uuid.UUID `json:"budget_id"`
	Reasoning      string     `json:"reasoning" validate:"omitempty,max=4000"`
	ExpectedStatus *string    `json:"expected_status" validate:"omitempty,application_status"`
}

func (r DecisionRequest) ToInput(actor uuid.UUID) service.DecisionInput {
	return service.DecisionInput{
		ActorID:        actor,
		Amount:         r.Amount,
		BudgetID:       r.BudgetID,
		Reasoning:      strings.TrimSpace(r.Reasoning),
		ExpectedStatus: statusPtr(r.ExpectedStatus),
	}
}

func statusPtr(s *string) *appModel.ApplicationStatus {
	if s == nil {
		return nil
	}
	st := appModel.ApplicationStatus(*s)
	return &st
}
