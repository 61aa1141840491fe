package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"beasiswaku_backend/internals/features/scholarship/budgets/model"
	"beasiswaku_backend/internals/features/scholarship/budgets/service"
)

type CreateBudgetRequest struct {
	Name             string     `json:"budget_name" validate:"required,max=160"`
	SchoolID         *uuid.UUID `json:"budget_school_id"`
	AcademicPeriodID uuid.UUID  `json:"budget_academic_period_id" validate:"required"`
	Allocated        int64      `json:"budget_allocated" validate:"gte=0"`
	ValidFrom        *time.Time `json:"budget_valid_from"`
	ValidUntil       *time.Time `json:"budget_valid_until"`
}

func (r CreateBudgetRequest) ToInput(actor uuid.UUID, now time.Time) service.CreateBudgetInput {
	from := now
	if r.ValidFrom != nil {
		from = r.ValidFrom.UTC()
	}
	var until *time.Time
	if r.ValidUntil != nil {
		u := r.ValidUntil.UTC()
		until = &u
	}
	return service.CreateBudgetInput{
		Name:             strings.TrimSpace(r.Name),
		SchoolID:         r.SchoolID,
		AcademicPeriodID: r.AcademicPeriodID,
		Allocated:        r.Allocated,
		ValidFrom:        from,
		ValidUntil:       until,
		ActorID:          actor,
	}
}

// AdjustRequest moves the allocation by Delta (negative to cut it).
type AdjustRequest struct {
	Delta  int64  `json:"delta" validate:"required,ne=0"`
	Reason string `json:"reason" validate:"required,max=500"`
}

func (r AdjustRequest) Reference() model.ManualAdjustment {
	return model.ManualAdjustment{Reason: strings.TrimSpace(r.Reason)}
}

// BudgetDetail adds the derived figures a dashboard shows next to the row.
type BudgetDetail struct {
	*model.BudgetModel
	BudgetAvailable     int64              `json:"budget_available"`
	BudgetDerivedStatus model.BudgetStatus `json:"budget_derived_status"`
}

func NewBudgetDetail(b *model.BudgetModel, now time.Time) BudgetDetail {
	return BudgetDetail{BudgetModel: b, BudgetAvailable: b.Available(), BudgetDerivedStatus: b.DeriveStatus(now)}
}

func NewBudgetDetails(rows []model.BudgetModel, now time.Time) []BudgetDetail {
	out := make([]BudgetDetail, 0, len(rows))
	for i := range rows {
		out = append(out, NewBudgetDetail(&rows[i], now))
	}
	return out
}
