// file: internals/features/scholarship/budgets/model/budget_model.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type BudgetStatus string

const (
	BudgetActive   BudgetStatus = "active"
	BudgetDepleted BudgetStatus = "depleted"
	BudgetExpired  BudgetStatus = "expired"
)

// BudgetModel is the funding pool for one school and academic period. A
// nil school id is the foundation-wide pool.
type BudgetModel struct {
	BudgetID               uuid.UUID  `gorm:"type:uuid;primaryKey;column:budget_id" json:"budget_id"`
	BudgetName             string     `gorm:"size:160;not null;column:budget_name" json:"budget_name"`
	BudgetSchoolID         *uuid.UUID `gorm:"type:uuid;index;column:budget_school_id" json:"budget_school_id,omitempty"`
	BudgetAcademicPeriodID uuid.UUID  `gorm:"type:uuid;not null;index;column:budget_academic_period_id" json:"budget_academic_period_id"`

	// minor currency units
	BudgetAllocatedAmount int64 `gorm:"not null;default:0;column:budget_allocated_amount" json:"budget_allocated_amount"`
	BudgetSpentAmount     int64 `gorm:"not null;default:0;column:budget_spent_amount" json:"budget_spent_amount"`
	BudgetReservedAmount  int64 `gorm:"not null;default:0;column:budget_reserved_amount" json:"budget_reserved_amount"`

	BudgetStatus     BudgetStatus `gorm:"size:16;not null;default:active;column:budget_status" json:"budget_status"`
	BudgetValidFrom  time.Time    `gorm:"not null;column:budget_valid_from" json:"budget_valid_from"`
	BudgetValidUntil *time.Time   `gorm:"column:budget_valid_until" json:"budget_valid_until,omitempty"`

	// last ledger sequence number posted against this budget
	BudgetLedgerSeq int64 `gorm:"not null;default:0;column:budget_ledger_seq" json:"budget_ledger_seq"`

	BudgetCreatedBy uuid.UUID `gorm:"type:uuid;not null;column:budget_created_by" json:"budget_created_by"`
	BudgetCreatedAt time.Time `gorm:"not null;autoCreateTime;column:budget_created_at" json:"budget_created_at"`
	BudgetUpdatedAt time.Time `gorm:"not null;autoUpdateTime;column:budget_updated_at" json:"budget_updated_at"`
}

func (BudgetModel) TableName() string { return "budgets" }

func (b BudgetModel) Balance() Balance {
	return Balance{
		Allocated: b.BudgetAllocatedAmount,
		Spent:     b.BudgetSpentAmount,
		Reserved:  b.BudgetReservedAmount,
	}
}

func (b *BudgetModel) SetBalance(bal Balance) {
	b.BudgetAllocatedAmount = bal.Allocated
	b.BudgetSpentAmount = bal.Spent
	b.BudgetReservedAmount = bal.Reserved
}

func (b BudgetModel) Available() int64 { return b.Balance().Available() }

// ExpiredAt reports whether the validity window has closed at t.
func (b BudgetModel) ExpiredAt(t time.Time) bool {
	return b.BudgetValidUntil != nil && t.After(*b.BudgetValidUntil)
}

// DeriveStatus recomputes status from the balance. expired is sticky.
func (b BudgetModel) DeriveStatus(now time.Time) BudgetStatus {
	if b.BudgetStatus == BudgetExpired || b.ExpiredAt(now) {
		return BudgetExpired
	}
	if b.Available() <= 0 {
		return BudgetDepleted
	}
	return BudgetActive
}
