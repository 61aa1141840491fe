package model

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TxReservation  TransactionType = "reservation"
	TxRelease      TransactionType = "release"
	TxDisbursement TransactionType = "disbursement"
	TxAdjustment   TransactionType = "adjustment"
)

// BudgetTransactionModel is one append-only ledger row. Balance before and
// after are the available balance around the posting.
type BudgetTransactionModel struct {
	BudgetTransactionID       uuid.UUID       `gorm:"type:uuid;primaryKey;column:budget_transaction_id" json:"budget_transaction_id"`
	BudgetTransactionBudgetID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_budget_tx_seq,priority:1;column:budget_transaction_budget_id" json:"budget_transaction_budget_id"`
	BudgetTransactionSeq      int64           `gorm:"not null;uniqueIndex:uq_budget_tx_seq,priority:2;column:budget_transaction_seq" json:"budget_transaction_seq"`
	BudgetTransactionType     TransactionType `gorm:"size:16;not null;column:budget_transaction_type" json:"budget_transaction_type"`
	BudgetTransactionAmount   int64           `gorm:"not null;column:budget_transaction_amount" json:"budget_transaction_amount"`

	BudgetTransactionBalanceBefore int64 `gorm:"not null;column:budget_transaction_balance_before" json:"budget_transaction_balance_before"`
	BudgetTransactionBalanceAfter  int64 `gorm:"not null;column:budget_transaction_balance_after" json:"budget_transaction_balance_after"`

	BudgetTransactionReferenceKind ReferenceKind `gorm:"size:24;not null;column:budget_transaction_reference_kind" json:"budget_transaction_reference_kind"`
	BudgetTransactionReferenceID   *uuid.UUID    `gorm:"type:uuid;column:budget_transaction_reference_id" json:"budget_transaction_reference_id,omitempty"`
	BudgetTransactionApplicationID *uuid.UUID    `gorm:"type:uuid;index;column:budget_transaction_application_id" json:"budget_transaction_application_id,omitempty"`
	BudgetTransactionReason        *string       `gorm:"column:budget_transaction_reason" json:"budget_transaction_reason,omitempty"`

	BudgetTransactionIdempotencyKey *string   `gorm:"size:160;uniqueIndex;column:budget_transaction_idempotency_key" json:"-"`
	BudgetTransactionActorID        uuid.UUID `gorm:"type:uuid;not null;column:budget_transaction_actor_id" json:"budget_transaction_actor_id"`
	BudgetTransactionCreatedAt      time.Time `gorm:"not null;column:budget_transaction_created_at" json:"budget_transaction_created_at"`
}

func (BudgetTransactionModel) TableName() string { return "budget_transactions" }

// Reference decodes the stored reference columns.
func (t BudgetTransactionModel) Reference() Reference {
	switch t.BudgetTransactionReferenceKind {
	case RefApplication:
		return ApplicationRef{ApplicationID: deref(t.BudgetTransactionReferenceID)}
	case RefDisbursement:
		return DisbursementRef{
			DisbursementID: deref(t.BudgetTransactionReferenceID),
			ApplicationID:  deref(t.BudgetTransactionApplicationID),
		}
	default:
		reason := ""
		if t.BudgetTransactionReason != nil {
			reason = *t.BudgetTransactionReason
		}
		return ManualAdjustment{Reason: reason}
	}
}

func deref(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
