// Package service holds the budget ledger: every change to a budget's
// counters goes through here and leaves one transaction row behind.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"beasiswaku_backend/internals/features/scholarship/budgets/model"
	"beasiswaku_backend/internals/features/scholarship/events"
	"beasiswaku_backend/internals/helpers/apperror"
	"beasiswaku_backend/internals/helpers/cache"
	"beasiswaku_backend/internals/metrics"
)

type Ledger struct {
	DB    *gorm.DB
	Audit events.AuditTrail
	Cache *cache.Loader
	Log   logrus.FieldLogger
	Now   func() time.Time
}

func NewLedger(db *gorm.DB, audit events.AuditTrail, loader *cache.Loader, log logrus.FieldLogger) *Ledger {
	if audit == nil {
		audit = events.Nop{}
	}
	return &Ledger{DB: db, Audit: audit, Cache: loader, Log: log, Now: time.Now}
}

func (l *Ledger) now() time.Time { return l.Now().UTC() }

/* =========================================================
   Idempotency keys
========================================================= */

func ReservationKey(applicationID uuid.UUID, amount int64) string {
	return fmt.Sprintf("reservation:%s:%d", applicationID, amount)
}

// ReleaseKey includes the amount still reserved before the release, so two
// equal partial releases get distinct keys.
func ReleaseKey(applicationID uuid.UUID, outstanding, amount int64) string {
	return fmt.Sprintf("release:%s:%d:%d", applicationID, outstanding, amount)
}

func DisbursementKey(disbursementID uuid.UUID) string {
	return "disbursement:" + disbursementID.String()
}

/* =========================================================
   Locking
========================================================= */

// LockBudgetTx loads the budget row FOR UPDATE. All postings against a
// budget serialize on this lock.
func LockBudgetTx(tx *gorm.DB, budgetID uuid.UUID) (*model.BudgetModel, error) {
	var b model.BudgetModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("budget_id = ?", budgetID).
		Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("budget")
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

/* =========================================================
   Posting
========================================================= */

type posting struct {
	budgetID uuid.UUID
	txType   model.TransactionType
	amount   int64
	ref      model.Reference
	actor    uuid.UUID
	key      string
}

// post is the single write path: lock, dedupe by key, apply, append.
func (l *Ledger) post(ctx context.Context, tx *gorm.DB, p posting) (row *model.BudgetTransactionModel, err error) {
	defer func() { metrics.ObserveLedger(string(p.txType), err) }()

	if p.actor == uuid.Nil {
		return nil, apperror.New(apperror.KindUnauthorized, "ledger postings need an actor")
	}

	b, err := LockBudgetTx(tx, p.budgetID)
	if err != nil {
		return nil, err
	}

	if p.key != "" {
		var existing model.BudgetTransactionModel
		err := tx.Where("budget_transaction_idempotency_key = ?", p.key).Take(&existing).Error
		if err == nil {
			return &existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	now := l.now()
	if p.txType == model.TxReservation && b.DeriveStatus(now) == model.BudgetExpired {
		return nil, apperror.InsufficientFunds(p.amount, 0, b.BudgetID.String()).
			WithOperation(string(p.txType), string(model.BudgetExpired))
	}

	before := b.Balance()
	after, err := before.Apply(p.txType, p.amount)
	if err != nil {
		var v *model.ViolationError
		if errors.As(err, &v) {
			return nil, apperror.InsufficientFunds(p.amount, before.Available(), b.BudgetID.String()).
				WithOperation(string(p.txType), string(b.BudgetStatus))
		}
		return nil, err
	}

	prevStatus := b.BudgetStatus
	b.SetBalance(after)
	b.BudgetLedgerSeq++
	b.BudgetStatus = b.DeriveStatus(now)

	row = &model.BudgetTransactionModel{
		BudgetTransactionID:            uuid.New(),
		BudgetTransactionBudgetID:      b.BudgetID,
		BudgetTransactionSeq:           b.BudgetLedgerSeq,
		BudgetTransactionType:          p.txType,
		BudgetTransactionAmount:        p.amount,
		BudgetTransactionBalanceBefore: before.Available(),
		BudgetTransactionBalanceAfter:  after.Available(),
		BudgetTransactionReferenceKind: p.ref.Kind(),
		BudgetTransactionActorID:       p.actor,
		BudgetTransactionCreatedAt:     now,
	}
	if p.key != "" {
		k := p.key
		row.BudgetTransactionIdempotencyKey = &k
	}
	switch ref := p.ref.(type) {
	case model.ApplicationRef:
		row.BudgetTransactionReferenceID = &ref.ApplicationID
		row.BudgetTransactionApplicationID = &ref.ApplicationID
	case model.DisbursementRef:
		row.BudgetTransactionReferenceID = &ref.DisbursementID
		row.BudgetTransactionApplicationID = &ref.ApplicationID
	case model.ManualAdjustment:
		reason := strings.TrimSpace(ref.Reason)
		row.BudgetTransactionReason = &reason
	}

	if err := tx.Model(b).Updates(map[string]any{
		"budget_allocated_amount": b.BudgetAllocatedAmount,
		"budget_spent_amount":     b.BudgetSpentAmount,
		"budget_reserved_amount":  b.BudgetReservedAmount,
		"budget_status":           b.BudgetStatus,
		"budget_ledger_seq":       b.BudgetLedgerSeq,
		"budget_updated_at":       now,
	}).Error; err != nil {
		return nil, err
	}
	if err := tx.Create(row).Error; err != nil {
		return nil, err
	}

	evt := events.New(events.KindLedgerPosted, p.actor, string(p.txType), now).ForBudget(b.BudgetID)
	evt.Payload = map[string]any{
		"seq":            row.BudgetTransactionSeq,
		"amount":         p.amount,
		"balance_before": row.BudgetTransactionBalanceBefore,
		"balance_after":  row.BudgetTransactionBalanceAfter,
		"reference_kind": string(row.BudgetTransactionReferenceKind),
	}
	if row.BudgetTransactionApplicationID != nil {
		evt = evt.ForApplication(*row.BudgetTransactionApplicationID)
	}
	if err := l.Audit.Record(ctx, evt); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "audit trail rejected ledger posting", err)
	}
	if prevStatus != b.BudgetStatus {
		st := events.New(events.KindBudgetStatus, p.actor, string(p.txType), now).ForBudget(b.BudgetID)
		st.FromStatus, st.ToStatus = string(prevStatus), string(b.BudgetStatus)
		if err := l.Audit.Record(ctx, st); err != nil {
			return nil, apperror.Wrap(apperror.KindInternal, "audit trail rejected budget status change", err)
		}
	}
	return row, nil
}

/* =========================================================
   Operations (inside caller's transaction)
========================================================= */

func (l *Ledger) ReserveTx(ctx context.Context, tx *gorm.DB, budgetID uuid.UUID, amount int64, ref model.ApplicationRef, actor uuid.UUID) (*model.BudgetTransactionModel, error) {
	if amount <= 0 {
		return nil, apperror.Field("amount", "must be positive")
	}
	return l.post(ctx, tx, posting{
		budgetID: budgetID,
		txType:   model.TxReservation,
		amount:   amount,
		ref:      ref,
		actor:    actor,
		key:      ReservationKey(ref.ApplicationID, amount),
	})
}

// ReleaseTx returns reserved funds. amount may not exceed what is still
// reserved for the application on this budget.
func (l *Ledger) ReleaseTx(ctx context.Context, tx *gorm.DB, budgetID uuid.UUID, amount int64, ref model.ApplicationRef, actor uuid.UUID) (*model.BudgetTransactionModel, error) {
	if amount <= 0 {
		return nil, apperror.Field("amount", "must be positive")
	}
	if _, err := LockBudgetTx(tx, budgetID); err != nil {
		return nil, err
	}
	outstanding, err := OutstandingTx(tx, budgetID, ref.ApplicationID)
	if err != nil {
		return nil, err
	}
	if amount > outstanding {
		return nil, apperror.Validation("release exceeds the amount reserved for this application",
			map[string]string{"amount": fmt.Sprintf("at most %d", outstanding)})
	}
	return l.post(ctx, tx, posting{
		budgetID: budgetID,
		txType:   model.TxRelease,
		amount:   amount,
		ref:      ref,
		actor:    actor,
		key:      ReleaseKey(ref.ApplicationID, outstanding, amount),
	})
}

// RecordDisbursementTx turns reserved funds into spent funds.
func (l *Ledger) RecordDisbursementTx(ctx context.Context, tx *gorm.DB, budgetID uuid.UUID, amount int64, ref model.DisbursementRef, actor uuid.UUID) (*model.BudgetTransactionModel, error) {
	if amount <= 0 {
		return nil, apperror.Field("amount", "must be positive")
	}
	key := DisbursementKey(ref.DisbursementID)
	if _, err := LockBudgetTx(tx, budgetID); err != nil {
		return nil, err
	}
	if row, err := findByKey(tx, key); err != nil || row != nil {
		return row, err
	}
	outstanding, err := OutstandingTx(tx, budgetID, ref.ApplicationID)
	if err != nil {
		return nil, err
	}
	if amount > outstanding {
		return nil, apperror.Validation("disbursement exceeds the amount reserved for this application",
			map[string]string{"amount": fmt.Sprintf("at most %d", outstanding)})
	}
	return l.post(ctx, tx, posting{
		budgetID: budgetID,
		txType:   model.TxDisbursement,
		amount:   amount,
		ref:      ref,
		actor:    actor,
		key:      key,
	})
}

// AdjustAllocationTx changes allocated by delta. Lowering it below
// spent + reserved fails with InsufficientFunds.
func (l *Ledger) AdjustAllocationTx(ctx context.Context, tx *gorm.DB, budgetID uuid.UUID, delta int64, ref model.ManualAdjustment, actor uuid.UUID) (*model.BudgetTransactionModel, error) {
	if delta == 0 {
		return nil, apperror.Field("delta", "must not be zero")
	}
	if strings.TrimSpace(ref.Reason) == "" {
		return nil, apperror.Field("reason", "is required")
	}
	return l.post(ctx, tx, posting{
		budgetID: budgetID,
		txType:   model.TxAdjustment,
		amount:   delta,
		ref:      ref,
		actor:    actor,
	})
}

/* =========================================================
   Operations (own transaction)
========================================================= */

func (l *Ledger) inTx(ctx context.Context, budgetID uuid.UUID, fn func(tx *gorm.DB) (*model.BudgetTransactionModel, error)) (*model.BudgetTransactionModel, error) {
	var row *model.BudgetTransactionModel
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = fn(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.invalidate(ctx, budgetID)
	return row, nil
}

func (l *Ledger) Reserve(ctx context.Context, budgetID uuid.UUID, amount int64, ref model.ApplicationRef, actor uuid.UUID) (*model.BudgetTransactionModel, error) {
	return l.inTx(ctx, budgetID, func(tx *gorm.DB) (*model.BudgetTransactionModel, error) {
		return l.ReserveTx(ctx, tx, budgetID, amount, ref, actor)
	})
}

func (l *Ledger) Release(ctx context.Context, budgetID uuid.UUID, amount int64, ref model.ApplicationRef, actor uuid.UUID) (*model.BudgetTransactionModel, error) {
	return l.inTx(ctx, budgetID, func(tx *gorm.DB) (*model.BudgetTransactionModel, error) {
		return l.ReleaseTx(ctx, tx, budgetID, amount, ref, actor)
	})
}

func (l *Ledger) RecordDisbursement(ctx context.Context, budgetID uuid.UUID, amount int64, ref model.DisbursementRef, actor uuid.UUID) (*model.BudgetTransactionModel, error) {
	return l.inTx(ctx, budgetID, func(tx *gorm.DB) (*model.BudgetTransactionModel, error) {
		return l.RecordDisbursementTx(ctx, tx, budgetID, amount, ref, actor)
	})
}

func (l *Ledger) AdjustAllocation(ctx context.Context, budgetID uuid.UUID, delta int64, ref model.ManualAdjustment, actor uuid.UUID) (*model.BudgetTransactionModel, error) {
	return l.inTx(ctx, budgetID, func(tx *gorm.DB) (*model.BudgetTransactionModel, error) {
		return l.AdjustAllocationTx(ctx, tx, budgetID, delta, ref, actor)
	})
}

func (l *Ledger) invalidate(ctx context.Context, budgetIDs ...uuid.UUID) {
	if l.Cache == nil {
		return
	}
	keys := make([]string, 0, len(budgetIDs))
	for _, id := range budgetIDs {
		keys = append(keys, cache.BudgetKey(id))
	}
	l.Cache.Invalidate(ctx, keys...)
}

/* =========================================================
   Queries
========================================================= */

func findByKey(tx *gorm.DB, key string) (*model.BudgetTransactionModel, error) {
	var row model.BudgetTransactionModel
	err := tx.Where("budget_transaction_idempotency_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// OutstandingTx is reservations minus releases and disbursements for one
// application on one budget.
func OutstandingTx(tx *gorm.DB, budgetID, applicationID uuid.UUID) (int64, error) {
	var out struct{ Total int64 }
	err := tx.Model(&model.BudgetTransactionModel{}).
		Select(`COALESCE(SUM(CASE budget_transaction_type
			WHEN 'reservation' THEN budget_transaction_amount
			WHEN 'release' THEN -budget_transaction_amount
			WHEN 'disbursement' THEN -budget_transaction_amount
			ELSE 0 END), 0) AS total`).
		Where("budget_transaction_budget_id = ? AND budget_transaction_application_id = ?", budgetID, applicationID).
		Scan(&out).Error
	return out.Total, err
}
