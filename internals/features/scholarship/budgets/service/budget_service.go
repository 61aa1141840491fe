package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"beasiswaku_backend/internals/features/scholarship/budgets/model"
	"beasiswaku_backend/internals/features/scholarship/events"
	"beasiswaku_backend/internals/helpers/apperror"
	"beasiswaku_backend/internals/helpers/cache"
)

type CreateBudgetInput struct {
	Name             string
	SchoolID         *uuid.UUID
	AcademicPeriodID uuid.UUID
	Allocated        int64
	ValidFrom        time.Time
	ValidUntil       *time.Time
	ActorID          uuid.UUID
}

// CreateBudget inserts an empty budget and posts the initial allocation as
// an adjustment, so the ledger folds from zero.
func (l *Ledger) CreateBudget(ctx context.Context, in CreateBudgetInput) (*model.BudgetModel, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperror.Field("budget_name", "is required")
	}
	if in.Allocated < 0 {
		return nil, apperror.Field("budget_allocated_amount", "must not be negative")
	}
	if in.ValidUntil != nil && in.ValidUntil.Before(in.ValidFrom) {
		return nil, apperror.Field("budget_valid_until", "must not precede budget_valid_from")
	}

	if in.ValidUntil != nil {
		until := in.ValidUntil.UTC()
		in.ValidUntil = &until
	}

	now := l.now()
	b := model.BudgetModel{
		BudgetID:               uuid.New(),
		BudgetName:             strings.TrimSpace(in.Name),
		BudgetSchoolID:         in.SchoolID,
		BudgetAcademicPeriodID: in.AcademicPeriodID,
		BudgetStatus:           model.BudgetDepleted,
		BudgetValidFrom:        in.ValidFrom.UTC(),
		BudgetValidUntil:       in.ValidUntil,
		BudgetCreatedBy:        in.ActorID,
		BudgetCreatedAt:        now,
		BudgetUpdatedAt:        now,
	}

	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&b).Error; err != nil {
			return err
		}
		evt := events.New(events.KindBudgetStatus, in.ActorID, "create_budget", now).ForBudget(b.BudgetID)
		evt.ToStatus = string(b.BudgetStatus)
		if err := l.Audit.Record(ctx, evt); err != nil {
			return apperror.Wrap(apperror.KindInternal, "audit trail rejected budget creation", err)
		}
		if in.Allocated == 0 {
			return nil
		}
		_, err := l.AdjustAllocationTx(ctx, tx, b.BudgetID, in.Allocated, model.ManualAdjustment{Reason: "initial allocation"}, in.ActorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return l.Get(ctx, b.BudgetID)
}

func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (*model.BudgetModel, error) {
	load := func() (model.BudgetModel, error) {
		var b model.BudgetModel
		err := l.DB.WithContext(ctx).Where("budget_id = ?", id).Take(&b).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b, apperror.NotFound("budget")
		}
		return b, err
	}
	var (
		b   model.BudgetModel
		err error
	)
	if l.Cache != nil {
		b, err = cache.Remember(ctx, l.Cache, cache.BudgetKey(id), load)
	} else {
		b, err = load()
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

type ListFilter struct {
	SchoolID         *uuid.UUID
	AcademicPeriodID *uuid.UUID
	Status           string
	Offset, Limit    int
}

func (l *Ledger) List(ctx context.Context, f ListFilter) ([]model.BudgetModel, int64, error) {
	q := l.DB.WithContext(ctx).Model(&model.BudgetModel{})
	if f.SchoolID != nil {
		q = q.Where("budget_school_id = ?", *f.SchoolID)
	}
	if f.AcademicPeriodID != nil {
		q = q.Where("budget_academic_period_id = ?", *f.AcademicPeriodID)
	}
	if f.Status != "" {
		q = q.Where("budget_status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.BudgetModel
	err := q.Order("budget_created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&rows).Error
	return rows, total, err
}

func (l *Ledger) Transactions(ctx context.Context, budgetID uuid.UUID, offset, limit int) ([]model.BudgetTransactionModel, int64, error) {
	q := l.DB.WithContext(ctx).Model(&model.BudgetTransactionModel{}).
		Where("budget_transaction_budget_id = ?", budgetID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.BudgetTransactionModel
	err := q.Order("budget_transaction_seq ASC").Offset(offset).Limit(limit).Find(&rows).Error
	return rows, total, err
}

/* =========================================================
   Budget resolution
========================================================= */

// ResolveBudgetTx picks the budget an approval of amount draws on: the
// explicit id, else the active school budget for the period that can cover
// amount, else the foundation pool for the period. An explicit budget must
// belong to the application's period and to its school or the pool. The
// chosen row comes back locked.
func (l *Ledger) ResolveBudgetTx(tx *gorm.DB, explicit *uuid.UUID, schoolID, periodID uuid.UUID, amount int64) (*model.BudgetModel, error) {
	if explicit != nil {
		b, err := LockBudgetTx(tx, *explicit)
		if err != nil {
			return nil, err
		}
		if b.BudgetAcademicPeriodID != periodID {
			return nil, apperror.Field("budget_id", "budget belongs to another academic period")
		}
		if b.BudgetSchoolID != nil && *b.BudgetSchoolID != schoolID {
			return nil, apperror.Field("budget_id", "budget belongs to another school")
		}
		return b, nil
	}

	now := l.now()
	find := func(scope func(*gorm.DB) *gorm.DB) (*model.BudgetModel, error) {
		var b model.BudgetModel
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("budget_academic_period_id = ? AND budget_status = ?", periodID, model.BudgetActive).
			Where("budget_valid_from <= ?", now).
			Where("budget_valid_until IS NULL OR budget_valid_until >= ?", now).
			Where("budget_allocated_amount - budget_spent_amount - budget_reserved_amount >= ?", amount)
		err := scope(q).Order("budget_created_at ASC").Take(&b).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &b, nil
	}

	b, err := find(func(q *gorm.DB) *gorm.DB { return q.Where("budget_school_id = ?", schoolID) })
	if err != nil || b != nil {
		return b, err
	}
	b, err = find(func(q *gorm.DB) *gorm.DB { return q.Where("budget_school_id IS NULL") })
	if err != nil || b != nil {
		return b, err
	}
	return nil, &apperror.Error{
		Kind:    apperror.KindInsufficientFunds,
		Message: "no active budget for the school or the foundation pool in this period covers the amount",
		Meta: map[string]any{
			"requested":          amount,
			"school_id":          schoolID.String(),
			"academic_period_id": periodID.String(),
		},
	}
}

/* =========================================================
   Reconciliation
========================================================= */

type Reconciliation struct {
	BudgetID     uuid.UUID     `json:"budget_id"`
	Stored       model.Balance `json:"stored"`
	Folded       model.Balance `json:"folded"`
	Transactions int           `json:"transactions"`

	// seq numbers whose balance_before does not match the previous balance_after
	BrokenChain []int64 `json:"broken_chain,omitempty"`
	Balanced    bool    `json:"balanced"`
}

// Reconcile folds the ledger from zero and compares it with the counters.
func (l *Ledger) Reconcile(ctx context.Context, budgetID uuid.UUID) (*Reconciliation, error) {
	var b model.BudgetModel
	err := l.DB.WithContext(ctx).Where("budget_id = ?", budgetID).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("budget")
	}
	if err != nil {
		return nil, err
	}

	var rows []model.BudgetTransactionModel
	if err := l.DB.WithContext(ctx).
		Where("budget_transaction_budget_id = ?", budgetID).
		Order("budget_transaction_seq ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	rec := &Reconciliation{BudgetID: budgetID, Stored: b.Balance(), Transactions: len(rows)}
	folded, foldErr := model.Fold(rows)
	rec.Folded = folded

	var prevAfter int64
	for i, r := range rows {
		if i > 0 && r.BudgetTransactionBalanceBefore != prevAfter {
			rec.BrokenChain = append(rec.BrokenChain, r.BudgetTransactionSeq)
		}
		prevAfter = r.BudgetTransactionBalanceAfter
	}
	if len(rows) > 0 && rows[0].BudgetTransactionBalanceBefore != 0 {
		rec.BrokenChain = append([]int64{rows[0].BudgetTransactionSeq}, rec.BrokenChain...)
	}

	rec.Balanced = foldErr == nil && folded == rec.Stored && len(rec.BrokenChain) == 0 &&
		(len(rows) == 0 || prevAfter == rec.Stored.Available())
	return rec, nil
}

/* =========================================================
   Expiry
========================================================= */

// ExpireDue marks budgets past their validity window as expired and
// returns the ids it touched.
func (l *Ledger) ExpireDue(ctx context.Context, actor uuid.UUID) ([]uuid.UUID, error) {
	now := l.now()
	var expired []uuid.UUID
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []model.BudgetModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("budget_status <> ? AND budget_valid_until IS NOT NULL AND budget_valid_until < ?", model.BudgetExpired, now).
			Find(&due).Error; err != nil {
			return err
		}
		for _, b := range due {
			if err := tx.Model(&model.BudgetModel{}).
				Where("budget_id = ?", b.BudgetID).
				Updates(map[string]any{"budget_status": model.BudgetExpired, "budget_updated_at": now}).Error; err != nil {
				return err
			}
			evt := events.New(events.KindBudgetStatus, actor, "expire_budget", now).ForBudget(b.BudgetID)
			evt.FromStatus, evt.ToStatus = string(b.BudgetStatus), string(model.BudgetExpired)
			if err := l.Audit.Record(ctx, evt); err != nil {
				return apperror.Wrap(apperror.KindInternal, "audit trail rejected budget expiry", err)
			}
			expired = append(expired, b.BudgetID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.invalidate(ctx, expired...)
	return expired, nil
}
