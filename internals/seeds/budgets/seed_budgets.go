package budgets

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"beasiswaku_backend/internals/features/scholarship/budgets/model"
	"beasiswaku_backend/internals/features/scholarship/budgets/service"
)

type BudgetSeed struct {
	BudgetName             string     `json:"budget_name"`
	BudgetSchoolID         *uuid.UUID `json:"budget_school_id"`
	BudgetAcademicPeriodID uuid.UUID  `json:"budget_academic_period_id"`
	BudgetAllocatedAmount  int64      `json:"budget_allocated_amount"`
	BudgetValidFrom        time.Time  `json:"budget_valid_from"`
	BudgetValidUntil       *time.Time `json:"budget_valid_until"`
}

// SeedBudgetsFromJSON membuat budget lewat ledger supaya alokasi awal
// tercatat sebagai transaksi pertama.
func SeedBudgetsFromJSON(ctx context.Context, ledger *service.Ledger, filePath string, actor uuid.UUID, log logrus.FieldLogger) (int, error) {
	log.WithField("file", filePath).Info("reading budgets")

	content, err := os.ReadFile(filePath)
	if err != nil {
		return 0, err
	}
	var data []BudgetSeed
	if err := sonic.Unmarshal(content, &data); err != nil {
		return 0, err
	}

	inserted := 0
	for _, item := range data {
		var existing model.BudgetModel
		err := ledger.DB.WithContext(ctx).
			Where("budget_name = ? AND budget_academic_period_id = ?", item.BudgetName, item.BudgetAcademicPeriodID).
			Take(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return inserted, err
		}
		if _, err := ledger.CreateBudget(ctx, service.CreateBudgetInput{
			Name:             item.BudgetName,
			SchoolID:         item.BudgetSchoolID,
			AcademicPeriodID: item.BudgetAcademicPeriodID,
			Allocated:        item.BudgetAllocatedAmount,
			ValidFrom:        item.BudgetValidFrom.UTC(),
			ValidUntil:       item.BudgetValidUntil,
			ActorID:          actor,
		}); err != nil {
			return inserted, err
		}
		inserted++
	}
	log.WithField("inserted", inserted).Info("budgets seeded")
	return inserted, nil
}
