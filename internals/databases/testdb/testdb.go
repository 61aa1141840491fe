// Package testdb opens an in-memory SQLite database with every scholarship
// table migrated, for service and handler tests.
package testdb

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	periodModel "beasiswaku_backend/internals/features/scholarship/academic_periods/model"
	appModel "beasiswaku_backend/internals/features/scholarship/applications/model"
	budgetModel "beasiswaku_backend/internals/features/scholarship/budgets/model"
	disbursementModel "beasiswaku_backend/internals/features/scholarship/disbursements/model"
	scholarModel "beasiswaku_backend/internals/features/scholarship/scholars/model"
	sscModel "beasiswaku_backend/internals/features/scholarship/ssc_reviews/model"
)

// Models is every table the service owns, in dependency order.
var Models = []any{
	&periodModel.AcademicPeriodModel{},
	&budgetModel.BudgetModel{},
	&budgetModel.BudgetTransactionModel{},
	&appModel.ApplicationSequenceModel{},
	&appModel.ApplicationModel{},
	&appModel.StatusHistoryModel{},
	&sscModel.RoleAssignmentModel{},
	&sscModel.StageReviewModel{},
	&sscModel.SSCDecisionModel{},
	&disbursementModel.DisbursementModel{},
	&scholarModel.ScholarModel{},
}

// Open returns a fresh database. One connection only: goroutines queue on
// it, which stands in for postgres row locks.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(Models...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}
