package seeds

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"beasiswaku_backend/internals/features/scholarship/budgets/service"
	"beasiswaku_backend/internals/seeds/academic_periods"
	"beasiswaku_backend/internals/seeds/budgets"
	"beasiswaku_backend/internals/seeds/ssc_roles"
)

// RunAllSeeds memuat dir/academic_periods.json, dir/ssc_role_assignments.json
// lalu dir/budgets.json, berurutan. Baris yang sudah ada dilewati.
func RunAllSeeds(ctx context.Context, ledger *service.Ledger, dir string, actor uuid.UUID, log logrus.FieldLogger) error {
	db := ledger.DB.WithContext(ctx)

	if _, err := academic_periods.SeedAcademicPeriodsFromJSON(db, filepath.Join(dir, "academic_periods.json"), log); err != nil {
		return err
	}
	if _, err := ssc_roles.SeedRoleAssignmentsFromJSON(db, filepath.Join(dir, "ssc_role_assignments.json"), time.Now(), log); err != nil {
		return err
	}
	if _, err := budgets.SeedBudgetsFromJSON(ctx, ledger, filepath.Join(dir, "budgets.json"), actor, log); err != nil {
		return err
	}
	return nil
}
