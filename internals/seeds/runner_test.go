package seeds

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beasiswaku_backend/internals/databases/testdb"
	periodModel "beasiswaku_backend/internals/features/scholarship/academic_periods/model"
	budgetModel "beasiswaku_backend/internals/features/scholarship/budgets/model"
	"beasiswaku_backend/internals/features/scholarship/budgets/service"
	sscModel "beasiswaku_backend/internals/features/scholarship/ssc_reviews/model"
	"beasiswaku_backend/internals/seeds/ssc_roles"
)

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func count(t *testing.T, l *service.Ledger, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, l.DB.Model(model).Count(&n).Error)
	return n
}

func TestRunAllSeedsIsRepeatable(t *testing.T) {
	ledger := service.NewLedger(testdb.Open(t), nil, nil, quiet())
	actor := uuid.New()

	for i := 0; i < 2; i++ {
		require.NoError(t, RunAllSeeds(context.Background(), ledger, "data", actor, quiet()))
	}

	assert.EqualValues(t, 2, count(t, ledger, &periodModel.AcademicPeriodModel{}))
	assert.EqualValues(t, 4, count(t, ledger, &sscModel.RoleAssignmentModel{}))
	assert.EqualValues(t, 1, count(t, ledger, &budgetModel.BudgetModel{}))

	var b budgetModel.BudgetModel
	require.NoError(t, ledger.DB.Take(&b).Error)
	assert.EqualValues(t, 500000000, b.BudgetAllocatedAmount)
	assert.Nil(t, b.BudgetSchoolID)

	rep, err := ledger.Reconcile(context.Background(), b.BudgetID)
	require.NoError(t, err)
	assert.True(t, rep.Balanced)
	assert.Equal(t, 1, rep.Transactions)
}

func TestUnknownCommitteeRoleFails(t *testing.T) {
	db := testdb.Open(t)
	path := filepath.Join(t.TempDir(), "roles.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"role_assignment_user_id":"`+uuid.NewString()+`","role_assignment_role":"treasurer"}]`), 0o600))

	_, err := ssc_roles.SeedRoleAssignmentsFromJSON(db, path, time.Now(), quiet())
	assert.ErrorContains(t, err, "treasurer")
}
