package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beasiswaku_backend/internals/databases/testdb"
	periodModel "beasiswaku_backend/internals/features/scholarship/academic_periods/model"
	"beasiswaku_backend/internals/features/scholarship/applications/model"
	budgetModel "beasiswaku_backend/internals/features/scholarship/budgets/model"
	budgetService "beasiswaku_backend/internals/features/scholarship/budgets/service"
	disbModel "beasiswaku_backend/internals/features/scholarship/disbursements/model"
	"beasiswaku_backend/internals/features/scholarship/events"
	"beasiswaku_backend/internals/helpers/apperror"
)

type fixture struct {
	svc    *Service
	ledger *budgetService.Ledger
	rec    *events.Recorder
	period uuid.UUID
	school uuid.UUID
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.Open(t)
	rec := &events.Recorder{}
	log := logrus.New()
	ledger := budgetService.NewLedger(db, rec, nil, log)

	f := &fixture{ledger: ledger, rec: rec, school: uuid.New(), clock: t0}
	f.svc = New(db, ledger, rec, rec, nil, log)
	f.svc.Now = func() time.Time { return f.clock }

	period := periodModel.AcademicPeriodModel{
		AcademicPeriodSchoolYear: "2025-2026",
		AcademicPeriodTerm:       "second_semester",
		AcademicPeriodName:       "Second Semester 2025-2026",
		AcademicPeriodStartDate:  time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		AcademicPeriodEndDate:    time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		AcademicPeriodIsActive:   true,
	}
	require.NoError(t, db.Create(&period).Error)
	f.period = period.AcademicPeriodID
	return f
}

func (f *fixture) budget(t *testing.T, allocated int64) uuid.UUID {
	t.Helper()
	b, err := f.ledger.CreateBudget(context.Background(), budgetService.CreateBudgetInput{
		Name:             "School budget",
		SchoolID:         &f.school,
		AcademicPeriodID: f.period,
		Allocated:        allocated,
		ValidFrom:        time.Now().Add(-time.Hour),
		ActorID:          officer,
	})
	require.NoError(t, err)
	return b.BudgetID
}

func (f *fixture) draft(t *testing.T, requested int64) *model.ApplicationModel {
	t.Helper()
	app, err := f.svc.Create(context.Background(), CreateInput{
		StudentID:        uuid.New(),
		SchoolID:         f.school,
		AcademicPeriodID: f.period,
		RequestedAmount:  requested,
		Purpose:          "tuition and books",
		ActorID:          officer,
	})
	require.NoError(t, err)
	return app
}

func (f *fixture) apply(t *testing.T, id uuid.UUID, op Operation, in Input) *Result {
	t.Helper()
	f.clock = f.clock.Add(time.Hour)
	if in.ActorID == uuid.Nil {
		in.ActorID = officer
	}
	res, err := f.svc.Apply(context.Background(), id, op, in)
	require.NoError(t, err, "%s", op)
	return res
}

// toEndorsed walks a fresh draft to endorsed_to_ssc.
func (f *fixture) toEndorsed(t *testing.T, requested int64) *model.ApplicationModel {
	t.Helper()
	app := f.draft(t, requested)
	for _, op := range []Operation{OpSubmit, OpReview, OpApproveForVerification, OpVerifyEnrollment, OpScheduleInterview, OpCompleteInterview, OpEndorseToSSC} {
		f.apply(t, app.ApplicationID, op, validInput(op, f.clock))
	}
	got, err := f.svc.Get(context.Background(), app.ApplicationID)
	require.NoError(t, err)
	require.Equal(t, model.StatusEndorsedToSSC, got.ApplicationStatus)
	return got
}

func (f *fixture) historyCount(t *testing.T, id uuid.UUID) int {
	t.Helper()
	rows, err := f.svc.History(context.Background(), id)
	require.NoError(t, err)
	return len(rows)
}

func TestCreateNumbersDraftsPerYear(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, 1000)
	b := f.draft(t, 2000)

	assert.Equal(t, "SCH-2026-000001", a.ApplicationNumber)
	assert.Equal(t, "SCH-2026-000002", b.ApplicationNumber)
	assert.Equal(t, model.StatusDraft, a.ApplicationStatus)

	rows, err := f.svc.History(context.Background(), a.ApplicationID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].StatusHistorySeq)
	assert.Equal(t, string(OpCreate), rows[0].StatusHistoryOperation)
	assert.Len(t, f.rec.AuditedKind(events.KindApplicationCreated), 2)

	_, err = f.svc.Create(context.Background(), CreateInput{
		StudentID: uuid.New(), SchoolID: f.school, AcademicPeriodID: uuid.New(), ActorID: officer,
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestUpdateDraftOnlyWhileDraft(t *testing.T) {
	f := newFixture(t)
	app := f.draft(t, 0)

	amount := int64(7500)
	got, err := f.svc.UpdateDraft(context.Background(), app.ApplicationID, UpdateDraftInput{ActorID: officer, RequestedAmount: &amount})
	require.NoError(t, err)
	assert.Equal(t, int64(7500), got.ApplicationRequestedAmount)

	f.apply(t, app.ApplicationID, OpSubmit, Input{})
	_, err = f.svc.UpdateDraft(context.Background(), app.ApplicationID, UpdateDraftInput{ActorID: officer, RequestedAmount: &amount})
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)
}

func TestSubmitNeedsAmount(t *testing.T) {
	f := newFixture(t)
	app := f.draft(t, 0)
	_, err := f.svc.Apply(context.Background(), app.ApplicationID, OpSubmit, Input{ActorID: officer})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, 1, f.historyCount(t, app.ApplicationID))
}

func TestStaleExpectedStatusIsRefused(t *testing.T) {
	f := newFixture(t)
	app := f.draft(t, 1000)
	expected := model.StatusDraft
	f.apply(t, app.ApplicationID, OpSubmit, Input{ExpectedStatus: &expected})

	// a retry of the same request now sees submitted
	_, err := f.svc.Apply(context.Background(), app.ApplicationID, OpSubmit, Input{ActorID: officer, ExpectedStatus: &expected})
	require.ErrorIs(t, err, apperror.ErrStaleState)
	e, _ := apperror.As(err)
	assert.Equal(t, "submitted", e.CurrentStatus)
	assert.Equal(t, 2, f.historyCount(t, app.ApplicationID))
}

// approve 5000 against a budget with only 3000 available
func TestApproveBeyondBudgetLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	budgetID := f.budget(t, 3000)
	app := f.toEndorsed(t, 5000)
	before := f.historyCount(t, app.ApplicationID)
	audited := len(f.rec.Audited())

	_, err := f.svc.Apply(context.Background(), app.ApplicationID, OpApprove, Input{ActorID: officer, ApprovedAmount: ptr(int64(5000))})
	require.ErrorIs(t, err, apperror.ErrInsufficientFunds)
	e, _ := apperror.As(err)
	assert.Equal(t, "approve", e.Operation)
	assert.Equal(t, "endorsed_to_ssc", e.CurrentStatus)

	got, err := f.svc.Get(context.Background(), app.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEndorsedToSSC, got.ApplicationStatus)
	assert.Nil(t, got.ApplicationApprovedAmount)
	assert.Nil(t, got.ApplicationBudgetID)
	assert.Equal(t, before, f.historyCount(t, app.ApplicationID))
	assert.Len(t, f.rec.Audited(), audited)

	b, err := f.ledger.Get(context.Background(), budgetID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.BudgetReservedAmount)
}

// approved -> process -> release moves the reservation into spent in one step
func TestDisbursementPipelineMovesReservedToSpent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	budgetID := f.budget(t, 20000)
	app := f.toEndorsed(t, 5000)

	res := f.apply(t, app.ApplicationID, OpApprove, Input{ApprovedAmount: ptr(int64(5000))})
	require.NotNil(t, res.Transaction)
	assert.Equal(t, budgetModel.TxReservation, res.Transaction.BudgetTransactionType)
	assert.Equal(t, budgetID, *res.Application.ApplicationBudgetID)

	afterApprove, err := f.ledger.Get(ctx, budgetID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), afterApprove.BudgetReservedAmount)

	res = f.apply(t, app.ApplicationID, OpProcess, validInput(OpProcess, f.clock))
	require.NotNil(t, res.Disbursement)
	assert.Equal(t, disbModel.StatusPending, res.Disbursement.DisbursementStatus)
	assert.Equal(t, int64(5000), res.Disbursement.DisbursementAmount)

	beforeRelease, err := f.ledger.Get(ctx, budgetID)
	require.NoError(t, err)

	res = f.apply(t, app.ApplicationID, OpRelease, Input{ReferenceNumber: "TRX-8841"})
	assert.Equal(t, model.StatusDisbursed, res.Application.ApplicationStatus)
	assert.Equal(t, disbModel.StatusCompleted, res.Disbursement.DisbursementStatus)
	assert.Equal(t, "TRX-8841", *res.Disbursement.DisbursementReferenceNumber)
	assert.Equal(t, budgetModel.TxDisbursement, res.Transaction.BudgetTransactionType)

	afterRelease, err := f.ledger.Get(ctx, budgetID)
	require.NoError(t, err)
	assert.Equal(t, beforeRelease.BudgetReservedAmount-5000, afterRelease.BudgetReservedAmount)
	assert.Equal(t, beforeRelease.BudgetSpentAmount+5000, afterRelease.BudgetSpentAmount)
	assert.Equal(t, beforeRelease.Available(), afterRelease.Available())

	_, err = f.svc.Apply(ctx, app.ApplicationID, OpRelease, Input{ActorID: officer, ReferenceNumber: "TRX-8841"})
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)

	rec, err := f.ledger.Reconcile(ctx, budgetID)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
}

func TestRejectTwiceFailsWithoutDuplicateHistory(t *testing.T) {
	f := newFixture(t)
	app := f.draft(t, 1000)
	f.apply(t, app.ApplicationID, OpSubmit, Input{})
	f.apply(t, app.ApplicationID, OpReject, Input{Reason: "not eligible"})
	count := f.historyCount(t, app.ApplicationID)

	_, err := f.svc.Apply(context.Background(), app.ApplicationID, OpReject, Input{ActorID: officer, Reason: "not eligible"})
	require.ErrorIs(t, err, apperror.ErrInvalidStateTransition)
	assert.Equal(t, count, f.historyCount(t, app.ApplicationID))
}

func TestRejectAfterApprovalReleasesReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	budgetID := f.budget(t, 10000)
	app := f.toEndorsed(t, 6000)

	f.apply(t, app.ApplicationID, OpApprove, Input{ApprovedAmount: ptr(int64(6000))})
	f.apply(t, app.ApplicationID, OpProcess, validInput(OpProcess, f.clock))
	res := f.apply(t, app.ApplicationID, OpReject, Input{Reason: "enrollment revoked"})

	require.NotNil(t, res.Transaction)
	assert.Equal(t, budgetModel.TxRelease, res.Transaction.BudgetTransactionType)
	assert.Equal(t, int64(6000), res.Transaction.BudgetTransactionAmount)

	b, err := f.ledger.Get(ctx, budgetID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.BudgetReservedAmount)
	assert.Equal(t, int64(10000), b.Available())

	var d disbModel.DisbursementModel
	require.NoError(t, f.svc.DB.Where("disbursement_application_id = ?", app.ApplicationID).Take(&d).Error)
	assert.Equal(t, disbModel.StatusFailed, d.DisbursementStatus)
}

func TestApproveFallsBackToFoundationPool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pool, err := f.ledger.CreateBudget(ctx, budgetService.CreateBudgetInput{
		Name: "Foundation pool", AcademicPeriodID: f.period, Allocated: 9000,
		ValidFrom: time.Now().Add(-time.Hour), ActorID: officer,
	})
	require.NoError(t, err)
	app := f.toEndorsed(t, 4000)

	res := f.apply(t, app.ApplicationID, OpApprove, Input{ApprovedAmount: ptr(int64(4000))})
	assert.Equal(t, pool.BudgetID, *res.Application.ApplicationBudgetID)
}

func TestApproveSkipsDepletedSchoolBudget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	school := f.budget(t, 1000)
	_, err := f.ledger.Reserve(ctx, school, 1000, budgetModel.ApplicationRef{ApplicationID: uuid.New()}, officer)
	require.NoError(t, err)
	pool, err := f.ledger.CreateBudget(ctx, budgetService.CreateBudgetInput{
		Name: "Foundation pool", AcademicPeriodID: f.period, Allocated: 90000,
		ValidFrom: time.Now().Add(-time.Hour), ActorID: officer,
	})
	require.NoError(t, err)
	app := f.toEndorsed(t, 500)

	res := f.apply(t, app.ApplicationID, OpApprove, Input{ApprovedAmount: ptr(int64(500))})
	assert.Equal(t, pool.BudgetID, *res.Application.ApplicationBudgetID)
}

func TestApproveRefusesAnotherSchoolsBudget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := uuid.New()
	foreign, err := f.ledger.CreateBudget(ctx, budgetService.CreateBudgetInput{
		Name: "Other school", SchoolID: &other, AcademicPeriodID: uuid.New(), Allocated: 90000,
		ValidFrom: time.Now().Add(-time.Hour), ActorID: officer,
	})
	require.NoError(t, err)
	f.budget(t, 10000)
	app := f.toEndorsed(t, 4000)

	_, err = f.svc.Apply(ctx, app.ApplicationID, OpApprove, Input{
		ActorID: officer, ApprovedAmount: ptr(int64(4000)), BudgetID: &foreign.BudgetID,
	})
	require.ErrorIs(t, err, apperror.ErrValidation)

	got, err := f.svc.Get(ctx, app.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEndorsedToSSC, got.ApplicationStatus)
	assert.Nil(t, got.ApplicationBudgetID)

	b, err := f.ledger.Get(ctx, foreign.BudgetID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.BudgetReservedAmount)
}

func TestZeroAwardSkipsReservation(t *testing.T) {
	f := newFixture(t)
	app := f.toEndorsed(t, 4000)

	res := f.apply(t, app.ApplicationID, OpApprove, Input{ApprovedAmount: ptr(int64(0))})
	assert.Nil(t, res.Transaction)
	assert.Nil(t, res.Application.ApplicationBudgetID)
	assert.Equal(t, model.StatusApproved, res.Application.ApplicationStatus)
}

func TestAuditFailureRollsBackTransition(t *testing.T) {
	f := newFixture(t)
	app := f.draft(t, 1000)
	f.rec.FailRecord = errors.New("audit sink unavailable")

	_, err := f.svc.Apply(context.Background(), app.ApplicationID, OpSubmit, Input{ActorID: officer})
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))

	got, err := f.svc.Get(context.Background(), app.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, got.ApplicationStatus)
	assert.Equal(t, int64(1), got.ApplicationHistorySeq)
}

func TestNotificationFailureIsAWarning(t *testing.T) {
	f := newFixture(t)
	app := f.draft(t, 1000)
	f.rec.FailNotify = errors.New("smtp timeout")

	res := f.apply(t, app.ApplicationID, OpSubmit, Input{})
	assert.Equal(t, model.StatusSubmitted, res.Application.ApplicationStatus)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "notification")
}

type failingPayouts struct{ db *Service }

func (p failingPayouts) RequestPayout(ctx context.Context, id uuid.UUID) (*disbModel.DisbursementModel, error) {
	var d disbModel.DisbursementModel
	if err := p.db.DB.Model(&d).Where("disbursement_id = ?", id).Update("disbursement_status", disbModel.StatusFailed).Error; err != nil {
		return nil, err
	}
	if err := p.db.DB.Where("disbursement_id = ?", id).Take(&d).Error; err != nil {
		return nil, err
	}
	return &d, errors.New("iris rejected beneficiary")
}

func TestGatewayFailureStillAllowsManualRelease(t *testing.T) {
	f := newFixture(t)
	f.budget(t, 10000)
	f.svc.Payouts = failingPayouts{db: f.svc}
	app := f.toEndorsed(t, 3000)
	f.apply(t, app.ApplicationID, OpApprove, Input{ApprovedAmount: ptr(int64(3000))})

	in := validInput(OpProcess, f.clock)
	in.Disbursement.Method = disbModel.MethodGateway
	res := f.apply(t, app.ApplicationID, OpProcess, in)
	assert.Equal(t, model.StatusProcessing, res.Application.ApplicationStatus)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "gateway_payout")
	assert.Equal(t, disbModel.StatusFailed, res.Disbursement.DisbursementStatus)

	res = f.apply(t, app.ApplicationID, OpRelease, Input{ReferenceNumber: "MANUAL-77"})
	assert.Equal(t, disbModel.StatusCompleted, res.Disbursement.DisbursementStatus)
}

func TestAutomaticInterviewSlot(t *testing.T) {
	f := newFixture(t)
	app := f.draft(t, 1000)
	for _, op := range []Operation{OpSubmit, OpReview, OpApproveForVerification, OpVerifyEnrollment} {
		f.apply(t, app.ApplicationID, op, Input{})
	}
	res := f.apply(t, app.ApplicationID, OpScheduleInterview, Input{AutoSchedule: true})
	want := f.svc.Interview.NextSlot(f.clock)
	assert.True(t, want.Equal(*res.Application.ApplicationInterviewAt), "got %v want %v", res.Application.ApplicationInterviewAt, want)
}

func TestConcurrentApprovalsReserveOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	budgetID := f.budget(t, 10000)
	app := f.toEndorsed(t, 4000)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Apply(ctx, app.ApplicationID, OpApprove, Input{ActorID: officer, ApprovedAmount: ptr(int64(4000))})
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)
	}
	assert.Equal(t, 1, ok)

	b, err := f.ledger.Get(ctx, budgetID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), b.BudgetReservedAmount)
}

func TestStoredHistoryReplaysToProjection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.budget(t, 50000)
	app := f.toEndorsed(t, 5000)

	f.apply(t, app.ApplicationID, OpReturnForRevision, Input{Stage: model.StageFinancialReview, Note: "bank statement unreadable", RevisionTarget: RevisionToCompliance})
	f.apply(t, app.ApplicationID, OpResolveCompliance, Input{})
	for _, op := range []Operation{OpReview, OpApproveForVerification, OpVerifyEnrollment, OpScheduleInterview, OpCompleteInterview, OpEndorseToSSC} {
		f.apply(t, app.ApplicationID, op, validInput(op, f.clock))
	}
	f.apply(t, app.ApplicationID, OpApprove, Input{ApprovedAmount: ptr(int64(4500))})

	report, err := f.svc.Replay(ctx, app.ApplicationID)
	require.NoError(t, err)
	assert.True(t, report.Consistent, "stored %+v replayed %+v", report.Stored, report.Replayed)
	assert.Equal(t, 2, report.Replayed.SSCCycle)
	assert.Equal(t, int64(4500), *report.Replayed.ApprovedAmount)

	rows, err := f.svc.History(ctx, app.ApplicationID)
	require.NoError(t, err)
	for i, r := range rows {
		assert.Equal(t, int64(i+1), r.StatusHistorySeq, fmt.Sprintf("row %d", i))
	}
	twice, err := Replay(append(rows, rows...))
	require.NoError(t, err)
	assert.True(t, twice.Equal(report.Replayed))
}
