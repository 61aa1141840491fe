package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beasiswaku_backend/internals/configs"
	"beasiswaku_backend/internals/constants"
	"beasiswaku_backend/internals/databases/testdb"
	periodModel "beasiswaku_backend/internals/features/scholarship/academic_periods/model"
	appModel "beasiswaku_backend/internals/features/scholarship/applications/model"
	appService "beasiswaku_backend/internals/features/scholarship/applications/service"
	budgetService "beasiswaku_backend/internals/features/scholarship/budgets/service"
	disbService "beasiswaku_backend/internals/features/scholarship/disbursements/service"
	"beasiswaku_backend/internals/features/scholarship/events"
	scholarService "beasiswaku_backend/internals/features/scholarship/scholars/service"
	sscModel "beasiswaku_backend/internals/features/scholarship/ssc_reviews/model"
	sscService "beasiswaku_backend/internals/features/scholarship/ssc_reviews/service"
	"beasiswaku_backend/internals/helpers/apperror"
)

const secret = "route-secret"

var (
	officer = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	docV    = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	finA    = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	acadR   = uuid.MustParse("00000000-0000-0000-0000-0000000000d1")
	chair   = uuid.MustParse("00000000-0000-0000-0000-0000000000e1")
	admin   = uuid.MustParse("00000000-0000-0000-0000-0000000000f1")
)

type server struct {
	app    *fiber.App
	apps   *appService.Service
	engine *sscService.Engine
	ledger *budgetService.Ledger
	school uuid.UUID
	period uuid.UUID
	budget uuid.UUID
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()
	db := testdb.Open(t)
	log := logrus.New()
	log.SetOutput(io.Discard)
	rec := &events.Recorder{}

	s := &server{school: uuid.New()}
	s.ledger = budgetService.NewLedger(db, rec, nil, log)
	s.apps = appService.New(db, s.ledger, rec, rec, nil, log)
	s.engine = sscService.NewEngine(db, s.apps, nil, scholarService.NewGormRegistry(db), log)

	period := periodModel.AcademicPeriodModel{
		AcademicPeriodSchoolYear: "2025-2026",
		AcademicPeriodTerm:       "second_semester",
		AcademicPeriodName:       "Second Semester 2025-2026",
		AcademicPeriodStartDate:  time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		AcademicPeriodEndDate:    time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		AcademicPeriodIsActive:   true,
	}
	require.NoError(t, db.Create(&period).Error)
	s.period = period.AcademicPeriodID

	b, err := s.ledger.CreateBudget(ctx, budgetService.CreateBudgetInput{
		Name:             "School budget",
		SchoolID:         &s.school,
		AcademicPeriodID: s.period,
		Allocated:        100000,
		ValidFrom:        time.Now().Add(-time.Hour),
		ActorID:          admin,
	})
	require.NoError(t, err)
	s.budget = b.BudgetID

	assign := map[uuid.UUID]string{
		docV:  constants.SSCRoleDocumentVerifier,
		finA:  constants.SSCRoleFinancialAnalyst,
		acadR: constants.SSCRoleAcademicReviewer,
		chair: constants.SSCRoleChairperson,
	}
	for user, role := range assign {
		require.NoError(t, db.Create(&sscModel.RoleAssignmentModel{
			RoleAssignmentID:         uuid.New(),
			RoleAssignmentUserID:     user,
			RoleAssignmentRole:       role,
			RoleAssignmentIsActive:   true,
			RoleAssignmentAssignedAt: time.Now().Add(-24 * time.Hour),
		}).Error)
	}

	s.app = fiber.New(fiber.Config{ErrorHandler: apperror.ErrorHandler})
	SetupRoutes(s.app, Deps{
		Config:        configs.Config{JWTSecret: secret, StalledStageAfter: 72 * time.Hour},
		DB:            db,
		Log:           log,
		Applications:  s.apps,
		Engine:        s.engine,
		Ledger:        s.ledger,
		Disbursements: disbService.New(db, nil, log),
	})
	return s
}

func token(t *testing.T, user uuid.UUID, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   user.String(),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

type reply struct {
	Status    int             `json:"-"`
	ErrorCode string          `json:"error_code"`
	Data      json.RawMessage `json:"data"`
}

func (s *server) do(t *testing.T, method, path, tok, body string) reply {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if tok != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	out := reply{Status: resp.StatusCode}
	_ = json.Unmarshal(raw, &out)
	return out
}

// endorsed walks a new application to endorsed_to_ssc through the service.
func (s *server) endorsed(t *testing.T, requested int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	app, err := s.apps.Create(ctx, appService.CreateInput{
		StudentID:        uuid.New(),
		SchoolID:         s.school,
		AcademicPeriodID: s.period,
		RequestedAmount:  requested,
		Purpose:          "tuition",
		ActorID:          officer,
	})
	require.NoError(t, err)

	score := 80
	steps := []struct {
		op appService.Operation
		in appService.Input
	}{
		{appService.OpSubmit, appService.Input{}},
		{appService.OpReview, appService.Input{}},
		{appService.OpApproveForVerification, appService.Input{}},
		{appService.OpVerifyEnrollment, appService.Input{}},
		{appService.OpScheduleInterview, appService.Input{AutoSchedule: true}},
		{appService.OpCompleteInterview, appService.Input{InterviewScore: &score}},
		{appService.OpEndorseToSSC, appService.Input{}},
	}
	for _, st := range steps {
		st.in.ActorID = officer
		_, err := s.apps.Apply(ctx, app.ApplicationID, st.op, st.in)
		require.NoError(t, err, "%s", st.op)
	}
	return app.ApplicationID
}

func (s *server) status(t *testing.T, id uuid.UUID) appModel.ApplicationStatus {
	t.Helper()
	app, err := s.apps.Get(context.Background(), id)
	require.NoError(t, err)
	return app.ApplicationStatus
}

func TestAnonymousRequestsAreUnauthorized(t *testing.T) {
	s := newServer(t)
	id := s.endorsed(t, 5000)

	for _, path := range []string{
		"/api/applications/" + id.String() + "/approve",
		"/api/applications/" + id.String() + "/stages/document_verification/approve",
		"/api/applications/" + id.String() + "/ssc/final-approval",
		"/api/budgets/" + s.budget.String() + "/adjust",
	} {
		r := s.do(t, fiber.MethodPost, path, "", `{}`)
		assert.Equal(t, fiber.StatusUnauthorized, r.Status, path)
		assert.Equal(t, string(apperror.KindUnauthorized), r.ErrorCode, path)
	}
	assert.Equal(t, appModel.StatusEndorsedToSSC, s.status(t, id))
}

func TestHealthStaysPublic(t *testing.T) {
	s := newServer(t)
	r := s.do(t, fiber.MethodGet, "/healthz", "", "")
	assert.Equal(t, fiber.StatusOK, r.Status)
}

func TestStudentCannotRunStaffOperations(t *testing.T) {
	s := newServer(t)
	id := s.endorsed(t, 5000)
	student := token(t, uuid.New(), constants.RoleStudent)

	cases := map[string]string{
		"approve":     "/api/applications/" + id.String() + "/approve",
		"reject":      "/api/applications/" + id.String() + "/reject",
		"stage":       "/api/applications/" + id.String() + "/stages/financial_review/approve",
		"final":       "/api/applications/" + id.String() + "/ssc/final-approval",
		"process":     "/api/applications/" + id.String() + "/process",
		"budget":      "/api/budgets/",
		"adjustments": "/api/budgets/" + s.budget.String() + "/adjust",
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			r := s.do(t, fiber.MethodPost, path, student, `{}`)
			assert.Equal(t, fiber.StatusForbidden, r.Status)
		})
	}

	r := s.do(t, fiber.MethodGet, "/api/budgets/", student, "")
	assert.Equal(t, fiber.StatusForbidden, r.Status)
	assert.Equal(t, appModel.StatusEndorsedToSSC, s.status(t, id))
}

func TestFinalDecisionBelongsToChairperson(t *testing.T) {
	s := newServer(t)
	id := s.endorsed(t, 5000)
	base := "/api/applications/" + id.String()

	for stage, user := range map[string]uuid.UUID{
		constants.StageDocumentVerification: docV,
		constants.StageFinancialReview:      finA,
		constants.StageAcademicReview:       acadR,
	} {
		r := s.do(t, fiber.MethodPost, base+"/stages/"+stage+"/approve", token(t, user, constants.RoleSSCMember), `{"notes":"ok"}`)
		require.Equal(t, fiber.StatusOK, r.Status, stage)
	}
	require.Equal(t, appModel.StatusSSCFinalApproval, s.status(t, id))

	officerTok := token(t, officer, constants.RoleOfficer)

	r := s.do(t, fiber.MethodPost, base+"/ssc/final-approval", officerTok, `{}`)
	assert.Equal(t, fiber.StatusForbidden, r.Status)

	// an officer cannot short-circuit the committee with the plain approve
	r = s.do(t, fiber.MethodPost, base+"/approve", officerTok, `{}`)
	assert.Equal(t, fiber.StatusConflict, r.Status)
	assert.Equal(t, string(apperror.KindInvalidStateTransition), r.ErrorCode)

	// a committee member without the chairperson assignment is refused by the engine
	r = s.do(t, fiber.MethodPost, base+"/ssc/final-approval", token(t, docV, constants.RoleChairperson), `{}`)
	assert.Equal(t, fiber.StatusForbidden, r.Status)
	assert.Equal(t, appModel.StatusSSCFinalApproval, s.status(t, id))

	r = s.do(t, fiber.MethodPost, base+"/ssc/final-approval", token(t, chair, constants.RoleChairperson), `{"reasoning":"meets criteria"}`)
	require.Equal(t, fiber.StatusOK, r.Status)
	assert.Equal(t, appModel.StatusApproved, s.status(t, id))

	b, err := s.ledger.Get(context.Background(), s.budget)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, b.BudgetReservedAmount)
}

func TestBudgetLedgerMovesOnlyThroughApplications(t *testing.T) {
	s := newServer(t)
	adminTok := token(t, admin, constants.RoleAdmin)
	base := "/api/budgets/" + s.budget.String()

	for _, op := range []string{"reserve", "release", "disburse", "spend"} {
		r := s.do(t, fiber.MethodPost, base+"/"+op, adminTok, `{"amount":100}`)
		assert.Equal(t, fiber.StatusNotFound, r.Status, op)
	}

	r := s.do(t, fiber.MethodPost, base+"/adjust", token(t, officer, constants.RoleOfficer), `{"amount":100}`)
	assert.Equal(t, fiber.StatusForbidden, r.Status)
	r = s.do(t, fiber.MethodPost, base+"/adjust", token(t, uuid.New(), constants.RoleAccountant), `{"amount":100}`)
	assert.Equal(t, fiber.StatusForbidden, r.Status)

	b, err := s.ledger.Get(context.Background(), s.budget)
	require.NoError(t, err)
	assert.EqualValues(t, 100000, b.BudgetAllocatedAmount)
	assert.Zero(t, b.BudgetReservedAmount)

	r = s.do(t, fiber.MethodGet, base+"/reconcile", token(t, uuid.New(), constants.RoleAccountant), "")
	assert.Equal(t, fiber.StatusOK, r.Status)
}

func TestStageReplayOverHTTP(t *testing.T) {
	s := newServer(t)
	id := s.endorsed(t, 5000)
	base := "/api/applications/" + id.String()

	r := s.do(t, fiber.MethodPost, base+"/stages/financial_review/approve",
		token(t, finA, constants.RoleSSCMember), `{"notes":"ok","data":{"recommended_amount":4000}}`)
	require.Equal(t, fiber.StatusOK, r.Status)

	// the financial analyst has no assignment for document verification
	r = s.do(t, fiber.MethodPost, base+"/stages/document_verification/approve",
		token(t, finA, constants.RoleSSCMember), `{"notes":"ok"}`)
	assert.Equal(t, fiber.StatusForbidden, r.Status)

	r = s.do(t, fiber.MethodGet, base+"/stage-replay", token(t, officer, constants.RoleOfficer), "")
	require.Equal(t, fiber.StatusOK, r.Status)
	var report sscService.StageReplayReport
	require.NoError(t, json.Unmarshal(r.Data, &report))
	assert.True(t, report.Consistent)
	assert.Equal(t, 1, report.Reviews)
	assert.Equal(t, 1, report.SSCCycle)

	r = s.do(t, fiber.MethodGet, base+"/stage-replay", token(t, uuid.New(), constants.RoleStudent), "")
	assert.Equal(t, fiber.StatusForbidden, r.Status)
}
