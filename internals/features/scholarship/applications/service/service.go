package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	periodModel "beasiswaku_backend/internals/features/scholarship/academic_periods/model"
	"beasiswaku_backend/internals/features/scholarship/applications/model"
	budgetModel "beasiswaku_backend/internals/features/scholarship/budgets/model"
	budgetService "beasiswaku_backend/internals/features/scholarship/budgets/service"
	disbModel "beasiswaku_backend/internals/features/scholarship/disbursements/model"
	"beasiswaku_backend/internals/features/scholarship/events"
	"beasiswaku_backend/internals/helpers/apperror"
	"beasiswaku_backend/internals/helpers/cache"
	"beasiswaku_backend/internals/metrics"
)

// Payouts sends a pending gateway disbursement to the payment provider.
// On failure it returns the row as it now stands alongside the error.
type Payouts interface {
	RequestPayout(ctx context.Context, disbursementID uuid.UUID) (*disbModel.DisbursementModel, error)
}

type Service struct {
	DB        *gorm.DB
	Ledger    *budgetService.Ledger
	Payouts   Payouts
	Audit     events.AuditTrail
	Notifier  events.NotificationGateway
	Cache     *cache.Loader
	Interview InterviewPolicy
	Log       logrus.FieldLogger
	Now       func() time.Time
}

func New(db *gorm.DB, ledger *budgetService.Ledger, audit events.AuditTrail, notifier events.NotificationGateway, loader *cache.Loader, log logrus.FieldLogger) *Service {
	if audit == nil {
		audit = events.Nop{}
	}
	if notifier == nil {
		notifier = events.Nop{}
	}
	return &Service{
		DB:        db,
		Ledger:    ledger,
		Audit:     audit,
		Notifier:  notifier,
		Cache:     loader,
		Interview: InterviewPolicy{LeadDays: 3, Hour: 9},
		Log:       log,
		Now:       time.Now,
	}
}

func (s *Service) now() time.Time { return s.Now().UTC() }

// Result is what a committed transition hands back. Warnings collects
// best-effort follow-ups that failed after commit.
type Result struct {
	Application  *model.ApplicationModel             `json:"application"`
	History      *model.StatusHistoryModel           `json:"history"`
	Transaction  *budgetModel.BudgetTransactionModel `json:"budget_transaction,omitempty"`
	Disbursement *disbModel.DisbursementModel        `json:"disbursement,omitempty"`
	Warnings     []string                            `json:"warnings,omitempty"`
	Change       Change                              `json:"-"`

	event   events.Event
	budgets []uuid.UUID
	payout  *uuid.UUID
}

/* =========================================================
   Locking
========================================================= */

// LockApplication loads the application FOR UPDATE. Every transition on an
// application serializes on this lock, which also orders its history rows.
func LockApplication(tx *gorm.DB, id uuid.UUID) (*model.ApplicationModel, error) {
	var app model.ApplicationModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("application_id = ?", id).
		Take(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("application")
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

/* =========================================================
   Transitions
========================================================= */

// Apply runs op against the application in one transaction and then the
// post-commit follow-ups.
func (s *Service) Apply(ctx context.Context, id uuid.UUID, op Operation, in Input) (*Result, error) {
	var res *Result
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := LockApplication(tx, id)
		if err != nil {
			return err
		}
		res, err = s.ApplyLocked(ctx, tx, app, op, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Finish(ctx, res)
	return res, nil
}

// ApplyLocked does the transition inside tx; app must already be locked.
// The caller commits and then calls Finish.
func (s *Service) ApplyLocked(ctx context.Context, tx *gorm.DB, app *model.ApplicationModel, op Operation, in Input) (res *Result, err error) {
	defer func() { metrics.ObserveTransition(string(op), err) }()

	now := s.now()
	if op == OpScheduleInterview && in.InterviewAt == nil && in.AutoSchedule {
		slot := s.Interview.NextSlot(now)
		in.InterviewAt = &slot
	}

	next, ch, err := Transition(*app, op, in, now)
	if err != nil {
		return nil, err
	}
	res = &Result{Change: ch}

	if err := s.settle(ctx, tx, app, &next, in, res); err != nil {
		return nil, err
	}

	next.ApplicationHistorySeq = app.ApplicationHistorySeq + 1
	if err := tx.Save(&next).Error; err != nil {
		return nil, err
	}

	hist, err := appendHistory(tx, next.ApplicationID, next.ApplicationHistorySeq, res.Change)
	if err != nil {
		return nil, err
	}

	evt := events.New(events.KindStatusChanged, ch.ActorID, string(op), now).ForApplication(next.ApplicationID)
	evt.FromStatus, evt.ToStatus = string(ch.From), string(ch.To)
	evt.Note = ch.Note
	evt.Payload = res.Change.Payload.Fields()
	if next.ApplicationBudgetID != nil {
		evt = evt.ForBudget(*next.ApplicationBudgetID)
	}
	if err := s.Audit.Record(ctx, evt); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "audit trail rejected status change", err)
	}

	res.Application = &next
	res.History = hist
	res.event = evt
	return res, nil
}

// settle performs the money side of a transition: reservation on approval,
// release on rejection or withdrawal, and disbursement bookkeeping.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, app, next *model.ApplicationModel, in Input, res *Result) error {
	actor := res.Change.ActorID
	ref := budgetModel.ApplicationRef{ApplicationID: app.ApplicationID}

	switch res.Change.Operation {
	case OpApprove, OpSSCFinalApproval:
		res.Change.Payload.BudgetID = nil
		amount := *next.ApplicationApprovedAmount
		if amount == 0 {
			return nil
		}
		explicit := in.BudgetID
		if explicit == nil {
			explicit = app.ApplicationBudgetID
		}
		b, err := s.Ledger.ResolveBudgetTx(tx, explicit, app.ApplicationSchoolID, app.ApplicationAcademicPeriodID, amount)
		if err != nil {
			return annotate(err, res.Change)
		}
		row, err := s.Ledger.ReserveTx(ctx, tx, b.BudgetID, amount, ref, actor)
		if err != nil {
			return annotate(err, res.Change)
		}
		id := b.BudgetID
		next.ApplicationBudgetID = &id
		res.Change.Payload.BudgetID = &id
		res.Change.Payload.ReservedAmount = amount
		res.Transaction = row
		res.budgets = append(res.budgets, id)

	case OpReject, OpWithdraw, OpSSCFinalRejection:
		if app.ApplicationBudgetID != nil {
			budgetID := *app.ApplicationBudgetID
			outstanding, err := budgetService.OutstandingTx(tx, budgetID, app.ApplicationID)
			if err != nil {
				return err
			}
			if outstanding > 0 {
				row, err := s.Ledger.ReleaseTx(ctx, tx, budgetID, outstanding, ref, actor)
				if err != nil {
					return err
				}
				res.Change.Payload.ReleasedAmount = outstanding
				res.Transaction = row
				res.budgets = append(res.budgets, budgetID)
			}
		}
		reason := "application " + string(next.ApplicationStatus)
		if err := tx.Model(&disbModel.DisbursementModel{}).
			Where("disbursement_application_id = ? AND disbursement_status = ?", app.ApplicationID, disbModel.StatusPending).
			Updates(map[string]any{
				"disbursement_status":         disbModel.StatusFailed,
				"disbursement_failure_reason": reason,
				"disbursement_updated_at":     res.Change.At,
			}).Error; err != nil {
			return err
		}

	case OpProcess:
		d := in.Disbursement
		row := disbModel.DisbursementModel{
			DisbursementID:                 uuid.New(),
			DisbursementApplicationID:      app.ApplicationID,
			DisbursementBudgetID:           app.ApplicationBudgetID,
			DisbursementAmount:             *app.ApplicationApprovedAmount,
			DisbursementMethod:             d.Method,
			DisbursementStatus:             disbModel.StatusPending,
			DisbursementBeneficiaryName:    optional(d.BeneficiaryName),
			DisbursementBeneficiaryAccount: optional(d.BeneficiaryAccount),
			DisbursementBeneficiaryBank:    optional(d.BeneficiaryBank),
			DisbursementBeneficiaryEmail:   optional(d.BeneficiaryEmail),
			DisbursementProcessedBy:        actor,
			DisbursementCreatedAt:          res.Change.At,
			DisbursementUpdatedAt:          res.Change.At,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		res.Disbursement = &row
		res.Change.Payload.DisbursementID = &row.DisbursementID
		if d.Method == disbModel.MethodGateway {
			res.payout = &row.DisbursementID
		}

	case OpRelease:
		var d disbModel.DisbursementModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("disbursement_application_id = ? AND disbursement_status IN ?", app.ApplicationID,
				[]disbModel.Status{disbModel.StatusPending, disbModel.StatusFailed}).
			Order("disbursement_created_at DESC").
			Take(&d).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			e := apperror.InvalidTransition(string(OpRelease), string(app.ApplicationStatus))
			e.Message = "no disbursement is waiting to be released"
			return e
		}
		if err != nil {
			return err
		}
		refNo := res.Change.Payload.ReferenceNumber
		at := res.Change.At
		d.DisbursementStatus = disbModel.StatusCompleted
		d.DisbursementReferenceNumber = &refNo
		d.DisbursementDisbursedAt = &at
		d.DisbursementFailureReason = nil
		d.DisbursementUpdatedAt = at
		if err := tx.Model(&disbModel.DisbursementModel{}).
			Where("disbursement_id = ?", d.DisbursementID).
			Updates(map[string]any{
				"disbursement_status":           d.DisbursementStatus,
				"disbursement_reference_number": refNo,
				"disbursement_disbursed_at":     at,
				"disbursement_failure_reason":   nil,
				"disbursement_updated_at":       at,
			}).Error; err != nil {
			return err
		}
		res.Disbursement = &d
		res.Change.Payload.DisbursementID = &d.DisbursementID
		if d.DisbursementBudgetID != nil {
			row, err := s.Ledger.RecordDisbursementTx(ctx, tx, *d.DisbursementBudgetID, d.DisbursementAmount,
				budgetModel.DisbursementRef{DisbursementID: d.DisbursementID, ApplicationID: app.ApplicationID}, actor)
			if err != nil {
				return err
			}
			res.Transaction = row
			res.budgets = append(res.budgets, *d.DisbursementBudgetID)
		}
	}
	return nil
}

func annotate(err error, ch Change) error {
	if e, ok := apperror.As(err); ok && e.Operation == "" {
		e.Operation = string(ch.Operation)
		e.CurrentStatus = string(ch.From)
	}
	return err
}

func appendHistory(tx *gorm.DB, appID uuid.UUID, seq int64, ch Change) (*model.StatusHistoryModel, error) {
	body, err := sonic.Marshal(ch.Payload)
	if err != nil {
		return nil, err
	}
	row := model.StatusHistoryModel{
		StatusHistoryID:            uuid.New(),
		StatusHistoryApplicationID: appID,
		StatusHistorySeq:           seq,
		StatusHistoryOperation:     string(ch.Operation),
		StatusHistoryFromStatus:    ch.From,
		StatusHistoryStatus:        ch.To,
		StatusHistoryActorID:       ch.ActorID,
		StatusHistoryNote:          optional(ch.Note),
		StatusHistoryPayload:       datatypes.JSON(body),
		StatusHistoryCreatedAt:     ch.At,
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Finish runs after commit: cache invalidation, notification and gateway
// payout. Failures become warnings on res.
func (s *Service) Finish(ctx context.Context, res *Result) {
	if res == nil || res.Application == nil {
		return
	}
	appID := res.Application.ApplicationID
	s.invalidate(ctx, appID, res.budgets...)

	log := s.Log.WithFields(logrus.Fields{
		"application_id": appID.String(),
		"operation":      string(res.Change.Operation),
		"from":           string(res.Change.From),
		"to":             string(res.Change.To),
	})
	log.Info("application transitioned")

	if err := s.Notifier.Notify(ctx, res.event); err != nil {
		s.warn(log, res, "notification", err)
	}
	if res.payout != nil && s.Payouts != nil {
		d, err := s.Payouts.RequestPayout(ctx, *res.payout)
		if d != nil {
			res.Disbursement = d
		}
		if err != nil {
			s.warn(log, res, "gateway_payout", err)
		}
	}
}

func (s *Service) warn(log logrus.FieldLogger, res *Result, step string, err error) {
	metrics.ObserveSideEffectFailure(step)
	dErr := apperror.Downstream(step, err)
	log.WithError(err).WithField("step", step).Warn("side effect failed")
	res.Warnings = append(res.Warnings, dErr.Error())
}

// Warn records a failed follow-up that a caller outside this package ran
// after commit.
func (s *Service) Warn(res *Result, step string, err error) {
	log := s.Log.WithField("operation", string(res.Change.Operation))
	if res.Application != nil {
		log = log.WithField("application_id", res.Application.ApplicationID.String())
	}
	s.warn(log, res, step, err)
}

// Forget drops the cached projection of an application whose row changed
// outside a transition.
func (s *Service) Forget(ctx context.Context, appID uuid.UUID) {
	s.invalidate(ctx, appID)
}

func (s *Service) invalidate(ctx context.Context, appID uuid.UUID, budgetIDs ...uuid.UUID) {
	if s.Cache == nil {
		return
	}
	keys := []string{cache.ApplicationKey(appID)}
	for _, id := range budgetIDs {
		keys = append(keys, cache.BudgetKey(id))
	}
	s.Cache.Invalidate(ctx, keys...)
}

/* =========================================================
   Drafts
========================================================= */

type CreateInput struct {
	StudentID        uuid.UUID
	SchoolID         uuid.UUID
	AcademicPeriodID uuid.UUID
	RequestedAmount  int64
	Purpose          string
	ActorID          uuid.UUID
}

// Create opens a draft and numbers it. The history log starts with a
// creation row at seq 1.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.ApplicationModel, error) {
	if in.ActorID == uuid.Nil {
		return nil, apperror.New(apperror.KindUnauthorized, "creating an application requires an authenticated actor")
	}
	if in.StudentID == uuid.Nil {
		return nil, apperror.Field("student_id", "is required")
	}
	if in.SchoolID == uuid.Nil {
		return nil, apperror.Field("school_id", "is required")
	}
	if in.RequestedAmount < 0 {
		return nil, apperror.Field("requested_amount", "must not be negative")
	}

	now := s.now()
	app := model.ApplicationModel{
		ApplicationID:               uuid.New(),
		ApplicationStudentID:        in.StudentID,
		ApplicationSchoolID:         in.SchoolID,
		ApplicationAcademicPeriodID: in.AcademicPeriodID,
		ApplicationStatus:           model.StatusDraft,
		ApplicationRequestedAmount:  in.RequestedAmount,
		ApplicationPurpose:          optional(in.Purpose),
		ApplicationStageStatus:      datatypes.NewJSONType(model.StageStatusMap{}),
		ApplicationHistorySeq:       1,
		ApplicationCreatedAt:        now,
		ApplicationUpdatedAt:        now,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var period periodModel.AcademicPeriodModel
		err := tx.Where("academic_period_id = ? AND academic_period_is_active = ?", in.AcademicPeriodID, true).
			Take(&period).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Field("academic_period_id", "must reference an active academic period")
		}
		if err != nil {
			return err
		}

		number, err := nextNumber(tx, now.Year())
		if err != nil {
			return err
		}
		app.ApplicationNumber = number
		if err := tx.Create(&app).Error; err != nil {
			return err
		}

		ch := Change{Operation: OpCreate, To: model.StatusDraft, ActorID: in.ActorID, At: now}
		if _, err := appendHistory(tx, app.ApplicationID, 1, ch); err != nil {
			return err
		}
		evt := events.New(events.KindApplicationCreated, in.ActorID, string(OpCreate), now).ForApplication(app.ApplicationID)
		evt.ToStatus = string(model.StatusDraft)
		evt.Payload = map[string]any{"application_number": number, "requested_amount": in.RequestedAmount}
		if err := s.Audit.Record(ctx, evt); err != nil {
			return apperror.Wrap(apperror.KindInternal, "audit trail rejected application creation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{
		"application_id":     app.ApplicationID.String(),
		"application_number": app.ApplicationNumber,
	}).Info("application created")
	return &app, nil
}

type UpdateDraftInput struct {
	ActorID         uuid.UUID
	RequestedAmount *int64
	Purpose         *string
}

// UpdateDraft edits the free fields of a draft. Anything past draft is
// changed only by transitions.
func (s *Service) UpdateDraft(ctx context.Context, id uuid.UUID, in UpdateDraftInput) (*model.ApplicationModel, error) {
	if in.ActorID == uuid.Nil {
		return nil, apperror.New(apperror.KindUnauthorized, "editing an application requires an authenticated actor")
	}
	if in.RequestedAmount != nil && *in.RequestedAmount < 0 {
		return nil, apperror.Field("requested_amount", "must not be negative")
	}

	var app *model.ApplicationModel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if app, err = LockApplication(tx, id); err != nil {
			return err
		}
		if app.ApplicationStatus != model.StatusDraft {
			e := apperror.InvalidTransition("update_draft", string(app.ApplicationStatus))
			e.Message = "only drafts can be edited"
			return e
		}
		updates := map[string]any{"application_updated_at": s.now()}
		if in.RequestedAmount != nil {
			app.ApplicationRequestedAmount = *in.RequestedAmount
			updates["application_requested_amount"] = *in.RequestedAmount
		}
		if in.Purpose != nil {
			app.ApplicationPurpose = optional(*in.Purpose)
			updates["application_purpose"] = app.ApplicationPurpose
		}
		return tx.Model(&model.ApplicationModel{}).Where("application_id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return s.Get(ctx, id)
}

/* =========================================================
   Reads
========================================================= */

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.ApplicationModel, error) {
	load := func() (model.ApplicationModel, error) {
		var app model.ApplicationModel
		err := s.DB.WithContext(ctx).Where("application_id = ?", id).Take(&app).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return app, apperror.NotFound("application")
		}
		return app, err
	}
	var (
		app model.ApplicationModel
		err error
	)
	if s.Cache != nil {
		app, err = cache.Remember(ctx, s.Cache, cache.ApplicationKey(id), load)
	} else {
		app, err = load()
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

type ListFilter struct {
	StudentID        *uuid.UUID
	SchoolID         *uuid.UUID
	AcademicPeriodID *uuid.UUID
	Statuses         []model.ApplicationStatus
	Search           string
	Offset, Limit    int
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]model.ApplicationModel, int64, error) {
	q := s.DB.WithContext(ctx).Model(&model.ApplicationModel{})
	if f.StudentID != nil {
		q = q.Where("application_student_id = ?", *f.StudentID)
	}
	if f.SchoolID != nil {
		q = q.Where("application_school_id = ?", *f.SchoolID)
	}
	if f.AcademicPeriodID != nil {
		q = q.Where("application_academic_period_id = ?", *f.AcademicPeriodID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("application_status IN ?", f.Statuses)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		q = q.Where("application_number LIKE ?", "%"+strings.ToUpper(term)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.ApplicationModel
	err := q.Order("application_created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&rows).Error
	return rows, total, err
}

func (s *Service) History(ctx context.Context, id uuid.UUID) ([]model.StatusHistoryModel, error) {
	var rows []model.StatusHistoryModel
	err := s.DB.WithContext(ctx).
		Where("status_history_application_id = ?", id).
		Order("status_history_seq ASC").
		Find(&rows).Error
	return rows, err
}

type ReplayReport struct {
	Stored     Projection `json:"stored"`
	Replayed   Projection `json:"replayed"`
	Entries    int        `json:"entries"`
	Consistent bool       `json:"consistent"`
}

// Replay folds the stored history and compares it with the live row.
func (s *Service) Replay(ctx context.Context, id uuid.UUID) (*ReplayReport, error) {
	var app model.ApplicationModel
	err := s.DB.WithContext(ctx).Where("application_id = ?", id).Take(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("application")
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.History(ctx, id)
	if err != nil {
		return nil, err
	}
	replayed, err := Replay(rows)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "status history does not replay", err)
	}
	stored := ProjectionOf(app)
	return &ReplayReport{
		Stored:     stored,
		Replayed:   replayed,
		Entries:    len(rows),
		Consistent: stored.Equal(replayed),
	}, nil
}
