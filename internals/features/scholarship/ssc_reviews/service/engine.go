// Package service runs the SSC parallel review: three stage tracks that
// reviewers settle independently, joined by the chairperson's decision.
package service

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"beasiswaku_backend/internals/constants"
	appModel "beasiswaku_backend/internals/features/scholarship/applications/model"
	appService "beasiswaku_backend/internals/features/scholarship/applications/service"
	"beasiswaku_backend/internals/features/scholarship/events"
	scholarService "beasiswaku_backend/internals/features/scholarship/scholars/service"
	"beasiswaku_backend/internals/features/scholarship/ssc_reviews/model"
	"beasiswaku_backend/internals/helpers/apperror"
	"beasiswaku_backend/internals/metrics"
)

const (
	OpApproveStage         = "approve_stage"
	OpRejectStage          = "reject_stage"
	OpRequestStageRevision = "request_stage_revision"
)

var stageOperation = map[appModel.StageOutcome]string{
	appModel.StageApproved:          OpApproveStage,
	appModel.StageRejected:          OpRejectStage,
	appModel.StageRevisionRequested: OpRequestStageRevision,
}

// Registry enrolls awarded students. Enrolling twice must be harmless.
type Registry interface {
	Enroll(ctx context.Context, e scholarService.Enrollment) error
}

type Engine struct {
	DB       *gorm.DB
	Apps     *appService.Service
	Auth     Authorizer
	Registry Registry
	Audit    events.AuditTrail
	Notifier events.NotificationGateway
	Log      logrus.FieldLogger
	Now      func() time.Time
}

func NewEngine(db *gorm.DB, apps *appService.Service, auth Authorizer, registry Registry, log logrus.FieldLogger) *Engine {
	if auth == nil {
		auth = GormAuthorizer{}
	}
	return &Engine{
		DB:       db,
		Apps:     apps,
		Auth:     auth,
		Registry: registry,
		Audit:    apps.Audit,
		Notifier: apps.Notifier,
		Log:      log,
		Now:      time.Now,
	}
}

func (e *Engine) now() time.Time { return e.Now().UTC() }

type StageInput struct {
	ActorID uuid.UUID
	Notes   string
	Data    map[string]any
}

// StageResult is one recorded review. Completed is set when that review
// was the last approval and the application moved to ssc_final_approval.
type StageResult struct {
	Review      *model.StageReviewModel    `json:"review"`
	Application *appModel.ApplicationModel `json:"application"`
	Completed   bool                       `json:"stages_completed"`
	Warnings    []string                   `json:"warnings,omitempty"`

	transition *appService.Result
	event      events.Event
}

/* =========================================================
   Stage reviews
========================================================= */

func (e *Engine) ApproveStage(ctx context.Context, appID uuid.UUID, stage appModel.StageName, in StageInput) (*StageResult, error) {
	return e.record(ctx, appID, stage, appModel.StageApproved, in)
}

// RejectStage records a rejection. The application stays in committee
// review and the other stages carry on.
func (e *Engine) RejectStage(ctx context.Context, appID uuid.UUID, stage appModel.StageName, in StageInput) (*StageResult, error) {
	return e.record(ctx, appID, stage, appModel.StageRejected, in)
}

// RequestStageRevision marks a stage for rework without moving the
// application. ReturnForRevision is the variant that does.
func (e *Engine) RequestStageRevision(ctx context.Context, appID uuid.UUID, stage appModel.StageName, in StageInput) (*StageResult, error) {
	return e.record(ctx, appID, stage, appModel.StageRevisionRequested, in)
}

func (e *Engine) record(ctx context.Context, appID uuid.UUID, stage appModel.StageName, outcome appModel.StageOutcome, in StageInput) (res *StageResult, err error) {
	op := stageOperation[outcome]
	defer func() {
		if err == nil {
			metrics.ObserveStageReview(string(stage), string(outcome))
		}
	}()

	if in.ActorID == uuid.Nil {
		return nil, apperror.New(apperror.KindUnauthorized, "stage review requires an authenticated actor")
	}
	if !stage.Valid() {
		return nil, apperror.Field("stage", "must be one of document_verification, financial_review, academic_review")
	}
	notes := strings.TrimSpace(in.Notes)
	if outcome != appModel.StageApproved && notes == "" {
		return nil, apperror.Field("notes", "are required unless the stage is approved")
	}

	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := appService.LockApplication(tx, appID)
		if err != nil {
			return err
		}
		if !app.ApplicationStatus.InSSCReview() {
			return apperror.InvalidTransition(op, string(app.ApplicationStatus))
		}
		role, err := e.authorizeStage(tx, app, in.ActorID, stage)
		if err != nil {
			return err
		}

		now := e.now()
		review, err := insertReview(tx, app, stage, role, outcome, in.ActorID, notes, in.Data, now)
		if err != nil {
			return err
		}

		stages := app.Stages().Clone()
		if stages == nil {
			stages = appModel.StageStatusMap{}
		}
		actor := in.ActorID
		entry := stages[stage]
		entry.Status = outcome
		entry.ReviewerID = &actor
		entry.ReviewerRole = role
		entry.Notes = notes
		entry.Data = maps.Clone(in.Data)
		entry.UpdatedAt = &now
		stages[stage] = entry

		app.ApplicationStageStatus = datatypes.NewJSONType(stages)
		app.ApplicationUpdatedAt = now
		if err := tx.Model(&appModel.ApplicationModel{}).
			Where("application_id = ?", app.ApplicationID).
			Updates(map[string]any{
				"application_stage_status": app.ApplicationStageStatus,
				"application_updated_at":   now,
			}).Error; err != nil {
			return err
		}

		evt := stageEvent(op, app, stage, outcome, actor, notes, now)
		if err := e.Audit.Record(ctx, evt); err != nil {
			return apperror.Wrap(apperror.KindInternal, "audit trail rejected stage review", err)
		}
		res = &StageResult{Review: review, Application: app, event: evt}

		if outcome == appModel.StageApproved && stages.AllApproved() {
			tr, err := e.Apps.ApplyLocked(ctx, tx, app, appService.OpCompleteStages, appService.Input{
				ActorID: actor,
				Note:    "all review stages approved",
			})
			if err != nil {
				return err
			}
			res.transition = tr
			res.Application = tr.Application
			res.Completed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.finishStage(ctx, res)
	return res, nil
}

type RevisionInput struct {
	ActorID        uuid.UUID
	Stage          appModel.StageName
	Notes          string
	Target         appService.RevisionTarget
	ExpectedStatus *appModel.ApplicationStatus
}

// ReturnForRevision sends the whole application back, to for_compliance or
// to interview_completed. The stage's own reviewer or the chairperson may
// ask for it.
func (e *Engine) ReturnForRevision(ctx context.Context, appID uuid.UUID, in RevisionInput) (res *StageResult, err error) {
	defer func() {
		if err == nil {
			metrics.ObserveStageReview(string(in.Stage), string(appModel.StageRevisionRequested))
		}
	}()
	if in.ActorID == uuid.Nil {
		return nil, apperror.New(apperror.KindUnauthorized, "revision request requires an authenticated actor")
	}
	if !in.Stage.Valid() {
		return nil, apperror.Field("stage", "must be one of document_verification, financial_review, academic_review")
	}

	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := appService.LockApplication(tx, appID)
		if err != nil {
			return err
		}
		role, err := e.authorizeStage(tx, app, in.ActorID, in.Stage)
		if err != nil {
			if !errors.Is(err, apperror.ErrForbidden) || app.ApplicationStudentID == in.ActorID {
				return err
			}
			if e.Auth.CanDecide(tx, in.ActorID) != nil {
				return err
			}
			role = constants.SSCRoleChairperson
		}

		tr, err := e.Apps.ApplyLocked(ctx, tx, app, appService.OpReturnForRevision, appService.Input{
			ActorID:        in.ActorID,
			ExpectedStatus: in.ExpectedStatus,
			Note:           in.Notes,
			Stage:          in.Stage,
			RevisionTarget: in.Target,
		})
		if err != nil {
			return err
		}

		now := tr.Change.At
		notes := strings.TrimSpace(in.Notes)
		data := map[string]any{"target": string(tr.Change.Payload.RevisionTarget)}
		review, err := insertReview(tx, app, in.Stage, role, appModel.StageRevisionRequested, in.ActorID, notes, data, now)
		if err != nil {
			return err
		}

		// the stage entry mirrors the review row
		stages := tr.Application.Stages().Clone()
		entry := stages[in.Stage]
		entry.ReviewerRole = role
		entry.Data = data
		stages[in.Stage] = entry
		tr.Application.ApplicationStageStatus = datatypes.NewJSONType(stages)
		if err := tx.Model(&appModel.ApplicationModel{}).
			Where("application_id = ?", tr.Application.ApplicationID).
			Update("application_stage_status", tr.Application.ApplicationStageStatus).Error; err != nil {
			return err
		}
		evt := stageEvent(string(appService.OpReturnForRevision), tr.Application, in.Stage, appModel.StageRevisionRequested, in.ActorID, notes, now)
		evt.FromStatus = string(tr.Change.From)
		if err := e.Audit.Record(ctx, evt); err != nil {
			return apperror.Wrap(apperror.KindInternal, "audit trail rejected stage review", err)
		}
		res = &StageResult{Review: review, Application: tr.Application, transition: tr, event: evt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.finishStage(ctx, res)
	return res, nil
}

func (e *Engine) authorizeStage(tx *gorm.DB, app *appModel.ApplicationModel, actor uuid.UUID, stage appModel.StageName) (string, error) {
	if actor == app.ApplicationStudentID {
		return "", apperror.New(apperror.KindForbidden, "reviewers cannot act on their own application")
	}
	return e.Auth.StageRole(tx, actor, stage)
}

func (e *Engine) finishStage(ctx context.Context, res *StageResult) {
	if res.transition != nil {
		e.Apps.Finish(ctx, res.transition)
		res.Warnings = append(res.Warnings, res.transition.Warnings...)
	} else {
		e.Apps.Forget(ctx, res.Application.ApplicationID)
	}

	log := e.Log.WithFields(logrus.Fields{
		"application_id": res.Application.ApplicationID.String(),
		"stage":          res.event.Stage,
		"outcome":        res.event.Outcome,
	})
	log.Info("stage reviewed")
	if err := e.Notifier.Notify(ctx, res.event); err != nil {
		metrics.ObserveSideEffectFailure("notification")
		log.WithError(err).Warn("stage review notification failed")
		res.Warnings = append(res.Warnings, apperror.Downstream("notification", err).Error())
	}
}

func insertReview(tx *gorm.DB, app *appModel.ApplicationModel, stage appModel.StageName, role string,
	outcome appModel.StageOutcome, actor uuid.UUID, notes string, data map[string]any, now time.Time) (*model.StageReviewModel, error) {
	var payload datatypes.JSON
	if len(data) > 0 {
		body, err := sonic.Marshal(data)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindValidation, "stage data is not serialisable", err)
		}
		payload = datatypes.JSON(body)
	}
	row := model.StageReviewModel{
		StageReviewID:            uuid.New(),
		StageReviewApplicationID: app.ApplicationID,
		StageReviewStage:         stage,
		StageReviewCycle:         app.ApplicationSSCCycle,
		StageReviewReviewerID:    actor,
		StageReviewReviewerRole:  role,
		StageReviewOutcome:       outcome,
		StageReviewPayload:       payload,
		StageReviewCreatedAt:     now,
	}
	if notes != "" {
		row.StageReviewNotes = &notes
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func stageEvent(op string, app *appModel.ApplicationModel, stage appModel.StageName, outcome appModel.StageOutcome, actor uuid.UUID, notes string, at time.Time) events.Event {
	evt := events.New(events.KindStageReviewed, actor, op, at).ForApplication(app.ApplicationID)
	evt.Stage = string(stage)
	evt.Outcome = string(outcome)
	evt.ToStatus = string(app.ApplicationStatus)
	evt.Note = notes
	evt.Payload = map[string]any{"ssc_cycle": app.ApplicationSSCCycle}
	return evt
}

/* =========================================================
   Chairperson decision
========================================================= */

type DecisionInput struct {
	ActorID        uuid.UUID
	Amount         *int64
	BudgetID       *uuid.UUID
	Reasoning      string
	ExpectedStatus *appModel.ApplicationStatus
}

type DecisionResult struct {
	*appService.Result
	Decision *model.SSCDecisionModel `json:"decision"`
}

// FinalApproval awards the application. Without an explicit amount the
// financial reviewer's recommended_amount from this cycle is used, else
// the requested amount. Registry enrollment runs after commit and only
// warns on failure.
func (e *Engine) FinalApproval(ctx context.Context, appID uuid.UUID, in DecisionInput) (*DecisionResult, error) {
	out, err := e.decide(ctx, appID, appService.OpSSCFinalApproval, in)
	if err != nil {
		return nil, err
	}
	if e.Registry != nil {
		app := out.Application
		var amount int64
		if app.ApplicationApprovedAmount != nil {
			amount = *app.ApplicationApprovedAmount
		}
		err := e.Registry.Enroll(ctx, scholarService.Enrollment{
			ApplicationID:    app.ApplicationID,
			StudentID:        app.ApplicationStudentID,
			SchoolID:         app.ApplicationSchoolID,
			AcademicPeriodID: app.ApplicationAcademicPeriodID,
			Amount:           amount,
		})
		if err != nil {
			e.Apps.Warn(out.Result, "registry_enrollment", err)
		}
	}
	return out, nil
}

func (e *Engine) FinalRejection(ctx context.Context, appID uuid.UUID, in DecisionInput) (*DecisionResult, error) {
	return e.decide(ctx, appID, appService.OpSSCFinalRejection, in)
}

func (e *Engine) decide(ctx context.Context, appID uuid.UUID, op appService.Operation, in DecisionInput) (*DecisionResult, error) {
	if in.ActorID == uuid.Nil {
		return nil, apperror.New(apperror.KindUnauthorized, "committee decision requires an authenticated actor")
	}

	var out *DecisionResult
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := appService.LockApplication(tx, appID)
		if err != nil {
			return err
		}
		if app.ApplicationStudentID == in.ActorID {
			return apperror.New(apperror.KindForbidden, "reviewers cannot act on their own application")
		}
		if err := e.Auth.CanDecide(tx, in.ActorID); err != nil {
			return err
		}
		reviews, err := reviewsFor(tx, app.ApplicationID)
		if err != nil {
			return err
		}

		input := appService.Input{
			ActorID:        in.ActorID,
			ExpectedStatus: in.ExpectedStatus,
			Note:           in.Reasoning,
			BudgetID:       in.BudgetID,
		}
		decision := model.DecisionApproved
		if op == appService.OpSSCFinalApproval {
			input.ApprovedAmount = in.Amount
			if input.ApprovedAmount == nil {
				amount := DefaultAward(*app)
				input.ApprovedAmount = &amount
			}
		} else {
			decision = model.DecisionRejected
			input.Reason = in.Reasoning
		}

		stagesAtDecision := app.Stages().Clone()
		res, err := e.Apps.ApplyLocked(ctx, tx, app, op, input)
		if err != nil {
			return err
		}

		snap, err := sonic.Marshal(map[string]any{
			"ssc_cycle":    app.ApplicationSSCCycle,
			"stage_status": stagesAtDecision,
			"reviews":      reviews,
		})
		if err != nil {
			return err
		}
		row := model.SSCDecisionModel{
			SSCDecisionID:            uuid.New(),
			SSCDecisionApplicationID: app.ApplicationID,
			SSCDecisionCycle:         app.ApplicationSSCCycle,
			SSCDecisionDecision:      decision,
			SSCDecisionDecidedBy:     in.ActorID,
			SSCDecisionSnapshot:      datatypes.JSON(snap),
			SSCDecisionCreatedAt:     res.Change.At,
		}
		if decision == model.DecisionApproved {
			row.SSCDecisionAmount = res.Application.ApplicationApprovedAmount
		}
		if r := strings.TrimSpace(in.Reasoning); r != "" {
			row.SSCDecisionReasoning = &r
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		out = &DecisionResult{Result: res, Decision: &row}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.Apps.Finish(ctx, out.Result)
	return out, nil
}

// DefaultAward picks the amount for a final approval that names none: the
// approved financial review's recommended_amount when it fits the request,
// else the requested amount. Approved stages carry over between committee
// cycles, so the stage map is read rather than the current cycle's reviews.
func DefaultAward(app appModel.ApplicationModel) int64 {
	entry, ok := app.Stages()[appModel.StageFinancialReview]
	if !ok || entry.Status != appModel.StageApproved || len(entry.Data) == 0 {
		return app.ApplicationRequestedAmount
	}
	body, err := sonic.Marshal(entry.Data)
	if err != nil {
		return app.ApplicationRequestedAmount
	}
	var p struct {
		RecommendedAmount *int64 `json:"recommended_amount"`
	}
	if err := sonic.Unmarshal(body, &p); err != nil || p.RecommendedAmount == nil {
		return app.ApplicationRequestedAmount
	}
	if rec := *p.RecommendedAmount; rec >= 0 && rec <= app.ApplicationRequestedAmount {
		return rec
	}
	return app.ApplicationRequestedAmount
}

/* =========================================================
   Reads
========================================================= */

func reviewsFor(tx *gorm.DB, appID uuid.UUID) ([]model.StageReviewModel, error) {
	var rows []model.StageReviewModel
	err := tx.Where("stage_review_application_id = ?", appID).
		Order("stage_review_created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (e *Engine) Reviews(ctx context.Context, appID uuid.UUID) ([]model.StageReviewModel, error) {
	return reviewsFor(e.DB.WithContext(ctx), appID)
}

func (e *Engine) Decisions(ctx context.Context, appID uuid.UUID) ([]model.SSCDecisionModel, error) {
	var rows []model.SSCDecisionModel
	err := e.DB.WithContext(ctx).
		Where("ssc_decision_application_id = ?", appID).
		Order("ssc_decision_created_at ASC").
		Find(&rows).Error
	return rows, err
}
