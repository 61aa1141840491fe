package service

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"gorm.io/gorm"

	appModel "beasiswaku_backend/internals/features/scholarship/applications/model"
	"beasiswaku_backend/internals/features/scholarship/ssc_reviews/model"
	"beasiswaku_backend/internals/helpers/apperror"
)

/* =========================================================
   stage_status from the review log
========================================================= */

// FoldStages rebuilds an application's stage map from its review rows. The
// latest review per stage wins; a stage not approved in an earlier cycle was
// reset to pending when the application was endorsed again.
func FoldStages(reviews []model.StageReviewModel, cycle int) (appModel.StageStatusMap, error) {
	if cycle == 0 {
		return appModel.StageStatusMap{}, nil
	}
	rows := append([]model.StageReviewModel(nil), reviews...)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].StageReviewCreatedAt.Before(rows[j].StageReviewCreatedAt)
	})

	latest := map[appModel.StageName]model.StageReviewModel{}
	for _, r := range rows {
		latest[r.StageReviewStage] = r
	}

	out := make(appModel.StageStatusMap, len(appModel.AllStages))
	for _, stage := range appModel.AllStages {
		r, ok := latest[stage]
		if !ok || (r.StageReviewCycle < cycle && r.StageReviewOutcome != appModel.StageApproved) {
			out[stage] = appModel.StageEntry{Status: appModel.StagePending}
			continue
		}
		reviewer := r.StageReviewReviewerID
		at := r.StageReviewCreatedAt
		entry := appModel.StageEntry{
			Status:       r.StageReviewOutcome,
			ReviewerID:   &reviewer,
			ReviewerRole: r.StageReviewReviewerRole,
			UpdatedAt:    &at,
		}
		if r.StageReviewNotes != nil {
			entry.Notes = *r.StageReviewNotes
		}
		if len(r.StageReviewPayload) > 0 {
			if err := sonic.Unmarshal(r.StageReviewPayload, &entry.Data); err != nil {
				return nil, err
			}
		}
		out[stage] = entry
	}
	return out, nil
}

// stageView is what a stage entry and its review row must agree on.
type stageView struct {
	Status       appModel.StageOutcome `json:"status"`
	ReviewerID   *uuid.UUID            `json:"reviewer_id,omitempty"`
	ReviewerRole string                `json:"reviewer_role,omitempty"`
	Notes        string                `json:"notes,omitempty"`
	Data         map[string]any        `json:"data,omitempty"`
}

func canonical(m appModel.StageStatusMap) ([]byte, error) {
	view := make(map[string]stageView, len(m))
	for stage, e := range m {
		view[string(stage)] = stageView{
			Status:       e.Status,
			ReviewerID:   e.ReviewerID,
			ReviewerRole: e.ReviewerRole,
			Notes:        e.Notes,
			Data:         e.Data,
		}
	}
	return sonic.ConfigStd.Marshal(view)
}

// SameStages compares two stage maps ignoring timestamps.
func SameStages(a, b appModel.StageStatusMap) bool {
	x, err := canonical(a)
	if err != nil {
		return false
	}
	y, err := canonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(x, y)
}

type StageReplayReport struct {
	ApplicationID uuid.UUID               `json:"application_id"`
	SSCCycle      int                     `json:"ssc_cycle"`
	Stored        appModel.StageStatusMap `json:"stored"`
	Folded        appModel.StageStatusMap `json:"folded"`
	Reviews       int                     `json:"reviews"`
	Consistent    bool                    `json:"consistent"`
}

// StageReplay folds the review log and compares it with the stored map.
func (e *Engine) StageReplay(ctx context.Context, appID uuid.UUID) (*StageReplayReport, error) {
	var app appModel.ApplicationModel
	err := e.DB.WithContext(ctx).Where("application_id = ?", appID).Take(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("application")
	}
	if err != nil {
		return nil, err
	}
	reviews, err := e.Reviews(ctx, appID)
	if err != nil {
		return nil, err
	}
	folded, err := FoldStages(reviews, app.ApplicationSSCCycle)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "stage reviews do not fold", err)
	}
	stored := app.Stages()
	if stored == nil {
		stored = appModel.StageStatusMap{}
	}
	return &StageReplayReport{
		ApplicationID: appID,
		SSCCycle:      app.ApplicationSSCCycle,
		Stored:        stored,
		Folded:        folded,
		Reviews:       len(reviews),
		Consistent:    SameStages(stored, folded),
	}, nil
}
