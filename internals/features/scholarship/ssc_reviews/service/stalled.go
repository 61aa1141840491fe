package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	appModel "beasiswaku_backend/internals/features/scholarship/applications/model"
	"beasiswaku_backend/internals/metrics"
)

// StalledStage is a committee stage left rejected with no follow-up.
type StalledStage struct {
	ApplicationID     uuid.UUID          `json:"application_id"`
	ApplicationNumber string             `json:"application_number"`
	Stage             appModel.StageName `json:"stage"`
	RejectedAt        time.Time          `json:"rejected_at"`
	ReviewerID        *uuid.UUID         `json:"reviewer_id,omitempty"`
}

// Stalled lists stages rejected more than after ago on applications still
// in committee review. Nothing is changed; the committee decides what to do.
func (e *Engine) Stalled(ctx context.Context, after time.Duration) ([]StalledStage, error) {
	cutoff := e.now().Add(-after)

	var apps []appModel.ApplicationModel
	err := e.DB.WithContext(ctx).
		Where("application_status IN ?", appModel.SSCReviewStatuses).
		Order("application_updated_at ASC").
		Find(&apps).Error
	if err != nil {
		return nil, err
	}

	var out []StalledStage
	for _, app := range apps {
		stages := app.Stages()
		for _, s := range appModel.AllStages {
			entry, ok := stages[s]
			if !ok || entry.Status != appModel.StageRejected || entry.UpdatedAt == nil {
				continue
			}
			if entry.UpdatedAt.After(cutoff) {
				continue
			}
			out = append(out, StalledStage{
				ApplicationID:     app.ApplicationID,
				ApplicationNumber: app.ApplicationNumber,
				Stage:             s,
				RejectedAt:        entry.UpdatedAt.UTC(),
				ReviewerID:        entry.ReviewerID,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RejectedAt.Before(out[j].RejectedAt) })
	return out, nil
}

// ReportStalled logs every stalled stage and publishes the count of
// affected applications.
func (e *Engine) ReportStalled(ctx context.Context, after time.Duration) (int, error) {
	stalled, err := e.Stalled(ctx, after)
	if err != nil {
		return 0, err
	}
	seen := map[uuid.UUID]struct{}{}
	for _, s := range stalled {
		seen[s.ApplicationID] = struct{}{}
		e.Log.WithFields(logrus.Fields{
			"application_id":     s.ApplicationID.String(),
			"application_number": s.ApplicationNumber,
			"stage":              string(s.Stage),
			"rejected_at":        s.RejectedAt.Format(time.RFC3339),
		}).Warn("ssc stage rejected and not followed up")
	}
	metrics.SetStalledStages(len(seen))
	return len(seen), nil
}
