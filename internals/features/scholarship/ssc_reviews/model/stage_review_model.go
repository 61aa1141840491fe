// file: internals/features/scholarship/ssc_reviews/model/stage_review_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	appModel "beasiswaku_backend/internals/features/scholarship/applications/model"
)

// StageReviewModel is one reviewer verdict. Rows are never updated; the
// latest row per (application, stage) is authoritative.
type StageReviewModel struct {
	StageReviewID            uuid.UUID             `gorm:"type:uuid;primaryKey;column:stage_review_id" json:"stage_review_id"`
	StageReviewApplicationID uuid.UUID             `gorm:"type:uuid;not null;index:idx_stage_review_app_stage,priority:1;column:stage_review_application_id" json:"stage_review_application_id"`
	StageReviewStage         appModel.StageName    `gorm:"size:32;not null;index:idx_stage_review_app_stage,priority:2;column:stage_review_stage" json:"stage_review_stage"`
	StageReviewCycle         int                   `gorm:"not null;column:stage_review_cycle" json:"stage_review_cycle"`
	StageReviewReviewerID    uuid.UUID             `gorm:"type:uuid;not null;column:stage_review_reviewer_id" json:"stage_review_reviewer_id"`
	StageReviewReviewerRole  string                `gorm:"size:32;not null;column:stage_review_reviewer_role" json:"stage_review_reviewer_role"`
	StageReviewOutcome       appModel.StageOutcome `gorm:"size:24;not null;column:stage_review_outcome" json:"stage_review_outcome"`
	StageReviewNotes         *string               `gorm:"column:stage_review_notes" json:"stage_review_notes,omitempty"`
	StageReviewPayload       datatypes.JSON        `gorm:"column:stage_review_payload" json:"stage_review_payload,omitempty"`
	StageReviewCreatedAt     time.Time             `gorm:"not null;index;column:stage_review_created_at" json:"stage_review_created_at"`
}

func (StageReviewModel) TableName() string { return "ssc_stage_reviews" }
