package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StatusHistoryModel is append-only. Seq is per application and starts at
// 1 with the creation row.
type StatusHistoryModel struct {
	StatusHistoryID            uuid.UUID         `gorm:"type:uuid;primaryKey;column:status_history_id" json:"status_history_id"`
	StatusHistoryApplicationID uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:uq_status_history_seq,priority:1;column:status_history_application_id" json:"status_history_application_id"`
	StatusHistorySeq           int64             `gorm:"not null;uniqueIndex:uq_status_history_seq,priority:2;column:status_history_seq" json:"status_history_seq"`
	StatusHistoryOperation     string            `gorm:"size:40;not null;column:status_history_operation" json:"status_history_operation"`
	StatusHistoryFromStatus    ApplicationStatus `gorm:"size:40;column:status_history_from_status" json:"status_history_from_status,omitempty"`
	StatusHistoryStatus        ApplicationStatus `gorm:"size:40;not null;column:status_history_status" json:"status_history_status"`
	StatusHistoryActorID       uuid.UUID         `gorm:"type:uuid;not null;column:status_history_actor_id" json:"status_history_actor_id"`
	StatusHistoryNote          *string           `gorm:"column:status_history_note" json:"status_history_note,omitempty"`
	StatusHistoryPayload       datatypes.JSON    `gorm:"column:status_history_payload" json:"status_history_payload,omitempty"`
	StatusHistoryCreatedAt     time.Time         `gorm:"not null;column:status_history_created_at" json:"status_history_created_at"`
}

func (StatusHistoryModel) TableName() string { return "application_status_histories" }
