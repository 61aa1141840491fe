package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// SSCDecisionModel is the chairperson's join-point record with a snapshot
// of every stage review that led to it.
type SSCDecisionModel struct {
	SSCDecisionID            uuid.UUID      `gorm:"type:uuid;primaryKey;column:ssc_decision_id" json:"ssc_decision_id"`
	SSCDecisionApplicationID uuid.UUID      `gorm:"type:uuid;not null;index;column:ssc_decision_application_id" json:"ssc_decision_application_id"`
	SSCDecisionCycle         int            `gorm:"not null;column:ssc_decision_cycle" json:"ssc_decision_cycle"`
	SSCDecisionDecision      Decision       `gorm:"size:16;not null;column:ssc_decision_decision" json:"ssc_decision_decision"`
	SSCDecisionAmount        *int64         `gorm:"column:ssc_decision_amount" json:"ssc_decision_amount,omitempty"`
	SSCDecisionReasoning     *string        `gorm:"column:ssc_decision_reasoning" json:"ssc_decision_reasoning,omitempty"`
	SSCDecisionDecidedBy     uuid.UUID      `gorm:"type:uuid;not null;column:ssc_decision_decided_by" json:"ssc_decision_decided_by"`
	SSCDecisionSnapshot      datatypes.JSON `gorm:"column:ssc_decision_snapshot" json:"ssc_decision_snapshot"`
	SSCDecisionCreatedAt     time.Time      `gorm:"not null;column:ssc_decision_created_at" json:"ssc_decision_created_at"`
}

func (SSCDecisionModel) TableName() string { return "ssc_decisions" }
