package model

import (
	"time"

	"github.com/google/uuid"
)

// RoleAssignmentModel is managed outside this service; the engine only
// reads it.
type RoleAssignmentModel struct {
	RoleAssignmentID         uuid.UUID  `gorm:"type:uuid;primaryKey;column:role_assignment_id" json:"role_assignment_id"`
	RoleAssignmentUserID     uuid.UUID  `gorm:"type:uuid;not null;index;column:role_assignment_user_id" json:"role_assignment_user_id"`
	RoleAssignmentRole       string     `gorm:"size:32;not null;column:role_assignment_role" json:"role_assignment_role"`
	RoleAssignmentIsActive   bool       `gorm:"not null;default:true;column:role_assignment_is_active" json:"role_assignment_is_active"`
	RoleAssignmentAssignedAt time.Time  `gorm:"not null;column:role_assignment_assigned_at" json:"role_assignment_assigned_at"`
	RoleAssignmentRevokedAt  *time.Time `gorm:"column:role_assignment_revoked_at" json:"role_assignment_revoked_at,omitempty"`
}

func (RoleAssignmentModel) TableName() string { return "ssc_role_assignments" }
