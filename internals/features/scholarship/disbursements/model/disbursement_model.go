// file: internals/features/scholarship/disbursements/model/disbursement_model.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type Method string

const (
	MethodBankTransfer Method = "bank_transfer"
	MethodCheck        Method = "check"
	MethodCash         Method = "cash"
	MethodGateway      Method = "gateway"
)

func (m Method) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodCheck, MethodCash, MethodGateway:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type DisbursementModel struct {
	DisbursementID            uuid.UUID  `gorm:"type:uuid;primaryKey;column:disbursement_id" json:"disbursement_id"`
	DisbursementApplicationID uuid.UUID  `gorm:"type:uuid;not null;index;column:disbursement_application_id" json:"disbursement_application_id"`
	DisbursementBudgetID      *uuid.UUID `gorm:"type:uuid;index;column:disbursement_budget_id" json:"disbursement_budget_id,omitempty"`
	DisbursementAmount        int64      `gorm:"not null;column:disbursement_amount" json:"disbursement_amount"`
	DisbursementMethod        Method     `gorm:"size:16;not null;column:disbursement_method" json:"disbursement_method"`
	DisbursementStatus        Status     `gorm:"size:12;not null;column:disbursement_status" json:"disbursement_status"`

	DisbursementBeneficiaryName    *string `gorm:"column:disbursement_beneficiary_name" json:"disbursement_beneficiary_name,omitempty"`
	DisbursementBeneficiaryAccount *string `gorm:"column:disbursement_beneficiary_account" json:"disbursement_beneficiary_account,omitempty"`
	DisbursementBeneficiaryBank    *string `gorm:"column:disbursement_beneficiary_bank" json:"disbursement_beneficiary_bank,omitempty"`
	DisbursementBeneficiaryEmail   *string `gorm:"column:disbursement_beneficiary_email" json:"disbursement_beneficiary_email,omitempty"`

	DisbursementReferenceNumber  *string    `gorm:"column:disbursement_reference_number" json:"disbursement_reference_number,omitempty"`
	DisbursementGatewayReference *string    `gorm:"column:disbursement_gateway_reference" json:"disbursement_gateway_reference,omitempty"`
	DisbursementFailureReason    *string    `gorm:"column:disbursement_failure_reason" json:"disbursement_failure_reason,omitempty"`
	DisbursementDisbursedAt      *time.Time `gorm:"column:disbursement_disbursed_at" json:"disbursement_disbursed_at,omitempty"`
	DisbursementProcessedBy      uuid.UUID  `gorm:"type:uuid;not null;column:disbursement_processed_by" json:"disbursement_processed_by"`

	DisbursementCreatedAt time.Time `gorm:"not null;column:disbursement_created_at" json:"disbursement_created_at"`
	DisbursementUpdatedAt time.Time `gorm:"not null;column:disbursement_updated_at" json:"disbursement_updated_at"`
}

func (DisbursementModel) TableName() string { return "disbursements" }
