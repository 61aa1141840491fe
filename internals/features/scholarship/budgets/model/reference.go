package model

import "github.com/google/uuid"

type ReferenceKind string

const (
	RefApplication      ReferenceKind = "application"
	RefDisbursement     ReferenceKind = "disbursement"
	RefManualAdjustment ReferenceKind = "manual_adjustment"
)

// Reference is what a ledger posting points at. The set is closed:
// ApplicationRef, DisbursementRef and ManualAdjustment.
type Reference interface {
	Kind() ReferenceKind
	isReference()
}

type ApplicationRef struct {
	ApplicationID uuid.UUID
}

type DisbursementRef struct {
	DisbursementID uuid.UUID
	ApplicationID  uuid.UUID
}

type ManualAdjustment struct {
	Reason string
}

func (ApplicationRef) Kind() ReferenceKind   { return RefApplication }
func (DisbursementRef) Kind() ReferenceKind  { return RefDisbursement }
func (ManualAdjustment) Kind() ReferenceKind { return RefManualAdjustment }

func (ApplicationRef) isReference()   {}
func (DisbursementRef) isReference()  {}
func (ManualAdjustment) isReference() {}
