// Package events carries the immutable change records handed to the audit
// trail and the notification gateway.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindApplicationCreated Kind = "application.created"
	KindStatusChanged      Kind = "application.status_changed"
	KindStageReviewed      Kind = "application.stage_reviewed"
	KindLedgerPosted       Kind = "budget.transaction_posted"
	KindBudgetStatus       Kind = "budget.status_changed"
)

// Event is immutable once built; adapters must not mutate Payload.
type Event struct {
	ID            uuid.UUID      `json:"id"`
	Kind          Kind           `json:"kind"`
	ApplicationID *uuid.UUID     `json:"application_id,omitempty"`
	BudgetID      *uuid.UUID     `json:"budget_id,omitempty"`
	ActorID       uuid.UUID      `json:"actor_id"`
	Operation     string         `json:"operation"`
	FromStatus    string         `json:"from_status,omitempty"`
	ToStatus      string         `json:"to_status,omitempty"`
	Stage         string         `json:"stage,omitempty"`
	Outcome       string         `json:"outcome,omitempty"`
	Note          string         `json:"note,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

func New(kind Kind, actor uuid.UUID, operation string, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Kind:       kind,
		ActorID:    actor,
		Operation:  operation,
		OccurredAt: at.UTC(),
	}
}

func (e Event) ForApplication(id uuid.UUID) Event {
	e.ApplicationID = &id
	return e
}

func (e Event) ForBudget(id uuid.UUID) Event {
	e.BudgetID = &id
	return e
}

// AuditTrail receives every state change. It is called inside the
// mutating transaction, so an error aborts the change.
type AuditTrail interface {
	Record(ctx context.Context, evt Event) error
}

// NotificationGateway is told about state changes after commit. Failures
// are reported as warnings only.
type NotificationGateway interface {
	Notify(ctx context.Context, evt Event) error
}

// Nop satisfies both contracts and drops everything.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
func (Nop) Notify(context.Context, Event) error { return nil }
