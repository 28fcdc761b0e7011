package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condo/backend/internal/domain/shared"
)

// QuotaCreatedEvent is raised when a new quota is issued
type QuotaCreatedEvent struct {
	shared.BaseDomainEvent
	QuotaID     uuid.UUID       `json:"quota_id"`
	UnitID      uuid.UUID       `json:"unit_id"`
	PeriodYear  int             `json:"period_year"`
	PeriodMonth int             `json:"period_month"`
	BaseAmount  decimal.Decimal `json:"base_amount"`
	DueDate     time.Time       `json:"due_date"`
}

// EventType returns the event type name
func (e *QuotaCreatedEvent) EventType() string {
	return "QuotaCreated"
}

// NewQuotaCreatedEvent creates a new QuotaCreatedEvent
func NewQuotaCreatedEvent(q *Quota) *QuotaCreatedEvent {
	return &QuotaCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("QuotaCreated", "Quota", q.ID),
		QuotaID:         q.ID,
		UnitID:          q.UnitID,
		PeriodYear:      q.PeriodYear,
		PeriodMonth:     q.PeriodMonth,
		BaseAmount:      q.BaseAmount,
		DueDate:         q.DueDate,
	}
}

// QuotaPaymentAppliedEvent is raised when a payment is applied to a quota
type QuotaPaymentAppliedEvent struct {
	shared.BaseDomainEvent
	QuotaID       uuid.UUID       `json:"quota_id"`
	UnitID        uuid.UUID       `json:"unit_id"`
	AppliedAmount decimal.Decimal `json:"applied_amount"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	Status        QuotaStatus     `json:"status"`
}

// EventType returns the event type name
func (e *QuotaPaymentAppliedEvent) EventType() string {
	return "QuotaPaymentApplied"
}

// NewQuotaPaymentAppliedEvent creates a new QuotaPaymentAppliedEvent
func NewQuotaPaymentAppliedEvent(q *Quota, applied decimal.Decimal) *QuotaPaymentAppliedEvent {
	return &QuotaPaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("QuotaPaymentApplied", "Quota", q.ID),
		QuotaID:         q.ID,
		UnitID:          q.UnitID,
		AppliedAmount:   applied,
		NewBalance:      q.Balance(),
		Status:          q.Status,
	}
}

// QuotaPaymentReversedEvent is raised when an application is reversed
type QuotaPaymentReversedEvent struct {
	shared.BaseDomainEvent
	QuotaID        uuid.UUID       `json:"quota_id"`
	UnitID         uuid.UUID       `json:"unit_id"`
	ReversedAmount decimal.Decimal `json:"reversed_amount"`
	NewBalance     decimal.Decimal `json:"new_balance"`
	Status         QuotaStatus     `json:"status"`
}

// EventType returns the event type name
func (e *QuotaPaymentReversedEvent) EventType() string {
	return "QuotaPaymentReversed"
}

// NewQuotaPaymentReversedEvent creates a new QuotaPaymentReversedEvent
func NewQuotaPaymentReversedEvent(q *Quota, reversed decimal.Decimal) *QuotaPaymentReversedEvent {
	return &QuotaPaymentReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("QuotaPaymentReversed", "Quota", q.ID),
		QuotaID:         q.ID,
		UnitID:          q.UnitID,
		ReversedAmount:  reversed,
		NewBalance:      q.Balance(),
		Status:          q.Status,
	}
}

// QuotaOverdueEvent is raised when a quota passes its due date unpaid
type QuotaOverdueEvent struct {
	shared.BaseDomainEvent
	QuotaID uuid.UUID       `json:"quota_id"`
	UnitID  uuid.UUID       `json:"unit_id"`
	Balance decimal.Decimal `json:"balance"`
	DueDate time.Time       `json:"due_date"`
}

// EventType returns the event type name
func (e *QuotaOverdueEvent) EventType() string {
	return "QuotaOverdue"
}

// NewQuotaOverdueEvent creates a new QuotaOverdueEvent
func NewQuotaOverdueEvent(q *Quota) *QuotaOverdueEvent {
	return &QuotaOverdueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("QuotaOverdue", "Quota", q.ID),
		QuotaID:         q.ID,
		UnitID:          q.UnitID,
		Balance:         q.Balance(),
		DueDate:         q.DueDate,
	}
}
