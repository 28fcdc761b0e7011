package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condo/backend/internal/domain/shared"
)

// PaymentReportedEvent is raised when an owner reports a payment
type PaymentReportedEvent struct {
	shared.BaseDomainEvent
	PaymentID   uuid.UUID       `json:"payment_id"`
	UnitID      uuid.UUID       `json:"unit_id"`
	ReportedBy  uuid.UUID       `json:"reported_by"`
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method"`
	PaymentDate time.Time       `json:"payment_date"`
}

// EventType returns the event type name
func (e *PaymentReportedEvent) EventType() string {
	return "PaymentReported"
}

// NewPaymentReportedEvent creates a new PaymentReportedEvent
func NewPaymentReportedEvent(p *Payment) *PaymentReportedEvent {
	return &PaymentReportedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PaymentReported", "Payment", p.ID),
		PaymentID:       p.ID,
		UnitID:          p.UnitID,
		ReportedBy:      p.ReportedBy,
		Amount:          p.Amount,
		Method:          p.Method,
		PaymentDate:     p.PaymentDate,
	}
}

// PaymentVerifiedEvent is raised when a payment passes verification
type PaymentVerifiedEvent struct {
	shared.BaseDomainEvent
	PaymentID  uuid.UUID       `json:"payment_id"`
	UnitID     uuid.UUID       `json:"unit_id"`
	Amount     decimal.Decimal `json:"amount"`
	VerifiedBy uuid.UUID       `json:"verified_by"`
	VerifiedAt time.Time       `json:"verified_at"`
}

// EventType returns the event type name
func (e *PaymentVerifiedEvent) EventType() string {
	return "PaymentVerified"
}

// NewPaymentVerifiedEvent creates a new PaymentVerifiedEvent
func NewPaymentVerifiedEvent(p *Payment) *PaymentVerifiedEvent {
	var verifiedBy uuid.UUID
	verifiedAt := time.Now()
	if p.VerifiedBy != nil {
		verifiedBy = *p.VerifiedBy
	}
	if p.VerifiedAt != nil {
		verifiedAt = *p.VerifiedAt
	}
	return &PaymentVerifiedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PaymentVerified", "Payment", p.ID),
		PaymentID:       p.ID,
		UnitID:          p.UnitID,
		Amount:          p.Amount,
		VerifiedBy:      verifiedBy,
		VerifiedAt:      verifiedAt,
	}
}

// PaymentRejectedEvent is raised when a payment fails verification
type PaymentRejectedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID `json:"payment_id"`
	UnitID    uuid.UUID `json:"unit_id"`
	Reason    string    `json:"reason"`
}

// EventType returns the event type name
func (e *PaymentRejectedEvent) EventType() string {
	return "PaymentRejected"
}

// NewPaymentRejectedEvent creates a new PaymentRejectedEvent
func NewPaymentRejectedEvent(p *Payment) *PaymentRejectedEvent {
	return &PaymentRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PaymentRejected", "Payment", p.ID),
		PaymentID:       p.ID,
		UnitID:          p.UnitID,
		Reason:          p.RejectionReason,
	}
}

// PaymentRefundedEvent is raised when a completed payment is refunded
type PaymentRefundedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	UnitID    uuid.UUID       `json:"unit_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
}

// EventType returns the event type name
func (e *PaymentRefundedEvent) EventType() string {
	return "PaymentRefunded"
}

// NewPaymentRefundedEvent creates a new PaymentRefundedEvent
func NewPaymentRefundedEvent(p *Payment, reason string) *PaymentRefundedEvent {
	return &PaymentRefundedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PaymentRefunded", "Payment", p.ID),
		PaymentID:       p.ID,
		UnitID:          p.UnitID,
		Amount:          p.Amount,
		Reason:          reason,
	}
}
