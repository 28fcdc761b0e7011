package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condo/backend/internal/domain/shared"
	"github.com/condo/backend/internal/domain/shared/valueobject"
)

// PaymentStatus represents the verification lifecycle of a reported payment
type PaymentStatus string

const (
	PaymentStatusPendingVerification PaymentStatus = "pending_verification" // Reported, awaiting admin review
	PaymentStatusCompleted           PaymentStatus = "completed"            // Verified and applied to quotas
	PaymentStatusRejected            PaymentStatus = "rejected"             // Review failed, no quota mutation
	PaymentStatusRefunded            PaymentStatus = "refunded"             // Completed payment returned, applications reversed
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPendingVerification, PaymentStatusCompleted, PaymentStatusRejected, PaymentStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is possible
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusRejected || s == PaymentStatusRefunded
}

// CanVerify returns true if the payment can be verified in this status
func (s PaymentStatus) CanVerify() bool {
	return s == PaymentStatusPendingVerification
}

// CanReject returns true if the payment can be rejected in this status
func (s PaymentStatus) CanReject() bool {
	return s == PaymentStatusPendingVerification
}

// CanRefund returns true if the payment can be refunded in this status
func (s PaymentStatus) CanRefund() bool {
	return s == PaymentStatusCompleted
}

// PaymentMethod represents how the owner paid
type PaymentMethod string

const (
	PaymentMethodBankTransfer  PaymentMethod = "bank_transfer"
	PaymentMethodCash          PaymentMethod = "cash"
	PaymentMethodMobilePayment PaymentMethod = "mobile_payment"
	PaymentMethodZelle         PaymentMethod = "zelle"
	PaymentMethodOther         PaymentMethod = "other"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCash, PaymentMethodMobilePayment, PaymentMethodZelle, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// ApplicationStatus represents the state of a payment application
type ApplicationStatus string

const (
	ApplicationStatusActive   ApplicationStatus = "active"
	ApplicationStatusReversed ApplicationStatus = "reversed"
)

// PaymentApplication records the application of part of a payment to one
// quota. The split invariant holds: applied == principal + interest.
type PaymentApplication struct {
	ID                 uuid.UUID         `json:"id"`
	PaymentID          uuid.UUID         `json:"payment_id"`
	QuotaID            uuid.UUID         `json:"quota_id"`
	AppliedAmount      decimal.Decimal   `json:"applied_amount"`
	AppliedToPrincipal decimal.Decimal   `json:"applied_to_principal"`
	AppliedToInterest  decimal.Decimal   `json:"applied_to_interest"`
	RegisteredBy       uuid.UUID         `json:"registered_by"`
	AppliedAt          time.Time         `json:"applied_at"`
	Status             ApplicationStatus `json:"status"`
	ReversedAt         *time.Time        `json:"reversed_at"`
}

// NewPaymentApplication creates a new active payment application
func NewPaymentApplication(paymentID, quotaID uuid.UUID, applied, toPrincipal, toInterest decimal.Decimal, registeredBy uuid.UUID) (*PaymentApplication, error) {
	if !toPrincipal.Add(toInterest).Equal(applied) {
		return nil, shared.NewDomainError(ErrCodeValidation,
			"Application split does not sum to the applied amount")
	}
	return &PaymentApplication{
		ID:                 uuid.New(),
		PaymentID:          paymentID,
		QuotaID:            quotaID,
		AppliedAmount:      applied,
		AppliedToPrincipal: toPrincipal,
		AppliedToInterest:  toInterest,
		RegisteredBy:       registeredBy,
		AppliedAt:          time.Now(),
		Status:             ApplicationStatusActive,
	}, nil
}

// IsActive returns true if the application has not been reversed
func (a *PaymentApplication) IsActive() bool {
	return a.Status == ApplicationStatusActive
}

// Reverse marks the application as reversed
func (a *PaymentApplication) Reverse() {
	now := time.Now()
	a.Status = ApplicationStatusReversed
	a.ReversedAt = &now
}

// PaymentApplications is a slice of PaymentApplication that implements
// GORM Scanner/Valuer for JSONB storage
type PaymentApplications []PaymentApplication

// Value implements driver.Valuer for GORM to store as JSONB
func (a PaymentApplications) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for GORM to read from JSONB
func (a *PaymentApplications) Scan(value interface{}) error {
	if value == nil {
		*a = PaymentApplications{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan PaymentApplications: unsupported type")
	}

	if len(bytes) == 0 {
		*a = PaymentApplications{}
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// Payment represents a payment reported by a unit owner. It is the
// aggregate root of the verification state machine; money only reaches
// the quota ledger through a verified payment.
type Payment struct {
	shared.BaseAggregateRoot
	UnitID            uuid.UUID           `json:"unit_id"`
	ReportedBy        uuid.UUID           `json:"reported_by"`
	Amount            decimal.Decimal     `json:"amount"`
	Currency          string              `json:"currency"`
	Method            PaymentMethod       `json:"method"`
	ReferenceNumber   string              `json:"reference_number"`
	PaymentDate       time.Time           `json:"payment_date"`
	Status            PaymentStatus       `json:"status"`
	Applications      PaymentApplications `json:"applications"`
	VerifiedBy        *uuid.UUID          `json:"verified_by"`
	VerifiedAt        *time.Time          `json:"verified_at"`
	VerificationNotes string              `json:"verification_notes"`
	RejectedBy        *uuid.UUID          `json:"rejected_by"`
	RejectedAt        *time.Time          `json:"rejected_at"`
	RejectionReason   string              `json:"rejection_reason"`
	RefundedBy        *uuid.UUID          `json:"refunded_by"`
	RefundedAt        *time.Time          `json:"refunded_at"`
}

// NewPayment creates a payment in pending_verification status
func NewPayment(unitID, reportedBy uuid.UUID, amount valueobject.Money, method PaymentMethod, referenceNumber string, paymentDate time.Time) (*Payment, error) {
	if unitID == uuid.Nil {
		return nil, shared.NewDomainError(ErrCodeValidation, "Unit ID cannot be empty")
	}
	if reportedBy == uuid.Nil {
		return nil, shared.NewDomainError(ErrCodeValidation, "Reporting user ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError(ErrCodeValidation, "Payment amount must be positive")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError(ErrCodeValidation, fmt.Sprintf("Invalid payment method: %s", method))
	}
	if method == PaymentMethodBankTransfer && strings.TrimSpace(referenceNumber) == "" {
		return nil, shared.NewDomainError(ErrCodeValidation, "Reference number is required for bank transfers")
	}
	if paymentDate.IsZero() {
		return nil, shared.NewDomainError(ErrCodeValidation, "Payment date is required")
	}

	p := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UnitID:            unitID,
		ReportedBy:        reportedBy,
		Amount:            amount.RoundCurrency().Amount(),
		Currency:          string(amount.Currency()),
		Method:            method,
		ReferenceNumber:   referenceNumber,
		PaymentDate:       paymentDate,
		Status:            PaymentStatusPendingVerification,
		Applications:      make(PaymentApplications, 0),
	}

	p.AddDomainEvent(NewPaymentReportedEvent(p))

	return p, nil
}

// AmountMoney returns the payment amount as Money
func (p *Payment) AmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(p.Amount, valueobject.Currency(p.Currency))
	return m
}

// Verify transitions the payment to completed. Only a payment awaiting
// verification can be verified; a second verify is rejected, so the same
// payment can never be applied to the ledger twice.
func (p *Payment) Verify(verifiedBy uuid.UUID, notes string) error {
	if !p.Status.CanVerify() {
		return shared.NewDomainError(ErrCodeInvalidStateTx,
			fmt.Sprintf("Payment is not pending verification. Current status: %s", p.Status))
	}
	if verifiedBy == uuid.Nil {
		return shared.NewDomainError(ErrCodeValidation, "Verifying user ID is required")
	}

	now := time.Now()
	p.Status = PaymentStatusCompleted
	p.VerifiedBy = &verifiedBy
	p.VerifiedAt = &now
	p.VerificationNotes = notes
	p.UpdatedAt = now
	p.IncrementVersion()

	p.AddDomainEvent(NewPaymentVerifiedEvent(p))

	return nil
}

// Reject transitions the payment to rejected without touching any quota
func (p *Payment) Reject(rejectedBy uuid.UUID, reason string) error {
	if !p.Status.CanReject() {
		return shared.NewDomainError(ErrCodeInvalidStateTx,
			fmt.Sprintf("Payment is not pending verification. Current status: %s", p.Status))
	}
	if rejectedBy == uuid.Nil {
		return shared.NewDomainError(ErrCodeValidation, "Rejecting user ID is required")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewDomainError(ErrCodeValidation, "Rejection reason is required")
	}

	now := time.Now()
	p.Status = PaymentStatusRejected
	p.RejectedBy = &rejectedBy
	p.RejectedAt = &now
	p.RejectionReason = reason
	p.UpdatedAt = now
	p.IncrementVersion()

	p.AddDomainEvent(NewPaymentRejectedEvent(p))

	return nil
}

// Refund transitions a completed payment to refunded. The caller is
// responsible for reversing the ledger applications in the same
// transaction; ReverseApplications tracks them on the aggregate.
func (p *Payment) Refund(refundedBy uuid.UUID, reason string) error {
	if !p.Status.CanRefund() {
		return shared.NewDomainError(ErrCodeInvalidStateTx,
			fmt.Sprintf("Only completed payments can be refunded. Current status: %s", p.Status))
	}
	if refundedBy == uuid.Nil {
		return shared.NewDomainError(ErrCodeValidation, "Refunding user ID is required")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewDomainError(ErrCodeValidation, "Refund reason is required")
	}

	now := time.Now()
	p.Status = PaymentStatusRefunded
	p.RefundedBy = &refundedBy
	p.RefundedAt = &now
	p.appendNote(fmt.Sprintf("REFUND: %s", strings.TrimSpace(reason)))
	p.UpdatedAt = now
	p.IncrementVersion()

	p.AddDomainEvent(NewPaymentRefundedEvent(p, reason))

	return nil
}

// AddApplication attaches a ledger application to the payment
func (p *Payment) AddApplication(app PaymentApplication) {
	p.Applications = append(p.Applications, app)
}

// ActiveApplications returns the applications that have not been reversed
func (p *Payment) ActiveApplications() []PaymentApplication {
	active := make([]PaymentApplication, 0, len(p.Applications))
	for _, app := range p.Applications {
		if app.IsActive() {
			active = append(active, app)
		}
	}
	return active
}

// ReverseApplications marks every active application as reversed and
// returns how many were reversed
func (p *Payment) ReverseApplications() int {
	reversed := 0
	for i := range p.Applications {
		if p.Applications[i].IsActive() {
			p.Applications[i].Reverse()
			reversed++
		}
	}
	return reversed
}

// AppliedAmount returns the sum of active application amounts
func (p *Payment) AppliedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, app := range p.Applications {
		if app.IsActive() {
			total = total.Add(app.AppliedAmount)
		}
	}
	return total
}

func (p *Payment) appendNote(note string) {
	if p.VerificationNotes == "" {
		p.VerificationNotes = note
		return
	}
	p.VerificationNotes = p.VerificationNotes + "\n" + note
}
