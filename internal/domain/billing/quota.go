package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condo/backend/internal/domain/shared"
	"github.com/condo/backend/internal/domain/shared/valueobject"
)

// QuotaStatus represents the lifecycle state of a quota
type QuotaStatus string

const (
	QuotaStatusPending   QuotaStatus = "pending"   // Issued, not yet fully paid
	QuotaStatusPaid      QuotaStatus = "paid"      // Balance reached zero
	QuotaStatusOverdue   QuotaStatus = "overdue"   // Past due date with open balance
	QuotaStatusCancelled QuotaStatus = "cancelled" // Voided by an administrator
)

// IsValid checks if the status is a valid QuotaStatus
func (s QuotaStatus) IsValid() bool {
	switch s {
	case QuotaStatusPending, QuotaStatusPaid, QuotaStatusOverdue, QuotaStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of QuotaStatus
func (s QuotaStatus) String() string {
	return string(s)
}

// IsOpen returns true if the quota can still receive payments
func (s QuotaStatus) IsOpen() bool {
	return s == QuotaStatusPending || s == QuotaStatusOverdue
}

// IsTerminal returns true if the quota is in a terminal state
func (s QuotaStatus) IsTerminal() bool {
	return s == QuotaStatusCancelled
}

// Quota represents a single billing obligation of a unit for a period.
// It is the ledger side of payment reconciliation: the invariant
// balance == base + interest - paid holds after every mutation.
type Quota struct {
	shared.BaseAggregateRoot
	UnitID         uuid.UUID       `json:"unit_id"`
	QuotaFormulaID *uuid.UUID      `json:"quota_formula_id"`
	Description    string          `json:"description"`
	PeriodYear     int             `json:"period_year"`
	PeriodMonth    int             `json:"period_month"`
	DueDate        time.Time       `json:"due_date"`
	BaseAmount     decimal.Decimal `json:"base_amount"`
	InterestAmount decimal.Decimal `json:"interest_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	Currency       string          `json:"currency"`
	Status         QuotaStatus     `json:"status"`
}

// NewQuota creates a new quota in pending status
func NewQuota(unitID uuid.UUID, formulaID *uuid.UUID, description string, periodYear, periodMonth int, dueDate time.Time, baseAmount valueobject.Money) (*Quota, error) {
	if unitID == uuid.Nil {
		return nil, shared.NewDomainError(ErrCodeValidation, "Unit ID cannot be empty")
	}
	if description == "" {
		return nil, shared.NewDomainError(ErrCodeValidation, "Quota description cannot be empty")
	}
	if periodYear < 2000 || periodYear > 2200 {
		return nil, shared.NewDomainError(ErrCodeValidation, fmt.Sprintf("Invalid period year: %d", periodYear))
	}
	if periodMonth < 1 || periodMonth > 12 {
		return nil, shared.NewDomainError(ErrCodeValidation, fmt.Sprintf("Invalid period month: %d", periodMonth))
	}
	if dueDate.IsZero() {
		return nil, shared.NewDomainError(ErrCodeValidation, "Due date is required")
	}
	if baseAmount.IsNegative() {
		return nil, shared.NewDomainError(ErrCodeValidation, "Base amount cannot be negative")
	}

	q := &Quota{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UnitID:            unitID,
		QuotaFormulaID:    formulaID,
		Description:       description,
		PeriodYear:        periodYear,
		PeriodMonth:       periodMonth,
		DueDate:           dueDate,
		BaseAmount:        baseAmount.RoundCurrency().Amount(),
		InterestAmount:    decimal.Zero,
		PaidAmount:        decimal.Zero,
		Currency:          string(baseAmount.Currency()),
		Status:            QuotaStatusPending,
	}

	q.AddDomainEvent(NewQuotaCreatedEvent(q))

	return q, nil
}

// Balance returns the open balance: base + interest - paid
func (q *Quota) Balance() decimal.Decimal {
	return q.BaseAmount.Add(q.InterestAmount).Sub(q.PaidAmount)
}

// BalanceMoney returns the open balance as Money
func (q *Quota) BalanceMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(q.Balance(), valueobject.Currency(q.Currency))
	return m
}

// TotalAmount returns base + interest
func (q *Quota) TotalAmount() decimal.Decimal {
	return q.BaseAmount.Add(q.InterestAmount)
}

// IsOpen returns true if the quota can still receive payments
func (q *Quota) IsOpen() bool {
	return q.Status.IsOpen()
}

// ApplyPayment applies a payment amount to the quota. The amount must be
// positive and must not exceed the open balance; an excess is rejected
// rather than silently capped so the caller's split stays reconciled.
func (q *Quota) ApplyPayment(amount valueobject.Money) error {
	if !q.Status.IsOpen() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot apply payment to quota in %s status", q.Status))
	}
	if string(amount.Currency()) != q.Currency {
		return shared.NewDomainError(ErrCodeValidation,
			fmt.Sprintf("Payment currency %s does not match quota currency %s", amount.Currency(), q.Currency))
	}
	if !amount.IsPositive() {
		return shared.NewDomainError(ErrCodeValidation, "Applied amount must be positive")
	}
	if amount.Amount().GreaterThan(q.Balance()) {
		return shared.NewDomainError(ErrCodeOverapplication,
			fmt.Sprintf("Applied amount %s exceeds quota balance %s",
				amount.StringFixed(2), q.Balance().StringFixed(2)))
	}

	q.PaidAmount = q.PaidAmount.Add(amount.Amount())
	if q.Balance().IsZero() {
		q.Status = QuotaStatusPaid
	}
	q.Touch()
	q.IncrementVersion()

	q.AddDomainEvent(NewQuotaPaymentAppliedEvent(q, amount.Amount()))

	return nil
}

// ReverseApplication removes a previously applied amount, restoring the
// open balance. A paid quota reopens as pending or overdue depending on
// its due date.
func (q *Quota) ReverseApplication(amount valueobject.Money, asOf time.Time) error {
	if q.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot reverse application on quota in %s status", q.Status))
	}
	if !amount.IsPositive() {
		return shared.NewDomainError(ErrCodeValidation, "Reversed amount must be positive")
	}
	if amount.Amount().GreaterThan(q.PaidAmount) {
		return shared.NewDomainError(ErrCodeValidation,
			fmt.Sprintf("Reversed amount %s exceeds paid amount %s",
				amount.StringFixed(2), q.PaidAmount.StringFixed(2)))
	}

	q.PaidAmount = q.PaidAmount.Sub(amount.Amount())
	if q.Balance().IsPositive() {
		if asOf.After(q.DueDate) {
			q.Status = QuotaStatusOverdue
		} else {
			q.Status = QuotaStatusPending
		}
	}
	q.Touch()
	q.IncrementVersion()

	q.AddDomainEvent(NewQuotaPaymentReversedEvent(q, amount.Amount()))

	return nil
}

// AccrueInterest adds late interest to the quota
func (q *Quota) AccrueInterest(amount valueobject.Money) error {
	if !q.Status.IsOpen() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot accrue interest on quota in %s status", q.Status))
	}
	if !amount.IsPositive() {
		return shared.NewDomainError(ErrCodeValidation, "Interest amount must be positive")
	}

	q.InterestAmount = q.InterestAmount.Add(amount.RoundCurrency().Amount())
	q.Touch()
	q.IncrementVersion()

	return nil
}

// MarkOverdue flips a pending quota past its due date to overdue
func (q *Quota) MarkOverdue(asOf time.Time) bool {
	if q.Status != QuotaStatusPending || !asOf.After(q.DueDate) {
		return false
	}

	q.Status = QuotaStatusOverdue
	q.Touch()
	q.IncrementVersion()

	q.AddDomainEvent(NewQuotaOverdueEvent(q))

	return true
}

// Cancel voids the quota. Quotas with applied payments cannot be cancelled.
func (q *Quota) Cancel() error {
	if q.Status == QuotaStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Quota is already cancelled")
	}
	if q.PaidAmount.IsPositive() {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel a quota with applied payments")
	}

	q.Status = QuotaStatusCancelled
	q.Touch()
	q.IncrementVersion()

	return nil
}
