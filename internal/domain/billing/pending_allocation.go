package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condo/backend/internal/domain/shared"
	"github.com/condo/backend/internal/domain/shared/valueobject"
)

// PendingAllocationStatus represents the state of an unallocated remainder
type PendingAllocationStatus string

const (
	PendingAllocationStatusPending  PendingAllocationStatus = "pending"
	PendingAllocationStatusResolved PendingAllocationStatus = "resolved"
)

// PendingAllocationResolution represents how a pending remainder was settled
type PendingAllocationResolution string

const (
	ResolutionAppliedToQuota PendingAllocationResolution = "applied_to_quota" // Applied to a later quota
	ResolutionCredited       PendingAllocationResolution = "credited"         // Kept as owner credit
	ResolutionReturned       PendingAllocationResolution = "returned"         // Returned to the owner
)

// IsValid checks if the resolution type is valid
func (r PendingAllocationResolution) IsValid() bool {
	switch r {
	case ResolutionAppliedToQuota, ResolutionCredited, ResolutionReturned:
		return true
	}
	return false
}

// PaymentPendingAllocation holds the remainder of a verified payment that
// exceeded the unit's open quotas. The money is never discarded; it waits
// here until an administrator resolves it.
type PaymentPendingAllocation struct {
	shared.BaseAggregateRoot
	PaymentID        uuid.UUID                   `json:"payment_id"`
	UnitID           uuid.UUID                   `json:"unit_id"`
	PendingAmount    decimal.Decimal             `json:"pending_amount"`
	Currency         string                      `json:"currency"`
	Status           PendingAllocationStatus     `json:"status"`
	ResolutionType   PendingAllocationResolution `json:"resolution_type,omitempty"`
	ResolutionNotes  string                      `json:"resolution_notes"`
	AllocatedToQuota *uuid.UUID                  `json:"allocated_to_quota_id"`
	AllocatedBy      *uuid.UUID                  `json:"allocated_by"`
	AllocatedAt      *time.Time                  `json:"allocated_at"`
}

// NewPaymentPendingAllocation creates a pending allocation for a payment remainder
func NewPaymentPendingAllocation(paymentID, unitID uuid.UUID, amount valueobject.Money) (*PaymentPendingAllocation, error) {
	if paymentID == uuid.Nil {
		return nil, shared.NewDomainError(ErrCodeValidation, "Payment ID cannot be empty")
	}
	if unitID == uuid.Nil {
		return nil, shared.NewDomainError(ErrCodeValidation, "Unit ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError(ErrCodeValidation, "Pending amount must be positive")
	}

	return &PaymentPendingAllocation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PaymentID:         paymentID,
		UnitID:            unitID,
		PendingAmount:     amount.Amount(),
		Currency:          string(amount.Currency()),
		Status:            PendingAllocationStatusPending,
	}, nil
}

// PendingAmountMoney returns the pending amount as Money
func (pa *PaymentPendingAllocation) PendingAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(pa.PendingAmount, valueobject.Currency(pa.Currency))
	return m
}

// Resolve settles the pending allocation. When resolution is
// applied_to_quota the target quota must be given.
func (pa *PaymentPendingAllocation) Resolve(resolution PendingAllocationResolution, quotaID *uuid.UUID, resolvedBy uuid.UUID, notes string) error {
	if pa.Status != PendingAllocationStatusPending {
		return shared.NewDomainError("INVALID_STATE", "Pending allocation is already resolved")
	}
	if !resolution.IsValid() {
		return shared.NewDomainError(ErrCodeValidation, fmt.Sprintf("Invalid resolution type: %s", resolution))
	}
	if resolution == ResolutionAppliedToQuota && (quotaID == nil || *quotaID == uuid.Nil) {
		return shared.NewDomainError(ErrCodeValidation, "Target quota is required to apply the remainder")
	}
	if resolvedBy == uuid.Nil {
		return shared.NewDomainError(ErrCodeValidation, "Resolving user ID is required")
	}
	if strings.TrimSpace(notes) == "" {
		return shared.NewDomainError(ErrCodeValidation, "Resolution notes are required")
	}

	now := time.Now()
	pa.Status = PendingAllocationStatusResolved
	pa.ResolutionType = resolution
	pa.ResolutionNotes = notes
	pa.AllocatedToQuota = quotaID
	pa.AllocatedBy = &resolvedBy
	pa.AllocatedAt = &now
	pa.UpdatedAt = now
	pa.IncrementVersion()

	return nil
}
