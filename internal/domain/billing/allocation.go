package billing

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condo/backend/internal/domain/shared"
	"github.com/condo/backend/internal/domain/shared/valueobject"
)

// QuotaAllocation is one planned application of a payment to a quota.
// The amount is split interest-first: late interest is settled before
// principal.
type QuotaAllocation struct {
	QuotaID     uuid.UUID       `json:"quota_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ToPrincipal decimal.Decimal `json:"to_principal"`
	ToInterest  decimal.Decimal `json:"to_interest"`
}

// AllocationPlan is the outcome of planning a payment against open quotas
type AllocationPlan struct {
	Allocations         []QuotaAllocation `json:"allocations"`
	TotalAllocated      decimal.Decimal   `json:"total_allocated"`
	RemainingAmount     decimal.Decimal   `json:"remaining_amount"`
	FullyAllocated      bool              `json:"fully_allocated"`
	QuotasFullyPaid     []uuid.UUID       `json:"quotas_fully_paid"`
	QuotasPartiallyPaid []uuid.UUID       `json:"quotas_partially_paid"`
}

// PlanAllocation distributes a payment amount across the given open quotas,
// oldest due date first, creation date as tie-breaker. Each allocation is
// capped at the quota's open balance; whatever cannot be placed is returned
// as RemainingAmount for the caller to park as a pending allocation.
func PlanAllocation(amount valueobject.Money, quotas []*Quota) (*AllocationPlan, error) {
	if !amount.IsPositive() {
		return nil, shared.NewDomainError(ErrCodeValidation, "Allocation amount must be positive")
	}

	open := make([]*Quota, 0, len(quotas))
	for _, q := range quotas {
		if q.IsOpen() && q.Balance().IsPositive() {
			open = append(open, q)
		}
	}

	sort.SliceStable(open, func(i, j int) bool {
		if !open[i].DueDate.Equal(open[j].DueDate) {
			return open[i].DueDate.Before(open[j].DueDate)
		}
		return open[i].CreatedAt.Before(open[j].CreatedAt)
	})

	allocations := make([]QuotaAllocation, 0, len(open))
	fullyPaid := make([]uuid.UUID, 0)
	partiallyPaid := make([]uuid.UUID, 0)
	remaining := amount.Amount()
	totalAllocated := decimal.Zero

	for _, q := range open {
		if remaining.IsZero() {
			break
		}

		balance := q.Balance()
		allocAmount := decimal.Min(remaining, balance)

		// Interest absorbs first, so settled interest is whatever prior
		// payments already covered of it.
		settledInterest := decimal.Min(q.PaidAmount, q.InterestAmount)
		openInterest := q.InterestAmount.Sub(settledInterest)
		toInterest := decimal.Min(allocAmount, openInterest)
		toPrincipal := allocAmount.Sub(toInterest)

		allocations = append(allocations, QuotaAllocation{
			QuotaID:     q.ID,
			Description: q.Description,
			Amount:      allocAmount,
			ToPrincipal: toPrincipal,
			ToInterest:  toInterest,
		})

		totalAllocated = totalAllocated.Add(allocAmount)
		remaining = remaining.Sub(allocAmount)

		if allocAmount.GreaterThanOrEqual(balance) {
			fullyPaid = append(fullyPaid, q.ID)
		} else {
			partiallyPaid = append(partiallyPaid, q.ID)
		}
	}

	return &AllocationPlan{
		Allocations:         allocations,
		TotalAllocated:      totalAllocated,
		RemainingAmount:     remaining,
		FullyAllocated:      remaining.IsZero(),
		QuotasFullyPaid:     fullyPaid,
		QuotasPartiallyPaid: partiallyPaid,
	}, nil
}
