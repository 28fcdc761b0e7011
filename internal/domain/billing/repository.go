package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/condo/backend/internal/domain/shared"
)

// Find* methods that load a single aggregate return (nil, nil) when no
// row matches; callers decide whether absence is an error.

// QuotaFormulaRepository manages quota formula persistence
type QuotaFormulaRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*QuotaFormula, error)
	FindActiveByID(ctx context.Context, id uuid.UUID) (*QuotaFormula, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]QuotaFormula, int64, error)
	Save(ctx context.Context, formula *QuotaFormula) error
	SaveWithLock(ctx context.Context, formula *QuotaFormula, expectedVersion int) error
}

// QuotaRepository manages quota persistence
type QuotaRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Quota, error)
	// FindByIDForUpdate loads a quota under a row lock. Only valid inside
	// a transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Quota, error)
	// FindOpenByUnitForUpdate loads the unit's open quotas ordered by due
	// date under row locks. Only valid inside a transaction.
	FindOpenByUnitForUpdate(ctx context.Context, unitID uuid.UUID) ([]*Quota, error)
	FindByUnit(ctx context.Context, unitID uuid.UUID, filter shared.Filter) ([]Quota, int64, error)
	FindOverdueCandidates(ctx context.Context, asOf time.Time) ([]*Quota, error)
	ExistsForPeriod(ctx context.Context, unitID uuid.UUID, periodYear, periodMonth int) (bool, error)
	Save(ctx context.Context, quota *Quota) error
	SaveWithLock(ctx context.Context, quota *Quota, expectedVersion int) error
}

// PaymentRepository manages payment persistence
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	// FindByIDForUpdate loads a payment under a row lock. Only valid
	// inside a transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindPendingVerification(ctx context.Context, filter shared.Filter) ([]Payment, int64, error)
	FindByUnit(ctx context.Context, unitID uuid.UUID, filter shared.Filter) ([]Payment, int64, error)
	FindByReporter(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]Payment, int64, error)
	FindByStatus(ctx context.Context, status PaymentStatus, filter shared.Filter) ([]Payment, int64, error)
	FindByDateRange(ctx context.Context, from, to time.Time, filter shared.Filter) ([]Payment, int64, error)
	FindByReference(ctx context.Context, reference string) (*Payment, error)
	Save(ctx context.Context, payment *Payment) error
	SaveWithLock(ctx context.Context, payment *Payment, expectedVersion int) error
}

// PendingAllocationRepository manages unallocated payment remainders
type PendingAllocationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentPendingAllocation, error)
	FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]PaymentPendingAllocation, error)
	FindPendingByUnit(ctx context.Context, unitID uuid.UUID) ([]PaymentPendingAllocation, error)
	Save(ctx context.Context, allocation *PaymentPendingAllocation) error
}

// UnitReader provides read access to the unit directory
type UnitReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Unit, error)
	FindActive(ctx context.Context) ([]Unit, error)
}

// Repositories bundles the billing repositories bound to one storage
// session, so a transaction can hand out consistent views of all of them.
type Repositories struct {
	Formulas           QuotaFormulaRepository
	Quotas             QuotaRepository
	Payments           PaymentRepository
	PendingAllocations PendingAllocationRepository
}

// TransactionManager runs a unit of work atomically. Every repository
// access through the passed Repositories sees the same transaction; any
// returned error rolls the whole unit back.
type TransactionManager interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error
}
