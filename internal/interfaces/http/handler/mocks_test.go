package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/condo/backend/internal/domain/billing"
	"github.com/condo/backend/internal/domain/shared"
)

// mockQuotaFormulaRepo is a mock implementation of billing.QuotaFormulaRepository
type mockQuotaFormulaRepo struct {
	mock.Mock
}

func (m *mockQuotaFormulaRepo) FindByID(ctx context.Context, id uuid.UUID) (*billing.QuotaFormula, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.QuotaFormula), args.Error(1)
}

func (m *mockQuotaFormulaRepo) FindActiveByID(ctx context.Context, id uuid.UUID) (*billing.QuotaFormula, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.QuotaFormula), args.Error(1)
}

func (m *mockQuotaFormulaRepo) FindAll(ctx context.Context, filter shared.Filter) ([]billing.QuotaFormula, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]billing.QuotaFormula), args.Get(1).(int64), args.Error(2)
}

func (m *mockQuotaFormulaRepo) Save(ctx context.Context, formula *billing.QuotaFormula) error {
	args := m.Called(ctx, formula)
	return args.Error(0)
}

func (m *mockQuotaFormulaRepo) SaveWithLock(ctx context.Context, formula *billing.QuotaFormula, expectedVersion int) error {
	args := m.Called(ctx, formula, expectedVersion)
	return args.Error(0)
}

// mockQuotaRepo is a mock implementation of billing.QuotaRepository
type mockQuotaRepo struct {
	mock.Mock
}

func (m *mockQuotaRepo) FindByID(ctx context.Context, id uuid.UUID) (*billing.Quota, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Quota), args.Error(1)
}

func (m *mockQuotaRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*billing.Quota, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Quota), args.Error(1)
}

func (m *mockQuotaRepo) FindOpenByUnitForUpdate(ctx context.Context, unitID uuid.UUID) ([]*billing.Quota, error) {
	args := m.Called(ctx, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.Quota), args.Error(1)
}

func (m *mockQuotaRepo) FindByUnit(ctx context.Context, unitID uuid.UUID, filter shared.Filter) ([]billing.Quota, int64, error) {
	args := m.Called(ctx, unitID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]billing.Quota), args.Get(1).(int64), args.Error(2)
}

func (m *mockQuotaRepo) FindOverdueCandidates(ctx context.Context, asOf time.Time) ([]*billing.Quota, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.Quota), args.Error(1)
}

func (m *mockQuotaRepo) ExistsForPeriod(ctx context.Context, unitID uuid.UUID, periodYear, periodMonth int) (bool, error) {
	args := m.Called(ctx, unitID, periodYear, periodMonth)
	return args.Bool(0), args.Error(1)
}

func (m *mockQuotaRepo) Save(ctx context.Context, quota *billing.Quota) error {
	args := m.Called(ctx, quota)
	return args.Error(0)
}

func (m *mockQuotaRepo) SaveWithLock(ctx context.Context, quota *billing.Quota, expectedVersion int) error {
	args := m.Called(ctx, quota, expectedVersion)
	return args.Error(0)
}

// mockPaymentRepo is a mock implementation of billing.PaymentRepository
type mockPaymentRepo struct {
	mock.Mock
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Payment), args.Error(1)
}

func (m *mockPaymentRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Payment), args.Error(1)
}

func (m *mockPaymentRepo) FindPendingVerification(ctx context.Context, filter shared.Filter) ([]billing.Payment, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]billing.Payment), args.Get(1).(int64), args.Error(2)
}

func (m *mockPaymentRepo) FindByUnit(ctx context.Context, unitID uuid.UUID, filter shared.Filter) ([]billing.Payment, int64, error) {
	args := m.Called(ctx, unitID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]billing.Payment), args.Get(1).(int64), args.Error(2)
}

func (m *mockPaymentRepo) FindByReporter(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]billing.Payment, int64, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]billing.Payment), args.Get(1).(int64), args.Error(2)
}

func (m *mockPaymentRepo) FindByStatus(ctx context.Context, status billing.PaymentStatus, filter shared.Filter) ([]billing.Payment, int64, error) {
	args := m.Called(ctx, status, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]billing.Payment), args.Get(1).(int64), args.Error(2)
}

func (m *mockPaymentRepo) FindByDateRange(ctx context.Context, from, to time.Time, filter shared.Filter) ([]billing.Payment, int64, error) {
	args := m.Called(ctx, from, to, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]billing.Payment), args.Get(1).(int64), args.Error(2)
}

func (m *mockPaymentRepo) FindByReference(ctx context.Context, reference string) (*billing.Payment, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Payment), args.Error(1)
}

func (m *mockPaymentRepo) Save(ctx context.Context, payment *billing.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *mockPaymentRepo) SaveWithLock(ctx context.Context, payment *billing.Payment, expectedVersion int) error {
	args := m.Called(ctx, payment, expectedVersion)
	return args.Error(0)
}

// mockPendingAllocationRepo is a mock implementation of billing.PendingAllocationRepository
type mockPendingAllocationRepo struct {
	mock.Mock
}

func (m *mockPendingAllocationRepo) FindByID(ctx context.Context, id uuid.UUID) (*billing.PaymentPendingAllocation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PaymentPendingAllocation), args.Error(1)
}

func (m *mockPendingAllocationRepo) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]billing.PaymentPendingAllocation, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.PaymentPendingAllocation), args.Error(1)
}

func (m *mockPendingAllocationRepo) FindPendingByUnit(ctx context.Context, unitID uuid.UUID) ([]billing.PaymentPendingAllocation, error) {
	args := m.Called(ctx, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.PaymentPendingAllocation), args.Error(1)
}

func (m *mockPendingAllocationRepo) Save(ctx context.Context, allocation *billing.PaymentPendingAllocation) error {
	args := m.Called(ctx, allocation)
	return args.Error(0)
}

// mockUnitReader is a mock implementation of billing.UnitReader
type mockUnitReader struct {
	mock.Mock
}

func (m *mockUnitReader) FindByID(ctx context.Context, id uuid.UUID) (*billing.Unit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Unit), args.Error(1)
}

func (m *mockUnitReader) FindActive(ctx context.Context) ([]billing.Unit, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Unit), args.Error(1)
}

// fakeTxManager runs the unit of work directly against the given mocks,
// without any real transaction
type fakeTxManager struct {
	repos *billing.Repositories
}

func newFakeTxManager(formulas *mockQuotaFormulaRepo, quotas *mockQuotaRepo, payments *mockPaymentRepo, pendings *mockPendingAllocationRepo) *fakeTxManager {
	return &fakeTxManager{
		repos: &billing.Repositories{
			Formulas:           formulas,
			Quotas:             quotas,
			Payments:           payments,
			PendingAllocations: pendings,
		},
	}
}

func (m *fakeTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, repos *billing.Repositories) error) error {
	return fn(ctx, m.repos)
}
