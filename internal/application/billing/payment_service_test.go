package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/condo/backend/internal/domain/billing"
	"github.com/condo/backend/internal/domain/shared"
	"github.com/condo/backend/internal/domain/shared/valueobject"
)

func usd(t *testing.T, amount string) valueobject.Money {
	t.Helper()
	m, err := valueobject.NewMoney(decimal.RequireFromString(amount), "USD")
	require.NoError(t, err)
	return m
}

func newOpenQuota(t *testing.T, unitID uuid.UUID, amount string, dueDate time.Time) *billing.Quota {
	t.Helper()
	quota, err := billing.NewQuota(unitID, nil, "Monthly maintenance",
		dueDate.Year(), int(dueDate.Month()), dueDate, usd(t, amount))
	require.NoError(t, err)
	return quota
}

func newReportedPayment(t *testing.T, unitID uuid.UUID, amount string) *billing.Payment {
	t.Helper()
	payment, err := billing.NewPayment(unitID, uuid.New(), usd(t, amount),
		billing.PaymentMethodBankTransfer, "REF-123", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return payment
}

func domainErrCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	return domainErr.Code
}

func TestPaymentService_ReportPayment(t *testing.T) {
	unitID := uuid.New()
	unit := &billing.Unit{Number: "4-B", IsActive: true}
	unit.ID = unitID

	baseRequest := func() ReportPaymentRequest {
		return ReportPaymentRequest{
			UnitID:          unitID,
			ReportedBy:      uuid.New(),
			Amount:          usd(t, "150.00"),
			Method:          billing.PaymentMethodBankTransfer,
			ReferenceNumber: "REF-123",
			PaymentDate:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		}
	}

	t.Run("registers a pending payment", func(t *testing.T) {
		payments := new(mockPaymentRepo)
		units := new(mockUnitReader)
		service := NewPaymentService(payments, units, newFakeTxManager(nil, nil, payments, nil))

		units.On("FindByID", mock.Anything, unitID).Return(unit, nil)
		payments.On("FindByReference", mock.Anything, "REF-123").Return(nil, nil)
		payments.On("Save", mock.Anything, mock.AnythingOfType("*billing.Payment")).Return(nil)

		payment, err := service.ReportPayment(context.Background(), baseRequest())

		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusPendingVerification, payment.Status)
		assert.Equal(t, unitID, payment.UnitID)
		assert.True(t, payment.Amount.Equal(decimal.RequireFromString("150.00")))
		payments.AssertExpectations(t)
		units.AssertExpectations(t)
	})

	t.Run("rejects unknown unit", func(t *testing.T) {
		payments := new(mockPaymentRepo)
		units := new(mockUnitReader)
		service := NewPaymentService(payments, units, newFakeTxManager(nil, nil, payments, nil))

		units.On("FindByID", mock.Anything, unitID).Return(nil, nil)

		_, err := service.ReportPayment(context.Background(), baseRequest())

		require.Error(t, err)
		assert.Equal(t, "NOT_FOUND", domainErrCode(t, err))
		payments.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("rejects duplicate reference number", func(t *testing.T) {
		payments := new(mockPaymentRepo)
		units := new(mockUnitReader)
		service := NewPaymentService(payments, units, newFakeTxManager(nil, nil, payments, nil))

		existing := newReportedPayment(t, unitID, "150.00")
		units.On("FindByID", mock.Anything, unitID).Return(unit, nil)
		payments.On("FindByReference", mock.Anything, "REF-123").Return(existing, nil)

		_, err := service.ReportPayment(context.Background(), baseRequest())

		require.Error(t, err)
		assert.Equal(t, "ALREADY_EXISTS", domainErrCode(t, err))
		payments.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("allows re-reporting a rejected reference", func(t *testing.T) {
		payments := new(mockPaymentRepo)
		units := new(mockUnitReader)
		service := NewPaymentService(payments, units, newFakeTxManager(nil, nil, payments, nil))

		rejected := newReportedPayment(t, unitID, "150.00")
		require.NoError(t, rejected.Reject(uuid.New(), "Reference not found in bank statement"))

		units.On("FindByID", mock.Anything, unitID).Return(unit, nil)
		payments.On("FindByReference", mock.Anything, "REF-123").Return(rejected, nil)
		payments.On("Save", mock.Anything, mock.AnythingOfType("*billing.Payment")).Return(nil)

		payment, err := service.ReportPayment(context.Background(), baseRequest())

		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusPendingVerification, payment.Status)
	})
}

func TestPaymentService_VerifyPayment(t *testing.T) {
	unitID := uuid.New()
	verifiedBy := uuid.New()

	t.Run("applies oldest quota first and parks the remainder", func(t *testing.T) {
		payments := new(mockPaymentRepo)
		quotas := new(mockQuotaRepo)
		pendings := new(mockPendingAllocationRepo)
		units := new(mockUnitReader)
		service := NewPaymentService(payments, units, newFakeTxManager(nil, quotas, payments, pendings))

		payment := newReportedPayment(t, unitID, "250.00")
		march := newOpenQuota(t, unitID, "120.00", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
		april := newOpenQuota(t, unitID, "100.00", time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC))

		payments.On("FindByIDForUpdate", mock.Anything, payment.ID).Return(payment, nil)
		quotas.On("FindOpenByUnitForUpdate", mock.Anything, unitID).Return([]*billing.Quota{april, march}, nil)
		quotas.On("SaveWithLock", mock.Anything, mock.AnythingOfType("*billing.Quota"), 1).Return(nil)
		pendings.On("Save", mock.Anything, mock.AnythingOfType("*billing.PaymentPendingAllocation")).Return(nil)
		payments.On("SaveWithLock", mock.Anything, payment, 1).Return(nil)

		result, err := service.VerifyPayment(context.Background(), payment.ID, verifiedBy, "Matched statement")

		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusCompleted, result.Payment.Status)
		require.Len(t, result.Allocations, 2)
		assert.Equal(t, march.ID, result.Allocations[0].QuotaID)
		assert.Equal(t, april.ID, result.Allocations[1].QuotaID)
		assert.Equal(t, "220.00", result.AllocatedAmount)
		assert.Equal(t, "30.00", result.PendingAmount)
		assert.Equal(t, 2, result.QuotasFullyPaid)
		assert.Equal(t, 0, result.QuotasPartlyPaid)

		assert.Equal(t, billing.QuotaStatusPaid, march.Status)
		assert.Equal(t, billing.QuotaStatusPaid, april.Status)
		assert.Len(t, payment.Applications, 2)

		payments.AssertExpectations(t)
		quotas.AssertExpectations(t)
		pendings.AssertExpectations(t)
	})

	t.Run("partial payment leaves the quota open", func(t *testing.T) {
		payments := new(mockPaymentRepo)
		quotas := new(mockQuotaRepo)
		pendings := new(mockPendingAllocationRepo)
		units := new(mockUnitReader)
		service := NewPaymentService(payments, units, newFakeTxManager(nil, quotas, payments, pendings))

		payment := newReportedPayment(t, unitID, "50.00")
		quota := newOpenQuota(t, unitID, "120.00", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))

		payments.On("FindByIDForUpdate", mock.Anything, payment.ID).Return(payment, nil)
		quotas.On("FindOpenByUnitForUpdate", mock.Anything, unitID).Return([]*billing.Quota{quota}, nil)
		quotas.On("SaveWithLock", mock.Anything, quota, 1).Return(nil)
		payments.On("SaveWithLock", mock.Anything, payment, 1).Return(nil)

		result, err := service.VerifyPayment(context.Background(), payment.ID, verifiedBy, "")

		require.NoError(t, err)
		assert.Equal(t, "50.00", result.AllocatedAmount)
		assert.Equal(t, "0.00", result.PendingAmount)
		assert.Equal(t, 0, result.QuotasFullyPaid)
		assert.Equal(t, 1, result.QuotasPartlyPaid)
		assert.Equal(t, billing.QuotaStatusPending, quota.Status)
		assert.True(t, quota.Balance().Equal(decimal.RequireFromString("70.00")))
		pendings.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("rejects a second verification", func(t *testing.T) {
		payments := new(mockPaymentRepo)
		quotas := new(mockQuotaRepo)
		units := new(mockUnitReader)
		service := NewPaymentService(payments, units, newFakeTxManager(nil, quotas, payments, nil))

		payment := newReportedPayment(t, unitID, "100.00")
		require.NoError(t, payment.Verify(verifiedBy, ""))

		payments.On("FindByIDForUpdate", mock.Anything, payment.ID).Return(payment, nil)

		_, err := service.VerifyPayment(context.Background(), payment.ID, verifiedBy, "")

		require.Error(t, err)
		assert.Equal(t, billing.ErrCodeInvalidStateTx, domainErrCode(t, err))
		quotas.AssertNotCalled(t, "FindOpenByUnitForUpdate", mock.Anything, mock.Anything)
	})

	t.Run("returns not found for unknown payment", func(t *testing.T) {
		payments := new(mockPaymentRepo)
		units := new(mockUnitReader)
		service := NewPaymentService(payments, units, newFakeTxManager(nil, nil, payments, nil))

		paymentID := uuid.New()
		payments.On("FindByIDForUpdate", mock.Anything, paymentID).Return(nil, nil)

		_, err := service.VerifyPayment(context.Background(), paymentID, verifiedBy, "")

		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})
}

func TestPaymentService_RejectPayment(t *testing.T) {
	unitID := uuid.New()

	t.Run("marks the payment rejected without touching quotas", func(t *testing.T) {
		payments := new(mockPaymentRepo)
		quotas := new(mockQuotaRepo)
		units := new(mockUnitReader)
		service := NewPaymentService(payments, units, newFakeTxManager(nil, quotas, payments, nil))

		payment := newReportedPayment(t, unitID, "80.00")
		payments.On("FindByIDForUpdate", mock.Anything, payment.ID).Return(payment, nil)
		payments.On("SaveWithLock", mock.Anything, payment, 1).Return(nil)

		rejected, err := service.RejectPayment(context.Background(), payment.ID, uuid.New(), "Amount does not match the statement")

		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusRejected, rejected.Status)
		quotas.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("requires a reason", func(t *testing.T) {
		payments := new(mockPaymentRepo)
		units := new(mockUnitReader)
		service := NewPaymentService(payments, units, newFakeTxManager(nil, nil, payments, nil))

		payment := newReportedPayment(t, unitID, "80.00")
		payments.On("FindByIDForUpdate", mock.Anything, payment.ID).Return(payment, nil)

		_, err := service.RejectPayment(context.Background(), payment.ID, uuid.New(), "  ")

		require.Error(t, err)
		assert.Equal(t, billing.ErrCodeValidation, domainErrCode(t, err))
	})
}

func TestPaymentService_RefundPayment(t *testing.T) {
	unitID := uuid.New()
	refundedBy := uuid.New()

	t.Run("reverses applications and restores quota balances", func(t *testing.T) {
		payments := new(mockPaymentRepo)
		quotas := new(mockQuotaRepo)
		pendings := new(mockPendingAllocationRepo)
		units := new(mockUnitReader)
		service := NewPaymentService(payments, units, newFakeTxManager(nil, quotas, payments, pendings))

		// Due date in the future so the reversal restores pending, not overdue.
		quota := newOpenQuota(t, unitID, "120.00", time.Now().AddDate(0, 0, 14))
		payment := newReportedPayment(t, unitID, "120.00")
		require.NoError(t, payment.Verify(uuid.New(), ""))
		require.NoError(t, quota.ApplyPayment(usd(t, "120.00")))
		app, err := billing.NewPaymentApplication(payment.ID, quota.ID,
			decimal.RequireFromString("120.00"), decimal.RequireFromString("120.00"), decimal.Zero, uuid.New())
		require.NoError(t, err)
		payment.AddApplication(*app)

		quotaVersion := quota.Version
		paymentVersion := payment.Version

		payments.On("FindByIDForUpdate", mock.Anything, payment.ID).Return(payment, nil)
		quotas.On("FindByIDForUpdate", mock.Anything, quota.ID).Return(quota, nil)
		quotas.On("SaveWithLock", mock.Anything, quota, quotaVersion).Return(nil)
		pendings.On("FindByPayment", mock.Anything, payment.ID).Return([]billing.PaymentPendingAllocation{}, nil)
		payments.On("SaveWithLock", mock.Anything, payment, paymentVersion).Return(nil)

		result, err := service.RefundPayment(context.Background(), payment.ID, refundedBy, "Owner requested refund")

		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusRefunded, result.Payment.Status)
		assert.Equal(t, 1, result.ReversedApplications)
		assert.True(t, quota.Balance().Equal(decimal.RequireFromString("120.00")))
		assert.Equal(t, billing.QuotaStatusPending, quota.Status)
		assert.Equal(t, billing.ApplicationStatusReversed, payment.Applications[0].Status)
	})

	t.Run("closes unresolved remainders as returned", func(t *testing.T) {
		payments := new(mockPaymentRepo)
		quotas := new(mockQuotaRepo)
		pendings := new(mockPendingAllocationRepo)
		units := new(mockUnitReader)
		service := NewPaymentService(payments, units, newFakeTxManager(nil, quotas, payments, pendings))

		payment := newReportedPayment(t, unitID, "30.00")
		require.NoError(t, payment.Verify(uuid.New(), ""))

		remainder, err := billing.NewPaymentPendingAllocation(payment.ID, unitID, usd(t, "30.00"))
		require.NoError(t, err)

		payments.On("FindByIDForUpdate", mock.Anything, payment.ID).Return(payment, nil)
		pendings.On("FindByPayment", mock.Anything, payment.ID).Return([]billing.PaymentPendingAllocation{*remainder}, nil)
		pendings.On("Save", mock.Anything, mock.MatchedBy(func(pa *billing.PaymentPendingAllocation) bool {
			return pa.Status == billing.PendingAllocationStatusResolved &&
				pa.ResolutionType == billing.ResolutionReturned
		})).Return(nil)
		payments.On("SaveWithLock", mock.Anything, payment, mock.AnythingOfType("int")).Return(nil)

		result, err := service.RefundPayment(context.Background(), payment.ID, refundedBy, "Duplicate report")

		require.NoError(t, err)
		assert.Equal(t, 0, result.ReversedApplications)
		pendings.AssertExpectations(t)
	})

	t.Run("refuses to refund a pending payment", func(t *testing.T) {
		payments := new(mockPaymentRepo)
		units := new(mockUnitReader)
		service := NewPaymentService(payments, units, newFakeTxManager(nil, nil, payments, nil))

		payment := newReportedPayment(t, unitID, "30.00")
		payments.On("FindByIDForUpdate", mock.Anything, payment.ID).Return(payment, nil)

		_, err := service.RefundPayment(context.Background(), payment.ID, refundedBy, "Mistake")

		require.Error(t, err)
		assert.Equal(t, billing.ErrCodeInvalidStateTx, domainErrCode(t, err))
	})
}

func TestPaymentService_ListByDateRange(t *testing.T) {
	t.Run("rejects inverted range", func(t *testing.T) {
		payments := new(mockPaymentRepo)
		units := new(mockUnitReader)
		service := NewPaymentService(payments, units, newFakeTxManager(nil, nil, payments, nil))

		from := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		_, err := service.ListByDateRange(context.Background(), from, to, shared.DefaultFilter())

		require.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", domainErrCode(t, err))
	})
}
