package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/condo/backend/internal/domain/billing"
	"github.com/condo/backend/internal/domain/shared"
	"github.com/condo/backend/internal/domain/shared/valueobject"
	"github.com/condo/backend/internal/infrastructure/telemetry"
)

// PaymentService drives the payment verification state machine and the
// quota ledger mutations that follow from it. Every state transition runs
// inside one storage transaction: either the payment status, every quota
// mutation and every application record land together, or none do.
type PaymentService struct {
	paymentRepo billing.PaymentRepository
	unitReader  billing.UnitReader
	txManager   billing.TransactionManager
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	paymentRepo billing.PaymentRepository,
	unitReader billing.UnitReader,
	txManager billing.TransactionManager,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		unitReader:  unitReader,
		txManager:   txManager,
	}
}

// ReportPaymentRequest carries an owner's payment report
type ReportPaymentRequest struct {
	UnitID          uuid.UUID
	ReportedBy      uuid.UUID
	Amount          valueobject.Money
	Method          billing.PaymentMethod
	ReferenceNumber string
	PaymentDate     time.Time
}

// ReportPayment registers a reported payment in pending_verification.
// No quota is touched until an administrator verifies it.
func (s *PaymentService) ReportPayment(ctx context.Context, req ReportPaymentRequest) (*billing.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "report_payment")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrUnitID, req.UnitID.String(),
		telemetry.SpanAttrAmount, req.Amount.StringFixed(2),
	)

	unit, err := s.unitReader.FindByID(ctx, req.UnitID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load unit: %w", err)
	}
	if unit == nil {
		err := shared.ErrNotFound
		telemetry.RecordError(span, err)
		return nil, err
	}

	if req.ReferenceNumber != "" {
		existing, err := s.paymentRepo.FindByReference(ctx, req.ReferenceNumber)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to check reference: %w", err)
		}
		if existing != nil && existing.Status != billing.PaymentStatusRejected {
			err := shared.NewDomainError("ALREADY_EXISTS",
				fmt.Sprintf("A payment with reference %s was already reported", req.ReferenceNumber))
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	payment, err := billing.NewPayment(req.UnitID, req.ReportedBy, req.Amount, req.Method, req.ReferenceNumber, req.PaymentDate)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, payment.ID.String())
	return payment, nil
}

// VerifyPaymentResult reports what verification did to the ledger
type VerifyPaymentResult struct {
	Payment          *billing.Payment          `json:"payment"`
	Allocations      []billing.QuotaAllocation `json:"allocations"`
	AllocatedAmount  string                    `json:"allocated_amount"`
	PendingAmount    string                    `json:"pending_amount"`
	QuotasFullyPaid  int                       `json:"quotas_fully_paid"`
	QuotasPartlyPaid int                       `json:"quotas_partly_paid"`
}

// VerifyPayment confirms a reported payment and applies it to the unit's
// open quotas, oldest due date first. Any remainder beyond the open
// balances is parked as a pending allocation instead of being dropped.
func (s *PaymentService) VerifyPayment(ctx context.Context, paymentID, verifiedBy uuid.UUID, notes string) (*VerifyPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "verify_payment")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, paymentID.String())

	var result *VerifyPaymentResult
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos *billing.Repositories) error {
		payment, err := repos.Payments.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("failed to load payment: %w", err)
		}
		if payment == nil {
			return shared.ErrNotFound
		}

		paymentVersion := payment.GetVersion()
		if err := payment.Verify(verifiedBy, notes); err != nil {
			return err
		}

		quotas, err := repos.Quotas.FindOpenByUnitForUpdate(ctx, payment.UnitID)
		if err != nil {
			return fmt.Errorf("failed to load open quotas: %w", err)
		}

		plan, err := billing.PlanAllocation(payment.AmountMoney(), quotas)
		if err != nil {
			return err
		}

		quotasByID := make(map[uuid.UUID]*billing.Quota, len(quotas))
		for _, q := range quotas {
			quotasByID[q.ID] = q
		}

		for _, alloc := range plan.Allocations {
			quota := quotasByID[alloc.QuotaID]
			quotaVersion := quota.GetVersion()

			amount, err := valueobject.NewMoney(alloc.Amount, valueobject.Currency(payment.Currency))
			if err != nil {
				return shared.NewDomainError("VALIDATION_ERROR", err.Error())
			}
			if err := quota.ApplyPayment(amount); err != nil {
				return err
			}

			app, err := billing.NewPaymentApplication(
				payment.ID, quota.ID, alloc.Amount, alloc.ToPrincipal, alloc.ToInterest, verifiedBy)
			if err != nil {
				return err
			}
			payment.AddApplication(*app)

			if err := repos.Quotas.SaveWithLock(ctx, quota, quotaVersion); err != nil {
				return err
			}
		}

		if plan.RemainingAmount.IsPositive() {
			remainder, err := valueobject.NewMoney(plan.RemainingAmount, valueobject.Currency(payment.Currency))
			if err != nil {
				return shared.NewDomainError("VALIDATION_ERROR", err.Error())
			}
			pending, err := billing.NewPaymentPendingAllocation(payment.ID, payment.UnitID, remainder)
			if err != nil {
				return err
			}
			if err := repos.PendingAllocations.Save(ctx, pending); err != nil {
				return fmt.Errorf("failed to save pending allocation: %w", err)
			}
		}

		if err := repos.Payments.SaveWithLock(ctx, payment, paymentVersion); err != nil {
			return err
		}

		result = &VerifyPaymentResult{
			Payment:          payment,
			Allocations:      plan.Allocations,
			AllocatedAmount:  plan.TotalAllocated.StringFixed(2),
			PendingAmount:    plan.RemainingAmount.StringFixed(2),
			QuotasFullyPaid:  len(plan.QuotasFullyPaid),
			QuotasPartlyPaid: len(plan.QuotasPartiallyPaid),
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrAllocated, result.AllocatedAmount)
	return result, nil
}

// RejectPayment marks a reported payment as rejected. The quota ledger is
// never touched.
func (s *PaymentService) RejectPayment(ctx context.Context, paymentID, rejectedBy uuid.UUID, reason string) (*billing.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "reject_payment")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, paymentID.String())

	var payment *billing.Payment
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos *billing.Repositories) error {
		loaded, err := repos.Payments.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("failed to load payment: %w", err)
		}
		if loaded == nil {
			return shared.ErrNotFound
		}

		version := loaded.GetVersion()
		if err := loaded.Reject(rejectedBy, reason); err != nil {
			return err
		}
		if err := repos.Payments.SaveWithLock(ctx, loaded, version); err != nil {
			return err
		}

		payment = loaded
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return payment, nil
}

// RefundPaymentResult reports the outcome of a refund
type RefundPaymentResult struct {
	Payment              *billing.Payment `json:"payment"`
	ReversedApplications int              `json:"reversed_applications"`
}

// RefundPayment transitions a completed payment to refunded and reverses
// every quota application it made, restoring the balances the verify
// consumed. Unresolved pending remainders of the payment are closed as
// returned in the same transaction.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID, refundedBy uuid.UUID, reason string) (*RefundPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "refund_payment")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, paymentID.String())

	var result *RefundPaymentResult
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos *billing.Repositories) error {
		payment, err := repos.Payments.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("failed to load payment: %w", err)
		}
		if payment == nil {
			return shared.ErrNotFound
		}

		paymentVersion := payment.GetVersion()
		if err := payment.Refund(refundedBy, reason); err != nil {
			return err
		}

		now := time.Now()
		for _, app := range payment.ActiveApplications() {
			quota, err := repos.Quotas.FindByIDForUpdate(ctx, app.QuotaID)
			if err != nil {
				return fmt.Errorf("failed to load quota %s: %w", app.QuotaID, err)
			}
			if quota == nil {
				return shared.ErrNotFound
			}

			quotaVersion := quota.GetVersion()
			amount, err := valueobject.NewMoney(app.AppliedAmount, valueobject.Currency(quota.Currency))
			if err != nil {
				return shared.NewDomainError("VALIDATION_ERROR", err.Error())
			}
			if err := quota.ReverseApplication(amount, now); err != nil {
				return err
			}
			if err := repos.Quotas.SaveWithLock(ctx, quota, quotaVersion); err != nil {
				return err
			}
		}

		reversed := payment.ReverseApplications()

		pendings, err := repos.PendingAllocations.FindByPayment(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("failed to load pending allocations: %w", err)
		}
		for i := range pendings {
			pa := &pendings[i]
			if pa.Status != billing.PendingAllocationStatusPending {
				continue
			}
			if err := pa.Resolve(billing.ResolutionReturned, nil, refundedBy,
				fmt.Sprintf("Returned with payment refund: %s", reason)); err != nil {
				return err
			}
			if err := repos.PendingAllocations.Save(ctx, pa); err != nil {
				return fmt.Errorf("failed to save pending allocation: %w", err)
			}
		}

		if err := repos.Payments.SaveWithLock(ctx, payment, paymentVersion); err != nil {
			return err
		}

		result = &RefundPaymentResult{
			Payment:              payment,
			ReversedApplications: reversed,
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrReversed, result.ReversedApplications)
	return result, nil
}

// GetPayment loads a payment by ID
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment == nil {
		return nil, shared.ErrNotFound
	}
	return payment, nil
}

// ListPendingVerification returns payments awaiting review
func (s *PaymentService) ListPendingVerification(ctx context.Context, filter shared.Filter) (*shared.Paginated[billing.Payment], error) {
	payments, total, err := s.paymentRepo.FindPendingVerification(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	result := shared.NewPaginated(payments, total, filter.Page, filter.PageSize)
	return &result, nil
}

// ListByUnit returns the payments reported for a unit
func (s *PaymentService) ListByUnit(ctx context.Context, unitID uuid.UUID, filter shared.Filter) (*shared.Paginated[billing.Payment], error) {
	payments, total, err := s.paymentRepo.FindByUnit(ctx, unitID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	result := shared.NewPaginated(payments, total, filter.Page, filter.PageSize)
	return &result, nil
}

// ListByReporter returns the payments a user reported
func (s *PaymentService) ListByReporter(ctx context.Context, userID uuid.UUID, filter shared.Filter) (*shared.Paginated[billing.Payment], error) {
	payments, total, err := s.paymentRepo.FindByReporter(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	result := shared.NewPaginated(payments, total, filter.Page, filter.PageSize)
	return &result, nil
}

// ListByStatus returns payments in a given status
func (s *PaymentService) ListByStatus(ctx context.Context, status billing.PaymentStatus, filter shared.Filter) (*shared.Paginated[billing.Payment], error) {
	if !status.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Invalid payment status: %s", status))
	}
	payments, total, err := s.paymentRepo.FindByStatus(ctx, status, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	result := shared.NewPaginated(payments, total, filter.Page, filter.PageSize)
	return &result, nil
}

// ListByDateRange returns payments whose payment date falls in [from, to]
func (s *PaymentService) ListByDateRange(ctx context.Context, from, to time.Time, filter shared.Filter) (*shared.Paginated[billing.Payment], error) {
	if to.Before(from) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Date range end precedes start")
	}
	payments, total, err := s.paymentRepo.FindByDateRange(ctx, from, to, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	result := shared.NewPaginated(payments, total, filter.Page, filter.PageSize)
	return &result, nil
}
