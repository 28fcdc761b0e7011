package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condo/backend/internal/domain/billing"
	"github.com/condo/backend/internal/domain/shared"
	"github.com/condo/backend/internal/domain/shared/valueobject"
	"github.com/condo/backend/internal/infrastructure/telemetry"
)

// QuotaService manages the monthly quota ledger
type QuotaService struct {
	quotaRepo   billing.QuotaRepository
	formulaRepo billing.QuotaFormulaRepository
	pendingRepo billing.PendingAllocationRepository
	unitReader  billing.UnitReader
	txManager   billing.TransactionManager
}

// NewQuotaService creates a new QuotaService
func NewQuotaService(
	quotaRepo billing.QuotaRepository,
	formulaRepo billing.QuotaFormulaRepository,
	pendingRepo billing.PendingAllocationRepository,
	unitReader billing.UnitReader,
	txManager billing.TransactionManager,
) *QuotaService {
	return &QuotaService{
		quotaRepo:   quotaRepo,
		formulaRepo: formulaRepo,
		pendingRepo: pendingRepo,
		unitReader:  unitReader,
		txManager:   txManager,
	}
}

// GenerateQuotasRequest selects the period and formula for a billing run
type GenerateQuotasRequest struct {
	FormulaID   uuid.UUID
	Description string
	PeriodYear  int
	PeriodMonth int
	DueDate     time.Time
}

// GenerateQuotasResult summarizes a billing run
type GenerateQuotasResult struct {
	QuotasCreated int               `json:"quotas_created"`
	TotalBilled   string            `json:"total_billed"`
	Quotas        []*billing.Quota  `json:"quotas"`
	Skipped       map[string]string `json:"skipped,omitempty"`
}

// GenerateMonthlyQuotas evaluates the formula against every active unit
// and creates one quota per unit for the requested period. Units the
// formula cannot price (per-unit table gaps) are reported in Skipped
// rather than aborting the whole run.
func (s *QuotaService) GenerateMonthlyQuotas(ctx context.Context, req GenerateQuotasRequest) (*GenerateQuotasResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quota", "generate_monthly_quotas")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrFormulaID, req.FormulaID.String(),
		telemetry.SpanAttrPeriod, fmt.Sprintf("%04d-%02d", req.PeriodYear, req.PeriodMonth),
	)

	if req.PeriodMonth < 1 || req.PeriodMonth > 12 {
		err := shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Invalid period month: %d", req.PeriodMonth))
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *GenerateQuotasResult
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos *billing.Repositories) error {
		formula, err := repos.Formulas.FindActiveByID(ctx, req.FormulaID)
		if err != nil {
			return fmt.Errorf("failed to load formula: %w", err)
		}
		if formula == nil {
			return shared.ErrNotFound
		}

		units, err := s.unitReader.FindActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to load units: %w", err)
		}

		run := &GenerateQuotasResult{Skipped: make(map[string]string)}
		total := decimal.Zero
		for _, unit := range units {
			exists, err := repos.Quotas.ExistsForPeriod(ctx, unit.ID, req.PeriodYear, req.PeriodMonth)
			if err != nil {
				return fmt.Errorf("failed to check existing quotas: %w", err)
			}
			if exists {
				run.Skipped[unit.ID.String()] = "quota already exists for this period"
				continue
			}

			charge, err := billing.CalculateCharge(formula, &unit, nil)
			if err != nil {
				var domainErr *shared.DomainError
				if errors.As(err, &domainErr) && domainErr.Code == billing.ErrCodeNoAmountForUnit {
					run.Skipped[unit.ID.String()] = domainErr.Message
					continue
				}
				return err
			}

			quota, err := billing.NewQuota(unit.ID, &formula.ID, req.Description,
				req.PeriodYear, req.PeriodMonth, req.DueDate, charge.Amount)
			if err != nil {
				return err
			}
			if err := repos.Quotas.Save(ctx, quota); err != nil {
				return fmt.Errorf("failed to save quota for unit %s: %w", unit.ID, err)
			}

			run.Quotas = append(run.Quotas, quota)
			total = total.Add(charge.Amount.Amount())
		}

		run.QuotasCreated = len(run.Quotas)
		run.TotalBilled = total.StringFixed(2)
		if len(run.Skipped) == 0 {
			run.Skipped = nil
		}
		result = run
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrQuotaCount, result.QuotasCreated)
	return result, nil
}

// MarkOverdueQuotas flips every pending quota whose due date has passed
// to overdue and returns how many changed.
func (s *QuotaService) MarkOverdueQuotas(ctx context.Context, asOf time.Time) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quota", "mark_overdue_quotas")
	defer span.End()

	var marked int
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos *billing.Repositories) error {
		candidates, err := repos.Quotas.FindOverdueCandidates(ctx, asOf)
		if err != nil {
			return fmt.Errorf("failed to load overdue candidates: %w", err)
		}

		for _, quota := range candidates {
			version := quota.GetVersion()
			if !quota.MarkOverdue(asOf) {
				continue
			}
			if err := repos.Quotas.SaveWithLock(ctx, quota, version); err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrQuotaCount, marked)
	return marked, nil
}

// AccrueInterestRequest applies a late interest charge to one quota
type AccrueInterestRequest struct {
	QuotaID uuid.UUID
	Amount  valueobject.Money
}

// AccrueInterest adds a late interest amount to an open quota
func (s *QuotaService) AccrueInterest(ctx context.Context, req AccrueInterestRequest) (*billing.Quota, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quota", "accrue_interest")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrQuotaID, req.QuotaID.String())

	var quota *billing.Quota
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos *billing.Repositories) error {
		loaded, err := repos.Quotas.FindByIDForUpdate(ctx, req.QuotaID)
		if err != nil {
			return fmt.Errorf("failed to load quota: %w", err)
		}
		if loaded == nil {
			return shared.ErrNotFound
		}

		version := loaded.GetVersion()
		if err := loaded.AccrueInterest(req.Amount); err != nil {
			return err
		}
		if err := repos.Quotas.SaveWithLock(ctx, loaded, version); err != nil {
			return err
		}

		quota = loaded
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return quota, nil
}

// ResolvePendingAllocationRequest settles an unallocated payment remainder
type ResolvePendingAllocationRequest struct {
	PendingAllocationID uuid.UUID
	Resolution          billing.PendingAllocationResolution
	QuotaID             *uuid.UUID
	ResolvedBy          uuid.UUID
	Notes               string
}

// ResolvePendingAllocation settles a parked payment remainder. When the
// resolution applies the remainder to a quota, the quota is charged in
// the same transaction.
func (s *QuotaService) ResolvePendingAllocation(ctx context.Context, req ResolvePendingAllocationRequest) (*billing.PaymentPendingAllocation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quota", "resolve_pending_allocation")
	defer span.End()

	var resolved *billing.PaymentPendingAllocation
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, repos *billing.Repositories) error {
		pending, err := repos.PendingAllocations.FindByID(ctx, req.PendingAllocationID)
		if err != nil {
			return fmt.Errorf("failed to load pending allocation: %w", err)
		}
		if pending == nil {
			return shared.ErrNotFound
		}

		if req.Resolution == billing.ResolutionAppliedToQuota {
			if req.QuotaID == nil {
				return shared.NewDomainError("VALIDATION_ERROR", "Quota is required to apply a pending amount")
			}
			quota, err := repos.Quotas.FindByIDForUpdate(ctx, *req.QuotaID)
			if err != nil {
				return fmt.Errorf("failed to load quota: %w", err)
			}
			if quota == nil {
				return shared.ErrNotFound
			}

			version := quota.GetVersion()
			if err := quota.ApplyPayment(pending.PendingAmountMoney()); err != nil {
				return err
			}
			if err := repos.Quotas.SaveWithLock(ctx, quota, version); err != nil {
				return err
			}
		}

		if err := pending.Resolve(req.Resolution, req.QuotaID, req.ResolvedBy, req.Notes); err != nil {
			return err
		}
		if err := repos.PendingAllocations.Save(ctx, pending); err != nil {
			return fmt.Errorf("failed to save pending allocation: %w", err)
		}

		resolved = pending
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return resolved, nil
}

// GetQuota loads a quota by ID
func (s *QuotaService) GetQuota(ctx context.Context, id uuid.UUID) (*billing.Quota, error) {
	quota, err := s.quotaRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load quota: %w", err)
	}
	if quota == nil {
		return nil, shared.ErrNotFound
	}
	return quota, nil
}

// ListUnitQuotas returns the quotas billed to a unit
func (s *QuotaService) ListUnitQuotas(ctx context.Context, unitID uuid.UUID, filter shared.Filter) (*shared.Paginated[billing.Quota], error) {
	quotas, total, err := s.quotaRepo.FindByUnit(ctx, unitID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotas: %w", err)
	}
	result := shared.NewPaginated(quotas, total, filter.Page, filter.PageSize)
	return &result, nil
}

// ListPendingAllocationsByUnit returns the unresolved payment remainders
// for a unit
func (s *QuotaService) ListPendingAllocationsByUnit(ctx context.Context, unitID uuid.UUID) ([]billing.PaymentPendingAllocation, error) {
	pendings, err := s.pendingRepo.FindPendingByUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending allocations: %w", err)
	}
	return pendings, nil
}
