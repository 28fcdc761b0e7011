package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condo/backend/internal/domain/billing"
	"github.com/condo/backend/internal/domain/shared"
	"github.com/condo/backend/internal/infrastructure/telemetry"
)

// ChargeService evaluates quota formulas against units
type ChargeService struct {
	formulaRepo billing.QuotaFormulaRepository
	unitReader  billing.UnitReader
}

// NewChargeService creates a new ChargeService
func NewChargeService(formulaRepo billing.QuotaFormulaRepository, unitReader billing.UnitReader) *ChargeService {
	return &ChargeService{
		formulaRepo: formulaRepo,
		unitReader:  unitReader,
	}
}

// CalculateCharge evaluates the formula for one unit and returns the
// amount with its breakdown. It never persists anything.
func (s *ChargeService) CalculateCharge(
	ctx context.Context,
	formulaID, unitID uuid.UUID,
	additionalVariables map[string]decimal.Decimal,
) (*billing.ChargeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "charge", "calculate_charge")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrFormulaID, formulaID.String(),
		telemetry.SpanAttrUnitID, unitID.String(),
	)

	formula, err := s.formulaRepo.FindActiveByID(ctx, formulaID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load formula: %w", err)
	}
	if formula == nil {
		err := shared.ErrNotFound
		telemetry.RecordError(span, err)
		return nil, err
	}

	unit, err := s.unitReader.FindByID(ctx, unitID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load unit: %w", err)
	}
	if unit == nil {
		err := shared.ErrNotFound
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := billing.CalculateCharge(formula, unit, additionalVariables)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrAmount, result.Amount.StringFixed(2))
	return result, nil
}
