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

// FormulaService manages the quota formula catalog
type FormulaService struct {
	formulaRepo billing.QuotaFormulaRepository
}

// NewFormulaService creates a new FormulaService
func NewFormulaService(formulaRepo billing.QuotaFormulaRepository) *FormulaService {
	return &FormulaService{formulaRepo: formulaRepo}
}

// CreateFormulaRequest carries the input for creating a formula
type CreateFormulaRequest struct {
	Name        string
	Description string
	Definition  billing.FormulaDefinition
	Variables   map[string]decimal.Decimal
	Currency    string
}

// CreateFormula validates and stores a new quota formula. Expression
// definitions are validated here, at save time, so a forbidden or broken
// expression never reaches the calculator.
func (s *FormulaService) CreateFormula(ctx context.Context, req CreateFormulaRequest) (*billing.QuotaFormula, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "formula", "create_formula")
	defer span.End()

	formula, err := billing.NewQuotaFormula(req.Name, req.Description, req.Definition, req.Variables, req.Currency)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.formulaRepo.Save(ctx, formula); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save formula: %w", err)
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrFormulaID, formula.ID.String())
	return formula, nil
}

// UpdateFormulaRequest carries the input for updating a formula
type UpdateFormulaRequest struct {
	Name        *string
	Description *string
	Definition  *billing.FormulaDefinition
	Variables   map[string]decimal.Decimal
}

// UpdateFormula applies a partial update to an existing formula
func (s *FormulaService) UpdateFormula(ctx context.Context, id uuid.UUID, req UpdateFormulaRequest) (*billing.QuotaFormula, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "formula", "update_formula")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrFormulaID, id.String())

	formula, err := s.formulaRepo.FindActiveByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load formula: %w", err)
	}
	if formula == nil {
		return nil, shared.ErrNotFound
	}

	expectedVersion := formula.GetVersion()

	if req.Name != nil {
		description := formula.Description
		if req.Description != nil {
			description = *req.Description
		}
		if err := formula.Rename(*req.Name, description); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	} else if req.Description != nil {
		if err := formula.Rename(formula.Name, *req.Description); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	if req.Definition != nil {
		variables := formula.Variables
		if req.Variables != nil {
			variables = req.Variables
		}
		if err := formula.UpdateDefinition(*req.Definition, variables); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	} else if req.Variables != nil {
		if err := formula.UpdateDefinition(formula.Definition, req.Variables); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	if err := s.formulaRepo.SaveWithLock(ctx, formula, expectedVersion); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return formula, nil
}

// DeactivateFormula soft-deletes a formula
func (s *FormulaService) DeactivateFormula(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "formula", "deactivate_formula")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrFormulaID, id.String())

	formula, err := s.formulaRepo.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to load formula: %w", err)
	}
	if formula == nil {
		return shared.ErrNotFound
	}

	expectedVersion := formula.GetVersion()
	if err := formula.Deactivate(); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	if err := s.formulaRepo.SaveWithLock(ctx, formula, expectedVersion); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	return nil
}

// GetFormula loads a formula by ID. Deactivated formulas are not found;
// they only surface through the list filter.
func (s *FormulaService) GetFormula(ctx context.Context, id uuid.UUID) (*billing.QuotaFormula, error) {
	formula, err := s.formulaRepo.FindActiveByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load formula: %w", err)
	}
	if formula == nil {
		return nil, shared.ErrNotFound
	}
	return formula, nil
}

// ListFormulas returns a paginated list of formulas
func (s *FormulaService) ListFormulas(ctx context.Context, filter shared.Filter) (*shared.Paginated[billing.QuotaFormula], error) {
	formulas, total, err := s.formulaRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list formulas: %w", err)
	}
	result := shared.NewPaginated(formulas, total, filter.Page, filter.PageSize)
	return &result, nil
}
