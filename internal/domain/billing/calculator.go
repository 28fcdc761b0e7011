package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/condo/backend/internal/domain/shared"
	"github.com/condo/backend/internal/domain/shared/valueobject"
)

// ChargeBreakdown explains how a charge amount was produced, so the figure
// shown to an owner can be audited without re-running the formula.
type ChargeBreakdown struct {
	FormulaType FormulaType                `json:"formula_type"`
	Expression  string                     `json:"expression,omitempty"`
	Variables   map[string]decimal.Decimal `json:"variables,omitempty"`
	RawAmount   decimal.Decimal            `json:"raw_amount"`
	Detail      string                     `json:"detail"`
}

// ChargeResult is the outcome of evaluating a formula against a unit
type ChargeResult struct {
	Amount    valueobject.Money `json:"amount"`
	Breakdown ChargeBreakdown   `json:"breakdown"`
}

// CalculateCharge evaluates a quota formula against a unit and returns the
// rounded amount with its breakdown. Additional variables take precedence
// over formula variables, which take precedence over unit attributes.
//
// The same formula, unit and variables always produce the same amount.
func CalculateCharge(formula *QuotaFormula, unit *Unit, additional map[string]decimal.Decimal) (*ChargeResult, error) {
	if formula == nil || !formula.IsActive {
		return nil, shared.ErrNotFound
	}
	if unit == nil {
		return nil, shared.ErrNotFound
	}

	currency := valueobject.Currency(formula.Currency)

	switch formula.Definition.Type {
	case FormulaTypeFixed:
		raw := *formula.Definition.FixedAmount
		amount, err := valueobject.NewMoney(raw, currency)
		if err != nil {
			return nil, shared.NewDomainError(ErrCodeValidation, err.Error())
		}
		return &ChargeResult{
			Amount: amount.RoundCurrency(),
			Breakdown: ChargeBreakdown{
				FormulaType: FormulaTypeFixed,
				RawAmount:   raw,
				Detail:      fmt.Sprintf("Fixed amount %s", raw.String()),
			},
		}, nil

	case FormulaTypePerUnit:
		raw, ok := formula.PerUnitAmount(unit.ID)
		if !ok {
			return nil, shared.NewDomainError(ErrCodeNoAmountForUnit,
				fmt.Sprintf("No amount defined for unit %s", unit.Number))
		}
		amount, err := valueobject.NewMoney(raw, currency)
		if err != nil {
			return nil, shared.NewDomainError(ErrCodeValidation, err.Error())
		}
		return &ChargeResult{
			Amount: amount.RoundCurrency(),
			Breakdown: ChargeBreakdown{
				FormulaType: FormulaTypePerUnit,
				RawAmount:   raw,
				Detail:      fmt.Sprintf("Per-unit amount for unit %s", unit.Number),
			},
		}, nil

	case FormulaTypeExpression:
		expr, err := ParseExpression(formula.Definition.Expression, formula.AllowedVariables())
		if err != nil {
			return nil, err
		}

		env := buildEnv(unit, formula.Variables, additional)
		raw, err := expr.Evaluate(env)
		if err != nil {
			return nil, err
		}

		amount, err := valueobject.NewMoney(raw, currency)
		if err != nil {
			return nil, shared.NewDomainError(ErrCodeValidation, err.Error())
		}

		return &ChargeResult{
			Amount: amount.RoundCurrency(),
			Breakdown: ChargeBreakdown{
				FormulaType: FormulaTypeExpression,
				Expression:  expr.Source(),
				// The full merged environment, not just the variables the
				// expression references.
				Variables: env,
				RawAmount:   raw,
				Detail:      fmt.Sprintf("Evaluated %q for unit %s", expr.Source(), unit.Number),
			},
		}, nil
	}

	return nil, shared.NewDomainError(ErrCodeValidation,
		fmt.Sprintf("Invalid formula type: %s", formula.Definition.Type))
}

// buildEnv layers the evaluation environment: unit attributes first, then
// formula variables, then call-site variables. Later layers win.
func buildEnv(unit *Unit, formulaVars, additional map[string]decimal.Decimal) map[string]decimal.Decimal {
	env := unit.AttributeEnv()
	for name, value := range formulaVars {
		env[name] = value
	}
	for name, value := range additional {
		env[name] = value
	}
	return env
}
