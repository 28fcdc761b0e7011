package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condo/backend/internal/domain/shared"
)

// Billing error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNoAmountForUnit = "NO_AMOUNT_FOR_UNIT"
	ErrCodeInvalidStateTx  = "INVALID_STATE_TRANSITION"
	ErrCodeOverapplication = "OVERAPPLICATION"
)

// FormulaType represents how a quota formula computes its amount
type FormulaType string

const (
	FormulaTypeFixed      FormulaType = "fixed"      // Constant amount for every unit
	FormulaTypeExpression FormulaType = "expression" // Arithmetic expression over unit attributes
	FormulaTypePerUnit    FormulaType = "per_unit"   // Explicit amount per unit
)

// IsValid checks if the formula type is valid
func (t FormulaType) IsValid() bool {
	switch t {
	case FormulaTypeFixed, FormulaTypeExpression, FormulaTypePerUnit:
		return true
	}
	return false
}

// String returns the string representation of FormulaType
func (t FormulaType) String() string {
	return string(t)
}

// FormulaDefinition is the tagged payload of a quota formula. Exactly the
// field matching Type is set; the others stay empty.
type FormulaDefinition struct {
	Type           FormulaType                `json:"type"`
	FixedAmount    *decimal.Decimal           `json:"fixed_amount,omitempty"`
	Expression     string                     `json:"expression,omitempty"`
	PerUnitAmounts map[string]decimal.Decimal `json:"per_unit_amounts,omitempty"` // keyed by unit ID
}

// Value implements driver.Valuer for GORM to store the definition as JSONB
func (d FormulaDefinition) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner for GORM to read the definition from JSONB
func (d *FormulaDefinition) Scan(value interface{}) error {
	if value == nil {
		*d = FormulaDefinition{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan FormulaDefinition: unsupported type")
	}

	if len(bytes) == 0 {
		*d = FormulaDefinition{}
		return nil
	}

	return json.Unmarshal(bytes, d)
}

// VariableSet is a map of named constants available to formula expressions.
// It implements GORM Scanner/Valuer for JSONB storage.
type VariableSet map[string]decimal.Decimal

// Value implements driver.Valuer for GORM to store as JSONB
func (v VariableSet) Value() (driver.Value, error) {
	if v == nil {
		return "{}", nil
	}
	return json.Marshal(v)
}

// Scan implements sql.Scanner for GORM to read from JSONB
func (v *VariableSet) Scan(value interface{}) error {
	if value == nil {
		*v = VariableSet{}
		return nil
	}

	var bytes []byte
	switch val := value.(type) {
	case []byte:
		bytes = val
	case string:
		bytes = []byte(val)
	default:
		return errors.New("failed to scan VariableSet: unsupported type")
	}

	if len(bytes) == 0 {
		*v = VariableSet{}
		return nil
	}

	return json.Unmarshal(bytes, v)
}

// QuotaFormula represents a reusable rule that computes the quota amount
// charged to a unit. It is the aggregate root for formula management.
type QuotaFormula struct {
	shared.BaseAggregateRoot
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Definition  FormulaDefinition `json:"definition"`
	Variables   VariableSet       `json:"variables"` // named constants available to expressions
	Currency    string            `json:"currency"`
	IsActive    bool              `json:"is_active"`
}

// NewQuotaFormula creates a new quota formula, validating the definition
func NewQuotaFormula(name, description string, definition FormulaDefinition, variables map[string]decimal.Decimal, currency string) (*QuotaFormula, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError(ErrCodeValidation, "Formula name cannot be empty")
	}
	if len(name) > 120 {
		return nil, shared.NewDomainError(ErrCodeValidation, "Formula name cannot exceed 120 characters")
	}
	if currency == "" {
		return nil, shared.NewDomainError(ErrCodeValidation, "Currency is required")
	}
	if variables == nil {
		variables = make(map[string]decimal.Decimal)
	}
	if err := validateDefinition(definition, variables); err != nil {
		return nil, err
	}

	f := &QuotaFormula{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Description:       description,
		Definition:        definition,
		Variables:         variables,
		Currency:          currency,
		IsActive:          true,
	}

	f.AddDomainEvent(NewQuotaFormulaCreatedEvent(f))

	return f, nil
}

// UpdateDefinition replaces the formula definition and variables.
// The new definition is validated the same way as at creation.
func (f *QuotaFormula) UpdateDefinition(definition FormulaDefinition, variables map[string]decimal.Decimal) error {
	if !f.IsActive {
		return shared.NewDomainError("INVALID_STATE", "Cannot update an inactive formula")
	}
	if variables == nil {
		variables = make(map[string]decimal.Decimal)
	}
	if err := validateDefinition(definition, variables); err != nil {
		return err
	}

	f.Definition = definition
	f.Variables = variables
	f.Touch()
	f.IncrementVersion()

	f.AddDomainEvent(NewQuotaFormulaUpdatedEvent(f))

	return nil
}

// Rename updates the formula name and description
func (f *QuotaFormula) Rename(name, description string) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewDomainError(ErrCodeValidation, "Formula name cannot be empty")
	}
	if len(name) > 120 {
		return shared.NewDomainError(ErrCodeValidation, "Formula name cannot exceed 120 characters")
	}

	f.Name = name
	f.Description = description
	f.Touch()
	f.IncrementVersion()

	return nil
}

// Deactivate soft-deletes the formula. Calculations against an inactive
// formula are rejected as not found.
func (f *QuotaFormula) Deactivate() error {
	if !f.IsActive {
		return shared.NewDomainError("INVALID_STATE", "Formula is already inactive")
	}

	f.IsActive = false
	f.Touch()
	f.IncrementVersion()

	f.AddDomainEvent(NewQuotaFormulaDeactivatedEvent(f))

	return nil
}

// Activate re-enables a previously deactivated formula
func (f *QuotaFormula) Activate() error {
	if f.IsActive {
		return shared.NewDomainError("INVALID_STATE", "Formula is already active")
	}

	f.IsActive = true
	f.Touch()
	f.IncrementVersion()

	return nil
}

// AllowedVariables returns the variable names expressions of this formula
// may reference: the built-in unit attributes plus the formula's own
// declared variables.
func (f *QuotaFormula) AllowedVariables() []string {
	allowed := append([]string(nil), BuiltinVariables...)
	for name := range f.Variables {
		allowed = append(allowed, name)
	}
	return allowed
}

// PerUnitAmount returns the amount defined for the given unit, if any
func (f *QuotaFormula) PerUnitAmount(unitID uuid.UUID) (decimal.Decimal, bool) {
	amount, ok := f.Definition.PerUnitAmounts[unitID.String()]
	return amount, ok
}

func validateDefinition(def FormulaDefinition, variables map[string]decimal.Decimal) error {
	if !def.Type.IsValid() {
		return shared.NewDomainError(ErrCodeValidation, fmt.Sprintf("Invalid formula type: %s", def.Type))
	}

	switch def.Type {
	case FormulaTypeFixed:
		if def.FixedAmount == nil {
			return shared.NewDomainError(ErrCodeValidation, "Fixed formula requires a fixed amount")
		}
		if def.FixedAmount.IsNegative() {
			return shared.NewDomainError(ErrCodeValidation, "Fixed amount cannot be negative")
		}
		if def.Expression != "" || len(def.PerUnitAmounts) > 0 {
			return shared.NewDomainError(ErrCodeValidation, "Fixed formula cannot carry an expression or per-unit amounts")
		}
	case FormulaTypeExpression:
		if strings.TrimSpace(def.Expression) == "" {
			return shared.NewDomainError(ErrCodeValidation, "Expression formula requires an expression")
		}
		if def.FixedAmount != nil || len(def.PerUnitAmounts) > 0 {
			return shared.NewDomainError(ErrCodeValidation, "Expression formula cannot carry a fixed amount or per-unit amounts")
		}
		allowed := append([]string(nil), BuiltinVariables...)
		for name := range variables {
			allowed = append(allowed, name)
		}
		if err := ValidateExpression(def.Expression, allowed); err != nil {
			return err
		}
	case FormulaTypePerUnit:
		if len(def.PerUnitAmounts) == 0 {
			return shared.NewDomainError(ErrCodeValidation, "Per-unit formula requires at least one unit amount")
		}
		if def.FixedAmount != nil || def.Expression != "" {
			return shared.NewDomainError(ErrCodeValidation, "Per-unit formula cannot carry a fixed amount or an expression")
		}
		for unitID, amount := range def.PerUnitAmounts {
			if amount.IsNegative() {
				return shared.NewDomainError(ErrCodeValidation, fmt.Sprintf("Per-unit amount for %s cannot be negative", unitID))
			}
		}
	}

	return nil
}
