package billing

import (
	"github.com/google/uuid"

	"github.com/condo/backend/internal/domain/shared"
)

// QuotaFormulaCreatedEvent is raised when a new quota formula is created
type QuotaFormulaCreatedEvent struct {
	shared.BaseDomainEvent
	FormulaID   uuid.UUID   `json:"formula_id"`
	Name        string      `json:"name"`
	FormulaType FormulaType `json:"formula_type"`
}

// EventType returns the event type name
func (e *QuotaFormulaCreatedEvent) EventType() string {
	return "QuotaFormulaCreated"
}

// NewQuotaFormulaCreatedEvent creates a new QuotaFormulaCreatedEvent
func NewQuotaFormulaCreatedEvent(f *QuotaFormula) *QuotaFormulaCreatedEvent {
	return &QuotaFormulaCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("QuotaFormulaCreated", "QuotaFormula", f.ID),
		FormulaID:       f.ID,
		Name:            f.Name,
		FormulaType:     f.Definition.Type,
	}
}

// QuotaFormulaUpdatedEvent is raised when a formula definition changes
type QuotaFormulaUpdatedEvent struct {
	shared.BaseDomainEvent
	FormulaID   uuid.UUID   `json:"formula_id"`
	Name        string      `json:"name"`
	FormulaType FormulaType `json:"formula_type"`
}

// EventType returns the event type name
func (e *QuotaFormulaUpdatedEvent) EventType() string {
	return "QuotaFormulaUpdated"
}

// NewQuotaFormulaUpdatedEvent creates a new QuotaFormulaUpdatedEvent
func NewQuotaFormulaUpdatedEvent(f *QuotaFormula) *QuotaFormulaUpdatedEvent {
	return &QuotaFormulaUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("QuotaFormulaUpdated", "QuotaFormula", f.ID),
		FormulaID:       f.ID,
		Name:            f.Name,
		FormulaType:     f.Definition.Type,
	}
}

// QuotaFormulaDeactivatedEvent is raised when a formula is soft-deleted
type QuotaFormulaDeactivatedEvent struct {
	shared.BaseDomainEvent
	FormulaID uuid.UUID `json:"formula_id"`
	Name      string    `json:"name"`
}

// EventType returns the event type name
func (e *QuotaFormulaDeactivatedEvent) EventType() string {
	return "QuotaFormulaDeactivated"
}

// NewQuotaFormulaDeactivatedEvent creates a new QuotaFormulaDeactivatedEvent
func NewQuotaFormulaDeactivatedEvent(f *QuotaFormula) *QuotaFormulaDeactivatedEvent {
	return &QuotaFormulaDeactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("QuotaFormulaDeactivated", "QuotaFormula", f.ID),
		FormulaID:       f.ID,
		Name:            f.Name,
	}
}
