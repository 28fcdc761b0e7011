package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/condo/backend/internal/domain/billing"
	"github.com/condo/backend/internal/domain/shared"
)

// QuotaFormulaModel is the persistence model for the QuotaFormula aggregate root.
type QuotaFormulaModel struct {
	AggregateModel
	Name        string                    `gorm:"type:varchar(120);not null"`
	Description string                    `gorm:"type:text"`
	Definition  billing.FormulaDefinition `gorm:"type:jsonb;not null"`
	Variables   billing.VariableSet       `gorm:"type:jsonb;default:'{}'"`
	Currency    string                    `gorm:"type:varchar(3);not null"`
	IsActive    bool                      `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (QuotaFormulaModel) TableName() string {
	return "quota_formulas"
}

// ToDomain converts the persistence model to a domain QuotaFormula.
func (m *QuotaFormulaModel) ToDomain() *billing.QuotaFormula {
	return &billing.QuotaFormula{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		Name:        m.Name,
		Description: m.Description,
		Definition:  m.Definition,
		Variables:   m.Variables,
		Currency:    m.Currency,
		IsActive:    m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain QuotaFormula.
func (m *QuotaFormulaModel) FromDomain(f *billing.QuotaFormula) {
	m.FromDomainAggregateRoot(f.BaseAggregateRoot)
	m.Name = f.Name
	m.Description = f.Description
	m.Definition = f.Definition
	m.Variables = f.Variables
	m.Currency = f.Currency
	m.IsActive = f.IsActive
}

// QuotaFormulaModelFromDomain creates a new persistence model from a domain QuotaFormula.
func QuotaFormulaModelFromDomain(f *billing.QuotaFormula) *QuotaFormulaModel {
	m := &QuotaFormulaModel{}
	m.FromDomain(f)
	return m
}

// UnitModel is the persistence model for condominium units.
type UnitModel struct {
	BaseModel
	Number            string          `gorm:"type:varchar(30);not null;uniqueIndex"`
	OwnerUserID       *uuid.UUID      `gorm:"type:uuid;index"`
	AreaM2            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AliquotPercentage decimal.Decimal `gorm:"type:decimal(8,4);not null"`
	Floor             int             `gorm:"not null;default:0"`
	ParkingSpaces     int             `gorm:"not null;default:0"`
	IsActive          bool            `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (UnitModel) TableName() string {
	return "units"
}

// ToDomain converts the persistence model to a domain Unit.
func (m *UnitModel) ToDomain() *billing.Unit {
	return &billing.Unit{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Number:            m.Number,
		OwnerUserID:       m.OwnerUserID,
		AreaM2:            m.AreaM2,
		AliquotPercentage: m.AliquotPercentage,
		Floor:             m.Floor,
		ParkingSpaces:     m.ParkingSpaces,
		IsActive:          m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain Unit.
func (m *UnitModel) FromDomain(u *billing.Unit) {
	m.FromDomainBaseEntity(u.BaseEntity)
	m.Number = u.Number
	m.OwnerUserID = u.OwnerUserID
	m.AreaM2 = u.AreaM2
	m.AliquotPercentage = u.AliquotPercentage
	m.Floor = u.Floor
	m.ParkingSpaces = u.ParkingSpaces
	m.IsActive = u.IsActive
}

// UnitModelFromDomain creates a new persistence model from a domain Unit.
func UnitModelFromDomain(u *billing.Unit) *UnitModel {
	m := &UnitModel{}
	m.FromDomain(u)
	return m
}

// QuotaModel is the persistence model for the Quota aggregate root.
type QuotaModel struct {
	AggregateModel
	UnitID         uuid.UUID           `gorm:"type:uuid;not null;index:idx_quota_unit_period,priority:1"`
	QuotaFormulaID *uuid.UUID          `gorm:"type:uuid;index"`
	Description    string              `gorm:"type:varchar(300);not null"`
	PeriodYear     int                 `gorm:"not null;index:idx_quota_unit_period,priority:2"`
	PeriodMonth    int                 `gorm:"not null;index:idx_quota_unit_period,priority:3"`
	DueDate        time.Time           `gorm:"not null;index"`
	BaseAmount     decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	InterestAmount decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	PaidAmount     decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	Currency       string              `gorm:"type:varchar(3);not null"`
	Status         billing.QuotaStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
}

// TableName returns the table name for GORM
func (QuotaModel) TableName() string {
	return "quotas"
}

// ToDomain converts the persistence model to a domain Quota.
func (m *QuotaModel) ToDomain() *billing.Quota {
	return &billing.Quota{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		UnitID:         m.UnitID,
		QuotaFormulaID: m.QuotaFormulaID,
		Description:    m.Description,
		PeriodYear:     m.PeriodYear,
		PeriodMonth:    m.PeriodMonth,
		DueDate:        m.DueDate,
		BaseAmount:     m.BaseAmount,
		InterestAmount: m.InterestAmount,
		PaidAmount:     m.PaidAmount,
		Currency:       m.Currency,
		Status:         m.Status,
	}
}

// FromDomain populates the persistence model from a domain Quota.
func (m *QuotaModel) FromDomain(q *billing.Quota) {
	m.FromDomainAggregateRoot(q.BaseAggregateRoot)
	m.UnitID = q.UnitID
	m.QuotaFormulaID = q.QuotaFormulaID
	m.Description = q.Description
	m.PeriodYear = q.PeriodYear
	m.PeriodMonth = q.PeriodMonth
	m.DueDate = q.DueDate
	m.BaseAmount = q.BaseAmount
	m.InterestAmount = q.InterestAmount
	m.PaidAmount = q.PaidAmount
	m.Currency = q.Currency
	m.Status = q.Status
}

// QuotaModelFromDomain creates a new persistence model from a domain Quota.
func QuotaModelFromDomain(q *billing.Quota) *QuotaModel {
	m := &QuotaModel{}
	m.FromDomain(q)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	AggregateModel
	UnitID            uuid.UUID                   `gorm:"type:uuid;not null;index"`
	ReportedBy        uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Amount            decimal.Decimal             `gorm:"type:decimal(18,2);not null"`
	Currency          string                      `gorm:"type:varchar(3);not null"`
	Method            billing.PaymentMethod       `gorm:"type:varchar(20);not null"`
	ReferenceNumber   string                      `gorm:"type:varchar(100);index"`
	PaymentDate       time.Time                   `gorm:"not null;index"`
	Status            billing.PaymentStatus       `gorm:"type:varchar(25);not null;default:'pending_verification';index"`
	Applications      billing.PaymentApplications `gorm:"type:jsonb;default:'[]'"`
	VerifiedBy        *uuid.UUID                  `gorm:"type:uuid"`
	VerifiedAt        *time.Time
	VerificationNotes string     `gorm:"type:text"`
	RejectedBy        *uuid.UUID `gorm:"type:uuid"`
	RejectedAt        *time.Time
	RejectionReason   string     `gorm:"type:varchar(500)"`
	RefundedBy        *uuid.UUID `gorm:"type:uuid"`
	RefundedAt        *time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *billing.Payment {
	return &billing.Payment{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		UnitID:            m.UnitID,
		ReportedBy:        m.ReportedBy,
		Amount:            m.Amount,
		Currency:          m.Currency,
		Method:            m.Method,
		ReferenceNumber:   m.ReferenceNumber,
		PaymentDate:       m.PaymentDate,
		Status:            m.Status,
		Applications:      m.Applications,
		VerifiedBy:        m.VerifiedBy,
		VerifiedAt:        m.VerifiedAt,
		VerificationNotes: m.VerificationNotes,
		RejectedBy:        m.RejectedBy,
		RejectedAt:        m.RejectedAt,
		RejectionReason:   m.RejectionReason,
		RefundedBy:        m.RefundedBy,
		RefundedAt:        m.RefundedAt,
	}
}

// FromDomain populates the persistence model from a domain Payment.
func (m *PaymentModel) FromDomain(p *billing.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.UnitID = p.UnitID
	m.ReportedBy = p.ReportedBy
	m.Amount = p.Amount
	m.Currency = p.Currency
	m.Method = p.Method
	m.ReferenceNumber = p.ReferenceNumber
	m.PaymentDate = p.PaymentDate
	m.Status = p.Status
	m.Applications = p.Applications
	m.VerifiedBy = p.VerifiedBy
	m.VerifiedAt = p.VerifiedAt
	m.VerificationNotes = p.VerificationNotes
	m.RejectedBy = p.RejectedBy
	m.RejectedAt = p.RejectedAt
	m.RejectionReason = p.RejectionReason
	m.RefundedBy = p.RefundedBy
	m.RefundedAt = p.RefundedAt
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// PaymentPendingAllocationModel is the persistence model for unallocated payment remainders.
type PaymentPendingAllocationModel struct {
	AggregateModel
	PaymentID        uuid.UUID                           `gorm:"type:uuid;not null;index"`
	UnitID           uuid.UUID                           `gorm:"type:uuid;not null;index"`
	PendingAmount    decimal.Decimal                     `gorm:"type:decimal(18,2);not null"`
	Currency         string                              `gorm:"type:varchar(3);not null"`
	Status           billing.PendingAllocationStatus     `gorm:"type:varchar(15);not null;default:'pending';index"`
	ResolutionType   billing.PendingAllocationResolution `gorm:"type:varchar(20)"`
	ResolutionNotes  string                              `gorm:"type:text"`
	AllocatedToQuota *uuid.UUID                          `gorm:"type:uuid"`
	AllocatedBy      *uuid.UUID                          `gorm:"type:uuid"`
	AllocatedAt      *time.Time
}

// TableName returns the table name for GORM
func (PaymentPendingAllocationModel) TableName() string {
	return "payment_pending_allocations"
}

// ToDomain converts the persistence model to a domain PaymentPendingAllocation.
func (m *PaymentPendingAllocationModel) ToDomain() *billing.PaymentPendingAllocation {
	return &billing.PaymentPendingAllocation{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		PaymentID:        m.PaymentID,
		UnitID:           m.UnitID,
		PendingAmount:    m.PendingAmount,
		Currency:         m.Currency,
		Status:           m.Status,
		ResolutionType:   m.ResolutionType,
		ResolutionNotes:  m.ResolutionNotes,
		AllocatedToQuota: m.AllocatedToQuota,
		AllocatedBy:      m.AllocatedBy,
		AllocatedAt:      m.AllocatedAt,
	}
}

// FromDomain populates the persistence model from a domain PaymentPendingAllocation.
func (m *PaymentPendingAllocationModel) FromDomain(pa *billing.PaymentPendingAllocation) {
	m.FromDomainAggregateRoot(pa.BaseAggregateRoot)
	m.PaymentID = pa.PaymentID
	m.UnitID = pa.UnitID
	m.PendingAmount = pa.PendingAmount
	m.Currency = pa.Currency
	m.Status = pa.Status
	m.ResolutionType = pa.ResolutionType
	m.ResolutionNotes = pa.ResolutionNotes
	m.AllocatedToQuota = pa.AllocatedToQuota
	m.AllocatedBy = pa.AllocatedBy
	m.AllocatedAt = pa.AllocatedAt
}

// PaymentPendingAllocationModelFromDomain creates a new persistence model from a domain PaymentPendingAllocation.
func PaymentPendingAllocationModelFromDomain(pa *billing.PaymentPendingAllocation) *PaymentPendingAllocationModel {
	m := &PaymentPendingAllocationModel{}
	m.FromDomain(pa)
	return m
}
