package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/condo/backend/internal/domain/billing"
	"github.com/condo/backend/internal/infrastructure/persistence/models"
)

// GormPendingAllocationRepository implements PendingAllocationRepository using GORM
type GormPendingAllocationRepository struct {
	db *gorm.DB
}

// NewGormPendingAllocationRepository creates a new GormPendingAllocationRepository
func NewGormPendingAllocationRepository(db *gorm.DB) *GormPendingAllocationRepository {
	return &GormPendingAllocationRepository{db: db}
}

// FindByID finds a pending allocation by its ID
func (r *GormPendingAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PaymentPendingAllocation, error) {
	var model models.PaymentPendingAllocationModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPayment finds all pending allocations created for a payment
func (r *GormPendingAllocationRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]billing.PaymentPendingAllocation, error) {
	var allocationModels []models.PaymentPendingAllocationModel
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	return r.toDomainSlice(allocationModels), nil
}

// FindPendingByUnit finds unresolved allocations for a unit
func (r *GormPendingAllocationRepository) FindPendingByUnit(ctx context.Context, unitID uuid.UUID) ([]billing.PaymentPendingAllocation, error) {
	var allocationModels []models.PaymentPendingAllocationModel
	if err := r.db.WithContext(ctx).
		Where("unit_id = ? AND status = ?", unitID, billing.PendingAllocationStatusPending).
		Order("created_at ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	return r.toDomainSlice(allocationModels), nil
}

// Save creates or updates a pending allocation
func (r *GormPendingAllocationRepository) Save(ctx context.Context, allocation *billing.PaymentPendingAllocation) error {
	model := models.PaymentPendingAllocationModelFromDomain(allocation)
	return r.db.WithContext(ctx).Save(model).Error
}

func (r *GormPendingAllocationRepository) toDomainSlice(allocationModels []models.PaymentPendingAllocationModel) []billing.PaymentPendingAllocation {
	allocations := make([]billing.PaymentPendingAllocation, len(allocationModels))
	for i, model := range allocationModels {
		allocations[i] = *model.ToDomain()
	}
	return allocations
}

// Ensure GormPendingAllocationRepository implements PendingAllocationRepository
var _ billing.PendingAllocationRepository = (*GormPendingAllocationRepository)(nil)
