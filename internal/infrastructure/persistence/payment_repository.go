package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/condo/backend/internal/domain/billing"
	"github.com/condo/backend/internal/domain/shared"
	"github.com/condo/backend/internal/infrastructure/persistence/models"
)

// PaymentSortFields contains allowed sort fields for payments
var PaymentSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"amount":       true,
	"payment_date": true,
	"method":       true,
	"status":       true,
	"verified_at":  true,
}

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate loads a payment under a row lock
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindPendingVerification finds payments awaiting verification, oldest first
func (r *GormPaymentRepository) FindPendingVerification(ctx context.Context, filter shared.Filter) ([]billing.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("status = ?", billing.PaymentStatusPendingVerification)
	return r.findPaginated(query, filter, "created_at")
}

// FindByUnit finds payments for a unit with filtering
func (r *GormPaymentRepository) FindByUnit(ctx context.Context, unitID uuid.UUID, filter shared.Filter) ([]billing.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("unit_id = ?", unitID)
	return r.findPaginated(query, filter, "payment_date")
}

// FindByReporter finds payments reported by a user
func (r *GormPaymentRepository) FindByReporter(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]billing.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("reported_by = ?", userID)
	return r.findPaginated(query, filter, "payment_date")
}

// FindByStatus finds payments in a given status
func (r *GormPaymentRepository) FindByStatus(ctx context.Context, status billing.PaymentStatus, filter shared.Filter) ([]billing.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("status = ?", status)
	return r.findPaginated(query, filter, "payment_date")
}

// FindByDateRange finds payments whose payment date falls in [from, to]
func (r *GormPaymentRepository) FindByDateRange(ctx context.Context, from, to time.Time, filter shared.Filter) ([]billing.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("payment_date >= ? AND payment_date <= ?", from, to)
	return r.findPaginated(query, filter, "payment_date")
}

// FindByReference finds a payment by its bank reference number
func (r *GormPaymentRepository) FindByReference(ctx context.Context, reference string) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("reference_number = ?", reference).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a payment
func (r *GormPaymentRepository) Save(ctx context.Context, payment *billing.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking against the given version.
// Select("*") writes zero-value columns; allocation takes pending_amount
// to zero.
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, payment *billing.Payment, expectedVersion int) error {
	model := models.PaymentModelFromDomain(payment)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", payment.ID, expectedVersion).
		Select("*").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("CONCURRENCY_CONFLICT", "The payment has been modified by another transaction")
	}
	return nil
}

// findPaginated counts, paginates and runs the query, mapping models to domain
func (r *GormPaymentRepository) findPaginated(query *gorm.DB, filter shared.Filter, defaultSort string) ([]billing.Payment, int64, error) {
	query = r.applyFilterWithoutPagination(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}
	sortField := ValidateSortField(filter.OrderBy, PaymentSortFields, defaultSort)
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder)

	var paymentModels []models.PaymentModel
	if err := query.Find(&paymentModels).Error; err != nil {
		return nil, 0, err
	}
	payments := make([]billing.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments, total, nil
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormPaymentRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("reference_number ILIKE ?", searchPattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "method":
			query = query.Where("method = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "currency":
			query = query.Where("currency = ?", value)
		}
	}

	return query
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ billing.PaymentRepository = (*GormPaymentRepository)(nil)
