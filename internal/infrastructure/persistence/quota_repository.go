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

// QuotaSortFields contains allowed sort fields for quotas
var QuotaSortFields = map[string]bool{
	"id":              true,
	"created_at":      true,
	"updated_at":      true,
	"period_year":     true,
	"period_month":    true,
	"due_date":        true,
	"base_amount":     true,
	"interest_amount": true,
	"paid_amount":     true,
	"status":          true,
}

// GormQuotaRepository implements QuotaRepository using GORM
type GormQuotaRepository struct {
	db *gorm.DB
}

// NewGormQuotaRepository creates a new GormQuotaRepository
func NewGormQuotaRepository(db *gorm.DB) *GormQuotaRepository {
	return &GormQuotaRepository{db: db}
}

// FindByID finds a quota by its ID
func (r *GormQuotaRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Quota, error) {
	var model models.QuotaModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate loads a quota under a row lock
func (r *GormQuotaRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*billing.Quota, error) {
	var model models.QuotaModel
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

// FindOpenByUnitForUpdate loads the unit's open quotas ordered oldest
// due date first, each under a row lock
func (r *GormQuotaRepository) FindOpenByUnitForUpdate(ctx context.Context, unitID uuid.UUID) ([]*billing.Quota, error) {
	var quotaModels []models.QuotaModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("unit_id = ? AND status IN ?", unitID,
			[]billing.QuotaStatus{billing.QuotaStatusPending, billing.QuotaStatusOverdue}).
		Order("due_date ASC, created_at ASC").
		Find(&quotaModels).Error; err != nil {
		return nil, err
	}
	quotas := make([]*billing.Quota, len(quotaModels))
	for i, model := range quotaModels {
		quotas[i] = model.ToDomain()
	}
	return quotas, nil
}

// FindByUnit finds quotas for a unit with filtering and returns the total count
func (r *GormQuotaRepository) FindByUnit(ctx context.Context, unitID uuid.UUID, filter shared.Filter) ([]billing.Quota, int64, error) {
	var quotaModels []models.QuotaModel
	query := r.db.WithContext(ctx).Model(&models.QuotaModel{}).
		Where("unit_id = ?", unitID)
	query = r.applyFilterWithoutPagination(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = r.applyPagination(query, filter)
	if err := query.Find(&quotaModels).Error; err != nil {
		return nil, 0, err
	}
	quotas := make([]billing.Quota, len(quotaModels))
	for i, model := range quotaModels {
		quotas[i] = *model.ToDomain()
	}
	return quotas, total, nil
}

// FindOverdueCandidates finds pending quotas whose due date has passed
func (r *GormQuotaRepository) FindOverdueCandidates(ctx context.Context, asOf time.Time) ([]*billing.Quota, error) {
	var quotaModels []models.QuotaModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", billing.QuotaStatusPending, asOf).
		Order("due_date ASC").
		Find(&quotaModels).Error; err != nil {
		return nil, err
	}
	quotas := make([]*billing.Quota, len(quotaModels))
	for i, model := range quotaModels {
		quotas[i] = model.ToDomain()
	}
	return quotas, nil
}

// ExistsForPeriod reports whether the unit already has a non-cancelled
// quota for the billing period
func (r *GormQuotaRepository) ExistsForPeriod(ctx context.Context, unitID uuid.UUID, periodYear, periodMonth int) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.QuotaModel{}).
		Where("unit_id = ? AND period_year = ? AND period_month = ? AND status <> ?",
			unitID, periodYear, periodMonth, billing.QuotaStatusCancelled).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a quota
func (r *GormQuotaRepository) Save(ctx context.Context, quota *billing.Quota) error {
	model := models.QuotaModelFromDomain(quota)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking against the given version.
// Select("*") writes zero-value columns; a reversal can take paid_amount
// back to zero.
func (r *GormQuotaRepository) SaveWithLock(ctx context.Context, quota *billing.Quota, expectedVersion int) error {
	model := models.QuotaModelFromDomain(quota)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", quota.ID, expectedVersion).
		Select("*").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("CONCURRENCY_CONFLICT", "The quota has been modified by another transaction")
	}
	return nil
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormQuotaRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("description ILIKE ?", searchPattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "period_year":
			query = query.Where("period_year = ?", value)
		case "period_month":
			query = query.Where("period_month = ?", value)
		case "formula_id":
			query = query.Where("quota_formula_id = ?", value)
		case "open":
			if value == true {
				query = query.Where("status IN ?",
					[]billing.QuotaStatus{billing.QuotaStatusPending, billing.QuotaStatusOverdue})
			}
		}
	}

	return query
}

// applyPagination applies pagination and ordering to the query
func (r *GormQuotaRepository) applyPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	sortField := ValidateSortField(filter.OrderBy, QuotaSortFields, "due_date")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	return query.Order(sortField + " " + sortOrder)
}

// Ensure GormQuotaRepository implements QuotaRepository
var _ billing.QuotaRepository = (*GormQuotaRepository)(nil)
