package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/condo/backend/internal/domain/billing"
	"github.com/condo/backend/internal/domain/shared"
	"github.com/condo/backend/internal/infrastructure/persistence/models"
)

// QuotaFormulaSortFields contains allowed sort fields for quota formulas
var QuotaFormulaSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"name":       true,
	"currency":   true,
	"is_active":  true,
}

// GormQuotaFormulaRepository implements QuotaFormulaRepository using GORM
type GormQuotaFormulaRepository struct {
	db *gorm.DB
}

// NewGormQuotaFormulaRepository creates a new GormQuotaFormulaRepository
func NewGormQuotaFormulaRepository(db *gorm.DB) *GormQuotaFormulaRepository {
	return &GormQuotaFormulaRepository{db: db}
}

// FindByID finds a quota formula by its ID
func (r *GormQuotaFormulaRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.QuotaFormula, error) {
	var model models.QuotaFormulaModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByID finds a quota formula by ID, skipping deactivated ones
func (r *GormQuotaFormulaRepository) FindActiveByID(ctx context.Context, id uuid.UUID) (*billing.QuotaFormula, error) {
	var model models.QuotaFormulaModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds all quota formulas with filtering and returns the total count
func (r *GormQuotaFormulaRepository) FindAll(ctx context.Context, filter shared.Filter) ([]billing.QuotaFormula, int64, error) {
	var formulaModels []models.QuotaFormulaModel
	query := r.db.WithContext(ctx).Model(&models.QuotaFormulaModel{})
	query = r.applyFilterWithoutPagination(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = r.applyPagination(query, filter)
	if err := query.Find(&formulaModels).Error; err != nil {
		return nil, 0, err
	}
	formulas := make([]billing.QuotaFormula, len(formulaModels))
	for i, model := range formulaModels {
		formulas[i] = *model.ToDomain()
	}
	return formulas, total, nil
}

// Save creates or updates a quota formula
func (r *GormQuotaFormulaRepository) Save(ctx context.Context, formula *billing.QuotaFormula) error {
	model := models.QuotaFormulaModelFromDomain(formula)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking against the given version.
// Select("*") makes the update write zero-value columns too; a struct
// update would skip is_active=false and a cleared fixed_amount.
func (r *GormQuotaFormulaRepository) SaveWithLock(ctx context.Context, formula *billing.QuotaFormula, expectedVersion int) error {
	model := models.QuotaFormulaModelFromDomain(formula)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", formula.ID, expectedVersion).
		Select("*").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("CONCURRENCY_CONFLICT", "The formula has been modified by another transaction")
	}
	return nil
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormQuotaFormulaRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR description ILIKE ?", searchPattern, searchPattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "is_active":
			query = query.Where("is_active = ?", value)
		case "currency":
			query = query.Where("currency = ?", value)
		}
	}

	return query
}

// applyPagination applies pagination and ordering to the query
func (r *GormQuotaFormulaRepository) applyPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	sortField := ValidateSortField(filter.OrderBy, QuotaFormulaSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	return query.Order(sortField + " " + sortOrder)
}

// Ensure GormQuotaFormulaRepository implements QuotaFormulaRepository
var _ billing.QuotaFormulaRepository = (*GormQuotaFormulaRepository)(nil)
