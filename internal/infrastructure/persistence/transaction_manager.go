package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/condo/backend/internal/domain/billing"
)

// GormTransactionManager implements billing.TransactionManager on top of
// GORM transactions. Every repository handed to the callback is bound to
// the same database transaction, so a failed unit of work rolls back all
// aggregate writes together.
type GormTransactionManager struct {
	db *gorm.DB
}

// NewGormTransactionManager creates a new GormTransactionManager
func NewGormTransactionManager(db *gorm.DB) *GormTransactionManager {
	return &GormTransactionManager{db: db}
}

// InTransaction runs fn inside a database transaction
func (m *GormTransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, repos *billing.Repositories) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := NewRepositories(tx)
		return fn(ctx, repos)
	})
}

// NewRepositories builds the billing repository bundle bound to the given
// database handle, which may be a transaction
func NewRepositories(db *gorm.DB) *billing.Repositories {
	return &billing.Repositories{
		Formulas:           NewGormQuotaFormulaRepository(db),
		Quotas:             NewGormQuotaRepository(db),
		Payments:           NewGormPaymentRepository(db),
		PendingAllocations: NewGormPendingAllocationRepository(db),
	}
}

// Ensure GormTransactionManager implements TransactionManager
var _ billing.TransactionManager = (*GormTransactionManager)(nil)
