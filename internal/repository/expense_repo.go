package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-backend/internal/models"
)

type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) WithTx(tx *gorm.DB) *ExpenseRepository {
	return &ExpenseRepository{db: tx}
}

func (r *ExpenseRepository) Create(ctx context.Context, e *models.Expense) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *ExpenseRepository) Get(ctx context.Context, businessID, id uuid.UUID) (*models.Expense, error) {
	var e models.Expense
	err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		First(&e, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListUnreconciled returns the business's open expenses dated in [from, to].
func (r *ExpenseRepository) ListUnreconciled(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]models.Expense, error) {
	var expenses []models.Expense
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND is_reconciled = ?", businessID, false).
		Where("expense_date >= ? AND expense_date < ?", from, to).
		Order("expense_date ASC").
		Find(&expenses).Error
	return expenses, err
}

// SetReconciled flips the reconciliation flag. It reports false when the
// expense was already in the requested state.
func (r *ExpenseRepository) SetReconciled(ctx context.Context, id uuid.UUID, reconciled bool) (bool, error) {
	var at *time.Time
	if reconciled {
		now := time.Now().UTC()
		at = &now
	}
	res := r.db.WithContext(ctx).Model(&models.Expense{}).
		Where("id = ? AND is_reconciled = ?", id, !reconciled).
		Updates(map[string]interface{}{"is_reconciled": reconciled, "reconciled_at": at})
	return res.RowsAffected > 0, res.Error
}
