package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bank-reconciliation-backend/internal/models"
)

type BankTransactionRepository struct {
	db *gorm.DB
}

func NewBankTransactionRepository(db *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: db}
}

func (r *BankTransactionRepository) WithTx(tx *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: tx}
}

func (r *BankTransactionRepository) CreateBatch(ctx context.Context, txs []*models.BankTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(txs, 100).Error
}

func (r *BankTransactionRepository) Get(ctx context.Context, businessID, id uuid.UUID) (*models.BankTransaction, error) {
	var tx models.BankTransaction
	err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		First(&tx, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *BankTransactionRepository) Save(ctx context.Context, tx *models.BankTransaction) error {
	return r.db.WithContext(ctx).Save(tx).Error
}

// ListByStatus returns the import's transactions in a status, in row order.
func (r *BankTransactionRepository) ListByStatus(ctx context.Context, importID uuid.UUID, status models.TxStatus) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	err := r.db.WithContext(ctx).
		Where("import_id = ? AND status = ?", importID, status).
		Order("row_number ASC").
		Find(&txs).Error
	return txs, err
}

// List pages through an import's transactions ordered by row number. The
// cursor is the last row number already returned.
func (r *BankTransactionRepository) List(ctx context.Context, importID uuid.UUID, status models.TxStatus, cursor, limit int) ([]models.BankTransaction, int, bool, error) {
	var txs []models.BankTransaction
	query := r.db.WithContext(ctx).
		Where("import_id = ?", importID).
		Order("row_number ASC").
		Limit(limit + 1)

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if cursor > 0 {
		query = query.Where("row_number > ?", cursor)
	}
	if err := query.Find(&txs).Error; err != nil {
		return nil, 0, false, err
	}

	hasMore := false
	nextCursor := 0
	if len(txs) > limit {
		hasMore = true
		txs = txs[:limit]
		nextCursor = txs[limit-1].RowNumber
	}
	return txs, nextCursor, hasMore, nil
}

// ClaimedCounterparts returns expense and payment ids already held by a
// suggested or matched transaction of the business.
func (r *BankTransactionRepository) ClaimedCounterparts(ctx context.Context, businessID uuid.UUID) (map[uuid.UUID]bool, error) {
	var rows []struct {
		MatchedExpenseID *uuid.UUID
		MatchedPaymentID *uuid.UUID
	}
	err := r.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Select("matched_expense_id, matched_payment_id").
		Where("business_id = ? AND status IN ?", businessID, []models.TxStatus{models.StatusSuggested, models.StatusMatched}).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	claimed := make(map[uuid.UUID]bool, len(rows))
	for _, row := range rows {
		if row.MatchedExpenseID != nil {
			claimed[*row.MatchedExpenseID] = true
		}
		if row.MatchedPaymentID != nil {
			claimed[*row.MatchedPaymentID] = true
		}
	}
	return claimed, nil
}

// HolderOf returns the transaction referencing counterpartID, if any.
func (r *BankTransactionRepository) HolderOf(ctx context.Context, businessID, counterpartID uuid.UUID) (*models.BankTransaction, error) {
	var tx models.BankTransaction
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND status IN ?", businessID, []models.TxStatus{models.StatusSuggested, models.StatusMatched}).
		Where("matched_expense_id = ? OR matched_payment_id = ?", counterpartID, counterpartID).
		Limit(1).
		Find(&tx).Error
	if err != nil {
		return nil, err
	}
	if tx.ID == uuid.Nil {
		return nil, nil
	}
	return &tx, nil
}

type StatRow struct {
	Status      models.TxStatus
	Count       int64
	DebitTotal  decimal.Decimal
	CreditTotal decimal.Decimal
}

func (r *BankTransactionRepository) Stats(ctx context.Context, importID uuid.UUID) ([]StatRow, error) {
	var rows []StatRow
	err := r.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("import_id = ?", importID).
		Select("status, COUNT(*) AS count, COALESCE(SUM(debit),0) AS debit_total, COALESCE(SUM(credit),0) AS credit_total").
		Group("status").
		Scan(&rows).Error
	return rows, err
}
