package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-backend/internal/models"
)

// InvoiceRepository reads invoices and the payments recorded against them.
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) WithTx(tx *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: tx}
}

func (r *InvoiceRepository) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *InvoiceRepository) CreatePayment(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Omit("Invoice").Create(p).Error
}

// GetPayment fetches a single payment with its invoice.
func (r *InvoiceRepository) GetPayment(ctx context.Context, businessID, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Preload("Invoice").
		Where("business_id = ?", businessID).
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListUnreconciledPayments returns open payments dated in [from, to).
func (r *InvoiceRepository) ListUnreconciledPayments(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Preload("Invoice").
		Where("business_id = ? AND is_reconciled = ?", businessID, false).
		Where("payment_date >= ? AND payment_date < ?", from, to).
		Order("payment_date ASC").
		Find(&payments).Error
	return payments, err
}

func (r *InvoiceRepository) SetPaymentReconciled(ctx context.Context, id uuid.UUID, reconciled bool) (bool, error) {
	var at *time.Time
	if reconciled {
		now := time.Now().UTC()
		at = &now
	}
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND is_reconciled = ?", id, !reconciled).
		Updates(map[string]interface{}{"is_reconciled": reconciled, "reconciled_at": at})
	return res.RowsAffected > 0, res.Error
}

func (r *InvoiceRepository) GetInvoice(ctx context.Context, businessID, id uuid.UUID) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		First(&inv, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
