package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-backend/internal/models"
)

type MatchAuditRepository struct {
	db *gorm.DB
}

func NewMatchAuditRepository(db *gorm.DB) *MatchAuditRepository {
	return &MatchAuditRepository{db: db}
}

func (r *MatchAuditRepository) WithTx(tx *gorm.DB) *MatchAuditRepository {
	return &MatchAuditRepository{db: tx}
}

func (r *MatchAuditRepository) Record(ctx context.Context, entry *models.MatchAuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *MatchAuditRepository) ListForTransaction(ctx context.Context, txID uuid.UUID) ([]models.MatchAuditLog, error) {
	var logs []models.MatchAuditLog
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", txID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}
