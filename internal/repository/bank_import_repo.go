package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-backend/internal/models"
)

type BankImportRepository struct {
	db *gorm.DB
}

func NewBankImportRepository(db *gorm.DB) *BankImportRepository {
	return &BankImportRepository{db: db}
}

func (r *BankImportRepository) WithTx(tx *gorm.DB) *BankImportRepository {
	return &BankImportRepository{db: tx}
}

func (r *BankImportRepository) Create(ctx context.Context, imp *models.BankImport) error {
	return r.db.WithContext(ctx).Create(imp).Error
}

// Get loads an import including the uploaded file.
func (r *BankImportRepository) Get(ctx context.Context, id uuid.UUID) (*models.BankImport, error) {
	var imp models.BankImport
	if err := r.db.WithContext(ctx).First(&imp, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &imp, nil
}

// GetForBusiness loads an import without its file payload.
func (r *BankImportRepository) GetForBusiness(ctx context.Context, businessID, id uuid.UUID) (*models.BankImport, error) {
	var imp models.BankImport
	err := r.db.WithContext(ctx).
		Omit("file_data").
		Where("business_id = ?", businessID).
		First(&imp, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

// Transition moves an import from one status to another. It reports false
// when the import was no longer in the expected status.
func (r *BankImportRepository) Transition(ctx context.Context, id uuid.UUID, from []models.ImportStatus, to models.ImportStatus) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if to == models.ImportParsing {
		updates["started_at"] = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).Model(&models.BankImport{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

func (r *BankImportRepository) SetTotalRows(ctx context.Context, id uuid.UUID, total int) error {
	return r.db.WithContext(ctx).Model(&models.BankImport{}).
		Where("id = ?", id).
		Update("total_rows", total).Error
}

type Progress struct {
	ImportedRows  int
	FailedRows    int
	DuplicateRows int
}

// UpdateProgress publishes row counters so callers can poll a running import.
func (r *BankImportRepository) UpdateProgress(ctx context.Context, id uuid.UUID, p Progress) error {
	return r.db.WithContext(ctx).Model(&models.BankImport{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"imported_rows":  p.ImportedRows,
			"failed_rows":    p.FailedRows,
			"duplicate_rows": p.DuplicateRows,
		}).Error
}

func (r *BankImportRepository) MarkCompleted(ctx context.Context, imp *models.BankImport) error {
	now := time.Now().UTC()
	imp.Status = models.ImportCompleted
	imp.CompletedAt = &now
	return r.db.WithContext(ctx).Model(imp).
		Select("status", "total_rows", "imported_rows", "failed_rows", "duplicate_rows", "suggested_rows", "errors", "completed_at").
		Updates(imp).Error
}

func (r *BankImportRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.BankImport{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.ImportFailed,
			"error_message": message,
			"completed_at":  now,
		}).Error
}

func (r *BankImportRepository) SetSuggestedRows(ctx context.Context, id uuid.UUID, n int) error {
	return r.db.WithContext(ctx).Model(&models.BankImport{}).
		Where("id = ?", id).
		Update("suggested_rows", n).Error
}

// ListByStatus returns imports in any of the given statuses, oldest first,
// without their file payloads.
func (r *BankImportRepository) ListByStatus(ctx context.Context, statuses ...models.ImportStatus) ([]models.BankImport, error) {
	var imps []models.BankImport
	err := r.db.WithContext(ctx).
		Omit("file_data").
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&imps).Error
	return imps, err
}
