package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/repository"
	"bank-reconciliation-backend/internal/services/matching"
	"bank-reconciliation-backend/internal/statement"
)

type Options struct {
	DateFormats   []string
	ProgressEvery int
}

type ReconciliationService struct {
	db     *gorm.DB
	repos  repository.Repositories
	engine *matching.Engine
	opts   Options
	logger *slog.Logger
	locks  businessLocks
}

func NewReconciliationService(db *gorm.DB, repos repository.Repositories, engine *matching.Engine, opts Options, logger *slog.Logger) *ReconciliationService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 100
	}
	return &ReconciliationService{
		db:     db,
		repos:  repos,
		engine: engine,
		opts:   opts,
		logger: logger,
	}
}

type CreateImportRequest struct {
	BusinessID uuid.UUID
	FileName   string
	FileType   string
	SourceBank string
	Data       []byte
	Mapping    models.ColumnMapping
}

// CreateImport records an upload in pending state. The caller schedules
// RunImport to process it.
func (s *ReconciliationService) CreateImport(ctx context.Context, req CreateImportRequest) (*models.BankImport, error) {
	if req.BusinessID == uuid.Nil {
		return nil, fmt.Errorf("business id is required")
	}
	fileType := strings.ToLower(strings.TrimPrefix(req.FileType, "."))
	if fileType == "" {
		fileType = statement.DetectFileType(req.FileName)
	}

	imp := &models.BankImport{
		ID:            uuid.New(),
		BusinessID:    req.BusinessID,
		FileName:      req.FileName,
		FileType:      fileType,
		SourceBank:    req.SourceBank,
		Status:        models.ImportPending,
		ColumnMapping: datatypes.NewJSONType(req.Mapping),
		FileData:      req.Data,
	}
	if err := s.repos.Imports.Create(ctx, imp); err != nil {
		return nil, fmt.Errorf("create import: %w", err)
	}
	s.logger.Info("import created", "import_id", imp.ID, "business_id", imp.BusinessID, "file", imp.FileName, "bytes", len(req.Data))
	return imp, nil
}

// GetImport returns the import's status, counters and row issues.
func (s *ReconciliationService) GetImport(ctx context.Context, businessID, importID uuid.UUID) (*models.BankImport, error) {
	imp, err := s.repos.Imports.GetForBusiness(ctx, businessID, importID)
	if err != nil {
		return nil, notFound(err)
	}
	return imp, nil
}

// CancelImport stops an import that has not started importing rows yet.
func (s *ReconciliationService) CancelImport(ctx context.Context, businessID, importID uuid.UUID) (*models.BankImport, error) {
	if _, err := s.GetImport(ctx, businessID, importID); err != nil {
		return nil, err
	}
	ok, err := s.repos.Imports.Transition(ctx, importID,
		[]models.ImportStatus{models.ImportPending, models.ImportParsing, models.ImportMapping},
		models.ImportCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel import: %w", err)
	}
	if !ok {
		return nil, ErrImportNotCancellable
	}
	s.logger.Info("import cancelled", "import_id", importID, "business_id", businessID)
	return s.GetImport(ctx, businessID, importID)
}

// PreviewFile shows the header and first rows of a file so a column mapping
// can be chosen.
func (s *ReconciliationService) PreviewFile(data []byte, fileType string, mapping models.ColumnMapping) (*statement.Preview, error) {
	p, err := statement.Inspect(data, fileType, mapping, 10)
	if err != nil {
		return nil, &FatalImportError{Reason: "file is unreadable", Err: err}
	}
	return p, nil
}

type TransactionPage struct {
	Items      []models.BankTransaction `json:"items"`
	NextCursor int                      `json:"next_cursor"`
	HasMore    bool                     `json:"has_more"`
}

func (s *ReconciliationService) ListTransactions(ctx context.Context, businessID, importID uuid.UUID, status models.TxStatus, cursor, limit int) (*TransactionPage, error) {
	if _, err := s.GetImport(ctx, businessID, importID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	items, next, more, err := s.repos.Transactions.List(ctx, importID, status, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return &TransactionPage{Items: items, NextCursor: next, HasMore: more}, nil
}

type StatusStats struct {
	Count       int64           `json:"count"`
	DebitTotal  decimal.Decimal `json:"debit_total"`
	CreditTotal decimal.Decimal `json:"credit_total"`
}

type ImportStats struct {
	Total    int64                           `json:"total"`
	ByStatus map[models.TxStatus]StatusStats `json:"by_status"`
}

func (s *ReconciliationService) GetImportStats(ctx context.Context, businessID, importID uuid.UUID) (*ImportStats, error) {
	if _, err := s.GetImport(ctx, businessID, importID); err != nil {
		return nil, err
	}
	rows, err := s.repos.Transactions.Stats(ctx, importID)
	if err != nil {
		return nil, fmt.Errorf("import stats: %w", err)
	}
	stats := &ImportStats{ByStatus: make(map[models.TxStatus]StatusStats, len(rows))}
	for _, r := range rows {
		stats.Total += r.Count
		stats.ByStatus[r.Status] = StatusStats{Count: r.Count, DebitTotal: r.DebitTotal, CreditTotal: r.CreditTotal}
	}
	return stats, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// RecoverImports is called at startup. Imports caught mid-run by a restart
// are failed; pending ones are returned so they can be scheduled again.
func (s *ReconciliationService) RecoverImports(ctx context.Context) ([]models.BankImport, error) {
	stuck, err := s.repos.Imports.ListByStatus(ctx, models.ImportParsing, models.ImportMapping, models.ImportImporting)
	if err != nil {
		return nil, fmt.Errorf("list running imports: %w", err)
	}
	for _, imp := range stuck {
		if err := s.repos.Imports.MarkFailed(ctx, imp.ID, "interrupted by restart"); err != nil {
			return nil, fmt.Errorf("fail import %s: %w", imp.ID, err)
		}
		s.logger.Warn("import interrupted by restart", "import_id", imp.ID, "status", imp.Status)
	}
	pending, err := s.repos.Imports.ListByStatus(ctx, models.ImportPending)
	if err != nil {
		return nil, fmt.Errorf("list pending imports: %w", err)
	}
	return pending, nil
}

// FailImport marks an unfinished import failed with reason. Finished imports
// are left as they are.
func (s *ReconciliationService) FailImport(ctx context.Context, importID uuid.UUID, reason string) error {
	imp, err := s.repos.Imports.Get(ctx, importID)
	if err != nil {
		return notFound(err)
	}
	if imp.Status.Terminal() {
		return nil
	}
	s.logger.Warn("import failed outside the pipeline", "import_id", importID, "business_id", imp.BusinessID, "reason", reason)
	return s.repos.Imports.MarkFailed(ctx, importID, reason)
}
