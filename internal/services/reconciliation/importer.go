package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/normalize"
	"bank-reconciliation-backend/internal/repository"
	"bank-reconciliation-backend/internal/statement"
)

var errCancelled = errors.New("import cancelled")

// RunImport drives one import through parsing, mapping, importing and the
// first matching pass. Row problems are collected on the import; only fatal
// conditions fail it. Cancellation is honoured until importing begins.
func (s *ReconciliationService) RunImport(ctx context.Context, importID uuid.UUID) error {
	imp, err := s.repos.Imports.Get(ctx, importID)
	if err != nil {
		return fmt.Errorf("load import %s: %w", importID, err)
	}
	log := s.logger.With("import_id", imp.ID, "business_id", imp.BusinessID)
	if imp.Status.Terminal() {
		log.Info("import already finished", "status", imp.Status)
		return nil
	}

	err = s.runImport(ctx, imp, log)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errCancelled):
		log.Info("import stopped after cancellation")
		return nil
	}

	log.Error("import failed", "error", err)
	if markErr := s.repos.Imports.MarkFailed(context.WithoutCancel(ctx), imp.ID, err.Error()); markErr != nil {
		log.Error("could not record import failure", "error", markErr)
	}
	return err
}

func (s *ReconciliationService) runImport(ctx context.Context, imp *models.BankImport, log *slog.Logger) error {
	advance := func(from, to models.ImportStatus) error {
		ok, err := s.repos.Imports.Transition(ctx, imp.ID, []models.ImportStatus{from}, to)
		if err != nil {
			return &FatalImportError{Reason: "storage unavailable", Err: err}
		}
		if !ok {
			return errCancelled
		}
		imp.Status = to
		log.Info("import phase", "status", to)
		return nil
	}

	mapping := imp.ColumnMapping.Data()

	if err := advance(models.ImportPending, models.ImportParsing); err != nil {
		return err
	}
	preview, err := statement.Inspect(imp.FileData, imp.FileType, mapping, 0)
	if err != nil {
		return &FatalImportError{Reason: "file is unreadable", Err: err}
	}
	if err := s.repos.Imports.SetTotalRows(ctx, imp.ID, preview.TotalRows); err != nil {
		return &FatalImportError{Reason: "storage unavailable", Err: err}
	}

	if err := advance(models.ImportParsing, models.ImportMapping); err != nil {
		return err
	}
	if err := mapping.Validate(); err != nil {
		return &FatalImportError{Reason: "invalid column mapping", Err: err}
	}

	if err := advance(models.ImportMapping, models.ImportImporting); err != nil {
		return err
	}
	if err := s.importRows(ctx, imp, mapping, log); err != nil {
		return err
	}

	summary, err := s.matchImport(ctx, imp.BusinessID, imp.ID)
	if err != nil {
		return &FatalImportError{Reason: "matching failed", Err: err}
	}
	imp.SuggestedRows = summary.Suggested

	if err := s.repos.Imports.MarkCompleted(ctx, imp); err != nil {
		return &FatalImportError{Reason: "storage unavailable", Err: err}
	}
	log.Info("import completed",
		"total_rows", imp.TotalRows,
		"imported_rows", imp.ImportedRows,
		"failed_rows", imp.FailedRows,
		"duplicate_rows", imp.DuplicateRows,
		"suggested", summary.Suggested)
	return nil
}

// importRows normalizes and persists every row in source order, publishing
// progress every ProgressEvery rows.
func (s *ReconciliationService) importRows(ctx context.Context, imp *models.BankImport, mapping models.ColumnMapping, log *slog.Logger) error {
	reader, err := statement.NewReader(imp.FileData, imp.FileType, mapping)
	if err != nil {
		return &FatalImportError{Reason: "file is unreadable", Err: err}
	}
	defer reader.Close()

	formats := mapping.DateFormats
	if len(formats) == 0 {
		formats = s.opts.DateFormats
	}
	norm := normalize.New(formats)

	var (
		issues   []models.ImportIssue
		progress repository.Progress
		batch    []*models.BankTransaction
	)
	flush := func() error {
		if err := s.repos.Transactions.CreateBatch(ctx, batch); err != nil {
			return &FatalImportError{Reason: "storage unavailable", Err: err}
		}
		progress.ImportedRows += len(batch)
		batch = nil
		if err := s.repos.Imports.UpdateProgress(ctx, imp.ID, progress); err != nil {
			return &FatalImportError{Reason: "storage unavailable", Err: err}
		}
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return &FatalImportError{Reason: "import interrupted", Err: err}
		}
		row, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			var rowErr *statement.RowError
			if !errors.As(err, &rowErr) {
				return &FatalImportError{Reason: "file is unreadable", Err: err}
			}
			issues = append(issues, models.ImportIssue{Row: rowErr.Seq, Line: rowErr.Line, Kind: models.IssueParseError, Reason: rowErr.Err.Error()})
			progress.FailedRows++
		} else {
			draft, err := norm.Normalize(row)
			var (
				dup  *normalize.DuplicateError
				verr *normalize.ValidationError
			)
			switch {
			case errors.As(err, &dup):
				issues = append(issues, models.ImportIssue{Row: dup.Seq, Line: dup.Line, Kind: models.IssueDuplicateSkipped, Reason: dup.Error()})
				progress.DuplicateRows++
			case errors.As(err, &verr):
				issues = append(issues, models.ImportIssue{Row: verr.Seq, Line: verr.Line, Kind: models.IssueValidationError, Reason: verr.Error()})
				progress.FailedRows++
			case err != nil:
				return &FatalImportError{Reason: "normalize row", Err: err}
			default:
				batch = append(batch, newTransaction(imp, draft))
			}
		}

		if reader.Rows()%s.opts.ProgressEvery == 0 {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	imp.TotalRows = reader.Rows()
	imp.ImportedRows = progress.ImportedRows
	imp.FailedRows = progress.FailedRows
	imp.DuplicateRows = progress.DuplicateRows
	imp.Errors = issues
	if len(issues) > 0 {
		log.Warn("rows skipped during import", "failed", progress.FailedRows, "duplicates", progress.DuplicateRows)
	}
	return nil
}

func newTransaction(imp *models.BankImport, d normalize.Draft) *models.BankTransaction {
	return &models.BankTransaction{
		ID:              uuid.New(),
		BusinessID:      imp.BusinessID,
		ImportID:        imp.ID,
		RowNumber:       d.Seq,
		TransactionDate: d.Date,
		Description:     d.Description,
		Reference:       d.Reference,
		Debit:           d.Debit,
		Credit:          d.Credit,
		Balance:         d.Balance,
		Status:          models.StatusUnmatched,
		RawData:         datatypes.JSON(d.Raw),
	}
}
