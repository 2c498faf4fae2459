package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ImportStatus string

const (
	ImportPending   ImportStatus = "pending"
	ImportParsing   ImportStatus = "parsing"
	ImportMapping   ImportStatus = "mapping"
	ImportImporting ImportStatus = "importing"
	ImportCompleted ImportStatus = "completed"
	ImportFailed    ImportStatus = "failed"
	ImportCancelled ImportStatus = "cancelled"
)

// Cancellable reports whether an import in this status may still be cancelled.
func (s ImportStatus) Cancellable() bool {
	return s == ImportPending || s == ImportParsing || s == ImportMapping
}

func (s ImportStatus) Terminal() bool {
	return s == ImportCompleted || s == ImportFailed || s == ImportCancelled
}

type IssueKind string

const (
	IssueParseError       IssueKind = "parse_error"
	IssueValidationError  IssueKind = "validation_error"
	IssueDuplicateSkipped IssueKind = "duplicate_skipped"
)

// ImportIssue is one skipped or failed source row.
type ImportIssue struct {
	Row    int       `json:"row"`
	Line   int       `json:"line,omitempty"`
	Kind   IssueKind `json:"kind"`
	Reason string    `json:"reason"`
}

type BankImport struct {
	ID            uuid.UUID                         `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID    uuid.UUID                         `gorm:"type:uuid;index" json:"business_id"`
	FileName      string                            `json:"file_name"`
	FileType      string                            `json:"file_type"`
	SourceBank    string                            `json:"source_bank"`
	Status        ImportStatus                      `gorm:"index" json:"status"`
	ColumnMapping datatypes.JSONType[ColumnMapping] `json:"column_mapping"`
	FileData      []byte                            `json:"-"`
	TotalRows     int                               `json:"total_rows"`
	ImportedRows  int                               `json:"imported_rows"`
	FailedRows    int                               `json:"failed_rows"`
	DuplicateRows int                               `json:"duplicate_rows"`
	SuggestedRows int                               `json:"suggested_rows"`
	Errors        datatypes.JSONSlice[ImportIssue]  `json:"errors"`
	ErrorMessage  *string                           `json:"error_message"`
	StartedAt     *time.Time                        `json:"started_at"`
	CompletedAt   *time.Time                        `json:"completed_at"`
	CreatedAt     time.Time                         `json:"created_at"`
	UpdatedAt     time.Time                         `json:"updated_at"`
}
