package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TxStatus string

const (
	StatusUnmatched TxStatus = "unmatched"
	StatusSuggested TxStatus = "suggested"
	StatusMatched   TxStatus = "matched"
	StatusIgnored   TxStatus = "ignored"
)

func (s TxStatus) Valid() bool {
	switch s {
	case StatusUnmatched, StatusSuggested, StatusMatched, StatusIgnored:
		return true
	}
	return false
}

const (
	MatchSourceAuto   = "auto"
	MatchSourceManual = "manual"
)

type BankTransaction struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID       uuid.UUID        `gorm:"type:uuid;index" json:"business_id"`
	ImportID         uuid.UUID        `gorm:"type:uuid;index" json:"import_id"`
	RowNumber        int              `gorm:"index" json:"row_number"`
	TransactionDate  time.Time        `gorm:"column:transaction_date" json:"transaction_date"`
	Description      string           `json:"description"`
	Reference        string           `json:"reference"`
	Debit            *decimal.Decimal `gorm:"type:decimal(18,2)" json:"debit"`
	Credit           *decimal.Decimal `gorm:"type:decimal(18,2)" json:"credit"`
	Balance          *decimal.Decimal `gorm:"type:decimal(18,2)" json:"balance"`
	Status           TxStatus         `gorm:"index" json:"status"`
	MatchedExpenseID *uuid.UUID       `gorm:"type:uuid;index" json:"matched_expense_id"`
	MatchedInvoiceID *uuid.UUID       `gorm:"type:uuid" json:"matched_invoice_id"`
	MatchedPaymentID *uuid.UUID       `gorm:"type:uuid;index" json:"matched_payment_id"`
	ConfidenceScore  *int             `json:"confidence_score"`
	MatchSource      string           `json:"match_source,omitempty"`
	MatchDetails     datatypes.JSON   `json:"match_details,omitempty"`
	RawData          datatypes.JSON   `json:"raw_data,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (t *BankTransaction) IsDebit() bool {
	return t.Debit != nil && t.Debit.IsPositive()
}

// Amount is the unsigned value of whichever side is populated.
func (t *BankTransaction) Amount() decimal.Decimal {
	if t.IsDebit() {
		return *t.Debit
	}
	if t.Credit != nil {
		return *t.Credit
	}
	return decimal.Zero
}

// CounterpartID returns the linked expense or payment, if any.
func (t *BankTransaction) CounterpartID() *uuid.UUID {
	if t.MatchedExpenseID != nil {
		return t.MatchedExpenseID
	}
	return t.MatchedPaymentID
}

func (t *BankTransaction) ClearMatch() {
	t.MatchedExpenseID = nil
	t.MatchedInvoiceID = nil
	t.MatchedPaymentID = nil
	t.ConfidenceScore = nil
	t.MatchSource = ""
	t.MatchDetails = nil
}
