package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Expense struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID   uuid.UUID       `gorm:"type:uuid;index" json:"business_id"`
	VendorName   string          `json:"vendor_name"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	ExpenseDate  time.Time       `gorm:"index" json:"expense_date"`
	IsReconciled bool            `gorm:"index" json:"is_reconciled"`
	ReconciledAt *time.Time      `json:"reconciled_at"`
	CreatedAt    time.Time       `json:"created_at"`
}
