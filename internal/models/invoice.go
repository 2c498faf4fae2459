package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID    uuid.UUID       `gorm:"type:uuid;index" json:"business_id"`
	InvoiceNumber string          `gorm:"index" json:"invoice_number"`
	ContactName   string          `gorm:"index" json:"contact_name"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	Status        string          `gorm:"index" json:"status"`
	DueDate       time.Time       `json:"due_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Payment is money received against an invoice.
type Payment struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID   uuid.UUID       `gorm:"type:uuid;index" json:"business_id"`
	InvoiceID    uuid.UUID       `gorm:"type:uuid;index" json:"invoice_id"`
	Invoice      Invoice         `gorm:"foreignKey:InvoiceID" json:"invoice"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	PaymentDate  time.Time       `gorm:"index" json:"payment_date"`
	IsReconciled bool            `gorm:"index" json:"is_reconciled"`
	ReconciledAt *time.Time      `json:"reconciled_at"`
	CreatedAt    time.Time       `json:"created_at"`
}
