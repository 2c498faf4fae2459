package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-reconciliation-backend/internal/models"
)

// ValidationError rejects malformed input to a synchronous operation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type CreateExpenseRequest struct {
	VendorName string
	Amount     decimal.Decimal
	Date       time.Time
}

// CreateExpense records an expense that bank debits can be matched against.
func (s *ReconciliationService) CreateExpense(ctx context.Context, businessID uuid.UUID, req CreateExpenseRequest) (*models.Expense, error) {
	if strings.TrimSpace(req.VendorName) == "" {
		return nil, &ValidationError{Field: "vendor_name", Message: "is required"}
	}
	if !req.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Message: "must be positive"}
	}
	e := &models.Expense{
		ID:          uuid.New(),
		BusinessID:  businessID,
		VendorName:  strings.TrimSpace(req.VendorName),
		Amount:      req.Amount.Round(2),
		ExpenseDate: day(req.Date),
	}
	if err := s.repos.Expenses.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	return e, nil
}

type CreateInvoiceRequest struct {
	InvoiceNumber string
	ContactName   string
	Amount        decimal.Decimal
	Status        string
	DueDate       time.Time
}

// CreateInvoice records an invoice. The number is generated when missing.
func (s *ReconciliationService) CreateInvoice(ctx context.Context, businessID uuid.UUID, req CreateInvoiceRequest) (*models.Invoice, error) {
	if strings.TrimSpace(req.ContactName) == "" {
		return nil, &ValidationError{Field: "contact_name", Message: "is required"}
	}
	if !req.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Message: "must be positive"}
	}
	number := strings.TrimSpace(req.InvoiceNumber)
	if number == "" {
		number = "INV-" + strings.ToUpper(uuid.NewString()[:8])
	}
	status := req.Status
	if status == "" {
		status = "sent"
	}
	inv := &models.Invoice{
		ID:            uuid.New(),
		BusinessID:    businessID,
		InvoiceNumber: number,
		ContactName:   strings.TrimSpace(req.ContactName),
		Amount:        req.Amount.Round(2),
		Status:        status,
		DueDate:       day(req.DueDate),
	}
	if err := s.repos.Invoices.CreateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return inv, nil
}

// RecordPayment records money received against an invoice. Bank credits are
// matched against payments.
func (s *ReconciliationService) RecordPayment(ctx context.Context, businessID, invoiceID uuid.UUID, amount decimal.Decimal, date time.Time) (*models.Payment, error) {
	inv, err := s.repos.Invoices.GetInvoice(ctx, businessID, invoiceID)
	if err != nil {
		return nil, notFound(err)
	}
	if !amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Message: "must be positive"}
	}
	p := &models.Payment{
		ID:          uuid.New(),
		BusinessID:  businessID,
		InvoiceID:   inv.ID,
		Invoice:     *inv,
		Amount:      amount.Round(2),
		PaymentDate: day(date),
	}
	if err := s.repos.Invoices.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	return p, nil
}
