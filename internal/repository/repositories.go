package repository

import "gorm.io/gorm"

// Repositories bundles the stores the reconciliation service works with so
// they can be rebound to a database transaction together.
type Repositories struct {
	Imports      *BankImportRepository
	Transactions *BankTransactionRepository
	Expenses     *ExpenseRepository
	Invoices     *InvoiceRepository
	Audit        *MatchAuditRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Imports:      NewBankImportRepository(db),
		Transactions: NewBankTransactionRepository(db),
		Expenses:     NewExpenseRepository(db),
		Invoices:     NewInvoiceRepository(db),
		Audit:        NewMatchAuditRepository(db),
	}
}

func (r Repositories) WithTx(tx *gorm.DB) Repositories {
	return Repositories{
		Imports:      r.Imports.WithTx(tx),
		Transactions: r.Transactions.WithTx(tx),
		Expenses:     r.Expenses.WithTx(tx),
		Invoices:     r.Invoices.WithTx(tx),
		Audit:        r.Audit.WithTx(tx),
	}
}
