package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/services/matching"
)

// MatchSummary reports the outcome of one matching pass over an import.
type MatchSummary struct {
	ImportID   uuid.UUID `json:"import_id"`
	Considered int       `json:"considered"`
	Suggested  int       `json:"suggested"`
	Unmatched  int       `json:"unmatched"`
	PoolSize   int       `json:"pool_size"`
}

// RerunMatching runs another matching pass over the import's unmatched
// transactions. Suggested, matched and ignored transactions are left alone.
func (s *ReconciliationService) RerunMatching(ctx context.Context, businessID, importID uuid.UUID) (*MatchSummary, error) {
	imp, err := s.GetImport(ctx, businessID, importID)
	if err != nil {
		return nil, err
	}
	if imp.Status != models.ImportCompleted {
		return nil, ErrImportNotReady
	}
	summary, err := s.matchImport(ctx, businessID, importID)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Imports.SetSuggestedRows(ctx, importID, imp.SuggestedRows+summary.Suggested); err != nil {
		return nil, fmt.Errorf("record suggestions: %w", err)
	}
	return summary, nil
}

func (s *ReconciliationService) matchImport(ctx context.Context, businessID, importID uuid.UUID) (*MatchSummary, error) {
	unlock := s.locks.lock(businessID)
	defer unlock()

	txs, err := s.repos.Transactions.ListByStatus(ctx, importID, models.StatusUnmatched)
	if err != nil {
		return nil, fmt.Errorf("load unmatched transactions: %w", err)
	}
	summary := &MatchSummary{ImportID: importID, Considered: len(txs)}
	if len(txs) == 0 {
		return summary, nil
	}

	subjects := make([]matching.Subject, 0, len(txs))
	byID := make(map[uuid.UUID]*models.BankTransaction, len(txs))
	from, to := txs[0].TransactionDate, txs[0].TransactionDate
	for i := range txs {
		t := &txs[i]
		byID[t.ID] = t
		subjects = append(subjects, subjectOf(t))
		if t.TransactionDate.Before(from) {
			from = t.TransactionDate
		}
		if t.TransactionDate.After(to) {
			to = t.TransactionDate
		}
	}

	pool, err := s.loadPool(ctx, businessID, from, to, nil)
	if err != nil {
		return nil, err
	}
	summary.PoolSize = pool.Len()

	suggestions, err := s.engine.Assign(ctx, subjects, pool)
	if err != nil {
		return nil, fmt.Errorf("assign candidates: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		for _, sg := range suggestions {
			cand := sg.Candidate
			if err := s.apply(ctx, repos, byID[sg.Subject.ID], ActionSuggest, &cand, models.ActorSystem, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persist suggestions: %w", err)
	}

	summary.Suggested = len(suggestions)
	summary.Unmatched = summary.Considered - summary.Suggested
	s.logger.Info("matching pass finished",
		"import_id", importID,
		"business_id", businessID,
		"considered", summary.Considered,
		"suggested", summary.Suggested,
		"pool_size", summary.PoolSize)
	return summary, nil
}

// ListCandidates scores every counterpart in the transaction's window,
// including those under the threshold. The transaction's own counterpart
// stays visible; counterparts held by other transactions do not.
func (s *ReconciliationService) ListCandidates(ctx context.Context, businessID, txID uuid.UUID) ([]matching.Candidate, error) {
	t, err := s.repos.Transactions.Get(ctx, businessID, txID)
	if err != nil {
		return nil, notFound(err)
	}
	pool, err := s.loadPool(ctx, businessID, t.TransactionDate, t.TransactionDate, t.CounterpartID())
	if err != nil {
		return nil, err
	}
	subject := subjectOf(t)
	return s.engine.ScoreAll(subject, s.engine.Candidates(subject, pool)), nil
}

// loadPool collects the business's unreconciled counterparts dated within
// the day window around [from, to], minus those already held by a suggested
// or matched transaction. allow, when set, is kept even if held.
func (s *ReconciliationService) loadPool(ctx context.Context, businessID uuid.UUID, from, to time.Time, allow *uuid.UUID) (*matching.Pool, error) {
	window := time.Duration(s.engine.Config().DayWindow) * 24 * time.Hour
	lo := from.Add(-window)
	hi := to.Add(window + 24*time.Hour)

	claimed, err := s.repos.Transactions.ClaimedCounterparts(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("load claimed counterparts: %w", err)
	}
	if allow != nil {
		delete(claimed, *allow)
	}

	expenses, err := s.repos.Expenses.ListUnreconciled(ctx, businessID, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	payments, err := s.repos.Invoices.ListUnreconciledPayments(ctx, businessID, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	var counterparts []matching.Counterpart
	for _, e := range expenses {
		if claimed[e.ID] {
			continue
		}
		counterparts = append(counterparts, expenseCounterpart(&e))
	}
	for _, p := range payments {
		if claimed[p.ID] {
			continue
		}
		counterparts = append(counterparts, paymentCounterpart(&p))
	}
	return matching.NewPool(counterparts), nil
}

func subjectOf(t *models.BankTransaction) matching.Subject {
	return matching.Subject{
		ID:          t.ID,
		Debit:       t.IsDebit(),
		Amount:      t.Amount(),
		Date:        t.TransactionDate,
		Description: t.Description,
	}
}

func expenseCounterpart(e *models.Expense) matching.Counterpart {
	return matching.Counterpart{
		ID:     e.ID,
		Kind:   matching.KindExpense,
		Name:   e.VendorName,
		Amount: e.Amount,
		Date:   day(e.ExpenseDate),
	}
}

func paymentCounterpart(p *models.Payment) matching.Counterpart {
	invoiceID := p.InvoiceID
	return matching.Counterpart{
		ID:        p.ID,
		Kind:      matching.KindPayment,
		Name:      p.Invoice.ContactName,
		Amount:    p.Amount,
		Date:      day(p.PaymentDate),
		InvoiceID: &invoiceID,
	}
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
