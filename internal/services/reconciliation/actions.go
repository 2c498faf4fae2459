package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/repository"
	"bank-reconciliation-backend/internal/services/matching"
)

// ConfirmMatch links a transaction to counterpartID. Accepting the current
// suggestion confirms it; any other counterpart is a manual match.
func (s *ReconciliationService) ConfirmMatch(ctx context.Context, businessID, txID, counterpartID uuid.UUID, reason string) (*models.BankTransaction, error) {
	unlock := s.locks.lock(businessID)
	defer unlock()

	var out *models.BankTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		t, err := repos.Transactions.Get(ctx, businessID, txID)
		if err != nil {
			return notFound(err)
		}

		if t.Status == models.StatusSuggested {
			if id := t.CounterpartID(); id != nil && *id == counterpartID {
				out = t
				return s.apply(ctx, repos, t, ActionConfirm, nil, models.ActorUser, reason)
			}
		}

		if _, err := NextStatus(t.Status, ActionManualMatch); err != nil {
			return err
		}
		cand, err := s.lookupCounterpart(ctx, repos, t, counterpartID)
		if err != nil {
			return err
		}
		out = t
		return s.apply(ctx, repos, t, ActionManualMatch, cand, models.ActorUser, reason)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RejectSuggestion marks a transaction as ignored, dropping any suggestion.
func (s *ReconciliationService) RejectSuggestion(ctx context.Context, businessID, txID uuid.UUID, reason string) (*models.BankTransaction, error) {
	return s.transition(ctx, businessID, txID, ActionIgnore, reason)
}

// Unmatch reverses a confirmed match and releases the counterpart.
func (s *ReconciliationService) Unmatch(ctx context.Context, businessID, txID uuid.UUID, reason string) (*models.BankTransaction, error) {
	return s.transition(ctx, businessID, txID, ActionUnmatch, reason)
}

// Reopen returns an ignored transaction to unmatched.
func (s *ReconciliationService) Reopen(ctx context.Context, businessID, txID uuid.UUID, reason string) (*models.BankTransaction, error) {
	return s.transition(ctx, businessID, txID, ActionReopen, reason)
}

// BulkConfirmResult reports a ConfirmSuggestions pass.
type BulkConfirmResult struct {
	ImportID  uuid.UUID `json:"import_id"`
	MinScore  int       `json:"min_score"`
	Confirmed int       `json:"confirmed"`
	Skipped   int       `json:"skipped"`
}

// ConfirmSuggestions accepts every suggestion of a completed import scoring at
// least minScore. All confirmations commit together or not at all.
func (s *ReconciliationService) ConfirmSuggestions(ctx context.Context, businessID, importID uuid.UUID, minScore int, reason string) (*BulkConfirmResult, error) {
	if minScore < 0 || minScore > 100 {
		return nil, &ValidationError{Field: "min_score", Message: "must be between 0 and 100"}
	}
	imp, err := s.GetImport(ctx, businessID, importID)
	if err != nil {
		return nil, err
	}
	if imp.Status != models.ImportCompleted {
		return nil, ErrImportNotReady
	}

	unlock := s.locks.lock(businessID)
	defer unlock()

	result := &BulkConfirmResult{ImportID: importID, MinScore: minScore}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		txs, err := repos.Transactions.ListByStatus(ctx, importID, models.StatusSuggested)
		if err != nil {
			return err
		}
		for i := range txs {
			t := &txs[i]
			if t.ConfidenceScore == nil || *t.ConfidenceScore < minScore {
				result.Skipped++
				continue
			}
			if err := s.apply(ctx, repos, t, ActionConfirm, nil, models.ActorUser, reason); err != nil {
				return err
			}
			result.Confirmed++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("suggestions confirmed", "import_id", importID, "business_id", businessID, "min_score", minScore, "confirmed", result.Confirmed, "skipped", result.Skipped)
	return result, nil
}

// History lists the audit trail of a transaction, oldest first.
func (s *ReconciliationService) History(ctx context.Context, businessID, txID uuid.UUID) ([]models.MatchAuditLog, error) {
	if _, err := s.repos.Transactions.Get(ctx, businessID, txID); err != nil {
		return nil, notFound(err)
	}
	return s.repos.Audit.ListForTransaction(ctx, txID)
}

func (s *ReconciliationService) transition(ctx context.Context, businessID, txID uuid.UUID, action Action, reason string) (*models.BankTransaction, error) {
	unlock := s.locks.lock(businessID)
	defer unlock()

	var out *models.BankTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		t, err := repos.Transactions.Get(ctx, businessID, txID)
		if err != nil {
			return notFound(err)
		}
		out = t
		return s.apply(ctx, repos, t, action, nil, models.ActorUser, reason)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lookupCounterpart resolves a counterpart for a manual match on the side
// matching the transaction's direction.
func (s *ReconciliationService) lookupCounterpart(ctx context.Context, repos repository.Repositories, t *models.BankTransaction, id uuid.UUID) (*matching.Candidate, error) {
	var cp matching.Counterpart
	if t.IsDebit() {
		e, err := repos.Expenses.Get(ctx, t.BusinessID, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &CandidateNotFoundError{CounterpartID: id, Reason: "no such expense"}
		}
		if err != nil {
			return nil, err
		}
		if e.IsReconciled {
			return nil, &CandidateNotFoundError{CounterpartID: id, Reason: "already reconciled"}
		}
		cp = expenseCounterpart(e)
	} else {
		p, err := repos.Invoices.GetPayment(ctx, t.BusinessID, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &CandidateNotFoundError{CounterpartID: id, Reason: "no such payment"}
		}
		if err != nil {
			return nil, err
		}
		if p.IsReconciled {
			return nil, &CandidateNotFoundError{CounterpartID: id, Reason: "already reconciled"}
		}
		cp = paymentCounterpart(p)
	}

	holder, err := repos.Transactions.HolderOf(ctx, t.BusinessID, id)
	if err != nil {
		return nil, err
	}
	if holder != nil && holder.ID != t.ID {
		return nil, &CandidateNotFoundError{CounterpartID: id, Reason: "claimed by another transaction"}
	}

	cand := s.engine.Score(subjectOf(t), cp)
	return &cand, nil
}

// apply moves t through action, keeps the counterpart's reconciliation flag
// in step and writes the audit entry. cand is required for suggest and
// manual_match.
func (s *ReconciliationService) apply(ctx context.Context, repos repository.Repositories, t *models.BankTransaction, action Action, cand *matching.Candidate, actor, reason string) error {
	from := t.Status
	to, err := NextStatus(from, action)
	if err != nil {
		return err
	}
	previous := t.CounterpartID()

	switch action {
	case ActionSuggest:
		setCounterpart(t, cand.Counterpart)
		score := cand.Score
		t.ConfidenceScore = &score
		t.MatchSource = models.MatchSourceAuto
		t.MatchDetails = matchDetails(cand)

	case ActionConfirm:
		ok, err := s.setReconciled(ctx, repos, t, true)
		if err != nil {
			return err
		}
		if !ok {
			return &CandidateNotFoundError{CounterpartID: *t.CounterpartID(), Reason: "already reconciled"}
		}

	case ActionManualMatch:
		t.ClearMatch()
		setCounterpart(t, cand.Counterpart)
		t.MatchSource = models.MatchSourceManual
		t.MatchDetails = matchDetails(cand)
		ok, err := s.setReconciled(ctx, repos, t, true)
		if err != nil {
			return err
		}
		if !ok {
			return &CandidateNotFoundError{CounterpartID: cand.Counterpart.ID, Reason: "already reconciled"}
		}

	case ActionUnmatch:
		ok, err := s.setReconciled(ctx, repos, t, false)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Warn("counterpart was not flagged as reconciled", "transaction_id", t.ID, "counterpart_id", previous)
		}
		t.ClearMatch()

	case ActionIgnore, ActionReopen:
		t.ClearMatch()
	}

	t.Status = to
	if err := repos.Transactions.Save(ctx, t); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}

	entry := &models.MatchAuditLog{
		ID:                  uuid.New(),
		BusinessID:          t.BusinessID,
		TransactionID:       t.ID,
		Action:              string(action),
		FromStatus:          from,
		ToStatus:            to,
		PreviousCounterpart: previous,
		NewCounterpart:      t.CounterpartID(),
		ConfidenceScore:     t.ConfidenceScore,
		PerformedBy:         actor,
		Reason:              reason,
	}
	if err := repos.Audit.Record(ctx, entry); err != nil {
		return fmt.Errorf("record audit: %w", err)
	}

	if actor == models.ActorUser {
		s.logger.Info("transaction updated",
			"transaction_id", t.ID,
			"business_id", t.BusinessID,
			"action", action,
			"from", from,
			"to", to)
	}
	return nil
}

func (s *ReconciliationService) setReconciled(ctx context.Context, repos repository.Repositories, t *models.BankTransaction, reconciled bool) (bool, error) {
	switch {
	case t.MatchedExpenseID != nil:
		return repos.Expenses.SetReconciled(ctx, *t.MatchedExpenseID, reconciled)
	case t.MatchedPaymentID != nil:
		return repos.Invoices.SetPaymentReconciled(ctx, *t.MatchedPaymentID, reconciled)
	}
	return false, nil
}

func setCounterpart(t *models.BankTransaction, cp matching.Counterpart) {
	id := cp.ID
	switch cp.Kind {
	case matching.KindExpense:
		t.MatchedExpenseID = &id
	case matching.KindPayment:
		t.MatchedPaymentID = &id
		t.MatchedInvoiceID = cp.InvoiceID
	}
}

type matchDetailsDoc struct {
	CounterpartKind matching.CounterpartKind `json:"counterpart_kind"`
	CounterpartName string                   `json:"counterpart_name"`
	Score           int                      `json:"score"`
	AmountScore     float64                  `json:"amount_score"`
	DateScore       float64                  `json:"date_score"`
	TextScore       float64                  `json:"text_score"`
	AmountDiff      string                   `json:"amount_diff"`
	DayDiff         int                      `json:"day_diff"`
}

func matchDetails(c *matching.Candidate) datatypes.JSON {
	b, err := json.Marshal(matchDetailsDoc{
		CounterpartKind: c.Counterpart.Kind,
		CounterpartName: c.Counterpart.Name,
		Score:           c.Score,
		AmountScore:     c.AmountScore,
		DateScore:       c.DateScore,
		TextScore:       c.TextScore,
		AmountDiff:      c.AmountDiff.StringFixed(2),
		DayDiff:         c.DayDiff,
	})
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
