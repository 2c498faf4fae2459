package reconciliation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bank-reconciliation-backend/internal/models"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrImportNotReady       = errors.New("import has not completed")
	ErrImportNotCancellable = errors.New("import can no longer be cancelled")
)

// InvalidTransitionError rejects a state change not allowed from the
// transaction's current status.
type InvalidTransitionError struct {
	From   models.TxStatus
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a transaction in status %s", e.Action, e.From)
}

// CandidateNotFoundError rejects a counterpart that does not exist, belongs
// to another business or is no longer available.
type CandidateNotFoundError struct {
	CounterpartID uuid.UUID
	Reason        string
}

func (e *CandidateNotFoundError) Error() string {
	return fmt.Sprintf("counterpart %s: %s", e.CounterpartID, e.Reason)
}

// FatalImportError aborts an import as a whole.
type FatalImportError struct {
	Reason string
	Err    error
}

func (e *FatalImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FatalImportError) Unwrap() error { return e.Err }
