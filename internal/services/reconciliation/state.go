package reconciliation

import "bank-reconciliation-backend/internal/models"

type Action string

const (
	ActionSuggest     Action = "suggest"
	ActionConfirm     Action = "confirm"
	ActionManualMatch Action = "manual_match"
	ActionIgnore      Action = "ignore"
	ActionUnmatch     Action = "unmatch"
	ActionReopen      Action = "reopen"
)

var transitions = map[Action]struct {
	from []models.TxStatus
	to   models.TxStatus
}{
	ActionSuggest:     {from: []models.TxStatus{models.StatusUnmatched}, to: models.StatusSuggested},
	ActionConfirm:     {from: []models.TxStatus{models.StatusSuggested}, to: models.StatusMatched},
	ActionManualMatch: {from: []models.TxStatus{models.StatusUnmatched, models.StatusSuggested}, to: models.StatusMatched},
	ActionIgnore:      {from: []models.TxStatus{models.StatusUnmatched, models.StatusSuggested}, to: models.StatusIgnored},
	ActionUnmatch:     {from: []models.TxStatus{models.StatusMatched}, to: models.StatusUnmatched},
	ActionReopen:      {from: []models.TxStatus{models.StatusIgnored}, to: models.StatusUnmatched},
}

// NextStatus returns the status a transaction in from reaches through action.
func NextStatus(from models.TxStatus, action Action) (models.TxStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return from, &InvalidTransitionError{From: from, Action: action}
	}
	for _, s := range t.from {
		if s == from {
			return t.to, nil
		}
	}
	return from, &InvalidTransitionError{From: from, Action: action}
}
