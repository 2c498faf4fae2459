package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActorSystem = "system"
	ActorUser   = "user"
)

// MatchAuditLog records every reconciliation state change of a transaction.
type MatchAuditLog struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID          uuid.UUID  `gorm:"type:uuid;index" json:"business_id"`
	TransactionID       uuid.UUID  `gorm:"type:uuid;index" json:"transaction_id"`
	Action              string     `json:"action"`
	FromStatus          TxStatus   `json:"from_status"`
	ToStatus            TxStatus   `json:"to_status"`
	PreviousCounterpart *uuid.UUID `gorm:"type:uuid" json:"previous_counterpart"`
	NewCounterpart      *uuid.UUID `gorm:"type:uuid" json:"new_counterpart"`
	ConfidenceScore     *int       `json:"confidence_score"`
	PerformedBy         string     `json:"performed_by"`
	Reason              string     `json:"reason"`
	CreatedAt           time.Time  `json:"created_at"`
}
