package domain

import (
	"time"

	"github.com/google/uuid"
)

// LoanEvent is published by the marketplace when a loan changes state.
type LoanEvent struct {
	EventID    string     `json:"event_id"`
	EventType  string     `json:"event_type"`
	LoanID     uuid.UUID  `json:"loan_id"`
	BorrowerID uuid.UUID  `json:"borrower_id"`
	LenderID   *uuid.UUID `json:"lender_id,omitempty"`
	Status     LoanStatus `json:"status"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// CreditScoreCalculatedEvent is emitted after a new score row is stored.
type CreditScoreCalculatedEvent struct {
	CreditScoreID uuid.UUID `json:"credit_score_id"`
	UserID        uuid.UUID `json:"user_id"`
	Score         int       `json:"score"`
	Trigger       string    `json:"trigger"`
	CalculatedAt  time.Time `json:"calculated_at"`
}
