package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is an immutable funding or repayment record tied to a loan.
type Transaction struct {
	ID              uuid.UUID  `json:"id"`
	LoanID          uuid.UUID  `json:"loan_id"`
	FromUserID      uuid.UUID  `json:"from_user_id"`
	ToUserID        uuid.UUID  `json:"to_user_id"`
	Amount          float64    `json:"amount"`
	TransactionType string     `json:"transaction_type"`
	BlockchainHash  string     `json:"blockchain_hash"`
	BlockNumber     int64      `json:"block_number"`
	GasFee          *float64   `json:"gas_fee,omitempty"`
	Status          *string    `json:"status,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}
