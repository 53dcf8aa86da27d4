package domain

import (
	"time"

	"github.com/google/uuid"
)

// LoanStatus is the lifecycle state of a loan request.
type LoanStatus string

const (
	LoanPending   LoanStatus = "pending"
	LoanActive    LoanStatus = "active"
	LoanFunded    LoanStatus = "funded"
	LoanRepaying  LoanStatus = "repaying"
	LoanCompleted LoanStatus = "completed"
	LoanDefaulted LoanStatus = "defaulted"
)

// Rank orders statuses along the lifecycle. Transitions only move to a higher
// rank; completed and defaulted are both terminal. Unknown statuses rank -1.
func (s LoanStatus) Rank() int {
	switch s {
	case LoanPending:
		return 0
	case LoanActive:
		return 1
	case LoanFunded:
		return 2
	case LoanRepaying:
		return 3
	case LoanCompleted, LoanDefaulted:
		return 4
	default:
		return -1
	}
}

// Loan mirrors a row of the `loans` table.
type Loan struct {
	ID                uuid.UUID  `json:"id"`
	BorrowerID        uuid.UUID  `json:"borrower_id"`
	LenderID          *uuid.UUID `json:"lender_id,omitempty"`
	Amount            float64    `json:"amount"`
	InterestRate      float64    `json:"interest_rate"`
	DurationMonths    int        `json:"duration_months"`
	Purpose           string     `json:"purpose"`
	Status            LoanStatus `json:"status"`
	AmountRepaid      *float64   `json:"amount_repaid,omitempty"`
	RepaymentAmount   *float64   `json:"repayment_amount,omitempty"`
	SmartContractHash *string    `json:"smart_contract_hash,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	FundedAt          *time.Time `json:"funded_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}
