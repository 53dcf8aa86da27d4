/**
 * @description
 * Credit scoring models: the indicator record sent to the scoring model, the
 * validated assessment that comes back, and the persisted credit score row.
 */

package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinCreditScore = 0
	MaxCreditScore = 1000
)

// FactorImpact is the direction in which a factor moved the score.
type FactorImpact string

const (
	ImpactPositive FactorImpact = "positive"
	ImpactNegative FactorImpact = "negative"
	ImpactNeutral  FactorImpact = "neutral"
)

// Valid reports whether the impact is one of the three allowed values.
func (i FactorImpact) Valid() bool {
	switch i {
	case ImpactPositive, ImpactNegative, ImpactNeutral:
		return true
	default:
		return false
	}
}

// ScoreFactor is a single (factor, impact) pair. Order within a score is
// preserved as returned by the model.
type ScoreFactor struct {
	Factor string       `json:"factor"`
	Impact FactorImpact `json:"impact"`
}

// CreditIndicators is the fixed-shape summary of a user's history. The JSON
// field names are the ones the scoring prompt is written against.
type CreditIndicators struct {
	KYCCompleted     bool `json:"kycCompleted"`
	TotalLoans       int  `json:"totalLoans"`
	ActiveLoans      int  `json:"activeLoans"`
	CompletedLoans   int  `json:"completedLoans"`
	DefaultedLoans   int  `json:"defaultedLoans"`
	TransactionCount int  `json:"transactionCount"`
}

// ScoreAssessment is the structured result of a scoring call.
type ScoreAssessment struct {
	Score       int           `json:"score"`
	Explanation string        `json:"explanation"`
	Factors     []ScoreFactor `json:"factors"`
}

var ErrInvalidAssessment = errors.New("invalid credit score assessment")

// Validate checks the assessment against the output contract.
func (a ScoreAssessment) Validate() error {
	if a.Score < MinCreditScore || a.Score > MaxCreditScore {
		return fmt.Errorf("%w: score %d outside [%d, %d]", ErrInvalidAssessment, a.Score, MinCreditScore, MaxCreditScore)
	}
	for i, f := range a.Factors {
		if strings.TrimSpace(f.Factor) == "" {
			return fmt.Errorf("%w: factor %d has no name", ErrInvalidAssessment, i)
		}
		if !f.Impact.Valid() {
			return fmt.Errorf("%w: factor %q has impact %q", ErrInvalidAssessment, f.Factor, f.Impact)
		}
	}
	return nil
}

// CreditScore mirrors a row of the append-only `credit_scores` table.
type CreditScore struct {
	ID          uuid.UUID     `json:"id"`
	UserID      uuid.UUID     `json:"user_id"`
	Score       int           `json:"score"`
	Explanation string        `json:"explanation"`
	Factors     []ScoreFactor `json:"factors"`
	CreatedAt   time.Time     `json:"created_at"`
}
