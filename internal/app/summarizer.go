package app

import (
	"github.com/credible/credit-service/internal/domain"
)

// Snapshot is everything the scoring flow reads about a user. Profile is nil
// when the user has none.
type Snapshot struct {
	Profile      *domain.Profile
	Loans        []domain.Loan
	Transactions []domain.Transaction
}

// Summarize reduces a user's records to the indicators sent for scoring. It is
// pure; nil or empty inputs yield zero values.
func Summarize(profile *domain.Profile, loans []domain.Loan, transactions []domain.Transaction) domain.CreditIndicators {
	indicators := domain.CreditIndicators{
		KYCCompleted:     profile.KYCVerified(),
		TotalLoans:       len(loans),
		TransactionCount: len(transactions),
	}
	for _, loan := range loans {
		switch loan.Status {
		case domain.LoanActive:
			indicators.ActiveLoans++
		case domain.LoanCompleted:
			indicators.CompletedLoans++
		case domain.LoanDefaulted:
			indicators.DefaultedLoans++
		}
	}
	return indicators
}

// Indicators summarizes the snapshot.
func (s Snapshot) Indicators() domain.CreditIndicators {
	return Summarize(s.Profile, s.Loans, s.Transactions)
}
