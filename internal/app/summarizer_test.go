package app

import (
	"testing"

	"github.com/credible/credit-service/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func loansWithStatuses(statuses ...domain.LoanStatus) []domain.Loan {
	loans := make([]domain.Loan, 0, len(statuses))
	for _, status := range statuses {
		loans = append(loans, domain.Loan{ID: uuid.New(), Status: status})
	}
	return loans
}

func TestSummarize_EmptyInputsYieldZeroIndicators(t *testing.T) {
	assert.Equal(t, domain.CreditIndicators{}, Summarize(nil, nil, nil))
	assert.Equal(t, domain.CreditIndicators{}, Summarize(nil, []domain.Loan{}, []domain.Transaction{}))
}

func TestSummarize_CountsLoanStatuses(t *testing.T) {
	profile := &domain.Profile{KYCStatus: domain.KYCCompleted}
	loans := loansWithStatuses(
		domain.LoanActive,
		domain.LoanActive,
		domain.LoanFunded,
		domain.LoanRepaying,
		domain.LoanPending,
		domain.LoanCompleted,
		domain.LoanDefaulted,
	)
	txs := make([]domain.Transaction, 4)

	got := Summarize(profile, loans, txs)

	assert.Equal(t, domain.CreditIndicators{
		KYCCompleted:     true,
		TotalLoans:       7,
		ActiveLoans:      2,
		CompletedLoans:   1,
		DefaultedLoans:   1,
		TransactionCount: 4,
	}, got)
}

func TestSummarize_KYCStatus(t *testing.T) {
	tests := []struct {
		name    string
		profile *domain.Profile
		want    bool
	}{
		{name: "no profile", profile: nil, want: false},
		{name: "not started", profile: &domain.Profile{KYCStatus: domain.KYCNotStarted}, want: false},
		{name: "pending", profile: &domain.Profile{KYCStatus: domain.KYCPending}, want: false},
		{name: "completed", profile: &domain.Profile{KYCStatus: domain.KYCCompleted}, want: true},
		{name: "empty status", profile: &domain.Profile{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.profile, nil, nil).KYCCompleted)
		})
	}
}

func TestSummarize_IsDeterministic(t *testing.T) {
	profile := &domain.Profile{KYCStatus: domain.KYCCompleted}
	loans := loansWithStatuses(domain.LoanCompleted, domain.LoanCompleted, domain.LoanCompleted)
	txs := make([]domain.Transaction, 5)

	first := Summarize(profile, loans, txs)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Summarize(profile, loans, txs))
	}
	assert.Equal(t, domain.CreditIndicators{
		KYCCompleted:     true,
		TotalLoans:       3,
		CompletedLoans:   3,
		TransactionCount: 5,
	}, first)
}
