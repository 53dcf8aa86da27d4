package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/credible/credit-service/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "credit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// fixedClock returns a clock that advances one second per call.
func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		t := current
		current = current.Add(time.Second)
		return t
	}
}

func TestSQLiteRepository_CreditScoreRoundTrip(t *testing.T) {
	repo := newTestSQLiteRepository(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := repo.CreateCreditScore(ctx, userID, domain.ScoreAssessment{
		Score:       610,
		Explanation: "Thin history.",
		Factors:     []domain.ScoreFactor{{Factor: "Few loans", Impact: domain.ImpactNeutral}},
	})
	require.NoError(t, err)

	second, err := repo.CreateCreditScore(ctx, userID, domain.ScoreAssessment{
		Score:       720,
		Explanation: "Three loans repaid on time.",
		Factors: []domain.ScoreFactor{
			{Factor: "KYC verified", Impact: domain.ImpactPositive},
			{Factor: "No defaults", Impact: domain.ImpactPositive},
		},
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, second.ID)
	assert.Equal(t, userID, second.UserID)
	assert.False(t, second.CreatedAt.IsZero())

	latest, err := repo.FindLatestCreditScore(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, *second, *latest)

	history, err := repo.ListCreditScores(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)
}

func TestSQLiteRepository_LatestCreditScoreTieBreaksOnInsertOrder(t *testing.T) {
	repo := newTestSQLiteRepository(t)
	same := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return same }
	ctx := context.Background()
	userID := uuid.New()

	_, err := repo.CreateCreditScore(ctx, userID, domain.ScoreAssessment{Score: 500})
	require.NoError(t, err)
	second, err := repo.CreateCreditScore(ctx, userID, domain.ScoreAssessment{Score: 501})
	require.NoError(t, err)

	latest, err := repo.FindLatestCreditScore(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, []domain.ScoreFactor{}, latest.Factors)
}

func TestSQLiteRepository_FindLatestCreditScoreNotFound(t *testing.T) {
	repo := newTestSQLiteRepository(t)

	_, err := repo.FindLatestCreditScore(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrCreditScoreNotFound)
}

func TestSQLiteRepository_FindProfileByUserID(t *testing.T) {
	repo := newTestSQLiteRepository(t)
	ctx := context.Background()
	userID := uuid.New()
	completedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	_, err := repo.InsertProfile(ctx, domain.Profile{
		UserID:         userID,
		Email:          "ada@example.com",
		FullName:       "Ada Obi",
		KYCStatus:      domain.KYCCompleted,
		KYCCompletedAt: &completedAt,
	})
	require.NoError(t, err)

	profile, err := repo.FindProfileByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.True(t, profile.KYCVerified())
	require.NotNil(t, profile.KYCCompletedAt)
	assert.True(t, completedAt.Equal(*profile.KYCCompletedAt))
	assert.Nil(t, profile.Phone)

	_, err = repo.FindProfileByUserID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestSQLiteRepository_FindLoansByBorrowerID(t *testing.T) {
	repo := newTestSQLiteRepository(t)
	repo.now = fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	borrower := uuid.New()
	lender := uuid.New()

	_, err := repo.InsertLoan(ctx, domain.Loan{BorrowerID: borrower, Amount: 500, InterestRate: 5, DurationMonths: 6, Purpose: "stock"})
	require.NoError(t, err)
	funded, err := repo.InsertLoan(ctx, domain.Loan{BorrowerID: borrower, LenderID: &lender, Amount: 900, InterestRate: 7.5, DurationMonths: 12, Purpose: "equipment", Status: domain.LoanFunded})
	require.NoError(t, err)
	_, err = repo.InsertLoan(ctx, domain.Loan{BorrowerID: uuid.New(), Amount: 100, InterestRate: 3, DurationMonths: 1, Purpose: "other"})
	require.NoError(t, err)

	loans, err := repo.FindLoansByBorrowerID(ctx, borrower)
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, funded.ID, loans[0].ID)
	assert.Equal(t, domain.LoanFunded, loans[0].Status)
	require.NotNil(t, loans[0].LenderID)
	assert.Equal(t, lender, *loans[0].LenderID)
	assert.Equal(t, domain.LoanPending, loans[1].Status)
	assert.Nil(t, loans[1].LenderID)
}

func TestSQLiteRepository_FindRecentTransactionsByUserID(t *testing.T) {
	repo := newTestSQLiteRepository(t)
	repo.now = fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	userID := uuid.New()
	other := uuid.New()

	loan, err := repo.InsertLoan(ctx, domain.Loan{BorrowerID: userID, Amount: 1000, InterestRate: 5, DurationMonths: 6, Purpose: "rent"})
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		from, to := other, userID
		if i%2 == 1 {
			from, to = userID, other
		}
		_, err := repo.InsertTransaction(ctx, domain.Transaction{
			LoanID:          loan.ID,
			FromUserID:      from,
			ToUserID:        to,
			Amount:          100,
			TransactionType: "repayment",
			BlockchainHash:  "0xabc",
			BlockNumber:     int64(i),
		})
		require.NoError(t, err)
	}
	_, err = repo.InsertTransaction(ctx, domain.Transaction{
		LoanID:          loan.ID,
		FromUserID:      other,
		ToUserID:        uuid.New(),
		Amount:          1,
		TransactionType: "loan_funding",
		BlockchainHash:  "0xdef",
		BlockNumber:     99,
	})
	require.NoError(t, err)

	txs, err := repo.FindRecentTransactionsByUserID(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 10)
	assert.Equal(t, int64(11), txs[0].BlockNumber)
	for _, tx := range txs {
		assert.True(t, tx.FromUserID == userID || tx.ToUserID == userID)
	}
}

func TestSQLiteRepository_FindUsersDueForRescore(t *testing.T) {
	repo := newTestSQLiteRepository(t)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return start }
	ctx := context.Background()

	neverScored := uuid.New()
	stale := uuid.New()
	fresh := uuid.New()
	unverified := uuid.New()
	for _, p := range []domain.Profile{
		{UserID: neverScored, Email: "a@example.com", FullName: "A", KYCStatus: domain.KYCCompleted},
		{UserID: stale, Email: "b@example.com", FullName: "B", KYCStatus: domain.KYCCompleted},
		{UserID: fresh, Email: "c@example.com", FullName: "C", KYCStatus: domain.KYCCompleted},
		{UserID: unverified, Email: "d@example.com", FullName: "D", KYCStatus: domain.KYCPending},
	} {
		_, err := repo.InsertProfile(ctx, p)
		require.NoError(t, err)
	}

	repo.now = func() time.Time { return start.Add(-10 * 24 * time.Hour) }
	_, err := repo.CreateCreditScore(ctx, stale, domain.ScoreAssessment{Score: 400})
	require.NoError(t, err)
	repo.now = func() time.Time { return start.Add(-time.Hour) }
	_, err = repo.CreateCreditScore(ctx, fresh, domain.ScoreAssessment{Score: 800})
	require.NoError(t, err)

	due, err := repo.FindUsersDueForRescore(ctx, start.Add(-7*24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{neverScored, stale}, due)

	limited, err := repo.FindUsersDueForRescore(ctx, start.Add(-7*24*time.Hour), 1)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{neverScored}, limited)
}
