package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/credible/credit-service/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// Ensure SQLiteRepository implements Repository
var _ Repository = (*SQLiteRepository)(nil)

// SQLiteRepository implements Repository on an embedded SQLite database. It backs
// local development and tests; production runs against Supabase Postgres.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository opens (or creates) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := runSQLiteMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var profile domain.Profile
	var kycStatus sql.NullString
	var kycCompletedAt sql.NullInt64
	var createdAt, updatedAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, email, full_name, phone, date_of_birth, address,
			kyc_status, kyc_completed_at, created_at, updated_at
		FROM profiles WHERE user_id = ?`, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Email,
		&profile.FullName,
		&profile.Phone,
		&profile.DateOfBirth,
		&profile.Address,
		&kycStatus,
		&kycCompletedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	profile.KYCStatus = domain.NormalizeKYCStatus(kycStatus.String)
	profile.KYCCompletedAt = fromNanos(kycCompletedAt)
	profile.CreatedAt = timePtr(time.Unix(0, createdAt).UTC())
	profile.UpdatedAt = timePtr(time.Unix(0, updatedAt).UTC())
	return &profile, nil
}

func (r *SQLiteRepository) FindLoansByBorrowerID(ctx context.Context, borrowerID uuid.UUID) ([]domain.Loan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, borrower_id, lender_id, amount, interest_rate, duration_months, purpose,
			COALESCE(status, 'pending'), amount_repaid, repayment_amount, smart_contract_hash,
			created_at, funded_at, completed_at
		FROM loans
		WHERE borrower_id = ?
		ORDER BY created_at DESC, rowid DESC`, borrowerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans := make([]domain.Loan, 0)
	for rows.Next() {
		var loan domain.Loan
		var lenderID sql.NullString
		var status string
		var createdAt int64
		var fundedAt, completedAt sql.NullInt64
		if err := rows.Scan(
			&loan.ID,
			&loan.BorrowerID,
			&lenderID,
			&loan.Amount,
			&loan.InterestRate,
			&loan.DurationMonths,
			&loan.Purpose,
			&status,
			&loan.AmountRepaid,
			&loan.RepaymentAmount,
			&loan.SmartContractHash,
			&createdAt,
			&fundedAt,
			&completedAt,
		); err != nil {
			return nil, err
		}
		if lenderID.Valid {
			id, err := uuid.Parse(lenderID.String)
			if err != nil {
				return nil, fmt.Errorf("invalid lender id on loan %s: %w", loan.ID, err)
			}
			loan.LenderID = &id
		}
		loan.Status = domain.LoanStatus(status)
		loan.CreatedAt = timePtr(time.Unix(0, createdAt).UTC())
		loan.FundedAt = fromNanos(fundedAt)
		loan.CompletedAt = fromNanos(completedAt)
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

func (r *SQLiteRepository) FindRecentTransactionsByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, loan_id, from_user_id, to_user_id, amount, transaction_type,
			blockchain_hash, block_number, gas_fee, status, created_at
		FROM transactions
		WHERE from_user_id = ? OR to_user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0)
	for rows.Next() {
		var tx domain.Transaction
		var createdAt int64
		if err := rows.Scan(
			&tx.ID,
			&tx.LoanID,
			&tx.FromUserID,
			&tx.ToUserID,
			&tx.Amount,
			&tx.TransactionType,
			&tx.BlockchainHash,
			&tx.BlockNumber,
			&tx.GasFee,
			&tx.Status,
			&createdAt,
		); err != nil {
			return nil, err
		}
		tx.CreatedAt = timePtr(time.Unix(0, createdAt).UTC())
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func (r *SQLiteRepository) CreateCreditScore(ctx context.Context, userID uuid.UUID, assessment domain.ScoreAssessment) (*domain.CreditScore, error) {
	factors, err := json.Marshal(normalizeFactors(assessment.Factors))
	if err != nil {
		return nil, fmt.Errorf("marshal factors: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO credit_scores (id, user_id, score, explanation, factors, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, user_id, score, COALESCE(explanation, ''), factors, created_at`,
		uuid.New(), userID, assessment.Score, assessment.Explanation, string(factors), r.now().UnixNano(),
	)
	return scanSQLiteCreditScore(row)
}

func (r *SQLiteRepository) FindLatestCreditScore(ctx context.Context, userID uuid.UUID) (*domain.CreditScore, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, score, COALESCE(explanation, ''), factors, created_at
		FROM credit_scores
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, userID)
	score, err := scanSQLiteCreditScore(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCreditScoreNotFound
		}
		return nil, err
	}
	return score, nil
}

func (r *SQLiteRepository) ListCreditScores(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CreditScore, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, score, COALESCE(explanation, ''), factors, created_at
		FROM credit_scores
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make([]domain.CreditScore, 0)
	for rows.Next() {
		score, err := scanSQLiteCreditScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, *score)
	}
	return scores, rows.Err()
}

func (r *SQLiteRepository) FindUsersDueForRescore(ctx context.Context, scoredBefore time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.user_id
		FROM profiles p
		LEFT JOIN (
			SELECT user_id, MAX(created_at) AS last_scored_at
			FROM credit_scores
			GROUP BY user_id
		) s ON s.user_id = p.user_id
		WHERE p.kyc_status = 'completed'
			AND (s.last_scored_at IS NULL OR s.last_scored_at < ?)
		ORDER BY s.last_scored_at IS NOT NULL, s.last_scored_at
		LIMIT ?`, scoredBefore.UTC().UnixNano(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	userIDs := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

// InsertProfile stores a profile row. The marketplace owns these rows in
// production; the SQLite store accepts them for local seeding and tests.
func (r *SQLiteRepository) InsertProfile(ctx context.Context, profile domain.Profile) (*domain.Profile, error) {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	now := r.now()
	if profile.CreatedAt == nil {
		profile.CreatedAt = timePtr(now)
	}
	if profile.UpdatedAt == nil {
		profile.UpdatedAt = profile.CreatedAt
	}
	if profile.KYCStatus == "" {
		profile.KYCStatus = domain.KYCNotStarted
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, user_id, email, full_name, phone, date_of_birth, address,
			kyc_status, kyc_completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.ID, profile.UserID, profile.Email, profile.FullName, profile.Phone,
		profile.DateOfBirth, profile.Address, string(profile.KYCStatus), toNanos(profile.KYCCompletedAt),
		profile.CreatedAt.UnixNano(), profile.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return &profile, nil
}

// InsertLoan stores a loan row. See InsertProfile.
func (r *SQLiteRepository) InsertLoan(ctx context.Context, loan domain.Loan) (*domain.Loan, error) {
	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	if loan.CreatedAt == nil {
		loan.CreatedAt = timePtr(r.now())
	}
	if loan.Status == "" {
		loan.Status = domain.LoanPending
	}
	var lenderID *string
	if loan.LenderID != nil {
		id := loan.LenderID.String()
		lenderID = &id
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO loans (id, borrower_id, lender_id, amount, interest_rate, duration_months, purpose,
			status, amount_repaid, repayment_amount, smart_contract_hash, created_at, funded_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID, loan.BorrowerID, lenderID, loan.Amount, loan.InterestRate, loan.DurationMonths, loan.Purpose,
		string(loan.Status), loan.AmountRepaid, loan.RepaymentAmount, loan.SmartContractHash,
		loan.CreatedAt.UnixNano(), toNanos(loan.FundedAt), toNanos(loan.CompletedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert loan: %w", err)
	}
	return &loan, nil
}

// InsertTransaction stores a transaction row. See InsertProfile.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt == nil {
		tx.CreatedAt = timePtr(r.now())
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, loan_id, from_user_id, to_user_id, amount, transaction_type,
			blockchain_hash, block_number, gas_fee, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.LoanID, tx.FromUserID, tx.ToUserID, tx.Amount, tx.TransactionType,
		tx.BlockchainHash, tx.BlockNumber, tx.GasFee, tx.Status, tx.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return &tx, nil
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteCreditScore(row sqliteScanner) (*domain.CreditScore, error) {
	var score domain.CreditScore
	var factors string
	var createdAt int64
	if err := row.Scan(&score.ID, &score.UserID, &score.Score, &score.Explanation, &factors, &createdAt); err != nil {
		return nil, err
	}
	decoded, err := decodeFactors([]byte(factors))
	if err != nil {
		return nil, err
	}
	score.Factors = decoded
	score.CreatedAt = time.Unix(0, createdAt).UTC()
	return &score, nil
}

func toNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	return timePtr(time.Unix(0, v.Int64).UTC())
}

func timePtr(t time.Time) *time.Time {
	return &t
}
