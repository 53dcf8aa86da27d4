/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * The tables are the Supabase `public` schema shared with the marketplace frontend:
 * profiles, loans, transactions and credit_scores.
 *
 * @dependencies
 * - context, encoding/json, errors, fmt, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/credible/credit-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindProfileByUserID retrieves the profile owned by a user.
func (r *PostgresRepository) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var profile domain.Profile
	var kycStatus *string
	query := `
		SELECT id, user_id, email, full_name, phone, date_of_birth::text, address,
			kyc_status, kyc_completed_at, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Email,
		&profile.FullName,
		&profile.Phone,
		&profile.DateOfBirth,
		&profile.Address,
		&kycStatus,
		&profile.KYCCompletedAt,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	if kycStatus != nil {
		profile.KYCStatus = domain.NormalizeKYCStatus(*kycStatus)
	} else {
		profile.KYCStatus = domain.KYCNotStarted
	}
	return &profile, nil
}

// FindLoansByBorrowerID returns every loan requested by the borrower, newest first.
func (r *PostgresRepository) FindLoansByBorrowerID(ctx context.Context, borrowerID uuid.UUID) ([]domain.Loan, error) {
	query := `
		SELECT id, borrower_id, lender_id, amount::float8, interest_rate::float8, duration_months,
			purpose, COALESCE(status::text, 'pending'), amount_repaid::float8, repayment_amount::float8,
			smart_contract_hash, created_at, funded_at, completed_at
		FROM loans
		WHERE borrower_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, borrowerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans := make([]domain.Loan, 0)
	for rows.Next() {
		var loan domain.Loan
		var status string
		if err := rows.Scan(
			&loan.ID,
			&loan.BorrowerID,
			&loan.LenderID,
			&loan.Amount,
			&loan.InterestRate,
			&loan.DurationMonths,
			&loan.Purpose,
			&status,
			&loan.AmountRepaid,
			&loan.RepaymentAmount,
			&loan.SmartContractHash,
			&loan.CreatedAt,
			&loan.FundedAt,
			&loan.CompletedAt,
		); err != nil {
			return nil, err
		}
		loan.Status = domain.LoanStatus(status)
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// FindRecentTransactionsByUserID returns up to limit transactions in which the user
// is either party, newest first.
func (r *PostgresRepository) FindRecentTransactionsByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT id, loan_id, from_user_id, to_user_id, amount::float8, transaction_type,
			blockchain_hash, block_number, gas_fee::float8, status, created_at
		FROM transactions
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		var tx domain.Transaction
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
			&tx.CreatedAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// CreateCreditScore inserts a new credit score row and returns it as stored. The
// database assigns the id and created_at.
func (r *PostgresRepository) CreateCreditScore(ctx context.Context, userID uuid.UUID, assessment domain.ScoreAssessment) (*domain.CreditScore, error) {
	factors, err := json.Marshal(normalizeFactors(assessment.Factors))
	if err != nil {
		return nil, fmt.Errorf("marshal factors: %w", err)
	}

	// factors is passed as text and cast so the simple query protocol does not
	// encode it as bytea.
	query := `
		INSERT INTO credit_scores (user_id, score, explanation, factors)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id, user_id, score, COALESCE(explanation, ''), factors, created_at
	`
	row := r.db.QueryRow(ctx, query, userID, assessment.Score, assessment.Explanation, string(factors))
	return scanCreditScore(row)
}

// FindLatestCreditScore returns the newest score for a user.
func (r *PostgresRepository) FindLatestCreditScore(ctx context.Context, userID uuid.UUID) (*domain.CreditScore, error) {
	query := `
		SELECT id, user_id, score, COALESCE(explanation, ''), factors, created_at
		FROM credit_scores
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	score, err := scanCreditScore(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCreditScoreNotFound
		}
		return nil, err
	}
	return score, nil
}

// ListCreditScores returns up to limit scores for a user, newest first.
func (r *PostgresRepository) ListCreditScores(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CreditScore, error) {
	query := `
		SELECT id, user_id, score, COALESCE(explanation, ''), factors, created_at
		FROM credit_scores
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make([]domain.CreditScore, 0)
	for rows.Next() {
		score, err := scanCreditScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, *score)
	}
	return scores, rows.Err()
}

// FindUsersDueForRescore returns KYC-complete users with no score or whose newest
// score is older than scoredBefore. Users never scored come first.
func (r *PostgresRepository) FindUsersDueForRescore(ctx context.Context, scoredBefore time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT p.user_id
		FROM profiles p
		LEFT JOIN LATERAL (
			SELECT max(cs.created_at) AS last_scored_at
			FROM credit_scores cs
			WHERE cs.user_id = p.user_id
		) s ON true
		WHERE p.kyc_status = 'completed'
			AND (s.last_scored_at IS NULL OR s.last_scored_at < $1)
		ORDER BY s.last_scored_at ASC NULLS FIRST
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, scoredBefore, limit)
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

func scanCreditScore(row pgx.Row) (*domain.CreditScore, error) {
	var score domain.CreditScore
	var factors []byte
	if err := row.Scan(&score.ID, &score.UserID, &score.Score, &score.Explanation, &factors, &score.CreatedAt); err != nil {
		return nil, err
	}
	decoded, err := decodeFactors(factors)
	if err != nil {
		return nil, err
	}
	score.Factors = decoded
	return &score, nil
}
