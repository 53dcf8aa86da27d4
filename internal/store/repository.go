/**
 * @description
 * This file defines the `Repository` interface, the contract for every data access
 * operation the credit-service needs. The scoring flow and the refresh job depend on
 * the interface only, so PostgreSQL (Supabase) and the embedded SQLite store are
 * interchangeable and tests can substitute stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For user identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/credible/credit-service/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrCreditScoreNotFound = errors.New("credit score not found")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Read side of the scoring flow
	FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	FindLoansByBorrowerID(ctx context.Context, borrowerID uuid.UUID) ([]domain.Loan, error)
	FindRecentTransactionsByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error)

	// Credit score methods
	CreateCreditScore(ctx context.Context, userID uuid.UUID, assessment domain.ScoreAssessment) (*domain.CreditScore, error)
	FindLatestCreditScore(ctx context.Context, userID uuid.UUID) (*domain.CreditScore, error)
	ListCreditScores(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CreditScore, error)

	// Refresh job
	FindUsersDueForRescore(ctx context.Context, scoredBefore time.Time, limit int) ([]uuid.UUID, error)
}
