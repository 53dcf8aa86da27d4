/**
 * @description
 * This file contains the credit-scoring flow: aggregate a user's profile, loans
 * and recent transactions, summarize them into indicators, ask the scoring
 * gateway for an assessment, and persist the result as a new credit score.
 *
 * @dependencies
 * - context, errors, fmt, log/slog, time: Standard Go libraries.
 * - github.com/google/uuid: For user identifiers.
 * - internal/domain, internal/store: Models and data access.
 * - pkg/rabbitmq: For announcing new scores.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/credible/credit-service/internal/domain"
	"github.com/credible/credit-service/internal/store"
	"github.com/credible/credit-service/pkg/rabbitmq"
	"github.com/google/uuid"
)

const (
	// TransactionWindow bounds how many recent transactions feed the indicators.
	TransactionWindow = 10

	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100

	TriggerAPI              = "api"
	TriggerLoanEvent        = "loan_event"
	TriggerScheduledRefresh = "scheduled_refresh"
)

// Scorer turns indicators into a validated assessment.
type Scorer interface {
	Score(ctx context.Context, indicators domain.CreditIndicators) (*domain.ScoreAssessment, error)
}

// Service runs the credit-scoring flow.
type Service struct {
	repo      store.Repository
	scorer    Scorer
	publisher rabbitmq.Publisher
	logger    *slog.Logger
	metrics   *Metrics

	limiter            RateLimiter
	rateLimitPerMinute int
}

// NewService creates a new credit service. A nil scorer means the scoring API
// key is missing; every calculation then fails with ErrScoringNotConfigured.
func NewService(repo store.Repository, scorer Scorer, publisher rabbitmq.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = &rabbitmq.EventProducerFallback{Logger: logger}
	}
	return &Service{
		repo:      repo,
		scorer:    scorer,
		publisher: publisher,
		logger:    logger,
	}
}

// SetMetrics enables Prometheus instrumentation.
func (s *Service) SetMetrics(m *Metrics) {
	s.metrics = m
}

// SetRateLimiter enables the per-user calculate throttle.
func (s *Service) SetRateLimiter(limiter RateLimiter, perMinute int) {
	s.limiter = limiter
	s.rateLimitPerMinute = perMinute
}

// Aggregate reads everything the flow needs about a user. A missing profile is
// not an error; any other storage failure is.
func (s *Service) Aggregate(ctx context.Context, userID uuid.UUID) (Snapshot, error) {
	var snapshot Snapshot

	profile, err := s.repo.FindProfileByUserID(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrProfileNotFound) {
		return Snapshot{}, fmt.Errorf("load profile: %w", err)
	}
	snapshot.Profile = profile

	loans, err := s.repo.FindLoansByBorrowerID(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load loans: %w", err)
	}
	snapshot.Loans = loans

	transactions, err := s.repo.FindRecentTransactionsByUserID(ctx, userID, TransactionWindow)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load transactions: %w", err)
	}
	snapshot.Transactions = transactions

	return snapshot, nil
}

// AllowCalculation applies the per-user throttle. Limiter failures are logged
// and let the request through.
func (s *Service) AllowCalculation(ctx context.Context, userID uuid.UUID) error {
	if s.limiter == nil || s.rateLimitPerMinute <= 0 {
		return nil
	}
	decision, err := s.limiter.Allow(ctx, userID, s.rateLimitPerMinute, time.Minute)
	if err != nil {
		s.logger.Warn("credit score rate limiter unavailable; allowing request", "user_id", userID, "error", err)
		return nil
	}
	if !decision.Allowed {
		s.metrics.observeCalculation(TriggerAPI, ErrCreditScoreRateLimited)
		return &RateLimitError{RetryAfterSeconds: decision.RetryAfterSeconds()}
	}
	return nil
}

// CalculateCreditScore runs aggregate, summarize, score and persist for one
// user and returns the stored record. The first failing stage aborts the flow.
// Once started the flow ignores cancellation of ctx and runs to completion.
func (s *Service) CalculateCreditScore(ctx context.Context, userID uuid.UUID, trigger string) (*domain.CreditScore, error) {
	ctx = context.WithoutCancel(ctx)
	logger := s.logger.With("user_id", userID, "trigger", trigger)

	score, err := s.calculate(ctx, userID, logger)
	s.metrics.observeCalculation(trigger, err)
	if err != nil {
		logger.Error("credit score calculation failed", "kind", ErrorKind(err), "error", err)
		return nil, err
	}
	logger.Info("credit score calculated", "credit_score_id", score.ID, "score", score.Score)

	s.publishCalculated(ctx, score, trigger, logger)
	return score, nil
}

func (s *Service) calculate(ctx context.Context, userID uuid.UUID, logger *slog.Logger) (*domain.CreditScore, error) {
	if s.scorer == nil {
		return nil, ErrScoringNotConfigured
	}

	snapshot, err := s.Aggregate(ctx, userID)
	if err != nil {
		return nil, err
	}

	indicators := snapshot.Indicators()
	logger.Debug("credit indicators summarized", "indicators", indicators)

	started := time.Now()
	assessment, err := s.scorer.Score(ctx, indicators)
	s.metrics.observeScoring(time.Since(started), err)
	if err != nil {
		return nil, err
	}

	score, err := s.repo.CreateCreditScore(ctx, userID, *assessment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return score, nil
}

// publishCalculated announces the new score. Failures are logged only; the
// score is already stored.
func (s *Service) publishCalculated(ctx context.Context, score *domain.CreditScore, trigger string, logger *slog.Logger) {
	event := domain.CreditScoreCalculatedEvent{
		CreditScoreID: score.ID,
		UserID:        score.UserID,
		Score:         score.Score,
		Trigger:       trigger,
		CalculatedAt:  score.CreatedAt,
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.publisher.PublishCreditScoreCalculated(pubCtx, event)
	s.metrics.observePublish(err)
	if err != nil {
		logger.Warn("failed to publish credit score event", "credit_score_id", score.ID, "error", err)
	}
}

// LatestCreditScore returns the user's most recent score or store.ErrCreditScoreNotFound.
func (s *Service) LatestCreditScore(ctx context.Context, userID uuid.UUID) (*domain.CreditScore, error) {
	return s.repo.FindLatestCreditScore(ctx, userID)
}

// CreditScoreHistory returns up to limit scores, newest first. The limit is
// clamped to [1, MaxHistoryLimit]; zero means DefaultHistoryLimit.
func (s *Service) CreditScoreHistory(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CreditScore, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	return s.repo.ListCreditScores(ctx, userID, limit)
}
