package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/credible/credit-service/internal/domain"
	"github.com/credible/credit-service/internal/store"
	"github.com/credible/credit-service/pkg/rabbitmq"
	"github.com/google/uuid"
)

type repoStub struct {
	store.Repository

	mu sync.Mutex

	profile     *domain.Profile
	profileErr  error
	loans       []domain.Loan
	loansErr    error
	txs         []domain.Transaction
	txsErr      error
	txLimit     int
	createErr   error
	created     []domain.ScoreAssessment
	createCalls int

	dueUserIDs []uuid.UUID
	dueErr     error
	dueBefore  time.Time
	dueLimit   int

	historyLimit int
}

func (s *repoStub) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	if s.profile == nil {
		return nil, store.ErrProfileNotFound
	}
	return s.profile, nil
}

func (s *repoStub) FindLoansByBorrowerID(ctx context.Context, borrowerID uuid.UUID) ([]domain.Loan, error) {
	if s.loansErr != nil {
		return nil, s.loansErr
	}
	return s.loans, nil
}

func (s *repoStub) FindRecentTransactionsByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	s.txLimit = limit
	if s.txsErr != nil {
		return nil, s.txsErr
	}
	return s.txs, nil
}

func (s *repoStub) CreateCreditScore(ctx context.Context, userID uuid.UUID, assessment domain.ScoreAssessment) (*domain.CreditScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, assessment)
	return &domain.CreditScore{
		ID:          uuid.New(),
		UserID:      userID,
		Score:       assessment.Score,
		Explanation: assessment.Explanation,
		Factors:     assessment.Factors,
		CreatedAt:   time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	}, nil
}

func (s *repoStub) ListCreditScores(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CreditScore, error) {
	s.historyLimit = limit
	return []domain.CreditScore{}, nil
}

func (s *repoStub) FindUsersDueForRescore(ctx context.Context, scoredBefore time.Time, limit int) ([]uuid.UUID, error) {
	s.dueBefore = scoredBefore
	s.dueLimit = limit
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	return s.dueUserIDs, nil
}

type scorerStub struct {
	mu         sync.Mutex
	assessment *domain.ScoreAssessment
	err        error
	errs       []error
	calls      int
	received   []domain.CreditIndicators
	ctxErr     error
}

func (s *scorerStub) Score(ctx context.Context, indicators domain.CreditIndicators) (*domain.ScoreAssessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.received = append(s.received, indicators)
	s.ctxErr = ctx.Err()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	} else if s.err != nil {
		return nil, s.err
	}
	if s.assessment == nil {
		return &domain.ScoreAssessment{Score: 500, Factors: []domain.ScoreFactor{}}, nil
	}
	a := *s.assessment
	return &a, nil
}

type publisherStub struct {
	rabbitmq.Publisher
	events []domain.CreditScoreCalculatedEvent
	err    error
}

func (p *publisherStub) PublishCreditScoreCalculated(ctx context.Context, event domain.CreditScoreCalculatedEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type limiterStub struct {
	decision RateDecision
	err      error
	calls    int
}

func (l *limiterStub) Allow(ctx context.Context, userID uuid.UUID, limit int, window time.Duration) (RateDecision, error) {
	l.calls++
	return l.decision, l.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
