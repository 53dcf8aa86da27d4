/**
 * @description
 * Scheduled refresh of stale credit scores.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/credible/credit-service/internal/config"
	"github.com/credible/credit-service/internal/store"
)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	service *Service
	repo    store.Repository
	logger  *slog.Logger
	config  config.Config
	now     func() time.Time
}

// NewJobs creates a new Jobs runner.
func NewJobs(service *Service, repo store.Repository, logger *slog.Logger, cfg config.Config) *Jobs {
	return &Jobs{
		service: service,
		repo:    repo,
		logger:  logger,
		config:  cfg,
		now:     time.Now,
	}
}

// RefreshStaleScores rescores KYC-complete users whose latest score is older
// than the configured age, or who were never scored. Users are processed one at
// a time and the batch stops at the first gateway backoff error.
func (j *Jobs) RefreshStaleScores() {
	j.logger.Info("starting credit score refresh job")
	ctx := context.Background()

	scoredBefore := j.now().Add(-j.config.ScoreRefreshMaxAge())
	userIDs, err := j.repo.FindUsersDueForRescore(ctx, scoredBefore, j.config.ScoreRefreshBatchSize)
	if err != nil {
		j.logger.Error("failed to find users due for rescore", "error", err)
		return
	}

	refreshed, failed := 0, 0
	for _, userID := range userIDs {
		_, err := j.service.CalculateCreditScore(ctx, userID, TriggerScheduledRefresh)
		if err == nil {
			refreshed++
			continue
		}
		failed++
		if isBackoffError(err) || errors.Is(err, ErrScoringNotConfigured) {
			j.logger.Warn("stopping credit score refresh early", "kind", ErrorKind(err), "remaining", len(userIDs)-refreshed-failed)
			break
		}
	}

	j.logger.Info("credit score refresh job finished", "candidates", len(userIDs), "refreshed", refreshed, "failed", failed)
}
