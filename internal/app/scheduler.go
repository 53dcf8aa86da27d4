/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/credible/credit-service/internal/config"
	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	// SkipIfStillRunning keeps a slow refresh from overlapping the next tick.
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler. It returns the
// schedule error so a bad SCORE_REFRESH_SCHEDULE is visible at startup.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.ScoreRefreshSchedule, s.jobs.RefreshStaleScores); err != nil {
		s.logger.Error("failed to schedule credit score refresh job", "schedule", s.config.ScoreRefreshSchedule, "error", err)
		return err
	}
	s.logger.Info("scheduled credit score refresh job", "schedule", s.config.ScoreRefreshSchedule)

	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
