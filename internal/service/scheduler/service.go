// Package scheduler runs the periodic maintenance jobs of the tavern.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tavern-guild/tavern/internal/config"
	prommetrics "github.com/tavern-guild/tavern/internal/metrics"
	"github.com/tavern-guild/tavern/pkg/logger"
)

// Job names, used as metric labels.
const (
	JobTrustRefresh      = "trust_refresh"
	JobNotificationPurge = "notification_purge"
)

const jobTimeout = 10 * time.Minute

// TrustRefresher recomputes the trust score of every organization.
type TrustRefresher interface {
	RefreshAll(ctx context.Context) (int, error)
}

// NotificationPurger deletes old read notifications.
type NotificationPurger interface {
	PurgeRead(ctx context.Context, retention time.Duration) (int64, error)
}

// Service handles cron scheduling of background jobs.
type Service struct {
	config *config.SchedulerConfig
	trust  TrustRefresher
	purger NotificationPurger
	log    *logger.Logger
	cron   *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(cfg *config.SchedulerConfig, trust TrustRefresher, purger NotificationPurger, log *logger.Logger) *Service {
	return &Service{
		config: cfg,
		trust:  trust,
		purger: purger,
		log:    log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	jobs := []struct {
		name     string
		schedule string
		run      func(ctx context.Context)
	}{
		{JobTrustRefresh, s.config.TrustRefresh, s.RunTrustRefresh},
		{JobNotificationPurge, s.config.NotificationPurge, s.RunNotificationPurge},
	}

	for _, job := range jobs {
		if job.schedule == "" {
			s.log.Info().Str("job", job.name).Msg("Job has no schedule, skipping")
			continue
		}
		run := job.run
		if _, err := s.cron.AddFunc(job.schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			run(ctx)
		}); err != nil {
			return fmt.Errorf("failed to register %s job: %w", job.name, err)
		}
		s.log.Info().
			Str("job", job.name).
			Str("schedule", job.schedule).
			Msg("Job registered")
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("timezone", s.config.Timezone).
		Int("jobs", len(entries)).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// RunTrustRefresh recomputes and stores the trust score of every organization.
func (s *Service) RunTrustRefresh(ctx context.Context) {
	s.runJob(ctx, JobTrustRefresh, func(ctx context.Context) error {
		evaluated, err := s.trust.RefreshAll(ctx)
		if err != nil {
			return err
		}
		s.log.Info().Int("organizations", evaluated).Msg("Trust refresh job completed")
		return nil
	})
}

// RunNotificationPurge deletes read notifications older than the retention period.
func (s *Service) RunNotificationPurge(ctx context.Context) {
	retention := time.Duration(s.config.NotificationRetentionDays) * 24 * time.Hour
	s.runJob(ctx, JobNotificationPurge, func(ctx context.Context) error {
		purged, err := s.purger.PurgeRead(ctx, retention)
		if err != nil {
			return err
		}
		s.log.Info().
			Int64("purged", purged).
			Int("retention_days", s.config.NotificationRetentionDays).
			Msg("Notification purge job completed")
		return nil
	})
}

// runJob executes fn and records its outcome, duration and last run time.
func (s *Service) runJob(ctx context.Context, name string, fn func(ctx context.Context) error) {
	start := time.Now()

	defer func() {
		prommetrics.ObserveSchedulerJobDuration(name, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(name)
	}()

	s.log.Info().Str("job", name).Msg("Running scheduled job")

	if err := fn(ctx); err != nil {
		s.log.Error().
			Err(err).
			Str("job", name).
			Dur("duration", time.Since(start)).
			Msg("Scheduled job failed")
		prommetrics.RecordSchedulerJobRun(name, "error")
		return
	}

	prommetrics.RecordSchedulerJobRun(name, "success")
}
