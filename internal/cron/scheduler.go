package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"vendbot/internal/provision"
	"vendbot/internal/repository"
	"vendbot/internal/service"
)

// Scheduler manages the background jobs: plan template sync and expired
// service cleanup.
type Scheduler struct {
	cron        *cron.Cron
	plans       *service.PlanService
	provisioner *provision.Service
	services    *repository.ServiceRepository
	notifier    service.Notifier
	logger      *zap.Logger

	purgeAfterDays int
}

func New(
	plans *service.PlanService,
	provisioner *provision.Service,
	services *repository.ServiceRepository,
	notifier service.Notifier,
	purgeAfterDays int,
	logger *zap.Logger,
) *Scheduler {
	if purgeAfterDays <= 0 {
		purgeAfterDays = 7
	}
	return &Scheduler{
		cron:           cron.New(cron.WithSeconds()),
		plans:          plans,
		provisioner:    provisioner,
		services:       services,
		notifier:       notifier,
		logger:         logger,
		purgeAfterDays: purgeAfterDays,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")

	// Plan template sync - every 30 minutes
	s.cron.AddFunc("0 */30 * * * *", func() {
		s.logger.Debug("Running: plan sync")
		s.syncPlans()
	})

	// Expired service purge - daily at 4 AM
	s.cron.AddFunc("0 0 4 * * *", func() {
		s.logger.Debug("Running: expired purge")
		s.purgeExpired()
	})

	s.cron.Start()
	s.logger.Info("Cron scheduler started")
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) syncPlans() {
	defer s.recoverFromPanic("syncPlans")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.plans.Sync(ctx)
	if err != nil {
		s.logger.Error("plan sync failed", zap.Error(err))
		return
	}
	s.logger.Info("plan sync completed", zap.Int("templates", n))
}

// purgeExpired removes panel users whose expiry passed more than
// purgeAfterDays ago and disables their local service rows.
func (s *Scheduler) purgeExpired() {
	defer s.recoverFromPanic("purgeExpired")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	before := time.Now().AddDate(0, 0, -s.purgeAfterDays).Unix()
	result, err := s.provisioner.DeleteExpired(ctx, before)
	if err != nil {
		s.logger.Error("expired purge failed", zap.Error(err))
		return
	}
	if len(result.Deleted) == 0 && len(result.Failed) == 0 {
		return
	}

	if err := s.services.DisableByPanelUsernames(result.Deleted); err != nil {
		s.logger.Warn("failed to disable purged service rows", zap.Error(err))
	}

	s.logger.Info("expired purge completed",
		zap.Int("deleted", len(result.Deleted)), zap.Int("failed", len(result.Failed)))
	if s.notifier != nil {
		summary := fmt.Sprintf("Expired purge: %d removed, %d failed",
			len(result.Deleted), len(result.Failed))
		if stats, err := s.provisioner.SystemStats(ctx); err == nil {
			summary += fmt.Sprintf(" (panel v%s, %d users, %d active)",
				stats.Version, stats.TotalUsers, stats.ActiveUsers)
		}
		s.notifier.NotifyAdmin(summary)
	}
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
