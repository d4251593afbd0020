package etl

import (
	"context"
	"sync"
	"time"

	"sewstat/config"
	"sewstat/database"
	"sewstat/logger"
	"sewstat/mart"
)

// Scheduler handles periodic ingestion, mart refresh and cleanup
type Scheduler struct {
	cfg         *config.Config
	ingestor    *DataIngestor
	martBuilder *mart.MartBuilder
	repo        *database.Repository
	ticker      *time.Ticker
	quit        chan struct{}
	stopOnce    sync.Once
	lastCleanup time.Time
	now         func() time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.Config, ingestor *DataIngestor, martBuilder *mart.MartBuilder, repo *database.Repository) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		ingestor:    ingestor,
		martBuilder: martBuilder,
		repo:        repo,
		quit:        make(chan struct{}),
		now:         time.Now,
	}
}

// Start begins the scheduling loop
func (s *Scheduler) Start() {
	if !s.cfg.Scheduler.Enabled {
		logger.Info("scheduler is disabled by config")
		return
	}

	interval := time.Duration(s.cfg.Scheduler.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 60 * time.Minute
	}

	logger.Info("starting scheduler", "interval", interval, "cleanup_at", s.cfg.Retention.CleanupTime)
	s.ticker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.RunJob(context.Background())
			case <-s.quit:
				s.ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	if s.ticker == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.quit) })
}

// RunJob executes the scheduled ingestion and mart refresh
func (s *Scheduler) RunJob(ctx context.Context) {
	logger.Info("scheduled ingestion starting")

	res, err := s.ingestor.IngestRecent(ctx, s.cfg.Scheduler.LookbackDays)
	if err != nil {
		logger.Error("scheduled ingestion failed", "error", err)
	} else {
		logger.Info("scheduled ingestion complete", "inserted", res.Inserted, "dropped", res.Dropped)
	}

	if _, err := s.martBuilder.Refresh(ctx); err != nil {
		logger.Error("mart refresh failed", "error", err)
	}

	s.checkAndRunCleanup(ctx)
}

// cleanupDue reports whether today's cleanup time has passed and no cleanup
// ran since then
func (s *Scheduler) cleanupDue(now time.Time) bool {
	cleanupTimeStr := s.cfg.Retention.CleanupTime
	if cleanupTimeStr == "" {
		cleanupTimeStr = "06:00"
	}

	target, err := time.Parse("15:04", cleanupTimeStr)
	if err != nil {
		logger.Warn("invalid cleanup time format", "value", cleanupTimeStr, "error", err)
		return false
	}
	cleanupTarget := time.Date(now.Year(), now.Month(), now.Day(), target.Hour(), target.Minute(), 0, 0, now.Location())

	if !now.After(cleanupTarget) {
		return false
	}
	// A restart runs it again on the same day
	return s.lastCleanup.IsZero() || s.lastCleanup.Before(cleanupTarget)
}

func (s *Scheduler) checkAndRunCleanup(ctx context.Context) {
	now := s.now()
	if !s.cleanupDue(now) {
		return
	}

	logger.Info("starting daily cleanup")
	deleted, err := s.repo.CleanupOldData(ctx, s.cfg.Retention.DataDays, s.cfg.Retention.ReportDays)
	if err != nil {
		logger.Error("cleanup failed", "error", err)
		return
	}
	s.lastCleanup = now
	logger.Info("cleanup completed", "deleted", deleted)
}
