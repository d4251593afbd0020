package report

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sewstat/analysis"
	"sewstat/config"
	"sewstat/database"
	"sewstat/jobs"
	"sewstat/logger"
)

var (
	// ErrStaleResult is returned by Refresh when a newer request for the
	// same view superseded it
	ErrStaleResult = errors.New("report superseded by a newer request")
	// ErrJobNotFound is returned for unknown job ids
	ErrJobNotFound = errors.New("report job not found")
	// ErrJobNotReady is returned when results are requested before completion
	ErrJobNotReady = errors.New("report job has not completed")
)

// RowSource delivers raw log rows for a query. The lake repository, the
// REST client and the SQL source all satisfy it.
type RowSource interface {
	FetchRows(ctx context.Context, q analysis.LogQuery) ([]analysis.RawLogRow, error)
}

// Request describes one report
type Request struct {
	Kind string `json:"kind"`
	analysis.LogQuery
	TotalHours analysis.TotalHoursMode `json:"total_hours_mode,omitempty"`
	// ApplyShift overrides the configured shift filter when set
	ApplyShift *bool `json:"apply_shift_filter,omitempty"`
}

// Service builds report views from a row source, with optional caching
// and async jobs backed by the app database
type Service struct {
	source RowSource
	repo   *database.Repository
	cfg    *config.Config
	pool   *jobs.WorkerPool
	now    func() time.Time
	// cacheReads serves repeated requests from the report cache. Only the
	// lake is invalidated on change, so upstream sources always refetch.
	cacheReads bool

	mu   sync.Mutex
	live map[string]*liveView
}

// NewService wires a report service. repo and pool may be nil, which
// disables caching and async jobs. Cached views are reused only when the
// source is the lake held by repo.
func NewService(source RowSource, repo *database.Repository, cfg *config.Config, pool *jobs.WorkerPool) *Service {
	lake, _ := source.(*database.Repository)
	return &Service{
		source:     source,
		repo:       repo,
		cfg:        cfg,
		pool:       pool,
		now:        time.Now,
		cacheReads: repo != nil && lake == repo,
		live:       make(map[string]*liveView),
	}
}

// Kind resolves a kind with configured labels and total-hours mode applied
func (s *Service) Kind(name string) (Kind, error) {
	k, err := KindByName(name)
	if err != nil {
		return Kind{}, err
	}
	if s.cfg == nil {
		return k, nil
	}
	k = k.WithTotalHours(s.cfg.TotalHoursMode(name, k.TotalHours))
	if s.cfg.Labels != nil {
		if labels, ok := s.cfg.Labels.Get(name); ok {
			k = k.WithLabels(labels)
		}
	}
	return k, nil
}

// Window returns the configured shift window
func (s *Service) Window() (Window, error) {
	if s.cfg == nil {
		return DefaultWindow(), nil
	}
	return WindowFromConfig(s.cfg.Report.Shift)
}

// WindowFromConfig converts the shift section into a Window
func WindowFromConfig(c config.ShiftConfig) (Window, error) {
	breaks := make([][2]string, 0, len(c.Breaks))
	for _, b := range c.Breaks {
		breaks = append(breaks, [2]string{b.Start, b.End})
	}
	return NewWindow(c.Start, c.End, breaks)
}

// Options resolves the build options for req
func (s *Service) Options(req Request) (Options, error) {
	if req.TotalHours != "" {
		if _, err := analysis.ParseTotalHoursMode(string(req.TotalHours)); err != nil {
			return Options{}, err
		}
	}
	opts := Options{TotalHours: req.TotalHours, Now: s.now(), Query: req.LogQuery}

	apply := s.cfg != nil && s.cfg.ShiftFilterEnabled()
	if req.ApplyShift != nil {
		apply = *req.ApplyShift
	}
	if apply {
		w, err := s.Window()
		if err != nil {
			return Options{}, err
		}
		opts.Shift = &w
	}
	return opts, nil
}

// Fetch returns the raw rows for q
func (s *Service) Fetch(ctx context.Context, q analysis.LogQuery) ([]analysis.RawLogRow, error) {
	rows, err := s.source.FetchRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs: %w", err)
	}
	return rows, nil
}

// build fetches and builds without touching the cache
func (s *Service) build(ctx context.Context, req Request) (*ViewModel, error) {
	vm, _, err := s.Detail(ctx, req)
	return vm, err
}

// Build returns the view for req, serving from the cache when possible
func (s *Service) Build(ctx context.Context, req Request) (*ViewModel, error) {
	return s.buildCached(ctx, req, s.cacheReads)
}

// Rebuild always fetches fresh rows, then refreshes the cache entry
func (s *Service) Rebuild(ctx context.Context, req Request) (*ViewModel, error) {
	return s.buildCached(ctx, req, false)
}

func (s *Service) buildCached(ctx context.Context, req Request, useCache bool) (*ViewModel, error) {
	start := time.Now()
	key := CacheKey(req)

	if useCache {
		if vm, ok := s.cached(ctx, key); ok {
			return vm, nil
		}
	}

	vm, err := s.build(ctx, req)
	if err != nil {
		s.logRequest(ctx, req, nil, start, database.JobFailed)
		return nil, err
	}
	s.store(ctx, key, req, vm)
	s.logRequest(ctx, req, vm, start, database.JobCompleted)
	return vm, nil
}

// Detail builds the view and also returns the raw rows behind it, for
// detailed tables and exports. It bypasses the cache.
func (s *Service) Detail(ctx context.Context, req Request) (*ViewModel, []analysis.RawLogRow, error) {
	kind, err := s.Kind(req.Kind)
	if err != nil {
		return nil, nil, err
	}
	opts, err := s.Options(req)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.Fetch(ctx, req.LogQuery)
	if err != nil {
		return nil, nil, err
	}
	return Build(rows, kind, opts), rows, nil
}

// RequestReport queues req on the worker pool and returns the job id.
// A cached result completes the job immediately.
func (s *Service) RequestReport(ctx context.Context, req Request) (string, error) {
	if s.repo == nil || s.pool == nil {
		return "", errors.New("async reports need the app database and a worker pool")
	}
	if _, err := s.Kind(req.Kind); err != nil {
		return "", err
	}

	key := CacheKey(req)
	jobID := uuid.New().String()
	if err := s.repo.CreateReportJob(ctx, jobID, req.Kind); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	if !s.cacheReads {
		// keep upstream job results apart from lake cache entries
		key += "-" + jobID
	} else if _, ok := s.cached(ctx, key); ok {
		if err := s.repo.UpdateReportJob(ctx, jobID, database.JobCompleted, key, "", 100); err != nil {
			return "", err
		}
		return jobID, nil
	}

	err := s.pool.Submit(ctx, jobs.Job{
		ID: jobID,
		Execute: func(jobCtx context.Context) error {
			return s.executeReport(jobCtx, jobID, key, req)
		},
	})
	if err != nil {
		_ = s.repo.UpdateReportJob(ctx, jobID, database.JobFailed, "", err.Error(), 0)
		return "", err
	}
	return jobID, nil
}

// executeReport runs a queued report (called by a worker)
func (s *Service) executeReport(ctx context.Context, jobID, key string, req Request) error {
	start := time.Now()
	if err := s.repo.UpdateReportJob(ctx, jobID, database.JobRunning, "", "", 10); err != nil {
		return err
	}

	vm, err := s.build(ctx, req)
	if err != nil {
		_ = s.repo.UpdateReportJob(ctx, jobID, database.JobFailed, "", err.Error(), 10)
		s.logRequest(ctx, req, nil, start, database.JobFailed)
		return err
	}
	if err := s.repo.UpdateReportJob(ctx, jobID, database.JobRunning, "", "", 80); err != nil {
		return err
	}

	if err := s.repo.SaveReportCache(ctx, key, req.Kind, req, vm, s.cacheTTL()); err != nil {
		_ = s.repo.UpdateReportJob(ctx, jobID, database.JobFailed, "", err.Error(), 80)
		return fmt.Errorf("failed to save cache: %w", err)
	}
	s.logRequest(ctx, req, vm, start, database.JobCompleted)
	return s.repo.UpdateReportJob(ctx, jobID, database.JobCompleted, key, "", 100)
}

// JobStatus returns the state of an async report
func (s *Service) JobStatus(ctx context.Context, jobID string) (*database.JobStatus, error) {
	if s.repo == nil {
		return nil, ErrJobNotFound
	}
	job, err := s.repo.GetReportJobStatus(ctx, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	return job, err
}

// JobResult returns the view produced by a completed job
func (s *Service) JobResult(ctx context.Context, jobID string) (*ViewModel, error) {
	job, err := s.JobStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != database.JobCompleted {
		return nil, ErrJobNotReady
	}
	vm, ok := s.cached(ctx, job.CacheKey)
	if !ok {
		return nil, fmt.Errorf("%w: cached result expired", ErrJobNotFound)
	}
	return vm, nil
}

// PendingJobs is the number of queued report jobs not yet picked up
func (s *Service) PendingJobs() int {
	if s.pool == nil {
		return 0
	}
	return s.pool.QueueSize()
}

func (s *Service) cacheTTL() time.Duration {
	hours := 24
	if s.cfg != nil && s.cfg.CacheTTLHours > 0 {
		hours = s.cfg.CacheTTLHours
	}
	return time.Duration(hours) * time.Hour
}

func (s *Service) cached(ctx context.Context, key string) (*ViewModel, bool) {
	if s.repo == nil {
		return nil, false
	}
	c, err := s.repo.GetReportCache(ctx, key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn("report cache lookup failed", "key", key, "error", err)
		}
		return nil, false
	}
	var vm ViewModel
	if err := json.Unmarshal(c.ViewModel, &vm); err != nil {
		logger.Warn("discarding unreadable cached report", "key", key, "error", err)
		return nil, false
	}
	return &vm, true
}

func (s *Service) store(ctx context.Context, key string, req Request, vm *ViewModel) {
	if s.repo == nil || !s.cacheReads {
		return
	}
	if err := s.repo.SaveReportCache(ctx, key, req.Kind, req, vm, s.cacheTTL()); err != nil {
		logger.Warn("failed to cache report", "key", key, "error", err)
	}
}

func (s *Service) logRequest(ctx context.Context, req Request, vm *ViewModel, start time.Time, status string) {
	if s.repo == nil {
		return
	}
	entry := database.ReportLog{
		Kind:       req.Kind,
		FromDate:   req.From,
		ToDate:     req.To,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
	}
	if vm != nil {
		entry.EntityCount = len(vm.Entities)
		entry.RowCount = vm.TotalRows
	}
	if err := s.repo.LogReport(ctx, entry); err != nil {
		logger.Warn("failed to log report request", "error", err)
	}
}

// CacheKey hashes everything that changes a report's content
func CacheKey(req Request) string {
	data, _ := json.Marshal(req)
	hash := md5.Sum(data)
	return fmt.Sprintf("%x", hash)
}
