package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CreateReportJob registers a new pending job
func (r *Repository) CreateReportJob(ctx context.Context, jobID, kind string) error {
	now := time.Now().UTC()
	_, err := r.db.App.ExecContext(ctx,
		"INSERT INTO report_jobs (job_id, kind, status, progress, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)",
		jobID, kind, JobPending, now, now)
	return err
}

func (r *Repository) UpdateReportJob(ctx context.Context, jobID, status, cacheKey, errorMsg string, progress int) error {
	res, err := r.db.App.ExecContext(ctx,
		"UPDATE report_jobs SET status = ?, cache_key = ?, error_message = ?, progress = ?, updated_at = ? WHERE job_id = ?",
		status, cacheKey, errorMsg, progress, time.Now().UTC(), jobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", jobID, sql.ErrNoRows)
	}
	return nil
}

// GetReportJobStatus returns sql.ErrNoRows for unknown jobs
func (r *Repository) GetReportJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	var job JobStatus
	var cacheKey, errorMsg sql.NullString
	err := r.db.App.QueryRowContext(ctx,
		"SELECT job_id, kind, status, cache_key, error_message, progress, created_at, updated_at FROM report_jobs WHERE job_id = ?",
		jobID).Scan(&job.JobID, &job.Kind, &job.Status, &cacheKey, &errorMsg, &job.Progress, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	job.CacheKey = cacheKey.String
	job.ErrorMessage = errorMsg.String
	return &job, nil
}

// SaveReportCache stores a serialized view model for ttl
func (r *Repository) SaveReportCache(ctx context.Context, cacheKey, kind string, requestParams, viewModel any, ttl time.Duration) error {
	paramsJSON, err := json.Marshal(requestParams)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	vmJSON, err := json.Marshal(viewModel)
	if err != nil {
		return fmt.Errorf("failed to marshal view model: %w", err)
	}
	now := time.Now().UTC()
	_, err = r.db.App.ExecContext(ctx,
		"INSERT OR REPLACE INTO report_cache (cache_key, kind, request_params, view_model, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)",
		cacheKey, kind, string(paramsJSON), string(vmJSON), now, now.Add(ttl))
	return err
}

// GetReportCache returns a live cache entry or sql.ErrNoRows
func (r *Repository) GetReportCache(ctx context.Context, cacheKey string) (*CachedReport, error) {
	var c CachedReport
	var params, vm string
	err := r.db.App.QueryRowContext(ctx,
		"SELECT cache_key, kind, request_params, view_model, created_at, expires_at FROM report_cache WHERE cache_key = ? AND expires_at > ?",
		cacheKey, time.Now().UTC()).Scan(&c.CacheKey, &c.Kind, &params, &vm, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		return nil, err
	}
	c.RequestParams = json.RawMessage(params)
	c.ViewModel = json.RawMessage(vm)
	return &c, nil
}

// InvalidateReportCache drops every cached view, used after new data lands
func (r *Repository) InvalidateReportCache(ctx context.Context) (int64, error) {
	res, err := r.db.App.ExecContext(ctx, "DELETE FROM report_cache")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) LogReport(ctx context.Context, log ReportLog) error {
	if log.RequestTime.IsZero() {
		log.RequestTime = time.Now().UTC()
	}
	_, err := r.db.App.ExecContext(ctx,
		"INSERT INTO report_logs (request_time, kind, from_date, to_date, entity_count, row_count, duration_ms, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		log.RequestTime.UTC(), log.Kind, log.FromDate, log.ToDate, log.EntityCount, log.RowCount, log.DurationMs, log.Status)
	return err
}

// GetRecentReportLogs returns the newest report logs first
func (r *Repository) GetRecentReportLogs(ctx context.Context, limit int) ([]ReportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.App.QueryContext(ctx,
		"SELECT id, request_time, kind, from_date, to_date, entity_count, row_count, duration_ms, status FROM report_logs ORDER BY id DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []ReportLog
	for rows.Next() {
		var l ReportLog
		var from, to sql.NullString
		if err := rows.Scan(&l.ID, &l.RequestTime, &l.Kind, &from, &to, &l.EntityCount, &l.RowCount, &l.DurationMs, &l.Status); err != nil {
			return nil, err
		}
		l.FromDate = from.String
		l.ToDate = to.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
