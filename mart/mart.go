package mart

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sewstat/analysis"
	"sewstat/database"
	"sewstat/logger"
)

// MartBuilder handles daily_mode_stats creation and refresh
type MartBuilder struct {
	db *database.DB
}

// MartStats holds statistics about the refreshed mart
type MartStats struct {
	TotalRows    int64  `json:"total_rows"`
	MinDate      string `json:"min_date,omitempty"`
	MaxDate      string `json:"max_date,omitempty"`
	TotalSeconds int64  `json:"total_seconds"`
	Machines     int64  `json:"machines"`
	Operators    int64  `json:"operators"`
}

// DailyModeStat is one date × machine × line × operator × mode cell
type DailyModeStat struct {
	WorkDate             string  `json:"work_date"`
	MachineID            string  `json:"machine_id"`
	LineNumber           string  `json:"line_number"`
	OperatorID           string  `json:"operator_id"`
	Mode                 int     `json:"mode"`
	Category             string  `json:"category"`
	Rows                 int64   `json:"rows"`
	DurationSeconds      int64   `json:"duration_seconds"`
	NeedleRuntimeSeconds int64   `json:"needle_runtime_seconds"`
	StitchCount          float64 `json:"stitch_count"`
	Hours                float64 `json:"hours"`
}

// NewMartBuilder creates a new mart builder
func NewMartBuilder(db *database.DB) *MartBuilder {
	return &MartBuilder{db: db}
}

// Refresh rebuilds the daily_mode_stats table from machine_logs
func (m *MartBuilder) Refresh(ctx context.Context) (MartStats, error) {
	start := time.Now()
	stats := MartStats{}

	tx, err := m.db.Analytics.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// SUM over BIGINT yields HUGEINT in DuckDB, cast back so it scans into int64
	query := `
		CREATE OR REPLACE TABLE daily_mode_stats AS
		SELECT
			work_date,
			machine_id,
			line_number,
			operator_id,
			mode,
			COUNT(*) AS row_count,
			CAST(SUM(duration_seconds) AS BIGINT) AS duration_seconds,
			CAST(SUM(needle_runtime_seconds) AS BIGINT) AS needle_runtime_seconds,
			SUM(stitch_count) AS stitch_count,
			CURRENT_TIMESTAMP AS created_at
		FROM machine_logs
		WHERE work_date IS NOT NULL
		GROUP BY work_date, machine_id, line_number, operator_id, mode
	`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return stats, fmt.Errorf("failed to refresh daily_mode_stats: %w", err)
	}

	indexQueries := []string{
		`CREATE INDEX IF NOT EXISTS idx_daily_mode_stats_date ON daily_mode_stats(work_date)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_mode_stats_machine ON daily_mode_stats(machine_id)`,
	}
	for _, q := range indexQueries {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return stats, fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit mart refresh: %w", err)
	}

	stats, err = m.GetMartStats(ctx)
	if err != nil {
		logger.Warn("failed to read mart stats", "error", err)
	}
	logger.Info("mart refresh completed", "duration", time.Since(start), "rows", stats.TotalRows)
	return stats, nil
}

// GetMartStats returns statistics about daily_mode_stats
func (m *MartBuilder) GetMartStats(ctx context.Context) (MartStats, error) {
	var s MartStats
	var minDate, maxDate sql.NullString
	err := m.db.Analytics.QueryRowContext(ctx, `
		SELECT COUNT(*),
			CAST(MIN(work_date) AS VARCHAR), CAST(MAX(work_date) AS VARCHAR),
			CAST(COALESCE(SUM(duration_seconds), 0) AS BIGINT),
			COUNT(DISTINCT machine_id),
			COUNT(DISTINCT operator_id)
		FROM daily_mode_stats
	`).Scan(&s.TotalRows, &minDate, &maxDate, &s.TotalSeconds, &s.Machines, &s.Operators)
	if err != nil {
		return s, err
	}
	s.MinDate = minDate.String
	s.MaxDate = maxDate.String
	return s, nil
}

// Daily reads mart cells in [from, to]; empty bounds are open
func (m *MartBuilder) Daily(ctx context.Context, from, to string) ([]DailyModeStat, error) {
	q := analysis.LogQuery{From: from, To: to}
	lo, hi := q.Bounds()

	var clauses []string
	var params []any
	if !lo.IsZero() {
		clauses = append(clauses, "work_date >= ?")
		params = append(params, lo)
	}
	if !hi.IsZero() {
		clauses = append(clauses, "work_date <= ?")
		params = append(params, hi)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := m.db.Analytics.QueryContext(ctx, `
		SELECT CAST(work_date AS VARCHAR), machine_id, line_number, operator_id, mode,
			row_count, duration_seconds, needle_runtime_seconds, stitch_count
		FROM daily_mode_stats
		`+where+`
		ORDER BY work_date, machine_id, operator_id, mode`, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily_mode_stats: %w", err)
	}
	defer rows.Close()

	var out []DailyModeStat
	for rows.Next() {
		var d DailyModeStat
		if err := rows.Scan(&d.WorkDate, &d.MachineID, &d.LineNumber, &d.OperatorID, &d.Mode,
			&d.Rows, &d.DurationSeconds, &d.NeedleRuntimeSeconds, &d.StitchCount); err != nil {
			return nil, err
		}
		if c, ok := analysis.Mode(d.Mode).Category(); ok {
			d.Category = string(c)
		}
		d.Hours = analysis.Hours(d.DurationSeconds)
		out = append(out, d)
	}
	return out, rows.Err()
}
