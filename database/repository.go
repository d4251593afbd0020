package database

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sewstat/analysis"
	"sewstat/logger"
)

// Repository reads and writes machine logs and report bookkeeping
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateSchema creates necessary database tables
func (r *Repository) CreateSchema() error {
	if err := execScript(r.db.Analytics, "schema_duckdb.sql", duckdbSchema); err != nil {
		return fmt.Errorf("duckdb schema error: %w", err)
	}
	if err := execScript(r.db.App, "schema_sqlite.sql", sqliteSchema); err != nil {
		return fmt.Errorf("sqlite schema error: %w", err)
	}
	return nil
}

// BulkInsertLogs stores rows in the lake together with their canonical
// durations
func (r *Repository) BulkInsertLogs(ctx context.Context, rows []analysis.RawLogRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.Analytics.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := insertLogs(ctx, tx, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit logs: %w", err)
	}
	return n, nil
}

// ReplaceLogs swaps the lake rows dated within [from, to] for rows in a
// single transaction, so ingesting the same range again never double
// counts. Stored rows with an unparseable date are replaced when rows
// carries the same raw date.
func (r *Repository) ReplaceLogs(ctx context.Context, from, to time.Time, rows []analysis.RawLogRow) (inserted int, removed int64, err error) {
	tx, err := r.db.Analytics.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM machine_logs WHERE work_date BETWEEN ? AND ?", from, to)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to clear %s..%s: %w",
			from.Format(analysis.DateLayout), to.Format(analysis.DateLayout), err)
	}
	removed, _ = res.RowsAffected()

	rawDates := make(map[string]struct{})
	for _, row := range rows {
		if _, ok := analysis.ParseDate(row.Date); !ok {
			rawDates[row.Date] = struct{}{}
		}
	}
	for d := range rawDates {
		res, err := tx.ExecContext(ctx, "DELETE FROM machine_logs WHERE work_date IS NULL AND log_date = ?", d)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to clear raw date %q: %w", d, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += n
		}
	}

	inserted, err = insertLogs(ctx, tx, rows)
	if err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit logs: %w", err)
	}
	return inserted, removed, nil
}

func insertLogs(ctx context.Context, tx *sql.Tx, rows []analysis.RawLogRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	logger.Debug("bulk inserting machine logs", "rows", len(rows))

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO machine_logs (
			machine_id, line_number, operator_id, operator_name,
			log_date, work_date, start_time, end_time, mode,
			duration_raw, duration_seconds, stitch_count,
			needle_runtime_raw, needle_runtime_seconds, needle_stoptime,
			sewing_speed, tx_log_id, str_log_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		var workDate any
		if d, ok := analysis.ParseDate(row.Date); ok {
			workDate = d
		}
		_, err := stmt.ExecContext(ctx,
			row.MachineID, row.LineNumber, row.OperatorID, row.OperatorName,
			row.Date, workDate, row.StartTime, row.EndTime, int(row.Mode),
			encodeRaw(row.DurationRaw), row.DurationSeconds(), row.StitchCount,
			encodeRaw(row.NeedleRuntimeRaw), row.NeedleRuntimeSeconds(), row.NeedleStoptime,
			row.SewingSpeed, row.TxLogID, row.StrLogID, row.CreatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	return len(rows), nil
}

// LogIDField names the log id column checked for duplicates
type LogIDField string

const (
	TxLogID  LogIDField = "tx_log_id"
	StrLogID LogIDField = "str_log_id"
)

// HasAdjustedLog reports whether a log with the given id already exists for the
// same machine, date and time slot
func (r *Repository) HasAdjustedLog(ctx context.Context, field LogIDField, id int, row analysis.RawLogRow) (bool, error) {
	if field != TxLogID && field != StrLogID {
		return false, fmt.Errorf("unknown log id field %q", field)
	}
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM machine_logs
		WHERE %s = ? AND machine_id = ? AND log_date = ? AND start_time = ? AND end_time = ?
	`, field)

	var n int64
	err := r.db.Analytics.QueryRowContext(ctx, query, id, row.MachineID, row.Date, row.StartTime, row.EndTime).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check existing log: %w", err)
	}
	return n > 0, nil
}

// FetchRows returns all lake rows matching q, ordered by day, machine and start time
func (r *Repository) FetchRows(ctx context.Context, q analysis.LogQuery) ([]analysis.RawLogRow, error) {
	return r.ListLogs(ctx, q, 0, 0)
}

// ListLogs returns a page of lake rows. limit <= 0 returns everything.
func (r *Repository) ListLogs(ctx context.Context, q analysis.LogQuery, limit, offset int) ([]analysis.RawLogRow, error) {
	where, params := lakeFilter(q)

	query := `
		SELECT machine_id, line_number, operator_id, operator_name, log_date,
			start_time, end_time, mode, duration_raw, stitch_count,
			needle_runtime_raw, needle_stoptime, sewing_speed,
			tx_log_id, str_log_id, created_at
		FROM machine_logs
		` + where + `
		ORDER BY work_date, machine_id, start_time`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}

	rows, err := r.db.Analytics.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var out []analysis.RawLogRow
	for rows.Next() {
		var (
			row                     analysis.RawLogRow
			mode                    int
			durationRaw, runtimeRaw string
		)
		if err := rows.Scan(
			&row.MachineID, &row.LineNumber, &row.OperatorID, &row.OperatorName, &row.Date,
			&row.StartTime, &row.EndTime, &mode, &durationRaw, &row.StitchCount,
			&runtimeRaw, &row.NeedleStoptime, &row.SewingSpeed,
			&row.TxLogID, &row.StrLogID, &row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		row.Mode = analysis.Mode(mode)
		row.DurationRaw = decodeRaw(durationRaw)
		row.NeedleRuntimeRaw = decodeRaw(runtimeRaw)
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountLogs counts lake rows matching q
func (r *Repository) CountLogs(ctx context.Context, q analysis.LogQuery) (int64, error) {
	where, params := lakeFilter(q)
	var n int64
	err := r.db.Analytics.QueryRowContext(ctx, "SELECT COUNT(*) FROM machine_logs "+where, params...).Scan(&n)
	return n, err
}

// Stats summarizes the lake
func (r *Repository) Stats(ctx context.Context) (LakeStats, error) {
	var s LakeStats
	var minDate, maxDate sql.NullString
	err := r.db.Analytics.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT machine_id),
			CAST(MIN(work_date) AS VARCHAR), CAST(MAX(work_date) AS VARCHAR)
		FROM machine_logs
	`).Scan(&s.Rows, &s.Machines, &minDate, &maxDate)
	if err != nil {
		return s, fmt.Errorf("failed to read lake stats: %w", err)
	}
	s.MinDate = minDate.String
	s.MaxDate = maxDate.String
	return s, nil
}

// CleanupOldData removes lake rows older than retentionDays and expired
// report bookkeeping
func (r *Repository) CleanupOldData(ctx context.Context, retentionDays, reportDays int) (map[string]int64, error) {
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -retentionDays)
	deleted := make(map[string]int64)

	steps := []struct {
		name  string
		conn  *sql.DB
		query string
		arg   any
	}{
		{"machine_logs", r.db.Analytics, "DELETE FROM machine_logs WHERE work_date < ?", cutoff},
		{"report_cache", r.db.App, "DELETE FROM report_cache WHERE expires_at < ?", now},
		{"report_jobs", r.db.App, "DELETE FROM report_jobs WHERE created_at < ?", now.AddDate(0, 0, -reportDays)},
		{"report_logs", r.db.App, "DELETE FROM report_logs WHERE request_time < ?", now.AddDate(0, 0, -reportDays)},
	}
	for _, s := range steps {
		res, err := s.conn.ExecContext(ctx, s.query, s.arg)
		if err != nil {
			return deleted, fmt.Errorf("failed to clean %s: %w", s.name, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			deleted[s.name] = n
		}
	}
	return deleted, nil
}

func lakeFilter(q analysis.LogQuery) (string, []any) {
	var clauses []string
	var params []any

	from, to := q.Bounds()
	if !from.IsZero() {
		clauses = append(clauses, "work_date >= ?")
		params = append(params, from)
	}
	if !to.IsZero() {
		clauses = append(clauses, "work_date <= ?")
		params = append(params, to)
	}
	if q.MachineID != "" {
		clauses = append(clauses, "machine_id = ?")
		params = append(params, q.MachineID)
	}
	if q.LineNumber != "" {
		clauses = append(clauses, "line_number = ?")
		params = append(params, q.LineNumber)
	}
	if q.OperatorID != "" {
		clauses = append(clauses, "operator_id = ?")
		params = append(params, q.OperatorID)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), params
}

// encodeRaw keeps an ambiguous raw value as JSON so it round-trips with
// its original type
func encodeRaw(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func decodeRaw(s string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}
