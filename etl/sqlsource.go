package etl

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"text/template"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"sewstat/analysis"
)

// SQLSource pulls raw logs straight from an upstream Postgres or MySQL
// database. The query is a text/template; {{bind .From}} style calls emit
// driver placeholders and collect the arguments so values are never
// interpolated into SQL.
//
// Result columns are matched by name: machine_id, line_number, operator_id,
// operator_name, date, start_time, end_time, mode, duration, stitch_count,
// needle_runtime, needle_stoptime, sewing_speed, tx_log_id, str_log_id,
// created_at. Missing columns stay zero.
type SQLSource struct {
	driver string
	db     *sql.DB
	tmpl   *template.Template
}

// NewSQLSource opens the upstream connection and parses the query template
func NewSQLSource(driver, dsn, queryTemplate string) (*SQLSource, error) {
	tmpl, err := template.New("query").Funcs(template.FuncMap{
		// replaced per execution
		"bind": func(v any) string { return "" },
	}).Parse(queryTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse query template: %w", err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s source: %w", driver, err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &SQLSource{driver: driver, db: db, tmpl: tmpl}, nil
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}

// renderQuery executes the template, returning SQL and positional args
func (s *SQLSource) renderQuery(q analysis.LogQuery) (string, []any, error) {
	var args []any
	bind := func(v any) string {
		args = append(args, v)
		if s.driver == "postgres" {
			return fmt.Sprintf("$%d", len(args))
		}
		return "?"
	}

	tmpl, err := s.tmpl.Clone()
	if err != nil {
		return "", nil, err
	}
	tmpl.Funcs(template.FuncMap{"bind": bind})

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, q); err != nil {
		return "", nil, fmt.Errorf("failed to execute query template: %w", err)
	}
	return buf.String(), args, nil
}

// FetchRows runs the templated query for q
func (s *SQLSource) FetchRows(ctx context.Context, q analysis.LogQuery) ([]analysis.RawLogRow, error) {
	query, args, err := s.renderQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("source query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []analysis.RawLogRow
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}

		record := make(map[string]any, len(cols))
		for i, c := range cols {
			record[strings.ToLower(c)] = normalizeValue(values[i])
		}
		out = append(out, rowFromRecord(record))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// The template may ignore entity filters
	return q.Filter(out), nil
}

// normalizeValue turns driver values into the shapes RawLogRow expects
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		if x.Year() <= 1 {
			return x.Format("15:04:05")
		}
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format(analysis.DateLayout)
		}
		return x.Format(time.RFC3339)
	}
	return v
}

func rowFromRecord(r map[string]any) analysis.RawLogRow {
	return analysis.RawLogRow{
		MachineID:        analysis.FlexString(r["machine_id"]),
		LineNumber:       analysis.FlexString(r["line_number"]),
		OperatorID:       analysis.FlexString(r["operator_id"]),
		OperatorName:     analysis.FlexString(r["operator_name"]),
		Date:             analysis.FlexString(r["date"]),
		StartTime:        analysis.FlexString(r["start_time"]),
		EndTime:          analysis.FlexString(r["end_time"]),
		Mode:             analysis.Mode(analysis.FlexInt(r["mode"])),
		DurationRaw:      r["duration"],
		StitchCount:      analysis.FlexFloat(r["stitch_count"]),
		NeedleRuntimeRaw: r["needle_runtime"],
		NeedleStoptime:   analysis.FlexFloat(r["needle_stoptime"]),
		SewingSpeed:      analysis.FlexFloat(r["sewing_speed"]),
		TxLogID:          analysis.FlexInt(r["tx_log_id"]),
		StrLogID:         analysis.FlexInt(r["str_log_id"]),
		CreatedAt:        analysis.FlexString(r["created_at"]),
	}
}
