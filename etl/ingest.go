package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sewstat/analysis"
	"sewstat/config"
	"sewstat/database"
	"sewstat/logger"
)

// ErrNoUpstream is returned when the configured source has nothing to pull from
var ErrNoUpstream = errors.New("source mode lake has no upstream to ingest from")

// Source is anything that can deliver raw logs for a query
type Source interface {
	FetchRows(ctx context.Context, q analysis.LogQuery) ([]analysis.RawLogRow, error)
}

// IngestResult summarizes one ingestion run
type IngestResult struct {
	Source   string `json:"source"`
	From     string `json:"from_date"`
	To       string `json:"to_date"`
	Fetched  int    `json:"fetched"`
	Dropped  int    `json:"duplicates_dropped"`
	Inserted int    `json:"inserted"`
	// Replaced counts stored rows of the range swapped out by this run
	Replaced int64 `json:"replaced"`
}

// DataIngestor pulls logs from the upstream source into the lake
type DataIngestor struct {
	config *config.Config
	repo   *database.Repository
	source Source
}

// NewDataIngestor creates a new data ingestor. source may be nil when mock
// data is enabled or the lake is the only store.
func NewDataIngestor(cfg *config.Config, repo *database.Repository, source Source) *DataIngestor {
	return &DataIngestor{
		config: cfg,
		repo:   repo,
		source: source,
	}
}

// NewSource builds the upstream source for the configured mode. Lake mode
// returns nil.
func NewSource(cfg *config.Config) (Source, error) {
	switch cfg.Source.Mode {
	case "api":
		return NewClientFromConfig(cfg.Source), nil
	case "sql":
		src, err := NewSQLSource(cfg.Source.SQLDriver, cfg.Source.SQLDSN, cfg.Source.SQLQuery)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, nil
	}
}

// Ingest loads logs dated within [from, to] into the lake. The range is
// replaced as a whole, so a repeated run leaves the lake as the source has
// it. An empty fetch keeps what is stored.
func (d *DataIngestor) Ingest(ctx context.Context, from, to time.Time) (IngestResult, error) {
	res := IngestResult{
		From: from.Format(analysis.DateLayout),
		To:   to.Format(analysis.DateLayout),
	}
	// Calendar days of the bounds, matching the lake's work_date
	dayFrom, _ := analysis.ParseDate(res.From)
	dayTo, _ := analysis.ParseDate(res.To)

	var rows []analysis.RawLogRow
	switch {
	case d.config.MockData.Enabled:
		res.Source = "mock"
		rows = NewMockDataGenerator(&d.config.MockData).GenerateRange(from, to)
	case d.source != nil:
		res.Source = d.config.Source.Mode
		fetched, err := d.source.FetchRows(ctx, analysis.LogQuery{From: res.From, To: res.To})
		if err != nil {
			return res, fmt.Errorf("failed to fetch logs from %s: %w", res.Source, err)
		}
		rows = fetched
	default:
		return res, ErrNoUpstream
	}
	res.Fetched = len(rows)
	if res.Fetched == 0 {
		logger.Info("ingestion fetched nothing, keeping stored rows",
			"source", res.Source, "from", res.From, "to", res.To)
		return res, nil
	}

	checker := rangeChecker{checker: d.repo, from: dayFrom, to: dayTo}
	rows, dropped, err := DeduplicateLogIDs(ctx, checker, rows)
	if err != nil {
		return res, fmt.Errorf("failed to deduplicate logs: %w", err)
	}
	res.Dropped = dropped

	inserted, replaced, err := d.repo.ReplaceLogs(ctx, dayFrom, dayTo, rows)
	if err != nil {
		return res, err
	}
	res.Inserted = inserted
	res.Replaced = replaced

	if n, err := d.repo.InvalidateReportCache(ctx); err != nil {
		logger.Warn("failed to invalidate report cache", "error", err)
	} else if n > 0 {
		logger.Debug("invalidated cached reports", "count", n)
	}

	logger.Info("ingestion complete",
		"source", res.Source, "from", res.From, "to", res.To,
		"fetched", res.Fetched, "dropped", res.Dropped,
		"inserted", res.Inserted, "replaced", res.Replaced)
	return res, nil
}

// IngestRecent ingests the last lookbackDays days up to today
func (d *DataIngestor) IngestRecent(ctx context.Context, lookbackDays int) (IngestResult, error) {
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	now := time.Now()
	return d.Ingest(ctx, now.AddDate(0, 0, -(lookbackDays-1)), now)
}
