package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"sewstat/analysis"
	"sewstat/etl"
	"sewstat/mart"
)

type IngestCmd struct {
	From string `help:"First date (YYYY-MM-DD); defaults to the scheduler lookback window."`
	To   string `help:"Last date (YYYY-MM-DD)."`
	Days int    `help:"Lookback days when no dates are given (0 uses config)."`
	Mart bool   `help:"Refresh the mart afterwards." default:"true" negatable:""`
}

func (c *IngestCmd) Run(ctx *Context) error {
	e, err := ctx.open()
	if err != nil {
		return err
	}
	defer e.close()

	ingestor := etl.NewDataIngestor(e.cfg, e.repo, e.upstream)

	var res etl.IngestResult
	if c.From == "" && c.To == "" {
		days := c.Days
		if days <= 0 {
			days = e.cfg.Scheduler.LookbackDays
		}
		res, err = ingestor.IngestRecent(ctx.Ctx, days)
	} else {
		from, to, perr := parseRange(c.From, c.To)
		if perr != nil {
			return perr
		}
		res, err = ingestor.Ingest(ctx.Ctx, from, to)
	}
	if errors.Is(err, etl.ErrNoUpstream) {
		return fmt.Errorf("%w: set source.mode or enable mock_data", err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "✓ Ingested %s rows from %s (%s to %s, %s fetched, %s duplicates dropped)\n",
		humanize.Comma(int64(res.Inserted)), res.Source, res.From, res.To,
		humanize.Comma(int64(res.Fetched)), humanize.Comma(int64(res.Dropped)))

	if !c.Mart {
		return nil
	}
	return refreshMart(ctx, mart.NewMartBuilder(e.db))
}

// parseRange accepts a single bound and fills the other with it
func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if fromStr == "" {
		fromStr = toStr
	}
	if toStr == "" {
		toStr = fromStr
	}
	from, ok := analysis.ParseDate(fromStr)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --from %q, use YYYY-MM-DD", fromStr)
	}
	to, ok := analysis.ParseDate(toStr)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --to %q, use YYYY-MM-DD", toStr)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", toStr, fromStr)
	}
	return from, to, nil
}

type MartCmd struct{}

func (c *MartCmd) Run(ctx *Context) error {
	e, err := ctx.open()
	if err != nil {
		return err
	}
	defer e.close()
	return refreshMart(ctx, mart.NewMartBuilder(e.db))
}

func refreshMart(ctx *Context, b *mart.MartBuilder) error {
	start := time.Now()
	stats, err := b.Refresh(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("mart refresh failed: %w", err)
	}
	span := "empty lake"
	if stats.MinDate != "" {
		span = stats.MinDate + " to " + stats.MaxDate
	}
	fmt.Fprintf(ctx.Out, "✓ Mart refreshed: %s cells, %s machines, %s operators, %s (%s)\n",
		humanize.Comma(stats.TotalRows), humanize.Comma(stats.Machines), humanize.Comma(stats.Operators),
		span, time.Since(start).Round(time.Millisecond))
	return nil
}
