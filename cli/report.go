package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"sewstat/analysis"
	"sewstat/charting"
	"sewstat/export"
	"sewstat/report"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	rollupStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type ReportCmd struct {
	Kind       string `arg:"" enum:"operators,machines,lines" help:"Report kind (operators, machines, lines)."`
	From       string `help:"First date (YYYY-MM-DD)."`
	To         string `help:"Last date (YYYY-MM-DD)."`
	Machine    string `help:"Only this machine id."`
	Line       string `help:"Only this line number."`
	Operator   string `help:"Only this operator id."`
	TotalHours string `name:"total-hours" help:"Total hours mode override (fixed10 or sumCategories)."`
	Shift      string `enum:"auto,on,off" default:"auto" help:"Shift filter (auto uses config)."`
	Format     string `short:"f" help:"Write an export instead of printing (csv, detailed, html, xlsx, zip)."`
	Output     string `short:"o" help:"Export path; defaults to a name derived from the report."`
	Charts     string `help:"Also save PNG charts into this directory."`
}

func (c *ReportCmd) request() (report.Request, error) {
	req := report.Request{
		Kind: c.Kind,
		LogQuery: analysis.LogQuery{
			From:       c.From,
			To:         c.To,
			MachineID:  c.Machine,
			LineNumber: c.Line,
			OperatorID: c.Operator,
		},
	}
	if c.TotalHours != "" {
		mode, err := analysis.ParseTotalHoursMode(c.TotalHours)
		if err != nil {
			return req, err
		}
		req.TotalHours = mode
	}
	switch c.Shift {
	case "on", "off":
		apply := c.Shift == "on"
		req.ApplyShift = &apply
	}
	return req, nil
}

func (c *ReportCmd) Run(ctx *Context) error {
	req, err := c.request()
	if err != nil {
		return err
	}
	e, err := ctx.open()
	if err != nil {
		return err
	}
	defer e.close()

	svc := report.NewService(e.reportSource(), e.repo, e.cfg, nil)

	if c.Format == "" {
		vm, err := svc.Build(ctx.Ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.Out, renderReport(vm))
		if c.Charts != "" {
			return saveCharts(ctx.Out, charting.NewGenerator(), vm, c.Charts)
		}
		return nil
	}

	format, err := export.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	vm, rows, err := svc.Detail(ctx.Ctx, req)
	if err != nil {
		return err
	}
	path := c.Output
	if path == "" {
		path = export.Filename(vm, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.Write(f, format, vm, rows, charting.NewGenerator()); err != nil {
		f.Close()
		return fmt.Errorf("export failed: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "✓ Wrote %s (%d %s, %s rows)\n",
		path, len(vm.Entities), vm.EntityLabel, humanize.Comma(int64(vm.TotalRows)))
	return nil
}

// renderReport lays out the summary table of vm for a terminal
func renderReport(vm *report.ViewModel) string {
	summary := export.Summary(vm)
	rows := make([][]string, 0, len(summary.Rows))
	for _, r := range summary.Rows {
		cells := make([]string, len(r))
		for i, v := range r {
			cells[i] = formatCell(v)
		}
		rows = append(rows, cells)
	}
	last := len(rows) - 1

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(summary.Header...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == last:
				return rollupStyle
			default:
				return cellStyle
			}
		})

	footer := fmt.Sprintf("%s rows, total hours mode %s, avg productive %s",
		humanize.Comma(int64(vm.TotalRows)), vm.TotalHoursMode,
		analysis.FormatPercent(vm.Rollup.Percentages.ProductivePct))
	if len(vm.Warnings) > 0 {
		footer += fmt.Sprintf(", %d warnings", len(vm.Warnings))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(summary.Title),
		t.Render(),
		mutedStyle.Render(footer),
	)
}

// saveCharts writes every chart vm has data for into dir
func saveCharts(out io.Writer, gen *charting.Generator, vm *report.ViewModel, dir string) error {
	for _, name := range charting.Names {
		path, err := gen.SaveChart(name, vm, fmt.Sprintf("%s_%s.png", vm.Kind, name), dir)
		if errors.Is(err, charting.ErrNoData) {
			fmt.Fprintf(out, "- skipped %s chart (no data)\n", name)
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Wrote %s\n", path)
	}
	return nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case int64:
		return humanize.Comma(x)
	case float64:
		return humanize.FormatFloat("#,###.##", x)
	case int:
		return humanize.Comma(int64(x))
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
