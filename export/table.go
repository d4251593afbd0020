package export

import (
	"math"
	"strconv"

	"sewstat/analysis"
	"sewstat/report"
)

// Table is a header plus rows of string, int64 or float64 cells shared by
// every export format
type Table struct {
	Title  string
	Header []string
	Rows   [][]any
}

// DetailedHeader is the upstream column set of the detailed log table
var DetailedHeader = []string{
	"S.No", "MACHINE_ID", "LINE_NUMB", "OPERATOR_ID", "DATE", "START_TIME", "END_TIME",
	"MODE", "Mode Description", "STITCH_COUNT", "NEEDLE_RUNTIME", "NEEDLE_STOPTIME",
	"Duration", "SPM", "Tx_LOGID", "Str_LOGID", "created_at",
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

// Summary lays out one row per entity followed by the rollup row
func Summary(vm *report.ViewModel) Table {
	isOperators := vm.Kind == report.Operators.Name
	isLines := vm.Kind == report.Lines.Name

	header := []string{vm.EntityLabel}
	if isOperators {
		header = append(header, "Name")
	}
	for _, c := range analysis.Categories {
		header = append(header, vm.Label(c))
	}
	header = append(header,
		"Total Hours", "Productive %", "Non-Productive %", "Needle Runtime %",
		"Avg Needle Runtime (s)", "Avg Sewing Speed", "Stitch Count", "Efficiency %",
	)
	switch {
	case isOperators:
		header = append(header, "Available Hours")
	case isLines:
		header = append(header, "Machines", "Avg Machines", "Utilization %")
	}

	t := Table{Title: vm.Title, Header: header}
	for _, e := range vm.Entities {
		row := []any{e.Key}
		if isOperators {
			row = append(row, e.Name)
		}
		row = append(row, breakdownCells(e.Breakdown, e.Percentages)...)
		row = append(row, round2(e.Efficiency))
		switch {
		case isOperators:
			row = append(row, round2(e.AvailableHours))
		case isLines:
			row = append(row, int64(e.Machines), round2(e.AvgMachines), round2(e.Utilization))
		}
		t.Rows = append(t.Rows, row)
	}

	if len(vm.Entities) > 0 {
		row := []any{vm.AllLabel}
		if isOperators {
			row = append(row, "")
		}
		row = append(row, breakdownCells(vm.Rollup.Totals, vm.Rollup.Percentages)...)
		row[len(row)-2] = round2(vm.Rollup.AvgSewingSpeed)
		row = append(row, "")
		switch {
		case isOperators:
			row = append(row, "")
		case isLines:
			row = append(row, "", "", "")
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func breakdownCells(b analysis.CategoryBreakdown, p analysis.Percentages) []any {
	cells := make([]any, 0, len(analysis.Categories)+7)
	for _, c := range analysis.Categories {
		cells = append(cells, round2(b.Hours(c)))
	}
	return append(cells,
		round2(b.TotalHours),
		round2(p.ProductivePct),
		round2(p.NonProductivePct),
		round2(p.NeedleRuntimePct),
		round2(b.AvgNeedleRuntime()),
		round2(b.AvgSewingSpeed),
		int64(b.StitchCount),
	)
}

// Detailed lays out raw rows with the upstream column set
func Detailed(rows []analysis.RawLogRow) Table {
	t := Table{Title: "Detailed Logs", Header: DetailedHeader}
	for i, r := range rows {
		t.Rows = append(t.Rows, []any{
			int64(i + 1),
			r.MachineID,
			r.LineNumber,
			r.OperatorID,
			r.DayKey(),
			r.StartTime,
			r.EndTime,
			int64(r.Mode),
			analysis.ModeDescription(r.Mode),
			int64(r.StitchCount),
			r.NeedleRuntimeSeconds(),
			round2(r.NeedleStoptime),
			analysis.FormatHoursMinutes(float64(r.DurationSeconds()), analysis.UnitSeconds),
			round2(r.SewingSpeed),
			int64(r.TxLogID),
			int64(r.StrLogID),
			r.CreatedAt,
		})
	}
	return t
}

// cellString renders a cell for text formats
func cellString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case nil:
		return ""
	}
	return ""
}
