package report

import (
	"sort"
	"time"

	"sewstat/analysis"
)

// underperformingModes are the activities that flag an operator for review
var underperformingModes = map[analysis.Mode]bool{
	analysis.ModeMeeting:     true,
	analysis.ModeNoFeeding:   true,
	analysis.ModeMaintenance: true,
}

// Options tune a single Build
type Options struct {
	// TotalHours overrides the kind's baseline when set
	TotalHours analysis.TotalHoursMode
	// Shift drops rows outside the working window when non-nil
	Shift *Window
	// Now anchors available-hours proration; zero means time.Now
	Now   time.Time
	Query analysis.LogQuery
}

// DailyRow is one entity's figures for a single day
type DailyRow struct {
	Day         string                     `json:"day"`
	Breakdown   analysis.CategoryBreakdown `json:"breakdown"`
	Percentages analysis.Percentages       `json:"percentages"`
	Machines    int                        `json:"machines,omitempty"`
}

// EntityView is one operator, machine or line in a report
type EntityView struct {
	Key             string                     `json:"key"`
	Name            string                     `json:"name,omitempty"`
	Breakdown       analysis.CategoryBreakdown `json:"breakdown"`
	Percentages     analysis.Percentages       `json:"percentages"`
	ExceedsBaseline bool                       `json:"exceeds_baseline,omitempty"`
	// ShiftPercentages are measured against the bare ten-hour baseline.
	// Set only when the baseline was exceeded.
	ShiftPercentages *analysis.Percentages `json:"shift_percentages,omitempty"`

	AvgNeedleRuntime float64 `json:"avg_needle_runtime"`
	Efficiency       float64 `json:"efficiency"`

	// Operators only
	AvailableHours float64 `json:"available_hours,omitempty"`

	// Lines only
	Machines    int     `json:"machines,omitempty"`
	AvgMachines float64 `json:"avg_machines,omitempty"`
	IdealHours  float64 `json:"ideal_hours,omitempty"`
	Utilization float64 `json:"utilization,omitempty"`

	Daily []DailyRow `json:"daily"`
}

// ViewModel is the immutable result handed to renderers: tables, charts
// and exports read from it and never recompute.
type ViewModel struct {
	Kind           string                  `json:"kind"`
	Title          string                  `json:"title"`
	EntityLabel    string                  `json:"entity_label"`
	AllLabel       string                  `json:"all_label"`
	Labels         map[string]string       `json:"labels"`
	TotalHoursMode analysis.TotalHoursMode `json:"total_hours_mode"`
	Query          analysis.LogQuery       `json:"query"`

	Entities        []EntityView           `json:"entities"`
	Rollup          analysis.RollupSummary `json:"rollup"`
	Underperforming []string               `json:"underperforming_operators"`
	Warnings        []analysis.Warning     `json:"warnings,omitempty"`

	TotalRows         int       `json:"total_rows"`
	ExcludedRows      int       `json:"excluded_rows"`
	UncategorizedRows int       `json:"uncategorized_rows"`
	OutsideShiftRows  int       `json:"outside_shift_rows"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Entity looks up an entity by key
func (vm *ViewModel) Entity(key string) (EntityView, bool) {
	for _, e := range vm.Entities {
		if e.Key == key {
			return e, true
		}
	}
	return EntityView{}, false
}

// Label returns the display label of a category
func (vm *ViewModel) Label(c analysis.Category) string {
	if l, ok := vm.Labels[string(c)]; ok {
		return l
	}
	return defaultLabels[c]
}

// Build turns raw rows into the report view of kind. It never fails:
// bad input shows up as zeros, excluded rows and warnings.
func Build(rows []analysis.RawLogRow, kind Kind, opts Options) *ViewModel {
	mode := kind.TotalHours
	if opts.TotalHours != "" {
		mode = opts.TotalHours
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	vm := &ViewModel{
		Kind:           kind.Name,
		Title:          kind.Title,
		EntityLabel:    kind.EntityLabel,
		AllLabel:       kind.AllLabel,
		Labels:         make(map[string]string, len(analysis.Categories)),
		TotalHoursMode: mode,
		Query:          opts.Query,
		TotalRows:      len(rows),
		GeneratedAt:    now,
	}
	for _, c := range analysis.Categories {
		vm.Labels[string(c)] = kind.Label(c)
	}

	if opts.Shift != nil {
		rows, vm.OutsideShiftRows = opts.Shift.Filter(rows)
	}

	agg := analysis.Aggregate(rows, kind.Key)
	vm.ExcludedRows = agg.ExcludedRows
	vm.UncategorizedRows = agg.UncategorizedRows
	vm.Warnings = agg.Warnings

	metrics := analysis.Measure(agg, mode)
	daily := groupDaily(analysis.AggregateByDate(rows, kind.Key), mode)
	groups := groupRows(rows, kind.Key)

	window := DefaultWindow()
	if opts.Shift != nil {
		window = *opts.Shift
	}

	vm.Entities = make([]EntityView, 0, len(metrics))
	for _, m := range metrics {
		b := m.Breakdown
		e := EntityView{
			Key:              b.Key,
			Breakdown:        b,
			Percentages:      m.Percentages,
			ExceedsBaseline:  mode == analysis.TotalFixed10 && b.ExceedsBaseline(),
			AvgNeedleRuntime: b.AvgNeedleRuntime(),
			Efficiency:       efficiency(b),
			Daily:            daily[b.Key],
		}
		if e.ExceedsBaseline {
			shift := analysis.DeriveShift(b)
			e.ShiftPercentages = &shift
		}
		members := groups[b.Key]

		switch kind.Name {
		case Operators.Name:
			e.Name = operatorName(members)
			e.AvailableHours = availableHours(window, e.Daily, now)
		case Lines.Name:
			lineExtras(&e, members)
		}
		vm.Entities = append(vm.Entities, e)
	}

	vm.Rollup = analysis.Rollup(metrics)
	vm.Underperforming = underperformingOperators(rows)
	return vm
}

func groupDaily(days []analysis.DailyBreakdown, mode analysis.TotalHoursMode) map[string][]DailyRow {
	out := make(map[string][]DailyRow)
	for _, d := range days {
		out[d.Key] = append(out[d.Key], DailyRow{
			Day:         d.Day,
			Breakdown:   d.Breakdown.WithTotal(mode),
			Percentages: analysis.Derive(d.Breakdown, mode),
		})
	}
	return out
}

func groupRows(rows []analysis.RawLogRow, key analysis.KeySelector) map[string][]analysis.RawLogRow {
	out := make(map[string][]analysis.RawLogRow)
	for _, r := range rows {
		if k, ok := key(r); ok {
			out[k] = append(out[k], r)
		}
	}
	return out
}

// efficiency is needle runtime over runtime plus stoptime, in percent
func efficiency(b analysis.CategoryBreakdown) float64 {
	runtime := float64(b.NeedleRuntimeSeconds)
	den := runtime + b.NeedleStoptime
	if den <= 0 {
		return 0
	}
	return runtime / den * 100
}

func operatorName(rows []analysis.RawLogRow) string {
	for _, r := range rows {
		if r.OperatorName != "" {
			return r.OperatorName
		}
	}
	return ""
}

func availableHours(w Window, days []DailyRow, now time.Time) float64 {
	var total float64
	for _, d := range days {
		day, ok := analysis.ParseDate(d.Day)
		if !ok {
			continue
		}
		// Day keys are UTC dates; compare them against now's calendar date
		local := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
		total += w.AvailableHours(local, now)
	}
	return total
}

// lineExtras fills machine counts and utilization for a line
func lineExtras(e *EntityView, rows []analysis.RawLogRow) {
	all := make(map[string]struct{})
	perDay := make(map[string]map[string]struct{})
	for _, r := range rows {
		if r.MachineID == "" {
			continue
		}
		all[r.MachineID] = struct{}{}
		day := r.DayKey()
		if perDay[day] == nil {
			perDay[day] = make(map[string]struct{})
		}
		perDay[day][r.MachineID] = struct{}{}
	}

	e.Machines = len(all)
	if len(perDay) > 0 {
		sum := 0
		for _, m := range perDay {
			sum += len(m)
		}
		e.AvgMachines = float64(sum) / float64(len(perDay))
	}
	for i := range e.Daily {
		e.Daily[i].Machines = len(perDay[e.Daily[i].Day])
	}

	e.IdealHours = e.Breakdown.IdleHours
	if e.IdealHours > 0 {
		e.Utilization = e.Breakdown.CategorySum() / e.IdealHours * 100
	}
}

// underperformingOperators lists operators seen in meeting, no-feeding or
// maintenance rows, in natural order
func underperformingOperators(rows []analysis.RawLogRow) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		if r.HasOperator() && underperformingModes[r.Mode] {
			seen[r.OperatorID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	analysis.SortKeys(out)
	return out
}

// TopProductive returns up to n entities ordered by productive percentage
func (vm *ViewModel) TopProductive(n int) []EntityView {
	out := append([]EntityView(nil), vm.Entities...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Percentages.ProductivePct > out[j].Percentages.ProductivePct
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
