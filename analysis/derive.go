package analysis

import (
	"fmt"
	"math"
)

// TotalHoursMode selects what a breakdown's percentages are measured against
type TotalHoursMode string

const (
	// TotalFixed10 uses a fixed ten-hour shift per working day
	TotalFixed10 TotalHoursMode = "fixed10"
	// TotalSumCategories uses the sum of the seven category totals
	TotalSumCategories TotalHoursMode = "sumCategories"
)

// ShiftHours is the length of one working shift under TotalFixed10
const ShiftHours = 10.0

// ParseTotalHoursMode validates a configured mode name
func ParseTotalHoursMode(s string) (TotalHoursMode, error) {
	switch TotalHoursMode(s) {
	case TotalFixed10, TotalSumCategories:
		return TotalHoursMode(s), nil
	}
	return "", fmt.Errorf("unknown total hours mode %q", s)
}

// WithTotal returns a copy of b whose TotalHours follows mode.
// A fixed baseline never drops below the category sum, so the categories
// always fit inside the total.
func (b CategoryBreakdown) WithTotal(mode TotalHoursMode) CategoryBreakdown {
	sum := b.CategorySum()
	switch mode {
	case TotalFixed10:
		b.TotalHours = math.Max(b.ShiftBaseline(), sum)
	default:
		b.TotalHours = sum
	}
	return b
}

// ShiftBaseline is ten hours per working day. A breakdown with rows but no
// parseable dates counts as one day.
func (b CategoryBreakdown) ShiftBaseline() float64 {
	days := b.WorkingDays
	if days == 0 && b.Rows > 0 {
		days = 1
	}
	return ShiftHours * float64(days)
}

// ExceedsBaseline reports whether recorded hours overflow the fixed shift baseline
func (b CategoryBreakdown) ExceedsBaseline() bool {
	return b.CategorySum() > b.ShiftBaseline()+1e-9
}

// Percentages are the ratios shown next to a breakdown
type Percentages struct {
	ProductivePct    float64 `json:"productive_pct"`
	NonProductivePct float64 `json:"non_productive_pct"`
	NeedleRuntimePct float64 `json:"needle_runtime_pct"`
}

// Derive computes productive, non-productive and needle runtime percentages
// for b under the given total-hours mode. Zero denominators yield 0.
func Derive(b CategoryBreakdown, mode TotalHoursMode) Percentages {
	total := b.WithTotal(mode).TotalHours

	p := Percentages{
		ProductivePct:    ratio(b.SewingHours, total),
		NonProductivePct: ratio(b.NonProductiveHours(), total),
	}
	if b.SewingHours > 0 {
		p.NeedleRuntimePct = ratio(float64(b.NeedleRuntimeSeconds), b.SewingHours*3600)
	}
	return p
}

// DeriveShift measures b against the bare shift baseline without raising
// it to the category sum, so overtime shows up as more than 100%.
func DeriveShift(b CategoryBreakdown) Percentages {
	p := Derive(b, TotalFixed10)
	base := b.ShiftBaseline()
	p.ProductivePct = ratio(b.SewingHours, base)
	p.NonProductivePct = ratio(b.NonProductiveHours(), base)
	return p
}

func ratio(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return 0
	}
	v := num / den * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// EntityMetrics pairs a breakdown with its derived percentages
type EntityMetrics struct {
	Breakdown   CategoryBreakdown `json:"breakdown"`
	Percentages Percentages       `json:"percentages"`
}

// Measure applies mode to every breakdown of an aggregation, in key order
func Measure(a Aggregation, mode TotalHoursMode) []EntityMetrics {
	out := make([]EntityMetrics, 0, len(a.Keys))
	for _, b := range a.Ordered() {
		out = append(out, EntityMetrics{
			Breakdown:   b.WithTotal(mode),
			Percentages: Derive(b, mode),
		})
	}
	return out
}

// RollupSummary aggregates a group of entities ("All Machines" etc.)
type RollupSummary struct {
	Totals         CategoryBreakdown `json:"totals"`
	Percentages    Percentages       `json:"percentages"`
	AvgSewingSpeed float64           `json:"avg_sewing_speed"`
	EntityCount    int               `json:"entity_count"`
}

// Rollup sums the entity breakdowns and averages their percentages.
// Percentages are the mean of per-entity values so that every entity weighs
// the same regardless of its volume.
func Rollup(entities []EntityMetrics) RollupSummary {
	s := RollupSummary{EntityCount: len(entities)}
	if len(entities) == 0 {
		return s
	}

	var speedSum float64
	var speedN int
	for _, e := range entities {
		b := e.Breakdown
		t := &s.Totals
		t.SewingHours += b.SewingHours
		t.IdleHours += b.IdleHours
		t.MeetingHours += b.MeetingHours
		t.NoFeedingHours += b.NoFeedingHours
		t.MaintenanceHours += b.MaintenanceHours
		t.ReworkHours += b.ReworkHours
		t.NeedleBreakHours += b.NeedleBreakHours
		t.TotalHours += b.TotalHours
		t.NeedleRuntimeSeconds += b.NeedleRuntimeSeconds
		t.NeedleStoptime += b.NeedleStoptime
		t.StitchCount += b.StitchCount
		t.SpeedSamples += b.SpeedSamples
		t.Rows += b.Rows
		t.UncategorizedRows += b.UncategorizedRows
		t.SewingRows += b.SewingRows
		if b.WorkingDays > t.WorkingDays {
			t.WorkingDays = b.WorkingDays
		}

		s.Percentages.ProductivePct += e.Percentages.ProductivePct
		s.Percentages.NonProductivePct += e.Percentages.NonProductivePct
		s.Percentages.NeedleRuntimePct += e.Percentages.NeedleRuntimePct

		if b.SpeedSamples > 0 {
			speedSum += b.AvgSewingSpeed
			speedN++
		}
	}

	n := float64(len(entities))
	s.Percentages.ProductivePct /= n
	s.Percentages.NonProductivePct /= n
	s.Percentages.NeedleRuntimePct /= n
	if speedN > 0 {
		s.AvgSewingSpeed = speedSum / float64(speedN)
		s.Totals.AvgSewingSpeed = s.AvgSewingSpeed
	}
	s.Totals.Key = "all"
	return s
}
