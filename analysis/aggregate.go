package analysis

import (
	"fmt"
	"sort"
)

// KeySelector extracts the entity key a row is grouped under.
// ok=false drops the row from that aggregation.
type KeySelector func(RawLogRow) (key string, ok bool)

// ByOperator groups by operator id and drops unassigned operators
func ByOperator(r RawLogRow) (string, bool) {
	if !r.HasOperator() {
		return "", false
	}
	return r.OperatorID, true
}

// ByMachine groups by machine id. Unassigned operators are kept.
func ByMachine(r RawLogRow) (string, bool) {
	return r.MachineID, r.MachineID != ""
}

// ByLine groups by line number. Unassigned operators are kept.
func ByLine(r RawLogRow) (string, bool) {
	return r.LineNumber, r.LineNumber != ""
}

// CategoryBreakdown holds hours per category for one entity
type CategoryBreakdown struct {
	Key              string  `json:"key"`
	SewingHours      float64 `json:"sewing_hours"`
	IdleHours        float64 `json:"idle_hours"`
	MeetingHours     float64 `json:"meeting_hours"`
	NoFeedingHours   float64 `json:"no_feeding_hours"`
	MaintenanceHours float64 `json:"maintenance_hours"`
	ReworkHours      float64 `json:"rework_hours"`
	NeedleBreakHours float64 `json:"needle_break_hours"`
	TotalHours       float64 `json:"total_hours"`

	NeedleRuntimeSeconds int64   `json:"needle_runtime_seconds"`
	NeedleStoptime       float64 `json:"needle_stoptime"`
	StitchCount          float64 `json:"stitch_count"`
	AvgSewingSpeed       float64 `json:"avg_sewing_speed"`
	SpeedSamples         int     `json:"speed_samples"`

	Rows              int `json:"rows"`
	UncategorizedRows int `json:"uncategorized_rows"`
	SewingRows        int `json:"sewing_rows"`
	WorkingDays       int `json:"working_days"`
}

// Hours returns the hours recorded for a category
func (b CategoryBreakdown) Hours(c Category) float64 {
	switch c {
	case CategorySewing:
		return b.SewingHours
	case CategoryIdle:
		return b.IdleHours
	case CategoryMeeting:
		return b.MeetingHours
	case CategoryNoFeeding:
		return b.NoFeedingHours
	case CategoryMaintenance:
		return b.MaintenanceHours
	case CategoryRework:
		return b.ReworkHours
	case CategoryNeedleBreak:
		return b.NeedleBreakHours
	}
	return 0
}

// CategorySum is the sum of all seven categories
func (b CategoryBreakdown) CategorySum() float64 {
	return b.SewingHours + b.NonProductiveHours()
}

// NonProductiveHours sums every category except sewing
func (b CategoryBreakdown) NonProductiveHours() float64 {
	return b.IdleHours + b.MeetingHours + b.NoFeedingHours + b.MaintenanceHours + b.ReworkHours + b.NeedleBreakHours
}

// AvgNeedleRuntime is the mean needle runtime in seconds per sewing row
func (b CategoryBreakdown) AvgNeedleRuntime() float64 {
	if b.SewingRows == 0 {
		return 0
	}
	return float64(b.NeedleRuntimeSeconds) / float64(b.SewingRows)
}

// Warning is a non-fatal observation about the input rows
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// WarnUnknownMode is the code used for rows with a mode outside 1-7
const WarnUnknownMode = "unknown_mode"

// Aggregation is the result of grouping rows by entity
type Aggregation struct {
	Keys              []string                     `json:"keys"`
	Breakdowns        map[string]CategoryBreakdown `json:"breakdowns"`
	TotalRows         int                          `json:"total_rows"`
	UncategorizedRows int                          `json:"uncategorized_rows"`
	ExcludedRows      int                          `json:"excluded_rows"`
	Warnings          []Warning                    `json:"warnings,omitempty"`
}

// Ordered returns the breakdowns in key order
func (a Aggregation) Ordered() []CategoryBreakdown {
	out := make([]CategoryBreakdown, 0, len(a.Keys))
	for _, k := range a.Keys {
		out = append(out, a.Breakdowns[k])
	}
	return out
}

// Aggregate groups rows by the selected entity key and sums canonical
// durations into the seven categories. TotalHours is the category sum.
func Aggregate(rows []RawLogRow, key KeySelector) Aggregation {
	groups := make(map[string]*accumulator)
	unknown := make(map[Mode]int)
	result := Aggregation{TotalRows: len(rows)}

	for _, row := range rows {
		k, ok := key(row)
		if !ok {
			result.ExcludedRows++
			continue
		}
		acc, exists := groups[k]
		if !exists {
			acc = newAccumulator(k)
			groups[k] = acc
		}
		if !acc.add(row) {
			unknown[row.Mode]++
			result.UncategorizedRows++
		}
	}

	result.Keys = make([]string, 0, len(groups))
	result.Breakdowns = make(map[string]CategoryBreakdown, len(groups))
	for k, acc := range groups {
		result.Keys = append(result.Keys, k)
		result.Breakdowns[k] = acc.breakdown()
	}
	SortKeys(result.Keys)
	result.Warnings = unknownModeWarnings(unknown)

	return result
}

// DailyBreakdown is the breakdown of one entity on one day
type DailyBreakdown struct {
	Key       string            `json:"key"`
	Day       string            `json:"day"`
	Breakdown CategoryBreakdown `json:"breakdown"`
}

// AggregateByDate groups rows by entity and day. Results are ordered by
// entity key, then day.
func AggregateByDate(rows []RawLogRow, key KeySelector) []DailyBreakdown {
	groups := make(map[string]map[string]*accumulator)
	for _, row := range rows {
		k, ok := key(row)
		if !ok {
			continue
		}
		days, exists := groups[k]
		if !exists {
			days = make(map[string]*accumulator)
			groups[k] = days
		}
		day := row.DayKey()
		acc, exists := days[day]
		if !exists {
			acc = newAccumulator(k)
			days[day] = acc
		}
		acc.add(row)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	SortKeys(keys)

	var out []DailyBreakdown
	for _, k := range keys {
		days := make([]string, 0, len(groups[k]))
		for d := range groups[k] {
			days = append(days, d)
		}
		sort.Strings(days)
		for _, d := range days {
			out = append(out, DailyBreakdown{Key: k, Day: d, Breakdown: groups[k][d].breakdown()})
		}
	}
	return out
}

type accumulator struct {
	key           string
	seconds       map[Category]int64
	needle        int64
	stoptime      float64
	stitches      float64
	speedSum      float64
	speedSamples  int
	rows          int
	uncategorized int
	sewingRows    int
	days          map[string]struct{}
}

func newAccumulator(key string) *accumulator {
	return &accumulator{
		key:     key,
		seconds: make(map[Category]int64, len(Categories)),
		days:    make(map[string]struct{}),
	}
}

// add folds a row in and reports whether its mode was known
func (a *accumulator) add(row RawLogRow) bool {
	a.rows++
	a.days[row.DayKey()] = struct{}{}
	a.needle += row.NeedleRuntimeSeconds()
	a.stoptime += row.NeedleStoptime
	a.stitches += row.StitchCount
	if row.SewingSpeed > 0 {
		a.speedSum += row.SewingSpeed
		a.speedSamples++
	}

	if !row.Mode.Known() {
		a.uncategorized++
		return false
	}
	c, _ := row.Mode.Category()
	a.seconds[c] += row.DurationSeconds()
	if c == CategorySewing {
		a.sewingRows++
	}
	return true
}

func (a *accumulator) breakdown() CategoryBreakdown {
	b := CategoryBreakdown{
		Key:                  a.key,
		SewingHours:          Hours(a.seconds[CategorySewing]),
		IdleHours:            Hours(a.seconds[CategoryIdle]),
		MeetingHours:         Hours(a.seconds[CategoryMeeting]),
		NoFeedingHours:       Hours(a.seconds[CategoryNoFeeding]),
		MaintenanceHours:     Hours(a.seconds[CategoryMaintenance]),
		ReworkHours:          Hours(a.seconds[CategoryRework]),
		NeedleBreakHours:     Hours(a.seconds[CategoryNeedleBreak]),
		NeedleRuntimeSeconds: a.needle,
		NeedleStoptime:       a.stoptime,
		StitchCount:          a.stitches,
		SpeedSamples:         a.speedSamples,
		Rows:                 a.rows,
		UncategorizedRows:    a.uncategorized,
		SewingRows:           a.sewingRows,
		WorkingDays:          len(a.days),
	}
	if a.speedSamples > 0 {
		b.AvgSewingSpeed = a.speedSum / float64(a.speedSamples)
	}

	var total int64
	for _, s := range a.seconds {
		total += s
	}
	b.TotalHours = Hours(total)
	return b
}

func unknownModeWarnings(unknown map[Mode]int) []Warning {
	if len(unknown) == 0 {
		return nil
	}
	modes := make([]int, 0, len(unknown))
	for m := range unknown {
		modes = append(modes, int(m))
	}
	sort.Ints(modes)

	warnings := make([]Warning, 0, len(modes))
	for _, m := range modes {
		warnings = append(warnings, Warning{
			Code:    WarnUnknownMode,
			Message: fmt.Sprintf("mode %d is not a known activity code; rows excluded from category hours", m),
			Count:   unknown[Mode(m)],
		})
	}
	return warnings
}
