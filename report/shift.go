package report

import (
	"fmt"
	"time"

	"sewstat/analysis"
)

// Interval is a span of the day in seconds after midnight, [Start, End)
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (i Interval) length() int {
	if i.End <= i.Start {
		return 0
	}
	return i.End - i.Start
}

// overlap returns how many seconds of [from, to) fall inside i
func (i Interval) overlap(from, to int) int {
	lo := max(i.Start, from)
	hi := min(i.End, to)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// Window is the working shift of a day with its scheduled breaks
type Window struct {
	Shift  Interval   `json:"shift"`
	Breaks []Interval `json:"breaks"`
}

// DefaultWindow is 08:25-19:35 with three breaks
func DefaultWindow() Window {
	w, _ := NewWindow("08:25", "19:35", [][2]string{
		{"10:30", "10:40"},
		{"13:20", "14:00"},
		{"16:20", "16:30"},
	})
	return w
}

// NewWindow parses "15:04" bounds
func NewWindow(start, end string, breaks [][2]string) (Window, error) {
	s, ok1 := analysis.ClockSeconds(start)
	e, ok2 := analysis.ClockSeconds(end)
	if !ok1 || !ok2 || e <= s {
		return Window{}, fmt.Errorf("invalid shift window %q-%q", start, end)
	}
	w := Window{Shift: Interval{Start: s, End: e}}
	for _, b := range breaks {
		bs, ok1 := analysis.ClockSeconds(b[0])
		be, ok2 := analysis.ClockSeconds(b[1])
		if !ok1 || !ok2 || be <= bs {
			return Window{}, fmt.Errorf("invalid break %q-%q", b[0], b[1])
		}
		w.Breaks = append(w.Breaks, Interval{Start: bs, End: be})
	}
	return w, nil
}

// Contains reports whether a row counts toward the shift. Rows without
// parseable times always count; a row is dropped only when it lies
// entirely outside the shift or entirely inside one break.
func (w Window) Contains(row analysis.RawLogRow) bool {
	start, ok1 := analysis.ClockSeconds(row.StartTime)
	end, ok2 := analysis.ClockSeconds(row.EndTime)
	if !ok1 || !ok2 {
		return true
	}
	if end < start {
		// Crosses midnight; only the part before midnight can touch the shift
		end = 24 * 3600
	}
	if end == start {
		return start >= w.Shift.Start && start < w.Shift.End && !w.inBreak(start, start+1)
	}
	if w.Shift.overlap(start, end) == 0 {
		return false
	}
	return !w.inBreak(start, end)
}

func (w Window) inBreak(start, end int) bool {
	for _, b := range w.Breaks {
		if start >= b.Start && end <= b.End {
			return true
		}
	}
	return false
}

// Filter splits rows into those inside the shift and a count of the rest
func (w Window) Filter(rows []analysis.RawLogRow) ([]analysis.RawLogRow, int) {
	out := make([]analysis.RawLogRow, 0, len(rows))
	for _, r := range rows {
		if w.Contains(r) {
			out = append(out, r)
		}
	}
	return out, len(rows) - len(out)
}

// workedSeconds counts shift seconds before the given time of day, minus
// breaks already passed
func (w Window) workedSeconds(until int) int {
	end := min(until, w.Shift.End)
	if end <= w.Shift.Start {
		return 0
	}
	total := end - w.Shift.Start
	for _, b := range w.Breaks {
		total -= b.overlap(w.Shift.Start, end)
	}
	return max(total, 0)
}

// DayHours is the available time of a full shift in hours
func (w Window) DayHours() float64 {
	return float64(w.workedSeconds(w.Shift.End)) / 3600
}

// AvailableHours returns the available shift hours of day as seen at now.
// Past days count in full, today is prorated up to now and future days
// count zero.
func (w Window) AvailableHours(day, now time.Time) float64 {
	y1, m1, d1 := day.Date()
	y2, m2, d2 := now.Date()
	dayKey := y1*10000 + int(m1)*100 + d1
	nowKey := y2*10000 + int(m2)*100 + d2

	switch {
	case dayKey < nowKey:
		return w.DayHours()
	case dayKey > nowKey:
		return 0
	}
	secs := now.Hour()*3600 + now.Minute()*60 + now.Second()
	return float64(w.workedSeconds(secs)) / 3600
}
