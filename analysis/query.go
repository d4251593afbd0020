package analysis

import "time"

// LogQuery selects log rows by date range and optional entity ids.
// From and To are inclusive YYYY-MM-DD days; empty means unbounded.
type LogQuery struct {
	From       string `json:"from_date,omitempty"`
	To         string `json:"to_date,omitempty"`
	MachineID  string `json:"machine_id,omitempty"`
	LineNumber string `json:"line_number,omitempty"`
	OperatorID string `json:"operator_id,omitempty"`
}

// Bounds returns the parsed range. A zero time means the side is open.
func (q LogQuery) Bounds() (from, to time.Time) {
	if t, ok := ParseDate(q.From); ok {
		from = t
	}
	if t, ok := ParseDate(q.To); ok {
		to = t
	}
	return from, to
}

// Match reports whether a row falls inside the query. Rows with an
// unparseable date never match a bounded range.
func (q LogQuery) Match(row RawLogRow) bool {
	if q.MachineID != "" && row.MachineID != q.MachineID {
		return false
	}
	if q.LineNumber != "" && row.LineNumber != q.LineNumber {
		return false
	}
	if q.OperatorID != "" && row.OperatorID != q.OperatorID {
		return false
	}

	from, to := q.Bounds()
	if from.IsZero() && to.IsZero() {
		return true
	}
	day, ok := ParseDate(row.Date)
	if !ok {
		return false
	}
	if !from.IsZero() && day.Before(from) {
		return false
	}
	if !to.IsZero() && day.After(to) {
		return false
	}
	return true
}

// Filter returns the rows matching q, preserving order
func (q LogQuery) Filter(rows []RawLogRow) []RawLogRow {
	out := make([]RawLogRow, 0, len(rows))
	for _, r := range rows {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
