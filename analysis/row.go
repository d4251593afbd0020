package analysis

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// RawLogRow is one machine/operator activity record as delivered upstream.
// Identifier fields arrive as either strings or numbers and are kept as
// trimmed strings. DurationRaw and NeedleRuntimeRaw keep their original
// value; use ParseDuration before doing any arithmetic on them.
type RawLogRow struct {
	MachineID        string
	LineNumber       string
	OperatorID       string
	OperatorName     string
	Date             string
	StartTime        string
	EndTime          string
	Mode             Mode
	DurationRaw      any
	StitchCount      float64
	NeedleRuntimeRaw any
	NeedleStoptime   float64
	SewingSpeed      float64
	TxLogID          int
	StrLogID         int
	CreatedAt        string
}

// UnassignedOperator is the operator id firmware reports when nobody is logged in
const UnassignedOperator = "0"

// DurationSeconds returns the canonical duration of the row
func (r RawLogRow) DurationSeconds() int64 {
	return ParseDuration(r.DurationRaw)
}

// NeedleRuntimeSeconds returns the canonical needle runtime of the row
func (r RawLogRow) NeedleRuntimeSeconds() int64 {
	return ParseDuration(r.NeedleRuntimeRaw)
}

// HasOperator reports whether the row is attributed to a real operator
func (r RawLogRow) HasOperator() bool {
	return r.OperatorID != "" && !IsUnassignedOperator(r.OperatorID)
}

// IsUnassignedOperator reports whether id is numerically zero, so "0",
// "00" and "0.0" all mean nobody is logged in.
func IsUnassignedOperator(id string) bool {
	if !isDecimal(id) {
		return false
	}
	f, err := strconv.ParseFloat(id, 64)
	return err == nil && f == 0
}

// DayKey returns the row date normalized to YYYY-MM-DD, or the raw value
// when it cannot be parsed.
func (r RawLogRow) DayKey() string {
	if t, ok := ParseDate(r.Date); ok {
		return t.Format(DateLayout)
	}
	return strings.TrimSpace(r.Date)
}

type wireRow struct {
	MachineID      any `json:"MACHINE_ID"`
	LineNumber     any `json:"LINE_NUMB"`
	OperatorID     any `json:"OPERATOR_ID"`
	OperatorName   any `json:"operator_name"`
	Date           any `json:"DATE"`
	StartTime      any `json:"START_TIME"`
	EndTime        any `json:"END_TIME"`
	Mode           any `json:"MODE"`
	Duration       any `json:"DEVICE_ID"`
	DurationAlias  any `json:"duration"`
	StitchCount    any `json:"STITCH_COUNT"`
	NeedleRuntime  any `json:"NEEDLE_RUNTIME"`
	NeedleStoptime any `json:"NEEDLE_STOPTIME"`
	Reserve        any `json:"RESERVE"`
	TxLogID        any `json:"Tx_LOGID"`
	StrLogID       any `json:"Str_LOGID"`
	CreatedAt      any `json:"created_at"`
}

// UnmarshalJSON decodes the upstream wire shape. Missing or null numeric
// fields become zero.
func (r *RawLogRow) UnmarshalJSON(data []byte) error {
	var w wireRow
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return err
	}

	duration := w.Duration
	if duration == nil {
		duration = w.DurationAlias
	}

	*r = RawLogRow{
		MachineID:        FlexString(w.MachineID),
		LineNumber:       FlexString(w.LineNumber),
		OperatorID:       FlexString(w.OperatorID),
		OperatorName:     FlexString(w.OperatorName),
		Date:             FlexString(w.Date),
		StartTime:        FlexString(w.StartTime),
		EndTime:          FlexString(w.EndTime),
		Mode:             Mode(FlexInt(w.Mode)),
		DurationRaw:      duration,
		StitchCount:      FlexFloat(w.StitchCount),
		NeedleRuntimeRaw: w.NeedleRuntime,
		NeedleStoptime:   FlexFloat(w.NeedleStoptime),
		SewingSpeed:      FlexFloat(w.Reserve),
		TxLogID:          FlexInt(w.TxLogID),
		StrLogID:         FlexInt(w.StrLogID),
		CreatedAt:        FlexString(w.CreatedAt),
	}
	return nil
}

// MarshalJSON writes the upstream wire shape back out
func (r RawLogRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"MACHINE_ID":      r.MachineID,
		"LINE_NUMB":       r.LineNumber,
		"OPERATOR_ID":     r.OperatorID,
		"operator_name":   r.OperatorName,
		"DATE":            r.Date,
		"START_TIME":      r.StartTime,
		"END_TIME":        r.EndTime,
		"MODE":            int(r.Mode),
		"DEVICE_ID":       r.DurationRaw,
		"STITCH_COUNT":    r.StitchCount,
		"NEEDLE_RUNTIME":  r.NeedleRuntimeRaw,
		"NEEDLE_STOPTIME": r.NeedleStoptime,
		"RESERVE":         r.SewingSpeed,
		"Tx_LOGID":        r.TxLogID,
		"Str_LOGID":       r.StrLogID,
		"created_at":      r.CreatedAt,
	})
}

// FlexString renders a loosely typed identifier as a trimmed string
func FlexString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case []byte:
		return strings.TrimSpace(string(x))
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// FlexFloat reads a loosely typed number. Unparseable values are 0.
func FlexFloat(v any) float64 {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case string, []byte:
		f, err := strconv.ParseFloat(FlexString(x), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// FlexInt reads a loosely typed integer, truncating fractions
func FlexInt(v any) int {
	return int(FlexFloat(v))
}

// DateLayout is the canonical day format used for keys and queries
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"02-01-2006",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate accepts the date shapes seen in upstream payloads
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ClockSeconds parses an "HH:MM[:SS]" time of day into seconds after midnight
func ClockSeconds(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	total := 0
	mult := []int{3600, 60, 1}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, false
		}
		total += n * mult[i]
	}
	return total, true
}
