package analysis

import (
	"math"
	"testing"
)

func TestFormatHoursMinutes(t *testing.T) {
	tests := []struct {
		value float64
		unit  Unit
		want  string
	}{
		{0, UnitHours, "0h 0m"},
		{0, UnitSeconds, "0h 0m"},
		{1.5, UnitHours, "1h 30m"},
		{5400, UnitSeconds, "1h 30m"},
		{61.0 / 60, UnitHours, "1h 1m"},
		{25.25, UnitHours, "25h 15m"},
		{59, UnitSeconds, "0h 1m"},
		{-1, UnitHours, "-"},
		{math.NaN(), UnitHours, "-"},
		{math.Inf(1), UnitSeconds, "-"},
	}

	for _, tt := range tests {
		if got := FormatHoursMinutes(tt.value, tt.unit); got != tt.want {
			t.Errorf("FormatHoursMinutes(%v, %s) = %q, want %q", tt.value, tt.unit, got, tt.want)
		}
	}
}

func TestFormatHoursAndPercent(t *testing.T) {
	if got := FormatHours(1.005); got != "1.00" && got != "1.01" {
		t.Errorf("FormatHours = %q", got)
	}
	if got := FormatHours(-2); got != NoData {
		t.Errorf("FormatHours(-2) = %q", got)
	}
	if got := FormatPercent(12.345); got != "12.35%" && got != "12.34%" {
		t.Errorf("FormatPercent = %q", got)
	}
	if got := FormatPercent(math.NaN()); got != NoData {
		t.Errorf("FormatPercent(NaN) = %q", got)
	}
}

func TestModeDescription(t *testing.T) {
	if ModeDescription(ModeNeedleBreak) != "Needle Break" {
		t.Errorf("mode 7 = %q", ModeDescription(ModeNeedleBreak))
	}
	if ModeDescription(42) != "Unknown" {
		t.Errorf("mode 42 = %q", ModeDescription(42))
	}
	if c, ok := ModeNoFeeding.Category(); !ok || c != CategoryNoFeeding {
		t.Errorf("mode 4 category = %v %v", c, ok)
	}
}
