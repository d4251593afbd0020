package analysis

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want int64
	}{
		{"hours and minutes", "1:30", 5400},
		{"padded clock", " 02:05 ", 7500},
		{"seconds above threshold", 15000, 15000},
		{"float seconds above threshold", 15000.4, 15000},
		{"decimal hours", 2.5, 9000},
		{"threshold itself is hours", 10000, 36000000},
		{"numeric string", "0.5", 1800},
		{"json number", json.Number("0.25"), 900},
		{"nil", nil, 0},
		{"empty", "", 0},
		{"garbage", "abc", 0},
		{"bad minutes", "1:xx", 0},
		{"missing minutes", "1:", 0},
		{"negative", -3, 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
		{"unsupported type", struct{}{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseDuration(tt.raw); got != tt.want {
				t.Errorf("ParseDuration(%v) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestHours(t *testing.T) {
	if got := Hours(5400); got != 1.5 {
		t.Fatalf("Hours(5400) = %v, want 1.5", got)
	}
}
