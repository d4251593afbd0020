package etl

import (
	"testing"
	"time"

	"sewstat/analysis"
	"sewstat/config"
)

func TestGenerateRangeShape(t *testing.T) {
	cfg := &config.MockDataConfig{Lines: []string{"1", "2"}, MachinesPerLine: 3, RowsPerShift: 6, Seed: 42}
	gen := NewMockDataGenerator(cfg)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := gen.GenerateRange(from, from.AddDate(0, 0, 1))
	if want := 2 * 2 * 3 * 6; len(rows) != want {
		t.Fatalf("got %d rows, want %d", len(rows), want)
	}

	for _, r := range rows {
		if !r.Mode.Known() {
			t.Fatalf("unknown mode %d", r.Mode)
		}
		secs := r.DurationSeconds()
		if secs <= 0 || secs > 2*3600 {
			t.Fatalf("duration %v parsed to %d seconds", r.DurationRaw, secs)
		}
		start, ok1 := analysis.ClockSeconds(r.StartTime)
		end, ok2 := analysis.ClockSeconds(r.EndTime)
		if !ok1 || !ok2 || end <= start {
			t.Fatalf("bad slot %s-%s", r.StartTime, r.EndTime)
		}
		if r.Mode == analysis.ModeSewing && r.SewingSpeed == 0 {
			t.Fatalf("sewing row without speed: %+v", r)
		}
	}
}

func TestGenerateLogsDeterministicWithSeed(t *testing.T) {
	cfg := &config.MockDataConfig{TimeRangeDays: 2, Seed: 9}
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	a := NewMockDataGenerator(cfg).GenerateLogs(end)
	b := NewMockDataGenerator(cfg).GenerateLogs(end)
	if len(a) != len(b) || len(a) == 0 {
		t.Fatalf("lengths %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Mode != b[i].Mode || a[i].OperatorID != b[i].OperatorID {
			t.Fatalf("row %d differs between runs", i)
		}
	}
	if a[0].Date != "2024-03-01" || a[len(a)-1].Date != "2024-03-02" {
		t.Errorf("date range %s..%s", a[0].Date, a[len(a)-1].Date)
	}
}
